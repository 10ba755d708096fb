package artifact

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cuongbtq/clipper-be/internal/clip/domain"
)

// bundlePrefix is the directory entries are placed under inside an archive.
const bundlePrefix = "clips/"

// Store manages the on-disk layout for job output files: one directory per
// job under the output root. Job IDs are the isolation boundary; no
// cross-job writes occur.
type Store struct {
	outputRoot string
	cacheDir   string
	logger     *slog.Logger
}

// NewStore creates a new artifact store rooted at outputRoot. cacheDir is
// the fetch cache; DeleteAll uses it to decide whether a job's input file
// is owned by this system.
func NewStore(outputRoot, cacheDir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output root: %w", err)
	}
	return &Store{
		outputRoot: outputRoot,
		cacheDir:   cacheDir,
		logger:     logger,
	}, nil
}

// PathFor returns the deterministic path for filename under the job's
// directory, creating the directory if absent.
func (s *Store) PathFor(jobID, filename string) (string, error) {
	jobDir := filepath.Join(s.outputRoot, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create job directory: %w", err)
	}
	return filepath.Join(jobDir, filename), nil
}

// Bundle writes a zip archive of every listed artifact to w, each entry
// under the clips/ prefix. A listed artifact absent from disk fails the
// whole bundle: storage and the job record may have drifted, and that must
// be detected rather than silently skipped.
func (s *Store) Bundle(jobID string, artifacts []domain.ClipArtifact, w io.Writer) error {
	for _, a := range artifacts {
		if _, err := os.Stat(a.StoragePath); err != nil {
			return fmt.Errorf("%w: %s", domain.ErrArtifactMissing, a.Filename)
		}
	}

	zw := zip.NewWriter(w)
	for _, a := range artifacts {
		if err := s.addEntry(zw, a); err != nil {
			zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	s.logger.Info("Bundled job artifacts",
		slog.String("job_id", jobID),
		slog.Int("clips", len(artifacts)),
	)
	return nil
}

func (s *Store) addEntry(zw *zip.Writer, a domain.ClipArtifact) error {
	src, err := os.Open(a.StoragePath)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrArtifactMissing, a.Filename)
	}
	defer src.Close()

	entry, err := zw.Create(bundlePrefix + a.Filename)
	if err != nil {
		return fmt.Errorf("failed to create archive entry: %w", err)
	}
	if _, err := io.Copy(entry, src); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", a.Filename, err)
	}
	return nil
}

// Fetch bounds-checks index against the job's artifact list and returns
// the artifact once its file is confirmed present on disk.
func (s *Store) Fetch(job *domain.Job, index int) (*domain.ClipArtifact, error) {
	if index < 0 || index >= len(job.Results) {
		return nil, fmt.Errorf("%w: index %d, %d clips", domain.ErrIndexOutOfRange, index, len(job.Results))
	}

	a := job.Results[index]
	if _, err := os.Stat(a.StoragePath); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrArtifactMissing, a.Filename)
	}
	return &a, nil
}

// DeleteAll removes every artifact file of the job, its output directory,
// and the job's input file if and only if that input lives under the fetch
// cache directory. Individual failures are logged and do not abort the
// deletion; the count of files actually removed is returned.
func (s *Store) DeleteAll(job *domain.Job) int {
	removed := 0

	for _, a := range job.Results {
		if err := os.Remove(a.StoragePath); err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("Failed to delete artifact file",
					slog.String("job_id", job.JobID),
					slog.String("path", a.StoragePath),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		removed++
	}

	jobDir := filepath.Join(s.outputRoot, job.JobID)
	if err := os.RemoveAll(jobDir); err != nil {
		s.logger.Warn("Failed to remove job directory",
			slog.String("job_id", job.JobID),
			slog.String("dir", jobDir),
			slog.String("error", err.Error()),
		)
	}

	if s.ownsInput(job.InputRef) {
		if err := os.Remove(job.InputRef); err == nil {
			removed++
		} else if !os.IsNotExist(err) {
			s.logger.Warn("Failed to delete cached input",
				slog.String("job_id", job.JobID),
				slog.String("path", job.InputRef),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("Deleted job artifacts",
		slog.String("job_id", job.JobID),
		slog.Int("files_removed", removed),
	)
	return removed
}

// ownsInput reports whether path lives directly under the fetch cache
// directory. Caller-supplied local paths outside the cache are never
// deleted.
func (s *Store) ownsInput(path string) bool {
	if path == "" || s.cacheDir == "" {
		return false
	}
	absCache, err := filepath.Abs(s.cacheDir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Dir(absPath) == absCache
}
