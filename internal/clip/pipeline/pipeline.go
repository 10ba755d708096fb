package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/clipper-be/internal/clip/domain"
	"github.com/cuongbtq/clipper-be/internal/clip/fetch"
)

// JobStore is the pipeline's write surface over the job record. The
// pipeline is the only caller permitted to request these writes.
type JobStore interface {
	Claim(ctx context.Context, jobID, progressMessage string) error
	SetProgress(ctx context.Context, jobID, progressMessage string) error
	SetInputRef(ctx context.Context, jobID, inputRef string) error
	SetCompleted(ctx context.Context, jobID string, results domain.ClipArtifacts, progressMessage string) error
	SetFailed(ctx context.Context, jobID, errorMessage string) error
}

// Fetcher resolves an input reference into a local media file.
type Fetcher interface {
	Fetch(ctx context.Context, inputRef string) (string, error)
}

// StageRunner invokes the black-box media services.
type StageRunner interface {
	Transcribe(ctx context.Context, mediaPath string) (*domain.Transcript, error)
	DetectSegments(ctx context.Context, transcript *domain.Transcript) ([]domain.Segment, error)
	Trim(ctx context.Context, mediaPath string, seg domain.Segment, outputPath string) error
}

// ArtifactPaths hands out per-job output paths.
type ArtifactPaths interface {
	PathFor(jobID, filename string) (string, error)
}

// Pipeline drives one job through the ordered stages: resolve input,
// transcribe, detect segments, trim each segment, persist results. It owns
// the job end to end, writing every transition through the JobStore, and
// never returns a failure past its boundary: a job always lands in a
// terminal state once Run returns.
type Pipeline struct {
	store   JobStore
	fetcher Fetcher
	stages  StageRunner
	paths   ArtifactPaths
	logger  *slog.Logger
}

// NewPipeline creates a new pipeline over the given collaborators.
func NewPipeline(store JobStore, fetcher Fetcher, stages StageRunner, paths ArtifactPaths, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:   store,
		fetcher: fetcher,
		stages:  stages,
		paths:   paths,
		logger:  logger,
	}
}

// Run executes the whole pipeline for one job. The caller has already
// received an accepted response, so nothing is ever propagated back; every
// failure becomes a FAILED transition with a descriptive message.
func (p *Pipeline) Run(ctx context.Context, jobID, inputRef string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Pipeline panicked",
				slog.String("job_id", jobID),
				slog.Any("panic", r),
			)
			p.fail(ctx, jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := p.claim(ctx, jobID, inputRef); err != nil {
		return
	}

	// Stage 1: resolve input to a local file
	localPath, err := p.fetcher.Fetch(ctx, inputRef)
	if err != nil {
		p.fail(ctx, jobID, fetchFailureMessage(err))
		return
	}
	p.mutate(ctx, jobID, func() error {
		return p.store.SetInputRef(ctx, jobID, localPath)
	})

	// Stage 2: transcribe
	p.progress(ctx, jobID, "Transcribing video...")
	transcript, err := p.stages.Transcribe(ctx, localPath)
	if err != nil {
		p.fail(ctx, jobID, "Transcription failed: "+causeDetail(err))
		return
	}

	p.logger.Info("Transcription complete",
		slog.String("job_id", jobID),
		slog.String("language", transcript.Language),
		slog.Int("sentences", len(transcript.Sentences)),
	)

	// Stage 3: detect segments
	p.progress(ctx, jobID, "Detecting clips...")
	segments, err := p.stages.DetectSegments(ctx, transcript)
	if err != nil {
		p.fail(ctx, jobID, "Clip finding failed: "+causeDetail(err))
		return
	}
	if len(segments) == 0 {
		p.fail(ctx, jobID, "No clips detected")
		return
	}

	// Stage 4: trim each segment. A single failed trim is skipped; later
	// segments are independent of earlier ones, so partial success stands.
	p.progress(ctx, jobID, fmt.Sprintf("Generating %d clips...", len(segments)))
	results := p.trimSegments(ctx, jobID, localPath, segments)

	if len(results) == 0 {
		p.fail(ctx, jobID, "Failed to generate any clips")
		return
	}

	// Stage 5: persist success
	p.mutate(ctx, jobID, func() error {
		return p.store.SetCompleted(ctx, jobID, results,
			fmt.Sprintf("Completed: %d clips generated", len(results)))
	})

	p.logger.Info("Clip generation completed",
		slog.String("job_id", jobID),
		slog.Int("clips", len(results)),
		slog.Int("segments", len(segments)),
	)
}

// claim moves the job to RUNNING with a stage-appropriate first message.
func (p *Pipeline) claim(ctx context.Context, jobID, inputRef string) error {
	progress := "Preparing input file..."
	if fetch.IsURL(inputRef) {
		progress = "Downloading video from the web..."
	}

	if err := p.store.Claim(ctx, jobID, progress); err != nil {
		// Job gone or already picked up; nothing to do here.
		p.logger.Warn("Failed to claim job, skipping",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// trimSegments produces one artifact per successfully trimmed segment, in
// segment order. Output files are named clip_<jobID>_<seq>.mp4 with a
// 1-based sequence number.
func (p *Pipeline) trimSegments(ctx context.Context, jobID, mediaPath string, segments []domain.Segment) domain.ClipArtifacts {
	results := make(domain.ClipArtifacts, 0, len(segments))

	for idx, seg := range segments {
		filename := fmt.Sprintf("clip_%s_%03d.mp4", jobID, idx+1)

		outputPath, err := p.paths.PathFor(jobID, filename)
		if err != nil {
			p.logger.Error("Failed to allocate output path",
				slog.String("job_id", jobID),
				slog.String("filename", filename),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := p.stages.Trim(ctx, mediaPath, seg, outputPath); err != nil {
			p.logger.Error("Failed to generate clip, skipping segment",
				slog.String("job_id", jobID),
				slog.Int("segment", idx+1),
				slog.Float64("start_offset", seg.StartOffset),
				slog.Float64("end_offset", seg.EndOffset),
				slog.String("error", err.Error()),
			)
			continue
		}

		results = append(results, domain.ClipArtifact{
			Filename:    filename,
			StoragePath: outputPath,
			StartOffset: seg.StartOffset,
			EndOffset:   seg.EndOffset,
			Duration:    seg.Duration(),
		})
	}

	return results
}

// progress advances the human-readable message; advisory only, so a store
// failure is logged and the pipeline moves on.
func (p *Pipeline) progress(ctx context.Context, jobID, message string) {
	p.mutate(ctx, jobID, func() error {
		return p.store.SetProgress(ctx, jobID, message)
	})
}

func (p *Pipeline) mutate(ctx context.Context, jobID string, fn func() error) {
	if err := fn(); err != nil {
		p.logger.Error("Failed to update job record",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// fail transitions the job to FAILED. Errors from the store itself can only
// be logged at this point.
func (p *Pipeline) fail(ctx context.Context, jobID, message string) {
	p.logger.Error("Pipeline failed",
		slog.String("job_id", jobID),
		slog.String("error", message),
	)

	if err := p.store.SetFailed(ctx, jobID, message); err != nil {
		p.logger.Error("Failed to mark job as failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// fetchFailureMessage maps a fetch error to the user-facing cause.
func fetchFailureMessage(err error) string {
	if errors.Is(err, domain.ErrInputNotFound) {
		return "Input file not found"
	}
	return "Download failed: " + causeDetail(err)
}

// causeDetail strips wrapper prefixes so the recorded message carries the
// original diagnostic once, not twice.
func causeDetail(err error) string {
	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		return stageErr.Err.Error()
	}

	msg := err.Error()
	for _, sentinel := range []error{domain.ErrDownloadFailed, domain.ErrPayloadTooLarge, domain.ErrInvalidReference} {
		prefix := sentinel.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}
