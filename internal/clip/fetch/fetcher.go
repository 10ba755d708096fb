package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuongbtq/clipper-be/internal/clip/domain"
	"github.com/gabriel-vasile/mimetype"
)

const (
	// DefaultTimeout bounds the total wall-clock time of one download
	DefaultTimeout = 3600 * time.Second

	// DefaultMaxBytes is the maximum accepted payload size (2048 MB)
	DefaultMaxBytes = 2048 << 20

	// DefaultChunkSize is the streaming read buffer size
	DefaultChunkSize = 8 * 1024
)

// Config holds fetcher configuration
type Config struct {
	CacheDir  string
	Timeout   time.Duration
	MaxBytes  int64
	ChunkSize int
}

// Fetcher resolves a job's input reference into a local, readable media
// file. Local paths are verified and returned unchanged; http(s) URLs are
// streamed to the cache directory under size and time bounds.
type Fetcher struct {
	cacheDir  string
	timeout   time.Duration
	maxBytes  int64
	chunkSize int
	client    *http.Client
	logger    *slog.Logger
}

// NewFetcher creates a new Fetcher and ensures the cache directory exists.
func NewFetcher(cfg *Config, logger *slog.Logger) (*Fetcher, error) {
	f := &Fetcher{
		cacheDir:  cfg.CacheDir,
		timeout:   cfg.Timeout,
		maxBytes:  cfg.MaxBytes,
		chunkSize: cfg.ChunkSize,
		client:    &http.Client{},
		logger:    logger,
	}

	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.maxBytes <= 0 {
		f.maxBytes = DefaultMaxBytes
	}
	if f.chunkSize <= 0 {
		f.chunkSize = DefaultChunkSize
	}

	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return f, nil
}

// CacheDir returns the directory holding fetched remote inputs.
func (f *Fetcher) CacheDir() string {
	return f.cacheDir
}

// IsURL reports whether inputRef is an http or https URL.
func IsURL(inputRef string) bool {
	u, err := url.Parse(inputRef)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch resolves inputRef to a local path. A local path must exist; a URL
// is downloaded into the cache directory. Any other scheme is rejected.
func (f *Fetcher) Fetch(ctx context.Context, inputRef string) (string, error) {
	if IsURL(inputRef) {
		return f.download(ctx, inputRef)
	}

	// Anything carrying a scheme separator that is not http(s) is neither a
	// URL this fetcher supports nor a plain filesystem path.
	if strings.Contains(inputRef, "://") {
		return "", fmt.Errorf("%w: unsupported scheme in %q", domain.ErrInvalidReference, inputRef)
	}

	info, err := os.Stat(inputRef)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrInputNotFound, inputRef)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", domain.ErrInputNotFound, inputRef)
	}

	f.logger.Info("Using local input file",
		slog.String("path", inputRef),
	)
	return inputRef, nil
}

// download streams the response body to a cache file in fixed-size chunks,
// enforcing the size limit both against the advertised Content-Length and
// the running byte count. A server may omit or lie about Content-Length.
func (f *Fetcher) download(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", "clipper-be/1.0")

	f.logger.Info("Starting download",
		slog.String("url", rawURL),
		slog.Int64("max_bytes", f.maxBytes),
	)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("%w: unexpected status %s", domain.ErrDownloadFailed, resp.Status)
	}

	// Reject early when the server advertises a payload over the limit
	if resp.ContentLength > 0 && resp.ContentLength > f.maxBytes {
		return "", fmt.Errorf("%w: content length %d exceeds limit %d",
			domain.ErrPayloadTooLarge, resp.ContentLength, f.maxBytes)
	}

	outputPath := filepath.Join(f.cacheDir, f.deriveFilename(rawURL, resp))

	out, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}

	written, err := f.copyBounded(out, resp.Body)
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("%w: %v", domain.ErrDownloadFailed, closeErr)
	}
	if err != nil {
		if removeErr := os.Remove(outputPath); removeErr != nil {
			f.logger.Warn("Failed to remove partial download",
				slog.String("path", outputPath),
				slog.String("error", removeErr.Error()),
			)
		}
		return "", err
	}

	f.logger.Info("Download completed",
		slog.String("path", outputPath),
		slog.Int64("bytes", written),
	)
	return outputPath, nil
}

// copyBounded copies src to dst in chunkSize reads, aborting once the
// running byte count exceeds the configured limit.
func (f *Fetcher) copyBounded(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, f.chunkSize)
	var written int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > f.maxBytes {
				return written, fmt.Errorf("%w: body exceeded limit of %d bytes",
					domain.ErrPayloadTooLarge, f.maxBytes)
			}
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return written, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, writeErr)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, readErr)
		}
	}
}

// deriveFilename picks the destination filename, in priority order: the
// content-disposition hint, the URL path basename when it carries an
// extension, then a timestamp-based name with an extension inferred from
// the content type.
func (f *Fetcher) deriveFilename(rawURL string, resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := filepath.Base(params["filename"]); name != "" && name != "." && name != string(filepath.Separator) {
				return name
			}
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		if name := filepath.Base(u.Path); strings.Contains(name, ".") && filepath.Ext(name) != "." {
			return name
		}
	}

	timestamp := time.Now().Format("20060102_150405")
	return "video_" + timestamp + extensionFor(resp.Header.Get("Content-Type"))
}

var extensionByContentType = map[string]string{
	"video/mp4":                ".mp4",
	"video/quicktime":          ".mov",
	"video/x-msvideo":          ".avi",
	"video/x-matroska":         ".mkv",
	"video/webm":               ".webm",
	"video/mpeg":               ".mpeg",
	"application/octet-stream": ".mp4",
}

// extensionFor maps a Content-Type header to a file extension, consulting
// the mimetype database for types outside the common video set.
func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".mp4"
	}

	if ext, ok := extensionByContentType[mediaType]; ok {
		return ext
	}

	if m := mimetype.Lookup(mediaType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".mp4"
}

// Owns reports whether path lives under the fetch cache directory.
// Destructive operations are scoped strictly to storage this fetcher
// created.
func (f *Fetcher) Owns(path string) bool {
	absCache, err := filepath.Abs(f.cacheDir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Dir(absPath) == absCache
}

// DeleteCached removes a cached input file. Paths outside the cache
// directory are refused.
func (f *Fetcher) DeleteCached(path string) bool {
	if !f.Owns(path) {
		return false
	}
	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			f.logger.Warn("Failed to delete cached file",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
		return false
	}

	f.logger.Info("Deleted cached file",
		slog.String("path", path),
	)
	return true
}

// SweepOlderThan removes cache files older than maxAge and returns the
// number of files removed. Individual failures are logged and skipped.
func (f *Fetcher) SweepOlderThan(maxAge time.Duration) int {
	entries, err := os.ReadDir(f.cacheDir)
	if err != nil {
		f.logger.Error("Failed to read cache directory",
			slog.String("dir", f.cacheDir),
			slog.String("error", err.Error()),
		)
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(f.cacheDir, entry.Name())
		if err := os.Remove(path); err != nil {
			f.logger.Warn("Failed to sweep cache file",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		f.logger.Info("Cache sweep removed old files",
			slog.Int("removed", removed),
		)
	}
	return removed
}
