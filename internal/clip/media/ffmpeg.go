package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrInvalidTimeRange is returned by the trimmer when the requested range
// is not a positive interval. Callers can tell it apart from I/O failures.
var ErrInvalidTimeRange = errors.New("invalid trim time range")

// FFmpegTrimmer cuts clips with an ffmpeg stream copy. It is the single
// production implementation of the trim service.
type FFmpegTrimmer struct {
	binPath string
	runner  commandRunner
}

// NewFFmpegTrimmer creates a new ffmpeg-backed trimmer.
func NewFFmpegTrimmer(binPath string) *FFmpegTrimmer {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &FFmpegTrimmer{
		binPath: binPath,
		runner:  &execRunner{},
	}
}

// Trim writes the [startOffset, endOffset] range of mediaPath to outputPath.
func (t *FFmpegTrimmer) Trim(ctx context.Context, mediaPath string, startOffset, endOffset float64, outputPath string) error {
	if startOffset < 0 || startOffset >= endOffset {
		return fmt.Errorf("%w: [%.2f, %.2f]", ErrInvalidTimeRange, startOffset, endOffset)
	}

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-ss", formatSeconds(startOffset),
		"-to", formatSeconds(endOffset),
		"-i", mediaPath,
		"-c", "copy",
		outputPath,
	}

	result, runErr := t.runner.Run(ctx, t.binPath, args...)
	if runErr != nil {
		return fmt.Errorf("ffmpeg trim failed (exit=%d): %s",
			result.ExitCode, stderrTail(result.Stderr, 512))
	}

	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("ffmpeg completed but output file is missing: %w", err)
	}
	return nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
