package stage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cuongbtq/clipper-be/internal/clip/domain"
)

// Stage names used in wrapped errors and logs
const (
	StageTranscribe = "transcribe"
	StageDetect     = "detect"
	StageTrim       = "trim"
)

// Transcriber produces a time-aligned transcript from a local media file.
// It must fail distinguishably for "file not found" vs a processing error.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) (*domain.Transcript, error)
}

// SegmentDetector proposes clip boundaries from a transcript, ordered by
// start time.
type SegmentDetector interface {
	DetectSegments(ctx context.Context, transcript *domain.Transcript) ([]domain.Segment, error)
}

// Trimmer cuts one clip out of a local media file. It must fail
// distinguishably for an invalid time range vs an I/O failure.
type Trimmer interface {
	Trim(ctx context.Context, mediaPath string, startOffset, endOffset float64, outputPath string) error
}

// Runner uniformly wraps the three black-box media services: it validates
// preconditions the services do not check defensively, rewraps their
// failures with the stage name attached, and reports elapsed time. Retry
// policy belongs to the pipeline, not here.
type Runner struct {
	transcriber Transcriber
	detector    SegmentDetector
	trimmer     Trimmer
	logger      *slog.Logger
}

// NewRunner creates a new stage runner over the given services.
func NewRunner(transcriber Transcriber, detector SegmentDetector, trimmer Trimmer, logger *slog.Logger) *Runner {
	return &Runner{
		transcriber: transcriber,
		detector:    detector,
		trimmer:     trimmer,
		logger:      logger,
	}
}

// Transcribe runs the transcription stage over mediaPath.
func (r *Runner) Transcribe(ctx context.Context, mediaPath string) (*domain.Transcript, error) {
	if err := requireRegularFile(mediaPath); err != nil {
		return nil, err
	}

	start := time.Now()
	transcript, err := r.transcriber.Transcribe(ctx, mediaPath)
	if err != nil {
		return nil, domain.NewStageError(StageTranscribe, err)
	}

	r.logger.Info("Transcription stage finished",
		slog.String("media", mediaPath),
		slog.String("language", transcript.Language),
		slog.Int("sentences", len(transcript.Sentences)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return transcript, nil
}

// DetectSegments runs the segmentation stage over a transcript.
func (r *Runner) DetectSegments(ctx context.Context, transcript *domain.Transcript) ([]domain.Segment, error) {
	if transcript == nil {
		return nil, fmt.Errorf("%w: transcript is nil", domain.ErrPreconditionFailed)
	}

	start := time.Now()
	segments, err := r.detector.DetectSegments(ctx, transcript)
	if err != nil {
		return nil, domain.NewStageError(StageDetect, err)
	}

	r.logger.Info("Segment detection stage finished",
		slog.Int("segments", len(segments)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return segments, nil
}

// Trim runs the trimming stage for one segment, writing to outputPath.
func (r *Runner) Trim(ctx context.Context, mediaPath string, seg domain.Segment, outputPath string) error {
	if err := requireRegularFile(mediaPath); err != nil {
		return err
	}
	if seg.StartOffset < 0 || seg.StartOffset >= seg.EndOffset {
		return fmt.Errorf("%w: invalid segment range [%.2f, %.2f]",
			domain.ErrPreconditionFailed, seg.StartOffset, seg.EndOffset)
	}

	start := time.Now()
	if err := r.trimmer.Trim(ctx, mediaPath, seg.StartOffset, seg.EndOffset, outputPath); err != nil {
		return domain.NewStageError(StageTrim, err)
	}

	r.logger.Debug("Trim stage finished",
		slog.String("output", outputPath),
		slog.Float64("start_offset", seg.StartOffset),
		slog.Float64("end_offset", seg.EndOffset),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// requireRegularFile validates a stage input the black boxes assume exists.
func requireRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: input %s does not exist", domain.ErrPreconditionFailed, path)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: input %s is not a regular file", domain.ErrPreconditionFailed, path)
	}
	return nil
}
