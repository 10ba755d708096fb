package media

import (
	"context"

	"github.com/cuongbtq/clipper-be/internal/clip/domain"
)

// GapDetectorConfig holds segment detection thresholds, all in seconds.
type GapDetectorConfig struct {
	MinGap  float64 // pause length that starts a new segment
	MinClip float64 // segments shorter than this are dropped
	MaxClip float64 // segments are cut when they grow past this
}

// DefaultGapDetectorConfig returns the thresholds used in production.
func DefaultGapDetectorConfig() *GapDetectorConfig {
	return &GapDetectorConfig{
		MinGap:  1.5,
		MinClip: 5.0,
		MaxClip: 90.0,
	}
}

// GapDetector proposes clip boundaries from pauses between transcript
// sentences: a new segment starts whenever the gap to the previous sentence
// reaches MinGap or the running segment would grow past MaxClip. It is the
// single production implementation of the segmentation service.
type GapDetector struct {
	minGap  float64
	minClip float64
	maxClip float64
}

// NewGapDetector creates a new gap-based segment detector.
func NewGapDetector(cfg *GapDetectorConfig) *GapDetector {
	if cfg == nil {
		cfg = DefaultGapDetectorConfig()
	}
	return &GapDetector{
		minGap:  cfg.MinGap,
		minClip: cfg.MinClip,
		maxClip: cfg.MaxClip,
	}
}

// DetectSegments returns segments ordered by start time. Segments shorter
// than MinClip are discarded.
func (d *GapDetector) DetectSegments(_ context.Context, transcript *domain.Transcript) ([]domain.Segment, error) {
	if transcript == nil || len(transcript.Sentences) == 0 {
		return nil, nil
	}

	var segments []domain.Segment
	current := domain.Segment{
		StartOffset: transcript.Sentences[0].Start,
		EndOffset:   transcript.Sentences[0].End,
	}

	for _, sentence := range transcript.Sentences[1:] {
		gap := sentence.Start - current.EndOffset
		grown := sentence.End - current.StartOffset

		if gap >= d.minGap || grown > d.maxClip {
			segments = d.appendIfLongEnough(segments, current)
			current = domain.Segment{StartOffset: sentence.Start, EndOffset: sentence.End}
			continue
		}
		if sentence.End > current.EndOffset {
			current.EndOffset = sentence.End
		}
	}

	return d.appendIfLongEnough(segments, current), nil
}

func (d *GapDetector) appendIfLongEnough(segments []domain.Segment, seg domain.Segment) []domain.Segment {
	if seg.Duration() < d.minClip {
		return segments
	}
	return append(segments, seg)
}
