package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/clipper-be/internal/clip/domain"
)

// WhisperConfig holds transcriber configuration
type WhisperConfig struct {
	BinPath   string // whisper.cpp CLI binary
	ModelPath string
	Language  string // empty or "auto" lets the model detect
}

// WhisperTranscriber runs a whisper.cpp CLI against a media file and parses
// its JSON transcript into time-aligned sentences. It is the single
// production implementation of the transcription service.
type WhisperTranscriber struct {
	binPath   string
	modelPath string
	language  string
	runner    commandRunner
}

// NewWhisperTranscriber creates a new whisper-backed transcriber.
func NewWhisperTranscriber(cfg *WhisperConfig) *WhisperTranscriber {
	bin := cfg.BinPath
	if bin == "" {
		bin = "whisper-cli"
	}
	return &WhisperTranscriber{
		binPath:   bin,
		modelPath: cfg.ModelPath,
		language:  cfg.Language,
		runner:    &execRunner{},
	}
}

// whisperOutput mirrors the whisper.cpp -oj JSON layout.
type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Text    string `json:"text"`
		Offsets struct {
			From int64 `json:"from"` // milliseconds
			To   int64 `json:"to"`
		} `json:"offsets"`
	} `json:"transcription"`
}

// Transcribe runs whisper over mediaPath. A missing input fails with
// ErrInputNotFound before the process is spawned; everything else is a
// processing error.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, mediaPath string) (*domain.Transcript, error) {
	if _, err := os.Stat(mediaPath); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInputNotFound, mediaPath)
	}

	outDir, err := os.MkdirTemp("", "clipper-whisper-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	outBase := filepath.Join(outDir, "transcript")
	args := []string{
		"-m", t.modelPath,
		"-f", mediaPath,
		"-of", outBase,
		"-oj",
	}
	if lang := strings.TrimSpace(t.language); lang != "" && !strings.EqualFold(lang, "auto") {
		args = append(args, "-l", lang)
	}

	result, runErr := t.runner.Run(ctx, t.binPath, args...)
	if runErr != nil {
		return nil, fmt.Errorf("whisper failed (exit=%d): %s",
			result.ExitCode, stderrTail(result.Stderr, 512))
	}

	data, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return nil, fmt.Errorf("whisper completed but transcript JSON is missing: %w", err)
	}

	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper output: %w", err)
	}

	transcript := &domain.Transcript{
		Language:  out.Result.Language,
		Sentences: make([]domain.Sentence, 0, len(out.Transcription)),
	}
	for _, seg := range out.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		transcript.Sentences = append(transcript.Sentences, domain.Sentence{
			Text:  text,
			Start: millisToSeconds(seg.Offsets.From),
			End:   millisToSeconds(seg.Offsets.To),
		})
	}
	return transcript, nil
}

func millisToSeconds(ms int64) float64 {
	return float64(ms) / 1000.0
}
