package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trimRunner fakes the ffmpeg CLI: on success it creates the output file
// named by the final positional argument.
type trimRunner struct {
	result commandResult
	err    error

	gotName string
	gotArgs []string
}

func (r *trimRunner) Run(_ context.Context, name string, args ...string) (commandResult, error) {
	r.gotName = name
	r.gotArgs = args
	if r.err != nil {
		return r.result, r.err
	}
	outputPath := args[len(args)-1]
	if err := os.WriteFile(outputPath, []byte("clip"), 0o644); err != nil {
		return commandResult{}, err
	}
	return r.result, nil
}

func TestFFmpegTrimmer_Trim(t *testing.T) {
	runner := &trimRunner{}
	trimmer := &FFmpegTrimmer{binPath: "ffmpeg", runner: runner}
	outputPath := filepath.Join(t.TempDir(), "clip_abc_001.mp4")

	err := trimmer.Trim(context.Background(), "/videos/input.mp4", 1.5, 7.25, outputPath)

	require.NoError(t, err)
	assert.FileExists(t, outputPath)

	assert.Equal(t, "ffmpeg", runner.gotName)
	assert.Equal(t, "1.500", argValue(runner.gotArgs, "-ss"))
	assert.Equal(t, "7.250", argValue(runner.gotArgs, "-to"))
	assert.Equal(t, "/videos/input.mp4", argValue(runner.gotArgs, "-i"))
	assert.Equal(t, "copy", argValue(runner.gotArgs, "-c"))
	assert.Equal(t, outputPath, runner.gotArgs[len(runner.gotArgs)-1])
}

func TestFFmpegTrimmer_Trim_InvalidRange(t *testing.T) {
	tests := []struct {
		name  string
		start float64
		end   float64
	}{
		{name: "negative start", start: -1, end: 5},
		{name: "end before start", start: 10, end: 5},
		{name: "zero-length range", start: 5, end: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &trimRunner{}
			trimmer := &FFmpegTrimmer{binPath: "ffmpeg", runner: runner}

			err := trimmer.Trim(context.Background(), "/videos/input.mp4", tt.start, tt.end, "/out/clip.mp4")

			require.ErrorIs(t, err, ErrInvalidTimeRange)
			assert.Empty(t, runner.gotName, "process must not be spawned for an invalid range")
		})
	}
}

func TestFFmpegTrimmer_Trim_CommandFailure(t *testing.T) {
	runner := &trimRunner{
		result: commandResult{ExitCode: 1, Stderr: "Invalid data found when processing input"},
		err:    errors.New("exit status 1"),
	}
	trimmer := &FFmpegTrimmer{binPath: "ffmpeg", runner: runner}

	err := trimmer.Trim(context.Background(), "/videos/input.mp4", 0, 5, "/out/clip.mp4")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit=1")
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestFFmpegTrimmer_Trim_OutputMissing(t *testing.T) {
	// Runner reports success but never produces the file.
	trimmer := &FFmpegTrimmer{binPath: "ffmpeg", runner: &missingOutputRunner{}}

	err := trimmer.Trim(context.Background(), "/videos/input.mp4", 0, 5, filepath.Join(t.TempDir(), "clip.mp4"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "output file is missing")
}

type missingOutputRunner struct{}

func (r *missingOutputRunner) Run(context.Context, string, ...string) (commandResult, error) {
	return commandResult{}, nil
}

func TestStderrTail(t *testing.T) {
	assert.Equal(t, "short", stderrTail("short", 512))
	assert.Equal(t, "cdef", stderrTail("abcdef", 4))
	assert.Equal(t, "", stderrTail("", 10))
}
