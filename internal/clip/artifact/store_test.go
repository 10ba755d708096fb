package artifact

import (
	"archive/zip"
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/clipper-be/internal/clip/domain"
)

const testJobID = "7b1d2f3a-4c5e-6f70-8192-a3b4c5d6e7f8"

func newTestStore(t *testing.T) (*Store, string, string) {
	t.Helper()

	outputRoot := t.TempDir()
	cacheDir := t.TempDir()

	s, err := NewStore(outputRoot, cacheDir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s, outputRoot, cacheDir
}

// writeArtifact materializes one clip file through PathFor and returns its
// artifact record.
func writeArtifact(t *testing.T, s *Store, jobID, filename, content string) domain.ClipArtifact {
	t.Helper()

	path, err := s.PathFor(jobID, filename)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return domain.ClipArtifact{Filename: filename, StoragePath: path}
}

func TestPathFor(t *testing.T) {
	s, outputRoot, _ := newTestStore(t)

	path, err := s.PathFor(testJobID, "clip_001.mp4")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outputRoot, testJobID, "clip_001.mp4"), path)
	assert.DirExists(t, filepath.Join(outputRoot, testJobID))
}

func TestBundle(t *testing.T) {
	s, _, _ := newTestStore(t)

	artifacts := []domain.ClipArtifact{
		writeArtifact(t, s, testJobID, "clip_001.mp4", "first"),
		writeArtifact(t, s, testJobID, "clip_002.mp4", "second"),
	}

	var buf bytes.Buffer
	require.NoError(t, s.Bundle(testJobID, artifacts, &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)

	assert.Equal(t, "clips/clip_001.mp4", zr.File[0].Name)
	assert.Equal(t, "clips/clip_002.mp4", zr.File[1].Name)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()

	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
}

func TestBundle_MissingFileFailsWhole(t *testing.T) {
	s, _, _ := newTestStore(t)

	present := writeArtifact(t, s, testJobID, "clip_001.mp4", "first")
	ghost := domain.ClipArtifact{
		Filename:    "clip_002.mp4",
		StoragePath: filepath.Join(t.TempDir(), "clip_002.mp4"),
	}

	var buf bytes.Buffer
	err := s.Bundle(testJobID, []domain.ClipArtifact{present, ghost}, &buf)
	require.ErrorIs(t, err, domain.ErrArtifactMissing)
}

func TestFetch(t *testing.T) {
	s, _, _ := newTestStore(t)

	artifacts := domain.ClipArtifacts{
		writeArtifact(t, s, testJobID, "clip_001.mp4", "first"),
		writeArtifact(t, s, testJobID, "clip_002.mp4", "second"),
	}
	job := &domain.Job{JobID: testJobID, Results: artifacts}

	got, err := s.Fetch(job, 1)
	require.NoError(t, err)
	assert.Equal(t, "clip_002.mp4", got.Filename)
}

func TestFetch_IndexOutOfRange(t *testing.T) {
	s, _, _ := newTestStore(t)

	job := &domain.Job{
		JobID:   testJobID,
		Results: domain.ClipArtifacts{writeArtifact(t, s, testJobID, "clip_001.mp4", "first")},
	}

	for _, index := range []int{-1, 1, 5} {
		_, err := s.Fetch(job, index)
		assert.ErrorIs(t, err, domain.ErrIndexOutOfRange, "index %d", index)
	}
}

func TestFetch_FileMissingOnDisk(t *testing.T) {
	s, _, _ := newTestStore(t)

	artifact := writeArtifact(t, s, testJobID, "clip_001.mp4", "first")
	require.NoError(t, os.Remove(artifact.StoragePath))

	job := &domain.Job{JobID: testJobID, Results: domain.ClipArtifacts{artifact}}

	_, err := s.Fetch(job, 0)
	require.ErrorIs(t, err, domain.ErrArtifactMissing)
}

func TestDeleteAll(t *testing.T) {
	s, outputRoot, cacheDir := newTestStore(t)

	artifacts := domain.ClipArtifacts{
		writeArtifact(t, s, testJobID, "clip_001.mp4", "first"),
		writeArtifact(t, s, testJobID, "clip_002.mp4", "second"),
	}

	// A downloaded input lives in the cache and belongs to the system
	cachedInput := filepath.Join(cacheDir, "video.mp4")
	require.NoError(t, os.WriteFile(cachedInput, []byte("media"), 0o644))

	job := &domain.Job{JobID: testJobID, InputRef: cachedInput, Results: artifacts}

	removed := s.DeleteAll(job)

	assert.Equal(t, 3, removed)
	assert.NoFileExists(t, cachedInput)
	assert.NoDirExists(t, filepath.Join(outputRoot, testJobID))
}

func TestDeleteAll_KeepsCallerProvidedInput(t *testing.T) {
	s, _, _ := newTestStore(t)

	userInput := filepath.Join(t.TempDir(), "home-movie.mp4")
	require.NoError(t, os.WriteFile(userInput, []byte("media"), 0o644))

	artifacts := domain.ClipArtifacts{
		writeArtifact(t, s, testJobID, "clip_001.mp4", "first"),
	}
	job := &domain.Job{JobID: testJobID, InputRef: userInput, Results: artifacts}

	removed := s.DeleteAll(job)

	assert.Equal(t, 1, removed)
	assert.FileExists(t, userInput, "inputs outside the cache are never deleted")
}

func TestDeleteAll_MissingFilesAreSkipped(t *testing.T) {
	s, _, _ := newTestStore(t)

	artifact := writeArtifact(t, s, testJobID, "clip_001.mp4", "first")
	require.NoError(t, os.Remove(artifact.StoragePath))

	job := &domain.Job{JobID: testJobID, Results: domain.ClipArtifacts{artifact}}

	assert.Equal(t, 0, s.DeleteAll(job))
}
