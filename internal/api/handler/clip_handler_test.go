package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/clipper-be/internal/api/dto"
	"github.com/cuongbtq/clipper-be/internal/api/handler"
	"github.com/cuongbtq/clipper-be/internal/api/router"
	"github.com/cuongbtq/clipper-be/internal/clip/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeJobStore struct {
	jobs      map[string]*domain.Job
	createErr error
}

func newFakeJobStore(jobs ...*domain.Job) *fakeJobStore {
	s := &fakeJobStore{jobs: make(map[string]*domain.Job)}
	for _, j := range jobs {
		s.jobs[j.JobID] = j
	}
	return s
}

func (s *fakeJobStore) Create(_ context.Context, job *domain.Job) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.jobs[job.JobID] = job
	return nil
}

func (s *fakeJobStore) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func (s *fakeJobStore) Delete(_ context.Context, jobID string) error {
	if _, ok := s.jobs[jobID]; !ok {
		return domain.ErrJobNotFound
	}
	delete(s.jobs, jobID)
	return nil
}

type fakeArtifacts struct {
	fetchClip   *domain.ClipArtifact
	fetchErr    error
	bundleBody  []byte
	bundleErr   error
	deleteCount int
	deleteCalls int
}

func (a *fakeArtifacts) Bundle(_ string, _ []domain.ClipArtifact, w io.Writer) error {
	if a.bundleErr != nil {
		return a.bundleErr
	}
	_, err := w.Write(a.bundleBody)
	return err
}

func (a *fakeArtifacts) Fetch(_ *domain.Job, _ int) (*domain.ClipArtifact, error) {
	return a.fetchClip, a.fetchErr
}

func (a *fakeArtifacts) DeleteAll(_ *domain.Job) int {
	a.deleteCalls++
	return a.deleteCount
}

type fakeQueue struct {
	published [][]byte
	err       error
}

func (q *fakeQueue) Publish(_ context.Context, body []byte, _ string) error {
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, body)
	return nil
}

type testEnv struct {
	store     *fakeJobStore
	artifacts *fakeArtifacts
	queue     *fakeQueue
	router    *gin.Engine
}

func newTestEnv(jobs ...*domain.Job) *testEnv {
	env := &testEnv{
		store:     newFakeJobStore(jobs...),
		artifacts: &fakeArtifacts{},
		queue:     &fakeQueue{},
	}
	env.router = router.SetupRouter(&handler.Dependencies{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:     env.store,
		Artifacts: env.artifacts,
		Queue:     env.queue,
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func completedJob() *domain.Job {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	done := now.Add(2 * time.Minute)
	return &domain.Job{
		JobID:           uuid.New().String(),
		Status:          domain.JobStatusCompleted,
		ProgressMessage: "Completed: 2 clips generated",
		InputRef:        "/videos/input.mp4",
		Results: domain.ClipArtifacts{
			{Filename: "clip_001.mp4", StoragePath: "/data/clips/x/clip_001.mp4", StartOffset: 0, EndOffset: 10, Duration: 10},
			{Filename: "clip_002.mp4", StoragePath: "/data/clips/x/clip_002.mp4", StartOffset: 15, EndOffset: 30, Duration: 15},
		},
		CreatedAt:   now,
		UpdatedAt:   done,
		CompletedAt: &done,
	}
}

func TestGenerateClips(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/clips/generate",
		dto.GenerateClipsRequest{VideoPath: "/videos/input.mp4"})

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp dto.GenerateClipsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	_, err := uuid.Parse(resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, resp.Status)

	// The job record exists before the message is published
	job, err := env.store.GetByID(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, "/videos/input.mp4", job.InputRef)
	assert.Equal(t, "Waiting for processing", job.ProgressMessage)

	require.Len(t, env.queue.published, 1)
	var msg map[string]string
	require.NoError(t, json.Unmarshal(env.queue.published[0], &msg))
	assert.Equal(t, resp.JobID, msg["job_id"])
}

func TestGenerateClips_MissingVideoPath(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/clips/generate", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.queue.published)
}

func TestGenerateClips_PublishFailure(t *testing.T) {
	env := newTestEnv()
	env.queue.err = errors.New("broker unreachable")

	rec := env.do(t, http.MethodPost, "/api/v1/clips/generate",
		dto.GenerateClipsRequest{VideoPath: "/videos/input.mp4"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetJobStatus_Completed(t *testing.T) {
	job := completedJob()
	env := newTestEnv(job)

	rec := env.do(t, http.MethodGet, "/api/v1/clips/status/"+job.JobID, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.JobStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, job.JobID, resp.JobID)
	assert.Equal(t, domain.JobStatusCompleted, resp.Status)
	assert.Equal(t, "Completed: 2 clips generated", resp.ProgressMessage)
	assert.NotEmpty(t, resp.CompletedAt)

	require.Len(t, resp.GeneratedClips, 2)
	assert.Equal(t, fmt.Sprintf("/api/v1/clips/%s/clips/0", job.JobID), resp.GeneratedClips[0].DownloadURL)
	assert.Equal(t, fmt.Sprintf("/api/v1/clips/%s/clips/1", job.JobID), resp.GeneratedClips[1].DownloadURL)
	assert.Equal(t, 15.0, resp.GeneratedClips[1].Duration)
}

func TestGetJobStatus_FailedJobIsInspectable(t *testing.T) {
	job := completedJob()
	job.Status = domain.JobStatusFailed
	job.Results = nil
	job.ErrorMessage = "No clips detected"
	env := newTestEnv(job)

	rec := env.do(t, http.MethodGet, "/api/v1/clips/status/"+job.JobID, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.JobStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.JobStatusFailed, resp.Status)
	assert.Equal(t, "No clips detected", resp.ErrorMessage)
	assert.Empty(t, resp.GeneratedClips)
}

func TestGetJobStatus_InvalidUUID(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/v1/clips/status/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobStatus_NotFound(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/v1/clips/status/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadClip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip_001.mp4")
	require.NoError(t, os.WriteFile(path, []byte("clip bytes"), 0o644))

	job := completedJob()
	env := newTestEnv(job)
	env.artifacts.fetchClip = &domain.ClipArtifact{Filename: "clip_001.mp4", StoragePath: path}

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/clips/%s/clips/0", job.JobID), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "clip bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "clip_001.mp4")
}

func TestDownloadClip_IndexOutOfRange(t *testing.T) {
	job := completedJob()
	env := newTestEnv(job)
	env.artifacts.fetchErr = fmt.Errorf("%w: index 9", domain.ErrIndexOutOfRange)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/clips/%s/clips/9", job.JobID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadClip_FileGone(t *testing.T) {
	job := completedJob()
	env := newTestEnv(job)
	env.artifacts.fetchErr = fmt.Errorf("%w: clip_001.mp4", domain.ErrArtifactMissing)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/clips/%s/clips/0", job.JobID), nil)
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestDownloadAll(t *testing.T) {
	job := completedJob()
	env := newTestEnv(job)
	env.artifacts.bundleBody = []byte("zip archive bytes")

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/clips/%s/download", job.JobID), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "clips_"+job.JobID+".zip")
	assert.Equal(t, "zip archive bytes", rec.Body.String())
}

func TestDownloadAll_NotCompleted(t *testing.T) {
	job := completedJob()
	job.Status = domain.JobStatusRunning
	job.Results = nil
	env := newTestEnv(job)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/clips/%s/download", job.JobID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteJob(t *testing.T) {
	job := completedJob()
	env := newTestEnv(job)
	env.artifacts.deleteCount = 3

	rec := env.do(t, http.MethodDelete, "/api/v1/clips/"+job.JobID, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.DeleteJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, job.JobID, resp.JobID)
	assert.Equal(t, 3, resp.FilesRemoved)
	assert.Equal(t, 1, env.artifacts.deleteCalls)

	// The job is gone afterwards
	rec = env.do(t, http.MethodGet, "/api/v1/clips/status/"+job.JobID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteJob_NotFound(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodDelete, "/api/v1/clips/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, env.artifacts.deleteCalls)
}

func TestHealth(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
