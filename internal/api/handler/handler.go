package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/cuongbtq/clipper-be/internal/clip/domain"
)

// JobStore is the read/create/delete surface the handlers need; the
// production implementation is the Postgres store, test doubles implement
// it in memory.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, jobID string) (*domain.Job, error)
	Delete(ctx context.Context, jobID string) error
}

// ArtifactStore serves the artifact read side plus cascade deletion.
type ArtifactStore interface {
	Bundle(jobID string, artifacts []domain.ClipArtifact, w io.Writer) error
	Fetch(job *domain.Job, index int) (*domain.ClipArtifact, error)
	DeleteAll(job *domain.Job) int
}

// QueuePublisher enqueues a submitted job for the worker service.
type QueuePublisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Store     JobStore
	Artifacts ArtifactStore
	Queue     QueuePublisher
}

// ClipHandler handles clip-job HTTP requests
type ClipHandler struct {
	logger    *slog.Logger
	store     JobStore
	artifacts ArtifactStore
	queue     QueuePublisher
}

// NewClipHandler creates a new ClipHandler instance
func NewClipHandler(deps *Dependencies) *ClipHandler {
	return &ClipHandler{
		logger:    deps.Logger,
		store:     deps.Store,
		artifacts: deps.Artifacts,
		queue:     deps.Queue,
	}
}
