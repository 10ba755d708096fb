package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/clipper-be/internal/clip/domain"
	"github.com/jmoiron/sqlx"
)

// Store is the authoritative record of job identity, status, progress and
// result/error payloads, backed by PostgreSQL. Each mutation is a single
// guarded UPDATE so concurrent readers never observe a half-written
// combination of status, progress, results and error message. Mutations
// against a job already in a terminal state fail with ErrInvalidTransition.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store instance
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

const jobColumns = `
	job_id, status, progress_message, input_ref,
	results, error_message, created_at, updated_at, completed_at
`

// Create inserts a new job record.
func (s *Store) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO clip_jobs (
			job_id, status, progress_message, input_ref,
			results, error_message, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.Status,
		job.ProgressMessage,
		job.InputRef,
		job.Results,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetByID retrieves a job snapshot by its ID.
func (s *Store) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT ` + jobColumns + ` FROM clip_jobs WHERE job_id = $1`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// Claim transitions a PENDING job to RUNNING. It is the pipeline's entry
// point and doubles as the per-job serialization guard: a job already
// claimed (or terminal) is left untouched.
func (s *Store) Claim(ctx context.Context, jobID, progressMessage string) error {
	query := `
		UPDATE clip_jobs
		SET status = $1,
		    progress_message = $2,
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStatusRunning, progressMessage, jobID, domain.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to claim job: %w", err)
	}
	return s.checkMutated(ctx, jobID, result)
}

// SetProgress overwrites the human-readable progress message.
func (s *Store) SetProgress(ctx context.Context, jobID, progressMessage string) error {
	query := `
		UPDATE clip_jobs
		SET progress_message = $1,
		    updated_at = NOW()
		WHERE job_id = $2
		  AND status NOT IN ($3, $4)
	`

	result, err := s.db.ExecContext(ctx, query, progressMessage, jobID, domain.JobStatusCompleted, domain.JobStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return s.checkMutated(ctx, jobID, result)
}

// SetInputRef rewrites the job's input reference to the resolved local
// path. Done once, after the download stage.
func (s *Store) SetInputRef(ctx context.Context, jobID, inputRef string) error {
	query := `
		UPDATE clip_jobs
		SET input_ref = $1,
		    updated_at = NOW()
		WHERE job_id = $2
		  AND status NOT IN ($3, $4)
	`

	result, err := s.db.ExecContext(ctx, query, inputRef, jobID, domain.JobStatusCompleted, domain.JobStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to update input ref: %w", err)
	}
	return s.checkMutated(ctx, jobID, result)
}

// SetCompleted transitions a job to COMPLETED with its produced artifacts.
func (s *Store) SetCompleted(ctx context.Context, jobID string, results domain.ClipArtifacts, progressMessage string) error {
	query := `
		UPDATE clip_jobs
		SET status = $1,
		    progress_message = $2,
		    results = $3,
		    error_message = '',
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $4
		  AND status NOT IN ($1, $5)
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStatusCompleted, progressMessage, results, jobID, domain.JobStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	if err := s.checkMutated(ctx, jobID, result); err != nil {
		return err
	}

	s.logger.Info("Job completed",
		slog.String("job_id", jobID),
		slog.Int("clips", len(results)),
	)
	return nil
}

// SetFailed transitions a job to FAILED with a descriptive error message.
func (s *Store) SetFailed(ctx context.Context, jobID, errorMessage string) error {
	query := `
		UPDATE clip_jobs
		SET status = $1,
		    progress_message = $2,
		    error_message = $3,
		    results = '[]',
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $4
		  AND status NOT IN ($1, $5)
	`

	progress := "Error: " + errorMessage
	result, err := s.db.ExecContext(ctx, query, domain.JobStatusFailed, progress, errorMessage, jobID, domain.JobStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}

	if err := s.checkMutated(ctx, jobID, result); err != nil {
		return err
	}

	s.logger.Info("Job marked as failed",
		slog.String("job_id", jobID),
		slog.String("error", errorMessage),
	)
	return nil
}

// Delete removes a job record.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM clip_jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// checkMutated distinguishes "job does not exist" from "job is terminal"
// when a guarded update matched no row. The pipeline by construction never
// mutates a terminal job; the guard rejects it rather than corrupt state.
func (s *Store) checkMutated(ctx context.Context, jobID string, result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM clip_jobs WHERE job_id = $1)`, jobID); err != nil {
		return fmt.Errorf("failed to check job existence: %w", err)
	}
	if !exists {
		return domain.ErrJobNotFound
	}
	return domain.ErrInvalidTransition
}
