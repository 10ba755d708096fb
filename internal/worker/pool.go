package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/clipper-be/internal/clip/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency
// configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg, ok := <-w.jobsChan:
			if !ok {
				return
			}

			w.logger.Info("Worker received job",
				slog.String("worker_name", workerName),
				slog.String("job_id", msg.JobID),
			)

			err := w.processJob(ctx, msg)

			channel := w.rabbitClient.GetChannel()
			if channel == nil {
				w.logger.Error("Failed to get RabbitMQ channel for ACK/NACK",
					slog.String("worker_name", workerName),
					slog.String("job_id", msg.JobID),
				)
				continue
			}

			if err != nil {
				// The pipeline never surfaces failures; an error here means
				// we could not even load the job, so the message is either
				// garbage (no requeue) or hit a transient store error
				// (requeue for another attempt).
				requeue := !errors.Is(err, domain.ErrJobNotFound)
				if nackErr := channel.Nack(msg.DeliveryTag, false, requeue); nackErr != nil {
					w.logger.Error("Failed to NACK message",
						slog.String("worker_name", workerName),
						slog.String("job_id", msg.JobID),
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			if ackErr := channel.Ack(msg.DeliveryTag, false); ackErr != nil {
				w.logger.Error("Failed to ACK message",
					slog.String("worker_name", workerName),
					slog.String("job_id", msg.JobID),
					slog.String("error", ackErr.Error()),
				)
			}
		}
	}
}

// processJob loads the job record and runs the clip pipeline for it, under
// the configured per-job timeout. The pipeline handles every processing
// failure itself; only a failure to load the job comes back as an error.
func (w *Worker) processJob(ctx context.Context, msg *JobMessage) error {
	job, err := w.store.GetByID(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			w.logger.Warn("Job not found, dropping message",
				slog.String("job_id", msg.JobID),
			)
			return err
		}
		return fmt.Errorf("failed to load job: %w", err)
	}

	if domain.IsTerminalStatus(job.Status) {
		// Redelivered message for an already finished job
		w.logger.Warn("Job already in terminal state, skipping",
			slog.String("job_id", msg.JobID),
			slog.String("status", job.Status),
		)
		return nil
	}

	jobCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	w.pipeline.Run(jobCtx, job.JobID, job.InputRef)

	w.logger.Info("Pipeline run finished",
		slog.String("job_id", msg.JobID),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}
