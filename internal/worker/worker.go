package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cuongbtq/clipper-be/internal/clip/fetch"
	"github.com/cuongbtq/clipper-be/internal/clip/pipeline"
	"github.com/cuongbtq/clipper-be/internal/clip/store"
	"github.com/cuongbtq/clipper-be/shared/rabbitmq"
)

// JobMessage is a clip job reference consumed from the queue.
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Store         *store.Store
	Pipeline      *pipeline.Pipeline
	Fetcher       *fetch.Fetcher
	RabbitClient  *rabbitmq.Client
	Concurrency   int
	PrefetchCount int
	JobTimeout    time.Duration
	SweepInterval time.Duration
	MaxCacheAge   time.Duration
}

// Worker consumes clip job messages and drives each one through the
// pipeline on a pool of goroutines. One message is one end-to-end pipeline
// run; the pipeline itself guarantees the job lands in a terminal state.
type Worker struct {
	logger        *slog.Logger
	store         *store.Store
	pipeline      *pipeline.Pipeline
	fetcher       *fetch.Fetcher
	rabbitClient  *rabbitmq.Client
	concurrency   int
	prefetchCount int
	jobTimeout    time.Duration
	sweepInterval time.Duration
	maxCacheAge   time.Duration
	workerID      string
	jobsChan      chan *JobMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "clipper-worker"
	}

	return &Worker{
		logger:        cfg.Logger,
		store:         cfg.Store,
		pipeline:      cfg.Pipeline,
		fetcher:       cfg.Fetcher,
		rabbitClient:  cfg.RabbitClient,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		jobTimeout:    cfg.JobTimeout,
		sweepInterval: cfg.SweepInterval,
		maxCacheAge:   cfg.MaxCacheAge,
		workerID:      fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		jobsChan:      make(chan *JobMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming and processing jobs until ctx is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	go w.startCacheSweeper(ctx)
	go w.startMessageDispatcher(ctx, deliveries)

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")
	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
