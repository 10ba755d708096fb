package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/clipper-be/internal/clip/artifact"
	"github.com/cuongbtq/clipper-be/internal/clip/fetch"
	"github.com/cuongbtq/clipper-be/internal/clip/media"
	"github.com/cuongbtq/clipper-be/internal/clip/pipeline"
	"github.com/cuongbtq/clipper-be/internal/clip/stage"
	"github.com/cuongbtq/clipper-be/internal/clip/store"
	"github.com/cuongbtq/clipper-be/internal/config"
	"github.com/cuongbtq/clipper-be/internal/worker"
	"github.com/cuongbtq/clipper-be/shared/logger"
	"github.com/cuongbtq/clipper-be/shared/postgresql"
	"github.com/cuongbtq/clipper-be/shared/rabbitmq"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	jobStore := store.NewStore(dbClient.GetDB(), appLogger.Logger)

	artifactStore, err := artifact.NewStore(cfg.Storage.OutputDir, cfg.Storage.CacheDir, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	fetcher, err := fetch.NewFetcher(&fetch.Config{
		CacheDir:  cfg.Storage.CacheDir,
		Timeout:   cfg.Fetcher.Timeout.Std(),
		MaxBytes:  cfg.Fetcher.MaxSizeMB << 20,
		ChunkSize: cfg.Fetcher.ChunkSizeByte,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize fetcher: %w", err)
	}

	stages := initStageRunner(&cfg.Media, appLogger.Logger)

	clipPipeline := pipeline.NewPipeline(jobStore, fetcher, stages, artifactStore, appLogger.Logger)

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:        appLogger.Logger,
		Store:         jobStore,
		Pipeline:      clipPipeline,
		Fetcher:       fetcher,
		RabbitClient:  rabbitClient,
		Concurrency:   cfg.Worker.Concurrency,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
		JobTimeout:    cfg.Worker.JobTimeout.Std(),
		SweepInterval: cfg.Worker.SweepInterval.Std(),
		MaxCacheAge:   cfg.Worker.MaxCacheAge.Std(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout.Std())
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	if dbClient != nil {
		dbClient.Close()
	}
	if rabbitClient != nil {
		rabbitClient.Close()
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime.Std(),
		ConnMaxIdleTime: cfg.ConnMaxIdleTime.Std(),
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval.Std(),
		Heartbeat:          cfg.Connection.Heartbeat.Std(),
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout.Std(),
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initStageRunner wires the external media tools behind the stage runner
func initStageRunner(cfg *config.MediaConfig, logger *slog.Logger) *stage.Runner {
	transcriber := media.NewWhisperTranscriber(&media.WhisperConfig{
		BinPath:   cfg.WhisperPath,
		ModelPath: cfg.WhisperModel,
		Language:  cfg.Language,
	})

	detectorCfg := media.DefaultGapDetectorConfig()
	if cfg.MinGapSec > 0 {
		detectorCfg.MinGap = cfg.MinGapSec
	}
	if cfg.MinClipSec > 0 {
		detectorCfg.MinClip = cfg.MinClipSec
	}
	if cfg.MaxClipSec > 0 {
		detectorCfg.MaxClip = cfg.MaxClipSec
	}
	detector := media.NewGapDetector(detectorCfg)

	trimmer := media.NewFFmpegTrimmer(cfg.FFmpegPath)

	return stage.NewRunner(transcriber, detector, trimmer, logger)
}
