package app

import (
	"context"
	"fmt"

	"github.com/timmy/mockup-studio/internal/config"
	"github.com/timmy/mockup-studio/internal/logger"
	"github.com/timmy/mockup-studio/internal/repository"
	"github.com/timmy/mockup-studio/internal/service"
	"github.com/timmy/mockup-studio/internal/storage"
	"gorm.io/gorm"
)

// App is the service graph shared by the API server and the batch CLI.
type App struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            *gorm.DB
	Queue         *service.JobQueue
	Broker        *service.Broker
	Samples       *service.SampleStore
	GenerationLog *service.GenerationLogService
	Runner        *service.JobRunner
	Dispatcher    *service.Dispatcher
}

// NewLogger builds the process logger from configuration and installs it as the default.
func NewLogger(cfg *config.LogConfig, serviceName string) *logger.Logger {
	log := logger.New(&logger.Config{
		Level:       cfg.Level,
		Format:      cfg.Format,
		ServiceName: serviceName,
		File:        cfg.File,
		FileOnly:    cfg.FileOnly,
		MaxSizeMB:   cfg.MaxSizeMB,
		MaxBackups:  cfg.MaxBackups,
		MaxAgeDays:  cfg.MaxAgeDays,
		Compress:    cfg.Compress,
	})
	logger.SetDefaultLogger(log)
	return log
}

// New wires the database, object storage, generator and queue together.
// Parameters:
//   - ctx: context used for startup calls such as bucket checks.
//   - cfg: validated configuration.
//   - log: process logger.
//
// Returns:
//   - *App: service graph; the dispatcher is not started yet.
//   - error: non-nil if a backing service cannot be initialized.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var objects storage.ObjectStorage
	if cfg.Storage.Enabled {
		objects, err = storage.NewStorage(&cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
		}
		log.WithField("bucket", cfg.Storage.Bucket).Info("Object storage enabled")
	}

	generator := service.NewGeminiGenerator(&service.GeminiConfig{
		APIKey:  cfg.Generator.APIKey,
		BaseURL: cfg.Generator.BaseURL,
		Model:   cfg.Generator.Model,
		Timeout: cfg.Generator.Timeout,
	})
	if cfg.Generator.APIKey == "" {
		log.Warn("No generator API key configured; generation tasks will fail")
	}

	queue := service.NewJobQueue()
	broker := service.NewBroker(cfg.Queue.UpdateBuffer)
	samples := service.NewSampleStore(cfg.Queue.Samples)
	genLog := service.NewGenerationLogService(
		repository.NewGenerationLogRepository(db),
		objects,
		&service.GenerationLogConfig{
			Prefix: cfg.Storage.Prefix,
			Owner:  cfg.Queue.Owner,
		},
	)
	runner := service.NewJobRunner(
		generator,
		service.NewImageReferenceResolver(cfg.Queue.ReferenceMaxDim),
		genLog,
		queue,
		broker,
		samples,
		&service.RunnerConfig{TaskTimeout: cfg.Queue.TaskTimeout},
	)
	dispatcher := service.NewDispatcher(queue, runner, broker, cfg.Queue.BatchMode)

	log.WithFields(logger.Fields{
		"model":      generator.GetModel(),
		"batch_mode": cfg.Queue.BatchMode,
		"samples":    len(samples.Samples()),
	}).Info("Batch queue ready")

	return &App{
		Config:        cfg,
		Logger:        log,
		DB:            db,
		Queue:         queue,
		Broker:        broker,
		Samples:       samples,
		GenerationLog: genLog,
		Runner:        runner,
		Dispatcher:    dispatcher,
	}, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
