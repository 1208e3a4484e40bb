package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/assistant"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/cache"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/handler"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/interpret"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/repository"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/service"
	"github.com/FACorreiaa/sales-insight/pkg/config"
	"github.com/FACorreiaa/sales-insight/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB // nil when profiles are kept in memory
	Logger *slog.Logger

	// Repositories
	ProfileRepo repository.ProfileRepository

	// Services
	Datasets     *cache.DatasetCache
	Completer    *assistant.GeminiCompleter
	Assistant    *assistant.Assistant
	SalesService *service.SalesService

	// Handlers
	SalesHandler *handler.SalesHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase connects and migrates when a database is configured.
func (d *Dependencies) initDatabase() error {
	if !d.Config.Database.Enabled() {
		d.Logger.Info("no database configured, column profiles are kept in memory")
		return nil
	}

	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	if d.DB != nil {
		d.ProfileRepo = repository.NewPostgresProfileRepository(d.DB.Pool)
	} else {
		d.ProfileRepo = repository.NewMemoryProfileRepository()
	}

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices(ctx context.Context) error {
	datasets, err := cache.NewDatasetCache(d.Config.Import.CacheSize)
	if err != nil {
		return err
	}
	d.Datasets = datasets

	opts, err := service.NewOptions(d.Config.Import, d.Config.Assistant.Narrate)
	if err != nil {
		return err
	}

	// a nil interface value keeps Ask on the local matcher only
	var asst service.IntentAssistant
	if d.Config.Assistant.APIKey != "" {
		completer, err := assistant.NewGeminiCompleter(ctx, d.Config.Assistant.APIKey, d.Config.Assistant.Model)
		if err != nil {
			return fmt.Errorf("failed to create assistant client: %w", err)
		}
		d.Completer = completer
		d.Assistant = assistant.New(completer, assistant.Config{
			Timeout:    d.Config.Assistant.Timeout,
			MaxRetries: d.Config.Assistant.MaxRetries,
			RetryDelay: d.Config.Assistant.RetryDelay,
			Rate:       d.Config.Assistant.Rate,
			Burst:      d.Config.Assistant.Burst,
		}, d.Logger)
		asst = d.Assistant
	} else {
		d.Logger.Warn("assistant API key missing; only catalog questions can be answered")
	}

	d.SalesService = service.NewSalesService(
		d.ProfileRepo,
		d.Datasets,
		asst,
		interpret.NewKeywordMatcher(nil),
		opts,
		d.Logger,
	)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.SalesHandler = handler.NewSalesHandler(d.SalesService)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Completer != nil {
		if err := d.Completer.Close(); err != nil {
			d.Logger.Warn("failed to close assistant client", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
