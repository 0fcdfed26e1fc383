package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/apiscribe/apiscribe/internal/config"
	"github.com/apiscribe/apiscribe/internal/differ"
	"github.com/apiscribe/apiscribe/internal/handlers"
	"github.com/apiscribe/apiscribe/internal/importer"
	"github.com/apiscribe/apiscribe/internal/inference"
	"github.com/apiscribe/apiscribe/internal/registry"
	"github.com/apiscribe/apiscribe/internal/store"
)

// ComponentFactory creates the component bundle commands run against. The
// abstraction exists so command tests can substitute a canned bundle.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

type concreteFactory struct{}

// NewComponentFactory creates the production component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create wires the registry, inference engine, differ, and importers. The
// database is optional: without a configured URL the registry runs without a
// persistence backend and imports stay in-memory.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	components := &Components{log: logger.Named("service")}

	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	var regStore registry.Store
	if url := cfg.Database().URL; url != "" {
		dbPool, err := pgxpool.New(ctx, url)
		if err != nil {
			initializationErr = fmt.Errorf("failed to create database connection pool: %w", err)
			return nil, initializationErr
		}
		components.DBPool = dbPool

		dbStore, err := store.New(ctx, dbPool, logger)
		if err != nil {
			initializationErr = fmt.Errorf("failed to initialize database store: %w", err)
			return nil, initializationErr
		}
		components.Store = dbStore
		regStore = dbStore
		logger.Debug("Database store initialized.")
	} else {
		logger.Debug("No database configured, imports will not be persisted.")
	}

	components.Registry = registry.New(logger, regStore, cfg.Registry().HistorySize)
	registerHandlers(components.Registry)
	logger.Debug("Format handler registry initialized.",
		zap.Strings("formats", components.Registry.Formats()))

	components.Engine = inference.NewEngine(cfg.Inference(), logger)
	components.Differ = differ.New(logger)
	components.Fetcher = importer.NewFetcher(cfg.Importer(), logger)
	components.Git = importer.NewGitImporter(logger)

	logger.Debug("All components initialized.")
	return components, nil
}

// registerHandlers installs the built-in format handlers. Order matters:
// detection walks the handlers in registration order and formats with
// cheaper, more precise sniffs go first.
func registerHandlers(reg *registry.Registry) {
	reg.RegisterHandler(handlers.NewCurlHandler())
	reg.RegisterHandler(handlers.NewPostmanHandler())
	reg.RegisterHandler(handlers.NewInsomniaHandler())
	reg.RegisterHandler(handlers.NewOpenAPIHandler())
	reg.RegisterHandler(handlers.NewAsyncAPIHandler())
	reg.RegisterHandler(handlers.NewRAMLHandler())
	reg.RegisterHandler(handlers.NewWADLHandler())
	reg.RegisterHandler(handlers.NewWSDLHandler())
	reg.RegisterHandler(handlers.NewHARHandler())
	reg.RegisterHandler(handlers.NewGraphQLHandler())
}
