// Package service performs dependency injection for the CLI commands. The
// factory assembles the registry, inference engine, differ, and optional
// persistence into one Components bundle with a single shutdown path.
package service

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/apiscribe/apiscribe/internal/differ"
	"github.com/apiscribe/apiscribe/internal/importer"
	"github.com/apiscribe/apiscribe/internal/inference"
	"github.com/apiscribe/apiscribe/internal/registry"
	"github.com/apiscribe/apiscribe/internal/store"
)

// Components holds the initialized services commands depend on. Store and
// DBPool are nil when no database is configured; import then runs in
// preview-style mode without persistence.
type Components struct {
	Registry *registry.Registry
	Engine   *inference.Engine
	Differ   *differ.Differ
	Fetcher  *importer.Fetcher
	Git      *importer.GitImporter
	Store    *store.Store
	DBPool   *pgxpool.Pool

	log *zap.Logger
}

// Shutdown releases held resources. Safe to call on a partially initialized
// bundle.
func (c *Components) Shutdown() {
	if c.log != nil {
		c.log.Debug("Shutting down components.")
	}
	if c.DBPool != nil {
		c.DBPool.Close()
		c.DBPool = nil
	}
}
