// Package app wires the application together: configuration, database
// pool, Genkit, the per-module vector collections, the sync orchestrator
// and the RAG registry.
package app

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iyya/iyya/internal/config"
	"github.com/iyya/iyya/internal/index"
	"github.com/iyya/iyya/internal/ingest"
	"github.com/iyya/iyya/internal/log"
	"github.com/iyya/iyya/internal/rag"
)

// App holds the long-lived application resources.
type App struct {
	Config   *config.Config
	Logger   log.Logger
	Pool     *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Registry *rag.Registry
	Syncer   *ingest.Syncer

	cleanup func()
}

// Setup builds the application. Fails fast on invalid configuration,
// unreachable database or Genkit initialization problems.
func Setup(ctx context.Context, logger log.Logger) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return setupWithConfig(ctx, cfg, logger)
}

// setupWithConfig wires everything from an already-validated config.
// Split out so integration tests can inject their own database settings.
func setupWithConfig(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	pool, cleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	g, err := provideGenkit(ctx)
	if err != nil {
		cleanup()
		return nil, err
	}
	embedder := provideEmbedder(g, cfg)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Pool:     pool,
		Genkit:   g,
		Embedder: embedder,
		cleanup:  cleanup,
	}

	a.Syncer = ingest.NewSyncer(cfg, func(m config.Module) ingest.Collection {
		return a.Collection(m)
	}, logger.With("component", "ingest"))

	a.Registry = rag.NewRegistry(cfg, a.buildModule, logger.With("component", "rag"))

	return a, nil
}

// Collection returns the vector collection for a module.
func (a *App) Collection(m config.Module) *index.Collection {
	return index.New(index.NewPG(a.Pool), a.Embedder, m.ID, m.Collection,
		a.Logger.With("component", "index", "collection", m.Collection))
}

// buildModule is the rag.Builder: it assembles the engine for a module
// and reports the collection state so the registry can refuse empty
// indexes before any generation call.
func (a *App) buildModule(ctx context.Context, m config.Module) (*rag.Engine, index.Info, error) {
	coll := a.Collection(m)
	info, err := coll.Info(ctx)
	if err != nil {
		return nil, index.Info{}, err
	}

	engine := rag.NewEngine(a.Genkit, a.Config.FullModelName(), coll, m, a.Config.TopK,
		a.Logger.With("component", "engine", "module", m.ID))
	return engine, info, nil
}

// Close releases the application resources.
func (a *App) Close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}
