package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/iyya/iyya/internal/config"
	"github.com/iyya/iyya/internal/index"
	"github.com/iyya/iyya/internal/log"
)

// ErrEmptyIndex indicates a module's collection has no records yet.
// Queries must fail with it before any generation is attempted.
var ErrEmptyIndex = errors.New("vector index is empty")

// emptyIndexError carries the user-facing remediation message.
func emptyIndexError(moduleID string) error {
	return fmt.Errorf("%w: La base vectorielle est vide. Exécutez: iyya sync -module %s", ErrEmptyIndex, moduleID)
}

// Builder constructs a module's engine and reports its index state.
// Provided by the application wiring.
type Builder func(ctx context.Context, m config.Module) (*Engine, index.Info, error)

// Registry caches one Engine per module, keyed by (module ID, config
// version), so repeated queries reuse the built resources. A module
// whose index is still empty is never cached: the next query after a
// sync rebuilds and succeeds.
//
// Safe for concurrent use.
type Registry struct {
	cfg    *config.Config
	build  Builder
	logger log.Logger

	mu      sync.RWMutex
	engines map[string]*Engine
}

// NewRegistry creates a Registry.
func NewRegistry(cfg *config.Config, build Builder, logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Registry{
		cfg:     cfg,
		build:   build,
		logger:  logger,
		engines: make(map[string]*Engine),
	}
}

// Engine returns the cached engine for the module, building it on first
// use. Returns ErrEmptyIndex (wrapped) when the module's collection has
// zero records, without invoking generation.
func (r *Registry) Engine(ctx context.Context, moduleID string) (*Engine, error) {
	m, err := r.cfg.ModuleByID(moduleID)
	if err != nil {
		return nil, err
	}
	if !m.Enabled {
		return nil, fmt.Errorf("%w: module %q is disabled", config.ErrUnknownModule, moduleID)
	}

	key := m.ID + "@" + m.Version()

	r.mu.RLock()
	engine, ok := r.engines[key]
	r.mu.RUnlock()
	if ok {
		return engine, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock; another request may have built it.
	if engine, ok := r.engines[key]; ok {
		return engine, nil
	}

	engine, info, err := r.build(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("building module %s: %w", m.ID, err)
	}
	if !info.Exists || info.Count == 0 {
		return nil, emptyIndexError(m.ID)
	}

	r.engines[key] = engine
	r.logger.Info("module resources built", "module", m.ID, "version", m.Version(), "index_count", info.Count)
	return engine, nil
}

// Invalidate drops every cached engine of the module, forcing a rebuild
// on next use. Called after a sync or a configuration change.
func (r *Registry) Invalidate(moduleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.engines {
		if strings.HasPrefix(key, moduleID+"@") {
			delete(r.engines, key)
		}
	}
}
