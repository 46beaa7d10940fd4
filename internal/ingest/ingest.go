// Package ingest drives the document-to-vector sync pipeline.
//
// The Syncer walks a module's document folder, loads and chunks each
// source file, and writes the chunks to the module's collection. Re-sync
// is idempotent at file granularity: existing records for a file are
// deleted before its chunks are re-inserted.
//
// Writes are serialized per module with a file lock, so a full sync and
// an incremental single-file sync never race on the same collection.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/iyya/iyya/internal/chunk"
	"github.com/iyya/iyya/internal/config"
	"github.com/iyya/iyya/internal/document"
	"github.com/iyya/iyya/internal/index"
	"github.com/iyya/iyya/internal/log"
)

// ErrSyncInProgress indicates another sync holds the module's lock.
var ErrSyncInProgress = errors.New("sync already in progress for module")

// Collection is the slice of the vector index the Syncer writes to.
// *index.Collection satisfies it; tests substitute a fake.
type Collection interface {
	Ensure(ctx context.Context) error
	Upsert(ctx context.Context, chunks []chunk.Chunk) error
	DeleteByFile(ctx context.Context, fileName string) (int64, error)
	Info(ctx context.Context) (index.Info, error)
	Clear(ctx context.Context) error
}

// CollectionFor resolves the Collection for a module. Provided by the
// application wiring so the Syncer stays independent of the pgx layer.
type CollectionFor func(m config.Module) Collection

// FileError records one source file that failed during a batch sync.
type FileError struct {
	File string `json:"file"`
	Err  error  `json:"-"`
}

// Message returns the human-readable error text for reports.
func (e FileError) Message() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

// MarshalJSON flattens the wrapped error into a message string.
func (e FileError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		File  string `json:"file"`
		Error string `json:"error"`
	}{File: e.File, Error: e.Err.Error()})
}

// Report is the structured outcome of one sync run.
type Report struct {
	ModuleID       string      `json:"module_id"`
	FilesProcessed int         `json:"files_processed"`
	ChunksAdded    int         `json:"chunks_added"`
	Errors         []FileError `json:"errors"`
	Success        bool        `json:"success"`
}

// Status reports a module's folder and index state.
type Status struct {
	ModuleID   string `json:"module_id"`
	Folder     string `json:"folder"`
	FileCount  int    `json:"file_count"`
	IndexCount int64  `json:"index_count"`
	Synced     bool   `json:"synced"`
}

// Syncer is the single writer to module collections.
type Syncer struct {
	cfg         *config.Config
	collections CollectionFor
	lockDir     string
	logger      log.Logger
}

// NewSyncer creates a Syncer. Lock files are kept in the system temp
// directory, one per module.
func NewSyncer(cfg *config.Config, collections CollectionFor, logger log.Logger) *Syncer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Syncer{
		cfg:         cfg,
		collections: collections,
		lockDir:     os.TempDir(),
		logger:      logger,
	}
}

// lock acquires the module's write lock without blocking.
// The returned release function is safe to defer.
func (s *Syncer) lock(moduleID string) (func(), error) {
	fl := flock.New(filepath.Join(s.lockDir, "iyya-sync-"+moduleID+".lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring sync lock for %s: %w", moduleID, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrSyncInProgress, moduleID)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("releasing sync lock", "module", moduleID, "error", err)
		}
	}, nil
}

// Sync (re)indexes every source file of the module, in deterministic
// order. Loader failures are collected per file and do not abort the
// run; an unreachable index does. With clearFirst the collection is
// emptied before indexing.
func (s *Syncer) Sync(ctx context.Context, moduleID string, clearFirst bool) (*Report, error) {
	m, err := s.cfg.ModuleByID(moduleID)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(m.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	folder := s.cfg.ModuleFolder(m)
	// Missing folder means zero files, not an error
	if err := os.MkdirAll(folder, 0o750); err != nil {
		return nil, fmt.Errorf("ensuring document folder %s: %w", folder, err)
	}

	coll := s.collections(m)
	if err := coll.Ensure(ctx); err != nil {
		return nil, err
	}

	if clearFirst {
		if err := coll.Clear(ctx); err != nil {
			return nil, err
		}
	}

	files, err := document.ListFiles(folder)
	if err != nil {
		return nil, err
	}

	s.logger.Info("sync started",
		"module", m.ID, "folder", folder, "files", len(files), "clear_first", clearFirst)

	splitter := chunk.NewSplitter(m.ChunkSize, m.ChunkOverlap)
	report := &Report{ModuleID: m.ID}

	for _, path := range files {
		added, err := s.syncOne(ctx, coll, splitter, m.ID, path)
		if err != nil {
			// Backend loss aborts the whole run; anything else is a
			// per-file failure and the batch continues.
			if errors.Is(err, index.ErrUnavailable) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			report.Errors = append(report.Errors, FileError{File: filepath.Base(path), Err: err})
			s.logger.Warn("file sync failed", "module", m.ID, "file", filepath.Base(path), "error", err)
			continue
		}
		report.FilesProcessed++
		report.ChunksAdded += added
	}

	report.Success = len(report.Errors) == 0
	s.logger.Info("sync finished",
		"module", m.ID,
		"files_processed", report.FilesProcessed,
		"chunks_added", report.ChunksAdded,
		"errors", len(report.Errors),
		"success", report.Success)
	return report, nil
}

// SyncAll syncs every enabled module in configuration order.
// A failed module aborts the run; completed reports are returned
// alongside the error.
func (s *Syncer) SyncAll(ctx context.Context, clearFirst bool) ([]*Report, error) {
	var reports []*Report
	for _, m := range s.cfg.EnabledModules() {
		report, err := s.Sync(ctx, m.ID, clearFirst)
		if err != nil {
			return reports, fmt.Errorf("syncing module %s: %w", m.ID, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// SyncFile is the incremental-update path: it re-indexes a single file,
// deleting its existing records first. Unlike a batch sync, a load
// failure here is fatal.
func (s *Syncer) SyncFile(ctx context.Context, moduleID, path string) (*Report, error) {
	m, err := s.cfg.ModuleByID(moduleID)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(m.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	coll := s.collections(m)
	if err := coll.Ensure(ctx); err != nil {
		return nil, err
	}

	splitter := chunk.NewSplitter(m.ChunkSize, m.ChunkOverlap)
	added, err := s.syncOne(ctx, coll, splitter, m.ID, path)
	if err != nil {
		return nil, err
	}

	s.logger.Info("file synced", "module", m.ID, "file", filepath.Base(path), "chunks_added", added)
	return &Report{
		ModuleID:       m.ID,
		FilesProcessed: 1,
		ChunksAdded:    added,
		Success:        true,
	}, nil
}

// syncOne loads, chunks and writes a single file, pre-deleting its
// stale records so the operation is idempotent.
func (s *Syncer) syncOne(ctx context.Context, coll Collection, splitter *chunk.Splitter, moduleID, path string) (int, error) {
	fileName := filepath.Base(path)

	units, err := document.Load(path)
	if err != nil {
		return 0, err
	}

	chunks := splitter.SplitDocument(moduleID, fileName, units)

	if _, err := coll.DeleteByFile(ctx, fileName); err != nil {
		return 0, err
	}
	if err := coll.Upsert(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Status reports folder file count and index record count for a module.
// A missing folder counts as zero files.
func (s *Syncer) Status(ctx context.Context, moduleID string) (*Status, error) {
	m, err := s.cfg.ModuleByID(moduleID)
	if err != nil {
		return nil, err
	}

	folder := s.cfg.ModuleFolder(m)
	fileCount := 0
	if files, err := document.ListFiles(folder); err == nil {
		fileCount = len(files)
	}

	info, err := s.collections(m).Info(ctx)
	if err != nil {
		return nil, err
	}

	return &Status{
		ModuleID:   m.ID,
		Folder:     folder,
		FileCount:  fileCount,
		IndexCount: info.Count,
		Synced:     info.Exists,
	}, nil
}
