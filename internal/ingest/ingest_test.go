package ingest

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyya/iyya/internal/chunk"
	"github.com/iyya/iyya/internal/config"
	"github.com/iyya/iyya/internal/index"
	"github.com/iyya/iyya/internal/log"
)

// fakeCollection tracks chunk counts per file in memory.
type fakeCollection struct {
	rows      map[string]int
	cleared   int
	ensureErr error
	upsertErr error
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{rows: make(map[string]int)}
}

func (f *fakeCollection) Ensure(ctx context.Context) error { return f.ensureErr }

func (f *fakeCollection) Upsert(ctx context.Context, chunks []chunk.Chunk) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, c := range chunks {
		f.rows[c.FileName]++
	}
	return nil
}

func (f *fakeCollection) DeleteByFile(ctx context.Context, fileName string) (int64, error) {
	n := f.rows[fileName]
	delete(f.rows, fileName)
	return int64(n), nil
}

func (f *fakeCollection) Info(ctx context.Context) (index.Info, error) {
	return index.Info{Exists: f.total() > 0, Count: int64(f.total())}, nil
}

func (f *fakeCollection) Clear(ctx context.Context) error {
	f.cleared++
	f.rows = make(map[string]int)
	return nil
}

func (f *fakeCollection) total() int {
	n := 0
	for _, c := range f.rows {
		n += c
	}
	return n
}

// writeDocx builds a minimal .docx with one paragraph per given text.
func writeDocx(t *testing.T, path string, paragraphs ...string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)

	body := ""
	for _, p := range paragraphs {
		body += `<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body + `</w:body></w:document>`
	_, err = w.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func newTestSyncer(t *testing.T, coll Collection) (*Syncer, string) {
	t.Helper()

	root := t.TempDir()
	cfg := &config.Config{
		ChunkSize:     1500,
		ChunkOverlap:  300,
		DocumentsRoot: root,
		Modules: []config.Module{
			{
				ID:              "cgi",
				DocumentsFolder: "cgi",
				Collection:      "cgi_maroc_docs",
				SystemPrompt:    "x {context} {question}",
				ChunkSize:       1500,
				ChunkOverlap:    300,
				Enabled:         true,
			},
		},
	}

	s := NewSyncer(cfg, func(m config.Module) Collection { return coll }, log.NewNop())
	s.lockDir = t.TempDir()

	folder := filepath.Join(root, "cgi")
	require.NoError(t, os.MkdirAll(folder, 0o750))
	return s, folder
}

func TestSync(t *testing.T) {
	coll := newFakeCollection()
	s, folder := newTestSyncer(t, coll)

	writeDocx(t, filepath.Join(folder, "code_a.docx"), "Article 1 : dispositions générales.")
	writeDocx(t, filepath.Join(folder, "code_b.docx"), "Article 2 : taux applicables.")

	report, err := s.Sync(context.Background(), "cgi", false)
	require.NoError(t, err)

	assert.Equal(t, "cgi", report.ModuleID)
	assert.Equal(t, 2, report.FilesProcessed)
	assert.Equal(t, 2, report.ChunksAdded)
	assert.Empty(t, report.Errors)
	assert.True(t, report.Success)
	assert.Equal(t, 2, coll.total())
}

func TestSyncEmptyFolder(t *testing.T) {
	coll := newFakeCollection()
	s, _ := newTestSyncer(t, coll)

	report, err := s.Sync(context.Background(), "cgi", false)
	require.NoError(t, err)

	assert.Zero(t, report.FilesProcessed)
	assert.True(t, report.Success)
}

func TestSyncCreatesMissingFolder(t *testing.T) {
	coll := newFakeCollection()
	s, folder := newTestSyncer(t, coll)
	require.NoError(t, os.Remove(folder))

	report, err := s.Sync(context.Background(), "cgi", false)
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.DirExists(t, folder)
}

func TestSyncCollectsFileErrors(t *testing.T) {
	coll := newFakeCollection()
	s, folder := newTestSyncer(t, coll)

	require.NoError(t, os.WriteFile(filepath.Join(folder, "broken.docx"), []byte("not a zip"), 0o600))
	writeDocx(t, filepath.Join(folder, "valide.docx"), "Article 3.")

	report, err := s.Sync(context.Background(), "cgi", false)
	require.NoError(t, err)

	// The broken file is recorded, the valid one still processed
	assert.Equal(t, 1, report.FilesProcessed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "broken.docx", report.Errors[0].File)
	assert.False(t, report.Success)
}

func TestSyncUnavailableIndexAborts(t *testing.T) {
	coll := newFakeCollection()
	coll.ensureErr = index.ErrUnavailable
	s, folder := newTestSyncer(t, coll)
	writeDocx(t, filepath.Join(folder, "code.docx"), "Article 1.")

	_, err := s.Sync(context.Background(), "cgi", false)
	assert.ErrorIs(t, err, index.ErrUnavailable)
}

func TestSyncUnknownModule(t *testing.T) {
	s, _ := newTestSyncer(t, newFakeCollection())

	_, err := s.Sync(context.Background(), "nope", false)
	assert.ErrorIs(t, err, config.ErrUnknownModule)
}

func TestResyncIsIdempotent(t *testing.T) {
	coll := newFakeCollection()
	s, folder := newTestSyncer(t, coll)
	writeDocx(t, filepath.Join(folder, "code.docx"), "Article 1 : dispositions générales.")

	first, err := s.Sync(context.Background(), "cgi", false)
	require.NoError(t, err)
	countAfterFirst := coll.total()

	second, err := s.Sync(context.Background(), "cgi", false)
	require.NoError(t, err)

	assert.Equal(t, first.ChunksAdded, second.ChunksAdded)
	assert.Equal(t, countAfterFirst, coll.total(), "re-sync must not duplicate chunks")
}

func TestSyncClearFirst(t *testing.T) {
	coll := newFakeCollection()
	coll.rows["stale.pdf"] = 10
	s, folder := newTestSyncer(t, coll)
	writeDocx(t, filepath.Join(folder, "code.docx"), "Article 1.")

	report, err := s.Sync(context.Background(), "cgi", true)
	require.NoError(t, err)

	assert.Equal(t, 1, coll.cleared)
	assert.True(t, report.Success)
	assert.Zero(t, coll.rows["stale.pdf"], "stale records removed by clear")
}

func TestSyncRemovedFileShrinksIndex(t *testing.T) {
	coll := newFakeCollection()
	s, folder := newTestSyncer(t, coll)

	pathA := filepath.Join(folder, "code_a.docx")
	writeDocx(t, pathA, "Article 1.")
	writeDocx(t, filepath.Join(folder, "code_b.docx"), "Article 2.")

	_, err := s.Sync(context.Background(), "cgi", false)
	require.NoError(t, err)
	before := coll.total()
	removed := coll.rows["code_a.docx"]

	require.NoError(t, os.Remove(pathA))
	_, err = s.Sync(context.Background(), "cgi", true)
	require.NoError(t, err)

	assert.Equal(t, before-removed, coll.total())
}

func TestSyncFile(t *testing.T) {
	coll := newFakeCollection()
	s, folder := newTestSyncer(t, coll)

	path := filepath.Join(folder, "code.docx")
	writeDocx(t, path, "Article 1.")

	report, err := s.SyncFile(context.Background(), "cgi", path)
	require.NoError(t, err)

	assert.Equal(t, 1, report.FilesProcessed)
	assert.True(t, report.Success)

	// Incremental re-sync of the same file does not duplicate
	before := coll.total()
	_, err = s.SyncFile(context.Background(), "cgi", path)
	require.NoError(t, err)
	assert.Equal(t, before, coll.total())
}

func TestSyncFileLoadFailureIsFatal(t *testing.T) {
	coll := newFakeCollection()
	s, folder := newTestSyncer(t, coll)

	path := filepath.Join(folder, "broken.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o600))

	_, err := s.SyncFile(context.Background(), "cgi", path)
	assert.Error(t, err)
}

func TestSyncAll(t *testing.T) {
	coll := newFakeCollection()
	s, folder := newTestSyncer(t, coll)
	writeDocx(t, filepath.Join(folder, "code.docx"), "Article 1.")

	reports, err := s.SyncAll(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, reports, 1)
	assert.Equal(t, "cgi", reports[0].ModuleID)
}

func TestStatus(t *testing.T) {
	coll := newFakeCollection()
	s, folder := newTestSyncer(t, coll)
	writeDocx(t, filepath.Join(folder, "code.docx"), "Article 1.")

	status, err := s.Status(context.Background(), "cgi")
	require.NoError(t, err)
	assert.Equal(t, 1, status.FileCount)
	assert.False(t, status.Synced)

	_, err = s.Sync(context.Background(), "cgi", false)
	require.NoError(t, err)

	status, err = s.Status(context.Background(), "cgi")
	require.NoError(t, err)
	assert.True(t, status.Synced)
	assert.Positive(t, status.IndexCount)
}

func TestLockIsExclusive(t *testing.T) {
	s, _ := newTestSyncer(t, newFakeCollection())

	release, err := s.lock("cgi")
	require.NoError(t, err)
	defer release()

	_, err = s.lock("cgi")
	assert.ErrorIs(t, err, ErrSyncInProgress)
}

func TestUpsertFailureRecordedPerFile(t *testing.T) {
	coll := newFakeCollection()
	coll.upsertErr = errors.New("write rejected")
	s, folder := newTestSyncer(t, coll)
	writeDocx(t, filepath.Join(folder, "code.docx"), "Article 1.")

	report, err := s.Sync(context.Background(), "cgi", false)
	require.NoError(t, err)

	assert.False(t, report.Success)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Message(), "write rejected")
}
