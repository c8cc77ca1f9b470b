package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"medvault/service"
	"medvault/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngester struct {
	seen []string
}

func (f *fakeIngester) Ingest(ctx context.Context, req service.IngestRequest) (service.IngestResult, error) {
	f.seen = append(f.seen, filepath.Base(req.Path))
	if strings.Contains(req.Path, "broken") {
		return service.IngestResult{}, errors.New("error processing document")
	}
	return service.IngestResult{RecordID: int64(len(f.seen))}, nil
}

func newTestWatcher(t *testing.T) (*Watcher, *fakeIngester, types.LoaderConfig) {
	t.Helper()
	root := t.TempDir()
	cfg := types.LoaderConfig{
		SourceDir:  filepath.Join(root, "source"),
		ArchiveDir: filepath.Join(root, "archive"),
		BadDir:     filepath.Join(root, "bad"),
		OwnerLabel: "drop-folder",
	}
	ing := &fakeIngester{}
	w, err := New(ing, cfg)
	require.NoError(t, err)
	return w, ing, cfg
}

func dropFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 stub"), 0644))
	return path
}

func filesUnder(t *testing.T, root string) []string {
	t.Helper()
	var names []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			names = append(names, info.Name())
		}
		return nil
	})
	require.NoError(t, err)
	return names
}

func TestProcessArchivesIngestedFile(t *testing.T) {
	w, ing, cfg := newTestWatcher(t)
	path := dropFile(t, cfg.SourceDir, "report.pdf")

	w.process(context.Background(), path)

	assert.Equal(t, []string{"report.pdf"}, ing.seen)
	assert.Equal(t, []string{"report.pdf"}, filesUnder(t, cfg.ArchiveDir))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "source file should be removed after archiving")
}

func TestProcessMovesFailedFileToBadDir(t *testing.T) {
	w, _, cfg := newTestWatcher(t)
	path := dropFile(t, cfg.SourceDir, "broken.pdf")

	w.process(context.Background(), path)

	assert.Empty(t, filesUnder(t, cfg.ArchiveDir))
	assert.Equal(t, []string{"broken.pdf"}, filesUnder(t, cfg.BadDir))
}

func TestProcessResolvesArchiveNameConflicts(t *testing.T) {
	w, _, cfg := newTestWatcher(t)

	w.process(context.Background(), dropFile(t, cfg.SourceDir, "report.pdf"))
	w.process(context.Background(), dropFile(t, cfg.SourceDir, "report.pdf"))

	archived := filesUnder(t, cfg.ArchiveDir)
	require.Len(t, archived, 2)
	assert.Contains(t, archived, "report.pdf")
	assert.Contains(t, archived, "report_1.pdf")
}

func TestSweepPicksUpExistingPDFs(t *testing.T) {
	w, ing, cfg := newTestWatcher(t)
	dropFile(t, cfg.SourceDir, "a.pdf")
	dropFile(t, cfg.SourceDir, "b.PDF")
	dropFile(t, cfg.SourceDir, "notes.txt")

	w.sweep(context.Background())

	assert.ElementsMatch(t, []string{"a.pdf", "b.PDF"}, ing.seen)
}
