package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"medvault/service"
	"medvault/types"

	"github.com/fsnotify/fsnotify"
)

// Ingester is the slice of the pipeline the watcher needs.
type Ingester interface {
	Ingest(ctx context.Context, req service.IngestRequest) (service.IngestResult, error)
}

// Watcher feeds PDFs dropped into a source directory through the ingest
// pipeline. Processed files are archived, failed ones go to the bad dir,
// both under a per-day subdirectory.
type Watcher struct {
	logger *slog.Logger
	svc    Ingester
	cfg    types.LoaderConfig
}

func New(svc Ingester, cfg types.LoaderConfig) (*Watcher, error) {
	for _, dir := range []string{cfg.SourceDir, cfg.ArchiveDir, cfg.BadDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create loader directory %s: %w", dir, err)
		}
	}
	return &Watcher{
		logger: slog.Default(),
		svc:    svc,
		cfg:    cfg,
	}, nil
}

func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.cfg.SourceDir); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.SourceDir, err)
	}
	w.logger.Info("monitoring drop folder", "dir", w.cfg.SourceDir)

	// Files already sitting in the folder never produce an event.
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("loader stopped")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isPDF(ev.Name) {
				continue
			}
			if !w.waitSettled(ctx, ev.Name) {
				continue
			}
			w.process(ctx, ev.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.cfg.SourceDir)
	if err != nil {
		w.logger.Error("error to read source directory", "error", err.Error())
		return
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() || !isPDF(entry.Name()) {
			continue
		}
		w.process(ctx, filepath.Join(w.cfg.SourceDir, entry.Name()))
	}
}

// waitSettled polls the file size until two consecutive reads agree, so a
// file still being copied in is not ingested half-written.
func (w *Watcher) waitSettled(ctx context.Context, path string) bool {
	var lastSize int64 = -1
	for i := 0; i < 20; i++ {
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		if info.Size() == lastSize {
			return true
		}
		lastSize = info.Size()

		select {
		case <-ctx.Done():
			return false
		case <-time.After(500 * time.Millisecond):
		}
	}
	return true
}

func (w *Watcher) process(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}

	res, err := w.svc.Ingest(ctx, service.IngestRequest{
		Path:       path,
		OwnerLabel: w.cfg.OwnerLabel,
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Error("error to ingest file", "file", path, "error", err.Error())
			w.moveTo(path, w.cfg.BadDir)
		}
		return
	}

	w.logger.Info("file ingested",
		"file", filepath.Base(path),
		"record_id", res.RecordID,
		"anchor_tx", res.AnchorTxID,
	)
	w.moveTo(path, w.cfg.ArchiveDir)
}

func (w *Watcher) moveTo(path, root string) {
	destDir := filepath.Join(root, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		w.logger.Error("error creating directory", "error", err.Error())
		return
	}

	destPath := filepath.Join(destDir, filepath.Base(path))
	counter := 1
	for {
		if _, err := os.Stat(destPath); os.IsNotExist(err) {
			break
		}
		ext := filepath.Ext(path)
		base := strings.TrimSuffix(filepath.Base(path), ext)
		destPath = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", base, counter, ext))
		counter++
	}

	// Rename fails across filesystems, so copy then remove.
	if err := copyFile(path, destPath); err != nil {
		w.logger.Error("error moving file", "file", path, "error", err.Error())
		return
	}
	os.Remove(path)
	w.logger.Info("file moved", "dest", destPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
