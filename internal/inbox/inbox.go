// Package inbox ingests scan files dropped into a directory by the scanner.
package inbox

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/codestash/internal/scanfile"
	"github.com/starford/codestash/internal/storage"
)

// RejectedDir is the subdirectory that receives files which failed to parse.
const RejectedDir = "rejected"

// settleDelay lets a scanner finish writing before the file is read.
const settleDelay = 200 * time.Millisecond

// Ingester turns one scan into a stored record.
type Ingester interface {
	IngestScan(ctx context.Context, s scanfile.Scan) error
}

// Inbox watches a directory for scan files.
type Inbox struct {
	root   string
	files  storage.Provider
	ing    Ingester
	logger *slog.Logger
}

// New creates the inbox directory if needed.
func New(root string, ing Ingester, logger *slog.Logger) (*Inbox, error) {
	if err := os.MkdirAll(filepath.Join(root, RejectedDir), 0o755); err != nil {
		return nil, err
	}
	files, err := storage.NewFS(root)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{root: files.Root(), files: files, ing: ing, logger: logger}, nil
}

// Sweep ingests every scan file currently in the inbox and returns how many
// records were created.
func (in *Inbox) Sweep(ctx context.Context) (int, error) {
	objs, err := in.files.List("")
	if err != nil {
		return 0, err
	}
	total := 0
	for _, o := range objs {
		if !in.eligible(o.Path) {
			continue
		}
		n, _ := in.ingest(ctx, o.Path)
		total += n
	}
	return total, nil
}

func (in *Inbox) eligible(rel string) bool {
	if strings.Contains(rel, "/") || strings.HasPrefix(rel, ".") {
		return false
	}
	return scanfile.Supported(rel)
}

// ingest processes one file. Valid files are removed after every scan is
// stored; invalid ones move to RejectedDir. A file is left in place when its
// first scan fails so the next sweep retries it. When a later scan fails only
// the scans not yet stored move to RejectedDir, so a manual retry does not
// store the earlier ones twice.
func (in *Inbox) ingest(ctx context.Context, rel string) (int, error) {
	data, err := in.files.Read(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		in.logger.Warn("inbox: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return 0, err
	}

	scans, err := scanfile.Parse(data)
	if err != nil {
		in.logger.Warn("inbox: rejected", slog.String("path", rel), slog.String("error", err.Error()))
		in.reject(rel)
		return 0, err
	}

	for i, s := range scans {
		if err := in.ing.IngestScan(ctx, s); err != nil {
			in.logger.Error("inbox: ingest failed",
				slog.String("path", rel),
				slog.Int("scan", i),
				slog.String("error", err.Error()))
			if i == 0 {
				return 0, err
			}
			in.rejectRemaining(rel, scans[i:])
			return i, err
		}
	}

	if err := in.files.Delete(rel); err != nil {
		in.logger.Warn("inbox: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
	}
	in.logger.Info("inbox: ingested", slog.String("path", rel), slog.Int("records", len(scans)))
	return len(scans), nil
}

func rejectedPath(rel string) string {
	return path.Join(RejectedDir, time.Now().UTC().Format("20060102T150405.000000000")+"-"+rel)
}

func (in *Inbox) reject(rel string) {
	if err := in.files.Move(rel, rejectedPath(rel)); err != nil {
		in.logger.Warn("inbox: move to rejected failed", slog.String("path", rel), slog.String("error", err.Error()))
	}
}

// rejectRemaining writes the unprocessed scans to RejectedDir and removes the
// original. If the remainder cannot be written the whole file is rejected.
func (in *Inbox) rejectRemaining(rel string, rest []scanfile.Scan) {
	data, err := scanfile.Marshal(rel, rest)
	if err == nil {
		err = in.files.Write(rejectedPath(rel), data)
	}
	if err != nil {
		in.logger.Warn("inbox: write remaining scans failed",
			slog.String("path", rel),
			slog.String("error", err.Error()))
		in.reject(rel)
		return
	}
	if err := in.files.Delete(rel); err != nil {
		in.logger.Warn("inbox: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
	}
}

// Watch sweeps the inbox, then ingests new files as they appear until ctx is
// cancelled. Events are debounced so partially written files are not read.
func (in *Inbox) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(in.root); err != nil {
		return err
	}
	in.logger.Info("inbox: watching", slog.String("root", in.root))

	if _, err := in.Sweep(ctx); err != nil {
		in.logger.Warn("inbox: initial sweep failed", slog.String("error", err.Error()))
	}

	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	schedule := func(rel string) {
		pending[rel] = struct{}{}
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			in.logger.Info("inbox: stopped")
			return nil

		case <-settleCh:
			for rel := range pending {
				delete(pending, rel)
				_, _ = in.ingest(ctx, rel)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			rel, err := filepath.Rel(in.root, ev.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if !in.eligible(rel) {
				continue
			}
			schedule(rel)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
