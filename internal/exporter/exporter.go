// Package exporter copies cached record images to a storage target together
// with a JSON manifest.
package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/starford/codestash/internal/checksum"
	"github.com/starford/codestash/internal/models"
	"github.com/starford/codestash/internal/storage"
	"github.com/starford/codestash/internal/store"
	"github.com/starford/codestash/internal/symbology"
)

// ManifestName is written at the root of every export.
const ManifestName = "manifest.json"

const pageSize = 100

// Source lists records with their images.
type Source interface {
	List(q store.Query) ([]models.Record, int, error)
}

// Options narrows an export.
type Options struct {
	Dir       string
	Favorites bool
	Symbology symbology.Symbology
}

// Entry is one manifest line.
type Entry struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Payload   string              `json:"payload"`
	Symbology symbology.Symbology `json:"symbology"`
	File      string              `json:"file,omitempty"`
	Checksum  string              `json:"checksum,omitempty"`
}

// Manifest describes an export.
type Manifest struct {
	ExportedAt time.Time `json:"exported_at"`
	Written    int       `json:"written"`
	Skipped    int       `json:"skipped"`
	Records    []Entry   `json:"records"`
}

// Exporter writes images from a Source to a Provider.
type Exporter struct {
	src    Source
	dst    storage.Provider
	logger *slog.Logger
}

// New creates an Exporter.
func New(src Source, dst storage.Provider, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{src: src, dst: dst, logger: logger}
}

// Export writes <dir>/<id>.png for every matching record with a cached image
// and a manifest listing all matching records. Records without an image are
// listed without a file.
func (e *Exporter) Export(ctx context.Context, opts Options) (*Manifest, error) {
	m := &Manifest{ExportedAt: time.Now().UTC(), Records: make([]Entry, 0)}
	q := store.Query{
		Favorites: opts.Favorites,
		Symbology: opts.Symbology,
		Limit:     pageSize,
		Images:    true,
	}

	for {
		if err := ctx.Err(); err != nil {
			return m, err
		}
		rows, total, err := e.src.List(q)
		if err != nil {
			return m, fmt.Errorf("exporter: list: %w", err)
		}
		for i := range rows {
			entry, err := e.write(opts.Dir, &rows[i])
			if err != nil {
				return m, err
			}
			if entry.File == "" {
				m.Skipped++
			} else {
				m.Written++
			}
			m.Records = append(m.Records, entry)
		}
		q.Offset += len(rows)
		if len(rows) == 0 || q.Offset >= total {
			break
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return m, fmt.Errorf("exporter: encode manifest: %w", err)
	}
	if err := e.dst.Write(path.Join(opts.Dir, ManifestName), data); err != nil {
		return m, fmt.Errorf("exporter: write manifest: %w", err)
	}
	e.logger.Info("export finished",
		slog.Int("written", m.Written),
		slog.Int("skipped", m.Skipped))
	return m, nil
}

func (e *Exporter) write(dir string, r *models.Record) (Entry, error) {
	entry := Entry{
		ID:        r.ID,
		Name:      r.DisplayName(),
		Payload:   r.Payload,
		Symbology: r.Symbology,
	}
	if !r.HasImage() {
		return entry, nil
	}
	file := path.Join(dir, r.ID+".png")
	if err := e.dst.Write(file, r.RenderedImage); err != nil {
		return entry, fmt.Errorf("exporter: write %s: %w", file, err)
	}
	entry.File = file
	entry.Checksum = checksum.Sum(r.RenderedImage)
	return entry, nil
}
