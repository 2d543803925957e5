package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/codestash/internal/recordservice"
	"github.com/starford/codestash/internal/render"
	"github.com/starford/codestash/internal/store"
)

// Library bundles the open database and the record service on top of it.
type Library struct {
	DB      *store.DB
	Service *recordservice.Service
}

// NewLogger builds the structured JSON logger used by every command.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// OpenLibrary opens the SQLite store and starts a record service. events may
// be nil.
func OpenLibrary(cfg *Config, logger *slog.Logger, events recordservice.Publisher) (*Library, error) {
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	remote, err := newRemote(cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	svc := recordservice.NewService(db, recordservice.Config{
		Local:            render.NewLocal(),
		Remote:           remote,
		Events:           events,
		DefaultSymbology: cfg.Library.Symbology(),
		Logger:           logger,
	})
	return &Library{DB: db, Service: svc}, nil
}

// NewRenderer returns the local-then-remote renderer described by cfg,
// without opening the database.
func NewRenderer(cfg *Config, logger *slog.Logger) (render.Renderer, error) {
	remote, err := newRemote(cfg, logger)
	if err != nil {
		return nil, err
	}
	return render.Cascade{Local: render.NewLocal(), Remote: remote}, nil
}

// newRemote returns a nil Renderer when the remote service is disabled.
func newRemote(cfg *Config, logger *slog.Logger) (render.Renderer, error) {
	if !cfg.Render.RemoteEnabled {
		return nil, nil
	}
	remote, err := render.NewRemote(cfg.Render.RemoteOptions(logger))
	if err != nil {
		return nil, fmt.Errorf("init remote renderer: %w", err)
	}
	return remote, nil
}

// Close stops background renders and closes the database.
func (l *Library) Close() error {
	l.Service.Close()
	return l.DB.Close()
}
