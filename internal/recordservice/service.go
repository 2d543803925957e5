package recordservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/codestash/internal/apperr"
	"github.com/starford/codestash/internal/models"
	"github.com/starford/codestash/internal/payload"
	"github.com/starford/codestash/internal/pipeline"
	"github.com/starford/codestash/internal/render"
	"github.com/starford/codestash/internal/scanfile"
	"github.com/starford/codestash/internal/sse"
	"github.com/starford/codestash/internal/store"
	"github.com/starford/codestash/internal/symbology"
)

// Publisher receives record change notifications.
type Publisher interface {
	PublishChange(sse.Change)
}

// updateAttempts bounds the read-modify-write retries of one update when
// other writers keep winning the version check.
const updateAttempts = 3

// Config wires a Service. Remote and Events may be nil.
type Config struct {
	Local            render.Renderer
	Remote           render.Renderer
	Events           Publisher
	DefaultSymbology symbology.Symbology
	Logger           *slog.Logger
}

// Service coordinates the record store, the render pipeline and event
// publishing.
type Service struct {
	db         store.RecordStore
	pipe       *pipeline.Pipeline
	renderer   render.Renderer
	events     Publisher
	defaultSym symbology.Symbology
	logger     *slog.Logger
}

// NewService creates a record service. Close must be called to stop
// background renders.
func NewService(db store.RecordStore, cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	def := cfg.DefaultSymbology
	if def == "" {
		def = symbology.Default
	}
	s := &Service{
		db:         db,
		renderer:   render.Cascade{Local: cfg.Local, Remote: cfg.Remote},
		events:     cfg.Events,
		defaultSym: def,
		logger:     logger,
	}
	s.pipe = pipeline.New(pipeline.Config{
		Local:  cfg.Local,
		Remote: cfg.Remote,
		Sink:   s.onRendered,
		Logger: logger,
	})
	return s
}

// Close stops in-flight renders.
func (s *Service) Close() { s.pipe.Close() }

// Wait blocks until background renders started so far have been stored.
func (s *Service) Wait() { s.pipe.Wait() }

// CreateInput describes a new record. An empty Symbology uses the default.
type CreateInput struct {
	Name      string
	Payload   string
	Symbology string
	Favorite  bool
}

// Create stores a new record and starts rendering its image.
func (s *Service) Create(ctx context.Context, in CreateInput) (*RecordDetail, error) {
	sym, err := s.resolveSymbology(in.Symbology)
	if err != nil {
		return nil, err
	}
	rec := models.NewRecord(in.Name, in.Payload, sym)
	rec.Favorite = in.Favorite
	return s.insert(ctx, rec)
}

// Scan stores a scanner result under the default scanned name. The
// identifier may carry the scanner's symbology prefix.
func (s *Service) Scan(ctx context.Context, data, identifier string) (*RecordDetail, error) {
	sym, err := symbology.Parse(identifier)
	if err != nil {
		return nil, fmt.Errorf("recordservice: scan: %w", err)
	}
	return s.insert(ctx, models.NewScannedRecord(data, sym))
}

// IngestScan stores one scan file entry. Unnamed scans get the scanned-record
// name.
func (s *Service) IngestScan(ctx context.Context, scan scanfile.Scan) error {
	sym, err := symbology.Parse(scan.Symbology)
	if err != nil {
		return fmt.Errorf("recordservice: ingest: %w", err)
	}
	rec := models.NewScannedRecord(scan.Payload, sym)
	if scan.Name != "" {
		rec.Name = scan.Name
	}
	rec.Favorite = scan.Favorite
	_, err = s.insert(ctx, rec)
	return err
}

func (s *Service) insert(_ context.Context, rec *models.Record) (*RecordDetail, error) {
	if err := s.db.Insert(rec); err != nil {
		return nil, fmt.Errorf("recordservice: insert: %w", err)
	}
	return newDetail(rec, s.announce(sse.Created, rec)), nil
}

// Get loads one record.
func (s *Service) Get(_ context.Context, id string) (*RecordDetail, error) {
	rec, err := s.db.Get(id)
	if err != nil {
		return nil, err
	}
	return newDetail(rec, s.imageState(rec)), nil
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Name      *string
	Payload   *string
	Symbology *string
	Favorite  *bool
}

// Update applies a partial update. Changing payload or symbology drops the
// cached image and renders the new one. The update is applied to the latest
// stored version; it fails with apperr.ErrConflict only when concurrent
// writers win every attempt.
func (s *Service) Update(_ context.Context, id string, in UpdateInput) (*RecordDetail, error) {
	var sym symbology.Symbology
	if in.Symbology != nil {
		var err error
		if sym, err = s.resolveSymbology(*in.Symbology); err != nil {
			return nil, err
		}
	}
	return s.modify(id, func(rec *models.Record) {
		if in.Symbology != nil {
			rec.SetSymbology(sym)
		}
		if in.Payload != nil {
			rec.SetPayload(*in.Payload)
		}
		if in.Name != nil {
			rec.Name = *in.Name
		}
		if in.Favorite != nil {
			rec.Favorite = *in.Favorite
		}
	})
}

// ToggleFavorite flips the favorite flag of the latest stored version.
func (s *Service) ToggleFavorite(_ context.Context, id string) (*RecordDetail, error) {
	return s.modify(id, func(rec *models.Record) {
		rec.Favorite = !rec.Favorite
	})
}

// modify runs a read-modify-write of one record, starting over from a fresh
// read whenever the stored version moved underneath it.
func (s *Service) modify(id string, apply func(*models.Record)) (*RecordDetail, error) {
	for attempt := 1; ; attempt++ {
		rec, err := s.db.Get(id)
		if err != nil {
			return nil, err
		}
		before := rec.Revision
		apply(rec)
		rec.UpdatedAt = time.Now().UTC()

		err = s.db.Update(rec)
		if errors.Is(err, apperr.ErrConflict) && attempt < updateAttempts {
			s.logger.Debug("concurrent update, retrying",
				slog.String("record", id),
				slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("recordservice: update: %w", err)
		}

		if rec.Revision == before {
			state := s.imageState(rec)
			s.publish(sse.Updated, rec, state)
			return newDetail(rec, state), nil
		}
		return newDetail(rec, s.announce(sse.Updated, rec)), nil
	}
}

// Delete removes a record and abandons its pending render.
func (s *Service) Delete(_ context.Context, id string) error {
	if err := s.db.Delete(id); err != nil {
		return err
	}
	s.pipe.Forget(id)
	if s.events != nil {
		s.events.PublishChange(sse.Change{Kind: sse.Deleted, ID: id})
	}
	return nil
}

// ListInput filters List. Symbology accepts any identifier Parse accepts;
// Content accepts a payload class name (plain_text, web_link, wifi).
type ListInput struct {
	Favorites bool
	Symbology string
	Content   string
	Search    string
	Limit     int
	Offset    int
}

// List returns records newest first.
func (s *Service) List(_ context.Context, in ListInput) ([]RecordListItem, int, error) {
	q := store.Query{
		Favorites: in.Favorites,
		Search:    in.Search,
		Limit:     in.Limit,
		Offset:    in.Offset,
	}
	if in.Symbology != "" {
		sym, err := symbology.Parse(in.Symbology)
		if err != nil {
			return nil, 0, err
		}
		q.Symbology = sym
	}
	if in.Content != "" {
		kind, err := payload.ParseKind(in.Content)
		if err != nil {
			return nil, 0, err
		}
		q.Content = &kind
	}
	rows, total, err := s.db.List(q)
	if err != nil {
		return nil, 0, err
	}
	items := make([]RecordListItem, len(rows))
	for i := range rows {
		items[i] = newListItem(&rows[i])
	}
	return items, total, nil
}

// Image is the rendered image of a record, if one is available.
type Image struct {
	State    pipeline.State
	Revision int64
	PNG      []byte
}

// Image returns the cached image, rendering it when missing. Pending means a
// remote fetch is running; Unsupported means the record cannot be displayed.
// A revision whose remote render failed stays Unsupported, across restarts,
// until the payload or symbology changes.
func (s *Service) Image(_ context.Context, id string) (*Image, error) {
	rec, err := s.db.Get(id)
	if err != nil {
		return nil, err
	}
	if rec.HasImage() {
		return &Image{State: pipeline.Cached, Revision: rec.Revision, PNG: rec.RenderedImage}, nil
	}
	if rec.RenderFailed() {
		return &Image{State: pipeline.Unsupported, Revision: rec.Revision}, nil
	}
	out := s.submit(rec)
	img := &Image{State: out.State, Revision: rec.Revision}
	if out.State == pipeline.Cached {
		img.PNG = out.Image
		s.storeImage(out)
	}
	return img, nil
}

// Render produces an image without touching the library.
func (s *Service) Render(ctx context.Context, data, identifier string) ([]byte, error) {
	sym, err := s.resolveSymbology(identifier)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(ctx, data, sym)
}

// Classify inspects a payload.
func (s *Service) Classify(data string) payload.Content {
	return payload.Classify(data)
}

// Seed inserts the sample records and returns them.
func (s *Service) Seed(ctx context.Context) ([]RecordDetail, error) {
	samples := SampleRecords()
	out := make([]RecordDetail, 0, len(samples))
	for _, rec := range samples {
		d, err := s.insert(ctx, rec)
		if err != nil {
			return out, err
		}
		out = append(out, *d)
	}
	return out, nil
}

// DefaultSymbology is the symbology used when a create request omits one.
func (s *Service) DefaultSymbology() symbology.Symbology { return s.defaultSym }

func (s *Service) resolveSymbology(identifier string) (symbology.Symbology, error) {
	if identifier == "" {
		return s.defaultSym, nil
	}
	return symbology.Parse(identifier)
}

func (s *Service) imageState(rec *models.Record) pipeline.State {
	switch {
	case rec.HasImage():
		return pipeline.Cached
	case rec.RenderFailed():
		return pipeline.Unsupported
	}
	return s.pipe.State(rec.ID, rec.Revision)
}

// announce publishes a change of rec's content and starts rendering its image.
// The change carries the state the render starts in; a synchronous render is
// stored, and announced as rendered, after it.
func (s *Service) announce(kind sse.Kind, rec *models.Record) pipeline.State {
	if rec.HasImage() || rec.RenderFailed() {
		state := s.imageState(rec)
		s.publish(kind, rec, state)
		return state
	}
	out := s.submit(rec)
	s.publish(kind, rec, out.State)
	if out.State == pipeline.Cached {
		s.storeImage(out)
	}
	return out.State
}

func (s *Service) submit(rec *models.Record) pipeline.Outcome {
	out := s.pipe.Submit(pipeline.Request{
		RecordID:  rec.ID,
		Revision:  rec.Revision,
		Payload:   rec.Payload,
		Symbology: rec.Symbology,
	})
	if out.State == pipeline.Unsupported && out.Err != nil && !errors.Is(out.Err, apperr.ErrUnsupportedSymbology) {
		s.logger.Warn("render failed",
			slog.String("record", rec.ID),
			slog.String("error", out.Err.Error()))
	}
	return out
}

// onRendered receives background fetch results from the pipeline.
func (s *Service) onRendered(out pipeline.Outcome) {
	switch out.State {
	case pipeline.Cached:
		s.storeImage(out)
	case pipeline.Unsupported:
		s.storeFailure(out)
	}
}

// storeFailure persists a terminal remote failure so the revision is not
// fetched again after a restart.
func (s *Service) storeFailure(out pipeline.Outcome) {
	ok, err := s.db.SetRenderFailed(out.RecordID, out.Revision)
	if err != nil {
		s.logger.Error("store render failure failed",
			slog.String("record", out.RecordID),
			slog.String("error", err.Error()))
		return
	}
	if !ok {
		return
	}
	if s.events != nil {
		s.events.PublishChange(sse.Change{
			Kind:       sse.Unsupported,
			ID:         out.RecordID,
			Revision:   out.Revision,
			ImageState: pipeline.Unsupported.String(),
		})
	}
}

func (s *Service) storeImage(out pipeline.Outcome) {
	ok, err := s.db.SetRenderedImage(out.RecordID, out.Revision, out.Image)
	if err != nil {
		s.logger.Error("store rendered image failed",
			slog.String("record", out.RecordID),
			slog.String("error", err.Error()))
		return
	}
	if !ok {
		s.logger.Debug("rendered image is stale",
			slog.String("record", out.RecordID),
			slog.Int64("revision", out.Revision))
		return
	}
	if s.events != nil {
		s.events.PublishChange(sse.Change{
			Kind:       sse.Rendered,
			ID:         out.RecordID,
			Revision:   out.Revision,
			ImageState: pipeline.Cached.String(),
		})
	}
}

func (s *Service) publish(kind sse.Kind, rec *models.Record, state pipeline.State) {
	if s.events != nil {
		s.events.PublishChange(sse.Change{Kind: kind, ID: rec.ID, Revision: rec.Revision, ImageState: state.String()})
	}
}
