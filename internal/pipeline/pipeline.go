// Package pipeline decides how each record gets its image and runs remote
// fetches in the background, one at a time per record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/codestash/internal/apperr"
	"github.com/starford/codestash/internal/render"
	"github.com/starford/codestash/internal/symbology"
)

// State is the image state of one record.
type State int

const (
	NoImage State = iota
	Pending
	Cached
	Unsupported
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Cached:
		return "cached"
	case Unsupported:
		return "unsupported"
	default:
		return "no_image"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Request asks for an image of one record revision.
type Request struct {
	RecordID  string
	Revision  int64
	Payload   string
	Symbology symbology.Symbology
}

// Outcome reports what happened to a Request. Image is set only when State is
// Cached. Err carries the cause of an Unsupported outcome, if any.
type Outcome struct {
	RecordID string
	Revision int64
	State    State
	Image    []byte
	Source   symbology.Capability
	Err      error
}

// Sink receives outcomes of background fetches. It is called from the fetch
// goroutine and must not call back into the Pipeline synchronously.
type Sink func(Outcome)

// Config wires a Pipeline. Remote may be nil to run offline.
type Config struct {
	Local  render.Renderer
	Remote render.Renderer
	Sink   Sink
	Logger *slog.Logger
}

type entry struct {
	gen      uint64
	revision int64
	state    State
	cancel   context.CancelFunc
}

// Pipeline tracks per-record render state.
type Pipeline struct {
	local  render.Renderer
	remote render.Renderer
	sink   Sink
	logger *slog.Logger

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	gen    uint64
	byID   map[string]*entry
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = func(Outcome) {}
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Pipeline{
		local:  cfg.Local,
		remote: cfg.Remote,
		sink:   sink,
		logger: logger,
		ctx:    ctx,
		stop:   stop,
		byID:   make(map[string]*entry),
	}
}

// ErrClosed is returned in outcomes submitted after Close.
var ErrClosed = errors.New("pipeline: closed")

// Submit starts producing an image for req and returns the immediate outcome.
// Cached and Unsupported are final. Pending means a remote fetch is running and
// its result will reach the Sink.
//
// A submit for a newer revision supersedes any in-flight fetch for the same
// record; a repeated submit for the revision already pending or unsupported
// returns that state without starting new work. A submit for an older
// revision than the one tracked is ignored and reports NoImage.
func (p *Pipeline) Submit(req Request) Outcome {
	out := Outcome{RecordID: req.RecordID, Revision: req.Revision}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		out.State = Unsupported
		out.Err = ErrClosed
		return out
	}
	e := p.byID[req.RecordID]
	if e != nil && req.Revision < e.revision {
		p.mu.Unlock()
		out.State = NoImage
		return out
	}
	if e != nil && e.revision == req.Revision && (e.state == Pending || e.state == Unsupported) {
		out.State = e.state
		p.mu.Unlock()
		return out
	}
	if e == nil {
		e = &entry{}
		p.byID[req.RecordID] = e
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	p.gen++
	gen := p.gen
	e.gen = gen
	e.revision = req.Revision

	capability := symbology.Classify(req.Symbology)
	if capability == symbology.Unsupported {
		e.state = Unsupported
		p.mu.Unlock()
		out.State = Unsupported
		out.Err = fmt.Errorf("pipeline: %s: %w", req.Symbology, apperr.ErrUnsupportedSymbology)
		return out
	}
	e.state = Pending
	p.mu.Unlock()

	if p.local != nil && symbology.SupportsLocal(req.Symbology) {
		img, err := p.local.Render(p.ctx, req.Payload, req.Symbology)
		if err == nil {
			p.settle(req.RecordID, gen, Cached)
			out.State = Cached
			out.Image = img
			out.Source = symbology.Local
			return out
		}
		p.logger.Debug("local render failed",
			slog.String("record", req.RecordID),
			slog.String("symbology", req.Symbology.String()),
			slog.String("error", err.Error()))
		if !render.Recoverable(err) {
			p.settle(req.RecordID, gen, Unsupported)
			out.State = Unsupported
			out.Err = err
			return out
		}
	}

	if p.remote == nil || !symbology.SupportsRemote(req.Symbology) {
		p.settle(req.RecordID, gen, Unsupported)
		out.State = Unsupported
		out.Err = fmt.Errorf("pipeline: %s: %w", req.Symbology, apperr.ErrUnsupportedSymbology)
		return out
	}

	p.mu.Lock()
	if e.gen != gen || p.closed {
		// Superseded while rendering locally.
		p.mu.Unlock()
		out.State = Pending
		return out
	}
	ctx, cancel := context.WithCancel(p.ctx)
	e.cancel = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	go p.fetch(ctx, cancel, req, gen)

	out.State = Pending
	return out
}

func (p *Pipeline) fetch(ctx context.Context, cancel context.CancelFunc, req Request, gen uint64) {
	defer p.wg.Done()
	defer cancel()

	img, err := p.remote.Render(ctx, req.Payload, req.Symbology)

	p.mu.Lock()
	e := p.byID[req.RecordID]
	if e == nil || e.gen != gen || p.ctx.Err() != nil {
		p.mu.Unlock()
		p.logger.Debug("discarding stale render",
			slog.String("record", req.RecordID),
			slog.Int64("revision", req.Revision))
		return
	}
	e.cancel = nil
	out := Outcome{RecordID: req.RecordID, Revision: req.Revision, Source: symbology.Remote}
	if err != nil {
		e.state = Unsupported
		out.State = Unsupported
		out.Err = err
	} else {
		e.state = Cached
		out.State = Cached
		out.Image = img
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("remote render failed",
			slog.String("record", req.RecordID),
			slog.String("symbology", req.Symbology.String()),
			slog.String("error", err.Error()))
	}
	p.sink(out)
}

func (p *Pipeline) settle(id string, gen uint64, s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e := p.byID[id]; e != nil && e.gen == gen {
		e.state = s
	}
}

// State returns the tracked state for a record revision. Unknown records and
// older revisions report NoImage.
func (p *Pipeline) State(id string, revision int64) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.byID[id]
	if e == nil || e.revision != revision {
		return NoImage
	}
	return e.state
}

// Forget cancels in-flight work for a record and drops its state. Late
// results for it are discarded.
func (p *Pipeline) Forget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e := p.byID[id]; e != nil {
		if e.cancel != nil {
			e.cancel()
		}
		delete(p.byID, id)
	}
}

// Wait blocks until every background fetch started so far has finished.
func (p *Pipeline) Wait() { p.wg.Wait() }

// Close cancels all in-flight fetches and waits for them. Submits after Close
// report Unsupported with ErrClosed.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.stop()
	p.wg.Wait()
}
