// Package sse streams record changes to browsers as Server-Sent Events.
//
// Every change is sent as record.<kind> with the record's image state. The
// broker remembers the latest image state of each record so a client that
// reconnects with ?records=a,b learns at once whether an image it was waiting
// for has landed. Changes are also summarised into one library.updated event
// per window.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// Kind is the kind of a record change.
type Kind string

// Record change kinds.
const (
	Created     Kind = "created"
	Updated     Kind = "updated"
	Deleted     Kind = "deleted"
	Rendered    Kind = "rendered"
	Unsupported Kind = "unsupported"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case Created, Updated, Deleted, Rendered, Unsupported:
		return true
	}
	return false
}

// Event names on the wire.
const (
	// RecordState is the replayed snapshot of one record, sent on connect.
	RecordState    = "record.state"
	LibraryUpdated = "library.updated"
)

// recordsQueryParam names the records a client follows.
const recordsQueryParam = "records"

// Change describes one record mutation or render result. ImageState uses the
// render pipeline's state names and is empty for deletions.
type Change struct {
	Kind       Kind   `json:"-"`
	ID         string `json:"id"`
	Revision   int64  `json:"revision,omitempty"`
	ImageState string `json:"image_state,omitempty"`
}

// LibrarySummary is the data of library.updated: every record touched during
// the window and how many changes of each kind happened.
type LibrarySummary struct {
	IDs    []string     `json:"ids"`
	Counts map[Kind]int `json:"counts"`
}

type subscription struct {
	ch      chan []byte
	records map[string]struct{} // nil follows every record
}

func (s *subscription) follows(id string) bool {
	if s.records == nil {
		return true
	}
	_, ok := s.records[id]
	return ok
}

// Broker fans record changes out to SSE clients.
//
// One loop goroutine owns the clients, the per-record snapshot and the
// pending library summary; the exported methods talk to it over channels.
type Broker struct {
	window time.Duration

	subscribeCh   chan *subscription
	unsubscribeCh chan chan []byte
	changeCh      chan Change
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that sends at most one library.updated per
// window, after the window closes.
func NewBroker(window time.Duration) *Broker {
	if window <= 0 {
		window = 2 * time.Second
	}
	b := &Broker{
		window:        window,
		subscribeCh:   make(chan *subscription),
		unsubscribeCh: make(chan chan []byte),
		changeCh:      make(chan Change, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

func frame(event string, data any) []byte {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload))
}

// send never blocks the loop; a client that falls 64 frames behind misses
// frames and catches up through the next snapshot or summary.
func send(ch chan []byte, msg []byte) {
	select {
	case ch <- msg:
	default:
	}
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]*subscription)
	latest := make(map[string]Change)

	var (
		flush   <-chan time.Time
		timer   *time.Timer
		touched = make(map[string]struct{})
		counts  = make(map[Kind]int)
	)

	for {
		select {
		case <-b.stopCh:
			if timer != nil {
				timer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub
			for id := range sub.records {
				if c, ok := latest[id]; ok {
					send(sub.ch, frame(RecordState, c))
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case c := <-b.changeCh:
			if c.Kind == Deleted {
				delete(latest, c.ID)
			} else {
				latest[c.ID] = c
			}

			msg := frame("record."+string(c.Kind), c)
			for _, sub := range clients {
				if sub.follows(c.ID) {
					send(sub.ch, msg)
				}
			}

			touched[c.ID] = struct{}{}
			counts[c.Kind]++
			if flush == nil {
				timer = time.NewTimer(b.window)
				flush = timer.C
			}

		case <-flush:
			summary := LibrarySummary{IDs: make([]string, 0, len(touched)), Counts: counts}
			for id := range touched {
				summary.IDs = append(summary.IDs, id)
			}
			sort.Strings(summary.IDs)
			msg := frame(LibraryUpdated, summary)
			for ch := range clients {
				send(ch, msg)
			}
			touched = make(map[string]struct{})
			counts = make(map[Kind]int)
			flush, timer = nil, nil

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop, closes every client channel and drops any pending
// summary.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client. With no records it follows the whole library;
// otherwise it receives record events for the named records only, starting
// with a record.state snapshot of each one the broker has seen.
func (b *Broker) Subscribe(records ...string) chan []byte {
	sub := &subscription{ch: make(chan []byte, 64)}
	if len(records) > 0 {
		sub.records = make(map[string]struct{}, len(records))
		for _, id := range records {
			sub.records[id] = struct{}{}
		}
	}
	if b.closed.Load() {
		close(sub.ch)
		return sub.ch
	}
	select {
	case b.subscribeCh <- sub:
	case <-b.stopped:
		close(sub.ch)
	}
	return sub.ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// PublishChange records c and forwards it to clients. Changes with an
// unknown kind or no ID are dropped.
func (b *Broker) PublishChange(c Change) {
	if !c.Kind.Valid() || c.ID == "" || b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- c:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(parseRecords(r.URL.Query().Get(recordsQueryParam))...)
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}

func parseRecords(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
