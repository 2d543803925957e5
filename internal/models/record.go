// Package models defines the domain types for Code Stash.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/starford/codestash/internal/payload"
	"github.com/starford/codestash/internal/symbology"
)

// Default names for records created without one.
const (
	UnnamedRecord = "Unnamed"
	ScannedRecord = "Scanned Code"
)

// Record is one stored code. RenderedImage caches the PNG for the current
// Payload and Symbology; Revision increases whenever either changes.
//
// Version increases on every stored write of the editable fields and guards
// concurrent updates. FailedRevision is the last revision whose image could
// not be rendered by any renderer; it is stale once Revision moves past it.
type Record struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Payload        string              `json:"payload"`
	Symbology      symbology.Symbology `json:"symbology"`
	RenderedImage  []byte              `json:"-"`
	Favorite       bool                `json:"favorite"`
	Revision       int64               `json:"revision"`
	Version        int64               `json:"-"`
	FailedRevision int64               `json:"-"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// NewRecord builds a record with a fresh ID.
func NewRecord(name, data string, sym symbology.Symbology) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:        uuid.NewString(),
		Name:      name,
		Payload:   data,
		Symbology: sym,
		Revision:  1,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewScannedRecord builds a record from a scanner result.
func NewScannedRecord(data string, sym symbology.Symbology) *Record {
	return NewRecord(ScannedRecord, data, sym)
}

// DisplayName returns the name, or UnnamedRecord when it is empty.
func (r *Record) DisplayName() string {
	if r.Name == "" {
		return UnnamedRecord
	}
	return r.Name
}

// SetPayload replaces the payload. A change drops the cached image and bumps
// Revision; setting the same value is a no-op. Reports whether it changed.
func (r *Record) SetPayload(data string) bool {
	if data == r.Payload {
		return false
	}
	r.Payload = data
	r.invalidate()
	return true
}

// SetSymbology replaces the symbology with the same invalidation rules as
// SetPayload.
func (r *Record) SetSymbology(sym symbology.Symbology) bool {
	if sym == r.Symbology {
		return false
	}
	r.Symbology = sym
	r.invalidate()
	return true
}

func (r *Record) invalidate() {
	r.RenderedImage = nil
	r.Revision++
	r.UpdatedAt = time.Now().UTC()
}

// HasImage reports whether a rendered image is cached.
func (r *Record) HasImage() bool { return len(r.RenderedImage) > 0 }

// RenderFailed reports whether the current revision is known to be
// unrenderable.
func (r *Record) RenderFailed() bool {
	return !r.HasImage() && r.FailedRevision != 0 && r.FailedRevision == r.Revision
}

// Content classifies the payload.
func (r *Record) Content() payload.Content { return payload.Classify(r.Payload) }

// Icon picks the list affordance: link or wifi for recognised content,
// otherwise the symbology's category icon.
func (r *Record) Icon() string {
	if icon := r.Content().Icon(); icon != "" {
		return icon
	}
	return symbology.DisplayCategory(r.Symbology).Icon()
}
