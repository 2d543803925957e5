// Package recordservice implements the record library on top of the store
// and the render pipeline.
package recordservice

import (
	"time"

	"github.com/starford/codestash/internal/models"
	"github.com/starford/codestash/internal/payload"
	"github.com/starford/codestash/internal/pipeline"
	"github.com/starford/codestash/internal/symbology"
)

// RecordDetail is the full representation of a record.
type RecordDetail struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	DisplayName   string               `json:"display_name"`
	Payload       string               `json:"payload"`
	Symbology     symbology.Symbology  `json:"symbology"`
	SymbologyName string               `json:"symbology_name"`
	Capability    symbology.Capability `json:"capability"`
	Category      symbology.Category   `json:"category"`
	Icon          string               `json:"icon"`
	Content       payload.Content      `json:"content"`
	Favorite      bool                 `json:"favorite"`
	Revision      int64                `json:"revision"`
	ImageState    pipeline.State       `json:"image_state"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// RecordListItem is a lightweight item in a list response.
type RecordListItem struct {
	ID          string              `json:"id"`
	DisplayName string              `json:"display_name"`
	Payload     string              `json:"payload"`
	Symbology   symbology.Symbology `json:"symbology"`
	Icon        string              `json:"icon"`
	Favorite    bool                `json:"favorite"`
	Revision    int64               `json:"revision"`
	CreatedAt   time.Time           `json:"created_at"`
}

func newDetail(r *models.Record, state pipeline.State) *RecordDetail {
	return &RecordDetail{
		ID:            r.ID,
		Name:          r.Name,
		DisplayName:   r.DisplayName(),
		Payload:       r.Payload,
		Symbology:     r.Symbology,
		SymbologyName: r.Symbology.DisplayName(),
		Capability:    symbology.Classify(r.Symbology),
		Category:      symbology.DisplayCategory(r.Symbology),
		Icon:          r.Icon(),
		Content:       r.Content(),
		Favorite:      r.Favorite,
		Revision:      r.Revision,
		ImageState:    state,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func newListItem(r *models.Record) RecordListItem {
	return RecordListItem{
		ID:          r.ID,
		DisplayName: r.DisplayName(),
		Payload:     r.Payload,
		Symbology:   r.Symbology,
		Icon:        r.Icon(),
		Favorite:    r.Favorite,
		Revision:    r.Revision,
		CreatedAt:   r.CreatedAt,
	}
}
