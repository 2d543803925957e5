package api

import (
	"github.com/starford/codestash/internal/recordservice"
	"github.com/starford/codestash/internal/symbology"
)

// CreateRecordRequest is the request body for creating a record.
type CreateRecordRequest struct {
	Name      string `json:"name" example:"Gym pass" validate:"max=200"`
	Payload   string `json:"payload" example:"13587936" validate:"required,max=4096"`
	Symbology string `json:"symbology" example:"Code128" validate:"omitempty,max=64"`
	Favorite  bool   `json:"favorite"`
}

// UpdateRecordRequest is a partial update; omitted fields are left as they are.
type UpdateRecordRequest struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Payload   *string `json:"payload,omitempty" validate:"omitempty,min=1,max=4096"`
	Symbology *string `json:"symbology,omitempty" validate:"omitempty,min=1,max=64"`
	Favorite  *bool   `json:"favorite,omitempty"`
}

// ClassifyRequest is the request body for POST /classify.
type ClassifyRequest struct {
	Payload string `json:"payload" example:"https://google.com" validate:"required,max=4096"`
}

// RecordDetail is the full record response type (aliased from the domain layer).
type RecordDetail = recordservice.RecordDetail

// RecordListItem is a lightweight item in a list response (aliased from the domain layer).
type RecordListItem = recordservice.RecordListItem

// RecordListResponse wraps paginated record listings.
type RecordListResponse struct {
	Records []RecordListItem `json:"records" validate:"required"`
	Total   int              `json:"total" example:"42" validate:"required"`
}

// SymbologyListResponse wraps the symbology catalog.
type SymbologyListResponse struct {
	Symbologies []symbology.Info `json:"symbologies" validate:"required"`
	Default     string           `json:"default" example:"QR" validate:"required"`
}

// ImageStateResponse is returned instead of an image while none is available.
type ImageStateResponse struct {
	State string `json:"state" example:"pending" validate:"required"`
	Error string `json:"error,omitempty"`
}
