package store

import "github.com/starford/codestash/internal/models"

// RecordStore is the persistence contract used by the record service.
type RecordStore interface {
	Insert(r *models.Record) error
	Get(id string) (*models.Record, error)
	Update(r *models.Record) error
	Delete(id string) error
	List(q Query) ([]models.Record, int, error)
	SetRenderedImage(id string, revision int64, png []byte) (bool, error)
	SetRenderFailed(id string, revision int64) (bool, error)
	Close() error
}

// Verify *DB satisfies RecordStore at compile time.
var _ RecordStore = (*DB)(nil)
