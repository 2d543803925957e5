package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/codestash/internal/apperr"
	"github.com/starford/codestash/internal/models"
	"github.com/starford/codestash/internal/payload"
	"github.com/starford/codestash/internal/symbology"
)

// Query filters a List call. Zero values mean no filter; Content keeps only
// payloads of one class.
type Query struct {
	Favorites bool
	Symbology symbology.Symbology
	Content   *payload.Kind
	Search    string
	Limit     int
	Offset    int
	// Images loads RenderedImage for each row; list views leave it off.
	Images bool
}

// DefaultListLimit applies when Query.Limit is not positive.
const DefaultListLimit = 50

const recordColumns = `id, name, payload, symbology, favorite, revision, version, failed_revision, created_at, updated_at`

type scanner interface{ Scan(dest ...any) error }

func scanRecord(row scanner, withImage bool) (*models.Record, error) {
	var r models.Record
	var sym string
	dest := []any{&r.ID, &r.Name, &r.Payload, &sym, &r.Favorite, &r.Revision, &r.Version, &r.FailedRevision,
		&r.CreatedAt, &r.UpdatedAt}
	if withImage {
		dest = append(dest, &r.RenderedImage)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	r.Symbology = symbology.Symbology(sym)
	return &r, nil
}

// Insert stores a new record and its search entry.
func (db *DB) Insert(r *models.Record) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO records (id, name, payload, symbology, content, image, favorite, revision, version,
			failed_revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Name, r.Payload, string(r.Symbology), contentOf(r.Payload), nullBlob(r.RenderedImage),
		r.Favorite, r.Revision, r.Version, r.FailedRevision, r.CreatedAt.UTC(), r.UpdatedAt.UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("store: insert record: %w", err)
	}
	if err := ftsUpsert(tx, r.ID, r.Name, r.Payload); err != nil {
		return err
	}
	return tx.Commit()
}

// Get loads one record including its cached image.
func (db *DB) Get(id string) (*models.Record, error) {
	r, err := scanRecord(db.conn.QueryRow(`SELECT `+recordColumns+`, image FROM records WHERE id = ?`, id), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get record: %w", err)
	}
	return r, nil
}

// Update writes the mutable fields of r, provided the stored row is still at
// r.Version. It returns apperr.ErrConflict when another write got there first
// and bumps r.Version on success. The stored image and render failure are
// kept only when the revision did not change.
func (db *DB) Update(r *models.Record) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`
		UPDATE records SET
			name       = ?,
			payload    = ?,
			symbology  = ?,
			content    = ?,
			favorite   = ?,
			image      = CASE WHEN revision = ? THEN image ELSE NULL END,
			failed_revision = CASE WHEN revision = ? THEN failed_revision ELSE 0 END,
			revision   = ?,
			version    = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`, r.Name, r.Payload, string(r.Symbology), contentOf(r.Payload), r.Favorite, r.Revision, r.Revision,
		r.Revision, r.UpdatedAt.UTC(), r.ID, r.Version)
	if err != nil {
		return fmt.Errorf("store: update record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		err := tx.QueryRow(`SELECT count(*) FROM records WHERE id = ?`, r.ID).Scan(&exists)
		switch {
		case err != nil:
			return fmt.Errorf("store: update record: %w", err)
		case exists == 0:
			return apperr.ErrNotFound
		default:
			return fmt.Errorf("store: update record %s at version %d: %w", r.ID, r.Version, apperr.ErrConflict)
		}
	}
	if err := ftsUpsert(tx, r.ID, r.Name, r.Payload); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit update: %w", err)
	}
	r.Version++
	if r.FailedRevision != r.Revision {
		r.FailedRevision = 0
	}
	return nil
}

// Delete removes a record and its search entry.
func (db *DB) Delete(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	ftsDelete(tx, id)
	return tx.Commit()
}

// SetRenderedImage stores png for the given revision. It reports false, with
// no error, when the record is gone or has moved on to a newer revision.
func (db *DB) SetRenderedImage(id string, revision int64, png []byte) (bool, error) {
	res, err := db.conn.Exec(`UPDATE records SET image = ? WHERE id = ? AND revision = ?`,
		nullBlob(png), id, revision)
	if err != nil {
		return false, fmt.Errorf("store: set image: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetRenderFailed marks revision as unrenderable so later reads skip the
// render. It reports false when the record is gone, has moved on, or already
// has an image.
func (db *DB) SetRenderFailed(id string, revision int64) (bool, error) {
	res, err := db.conn.Exec(`UPDATE records SET failed_revision = ? WHERE id = ? AND revision = ? AND image IS NULL`,
		revision, id, revision)
	if err != nil {
		return false, fmt.Errorf("store: set render failed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// List returns records newest first, plus the total matching count.
func (db *DB) List(q Query) ([]models.Record, int, error) {
	var (
		where []string
		args  []any
	)
	if q.Favorites {
		where = append(where, "favorite = 1")
	}
	if q.Symbology != "" {
		where = append(where, "symbology = ?")
		args = append(args, string(q.Symbology))
	}
	if q.Content != nil {
		where = append(where, "content = ?")
		args = append(args, q.Content.String())
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		clause, sargs := searchClause(s)
		where = append(where, clause)
		args = append(args, sargs...)
	}
	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM records`+filter, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count records: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	cols := recordColumns
	if q.Images {
		cols += ", image"
	}
	rows, err := db.conn.Query(`SELECT `+cols+` FROM records`+filter+
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list records: %w", err)
	}
	defer rows.Close()

	out := make([]models.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows, q.Images)
		if err != nil {
			return nil, 0, fmt.Errorf("store: scan record: %w", err)
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

func nullBlob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
