//go:build !sqlite_fts5

package store

import (
	"database/sql"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on the records table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// searchClause matches names and payloads containing the query, ignoring case
// for ASCII.
func searchClause(query string) (string, []any) {
	like := "%" + escapeLike(query) + "%"
	return `(name LIKE ? ESCAPE '\' OR payload LIKE ? ESCAPE '\')`, []any{like, like}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
