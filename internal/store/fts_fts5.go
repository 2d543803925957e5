//go:build sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			id UNINDEXED,
			name,
			payload,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, name, payload string) error {
	_, _ = tx.Exec(`DELETE FROM records_fts WHERE id = ?`, id)
	_, err := tx.Exec(`INSERT INTO records_fts (id, name, payload) VALUES (?, ?, ?)`, id, name, payload)
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM records_fts WHERE id = ?`, id)
}

// searchClause restricts results to FTS hits. The query is matched as a
// phrase prefix so punctuation in payloads cannot break MATCH syntax.
func searchClause(query string) (string, []any) {
	phrase := `"` + strings.ReplaceAll(query, `"`, `""`) + `"*`
	return `id IN (SELECT id FROM records_fts WHERE records_fts MATCH ?)`, []any{phrase}
}
