//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/vaultbridge/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; Search falls back to LIKE over documents.
	return nil
}

func ftsClear(_ *sql.Tx, _ string) error { return nil }

func ftsInsert(_ *sql.Tx, _ string, _ models.DocumentMetadata) error { return nil }

// Search matches query as a substring of names, tags and aliases of one
// dataset.
func (db *DB) Search(dataset, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT path, file_name, string_tags
		FROM documents
		WHERE dataset = ? AND (file_name LIKE ? OR string_tags LIKE ? OR aliases LIKE ?)
		ORDER BY position
		LIMIT ?
	`, dataset, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.FileName, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
