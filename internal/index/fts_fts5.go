//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/vaultbridge/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			dataset UNINDEXED,
			path UNINDEXED,
			file_name,
			tags,
			aliases,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsClear(tx *sql.Tx, dataset string) error {
	if _, err := tx.Exec(`DELETE FROM documents_fts WHERE dataset = ?`, dataset); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	return nil
}

func ftsInsert(tx *sql.Tx, dataset string, d models.DocumentMetadata) error {
	_, err := tx.Exec(`INSERT INTO documents_fts (dataset, path, file_name, tags, aliases) VALUES (?, ?, ?, ?, ?)`,
		dataset, d.RelativePath, d.FileName, d.StringTags, strings.Join(d.Aliases, " "))
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

// Search runs an FTS5 query over names, tags and aliases of one dataset.
func (db *DB) Search(dataset, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT path,
		       file_name,
		       snippet(documents_fts, 3, '<b>', '</b>', '...', 16)
		FROM documents_fts
		WHERE documents_fts MATCH ? AND dataset = ?
		ORDER BY rank
		LIMIT ?
	`, query, dataset, limit)
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
