package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/vaultbridge/internal/apperr"
	"github.com/starford/vaultbridge/internal/models"
)

// Snapshot is one dataset export as written to JSON.
type Snapshot struct {
	Dataset   string
	RunID     string
	Checksum  string
	Documents []models.DocumentMetadata
}

// ExportRow describes the last snapshot stored for a dataset.
type ExportRow struct {
	Dataset   string    `json:"dataset"`
	RunID     string    `json:"runId"`
	Checksum  string    `json:"checksum"`
	Documents int       `json:"documents"`
	WrittenAt time.Time `json:"writtenAt"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path     string `json:"relativePath"`
	FileName string `json:"fileName"`
	Snippet  string `json:"snippet"`
}

// ReplaceDataset drops every row of s.Dataset and stores s in its place,
// in a single transaction.
func (db *DB) ReplaceDataset(s Snapshot) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, table := range []string{"documents", "links", "backlinks"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE dataset = ?`, s.Dataset); err != nil {
			return fmt.Errorf("index: clear %s: %w", table, err)
		}
	}
	if err := ftsClear(tx, s.Dataset); err != nil {
		return err
	}

	docStmt, err := tx.Prepare(`
		INSERT INTO documents (dataset, path, position, file_name, uri, string_tags, aliases, frontmatter)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare document insert: %w", err)
	}
	defer docStmt.Close()

	linkStmt, err := tx.Prepare(`
		INSERT INTO links (dataset, source, position, link, clean_target, display_text, resolved_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare link insert: %w", err)
	}
	defer linkStmt.Close()

	backStmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO backlinks (dataset, target, source, display_name)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare backlink insert: %w", err)
	}
	defer backStmt.Close()

	for i, d := range s.Documents {
		aliases, _ := json.Marshal(orEmpty(d.Aliases))
		fm := []byte("{}")
		if len(d.Frontmatter) > 0 {
			if fm, err = json.Marshal(d.Frontmatter); err != nil {
				return fmt.Errorf("index: encode frontmatter of %s: %w", d.RelativePath, err)
			}
		}
		if _, err := docStmt.Exec(s.Dataset, d.RelativePath, i, d.FileName, d.URI, d.StringTags, string(aliases), string(fm)); err != nil {
			return fmt.Errorf("index: insert document %s: %w", d.RelativePath, err)
		}
		if err := ftsInsert(tx, s.Dataset, d); err != nil {
			return err
		}
		for j, l := range d.Links {
			if _, err := linkStmt.Exec(s.Dataset, d.RelativePath, j, l.Link, l.CleanTarget, l.DisplayText, l.ResolvedPath); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
		for _, b := range d.Backlinks {
			if _, err := backStmt.Exec(s.Dataset, d.RelativePath, b.SourcePath, b.DisplayName); err != nil {
				return fmt.Errorf("index: insert backlink: %w", err)
			}
		}
	}

	_, err = tx.Exec(`
		INSERT INTO exports (dataset, run_id, checksum, documents, written_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(dataset) DO UPDATE SET
			run_id     = excluded.run_id,
			checksum   = excluded.checksum,
			documents  = excluded.documents,
			written_at = excluded.written_at
	`, s.Dataset, s.RunID, s.Checksum, len(s.Documents), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: upsert export: %w", err)
	}

	return tx.Commit()
}

// Backlinks returns the documents of dataset that link to target, in the
// order the snapshot listed them. A target missing from the stored
// snapshot yields apperr.ErrNotFound.
func (db *DB) Backlinks(dataset, target string) ([]models.BacklinkEntry, error) {
	var one int
	err := db.conn.QueryRow(`SELECT 1 FROM documents WHERE dataset = ? AND path = ?`, dataset, target).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: %s in %s: %w", target, dataset, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT source, display_name FROM backlinks
		WHERE dataset = ? AND target = ?
		ORDER BY rowid`, dataset, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []models.BacklinkEntry
	for rows.Next() {
		var b models.BacklinkEntry
		if err := rows.Scan(&b.SourcePath, &b.DisplayName); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Exports lists the stored snapshots by dataset name.
func (db *DB) Exports() ([]ExportRow, error) {
	rows, err := db.conn.Query(`SELECT dataset, run_id, checksum, documents, written_at FROM exports ORDER BY dataset`)
	if err != nil {
		return nil, fmt.Errorf("index: exports: %w", err)
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var r ExportRow
		if err := rows.Scan(&r.Dataset, &r.RunID, &r.Checksum, &r.Documents, &r.WrittenAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
