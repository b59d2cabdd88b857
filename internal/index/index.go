package index

import "github.com/starford/vaultbridge/internal/models"

// SnapshotStore is the table form of exported datasets.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type SnapshotStore interface {
	ReplaceDataset(s Snapshot) error
	Backlinks(dataset, target string) ([]models.BacklinkEntry, error)
	Search(dataset, query string, limit int) ([]SearchResult, error)
	Exports() ([]ExportRow, error)
	Close() error
}

// Verify *DB satisfies SnapshotStore at compile time.
var _ SnapshotStore = (*DB)(nil)
