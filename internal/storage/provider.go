// Package storage defines the vault file-system abstraction and the
// writers used for exported files.
package storage

import "github.com/starford/vaultbridge/internal/models"

// Provider is the read-only interface over the vault.
type Provider interface {
	// Root returns the absolute vault directory.
	Root() string
	// List returns every file and folder under dir (relative to vault root)
	// in lexical walk order. Hidden folders are skipped.
	List(dir string) ([]models.Entry, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
}
