// Package storage defines the read-only vault file-system abstraction used
// for scope discovery.
package storage

import "github.com/starford/citemark/internal/models"

// Provider is the interface for vault file access.
type Provider interface {
	// Root returns the absolute vault root.
	Root() string
	// List returns metadata for every markdown file under dir (relative to vault root).
	List(dir string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Abs resolves path (relative to vault root) to an absolute path inside the vault.
	Abs(path string) (string, error)
	// Ignored reports whether a vault-relative path is out of scope.
	Ignored(rel string) bool
}
