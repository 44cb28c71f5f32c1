package index

import (
	"context"

	"github.com/starford/citemark/internal/models"
)

// FileIndex defines the interface for vault index operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type FileIndex interface {
	UpsertFile(f FileRow) error
	DeleteFile(path string) error
	GetChecksum(path string) (string, error)
	PathsByName(ctx context.Context, name string) ([]string, error)
	AllChecksums() (map[string]string, error)
	RecordCitations(source string, links []*models.Link) error
	DeleteCitations(source string) error
	HasCitations(source string) (bool, error)
	Backlinks(target string) ([]Citation, error)
	Close() error
}

// Verify *DB satisfies FileIndex at compile time.
var _ FileIndex = (*DB)(nil)
