// Package envtest wires a complete citation service over a temporary
// vault for handler-level tests.
package envtest

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/citemark/internal/citeservice"
	"github.com/starford/citemark/internal/extractor"
	"github.com/starford/citemark/internal/index"
	"github.com/starford/citemark/internal/parsecache"
	"github.com/starford/citemark/internal/parser"
	"github.com/starford/citemark/internal/storage"
	"github.com/starford/citemark/internal/testutil"
	"github.com/starford/citemark/internal/validator"
)

// Env is a fully wired citation service over a temporary vault.
type Env struct {
	Root  string
	DB    *index.DB
	Cache *parsecache.Cache
	Svc   *citeservice.Service
}

// NewEnv writes files into a temporary vault, indexes it and wires the
// parser, cache, validator, extractor and service over it.
func NewEnv(t *testing.T, files map[string]string) *Env {
	t.Helper()
	root := testutil.TestVault(t, files)
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	db := testutil.TestDB(t)
	logger := slog.New(slog.DiscardHandler)
	if _, err := index.Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}
	cache := parsecache.New(parser.New().ParseFile, logger)
	v := validator.New(cache,
		validator.WithFinder(index.NewFinder(db, store.Root())),
		validator.WithVaultRoot(store.Root()),
		validator.WithLogger(logger))
	x := extractor.New(v, cache, extractor.WithLogger(logger))
	return &Env{
		Root:  store.Root(),
		DB:    db,
		Cache: cache,
		Svc:   citeservice.NewService(store, db, cache, v, x, logger),
	}
}

// Path returns the absolute path of a vault-relative file.
func (e *Env) Path(rel string) string {
	return filepath.Join(e.Root, filepath.FromSlash(rel))
}
