// Package validator resolves and classifies every citation in a Markdown
// file, attaching a validation record to each link.
package validator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/starford/citemark/internal/apperr"
	"github.com/starford/citemark/internal/models"
)

// DefaultWorkers bounds concurrent link checks per file.
const DefaultWorkers = 16

// maxSuggestions caps the nearest-anchor list on a missing anchor.
const maxSuggestions = 5

// Resolver returns parsed files; satisfied by *parsecache.Cache.
type Resolver interface {
	Resolve(ctx context.Context, path string) (*models.ParsedFile, error)
}

// FileFinder looks up markdown files by bare file name within a scope.
type FileFinder interface {
	FindByName(ctx context.Context, name string) ([]string, error)
}

// Result is the validated link list for one file. Summary is derived from
// the links' validation records.
type Result struct {
	Summary models.Summary `json:"summary"`
	Links   []*models.Link `json:"links"`
}

// Validator is safe for concurrent use.
type Validator struct {
	cache     Resolver
	finder    FileFinder
	vaultRoot string
	workers   int
	logger    *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithFinder enables the file-name fallback for targets that do not
// resolve by path.
func WithFinder(f FileFinder) Option {
	return func(v *Validator) { v.finder = f }
}

// WithVaultRoot enables resolution of vault-absolute link paths.
func WithVaultRoot(root string) Option {
	return func(v *Validator) {
		if abs, err := filepath.Abs(root); err == nil {
			v.vaultRoot = abs
		}
	}
}

// WithWorkers sets the per-file concurrency limit.
func WithWorkers(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// New creates a Validator reading parses through cache.
func New(cache Resolver, opts ...Option) *Validator {
	v := &Validator{
		cache:   cache,
		workers: DefaultWorkers,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateFile validates every link in the file at path. It fails with
// apperr.ErrFileNotFound before parsing when the file does not exist; a
// failing link never aborts its siblings.
func (v *Validator) ValidateFile(ctx context.Context, path string) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("validator: resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrFileNotFound, abs)
		}
		return nil, fmt.Errorf("validator: stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", apperr.ErrInvalidPath, abs)
	}

	pf, err := v.cache.Resolve(ctx, abs)
	if err != nil {
		return nil, fmt.Errorf("validator: parse %s: %w", abs, err)
	}

	// The cached contract is shared between callers; enrich private copies.
	links := make([]*models.Link, len(pf.Links))
	for i, l := range pf.Links {
		cp := *l
		cp.Validation = nil
		links[i] = &cp
	}

	var g errgroup.Group
	g.SetLimit(v.workers)
	for _, link := range links {
		g.Go(func() error {
			link.Validation = v.safeValidate(ctx, link)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Summary: models.Summarize(links), Links: links}
	v.logger.Debug("validator: file validated",
		slog.String("path", abs),
		slog.Int("total", res.Summary.Total),
		slog.Int("valid", res.Summary.Valid),
		slog.Int("warnings", res.Summary.Warnings),
		slog.Int("errors", res.Summary.Errors))
	return res, nil
}

func (v *Validator) safeValidate(ctx context.Context, link *models.Link) (val *models.Validation) {
	defer func() {
		if r := recover(); r != nil {
			val = models.Failed(models.KindUnreadable, fmt.Sprintf("Unexpected failure: %v", r))
		}
	}()
	return v.ValidateLink(ctx, link)
}

// ValidateLink classifies a single link without mutating it.
func (v *Validator) ValidateLink(ctx context.Context, link *models.Link) *models.Validation {
	if link.Scope == models.ScopeInternal {
		return v.checkAnchor(ctx, link, link.Source.Path, nil)
	}

	res, failure := v.resolveTarget(ctx, link)
	if failure != nil {
		return failure
	}

	if res.isDir {
		val := models.Warn(models.KindFolderReference,
			fmt.Sprintf("Link points to a folder, not a file: %s", link.Target.Path.Raw))
		val.Suggestion = "Link to a specific file inside the folder, or to the folder's index document (e.g. README.md)"
		val.ResolvedPath = res.path
		return val
	}

	if !link.HasAnchor() {
		if res.conversion != nil {
			return fallbackWarning(link, res)
		}
		return models.Valid(res.path)
	}
	return v.checkAnchor(ctx, link, res.path, &res)
}
