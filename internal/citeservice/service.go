// Package citeservice coordinates the vault store, the index and the
// validation/extraction engines for the HTTP, MCP and CLI surfaces.
package citeservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/starford/citemark/internal/apperr"
	"github.com/starford/citemark/internal/extractor"
	"github.com/starford/citemark/internal/index"
	"github.com/starford/citemark/internal/models"
	"github.com/starford/citemark/internal/parsecache"
	"github.com/starford/citemark/internal/storage"
	"github.com/starford/citemark/internal/validator"
)

// Invalidator drops cached parse results; satisfied by *parsecache.Cache.
type Invalidator interface {
	Invalidate(path string)
}

// Revalidation is reported after a file change caused a source to be
// validated again.
type Revalidation struct {
	Path    string         `json:"path"`
	Cause   string         `json:"cause"`
	Summary models.Summary `json:"summary"`
}

// Service is safe for concurrent use.
type Service struct {
	store     storage.Provider
	db        index.FileIndex
	cache     Invalidator
	validator *validator.Validator
	extractor *extractor.Extractor
	finder    validator.FileFinder
	logger    *slog.Logger
	notify    func(Revalidation)
}

// NewService creates a new citation service.
func NewService(
	store storage.Provider,
	db index.FileIndex,
	cache Invalidator,
	v *validator.Validator,
	x *extractor.Extractor,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:     store,
		db:        db,
		cache:     cache,
		validator: v,
		extractor: x,
		finder:    index.NewFinder(db, store.Root()),
		logger:    logger,
	}
}

// OnRevalidated registers fn to be called after each change-driven
// revalidation. It must be set before the watcher starts.
func (s *Service) OnRevalidated(fn func(Revalidation)) {
	s.notify = fn
}

// ResolvePath turns an absolute path or a vault-relative path into the
// symlink-free absolute path citations are recorded under. Relative paths
// may not escape the vault.
func (s *Service) ResolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: path is required", apperr.ErrInvalidPath)
	}
	abs := path
	if !filepath.IsAbs(path) {
		var err error
		if abs, err = s.store.Abs(path); err != nil {
			return "", err
		}
	}
	return parsecache.Normalize(abs)
}

// Validate validates every citation in the file at path and records the
// outcome for backlink queries.
func (s *Service) Validate(ctx context.Context, path string) (*validator.Result, error) {
	abs, err := s.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	res, err := s.validator.ValidateFile(ctx, abs)
	if err != nil {
		return nil, err
	}
	if err := s.db.RecordCitations(abs, res.Links); err != nil {
		s.logger.Warn("citeservice: record citations failed",
			slog.String("path", abs),
			slog.String("error", err.Error()))
	}
	return res, nil
}

// Extract extracts the eligible cited content of one or more files into a
// single deduplicated payload.
func (s *Service) Extract(ctx context.Context, paths []string, flags extractor.Flags) (*extractor.Result, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: at least one path is required", apperr.ErrInvalidPath)
	}
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		a, err := s.ResolvePath(p)
		if err != nil {
			return nil, err
		}
		abs = append(abs, a)
	}
	return s.extractor.ExtractFilesContent(ctx, abs, flags)
}

// Backlinks returns the recorded citations that point at path.
func (s *Service) Backlinks(_ context.Context, path string) ([]index.Citation, error) {
	abs, err := s.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	out, err := s.db.Backlinks(abs)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []index.Citation{}
	}
	return out, nil
}

// FindFile returns the absolute paths of vault files with the given name.
func (s *Service) FindFile(ctx context.Context, name string) ([]string, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperr.ErrInvalidPath)
	}
	out, err := s.finder.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// HandleChange reacts to a vault change: the cached parse of absPath is
// dropped and every previously validated source that cites it is
// validated again. Deleted files lose their own recorded citations.
func (s *Service) HandleChange(ctx context.Context, kind, absPath string) {
	s.cache.Invalidate(absPath)

	sources, err := s.citingSources(absPath)
	if err != nil {
		s.logger.Warn("citeservice: backlinks failed",
			slog.String("path", absPath),
			slog.String("error", err.Error()))
		return
	}

	if kind == index.EventDeleted {
		if err := s.db.DeleteCitations(absPath); err != nil {
			s.logger.Warn("citeservice: delete citations failed",
				slog.String("path", absPath),
				slog.String("error", err.Error()))
		}
		delete(sources, absPath)
	}

	for src := range sources {
		if ctx.Err() != nil {
			return
		}
		res, err := s.Validate(ctx, src)
		if err != nil {
			if errors.Is(err, apperr.ErrFileNotFound) {
				_ = s.db.DeleteCitations(src)
				continue
			}
			s.logger.Warn("citeservice: revalidate failed",
				slog.String("path", src),
				slog.String("error", err.Error()))
			continue
		}
		s.logger.Debug("citeservice: revalidated",
			slog.String("path", src),
			slog.String("cause", absPath),
			slog.Int("errors", res.Summary.Errors))
		if s.notify != nil {
			s.notify(Revalidation{Path: src, Cause: absPath, Summary: res.Summary})
		}
	}
}

// citingSources returns the recorded sources citing absPath, plus absPath
// itself when it was validated before.
func (s *Service) citingSources(absPath string) (map[string]struct{}, error) {
	back, err := s.db.Backlinks(absPath)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(back)+1)
	for _, c := range back {
		out[c.Source] = struct{}{}
	}
	validated, err := s.db.HasCitations(absPath)
	if err != nil {
		return nil, err
	}
	if validated {
		out[absPath] = struct{}{}
	}
	return out, nil
}
