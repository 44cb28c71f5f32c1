// Package parsecache memoises parsed Markdown files per normalised absolute
// path. Concurrent misses for one path collapse into a single parse; a failed
// parse is handed to every waiter and leaves no entry behind.
package parsecache

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/starford/citemark/internal/models"
)

// ParseFunc produces the Parse Output Contract for an absolute path.
type ParseFunc func(ctx context.Context, path string) (*models.ParsedFile, error)

// Cache is safe for concurrent use.
type Cache struct {
	parse  ParseFunc
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]*models.ParsedFile
	gens    map[string]uint64
	flight  singleflight.Group
}

// New creates a cache in front of parse. A nil logger discards logs.
func New(parse ParseFunc, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		parse:   parse,
		logger:  logger,
		entries: make(map[string]*models.ParsedFile),
		gens:    make(map[string]uint64),
	}
}

// Normalize returns the cache key for path: absolute, cleaned, and with
// symlinks evaluated when the path exists.
func Normalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("parsecache: resolve %s: %w", path, err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}
	return abs, nil
}

// Resolve returns the parsed file for path, parsing it at most once across
// concurrent callers. The parse is not tied to the caller's cancellation.
func (c *Cache) Resolve(ctx context.Context, path string) (*models.ParsedFile, error) {
	key, err := Normalize(path)
	if err != nil {
		return nil, err
	}

	if pf, ok := c.lookup(key); ok {
		c.logger.Debug("parsecache: hit", slog.String("path", key))
		return pf, nil
	}

	v, err, shared := c.flight.Do(key, func() (any, error) {
		// A flight that settled between lookup and Do already stored the entry.
		if pf, ok := c.lookup(key); ok {
			return pf, nil
		}
		c.logger.Debug("parsecache: miss", slog.String("path", key))
		c.mu.RLock()
		gen := c.gens[key]
		c.mu.RUnlock()
		pf, err := c.parse(context.WithoutCancel(ctx), key)
		if err != nil {
			return nil, err
		}
		// An Invalidate during the parse makes this result stale for later callers.
		c.mu.Lock()
		if c.gens[key] == gen {
			c.entries[key] = pf
		}
		c.mu.Unlock()
		return pf, nil
	})
	if err != nil {
		c.logger.Debug("parsecache: parse failed",
			slog.String("path", key),
			slog.Bool("shared", shared),
			slog.String("error", err.Error()))
		return nil, err
	}
	return v.(*models.ParsedFile), nil
}

// Invalidate drops the settled entry for path so the next Resolve reparses.
// A parse already in flight still answers its waiters but is not stored.
func (c *Cache) Invalidate(path string) {
	key, err := Normalize(path)
	if err != nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.gens[key]++
	c.mu.Unlock()
	c.flight.Forget(key)
}

// Len returns the number of settled entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(key string) (*models.ParsedFile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pf, ok := c.entries[key]
	return pf, ok
}
