package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/citemark/internal/models"
)

// FileRow represents a row in the files table. Path is vault-relative
// with forward slashes.
type FileRow struct {
	Path      string
	Name      string
	Checksum  string
	UpdatedAt time.Time
}

// Citation is one recorded link from a validated source file.
type Citation struct {
	Source string `json:"source"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Target string `json:"target"`
	Anchor string `json:"anchor,omitempty"`
	Status string `json:"status"`
	Kind   string `json:"kind,omitempty"`
}

// UpsertFile inserts or replaces a file row.
func (db *DB) UpsertFile(f FileRow) error {
	if f.Name == "" {
		f.Name = filepath.Base(f.Path)
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO files (path, name, checksum, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name       = excluded.name,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, f.Path, f.Name, f.Checksum, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert file: %w", err)
	}
	return nil
}

// DeleteFile removes a file row.
func (db *DB) DeleteFile(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete file: %w", err)
	}
	return nil
}

// GetChecksum returns the stored checksum for a file, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM files WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed file.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// PathsByName returns the vault-relative paths of every file whose base
// name equals name. A name without extension also matches name.md.
func (db *DB) PathsByName(ctx context.Context, name string) ([]string, error) {
	name = filepath.Base(filepath.FromSlash(name))
	alt := name
	if filepath.Ext(name) == "" {
		alt = name + ".md"
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT path FROM files WHERE name = ? OR name = ? ORDER BY path`, name, alt)
	if err != nil {
		return nil, fmt.Errorf("index: paths by name: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordCitations replaces the citations recorded for source with links.
// Links carry their validation outcome when one is attached.
func (db *DB) RecordCitations(source string, links []*models.Link) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM citations WHERE source = ?`, source); err != nil {
		return fmt.Errorf("index: clear citations: %w", err)
	}
	if len(links) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO citations (source, line, col, target, anchor, status, kind)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare citation insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range links {
			c := citationOf(source, l)
			if _, err := stmt.Exec(c.Source, c.Line, c.Column, c.Target, c.Anchor, c.Status, c.Kind); err != nil {
				return fmt.Errorf("index: insert citation: %w", err)
			}
		}
	}
	return tx.Commit()
}

// DeleteCitations removes every citation recorded for source.
func (db *DB) DeleteCitations(source string) error {
	if _, err := db.conn.Exec(`DELETE FROM citations WHERE source = ?`, source); err != nil {
		return fmt.Errorf("index: delete citations: %w", err)
	}
	return nil
}

// HasCitations reports whether citations were recorded for source.
func (db *DB) HasCitations(source string) (bool, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM citations WHERE source = ?`, source).Scan(&n); err != nil {
		return false, fmt.Errorf("index: has citations: %w", err)
	}
	return n > 0, nil
}

// Backlinks returns every recorded citation that points at target.
func (db *DB) Backlinks(target string) ([]Citation, error) {
	rows, err := db.conn.Query(`
		SELECT source, line, col, target, anchor, status, kind
		FROM citations WHERE target = ?
		ORDER BY source, line, col`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []Citation
	for rows.Next() {
		var c Citation
		if err := rows.Scan(&c.Source, &c.Line, &c.Column, &c.Target, &c.Anchor, &c.Status, &c.Kind); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func citationOf(source string, l *models.Link) Citation {
	c := Citation{
		Source: source,
		Line:   l.Line,
		Column: l.Column,
		Anchor: l.AnchorValue(),
	}
	switch {
	case l.Validation != nil && l.Validation.ResolvedPath != "":
		c.Target = l.Validation.ResolvedPath
	case l.Scope == models.ScopeInternal:
		c.Target = source
	default:
		c.Target = filepath.Clean(l.Target.Path.Absolute)
	}
	if l.Validation != nil {
		c.Status = string(l.Validation.Status)
		c.Kind = string(l.Validation.Kind)
	}
	return c
}

// Finder adapts the name lookup to absolute paths under a vault root.
type Finder struct {
	idx  FileIndex
	root string
}

// NewFinder returns a Finder over idx for the vault at root.
func NewFinder(idx FileIndex, root string) *Finder {
	return &Finder{idx: idx, root: root}
}

// FindByName returns absolute paths of vault files named name.
func (f *Finder) FindByName(ctx context.Context, name string) ([]string, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	rels, err := f.idx.PathsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rels))
	for _, r := range rels {
		out = append(out, filepath.Join(f.root, filepath.FromSlash(r)))
	}
	return out, nil
}
