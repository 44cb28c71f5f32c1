package parsecache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/citemark/internal/models"
)

// countingParser records parse calls per path.
type countingParser struct {
	mu    sync.Mutex
	calls map[string]int
	fail    atomic.Bool
	gate    chan struct{}
	entered chan struct{}
}

func newCountingParser() *countingParser {
	return &countingParser{calls: make(map[string]int)}
}

func (p *countingParser) parse(_ context.Context, path string) (*models.ParsedFile, error) {
	p.mu.Lock()
	p.calls[path]++
	p.mu.Unlock()
	if p.entered != nil {
		select {
		case p.entered <- struct{}{}:
		default:
		}
	}
	if p.gate != nil {
		<-p.gate
	}
	if p.fail.Load() {
		return nil, errors.New("boom")
	}
	return &models.ParsedFile{FilePath: path}, nil
}

func (p *countingParser) count(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[path]
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("# x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	real, err := Normalize(p)
	if err != nil {
		t.Fatal(err)
	}
	return real
}

func TestResolve_SingleFlight(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.md")
	cp := newCountingParser()
	cp.gate = make(chan struct{})
	cp.entered = make(chan struct{}, 1)
	c := New(cp.parse, nil)

	const n = 32
	var wg sync.WaitGroup
	var started sync.WaitGroup
	results := make([]*models.ParsedFile, n)
	errs := make([]error, n)
	resolve := func(i int) {
		wg.Add(1)
		started.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			results[i], errs[i] = c.Resolve(context.Background(), path)
		}()
	}

	resolve(0)
	<-cp.entered
	for i := 1; i < n; i++ {
		resolve(i)
	}
	started.Wait()
	// Give the late callers time to join the blocked flight.
	time.Sleep(50 * time.Millisecond)
	if c.Len() != 0 {
		t.Fatalf("entry stored before the parse finished")
	}
	if got := cp.count(path); got != 1 {
		t.Fatalf("parse calls while gated = %d, want 1", got)
	}
	close(cp.gate)
	wg.Wait()

	if got := cp.count(path); got != 1 {
		t.Fatalf("parse calls = %d, want 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Fatalf("caller %d got a different result", i)
		}
	}
}

func TestResolve_HitSkipsParser(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.md")
	cp := newCountingParser()
	c := New(cp.parse, nil)

	for i := 0; i < 3; i++ {
		if _, err := c.Resolve(context.Background(), path); err != nil {
			t.Fatal(err)
		}
	}
	if got := cp.count(path); got != 1 {
		t.Errorf("parse calls = %d, want 1", got)
	}
}

func TestResolve_NormalizesSpellings(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.md")
	cp := newCountingParser()
	c := New(cp.parse, nil)

	spellings := []string{
		filepath.Join(dir, "a.md"),
		dir + string(filepath.Separator) + "." + string(filepath.Separator) + "a.md",
		dir + string(filepath.Separator) + string(filepath.Separator) + "a.md",
		filepath.Join(dir, "sub", "..", "a.md"),
	}
	for _, s := range spellings {
		if _, err := c.Resolve(context.Background(), s); err != nil {
			t.Fatalf("Resolve(%q): %v", s, err)
		}
	}
	if got := cp.count(path); got != 1 {
		t.Errorf("parse calls = %d, want 1", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestResolve_Isolation(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.md")
	b := writeFile(t, dir, "b.md")
	cp := newCountingParser()
	c := New(cp.parse, nil)

	if _, err := c.Resolve(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if got := cp.count(b); got != 0 {
		t.Errorf("resolving a parsed b %d times", got)
	}
}

func TestResolve_FailureIsNotCached(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.md")
	cp := newCountingParser()
	cp.fail.Store(true)
	c := New(cp.parse, nil)

	if _, err := c.Resolve(context.Background(), path); err == nil {
		t.Fatal("expected error")
	}
	if c.Len() != 0 {
		t.Errorf("failed parse left %d entries", c.Len())
	}

	cp.fail.Store(false)
	pf, err := c.Resolve(context.Background(), path)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if pf == nil || cp.count(path) != 2 {
		t.Errorf("retry parse calls = %d, want 2", cp.count(path))
	}
}

func TestResolve_FailureSharedByWaiters(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.md")
	cp := newCountingParser()
	cp.fail.Store(true)
	cp.gate = make(chan struct{})
	c := New(cp.parse, nil)

	const n = 8
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Resolve(context.Background(), path); err != nil {
				failures.Add(1)
			}
		}()
	}
	close(cp.gate)
	wg.Wait()

	if failures.Load() != n {
		t.Errorf("failures = %d, want %d", failures.Load(), n)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestInvalidate_ForcesReparse(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.md")
	cp := newCountingParser()
	c := New(cp.parse, nil)

	_, _ = c.Resolve(context.Background(), path)
	c.Invalidate(path)
	_, _ = c.Resolve(context.Background(), path)

	if got := cp.count(path); got != 2 {
		t.Errorf("parse calls = %d, want 2", got)
	}
}

func TestInvalidate_DuringParseDropsResult(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.md")
	cp := newCountingParser()
	cp.gate = make(chan struct{})
	cp.entered = make(chan struct{}, 1)
	c := New(cp.parse, nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.Resolve(context.Background(), path)
		done <- err
	}()
	<-cp.entered
	c.Invalidate(path)
	close(cp.gate)
	if err := <-done; err != nil {
		t.Fatalf("in-flight Resolve: %v", err)
	}

	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0 after invalidate during parse", c.Len())
	}
	if _, err := c.Resolve(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if got := cp.count(path); got != 2 {
		t.Errorf("parse calls = %d, want 2", got)
	}
}
