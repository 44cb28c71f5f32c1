package validator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/starford/citemark/internal/apperr"
	"github.com/starford/citemark/internal/models"
	"github.com/starford/citemark/internal/parsecache"
	"github.com/starford/citemark/internal/parser"
	"github.com/starford/citemark/internal/testutil"
)

// stubFinder maps bare file names to absolute paths.
type stubFinder map[string][]string

func (f stubFinder) FindByName(_ context.Context, name string) ([]string, error) {
	return f[name], nil
}

const targetDoc = `# Target

## Install Steps

Run the installer.

### Details

Nested detail.

## Usage

Use it. ^usage-note

## Setup: Linux

Linux notes.
`

func newValidator(opts ...Option) *Validator {
	cache := parsecache.New(parser.New().ParseFile, nil)
	return New(cache, opts...)
}

func validate(t *testing.T, v *Validator, path string) *Result {
	t.Helper()
	res, err := v.ValidateFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ValidateFile: %v", err)
	}
	return res
}

func linkByText(t *testing.T, res *Result, text string) *models.Link {
	t.Helper()
	for _, l := range res.Links {
		if l.Text == text {
			return l
		}
	}
	t.Fatalf("no link with text %q", text)
	return nil
}

func assertInvariants(t *testing.T, res *Result) {
	t.Helper()
	s := res.Summary
	if s.Total != len(res.Links) {
		t.Errorf("summary.total = %d, len(links) = %d", s.Total, len(res.Links))
	}
	if s.Valid+s.Warnings+s.Errors != s.Total {
		t.Errorf("summary does not add up: %+v", s)
	}
	for _, l := range res.Links {
		if l.Validation == nil {
			t.Errorf("link %q has no validation", l.FullMatch)
			continue
		}
		if l.Validation.Status == models.StatusValid && (l.Validation.Error != "" || l.Validation.Suggestion != "") {
			t.Errorf("valid link %q carries error/suggestion: %+v", l.FullMatch, l.Validation)
		}
	}
}

func TestValidateFile_SourceMissing(t *testing.T) {
	v := newValidator()
	_, err := v.ValidateFile(context.Background(), filepath.Join(t.TempDir(), "nope.md"))
	if !errors.Is(err, apperr.ErrFileNotFound) {
		t.Fatalf("err = %v, want ErrFileNotFound", err)
	}
}

func TestValidateFile_Classification(t *testing.T) {
	root := testutil.TestVault(t, map[string]string{
		"target.md":      targetDoc,
		"docs/readme.md": "# Docs\n",
		"source.md": `# Source

- [install](target.md#Install%20Steps)
- [linux](target.md#Setup%20Linux)
- [block](target.md#^usage-note)
- [whole](target.md)
- [missing file](gone.md)
- [missing anchor](target.md#Instal)
- [folder](docs/)
- [bad caret](target.md#^bad_id)
- [self](#Source)
- [self missing](#Nowhere)
`,
	})
	v := newValidator()
	res := validate(t, v, filepath.Join(root, "source.md"))
	assertInvariants(t, res)

	wantValid := []string{"install", "linux", "block", "whole", "self"}
	for _, text := range wantValid {
		if l := linkByText(t, res, text); l.Validation.Status != models.StatusValid {
			t.Errorf("%s: status = %s (%s), want valid", text, l.Validation.Status, l.Validation.Error)
		}
	}

	missing := linkByText(t, res, "missing file").Validation
	if missing.Status != models.StatusError || missing.Kind != models.KindTargetMissing {
		t.Errorf("missing file = %+v", missing)
	}

	anchor := linkByText(t, res, "missing anchor").Validation
	if anchor.Status != models.StatusError || anchor.Kind != models.KindAnchorMissing {
		t.Errorf("missing anchor = %+v", anchor)
	}
	if len(anchor.Candidates) == 0 || len(anchor.Candidates) > 5 {
		t.Errorf("candidates = %v, want 1..5 entries", anchor.Candidates)
	}
	if anchor.Candidates[0] != "Install Steps" {
		t.Errorf("best candidate = %q, want Install Steps", anchor.Candidates[0])
	}

	folder := linkByText(t, res, "folder").Validation
	if folder.Status != models.StatusWarning || folder.Kind != models.KindFolderReference {
		t.Errorf("folder = %+v", folder)
	}
	if folder.Suggestion == "" {
		t.Error("folder warning should carry a suggestion")
	}

	caret := linkByText(t, res, "bad caret").Validation
	if caret.Status != models.StatusError || caret.Kind != models.KindInvalidAnchor {
		t.Errorf("bad caret = %+v", caret)
	}

	self := linkByText(t, res, "self missing").Validation
	if self.Status != models.StatusError || self.Kind != models.KindAnchorMissing {
		t.Errorf("self missing = %+v", self)
	}

	if res.Summary.Total != 10 {
		t.Errorf("total = %d, want 10", res.Summary.Total)
	}
}

func TestValidateFile_ScopeFallback(t *testing.T) {
	root := testutil.TestVault(t, map[string]string{
		"notes/deep/target.md": targetDoc,
		"src/source.md":        "See [t](target.md#Usage) and [plain](target.md).\n",
	})
	found := filepath.Join(root, "notes", "deep", "target.md")
	v := newValidator(WithFinder(stubFinder{"target.md": {found}}))

	res := validate(t, v, filepath.Join(root, "src", "source.md"))
	assertInvariants(t, res)

	for _, text := range []string{"t", "plain"} {
		val := linkByText(t, res, text).Validation
		if val.Status != models.StatusWarning || val.Kind != models.KindScopeFallback {
			t.Errorf("%s: %+v", text, val)
			continue
		}
		if val.ResolvedPath != found {
			t.Errorf("%s: resolved = %q", text, val.ResolvedPath)
		}
	}

	conv := linkByText(t, res, "t").Validation.PathConversion
	if conv == nil {
		t.Fatal("expected path conversion")
	}
	if conv.Original != "target.md#Usage" || conv.Recommended != "../notes/deep/target.md#Usage" {
		t.Errorf("conversion = %+v", conv)
	}
	if plain := linkByText(t, res, "plain").Validation.PathConversion; plain.Recommended != "../notes/deep/target.md" {
		t.Errorf("plain conversion = %+v", plain)
	}
}

func TestValidateFile_ScopeFallbackAnchorMissing(t *testing.T) {
	root := testutil.TestVault(t, map[string]string{
		"a/target.md": targetDoc,
		"source.md":   "[t](target.md#Nope)\n",
	})
	v := newValidator(WithFinder(stubFinder{"target.md": {filepath.Join(root, "a", "target.md")}}))
	res := validate(t, v, filepath.Join(root, "source.md"))

	val := res.Links[0].Validation
	if val.Status != models.StatusError || val.Kind != models.KindAnchorMissing {
		t.Fatalf("validation = %+v", val)
	}
	if val.PathConversion == nil || val.PathConversion.Recommended != "a/target.md#Nope" {
		t.Errorf("conversion = %+v", val.PathConversion)
	}
}

func TestValidateFile_AmbiguousFallback(t *testing.T) {
	root := testutil.TestVault(t, map[string]string{
		"a/target.md": "# A\n",
		"b/target.md": "# B\n",
		"source.md":   "[t](target.md)\n",
	})
	v := newValidator(WithFinder(stubFinder{"target.md": {
		filepath.Join(root, "a", "target.md"),
		filepath.Join(root, "b", "target.md"),
	}}))
	res := validate(t, v, filepath.Join(root, "source.md"))

	val := res.Links[0].Validation
	if val.Status != models.StatusError || val.Kind != models.KindAmbiguousTarget {
		t.Fatalf("validation = %+v", val)
	}
	if len(val.Candidates) != 2 {
		t.Errorf("candidates = %v", val.Candidates)
	}
}

func TestValidateFile_VaultAbsoluteAndWiki(t *testing.T) {
	root := testutil.TestVault(t, map[string]string{
		"guides/setup.md": targetDoc,
		"journal/day.md":  "[[guides/setup#Usage]] and [abs](/guides/setup.md#^usage-note)\n",
	})
	v := newValidator(WithVaultRoot(root))
	res := validate(t, v, filepath.Join(root, "journal", "day.md"))
	assertInvariants(t, res)
	if res.Summary.Valid != 2 {
		for _, l := range res.Links {
			t.Logf("%s -> %+v", l.FullMatch, l.Validation)
		}
		t.Errorf("valid = %d, want 2", res.Summary.Valid)
	}
}

func TestValidateFile_ConcurrentCallsDoNotShareLinks(t *testing.T) {
	root := testutil.TestVault(t, map[string]string{
		"target.md": targetDoc,
		"source.md": "[a](target.md#Usage) [b](missing.md)\n",
	})
	v := newValidator()
	path := filepath.Join(root, "source.md")

	const n = 8
	results := make([]*Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = validate(t, v, path)
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i].Links[0] == results[0].Links[0] {
			t.Fatal("validation results share link objects")
		}
		if results[i].Summary != results[0].Summary {
			t.Errorf("summary %d = %+v, want %+v", i, results[i].Summary, results[0].Summary)
		}
	}
}
