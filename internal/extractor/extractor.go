// Package extractor pulls the content of cited sections, blocks and files
// into a deduplicated, content-addressed payload.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/starford/citemark/internal/models"
	"github.com/starford/citemark/internal/validator"
)

// DefaultWorkers bounds concurrent link extractions per file.
const DefaultWorkers = 16

// Outcome is the per-link extraction status.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

// Validator validates a source file; satisfied by *validator.Validator.
type Validator interface {
	ValidateFile(ctx context.Context, path string) (*validator.Result, error)
}

// Resolver returns parsed files; satisfied by *parsecache.Cache.
type Resolver interface {
	Resolve(ctx context.Context, path string) (*models.ParsedFile, error)
}

// LinkRef describes the citing link in a report entry.
type LinkRef struct {
	SourcePath string `json:"sourcePath"`
	Text       string `json:"text"`
	FullMatch  string `json:"fullMatch"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
}

// FailureDetails explains a skipped or failed link.
type FailureDetails struct {
	Reason string `json:"reason"`
}

// ProcessedLink is the report entry for one cross-document link.
type ProcessedLink struct {
	SourceLink        LinkRef           `json:"sourceLink"`
	TargetPath        string            `json:"targetPath"`
	TargetAnchor      string            `json:"targetAnchor,omitempty"`
	AnchorType        models.AnchorType `json:"anchorType"`
	ValidationStatus  models.Status     `json:"validationStatus,omitempty"`
	EligibilityReason string            `json:"eligibilityReason"`
	Status            Outcome           `json:"status"`
	ContentID         string            `json:"contentId,omitempty"`
	FailureDetails    *FailureDetails   `json:"failureDetails,omitempty"`
}

// Report lists every processed cross-document link.
type Report struct {
	ProcessedLinks []ProcessedLink `json:"processedLinks"`
}

// Stats summarises one extraction call.
type Stats struct {
	TotalLinks               int     `json:"totalLinks"`
	Successful               int     `json:"successful"`
	Skipped                  int     `json:"skipped"`
	Errors                   int     `json:"errors"`
	UniqueContent            int     `json:"uniqueContent"`
	DuplicateContentDetected int     `json:"duplicateContentDetected"`
	TokensSaved              int     `json:"tokensSaved"`
	CompressionRatio         float64 `json:"compressionRatio"`
}

// Result is the output of an extraction call.
type Result struct {
	ExtractedContentBlocks *ContentBlocks `json:"extractedContentBlocks"`
	OutgoingLinksReport    Report         `json:"outgoingLinksReport"`
	Stats                  Stats          `json:"stats"`
}

// Extractor is safe for concurrent use; each call owns its block store.
type Extractor struct {
	validator Validator
	cache     Resolver
	chain     []Strategy
	workers   int
	logger    *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithChain replaces the eligibility strategies.
func WithChain(chain ...Strategy) Option {
	return func(e *Extractor) {
		if len(chain) > 0 {
			e.chain = chain
		}
	}
}

// WithWorkers sets the per-file concurrency limit.
func WithWorkers(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Extractor.
func New(v Validator, cache Resolver, opts ...Option) *Extractor {
	e := &Extractor{
		validator: v,
		cache:     cache,
		chain:     DefaultChain(),
		workers:   DefaultWorkers,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractLinksContent extracts cited content for the file at path.
func (e *Extractor) ExtractLinksContent(ctx context.Context, path string, flags Flags) (*Result, error) {
	return e.ExtractFilesContent(ctx, []string{path}, flags)
}

// ExtractFilesContent extracts cited content for several source files into
// one shared block store, so identical content cited from different files
// is stored once.
func (e *Extractor) ExtractFilesContent(ctx context.Context, paths []string, flags Flags) (*Result, error) {
	store := NewContentBlocks()
	res := &Result{
		ExtractedContentBlocks: store,
		OutgoingLinksReport:    Report{ProcessedLinks: []ProcessedLink{}},
	}
	requested := 0

	for _, path := range paths {
		validated, err := e.validator.ValidateFile(ctx, path)
		if err != nil {
			return nil, err
		}

		var links []*models.Link
		for _, l := range validated.Links {
			if l.Scope == models.ScopeCrossDocument {
				links = append(links, l)
			}
		}

		outcomes := make([]outcome, len(links))
		var g errgroup.Group
		g.SetLimit(e.workers)
		for i, link := range links {
			g.Go(func() error {
				outcomes[i] = e.processLink(ctx, link, flags)
				return nil
			})
		}
		_ = g.Wait()

		// Dedup runs after all links settle so the store needs no locking.
		for i, o := range outcomes {
			pl := o.report
			if pl.Status == OutcomeSuccess {
				id, dup := store.Add(o.content, SourceRef{
					RawSourceLink: links[i].FullMatch,
					SourcePath:    links[i].Source.Path,
					SourceLine:    links[i].Line,
				})
				pl.ContentID = id
				requested += len(o.content)
				if dup {
					res.Stats.DuplicateContentDetected++
					res.Stats.TokensSaved += len(o.content) / 4
				}
			}
			res.OutgoingLinksReport.ProcessedLinks = append(res.OutgoingLinksReport.ProcessedLinks, pl)
		}

		e.logger.Debug("extractor: file processed",
			slog.String("path", path),
			slog.Int("links", len(links)),
			slog.Int("blocks", store.Len()))
	}

	for _, pl := range res.OutgoingLinksReport.ProcessedLinks {
		switch pl.Status {
		case OutcomeSuccess:
			res.Stats.Successful++
		case OutcomeSkipped:
			res.Stats.Skipped++
		default:
			res.Stats.Errors++
		}
	}
	res.Stats.TotalLinks = len(res.OutgoingLinksReport.ProcessedLinks)
	res.Stats.UniqueContent = store.Len()
	res.Stats.CompressionRatio = 1
	if requested > 0 {
		res.Stats.CompressionRatio = float64(store.StoredCharacters()) / float64(requested)
	}
	return res, nil
}

type outcome struct {
	report  ProcessedLink
	content string
}

func (e *Extractor) processLink(ctx context.Context, link *models.Link, flags Flags) outcome {
	pl := ProcessedLink{
		SourceLink: LinkRef{
			SourcePath: link.Source.Path,
			Text:       link.Text,
			FullMatch:  link.FullMatch,
			Line:       link.Line,
			Column:     link.Column,
		},
		TargetPath:   link.Target.Path.Absolute,
		TargetAnchor: link.AnchorValue(),
		AnchorType:   link.AnchorType,
	}
	if link.Validation != nil {
		pl.ValidationStatus = link.Validation.Status
		if link.Validation.ResolvedPath != "" {
			pl.TargetPath = link.Validation.ResolvedPath
		}
	}

	decision := Decide(e.chain, link, flags)
	pl.EligibilityReason = decision.Reason
	if !decision.Eligible {
		return skipped(pl, decision.Reason)
	}

	info, err := os.Stat(pl.TargetPath)
	if err != nil {
		return failed(pl, fmt.Sprintf("Target file cannot be read: %v", err))
	}
	if info.IsDir() {
		return failed(pl, fmt.Sprintf("Target is a directory: %s", pl.TargetPath))
	}

	pf, err := e.cache.Resolve(ctx, pl.TargetPath)
	if err != nil {
		return failed(pl, fmt.Sprintf("Target file cannot be read: %v", err))
	}

	content, reason := extractContent(pf, link)
	if reason != "" {
		return skipped(pl, reason)
	}
	pl.Status = OutcomeSuccess
	return outcome{report: pl, content: content}
}

func skipped(pl ProcessedLink, reason string) outcome {
	pl.Status = OutcomeSkipped
	pl.FailureDetails = &FailureDetails{Reason: reason}
	return outcome{report: pl}
}

func failed(pl ProcessedLink, reason string) outcome {
	pl.Status = OutcomeError
	pl.FailureDetails = &FailureDetails{Reason: reason}
	return outcome{report: pl}
}
