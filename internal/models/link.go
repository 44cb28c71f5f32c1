// Package models defines the Parse Output Contract and citation types shared by
// the parser, the parse cache, the validator and the extractor.
package models

// LinkType distinguishes the citation syntax.
type LinkType string

const (
	LinkTypeMarkdown LinkType = "markdown"
	LinkTypeWiki     LinkType = "wiki"
)

// Scope tells whether a link targets its own document or another file.
type Scope string

const (
	ScopeInternal      Scope = "internal"
	ScopeCrossDocument Scope = "cross-document"
)

// AnchorType is the kind of addressable point a link or anchor refers to.
type AnchorType string

const (
	AnchorHeader AnchorType = "header"
	AnchorBlock  AnchorType = "block"
	AnchorNone   AnchorType = "none"
)

// SourceRef identifies the file a link was found in.
type SourceRef struct {
	Path string `json:"path"`
}

// TargetPath holds the target path as written and as resolved by the parser.
type TargetPath struct {
	Raw      string `json:"raw"`
	Absolute string `json:"absolute"`
	Relative string `json:"relative"`
}

// TargetRef is the link destination. Anchor is nil for full-file links.
type TargetRef struct {
	Path   TargetPath `json:"path"`
	Anchor *string    `json:"anchor"`
}

// ExtractionMarker is a directive comment found right after a link,
// e.g. %%stop-extract-link%% or <!-- force-extract -->.
type ExtractionMarker struct {
	FullMatch string `json:"fullMatch"`
	InnerText string `json:"innerText"`
}

// Link is one citation occurrence. The parser produces it; the validator
// attaches Validation exactly once; the extractor only reads it.
type Link struct {
	LinkType         LinkType          `json:"linkType"`
	Scope            Scope             `json:"scope"`
	AnchorType       AnchorType        `json:"anchorType"`
	Source           SourceRef         `json:"source"`
	Target           TargetRef         `json:"target"`
	Text             string            `json:"text"`
	FullMatch        string            `json:"fullMatch"`
	Line             int               `json:"line"`
	Column           int               `json:"column"`
	ExtractionMarker *ExtractionMarker `json:"extractionMarker"`
	Validation       *Validation       `json:"validation,omitempty"`
}

// HasAnchor reports whether the link names a section or block.
func (l *Link) HasAnchor() bool {
	return l.Target.Anchor != nil && *l.Target.Anchor != ""
}

// AnchorValue returns the raw anchor text or "".
func (l *Link) AnchorValue() string {
	if l.Target.Anchor == nil {
		return ""
	}
	return *l.Target.Anchor
}

// MarkerText returns the trimmed marker directive or "".
func (l *Link) MarkerText() string {
	if l.ExtractionMarker == nil {
		return ""
	}
	return l.ExtractionMarker.InnerText
}
