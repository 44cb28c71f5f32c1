// Package parser turns a Markdown file into the Parse Output Contract:
// headings, header and block anchors, and citation links with positions.
package parser

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/starford/citemark/internal/anchor"
	"github.com/starford/citemark/internal/models"
)

var (
	markdownLinkRe = regexp.MustCompile(`(!?)\[([^\]]*)\]\((<[^>]+>|[^)\s]*)(?:\s+"[^"]*")?\)`)
	wikiLinkRe     = regexp.MustCompile(`(!?)\[\[([^\]|]*)(?:\|([^\]]*))?\]\]`)
	blockAnchorRe  = regexp.MustCompile(`(?:^|\s)\^([A-Za-z0-9-]+)\s*$`)
	markerRe       = regexp.MustCompile(`^\s*(%%\s*(.+?)\s*%%|<!--\s*(.+?)\s*-->)`)
	schemeRe       = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)
)

// Parser is safe for concurrent use.
type Parser struct {
	md goldmark.Markdown
}

// New creates a Parser with GFM extensions enabled.
func New() *Parser {
	return &Parser{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// ParseFile reads and parses the file at the absolute path.
func (p *Parser) ParseFile(_ context.Context, path string) (*models.ParsedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("parser: read %s: %w", path, err)
	}
	return p.Parse(path, data), nil
}

// Parse builds the Parse Output Contract for data read from path.
func (p *Parser) Parse(path string, data []byte) *models.ParsedFile {
	doc := newDocument(data)
	fm := doc.splitFrontmatter()
	p.scanCode(doc)

	out := &models.ParsedFile{
		FilePath:    path,
		Content:     string(data),
		Frontmatter: fm,
		Headings:    doc.headings,
		Anchors:     []models.Anchor{},
		Links:       []*models.Link{},
	}

	for _, h := range doc.headings {
		out.Anchors = append(out.Anchors, models.Anchor{
			AnchorType:   models.AnchorHeader,
			ID:           h.Text,
			URLEncodedID: anchor.URLEncode(h.Text),
			RawText:      h.Raw,
			Line:         h.Line,
		})
	}

	for i, line := range doc.lines {
		lineNo := i + 1
		if doc.skipLine(lineNo) {
			continue
		}
		if m := blockAnchorRe.FindStringSubmatchIndex(line); m != nil {
			out.Anchors = append(out.Anchors, models.Anchor{
				AnchorType: models.AnchorBlock,
				ID:         line[m[2]:m[3]],
				RawText:    line[m[2]-1 : m[3]],
				Line:       lineNo,
				Column:     m[2] - 1,
			})
		}
		out.Links = append(out.Links, doc.markdownLinks(path, lineNo, line)...)
		out.Links = append(out.Links, doc.wikiLinks(path, lineNo, line)...)
	}

	sort.SliceStable(out.Links, func(i, j int) bool {
		if out.Links[i].Line != out.Links[j].Line {
			return out.Links[i].Line < out.Links[j].Line
		}
		return out.Links[i].Column < out.Links[j].Column
	})
	return out
}

// document carries per-parse scanning state.
type document struct {
	data       []byte
	lines      []string
	lineStarts []int
	bodyStart  int
	codeLines  map[int]struct{}
	codeSpans  [][2]int
	headings   []models.Heading
}

func newDocument(data []byte) *document {
	lines := strings.Split(string(data), "\n")
	starts := make([]int, len(lines))
	off := 0
	for i, l := range lines {
		starts[i] = off
		off += len(l) + 1
		lines[i] = strings.TrimRight(l, "\r")
	}
	return &document{
		data:       data,
		lines:      lines,
		lineStarts: starts,
		codeLines:  make(map[int]struct{}),
		headings:   []models.Heading{},
	}
}

// lineOf maps a byte offset to its 1-based line number.
func (d *document) lineOf(off int) int {
	return sort.Search(len(d.lineStarts), func(i int) bool { return d.lineStarts[i] > off })
}

func (d *document) skipLine(lineNo int) bool {
	if d.lineStarts[lineNo-1] < d.bodyStart {
		return true
	}
	_, code := d.codeLines[lineNo]
	return code
}

func (d *document) inCodeSpan(start, end int) bool {
	for _, s := range d.codeSpans {
		if start < s[1] && end > s[0] {
			return true
		}
	}
	return false
}

// splitFrontmatter records where the body starts so that front matter is
// neither tokenised as Markdown nor scanned for links.
func (d *document) splitFrontmatter() map[string]any {
	var fm map[string]any
	body, err := frontmatter.Parse(bytes.NewReader(d.data), &fm)
	if err != nil || len(body) >= len(d.data) || !bytes.HasSuffix(d.data, body) {
		return nil
	}
	d.bodyStart = len(d.data) - len(body)
	return fm
}

// scanCode walks the goldmark AST to collect headings and code regions.
func (p *Parser) scanCode(d *document) {
	body := d.data[d.bodyStart:]
	root := p.md.Parser().Parse(text.NewReader(body))

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			d.addHeading(node, body)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				d.codeLines[d.lineOf(d.bodyStart+lines.At(i).Start)] = struct{}{}
			}
			if fenced, ok := node.(*ast.FencedCodeBlock); ok {
				d.markFences(fenced)
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			start, end := -1, -1
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					if start < 0 {
						start = t.Segment.Start
					}
					end = t.Segment.Stop
				}
			}
			if start >= 0 {
				d.codeSpans = append(d.codeSpans, [2]int{d.bodyStart + start - 1, d.bodyStart + end + 1})
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
}

// markFences excludes the opening and closing fence lines around the code
// content of a fenced block.
func (d *document) markFences(n *ast.FencedCodeBlock) {
	lines := n.Lines()
	if lines.Len() == 0 {
		return
	}
	first := d.lineOf(d.bodyStart + lines.At(0).Start)
	last := d.lineOf(d.bodyStart + lines.At(lines.Len()-1).Start)
	if first > 1 {
		d.codeLines[first-1] = struct{}{}
	}
	if last < len(d.lines) {
		next := strings.TrimSpace(d.lines[last])
		if strings.HasPrefix(next, "```") || strings.HasPrefix(next, "~~~") {
			d.codeLines[last+1] = struct{}{}
		}
	}
}

func (d *document) addHeading(n *ast.Heading, body []byte) {
	lines := n.Lines()
	if lines.Len() == 0 {
		return
	}
	var parts []string
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, strings.TrimSpace(string(seg.Value(body))))
	}
	headingText := strings.TrimSpace(strings.Join(parts, " "))
	if headingText == "" {
		return
	}
	lineNo := d.lineOf(d.bodyStart + lines.At(0).Start)
	d.headings = append(d.headings, models.Heading{
		Level: n.Level,
		Text:  headingText,
		Raw:   d.lines[lineNo-1],
		Line:  lineNo,
	})
}

func (d *document) markdownLinks(source string, lineNo int, line string) []*models.Link {
	var out []*models.Link
	for _, m := range markdownLinkRe.FindAllStringSubmatchIndex(line, -1) {
		if m[3] > m[2] {
			continue // image
		}
		if d.inCodeSpan(d.lineStarts[lineNo-1]+m[0], d.lineStarts[lineNo-1]+m[1]) {
			continue
		}
		dest := strings.TrimSuffix(strings.TrimPrefix(line[m[6]:m[7]], "<"), ">")
		if dest == "" || schemeRe.MatchString(dest) || strings.HasPrefix(dest, "//") {
			continue
		}
		pathPart, anchorPart, _ := strings.Cut(dest, "#")
		if !citable(pathPart) {
			continue
		}
		if pathPart == "" && anchorPart == "" {
			continue
		}
		link := newLink(models.LinkTypeMarkdown, source, pathPart, anchorPart)
		link.Text = line[m[4]:m[5]]
		link.FullMatch = line[m[0]:m[1]]
		link.Line = lineNo
		link.Column = m[0]
		link.ExtractionMarker = markerAfter(line[m[1]:])
		out = append(out, link)
	}
	return out
}

func (d *document) wikiLinks(source string, lineNo int, line string) []*models.Link {
	var out []*models.Link
	for _, m := range wikiLinkRe.FindAllStringSubmatchIndex(line, -1) {
		if d.inCodeSpan(d.lineStarts[lineNo-1]+m[0], d.lineStarts[lineNo-1]+m[1]) {
			continue
		}
		target := strings.TrimSpace(line[m[4]:m[5]])
		pathPart, anchorPart, _ := strings.Cut(target, "#")
		pathPart = strings.TrimSpace(pathPart)
		if pathPart == "" && anchorPart == "" {
			continue
		}
		if !citable(pathPart) {
			continue
		}
		if pathPart != "" && filepath.Ext(pathPart) == "" {
			pathPart += ".md"
		}
		link := newLink(models.LinkTypeWiki, source, pathPart, anchorPart)
		link.Text = target
		if m[6] >= 0 {
			link.Text = line[m[6]:m[7]]
		}
		link.FullMatch = line[m[0]:m[1]]
		link.Line = lineNo
		link.Column = m[0]
		link.ExtractionMarker = markerAfter(line[m[1]:])
		out = append(out, link)
	}
	return out
}

// citable accepts markdown documents and extension-less paths (which may be
// folders); other file types are not citations.
func citable(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case "", ".md", ".markdown":
		return true
	}
	return false
}

func newLink(typ models.LinkType, source, pathPart, anchorPart string) *models.Link {
	link := &models.Link{
		LinkType:   typ,
		Source:     models.SourceRef{Path: source},
		AnchorType: models.AnchorNone,
	}
	if anchorPart != "" {
		a := anchorPart
		link.Target.Anchor = &a
		link.AnchorType = models.AnchorHeader
		if strings.HasPrefix(anchorPart, "^") {
			link.AnchorType = models.AnchorBlock
		}
	}
	if pathPart == "" {
		link.Scope = models.ScopeInternal
		return link
	}

	link.Scope = models.ScopeCrossDocument
	dir := filepath.Dir(source)
	abs := filepath.FromSlash(pathPart)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(dir, abs)
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(dir, abs)
	if err != nil {
		rel = pathPart
	}
	link.Target.Path = models.TargetPath{Raw: pathPart, Absolute: abs, Relative: rel}
	return link
}

func markerAfter(rest string) *models.ExtractionMarker {
	m := markerRe.FindStringSubmatch(rest)
	if m == nil {
		return nil
	}
	inner := m[2]
	if inner == "" {
		inner = m[3]
	}
	return &models.ExtractionMarker{
		FullMatch: strings.TrimSpace(m[1]),
		InnerText: strings.TrimSpace(inner),
	}
}
