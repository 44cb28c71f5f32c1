package mcpserver

// CitationSyntax describes the link forms, anchors and extraction markers
// the validator and extractor understand.
const CitationSyntax = `# Citation Syntax

Citations are Markdown or wiki links from one document to a file, a
section (heading) or a block inside it.

## Link forms

` + "```" + `markdown
[text](other.md)                 full-file link
[text](other.md#Section Title)   section link (heading text or URL-encoded form)
[text](other.md#^block-id)       block link
[text](#Local Heading)           internal link to this document
[[other]]                        wiki link, .md implied
[[other#Section]]                wiki section link
[[other#^block-id|label]]        wiki block link with display text
` + "```" + `

## Anchors

1. A heading is addressable by its text, e.g. ` + "`" + `#Install Steps` + "`" + `, or its
   URL-encoded form ` + "`" + `#Install%20Steps` + "`" + `.
2. A block anchor is declared by ending a line with ` + "`" + `^block-id` + "`" + `. Block ids
   use only letters, digits and hyphens.
3. Links inside fenced code blocks, indented code and inline code spans are ignored.

## Resolution

Targets resolve relative to the citing file. A target that is not found
there is looked up by file name across the vault: one match is reported
as a warning with the corrected relative path, several matches as an
ambiguous error listing the candidates.

## Extraction markers

Put a marker directly after a link to override extraction:

` + "```" + `markdown
[Setup](guide.md#Setup) %%stop-extract-link%%    never extract
[Guide](guide.md) <!-- force-extract -->         extract even a full-file link
` + "```" + `

Section and block links are extracted by default; full-file links only
when full-file extraction is requested.
`
