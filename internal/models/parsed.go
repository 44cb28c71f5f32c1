package models

// Heading is one markdown heading.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	Raw   string `json:"raw"`
	Line  int    `json:"line"`
}

// Anchor is an addressable point in a document. URLEncodedID is set for
// header anchors only.
type Anchor struct {
	AnchorType   AnchorType `json:"anchorType"`
	ID           string     `json:"id"`
	URLEncodedID string     `json:"urlEncodedId,omitempty"`
	RawText      string     `json:"rawText"`
	Line         int        `json:"line"`
	Column       int        `json:"column"`
}

// ParsedFile is the Parse Output Contract for one file.
type ParsedFile struct {
	FilePath    string         `json:"filePath"`
	Content     string         `json:"content"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Headings    []Heading      `json:"headings"`
	Anchors     []Anchor       `json:"anchors"`
	Links       []*Link        `json:"links"`
}

// FileMeta describes a markdown file discovered in the vault.
type FileMeta struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Checksum string `json:"checksum"`
}
