package extractor

import (
	"bytes"
	"encoding/json"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/starford/citemark/internal/checksum"
)

// TotalSizeKey is the diagnostic entry written first in the serialised
// block store. Its value is the byte size of the blocks serialised without
// it.
const TotalSizeKey = "_totalContentCharacterLength"

// SourceRef records which link produced a block.
type SourceRef struct {
	RawSourceLink string `json:"rawSourceLink"`
	SourcePath    string `json:"sourcePath"`
	SourceLine    int    `json:"sourceLine"`
}

// ContentBlock is one unique piece of extracted text.
type ContentBlock struct {
	Content       string      `json:"content"`
	ContentLength int         `json:"contentLength"`
	SourceLinks   []SourceRef `json:"sourceLinks"`
}

// ContentBlocks is the content-addressed store for one extraction call. It
// is not safe for concurrent use.
type ContentBlocks struct {
	blocks *orderedmap.OrderedMap[string, *ContentBlock]
}

// NewContentBlocks returns an empty store.
func NewContentBlocks() *ContentBlocks {
	return &ContentBlocks{blocks: orderedmap.New[string, *ContentBlock]()}
}

// Add stores content under its content id unless already present, records
// ref as a source, and reports whether the content was a duplicate.
func (c *ContentBlocks) Add(content string, ref SourceRef) (string, bool) {
	id := checksum.ContentID(content)
	if block, ok := c.blocks.Get(id); ok {
		block.SourceLinks = append(block.SourceLinks, ref)
		return id, true
	}
	c.blocks.Set(id, &ContentBlock{
		Content:       content,
		ContentLength: len(content),
		SourceLinks:   []SourceRef{ref},
	})
	return id, false
}

// Get returns the block stored under id.
func (c *ContentBlocks) Get(id string) (*ContentBlock, bool) {
	return c.blocks.Get(id)
}

// Len returns the number of unique blocks.
func (c *ContentBlocks) Len() int {
	return c.blocks.Len()
}

// IDs returns block ids in insertion order.
func (c *ContentBlocks) IDs() []string {
	ids := make([]string, 0, c.blocks.Len())
	for pair := c.blocks.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// StoredCharacters sums the lengths of unique blocks.
func (c *ContentBlocks) StoredCharacters() int {
	n := 0
	for pair := c.blocks.Oldest(); pair != nil; pair = pair.Next() {
		n += pair.Value.ContentLength
	}
	return n
}

// TotalSize returns the serialised size of the blocks, excluding the
// diagnostic entry itself.
func (c *ContentBlocks) TotalSize() (int, error) {
	data, err := c.marshalBlocks()
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func (c *ContentBlocks) marshalBlocks() ([]byte, error) {
	if c.blocks.Len() == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(c.blocks)
}

// MarshalJSON writes the diagnostic size entry first, then the blocks in
// insertion order.
func (c *ContentBlocks) MarshalJSON() ([]byte, error) {
	data, err := c.marshalBlocks()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"` + TotalSizeKey + `":`)
	buf.WriteString(strconv.Itoa(len(data)))
	if c.blocks.Len() > 0 {
		buf.WriteByte(',')
		buf.Write(data[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}
