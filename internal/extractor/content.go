package extractor

import (
	"fmt"
	"strings"

	"github.com/starford/citemark/internal/anchor"
	"github.com/starford/citemark/internal/models"
)

// extractContent returns the cited text for link from the target parse, or
// a skip reason when the anchor cannot be located.
func extractContent(pf *models.ParsedFile, link *models.Link) (string, string) {
	if !link.HasAnchor() {
		return pf.Content, ""
	}

	raw := link.AnchorValue()
	if link.AnchorType == models.AnchorBlock {
		a := anchor.Find(pf.Anchors, models.AnchorBlock, strings.TrimPrefix(raw, "^"))
		if a == nil {
			return "", fmt.Sprintf("Block anchor not found in target: #%s", raw)
		}
		return lineAt(pf.Content, a.Line), ""
	}

	a := anchor.Find(pf.Anchors, models.AnchorHeader, raw)
	if a == nil {
		return "", fmt.Sprintf("Heading not found in target: #%s", raw)
	}
	section, ok := extractSection(pf, a.Line)
	if !ok {
		return "", fmt.Sprintf("Heading not found in target: #%s", raw)
	}
	return section, ""
}

// extractSection returns the heading on line plus everything up to the next
// heading of the same or shallower depth. Deeper headings are included.
func extractSection(pf *models.ParsedFile, line int) (string, bool) {
	idx := -1
	for i, h := range pf.Headings {
		if h.Line == line {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", false
	}

	lines := strings.Split(pf.Content, "\n")
	end := len(lines) + 1
	for _, h := range pf.Headings[idx+1:] {
		if h.Level <= pf.Headings[idx].Level {
			end = h.Line
			break
		}
	}
	section := strings.Join(lines[line-1:end-1], "\n")
	return strings.TrimRight(section, "\r\n"), true
}

func lineAt(content string, line int) string {
	lines := strings.Split(content, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[line-1], "\r")
}
