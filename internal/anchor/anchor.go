// Package anchor implements heading id encoding, anchor lookup and
// nearest-match ranking for citation anchors.
package anchor

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/starford/citemark/internal/models"
)

// obsidianInvalid lists sequences Obsidian drops from heading ids.
var obsidianInvalid = strings.NewReplacer(
	":", "",
	"|", "",
	"^", "",
	"#", "",
	"%%", "",
	"[[", "",
	"]]", "",
)

var blockIDRe = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// Normalize strips Obsidian-invalid characters from heading text.
func Normalize(text string) string {
	return obsidianInvalid.Replace(text)
}

// URLEncode returns the percent-encoded id used in markdown links for a
// heading, e.g. "Setup: Linux" -> "Setup%20Linux".
func URLEncode(text string) string {
	return url.PathEscape(Normalize(text))
}

// ValidBlockID reports whether id is a well-formed block marker token.
func ValidBlockID(id string) bool {
	return blockIDRe.MatchString(id)
}

// Find returns the anchor in anchors that a link anchor of the given type
// refers to, or nil. Block anchors are given without the leading caret.
//
// Header anchors match on the literal id, the percent-encoded id, or the
// decoded anchor compared against the normalised heading text.
func Find(anchors []models.Anchor, typ models.AnchorType, raw string) *models.Anchor {
	if typ == models.AnchorBlock {
		for i := range anchors {
			if anchors[i].AnchorType == models.AnchorBlock && anchors[i].ID == raw {
				return &anchors[i]
			}
		}
		return nil
	}

	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	for i := range anchors {
		a := &anchors[i]
		if a.AnchorType != models.AnchorHeader {
			continue
		}
		if a.ID == raw || a.URLEncodedID == raw || a.ID == decoded || Normalize(a.ID) == decoded {
			return a
		}
	}
	return nil
}

// Display renders an anchor as it would be written after '#'.
func Display(a models.Anchor) string {
	if a.AnchorType == models.AnchorBlock {
		return "^" + a.ID
	}
	return a.ID
}

// Similar returns up to limit anchor ids closest to raw, best first. Ties
// keep document order.
func Similar(anchors []models.Anchor, raw string, limit int) []string {
	if limit <= 0 || len(anchors) == 0 {
		return nil
	}
	query := strings.ToLower(decode(raw))

	type scored struct {
		id    string
		score float64
	}
	seen := make(map[string]struct{}, len(anchors))
	ranked := make([]scored, 0, len(anchors))
	for _, a := range anchors {
		id := Display(a)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ranked = append(ranked, scored{id: id, score: similarity(query, strings.ToLower(id))})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.id
	}
	return out
}

func decode(s string) string {
	if d, err := url.PathUnescape(s); err == nil {
		return d
	}
	return s
}

// similarity maps edit distance onto [0,1]; 1 means identical.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes edit distance with two rolling rows.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	if len(a) > len(b) {
		a, b = b, a
	}

	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(b); j++ {
		curr[0] = j
		for i := 1; i <= len(a); i++ {
			if a[i-1] == b[j-1] {
				curr[i] = prev[i-1]
			} else {
				curr[i] = 1 + min(prev[i-1], prev[i], curr[i-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(a)]
}
