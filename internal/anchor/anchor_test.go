package anchor

import (
	"testing"

	"github.com/starford/citemark/internal/models"
)

func header(text string) models.Anchor {
	return models.Anchor{AnchorType: models.AnchorHeader, ID: text, URLEncodedID: URLEncode(text), RawText: text}
}

func block(id string) models.Anchor {
	return models.Anchor{AnchorType: models.AnchorBlock, ID: id, RawText: "^" + id}
}

func TestURLEncode_StripsInvalidCharacters(t *testing.T) {
	cases := map[string]string{
		"Getting Started":     "Getting%20Started",
		"Setup: Linux":        "Setup%20Linux",
		"A | B":               "A%20%20B",
		"Wiki [[Link]] Title": "Wiki%20Link%20Title",
		"Plain":               "Plain",
	}
	for in, want := range cases {
		if got := URLEncode(in); got != want {
			t.Errorf("URLEncode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFind_HeaderMatchModes(t *testing.T) {
	anchors := []models.Anchor{header("Getting Started"), header("Setup: Linux"), block("ref-1")}

	cases := []struct {
		raw  string
		want string
	}{
		{"Getting Started", "Getting Started"},
		{"Getting%20Started", "Getting Started"},
		{"Setup%20Linux", "Setup: Linux"},
		{"Setup Linux", "Setup: Linux"},
	}
	for _, tc := range cases {
		got := Find(anchors, models.AnchorHeader, tc.raw)
		if got == nil {
			t.Errorf("Find(%q) = nil, want %q", tc.raw, tc.want)
			continue
		}
		if got.ID != tc.want {
			t.Errorf("Find(%q) = %q, want %q", tc.raw, got.ID, tc.want)
		}
	}

	if Find(anchors, models.AnchorHeader, "Missing") != nil {
		t.Error("expected nil for unknown heading")
	}
	if Find(anchors, models.AnchorHeader, "ref-1") != nil {
		t.Error("header lookup must not match block anchors")
	}
}

func TestFind_Block(t *testing.T) {
	anchors := []models.Anchor{header("ref-1"), block("ref-1")}
	got := Find(anchors, models.AnchorBlock, "ref-1")
	if got == nil || got.AnchorType != models.AnchorBlock {
		t.Fatalf("Find block = %+v", got)
	}
	if got.URLEncodedID != "" {
		t.Error("block anchors never carry urlEncodedId")
	}
}

func TestSimilar_RanksClosestFirstAndCaps(t *testing.T) {
	anchors := []models.Anchor{
		header("Installation"),
		header("Usage"),
		header("Install Guide"),
		header("Configuration"),
		header("FAQ"),
		header("License"),
		block("install-note"),
	}
	got := Similar(anchors, "Instalation", 5)
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5: %v", len(got), got)
	}
	if got[0] != "Installation" {
		t.Errorf("best match = %q, want Installation", got[0])
	}
}

func TestSimilar_Empty(t *testing.T) {
	if got := Similar(nil, "x", 5); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestValidBlockID(t *testing.T) {
	if !ValidBlockID("abc-123") {
		t.Error("abc-123 should be valid")
	}
	for _, bad := range []string{"", "has space", "under_score", "a.b"} {
		if ValidBlockID(bad) {
			t.Errorf("%q should be invalid", bad)
		}
	}
}
