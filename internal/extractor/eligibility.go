package extractor

import "github.com/starford/citemark/internal/models"

// Extraction marker directives recognised after a link.
const (
	MarkerStop  = "stop-extract-link"
	MarkerForce = "force-extract"
)

// Flags are the caller's extraction switches.
type Flags struct {
	FullFiles bool `json:"fullFiles"`
}

// Decision is the outcome of the eligibility chain for one link.
type Decision struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason"`
}

// Strategy decides eligibility for a link or abstains by returning false.
type Strategy func(link *models.Link, flags Flags) (Decision, bool)

// DefaultChain returns the strategies in precedence order. FullFileFlag is
// last and never abstains, so the chain always decides.
func DefaultChain() []Strategy {
	return []Strategy{StopMarker, ForceMarker, SectionLink, FullFileFlag}
}

// Decide returns the first decision made by chain.
func Decide(chain []Strategy, link *models.Link, flags Flags) Decision {
	for _, s := range chain {
		if d, ok := s(link, flags); ok {
			return d
		}
	}
	return Decision{Eligible: false, Reason: "Link not eligible: no rule applied"}
}

// StopMarker excludes links marked %%stop-extract-link%%, regardless of flags.
func StopMarker(link *models.Link, _ Flags) (Decision, bool) {
	if link.MarkerText() != MarkerStop {
		return Decision{}, false
	}
	return Decision{Eligible: false, Reason: "Link not eligible: stop-extract-link marker present"}, true
}

// ForceMarker includes links marked %%force-extract%%, even full-file links
// without the full-files flag.
func ForceMarker(link *models.Link, _ Flags) (Decision, bool) {
	if link.MarkerText() != MarkerForce {
		return Decision{}, false
	}
	return Decision{Eligible: true, Reason: "Force-extract marker present"}, true
}

// SectionLink includes links that name a section or block.
func SectionLink(link *models.Link, _ Flags) (Decision, bool) {
	if !link.HasAnchor() {
		return Decision{}, false
	}
	return Decision{Eligible: true, Reason: "Links to a specific section or block"}, true
}

// FullFileFlag decides full-file links from the caller's flags.
func FullFileFlag(_ *models.Link, flags Flags) (Decision, bool) {
	if flags.FullFiles {
		return Decision{Eligible: true, Reason: "Full-file extraction requested"}, true
	}
	return Decision{Eligible: false, Reason: "Link not eligible: full-file links need the full-files flag"}, true
}
