package models

// Status is the classification attached to a validated link.
type Status string

const (
	StatusValid   Status = "valid"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Kind names the failure mode behind a warning or error.
type Kind string

const (
	KindTargetMissing   Kind = "target_missing"
	KindAmbiguousTarget Kind = "ambiguous_target"
	KindAnchorMissing   Kind = "anchor_missing"
	KindInvalidAnchor   Kind = "invalid_anchor"
	KindFolderReference Kind = "folder_reference"
	KindScopeFallback   Kind = "scope_fallback"
	KindUnreadable      Kind = "unreadable"
)

// PathConversion is a corrected relative path from the source file to the
// target the validator actually found.
type PathConversion struct {
	Type        string `json:"type"`
	Original    string `json:"original"`
	Recommended string `json:"recommended"`
}

// Validation is the record attached to a Link. A valid record never carries
// Error, Suggestion or Candidates.
type Validation struct {
	Status         Status          `json:"status"`
	Kind           Kind            `json:"kind,omitempty"`
	Error          string          `json:"error,omitempty"`
	Suggestion     string          `json:"suggestion,omitempty"`
	Candidates     []string        `json:"candidates,omitempty"`
	PathConversion *PathConversion `json:"pathConversion,omitempty"`
	// ResolvedPath is the file the validator resolved the target to, which may
	// differ from Target.Path.Absolute after a fallback resolution.
	ResolvedPath string `json:"resolvedPath,omitempty"`
}

// Valid returns a valid record for the given resolved path.
func Valid(resolved string) *Validation {
	return &Validation{Status: StatusValid, ResolvedPath: resolved}
}

// Failed returns an error record.
func Failed(kind Kind, msg string) *Validation {
	return &Validation{Status: StatusError, Kind: kind, Error: msg}
}

// Warn returns a warning record.
func Warn(kind Kind, msg string) *Validation {
	return &Validation{Status: StatusWarning, Kind: kind, Error: msg}
}

// Summary counts link statuses.
type Summary struct {
	Total    int `json:"total"`
	Valid    int `json:"valid"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
}

// Summarize derives a Summary from the validation records on links. Links
// without a record count toward Total and Errors.
func Summarize(links []*Link) Summary {
	s := Summary{Total: len(links)}
	for _, l := range links {
		if l.Validation == nil {
			s.Errors++
			continue
		}
		switch l.Validation.Status {
		case StatusValid:
			s.Valid++
		case StatusWarning:
			s.Warnings++
		default:
			s.Errors++
		}
	}
	return s
}
