package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/citemark/internal/index"
)

// ValidateRequest is the request body for POST /api/validate.
type ValidateRequest struct {
	Path string `json:"path" example:"notes/hello.md"`
}

// Validate checks the request fields.
func (r *ValidateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required),
	)
}

// ExtractRequest is the request body for POST /api/extract.
type ExtractRequest struct {
	Paths     []string `json:"paths" example:"notes/hello.md"`
	FullFiles bool     `json:"fullFiles"`
}

// Validate checks the request fields.
func (r *ExtractRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Paths, validation.Required, validation.Each(validation.Required)),
	)
}

// BacklinksResponse lists the recorded citations of one target.
type BacklinksResponse struct {
	Target    string           `json:"target"`
	Citations []index.Citation `json:"citations"`
}

// FilesResponse lists vault files matching a name.
type FilesResponse struct {
	Name  string   `json:"name"`
	Paths []string `json:"paths"`
}
