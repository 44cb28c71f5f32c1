package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/citemark/internal/extractor"
	"github.com/starford/citemark/internal/index"
	"github.com/starford/citemark/internal/validator"
)

// Service is the citation service consumed by the handlers; satisfied by
// *citeservice.Service.
type Service interface {
	Validate(ctx context.Context, path string) (*validator.Result, error)
	Extract(ctx context.Context, paths []string, flags extractor.Flags) (*extractor.Result, error)
	Backlinks(ctx context.Context, path string) ([]index.Citation, error)
	FindFile(ctx context.Context, name string) ([]string, error)
}

// Handler holds API route handlers.
type Handler struct {
	svc Service
}

// NewHandler creates a new Handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// wildcardPath extracts the vault path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Validate handles POST /api/validate.
//
//	@Summary		Validate every citation in a file
//	@Tags			citations
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ValidateRequest	true	"File to validate"
//	@Success		200		{object}	validator.Result
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/validate [post]
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res, err := h.svc.Validate(r.Context(), req.Path)
	if err != nil {
		writeServiceError(w, "validate", req.Path, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Extract handles POST /api/extract.
//
//	@Summary		Extract cited content from one or more files
//	@Tags			citations
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ExtractRequest	true	"Source files and flags"
//	@Success		200		{object}	extractor.Result
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/extract [post]
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res, err := h.svc.Extract(r.Context(), req.Paths, extractor.Flags{FullFiles: req.FullFiles})
	if err != nil {
		writeServiceError(w, "extract", strings.Join(req.Paths, ","), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Backlinks handles GET /api/backlinks/*.
//
//	@Summary		List recorded citations pointing at a file
//	@Tags			citations
//	@Produce		json
//	@Param			path	path		string	true	"Target path"
//	@Success		200		{object}	BacklinksResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	cites, err := h.svc.Backlinks(r.Context(), path)
	if err != nil {
		writeServiceError(w, "backlinks", path, err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Target: path, Citations: cites})
}

// Files handles GET /api/files?name=.
//
//	@Summary		Find vault files by name
//	@Tags			files
//	@Produce		json
//	@Param			name	query		string	true	"File name, with or without .md"
//	@Success		200		{object}	FilesResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files [get]
func (h *Handler) Files(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'name' is required"))
		return
	}
	paths, err := h.svc.FindFile(r.Context(), name)
	if err != nil {
		writeServiceError(w, "find file", name, err)
		return
	}
	writeJSON(w, http.StatusOK, FilesResponse{Name: name, Paths: paths})
}
