// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes citation validation and extraction tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/citemark/internal/extractor"
	"github.com/starford/citemark/internal/index"
	"github.com/starford/citemark/internal/validator"
)

const syntaxURI = "citemark://citation-syntax"

// Service is the citation service behind the tools; satisfied by
// *citeservice.Service.
type Service interface {
	Validate(ctx context.Context, path string) (*validator.Result, error)
	Extract(ctx context.Context, paths []string, flags extractor.Flags) (*extractor.Result, error)
	Backlinks(ctx context.Context, path string) ([]index.Citation, error)
	FindFile(ctx context.Context, name string) ([]string, error)
}

// Server wraps the MCP server with citation tools.
type Server struct {
	mcp *server.MCPServer
	svc Service
}

// New creates a new MCP server with all tools registered.
func New(svc Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"citemark",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("validate_citations",
		mcp.WithDescription("Validate every citation in a Markdown file. Returns a summary and "+
			"each link with its status (valid, warning, error), error text, suggestions and "+
			"corrected paths."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative or absolute path of the file to validate")),
	), s.validateCitations)

	s.mcp.AddTool(mcp.NewTool("extract_links_content",
		mcp.WithDescription("Extract the content cited by one or more files into deduplicated, "+
			"content-addressed blocks. Section and block links are extracted by default; "+
			"see the citemark://citation-syntax resource for markers."),
		mcp.WithArray("paths", mcp.Required(), mcp.WithStringItems(),
			mcp.Description("Source files whose citations should be extracted")),
		mcp.WithBoolean("full_files", mcp.Description("Also extract full-file links")),
	), s.extractLinksContent)

	s.mcp.AddTool(mcp.NewTool("find_file",
		mcp.WithDescription("Find Markdown files in the vault by file name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("File name, with or without the .md extension")),
	), s.findFile)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("List recorded citations pointing at a file. Only files validated "+
			"since startup contribute citations."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative or absolute target path")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_citation_syntax",
		mcp.WithDescription("Returns the supported link, anchor and extraction marker syntax."),
	), s.getCitationSyntax)

	s.mcp.AddResource(
		mcp.NewResource(syntaxURI, "Citation Syntax",
			mcp.WithResourceDescription("Link forms, anchors and extraction markers understood by citemark."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSyntaxResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) validateCitations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Validate(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) extractLinksContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths := req.GetStringSlice("paths", nil)
	if len(paths) == 0 {
		return mcp.NewToolResultError("required argument \"paths\" not found"), nil
	}
	flags := extractor.Flags{FullFiles: req.GetBool("full_files", false)}
	res, err := s.svc.Extract(ctx, paths, flags)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) findFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths, err := s.svc.FindFile(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no file named %s", name)), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cites, err := s.svc.Backlinks(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(cites) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	lines := make([]string, len(cites))
	for i, c := range cites {
		lines[i] = fmt.Sprintf("%s:%d:%d %s", c.Source, c.Line, c.Column, c.Status)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getCitationSyntax(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CitationSyntax), nil
}

func (s *Server) readSyntaxResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      syntaxURI,
			MIMEType: "text/markdown",
			Text:     CitationSyntax,
		},
	}, nil
}
