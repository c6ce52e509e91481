// Package mcpserver exposes the reference engine as MCP (Model Context
// Protocol) tools over stdio, for LLM clients that navigate the graph.
package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/soreine/mentis/internal/engine"
)

// Server wraps the MCP server with graph query tools.
type Server struct {
	mcp    *server.MCPServer
	engine *engine.Engine
}

// New creates an MCP server with all graph tools registered.
func New(eng *engine.Engine) *Server {
	s := &Server{engine: eng}

	s.mcp = server.NewMCPServer(
		"Mentis",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find the sources that mention a target. Exactly one of "+
			"record, date, or collection must be given; collection lookups also need scope."),
		mcp.WithString("record", mcp.Description("Record id to find backlinks for")),
		mcp.WithString("date", mcp.Description("ISO date (YYYY-MM-DD) to find backlinks for")),
		mcp.WithString("collection", mcp.Description("Collection slug to find backlinks for")),
		mcp.WithString("scope", mcp.Description("Owner scope (required for collection targets)")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List distinct tags in a scope with their usage counts."),
		mcp.WithString("scope", mcp.Required(), mcp.Description("Owner scope")),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("records_by_tag",
		mcp.WithDescription("List the record ids carrying a tag within a scope."),
		mcp.WithString("scope", mcp.Required(), mcp.Description("Owner scope")),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag name, with or without leading #")),
	), s.recordsByTag)

	s.mcp.AddTool(mcp.NewTool("outgoing_references",
		mcp.WithDescription("List a source's own outgoing references, including dangling "+
			"ones flagged as missing."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source record id")),
	), s.outgoingReferences)

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

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target := engine.Target{
		RecordID:       req.GetString("record", ""),
		Date:           req.GetString("date", ""),
		CollectionSlug: req.GetString("collection", ""),
		Scope:          req.GetString("scope", ""),
	}
	bl, err := s.engine.Backlinks(ctx, target)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	out, _ := json.MarshalIndent(bl, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope, err := req.RequireString("scope")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tags, err := s.engine.Tags(ctx, scope)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(tags, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) recordsByTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope, err := req.RequireString("scope")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids, err := s.engine.RecordsByTag(ctx, scope, strings.TrimPrefix(tag, "#"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(ids) == 0 {
		return mcp.NewToolResultText("no records found"), nil
	}
	return mcp.NewToolResultText(strings.Join(ids, "\n")), nil
}

func (s *Server) outgoingReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs, err := s.engine.OutgoingReferences(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(refs) == 0 {
		return mcp.NewToolResultText("no outgoing references"), nil
	}
	out, _ := json.MarshalIndent(refs, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
