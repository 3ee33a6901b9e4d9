// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Ignite tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ignite/internal/apperr"
	"github.com/starford/ignite/internal/parser"
	"github.com/starford/ignite/internal/thoughtservice"
)

const formatURI = "ignite://file-format"

// Server wraps the MCP server with Ignite tools.
type Server struct {
	mcp *server.MCPServer
	svc *thoughtservice.Service
}

// New creates a new MCP server with all Ignite tools registered.
func New(svc *thoughtservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Ignite",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("save_thought",
		mcp.WithDescription("Save a short thought. It is stored locally at once and appended to the shared file when signed in."),
		mcp.WithString("content", mcp.Required(), mcp.Description("The thought; line breaks are folded into spaces")),
	), s.saveThought)

	s.mcp.AddTool(mcp.NewTool("list_thoughts",
		mcp.WithDescription("List recent thoughts, newest first, one encoded line per thought."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of thoughts (default 50)")),
		mcp.WithBoolean("unsynced_only", mcp.Description("Only thoughts not yet in the shared file")),
	), s.listThoughts)

	s.mcp.AddTool(mcp.NewTool("search_thoughts",
		mcp.WithDescription("Search thought content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchThoughts)

	s.mcp.AddTool(mcp.NewTool("sync_now",
		mcp.WithDescription("Merge local thoughts with the shared file now and report what changed."),
	), s.syncNow)

	s.mcp.AddTool(mcp.NewTool("sync_status",
		mcp.WithDescription("Report sync state: online, signed in, last sync, last error and counts."),
	), s.syncStatus)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Thoughts File Format",
			mcp.WithResourceDescription("Line format of the shared thoughts file."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) saveThought(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.svc.Save(ctx, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s", parser.EncodeOne(*t))), nil
}

func (s *Server) listThoughts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var lines []string
	if req.GetBool("unsynced_only", false) {
		items, err := s.svc.Unsynced(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		for _, t := range items {
			lines = append(lines, parser.EncodeOne(t))
		}
	} else {
		items, err := s.svc.List(ctx, req.GetInt("limit", 0))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		for _, t := range items {
			lines = append(lines, parser.EncodeOne(t))
		}
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no thoughts"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) searchThoughts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, thoughtservice.SearchQuery{Query: query, Limit: req.GetInt("limit", 0)})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) syncNow(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Sync(ctx)
	if err != nil {
		msg := err.Error()
		if apperr.IsPermission(err) {
			msg += " (reauthorize to continue syncing)"
		}
		return mcp.NewToolResultError(msg), nil
	}
	return jsonResult(res), nil
}

func (s *Server) syncStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st), nil
}

func (s *Server) readFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     FileFormat,
		},
	}, nil
}
