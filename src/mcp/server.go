package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"errlens-agent/src/api"
	"errlens-agent/src/ingest"
	"errlens-agent/src/store"
)

// Server is the MCP server for errlens.
type Server struct {
	mcpServer *server.MCPServer
	backend   api.Backend
}

// NewServer creates a new MCP server over backend.
func NewServer(backend api.Backend, version string) *Server {
	s := server.NewMCPServer(
		"errlens",
		version,
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer: s,
		backend:   backend,
	}
	srv.registerTools()

	return srv
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	getErrorsTool := mcp.NewTool("get_errors",
		mcp.WithDescription("List browser errors captured by errlens, most recent first. Each entry carries the message, a compacted stack and, once analysis has completed, the severity, explanation, cause and suggested fix."),
		mcp.WithString("status",
			mcp.Description("Only return events with this analysis status"),
			mcp.Enum("pending", "analyzing", "completed", "failed"),
		),
		mcp.WithString("category",
			mcp.Description("Only return events in this category"),
			mcp.Enum("javascript", "network", "dom", "performance", "csp", "deprecation", "intervention"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Max events to return (default: %d)", DefaultLimit)),
		),
		mcp.WithBoolean("by_severity",
			mcp.Description("Order analyzed events by severity before unanalyzed ones"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	clearTool := mcp.NewTool("clear_errors",
		mcp.WithDescription("Delete every captured error. Analysis still in flight is discarded."),
		mcp.WithDestructiveHintAnnotation(true),
	)

	configTool := mcp.NewTool("get_config",
		mcp.WithDescription("Show whether capture is enabled, the domain patterns it is active on, and whether an analysis API key is configured."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	checkDomainTool := mcp.NewTool("check_domain",
		mcp.WithDescription("Report whether errors would be captured on a host."),
		mcp.WithString("host",
			mcp.Required(),
			mcp.Description("Host name, e.g. app.example.com"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	requeueTool := mcp.NewTool("requeue_error",
		mcp.WithDescription("Send an event whose analysis failed back to the analysis queue."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Event id from get_errors"),
		),
	)

	s.mcpServer.AddTool(getErrorsTool, s.handleGetErrors)
	s.mcpServer.AddTool(clearTool, s.handleClearErrors)
	s.mcpServer.AddTool(configTool, s.handleGetConfig)
	s.mcpServer.AddTool(checkDomainTool, s.handleCheckDomain)
	s.mcpServer.AddTool(requeueTool, s.handleRequeueError)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) handleGetErrors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events, err := s.backend.Errors(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load errors: %v", err)), nil
	}

	resp := Summarize(events, Filter{
		Status:     request.GetString("status", ""),
		Category:   request.GetString("category", ""),
		Limit:      request.GetInt("limit", DefaultLimit),
		BySeverity: request.GetBool("by_severity", false),
	})
	return jsonResult(resp)
}

func (s *Server) handleClearErrors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.backend.Clear(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to clear errors: %v", err)), nil
	}
	return jsonResult(map[string]bool{"success": true})
}

func (s *Server) handleGetConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := s.backend.Config(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load config: %v", err)), nil
	}
	return jsonResult(view)
}

func (s *Server) handleCheckDomain(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	host := strings.TrimSpace(request.GetString("host", ""))
	if host == "" {
		return mcp.NewToolResultError("host parameter is required"), nil
	}
	allowed, err := s.backend.CheckDomain(ctx, host)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to check domain: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{"host": host, "allowed": allowed})
}

func (s *Server) handleRequeueError(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	ev, err := s.backend.Requeue(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("error not found: %s", id)), nil
	case errors.Is(err, ingest.ErrNotFailed):
		return mcp.NewToolResultError(fmt.Sprintf("only failed events can be requeued: %v", err)), nil
	case err != nil:
		return mcp.NewToolResultError(fmt.Sprintf("failed to requeue: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{"success": true, "id": ev.ID, "status": ev.Status})
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
