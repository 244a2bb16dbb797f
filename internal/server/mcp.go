// Copyright 2025 Joseph Cumines
//
// MCP server implementation

package server

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/joeycumines/windows-mcp/internal/analytics"
	"github.com/joeycumines/windows-mcp/internal/config"
	"github.com/joeycumines/windows-mcp/internal/desktop"
	"github.com/joeycumines/windows-mcp/internal/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	// ServerName is reported in the initialize response.
	ServerName = "windows-mcp"
	// ServerVersion is reported in the initialize response.
	ServerVersion = "0.1.0"
)

// supportedProtocolVersions lists the MCP revisions the server accepts, newest
// first. A client requesting any other revision is answered with the newest.
var supportedProtocolVersions = []string{mcp.LATEST_PROTOCOL_VERSION, "2025-03-26", "2024-11-05"}

// Scraper fetches a web page as markdown.
type Scraper interface {
	Markdown(ctx context.Context, url string) (string, error)
}

// Options configures NewMCPServer. Desktop and Config are required.
type Options struct {
	Desktop desktop.Desktop
	Scraper Scraper
	Tracker analytics.Tracker
	Audit   *AuditLogger
	Metrics *transport.MetricsRegistry
	Logger  *slog.Logger
	Config  *config.Config
}

// MCPServer dispatches MCP requests to the desktop tools.
//
//lint:ignore BETTERALIGN struct is intentionally ordered for clarity
type MCPServer struct {
	desktop    desktop.Desktop
	scraper    Scraper
	tracker    analytics.Tracker
	audit      *AuditLogger
	metrics    *transport.MetricsRegistry
	logger     *slog.Logger
	cfg        *config.Config
	tools      map[string]*Tool
	clientInfo mcp.Implementation
	mu         sync.RWMutex
}

// Tool pairs an MCP tool definition with its handler.
type Tool struct {
	Handler    func(ctx context.Context, call *ToolCall) (*mcp.CallToolResult, error)
	Definition mcp.Tool
}

// ToolCall represents a tool call request
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Decode unmarshals the arguments into v. Fields missing from the arguments
// keep the values already in v.
func (c *ToolCall) Decode(v any) error {
	if len(c.Arguments) == 0 || string(c.Arguments) == "null" {
		return nil
	}
	if err := json.Unmarshal(c.Arguments, v); err != nil {
		return invalidParams("%v", err)
	}
	return nil
}

// NewMCPServer creates a new MCP server
func NewMCPServer(opts Options) (*MCPServer, error) {
	if opts.Desktop == nil {
		return nil, fmt.Errorf("server: desktop is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("server: config is required")
	}
	s := &MCPServer{
		desktop: opts.Desktop,
		scraper: opts.Scraper,
		tracker: opts.Tracker,
		audit:   opts.Audit,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		cfg:     opts.Config,
	}
	if s.tracker == nil {
		s.tracker = analytics.Nop{}
	}
	if s.metrics == nil {
		s.metrics = transport.DefaultMetrics()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.registerTools()
	return s, nil
}

// Tools returns the tool definitions sorted by name.
func (s *MCPServer) Tools() []mcp.Tool {
	tools := make([]mcp.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, t.Definition)
	}
	slices.SortFunc(tools, func(a, b mcp.Tool) int { return cmp.Compare(a.Name, b.Name) })
	return tools
}

// ClientInfo returns the client implementation reported by initialize.
func (s *MCPServer) ClientInfo() mcp.Implementation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientInfo
}

// Shutdown flushes analytics and closes the audit log.
func (s *MCPServer) Shutdown() {
	s.logger.Info("shutting down MCP server")
	if err := s.tracker.Close(); err != nil {
		s.logger.Warn("failed to close analytics", "error", err)
	}
	if err := s.audit.Close(); err != nil {
		s.logger.Warn("failed to close audit log", "error", err)
	}
}

// Handle implements transport.Handler. Notifications yield a nil response.
func (s *MCPServer) Handle(ctx context.Context, msg *transport.Message) (*transport.Message, error) {
	if msg.IsNotification() {
		s.logger.Debug("notification", "method", msg.Method)
		return nil, nil
	}

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(ctx, msg)
	case "ping":
		return result(msg.ID, struct{}{})
	case "tools/list":
		return result(msg.ID, map[string]any{"tools": s.Tools()})
	case "tools/call":
		return s.handleToolsCall(ctx, msg)
	}

	return transport.NewErrorResponse(msg.ID, transport.ErrCodeMethodNotFound,
		fmt.Sprintf("Method not found: %s", msg.Method)), nil
}

func result(id json.RawMessage, v any) (*transport.Message, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &transport.Message{JSONRPC: transport.Version, ID: id, Result: b}, nil
}

func (s *MCPServer) handleInitialize(ctx context.Context, msg *transport.Message) (*transport.Message, error) {
	var params struct {
		ProtocolVersion string             `json:"protocolVersion"`
		ClientInfo      mcp.Implementation `json:"clientInfo"`
	}
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return transport.NewErrorResponse(msg.ID, transport.ErrCodeInvalidParams,
				fmt.Sprintf("Invalid params: %v", err)), nil
		}
	}

	s.mu.Lock()
	s.clientInfo = params.ClientInfo
	s.mu.Unlock()
	s.logger.Info("client initialized",
		"client", params.ClientInfo.Name,
		"version", params.ClientInfo.Version,
		"protocol", params.ProtocolVersion)

	version := supportedProtocolVersions[0]
	if slices.Contains(supportedProtocolVersions, params.ProtocolVersion) {
		version = params.ProtocolVersion
	}

	return result(msg.ID, map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo":   mcp.Implementation{Name: ServerName, Version: ServerVersion},
		"instructions": s.instructions(ctx),
	})
}

// instructions names the Windows version when the desktop can report it.
func (s *MCPServer) instructions(ctx context.Context) string {
	product := "Windows"
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if info, err := s.desktop.SystemInfo(ctx); err != nil {
		s.logger.Debug("system info unavailable", "error", err)
	} else if info.WindowsVersion != "" {
		product = info.WindowsVersion
	}
	return fmt.Sprintf("Windows MCP server provides tools to interact directly with the %s desktop, "+
		"thus enabling to operate the desktop on the user's behalf.", product)
}

func (s *MCPServer) handleToolsCall(ctx context.Context, msg *transport.Message) (*transport.Message, error) {
	var params ToolCall
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return transport.NewErrorResponse(msg.ID, transport.ErrCodeInvalidRequest,
			fmt.Sprintf("Invalid request: %v", err)), nil
	}

	tool, exists := s.tools[params.Name]
	if !exists {
		return transport.NewErrorResponse(msg.ID, transport.ErrCodeMethodNotFound,
			fmt.Sprintf("Tool not found: %s", params.Name)), nil
	}

	args, err := decodeArguments(params.Arguments)
	if err != nil {
		return transport.NewErrorResponse(msg.ID, transport.ErrCodeInvalidParams, err.Error()), nil
	}
	if resp := validateToolInput(msg.ID, args, tool.Definition.InputSchema); resp != nil {
		return resp, nil
	}

	res := s.callTool(ctx, tool, &params)
	return result(msg.ID, res)
}

// callTool runs the handler under the request timeout and records the call.
// Handler errors become error results.
func (s *MCPServer) callTool(ctx context.Context, tool *Tool, call *ToolCall) *mcp.CallToolResult {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	res, err := tool.Handler(ctx, call)
	duration := time.Since(start)

	if err != nil {
		res = errorResult(formatToolError(err, call.Name))
	}
	status := "ok"
	if res.IsError {
		status = "error"
		if err == nil {
			err = fmt.Errorf("%s", resultText(res))
		}
	}

	s.metrics.RecordRequest(call.Name, status, duration)
	s.audit.LogToolCall(call.Name, call.Arguments, status, duration)
	info := s.ClientInfo()
	s.tracker.TrackTool(ctx, analytics.ToolEvent{
		Tool:          call.Name,
		Duration:      duration,
		Err:           err,
		ClientName:    info.Name,
		ClientVersion: info.Version,
	})
	s.logger.Debug("tool call", "tool", call.Name, "status", status, "duration", duration)

	return res
}

// resultText returns the first text content of a result.
func resultText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if t, ok := c.(mcp.TextContent); ok {
			return t.Text
		}
	}
	return ""
}
