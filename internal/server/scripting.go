// Copyright 2025 Joseph Cumines
//
// PowerShell tool handler

package server

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// handlePowershell handles the Powershell-Tool. It is refused unless shell
// access was enabled in the configuration.
func (s *MCPServer) handlePowershell(ctx context.Context, call *ToolCall) (*mcp.CallToolResult, error) {
	if !s.cfg.ShellEnabled {
		return errorResultf("%s is disabled. Set WINDOWS_MCP_SHELL_ENABLED=true to allow PowerShell commands.", ToolPowershell), nil
	}

	var params struct {
		Command string `json:"command"`
	}
	if err := call.Decode(&params); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Command) == "" {
		return nil, invalidParams("command must not be empty")
	}

	s.logger.Info("executing PowerShell command", "command", truncateText(params.Command))
	res, err := s.desktop.ExecuteCommand(ctx, params.Command)
	if err != nil {
		return nil, err
	}
	return textResultf("Response: %s\nStatus Code: %d", res.Output, res.ExitCode), nil
}
