// Copyright 2025 Joseph Cumines
//
// Application tool handler

package server

import (
	"context"
	"strings"

	"github.com/joeycumines/windows-mcp/internal/desktop"
	"github.com/mark3labs/mcp-go/mcp"
)

// App-Tool modes.
const (
	modeLaunch = "launch"
	modeResize = "resize"
	modeSwitch = "switch"
)

// handleApp handles the App-Tool: launching from the Start menu, switching to
// an open window, or moving and resizing a window.
func (s *MCPServer) handleApp(ctx context.Context, call *ToolCall) (*mcp.CallToolResult, error) {
	var params struct {
		Mode       string    `json:"mode"`
		Name       string    `json:"name"`
		WindowLoc  []float64 `json:"window_loc"`
		WindowSize []float64 `json:"window_size"`
	}
	if err := call.Decode(&params); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(params.Name)

	var (
		msg string
		err error
	)
	switch params.Mode {
	case modeLaunch, modeSwitch:
		if name == "" {
			return nil, invalidParams("name is required for %s mode", params.Mode)
		}
		if params.Mode == modeLaunch {
			msg, err = s.desktop.LaunchApp(ctx, name)
		} else {
			msg, err = s.desktop.SwitchApp(ctx, name)
		}
	case modeResize:
		if params.WindowLoc == nil || params.WindowSize == nil {
			return nil, invalidParams("window_loc and window_size are required for resize mode")
		}
		loc, perr := toPoint("window_loc", params.WindowLoc)
		if perr != nil {
			return nil, perr
		}
		size, perr := toPoint("window_size", params.WindowSize)
		if perr != nil {
			return nil, perr
		}
		if size.X <= 0 || size.Y <= 0 {
			return nil, invalidParams("window_size must be positive, got [%d, %d]", size.X, size.Y)
		}
		msg, err = s.desktop.ResizeApp(ctx, desktop.ResizeRequest{Name: name, Loc: loc, Size: size})
	default:
		return nil, invalidParams("mode must be one of launch, resize or switch, got %q", params.Mode)
	}
	if err != nil {
		return nil, err
	}
	return textResult(msg), nil
}
