// Copyright 2025 Joseph Cumines
//
// Input tool handlers for mouse and keyboard actions

package server

import (
	"context"
	"fmt"

	"github.com/joeycumines/windows-mcp/internal/desktop"
	"github.com/mark3labs/mcp-go/mcp"
)

var clickNames = map[int]string{1: "Single", 2: "Double", 3: "Triple"}

// handleClick handles the Click-Tool.
func (s *MCPServer) handleClick(ctx context.Context, call *ToolCall) (*mcp.CallToolResult, error) {
	params := struct {
		Button string    `json:"button"`
		Loc    []float64 `json:"loc"`
		Clicks float64   `json:"clicks"`
	}{Button: string(desktop.ButtonLeft), Clicks: 1}
	if err := call.Decode(&params); err != nil {
		return nil, err
	}

	loc, err := toPoint("Location", params.Loc)
	if err != nil {
		return nil, err
	}
	button := desktop.MouseButton(params.Button)
	if !button.Valid() {
		return nil, invalidParams("button must be one of left, right or middle, got %q", params.Button)
	}
	clicks := int(params.Clicks)
	if _, ok := clickNames[clicks]; !ok || !isWhole(params.Clicks) {
		return nil, invalidParams("clicks must be 1, 2 or 3, got %v", params.Clicks)
	}

	if err := s.desktop.Click(ctx, desktop.ClickRequest{Loc: loc, Button: button, Clicks: clicks}); err != nil {
		return nil, err
	}
	return textResultf("%s %s clicked at %s.", clickNames[clicks], button, loc), nil
}

// handleType handles the Type-Tool.
func (s *MCPServer) handleType(ctx context.Context, call *ToolCall) (*mcp.CallToolResult, error) {
	var params struct {
		Text       string    `json:"text"`
		Loc        []float64 `json:"loc"`
		Clear      bool      `json:"clear"`
		PressEnter bool      `json:"press_enter"`
	}
	if err := call.Decode(&params); err != nil {
		return nil, err
	}

	loc, err := toPoint("Location", params.Loc)
	if err != nil {
		return nil, err
	}

	if err := s.desktop.Type(ctx, desktop.TypeRequest{
		Loc:        loc,
		Text:       params.Text,
		Clear:      params.Clear,
		PressEnter: params.PressEnter,
	}); err != nil {
		return nil, err
	}
	return textResultf("Typed %s at %s.", params.Text, loc), nil
}

// handleScroll handles the Scroll-Tool. Without loc the scroll happens at the
// current cursor position.
func (s *MCPServer) handleScroll(ctx context.Context, call *ToolCall) (*mcp.CallToolResult, error) {
	params := struct {
		Type       string    `json:"type"`
		Direction  string    `json:"direction"`
		Loc        []float64 `json:"loc"`
		WheelTimes float64   `json:"wheel_times"`
	}{Type: desktop.ScrollVertical, Direction: desktop.DirectionDown, WheelTimes: 1}
	if err := call.Decode(&params); err != nil {
		return nil, err
	}

	if !isInt32(params.WheelTimes) || params.WheelTimes < 1 {
		return nil, invalidParams("wheel_times must be a positive integer, got %v", params.WheelTimes)
	}
	req := desktop.ScrollRequest{Type: params.Type, Direction: params.Direction, WheelTimes: int(params.WheelTimes)}
	if params.Loc != nil {
		loc, err := toPoint("Location", params.Loc)
		if err != nil {
			return nil, err
		}
		req.Loc = &loc
	}
	// mismatched axis and direction is reported without scrolling
	if msg, err := desktop.ValidateScroll(req.Type, req.Direction); err != nil {
		return nil, err
	} else if msg != "" {
		return textResult(msg), nil
	}

	msg, err := s.desktop.Scroll(ctx, req)
	if err != nil {
		return nil, err
	}
	if msg != "" {
		return textResult(msg), nil
	}
	text := fmt.Sprintf("Scrolled %s %s by %d wheel times", req.Type, req.Direction, req.WheelTimes)
	if req.Loc != nil {
		return textResultf("%s at %s.", text, *req.Loc), nil
	}
	return textResult(text + "."), nil
}

// handleDrag handles the Drag-Tool, dragging from the current cursor position.
func (s *MCPServer) handleDrag(ctx context.Context, call *ToolCall) (*mcp.CallToolResult, error) {
	var params struct {
		ToLoc []float64 `json:"to_loc"`
	}
	if err := call.Decode(&params); err != nil {
		return nil, err
	}
	to, err := toPoint("to_loc", params.ToLoc)
	if err != nil {
		return nil, err
	}
	if err := s.desktop.Drag(ctx, to); err != nil {
		return nil, err
	}
	return textResultf("Dragged the element to %s.", to), nil
}

// handleMove handles the Move-Tool.
func (s *MCPServer) handleMove(ctx context.Context, call *ToolCall) (*mcp.CallToolResult, error) {
	var params struct {
		ToLoc []float64 `json:"to_loc"`
	}
	if err := call.Decode(&params); err != nil {
		return nil, err
	}
	to, err := toPoint("to_loc", params.ToLoc)
	if err != nil {
		return nil, err
	}
	if err := s.desktop.Move(ctx, to); err != nil {
		return nil, err
	}
	return textResultf("Moved the mouse pointer to %s.", to), nil
}

// handleShortcut handles the Shortcut-Tool. Unknown key names are rejected
// before any key is pressed.
func (s *MCPServer) handleShortcut(ctx context.Context, call *ToolCall) (*mcp.CallToolResult, error) {
	var params struct {
		Shortcut string `json:"shortcut"`
	}
	if err := call.Decode(&params); err != nil {
		return nil, err
	}
	if _, err := desktop.ParseShortcut(params.Shortcut); err != nil {
		return nil, err
	}
	if err := s.desktop.Shortcut(ctx, params.Shortcut); err != nil {
		return nil, err
	}
	return textResultf("Pressed %s.", params.Shortcut), nil
}
