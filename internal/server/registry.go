// Copyright 2025 Joseph Cumines

package server

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool names.
const (
	ToolApp        = "App-Tool"
	ToolPowershell = "Powershell-Tool"
	ToolState      = "State-Tool"
	ToolClick      = "Click-Tool"
	ToolType       = "Type-Tool"
	ToolScroll     = "Scroll-Tool"
	ToolDrag       = "Drag-Tool"
	ToolMove       = "Move-Tool"
	ToolShortcut   = "Shortcut-Tool"
	ToolWait       = "Wait-Tool"
	ToolScrape     = "Scrape-Tool"
)

// hints are the behavioural annotations of a tool.
type hints struct {
	readOnly, destructive, idempotent, openWorld bool
}

func (h hints) options(title string) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithTitleAnnotation(title),
		mcp.WithReadOnlyHintAnnotation(h.readOnly),
		mcp.WithDestructiveHintAnnotation(h.destructive),
		mcp.WithIdempotentHintAnnotation(h.idempotent),
		mcp.WithOpenWorldHintAnnotation(h.openWorld),
	}
}

func coordinates(name, description string, opts ...mcp.PropertyOption) mcp.ToolOption {
	opts = append([]mcp.PropertyOption{
		mcp.Description(description),
		mcp.Items(map[string]any{"type": "integer"}),
	}, opts...)
	return mcp.WithArray(name, opts...)
}

func newTool(name, title, description string, h hints, params ...mcp.ToolOption) mcp.Tool {
	opts := append([]mcp.ToolOption{mcp.WithDescription(description)}, h.options(title)...)
	return mcp.NewTool(name, append(opts, params...)...)
}

// registerTools registers all available tools
func (s *MCPServer) registerTools() {
	defs := []*Tool{
		{
			Definition: newTool(ToolApp, "App Tool",
				"Manages Windows applications with three modes: 'launch' (start app by name), 'resize' (set window position/size using window_loc=[x,y] and window_size=[width,height]), 'switch' (activate app by name). Essential for application lifecycle management.",
				hints{destructive: true},
				mcp.WithString("mode", mcp.Required(),
					mcp.Description("Operation to perform"),
					mcp.Enum(modeLaunch, modeResize, modeSwitch)),
				mcp.WithString("name",
					mcp.Description("Application name, required for launch and switch")),
				coordinates("window_loc", "Window position [x, y], required for resize"),
				coordinates("window_size", "Window size [width, height], required for resize"),
			),
			Handler: s.handleApp,
		},
		{
			Definition: newTool(ToolPowershell, "Powershell Tool",
				"Execute PowerShell commands directly on the Windows system and return output with status code. Supports all PowerShell cmdlets, scripts, and system commands. Use for file operations, system queries, and administrative tasks.",
				hints{destructive: true, openWorld: true},
				mcp.WithString("command", mcp.Required(),
					mcp.Description("PowerShell command or script to execute")),
			),
			Handler: s.handlePowershell,
		},
		{
			Definition: newTool(ToolState, "State Tool",
				"Captures complete desktop state including: system language, focused/opened apps, interactive elements (buttons, text fields, links, menus with coordinates), and scrollable areas. Set use_vision=True to include screenshot. Set use_dom=True for browser content to get web page elements instead of browser UI. Always call this first to understand the current desktop state before taking actions.",
				hints{readOnly: true, idempotent: true},
				mcp.WithBoolean("use_vision", mcp.DefaultBool(false),
					mcp.Description("Include an annotated screenshot")),
				mcp.WithBoolean("use_dom", mcp.DefaultBool(false),
					mcp.Description("Report web page elements of the focused browser instead of its UI")),
			),
			Handler: s.handleState,
		},
		{
			Definition: newTool(ToolClick, "Click Tool",
				"Performs mouse clicks at specified coordinates [x, y]. Supports button types: left (default), right (context menu), middle. Supports clicks: 1 (single), 2 (double), 3 (triple). Always use coordinates from State-Tool output to ensure accuracy.",
				hints{destructive: true},
				coordinates("loc", "Screen coordinates [x, y]", mcp.Required()),
				mcp.WithString("button", mcp.DefaultString("left"),
					mcp.Description("Mouse button"),
					mcp.Enum("left", "right", "middle")),
				mcp.WithNumber("clicks", mcp.DefaultNumber(1), mcp.Min(1), mcp.Max(3),
					mcp.Description("Number of clicks: 1 (single), 2 (double), 3 (triple)")),
			),
			Handler: s.handleClick,
		},
		{
			Definition: newTool(ToolType, "Type Tool",
				"Types text at specified coordinates [x, y]. Set clear=True to clear existing text first (Ctrl+A then type), clear=False to append. Set press_enter=True to submit after typing. Always click on the target input field first to ensure focus.",
				hints{destructive: true},
				coordinates("loc", "Screen coordinates [x, y] of the input field", mcp.Required()),
				mcp.WithString("text", mcp.Required(), mcp.Description("Text to type")),
				mcp.WithBoolean("clear", mcp.DefaultBool(false),
					mcp.Description("Clear the existing text first")),
				mcp.WithBoolean("press_enter", mcp.DefaultBool(false),
					mcp.Description("Press enter after typing")),
			),
			Handler: s.handleType,
		},
		{
			Definition: newTool(ToolScroll, "Scroll Tool",
				"Scrolls at coordinates [x, y] or current mouse position if loc=None. Type: vertical (default) or horizontal. Direction: up/down for vertical, left/right for horizontal. wheel_times controls amount (1 wheel ≈ 3-5 lines). Use for navigating long content, lists, and web pages.",
				hints{idempotent: true},
				coordinates("loc", "Screen coordinates [x, y], the cursor position when omitted"),
				mcp.WithString("type", mcp.DefaultString("vertical"),
					mcp.Description("Scroll axis"),
					mcp.Enum("vertical", "horizontal")),
				mcp.WithString("direction", mcp.DefaultString("down"),
					mcp.Description("Scroll direction"),
					mcp.Enum("up", "down", "left", "right")),
				mcp.WithNumber("wheel_times", mcp.DefaultNumber(1), mcp.Min(1),
					mcp.Description("Number of wheel notches")),
			),
			Handler: s.handleScroll,
		},
		{
			Definition: newTool(ToolDrag, "Drag Tool",
				"Performs drag-and-drop from current mouse position to destination coordinates [x, y]. Click or move to source position first, then call this tool with target coordinates. Use for moving files, reordering items, resizing windows, or any drag-drop UI interactions.",
				hints{destructive: true},
				coordinates("to_loc", "Destination coordinates [x, y]", mcp.Required()),
			),
			Handler: s.handleDrag,
		},
		{
			Definition: newTool(ToolMove, "Move Tool",
				"Moves mouse cursor to coordinates [x, y] without clicking. Use for hovering to reveal tooltips/menus, positioning cursor before drag operations, or triggering hover-based UI changes. Does not interact with elements.",
				hints{idempotent: true},
				coordinates("to_loc", "Destination coordinates [x, y]", mcp.Required()),
			),
			Handler: s.handleMove,
		},
		{
			Definition: newTool(ToolShortcut, "Shortcut Tool",
				`Executes keyboard shortcuts using key combinations separated by +. Examples: "ctrl+c" (copy), "ctrl+v" (paste), "alt+tab" (switch apps), "win+r" (Run dialog), "win" (Start menu), "ctrl+shift+esc" (Task Manager). Use for quick actions and system commands.`,
				hints{destructive: true},
				mcp.WithString("shortcut", mcp.Required(),
					mcp.Description(`Key combination such as "ctrl+shift+esc"`)),
			),
			Handler: s.handleShortcut,
		},
		{
			Definition: newTool(ToolWait, "Wait Tool",
				"Pauses execution for specified duration in seconds. Use when waiting for: applications to launch/load, UI animations to complete, page content to render, dialogs to appear, or between rapid actions. Helps ensure UI is ready before next interaction.",
				hints{readOnly: true, idempotent: true},
				mcp.WithNumber("duration", mcp.Required(), mcp.Min(0),
					mcp.Description("Seconds to wait")),
			),
			Handler: s.handleWait,
		},
		{
			Definition: newTool(ToolScrape, "Scrape Tool",
				"Fetch content from a URL or the active browser tab. By default (use_dom=False), performs a lightweight HTTP request to the URL and returns markdown content of complete webpage. Note: Some websites may block automated HTTP requests. If this fails, open the page in a browser and retry with use_dom=True to extract visible text from the active tab's DOM within the viewport.",
				hints{readOnly: true, idempotent: true, openWorld: true},
				mcp.WithString("url", mcp.Required(), mcp.Description("Page URL")),
				mcp.WithBoolean("use_dom", mcp.DefaultBool(false),
					mcp.Description("Read the page from the focused browser tab instead of fetching it")),
			),
			Handler: s.handleScrape,
		},
	}

	s.tools = make(map[string]*Tool, len(defs))
	for _, t := range defs {
		s.tools[t.Definition.Name] = t
	}
}
