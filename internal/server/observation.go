// Copyright 2025 Joseph Cumines
//
// Observation tool handlers: desktop state, waiting and scraping

package server

import (
	"cmp"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/joeycumines/windows-mcp/internal/desktop"
	"github.com/joeycumines/windows-mcp/internal/server/tools"
	"github.com/joeycumines/windows-mcp/internal/tree"
	"github.com/mark3labs/mcp-go/mcp"
)

// handleState handles the State-Tool.
func (s *MCPServer) handleState(ctx context.Context, call *ToolCall) (*mcp.CallToolResult, error) {
	var params struct {
		UseVision bool `json:"use_vision"`
		UseDOM    bool `json:"use_dom"`
	}
	if err := call.Decode(&params); err != nil {
		return nil, err
	}

	info, err := s.desktop.SystemInfo(ctx)
	if err != nil {
		return nil, err
	}
	state, err := s.desktop.State(ctx, desktop.StateRequest{UseVision: params.UseVision, UseDOM: params.UseDOM})
	if err != nil {
		return nil, err
	}

	res := textResult(formatState(info, state.Tree))
	if params.UseVision && len(state.Screenshot) > 0 {
		res.Content = append(res.Content,
			mcp.NewImageContent(base64.StdEncoding.EncodeToString(state.Screenshot), "image/png"))
	}
	return res, nil
}

func formatState(info *desktop.SystemInfo, ts *tree.State) string {
	if ts == nil {
		ts = &tree.State{}
	}
	active := "No active app found."
	if ts.ActiveApp != nil {
		active = ts.ActiveApp.String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Default Language of User:\n%s with encoding: %s\n\n", info.Language, info.Encoding)
	fmt.Fprintf(&b, "Focused App:\n%s\n\n", active)
	fmt.Fprintf(&b, "Opened Apps:\n%s\n\n", cmp.Or(tree.AppsString(ts.Apps), "No apps opened."))
	fmt.Fprintf(&b, "List of Interactive Elements:\n%s\n\n", cmp.Or(ts.InteractiveString(), "No interactive elements found."))
	fmt.Fprintf(&b, "List of Scrollable Elements:\n%s", cmp.Or(ts.ScrollableString(), "No scrollable elements found."))
	return b.String()
}

// handleWait handles the Wait-Tool. The wait ends early, with an error, when
// the request is cancelled or times out.
func (s *MCPServer) handleWait(ctx context.Context, call *ToolCall) (*mcp.CallToolResult, error) {
	var params struct {
		Duration float64 `json:"duration"`
	}
	if err := call.Decode(&params); err != nil {
		return nil, err
	}
	if params.Duration < 0 {
		return nil, invalidParams("duration must not be negative, got %v", params.Duration)
	}
	// durations past the time.Duration range wait until the request ends
	d := time.Duration(math.MaxInt64)
	if ns := params.Duration * float64(time.Second); ns < float64(math.MaxInt64) {
		d = time.Duration(ns)
	}
	if err := tools.Sleep(ctx, d); err != nil {
		return nil, err
	}
	return textResultf("Waited for %s seconds.", strconv.FormatFloat(params.Duration, 'f', -1, 64)), nil
}

// handleScrape handles the Scrape-Tool. With use_dom the page text is read
// from the focused browser tab instead of being fetched.
func (s *MCPServer) handleScrape(ctx context.Context, call *ToolCall) (*mcp.CallToolResult, error) {
	var params struct {
		URL    string `json:"url"`
		UseDOM bool   `json:"use_dom"`
	}
	if err := call.Decode(&params); err != nil {
		return nil, err
	}

	if !params.UseDOM {
		if s.scraper == nil {
			return errorResultf("%s is not available: no HTTP client configured.", ToolScrape), nil
		}
		content, err := s.scraper.Markdown(ctx, params.URL)
		if err != nil {
			return nil, err
		}
		return textResultf("URL:%s\nContent:\n%s", params.URL, content), nil
	}

	state, err := s.desktop.State(ctx, desktop.StateRequest{UseDOM: true})
	if err != nil {
		return nil, err
	}
	if state.Tree == nil || state.Tree.DOM == nil {
		return textResultf("No DOM information found. Please open %s in browser first.", params.URL), nil
	}
	header, footer := "Scroll up to see more", "Scroll down to see more"
	if state.Tree.DOM.VerticalScrollPercent <= 0 {
		header = "Reached top"
	}
	if state.Tree.DOM.VerticalScrollPercent >= 100 {
		footer = "Reached bottom"
	}
	return textResultf("URL:%s\nContent:\n[%s]\n%s\n[%s]", params.URL, header, state.Tree.InformativeString(), footer), nil
}
