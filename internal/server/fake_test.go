// Copyright 2025 Joseph Cumines

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/windows-mcp/internal/analytics"
	"github.com/joeycumines/windows-mcp/internal/config"
	"github.com/joeycumines/windows-mcp/internal/desktop"
	"github.com/joeycumines/windows-mcp/internal/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// mutatingCalls are the desktop methods that change OS state.
var mutatingCalls = []string{
	"Click", "Type", "Scroll", "Drag", "Move", "Shortcut",
	"LaunchApp", "ResizeApp", "SwitchApp", "ExecuteCommand",
}

// fakeDesktop records calls and returns canned results.
type fakeDesktop struct {
	err     error
	state   *desktop.State
	command *desktop.CommandResult
	message string
	calls   []string
	args    []any
	mu      sync.Mutex
}

var _ desktop.Desktop = (*fakeDesktop)(nil)

func (f *fakeDesktop) record(name string, arg any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	f.args = append(f.args, arg)
}

func (f *fakeDesktop) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeDesktop) mutated() bool {
	return slices.ContainsFunc(f.Calls(), func(c string) bool { return slices.Contains(mutatingCalls, c) })
}

func (f *fakeDesktop) Click(_ context.Context, req desktop.ClickRequest) error {
	f.record("Click", req)
	return f.err
}

func (f *fakeDesktop) Type(_ context.Context, req desktop.TypeRequest) error {
	f.record("Type", req)
	return f.err
}

func (f *fakeDesktop) Scroll(_ context.Context, req desktop.ScrollRequest) (string, error) {
	f.record("Scroll", req)
	return "", f.err
}

func (f *fakeDesktop) Drag(_ context.Context, to desktop.Point) error {
	f.record("Drag", to)
	return f.err
}

func (f *fakeDesktop) Move(_ context.Context, to desktop.Point) error {
	f.record("Move", to)
	return f.err
}

func (f *fakeDesktop) Shortcut(_ context.Context, shortcut string) error {
	f.record("Shortcut", shortcut)
	return f.err
}

func (f *fakeDesktop) LaunchApp(_ context.Context, name string) (string, error) {
	f.record("LaunchApp", name)
	return f.message, f.err
}

func (f *fakeDesktop) ResizeApp(_ context.Context, req desktop.ResizeRequest) (string, error) {
	f.record("ResizeApp", req)
	return f.message, f.err
}

func (f *fakeDesktop) SwitchApp(_ context.Context, name string) (string, error) {
	f.record("SwitchApp", name)
	return f.message, f.err
}

func (f *fakeDesktop) ExecuteCommand(_ context.Context, command string) (*desktop.CommandResult, error) {
	f.record("ExecuteCommand", command)
	if f.err != nil {
		return nil, f.err
	}
	if f.command == nil {
		return &desktop.CommandResult{}, nil
	}
	return f.command, nil
}

func (f *fakeDesktop) State(_ context.Context, req desktop.StateRequest) (*desktop.State, error) {
	f.record("State", req)
	if f.err != nil {
		return nil, f.err
	}
	if f.state == nil {
		return &desktop.State{}, nil
	}
	return f.state, nil
}

func (f *fakeDesktop) SystemInfo(context.Context) (*desktop.SystemInfo, error) {
	f.record("SystemInfo", nil)
	return &desktop.SystemInfo{
		WindowsVersion: "Windows 11 Pro",
		Language:       "English (United States)",
		Encoding:       "utf-8",
		ScreenWidth:    1920,
		ScreenHeight:   1080,
	}, nil
}

// fakeScraper returns content for any URL.
type fakeScraper struct {
	err     error
	content string
	urls    []string
}

func (f *fakeScraper) Markdown(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.content, f.err
}

// fakeTracker collects tool events.
type fakeTracker struct {
	events []analytics.ToolEvent
	closed bool
	mu     sync.Mutex
}

func (f *fakeTracker) TrackTool(_ context.Context, ev analytics.ToolEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeTracker) Close() error {
	f.closed = true
	return nil
}

type testServer struct {
	*MCPServer
	desktop *fakeDesktop
	scraper *fakeScraper
	tracker *fakeTracker
	metrics *transport.MetricsRegistry
}

func newTestServer(t *testing.T, fd *fakeDesktop, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	if fd == nil {
		fd = &fakeDesktop{}
	}
	cfg := &config.Config{RequestTimeout: 5 * time.Second}
	for _, fn := range mutate {
		fn(cfg)
	}
	ts := &testServer{
		desktop: fd,
		scraper: &fakeScraper{content: "# Example"},
		tracker: &fakeTracker{},
		metrics: transport.NewMetricsRegistry(),
	}
	s, err := NewMCPServer(Options{
		Desktop: fd,
		Scraper: ts.scraper,
		Tracker: ts.tracker,
		Metrics: ts.metrics,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:  cfg,
	})
	if err != nil {
		t.Fatalf("NewMCPServer error = %v", err)
	}
	ts.MCPServer = s
	return ts
}

var requestID int

// request sends a JSON-RPC request and returns the response.
func (ts *testServer) request(t *testing.T, method string, params any) *transport.Message {
	t.Helper()
	requestID++
	msg := &transport.Message{
		JSONRPC: transport.Version,
		ID:      json.RawMessage(fmt.Sprint(requestID)),
		Method:  method,
	}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		msg.Params = b
	}
	resp, err := ts.Handle(context.Background(), msg)
	if err != nil {
		t.Fatalf("Handle(%s) error = %v", method, err)
	}
	if resp == nil {
		t.Fatalf("Handle(%s) returned no response", method)
	}
	return resp
}

// callResult is the wire form of a tool call result.
type callResult struct {
	Content []struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Data     string `json:"data"`
		MIMEType string `json:"mimeType"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func (r *callResult) text() string {
	if len(r.Content) == 0 {
		return ""
	}
	return r.Content[0].Text
}

// call invokes a tool and decodes the result. JSON-RPC errors fail the test.
func (ts *testServer) call(t *testing.T, tool, arguments string) *callResult {
	t.Helper()
	resp := ts.request(t, "tools/call", map[string]any{
		"name":      tool,
		"arguments": json.RawMessage(arguments),
	})
	if resp.Error != nil {
		t.Fatalf("%s returned JSON-RPC error %d: %s", tool, resp.Error.Code, resp.Error.Message)
	}
	var res callResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return &res
}

func toolByName(tools []mcp.Tool, name string) (mcp.Tool, bool) {
	for _, tool := range tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return mcp.Tool{}, false
}
