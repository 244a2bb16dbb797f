// Copyright 2025 Joseph Cumines
//
// HTTP/SSE transport unit tests

package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func echoHandler(ctx context.Context, msg *Message) (*Message, error) {
	if msg.IsNotification() {
		return nil, nil
	}
	if msg.Method == "fail" {
		return nil, errors.New("handler failed")
	}
	return &Message{JSONRPC: Version, ID: msg.ID, Result: json.RawMessage(`{"method":"` + msg.Method + `"}`)}, nil
}

func newTestTransport(cfg *HTTPTransportConfig) *HTTPTransport {
	if cfg == nil {
		cfg = DefaultHTTPConfig()
	}
	cfg.Metrics = NewMetricsRegistry()
	tr := NewHTTPTransport(cfg)
	tr.SetHandler(echoHandler)
	return tr
}

func post(t *testing.T, h http.Handler, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDefaultHTTPConfig(t *testing.T) {
	cfg := DefaultHTTPConfig()
	if cfg.Address != "localhost:8000" {
		t.Errorf("Address = %s, want localhost:8000", cfg.Address)
	}
	if cfg.HeartbeatInterval != 15*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 15s", cfg.HeartbeatInterval)
	}
	if cfg.CORSOrigin != "" {
		t.Errorf("CORSOrigin = %s, want empty", cfg.CORSOrigin)
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v, want 30s", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout != 0 {
		t.Errorf("WriteTimeout = %v, want 0 (disabled for SSE)", cfg.WriteTimeout)
	}
}

func TestNewHTTPTransport_Defaults(t *testing.T) {
	tr := NewHTTPTransport(&HTTPTransportConfig{})
	if tr.config.Address != "localhost:8000" {
		t.Errorf("Address = %s", tr.config.Address)
	}
	if tr.config.HeartbeatInterval != 15*time.Second {
		t.Errorf("HeartbeatInterval = %v", tr.config.HeartbeatInterval)
	}
	if tr.metrics != DefaultMetrics() {
		t.Error("expected default metrics registry")
	}
}

func TestHTTPTransport_HandleMessage(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"request", http.MethodPost, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, http.StatusOK, `"method":"tools/list"`},
		{"handler error", http.MethodPost, `{"jsonrpc":"2.0","id":2,"method":"fail"}`, http.StatusOK, `"code":-32603`},
		{"notification", http.MethodPost, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, http.StatusAccepted, ""},
		{"invalid json", http.MethodPost, `{nope`, http.StatusBadRequest, "Invalid JSON"},
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTransport(nil)
			req := httptest.NewRequest(tt.method, "/message", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			tr.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("Body = %s, want substring %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHTTPTransport_HandleMessage_NoHandler(t *testing.T) {
	tr := NewHTTPTransport(&HTTPTransportConfig{Metrics: NewMetricsRegistry()})
	rec := post(t, tr.Handler(), "/message", `{"jsonrpc":"2.0","id":1,"method":"x"}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", rec.Code)
	}
}

func TestHTTPTransport_Streamable(t *testing.T) {
	tr := newTestTransport(nil)
	h := tr.Handler()

	rec := post(t, h, "/mcp", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("initialize status = %d", rec.Code)
	}
	session := rec.Header().Get(SessionHeader)
	if session == "" {
		t.Fatal("initialize response missing session header")
	}
	var resp Message
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if string(resp.ID) != "1" {
		t.Errorf("response id = %s", resp.ID)
	}

	withSession := http.Header{SessionHeader: {session}}

	rec = post(t, h, "/mcp", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, withSession)
	if rec.Code != http.StatusAccepted {
		t.Errorf("notification status = %d, want 202", rec.Code)
	}

	rec = post(t, h, "/mcp", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, withSession)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "tools/list") {
		t.Errorf("tools/list status = %d body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(SessionHeader) != session {
		t.Error("session header should be echoed")
	}

	rec = post(t, h, "/mcp", `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`, http.Header{SessionHeader: {"unknown"}})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", rec.Code)
	}

	rec = post(t, h, "/mcp", `{broken`, nil)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "-32700") {
		t.Errorf("parse error status = %d body = %s", rec.Code, rec.Body.String())
	}

	del := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	del.Header.Set(SessionHeader, session)
	drec := httptest.NewRecorder()
	h.ServeHTTP(drec, del)
	if drec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", drec.Code)
	}

	rec = post(t, h, "/mcp", `{"jsonrpc":"2.0","id":4,"method":"tools/list"}`, withSession)
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted session status = %d, want 404", rec.Code)
	}

	get := httptest.NewRecorder()
	h.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	if get.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /mcp status = %d, want 405", get.Code)
	}
}

func TestHTTPTransport_HandleHealth(t *testing.T) {
	tr := newTestTransport(nil)
	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestHTTPTransport_HandleMetrics(t *testing.T) {
	tr := newTestTransport(nil)
	tr.metrics.RecordRequest("Snapshot", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Content-Type = %s", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), `windows_mcp_tool_calls_total{tool="Snapshot",status="ok"} 1`) {
		t.Errorf("metrics body:\n%s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /metrics status = %d", rec.Code)
	}
}

func TestHTTPTransport_RateLimit(t *testing.T) {
	tr := newTestTransport(&HTTPTransportConfig{RateLimit: 0.5}) // burst = 1
	h := tr.Handler()

	if rec := post(t, h, "/mcp", `{"jsonrpc":"2.0","id":1,"method":"ping"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	if rec := post(t, h, "/mcp", `{"jsonrpc":"2.0","id":2,"method":"ping"}`, nil); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", rec.Code)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health should be exempt, status = %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	tr := newTestTransport(&HTTPTransportConfig{CORSOrigin: "https://example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("Allow-Origin = %s", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), SessionHeader) {
		t.Error("Allow-Headers should include the session header")
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Error("Allow-Methods should include DELETE")
	}
}

func TestOriginCheck(t *testing.T) {
	tests := []struct {
		name       string
		corsOrigin string
		origin     string
		wantStatus int
		wantACAO   string
	}{
		{"no origin", "", "", http.StatusOK, ""},
		{"localhost", "", "http://localhost:3000", http.StatusOK, "http://localhost:3000"},
		{"ipv4 loopback", "", "http://127.0.0.1", http.StatusOK, "http://127.0.0.1"},
		{"ipv6 loopback", "", "http://[::1]:8080", http.StatusOK, "http://[::1]:8080"},
		{"foreign", "", "https://evil.example", http.StatusForbidden, ""},
		{"opaque", "", "null", http.StatusForbidden, ""},
		{"loopback lookalike", "", "http://localhost.evil.example", http.StatusForbidden, ""},
		{"configured", "https://app.example", "https://app.example", http.StatusOK, "https://app.example"},
		{"other than configured", "https://app.example", "https://evil.example", http.StatusForbidden, ""},
		{"wildcard", "*", "https://anything.example", http.StatusOK, "*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTransport(&HTTPTransportConfig{CORSOrigin: tt.corsOrigin})
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			rec := post(t, tr.Handler(), "/mcp", `{"jsonrpc":"2.0","id":1,"method":"tools/call"}`, header)
			if rec.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantACAO {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantACAO)
			}
			if tt.wantStatus == http.StatusForbidden && strings.Contains(rec.Body.String(), "tools/call") {
				t.Error("rejected request reached the handler")
			}
		})
	}
}

func TestEventStore(t *testing.T) {
	store := NewEventStore(3)
	for _, id := range []string{"1", "2", "3", "4"} {
		store.Add(&SSEEvent{ID: id})
	}

	tests := []struct {
		since string
		want  []string
	}{
		{"", nil},
		{"1", nil}, // evicted
		{"2", []string{"3", "4"}},
		{"4", []string{}},
	}
	for _, tt := range tests {
		got := store.GetSince(tt.since)
		ids := make([]string, 0, len(got))
		for _, e := range got {
			ids = append(ids, e.ID)
		}
		if strings.Join(ids, ",") != strings.Join(tt.want, ",") {
			t.Errorf("GetSince(%q) = %v, want %v", tt.since, ids, tt.want)
		}
	}
}

func TestClientRegistry(t *testing.T) {
	r := NewClientRegistry()
	a := r.Add("")
	b := r.Add("7")
	if a.ID == b.ID {
		t.Fatal("client ids must be unique")
	}
	if r.Count() != 2 {
		t.Errorf("Count = %d, want 2", r.Count())
	}

	r.Broadcast(&SSEEvent{ID: "1", Event: "message", Data: "x"})
	for _, c := range []*SSEClient{a, b} {
		select {
		case ev := <-c.ResponseChan:
			if ev.ID != "1" {
				t.Errorf("event id = %s", ev.ID)
			}
		default:
			t.Errorf("client %s did not receive broadcast", c.ID)
		}
	}

	s := r.AddSession("session-1")
	if !r.Send(s.ID, &SSEEvent{ID: "2"}) {
		t.Fatal("Send to a connected session failed")
	}
	if ev := <-s.ResponseChan; ev.ID != "2" {
		t.Errorf("session event id = %s", ev.ID)
	}
	for _, c := range []*SSEClient{a, b} {
		if len(c.ResponseChan) != 0 {
			t.Errorf("client %s received an event sent to another session", c.ID)
		}
	}
	if r.Send("missing", &SSEEvent{ID: "3"}) {
		t.Error("Send to an unknown session should fail")
	}

	r.Remove(a.ID)
	if _, ok := r.Get(a.ID); ok {
		t.Error("removed client still registered")
	}
	if _, ok := <-a.ResponseChan; ok {
		t.Error("removed client channel should be closed")
	}
	r.Remove(a.ID)
}

func TestWriteSSEEvent(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSSEEvent(&buf, &SSEEvent{ID: "5", Event: "message", Data: "line1\nline2"}); err != nil {
		t.Fatal(err)
	}
	want := "id: 5\nevent: message\ndata: line1\ndata: line2\n\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestHTTPTransport_WriteMessage_Closed(t *testing.T) {
	tr := newTestTransport(nil)
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tr.WriteMessage(&Message{JSONRPC: Version}); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteMessage() error = %v, want ErrClosed", err)
	}
	if !tr.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func readEvent(t *testing.T, r *bufio.Reader) map[string]string {
	t.Helper()
	fields := map[string]string{}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading SSE stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if len(fields) > 0 {
				return fields
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			fields["comment"] = line
			continue
		}
		k, v, _ := strings.Cut(line, ": ")
		fields[k] = v
	}
}

func TestHTTPTransport_SSEStream(t *testing.T) {
	tr := newTestTransport(&HTTPTransportConfig{HeartbeatInterval: 20 * time.Millisecond})
	srv := httptest.NewServer(tr.Handler())
	defer srv.Close()
	defer tr.Close()

	resp, err := http.Get(srv.URL + "/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %s", ct)
	}
	reader := bufio.NewReader(resp.Body)

	deadline := time.Now().Add(2 * time.Second)
	for tr.clients.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := tr.WriteMessage(&Message{JSONRPC: Version, ID: json.RawMessage("9"), Result: json.RawMessage(`{}`)}); err != nil {
		t.Fatal(err)
	}

	var ev map[string]string
	for {
		ev = readEvent(t, reader)
		if _, ok := ev["comment"]; !ok {
			break
		}
	}
	if ev["event"] != "message" || !strings.Contains(ev["data"], `"id":9`) {
		t.Errorf("event = %v", ev)
	}
	if tr.metrics.CounterValue(MetricSSEEvents, "") < 1 {
		t.Error("SSE event not counted")
	}
	if tr.metrics.GaugeValue(MetricSSEConnections, "") != 1 {
		t.Error("SSE connection gauge not set")
	}

	hb := readEvent(t, reader)
	if hb["comment"] != ": heartbeat" {
		t.Errorf("expected heartbeat, got %v", hb)
	}
}

func TestHTTPTransport_SSESession(t *testing.T) {
	tr := newTestTransport(&HTTPTransportConfig{HeartbeatInterval: time.Minute})
	srv := httptest.NewServer(tr.Handler())
	defer srv.Close()
	defer tr.Close()

	resp, err := http.Get(srv.URL + "/sse")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /sse status = %d", resp.StatusCode)
	}
	reader := bufio.NewReader(resp.Body)

	endpoint := readEvent(t, reader)
	if endpoint["event"] != "endpoint" || !strings.HasPrefix(endpoint["data"], "/messages?sessionId=") {
		t.Fatalf("first event = %v, want the endpoint event", endpoint)
	}

	msgResp, err := http.Post(srv.URL+endpoint["data"], "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":3,"method":"ping"}`))
	if err != nil {
		t.Fatal(err)
	}
	msgResp.Body.Close()
	if msgResp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST status = %d, want 202", msgResp.StatusCode)
	}

	ev := readEvent(t, reader)
	if ev["event"] != "message" || !strings.Contains(ev["data"], `"id":3`) || !strings.Contains(ev["data"], `"method":"ping"`) {
		t.Errorf("response event = %v", ev)
	}
}

func TestHTTPTransport_SessionMessageErrors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"missing session", http.MethodPost, "/messages", http.StatusBadRequest},
		{"unknown session", http.MethodPost, "/messages?sessionId=nope", http.StatusNotFound},
		{"unknown snake case session", http.MethodPost, "/messages/?session_id=nope", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/messages?sessionId=nope", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTransport(nil)
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
			rec := httptest.NewRecorder()
			tr.Handler().ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHTTPTransport_ServeListener_ContextCancel(t *testing.T) {
	tr := newTestTransport(nil)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.ServeListener(ctx, l, echoHandler) }()

	var resp *http.Response
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err = http.Get("http://" + l.Addr().String() + "/health")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server not reachable: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeListener() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ServeListener did not return after cancel")
	}
	if !tr.IsClosed() {
		t.Error("transport should be closed after cancel")
	}
}
