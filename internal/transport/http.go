// Copyright 2025 Joseph Cumines
//
// HTTP/SSE and streamable HTTP transports for JSON-RPC 2.0 communication

package transport

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SessionHeader carries the streamable HTTP session id.
const SessionHeader = "Mcp-Session-Id"

// maxBodySize bounds a single POSTed JSON-RPC message.
const maxBodySize = 16 << 20

// MCP SSE binding: GET /sse opens a session stream whose first event names
// the POST URL for that session.
const (
	sseSessionPath  = "/sse"
	sseMessagesPath = "/messages"
)

// HTTPTransportConfig holds configuration for HTTP transport.
// Address is the HTTP server address (e.g., "localhost:8000").
// SocketPath is an optional Unix domain socket path (takes precedence over Address).
// CORSOrigin is an extra allowed browser origin besides loopback ones (default:
// none, "*" allows every origin).
// HeartbeatInterval is the interval for SSE heartbeat pings (default: 15s).
// ReadTimeout for HTTP server (default: 30s).
// WriteTimeout for HTTP server (default: 0 = disabled for SSE compatibility).
// RateLimit is requests per second, 0 disables rate limiting.
type HTTPTransportConfig struct {
	Metrics           *MetricsRegistry
	Logger            *slog.Logger
	Address           string
	SocketPath        string
	CORSOrigin        string
	HeartbeatInterval time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	RateLimit         float64
}

// DefaultHTTPConfig returns default HTTP transport configuration
func DefaultHTTPConfig() *HTTPTransportConfig {
	return &HTTPTransportConfig{
		Address:           "localhost:8000",
		HeartbeatInterval: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // Disabled for SSE compatibility
	}
}

// HTTPTransport serves JSON-RPC over the MCP SSE binding (GET /sse with
// POST /messages?sessionId=), over POST /message with server events on
// GET /events, and over the streamable HTTP endpoint POST /mcp.
type HTTPTransport struct {
	config     *HTTPTransportConfig
	server     *http.Server
	logger     *slog.Logger
	metrics    *MetricsRegistry
	handler    atomic.Pointer[Handler]
	clients    *ClientRegistry
	sessions   sync.Map // session id -> time.Time
	shutdownCh chan struct{}
	eventID    atomic.Uint64
	closed     atomic.Bool
}

// ClientRegistry manages connected SSE clients
type ClientRegistry struct {
	clients    map[string]*SSEClient
	eventStore *EventStore
	logger     *slog.Logger
	mu         sync.RWMutex
	nextID     atomic.Uint64
}

// SSEClient represents a connected SSE client
type SSEClient struct {
	ResponseChan chan *SSEEvent
	CreatedAt    time.Time
	ID           string
	LastEventID  string
}

// SSEEvent represents a Server-Sent Event
type SSEEvent struct {
	ID    string
	Event string
	Data  string
}

// EventStore keeps the most recent events for Last-Event-ID replay.
type EventStore struct {
	events  []*SSEEvent
	mu      sync.RWMutex
	maxSize int
}

// NewEventStore creates a new event store
func NewEventStore(maxSize int) *EventStore {
	return &EventStore{
		events:  make([]*SSEEvent, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add adds an event to the store
func (s *EventStore) Add(event *SSEEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) >= s.maxSize {
		s.events = s.events[1:]
	}
	s.events = append(s.events, event)
}

// GetSince returns events after the given ID, or nil if it is unknown.
func (s *EventStore) GetSince(lastEventID string) []*SSEEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if lastEventID == "" {
		return nil
	}

	for i, e := range s.events {
		if e.ID == lastEventID {
			return append([]*SSEEvent(nil), s.events[i+1:]...)
		}
	}
	return nil
}

// NewClientRegistry creates a new client registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients:    make(map[string]*SSEClient),
		eventStore: NewEventStore(1000),
		logger:     slog.Default(),
	}
}

// Add adds a client to the registry
func (r *ClientRegistry) Add(lastEventID string) *SSEClient {
	return r.add(fmt.Sprintf("client-%d", r.nextID.Add(1)), lastEventID)
}

// AddSession adds a client identified by a session id.
func (r *ClientRegistry) AddSession(id string) *SSEClient {
	return r.add(id, "")
}

func (r *ClientRegistry) add(id, lastEventID string) *SSEClient {
	r.mu.Lock()
	defer r.mu.Unlock()

	client := &SSEClient{
		ID:           id,
		ResponseChan: make(chan *SSEEvent, 100),
		CreatedAt:    time.Now(),
		LastEventID:  lastEventID,
	}
	r.clients[id] = client
	return client
}

// Remove removes a client from the registry
func (r *ClientRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[id]; ok {
		close(client.ResponseChan)
		delete(r.clients, id)
	}
}

// Get returns a client by ID
func (r *ClientRegistry) Get(id string) (*SSEClient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[id]
	return client, ok
}

// Send delivers an event to one client, reporting false when it is not
// connected or its buffer is full.
func (r *ClientRegistry) Send(id string, event *SSEEvent) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[id]
	if !ok {
		return false
	}
	select {
	case client.ResponseChan <- event:
		return true
	default:
		r.logger.Warn("dropping event, client buffer full",
			slog.String("event_id", event.ID),
			slog.String("client_id", id))
		return false
	}
}

// Broadcast sends an event to all connected clients
func (r *ClientRegistry) Broadcast(event *SSEEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	r.eventStore.Add(event)

	for _, client := range r.clients {
		select {
		case client.ResponseChan <- event:
		default:
			r.logger.Warn("dropping event, client buffer full",
				slog.String("event_id", event.ID),
				slog.String("client_id", client.ID))
		}
	}
}

// Count returns the number of connected clients
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// NewHTTPTransport creates a new HTTP transport
func NewHTTPTransport(config *HTTPTransportConfig) *HTTPTransport {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if config.Address == "" && config.SocketPath == "" {
		config.Address = DefaultHTTPConfig().Address
	}
	if config.HeartbeatInterval == 0 {
		config.HeartbeatInterval = 15 * time.Second
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 30 * time.Second
	}

	t := &HTTPTransport{
		config:     config,
		logger:     config.Logger,
		metrics:    config.Metrics,
		clients:    NewClientRegistry(),
		shutdownCh: make(chan struct{}),
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.metrics == nil {
		t.metrics = DefaultMetrics()
	}
	t.clients.logger = t.logger

	mux := http.NewServeMux()
	mux.HandleFunc("/message", t.handleMessage)
	mux.HandleFunc("/events", t.handleSSE)
	mux.HandleFunc(sseSessionPath, t.handleSessionSSE)
	mux.HandleFunc(sseMessagesPath, t.handleSessionMessage)
	mux.HandleFunc(sseMessagesPath+"/", t.handleSessionMessage)
	mux.HandleFunc("/mcp", t.handleStreamable)
	mux.HandleFunc("/health", t.handleHealth)
	mux.HandleFunc("/metrics", t.handleMetrics)

	t.server = &http.Server{
		Handler:      t.corsMiddleware(RateLimitMiddleware(NewRateLimiter(config.RateLimit), mux)),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return t
}

// Handler returns the root HTTP handler, including middleware.
func (t *HTTPTransport) Handler() http.Handler {
	return t.server.Handler
}

// SetHandler installs the message handler without starting a listener.
func (t *HTTPTransport) SetHandler(handler Handler) {
	t.handler.Store(&handler)
}

// corsMiddleware rejects browser requests from origins other than loopback
// and the configured one, and adds CORS headers to all responses.
func (t *HTTPTransport) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if !t.originAllowed(origin) {
			t.logger.Warn("rejected request from foreign origin",
				slog.String("origin", origin), slog.String("path", r.URL.Path))
			http.Error(w, "Forbidden origin", http.StatusForbidden)
			return
		}
		switch {
		case t.config.CORSOrigin == "*":
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "":
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID, "+SessionHeader)
		w.Header().Set("Access-Control-Expose-Headers", "Content-Type, "+SessionHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// originAllowed reports whether a request with the given Origin header may
// reach the tools. Requests without an Origin do not come from a browser.
func (t *HTTPTransport) originAllowed(origin string) bool {
	if origin == "" || t.config.CORSOrigin == "*" || origin == t.config.CORSOrigin {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func (t *HTTPTransport) loadHandler() Handler {
	if h := t.handler.Load(); h != nil {
		return *h
	}
	return nil
}

func decodeBody(r *http.Request) (*Message, error) {
	var msg Message
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (t *HTTPTransport) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.logger.Error("error encoding response", slog.Any("error", err))
	}
}

// handleMessage handles POST /message for JSON-RPC requests
func (t *HTTPTransport) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg, err := decodeBody(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	handler := t.loadHandler()
	if handler == nil {
		http.Error(w, "Handler not set", http.StatusInternalServerError)
		return
	}

	response := respond(r.Context(), handler, msg)
	if response == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	t.writeJSON(w, http.StatusOK, response)
}

// handleSessionMessage handles POST /messages?sessionId= for the MCP SSE
// binding. The request is accepted at once and its response is sent on the
// session's stream only.
func (t *HTTPTransport) handleSessionMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	sessionID := cmp.Or(query.Get("sessionId"), query.Get("session_id"))
	if sessionID == "" {
		http.Error(w, "Missing sessionId", http.StatusBadRequest)
		return
	}
	if _, ok := t.clients.Get(sessionID); !ok {
		http.Error(w, "Unknown session", http.StatusNotFound)
		return
	}

	msg, err := decodeBody(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	handler := t.loadHandler()
	if handler == nil {
		http.Error(w, "Handler not set", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)

	ctx := context.WithoutCancel(r.Context())
	go func() {
		response := respond(ctx, handler, msg)
		if response == nil {
			return
		}
		data, err := json.Marshal(response)
		if err != nil {
			t.logger.Error("failed to marshal response", slog.Any("error", err))
			return
		}
		event := &SSEEvent{
			ID:    strconv.FormatUint(t.eventID.Add(1), 10),
			Event: "message",
			Data:  string(data),
		}
		if !t.clients.Send(sessionID, event) {
			t.logger.Warn("response not delivered", slog.String("session_id", sessionID))
		}
	}()
}

// handleStreamable implements the streamable HTTP endpoint: each POST
// carries one message and receives its response directly.
func (t *HTTPTransport) handleStreamable(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
	case http.MethodDelete:
		id := r.Header.Get(SessionHeader)
		if _, ok := t.sessions.LoadAndDelete(id); !ok || id == "" {
			http.Error(w, "Unknown session", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg, err := decodeBody(r)
	if err != nil {
		t.writeJSON(w, http.StatusBadRequest,
			NewErrorResponse(nil, ErrCodeParseError, fmt.Sprintf("failed to parse JSON: %v", err)))
		return
	}

	sessionID := r.Header.Get(SessionHeader)
	if msg.Method == "initialize" {
		sessionID = uuid.NewString()
		t.sessions.Store(sessionID, time.Now())
	} else if sessionID != "" {
		if _, ok := t.sessions.Load(sessionID); !ok {
			http.Error(w, "Unknown session", http.StatusNotFound)
			return
		}
	}
	if sessionID != "" {
		w.Header().Set(SessionHeader, sessionID)
	}

	handler := t.loadHandler()
	if handler == nil {
		http.Error(w, "Handler not set", http.StatusInternalServerError)
		return
	}

	response := respond(r.Context(), handler, msg)
	if response == nil || msg.IsNotification() {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	t.writeJSON(w, http.StatusOK, response)
}

// handleSSE handles GET /events for SSE streaming
func (t *HTTPTransport) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Handle Last-Event-ID for reconnection
	lastEventID := r.Header.Get("Last-Event-ID")

	client := t.clients.Add(lastEventID)
	t.metrics.SetSSEConnections(t.clients.Count())
	defer func() {
		t.clients.Remove(client.ID)
		t.metrics.SetSSEConnections(t.clients.Count())
	}()

	log := t.logger.With(slog.String("client_id", client.ID))
	log.Debug("SSE client connected")

	if lastEventID != "" {
		for _, event := range t.clients.eventStore.GetSince(lastEventID) {
			if err := writeSSEEvent(w, event); err != nil {
				log.Debug("write error during reconnect replay", slog.Any("error", err))
				return
			}
			t.metrics.RecordSSEEvent()
		}
	}
	flusher.Flush()

	t.stream(r.Context(), w, flusher, client, log)
}

// handleSessionSSE handles GET /sse: it opens a session and tells the client
// where to POST its messages before streaming that session's responses.
func (t *HTTPTransport) handleSessionSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := t.clients.AddSession(uuid.NewString())
	t.metrics.SetSSEConnections(t.clients.Count())
	defer func() {
		t.clients.Remove(client.ID)
		t.metrics.SetSSEConnections(t.clients.Count())
	}()

	log := t.logger.With(slog.String("session_id", client.ID))
	log.Debug("SSE session opened")

	endpoint := sseMessagesPath + "?sessionId=" + url.QueryEscape(client.ID)
	if _, err := fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", endpoint); err != nil {
		log.Debug("endpoint write error", slog.Any("error", err))
		return
	}
	flusher.Flush()

	t.stream(r.Context(), w, flusher, client, log)
}

// stream writes the client's events and heartbeats until the request ends or
// the transport shuts down.
func (t *HTTPTransport) stream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, client *SSEClient, log *slog.Logger) {
	heartbeatTicker := time.NewTicker(t.config.HeartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("SSE client disconnected")
			return
		case <-t.shutdownCh:
			fmt.Fprintf(w, "event: complete\ndata: server shutdown\n\n")
			flusher.Flush()
			return
		case <-heartbeatTicker.C:
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				log.Debug("heartbeat write error", slog.Any("error", err))
				return
			}
			flusher.Flush()
		case event, ok := <-client.ResponseChan:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				log.Debug("write error", slog.Any("error", err))
				return
			}
			t.metrics.RecordSSEEvent()
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes an SSE event, prefixing every data line.
func writeSSEEvent(w io.Writer, event *SSEEvent) error {
	if _, err := fmt.Fprintf(w, "id: %s\n", event.ID); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Event); err != nil {
		return err
	}
	for _, line := range strings.Split(event.Data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

// handleHealth handles GET /health for health checks
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	t.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"clients":     t.clients.Count(),
		"server_time": time.Now().UTC().Format(time.RFC3339),
	})
}

func (t *HTTPTransport) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if err := t.metrics.WritePrometheus(w); err != nil {
		t.logger.Error("error writing metrics", slog.Any("error", err))
	}
}

// Listen opens the configured unix socket or TCP address.
func (t *HTTPTransport) Listen() (net.Listener, error) {
	if t.config.SocketPath != "" {
		if err := os.Remove(t.config.SocketPath); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("failed to remove stale socket",
				slog.String("path", t.config.SocketPath), slog.Any("error", err))
		}
		l, err := net.Listen("unix", t.config.SocketPath)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on socket %s: %w", t.config.SocketPath, err)
		}
		return l, nil
	}
	l, err := net.Listen("tcp", t.config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", t.config.Address, err)
	}
	return l, nil
}

// Serve listens and serves until ctx is done or Close is called.
func (t *HTTPTransport) Serve(ctx context.Context, handler Handler) error {
	listener, err := t.Listen()
	if err != nil {
		return err
	}
	return t.ServeListener(ctx, listener, handler)
}

// ServeListener serves on an existing listener.
func (t *HTTPTransport) ServeListener(ctx context.Context, listener net.Listener, handler Handler) error {
	t.SetHandler(handler)
	t.logger.Info("HTTP transport listening", slog.String("addr", listener.Addr().String()))

	stop := context.AfterFunc(ctx, func() { _ = t.Close() })
	defer stop()

	if err := t.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// WriteMessage broadcasts a server message to the GET /events clients and to
// every SSE session.
func (t *HTTPTransport) WriteMessage(msg *Message) error {
	if t.closed.Load() {
		return ErrClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	t.clients.Broadcast(&SSEEvent{
		ID:    strconv.FormatUint(t.eventID.Add(1), 10),
		Event: "message",
		Data:  string(data),
	})

	return nil
}

// Close closes the HTTP transport
func (t *HTTPTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	close(t.shutdownCh)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	if t.config.SocketPath != "" {
		if err := os.Remove(t.config.SocketPath); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("failed to remove socket file",
				slog.String("path", t.config.SocketPath), slog.Any("error", err))
		}
	}

	return nil
}

// IsClosed returns whether the transport is closed
func (t *HTTPTransport) IsClosed() bool {
	return t.closed.Load()
}
