// Copyright 2025 Joseph Cumines

// Package transport provides MCP message transports for JSON-RPC 2.0 over
// stdio, HTTP+SSE and streamable HTTP.
package transport

import (
	"context"
	"encoding/json"
)

// JSON-RPC 2.0 standard error codes.
// See: https://www.jsonrpc.org/specification#error_object
const (
	// ErrCodeParseError indicates invalid JSON was received by the server.
	ErrCodeParseError = -32700

	// ErrCodeInvalidRequest indicates the JSON sent is not a valid Request object.
	ErrCodeInvalidRequest = -32600

	// ErrCodeMethodNotFound indicates the method does not exist or is not available.
	ErrCodeMethodNotFound = -32601

	// ErrCodeInvalidParams indicates invalid method parameter(s).
	ErrCodeInvalidParams = -32602

	// ErrCodeInternalError indicates an internal JSON-RPC error.
	ErrCodeInternalError = -32603
)

// Version is the JSON-RPC protocol version.
const Version = "2.0"

// Message represents a JSON-RPC 2.0 message.
//
// This is a union type that can represent either a Request or a Response:
//
// Request format:
//   - JSONRPC: "2.0" (required)
//   - Method: The method name (required)
//   - Params: Method parameters (optional)
//   - ID: Request identifier (optional; omit for notifications)
//
// Response format:
//   - JSONRPC: "2.0" (required)
//   - Result: Success result (mutually exclusive with Error)
//   - Error: Error object (mutually exclusive with Result)
//   - ID: Matches the request ID
//
//lint:ignore BETTERALIGN struct is intentionally ordered for clarity
type Message struct {
	Error   *ErrorObj       `json:"error,omitempty"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// IsNotification reports whether the message is a request without an id.
func (m *Message) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

// ErrorObj represents a JSON-RPC 2.0 error object.
//
//lint:ignore BETTERALIGN struct is intentionally ordered for clarity
type ErrorObj struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Code    int             `json:"code"`
}

// NewErrorResponse returns an error response for the request id.
func NewErrorResponse(id json.RawMessage, code int, message string) *Message {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &Message{
		JSONRPC: Version,
		ID:      id,
		Error:   &ErrorObj{Code: code, Message: message},
	}
}

// Handler handles one request. A nil response with a nil error means no
// response is sent (notifications). Errors become internal error responses.
type Handler func(ctx context.Context, msg *Message) (*Message, error)

// respond runs h, converting a handler error into an error response.
func respond(ctx context.Context, h Handler, msg *Message) *Message {
	resp, err := h(ctx, msg)
	if err != nil {
		return NewErrorResponse(msg.ID, ErrCodeInternalError, err.Error())
	}
	return resp
}

// Transport defines the interface for MCP message transport.
//
// Implementations must be safe for concurrent use from multiple goroutines.
//
// Error handling:
//   - io.EOF indicates the transport was closed by the peer
//   - ErrClosed indicates the transport was closed locally
//   - Other errors indicate transport-layer failures
type Transport interface {
	// Serve dispatches incoming messages to handler until ctx is done, the
	// peer disconnects or the transport is closed.
	Serve(ctx context.Context, handler Handler) error

	// WriteMessage writes an unsolicited message (a notification) to the
	// connected peers.
	WriteMessage(msg *Message) error

	// Close closes the transport and releases any resources.
	// Close is idempotent and safe to call multiple times.
	Close() error

	// IsClosed returns whether the transport has been closed.
	IsClosed() bool
}

var (
	_ Transport = (*StdioTransport)(nil)
	_ Transport = (*HTTPTransport)(nil)
)
