// Copyright 2025 Joseph Cumines
//
// Stdio transport for JSON-RPC 2.0 communication

package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("transport is closed")

// errEmptyLine is returned by ReadMessage for blank lines, which are skipped.
var errEmptyLine = errors.New("empty line received")

// maxLineSize bounds a single newline-delimited message.
const maxLineSize = 16 << 20

// StdioTransport implements newline-delimited JSON-RPC 2.0 over stdin/stdout.
//
//lint:ignore BETTERALIGN struct is intentionally ordered for clarity
type StdioTransport struct {
	reader  *bufio.Reader
	writer  io.Writer
	logger  *slog.Logger
	readMu  sync.Mutex
	writeMu sync.Mutex
	closed  atomic.Bool
}

// NewStdioTransport creates a new stdio transport
func NewStdioTransport(stdin io.Reader, stdout io.Writer) *StdioTransport {
	return &StdioTransport{
		reader: bufio.NewReaderSize(stdin, 64<<10),
		writer: stdout,
		logger: slog.Default(),
	}
}

// WithLogger sets the logger and returns t.
func (t *StdioTransport) WithLogger(logger *slog.Logger) *StdioTransport {
	if logger != nil {
		t.logger = logger
	}
	return t
}

// syntaxError marks a line that is not valid JSON-RPC.
type syntaxError struct{ err error }

func (e *syntaxError) Error() string { return fmt.Sprintf("failed to parse JSON: %v", e.err) }
func (e *syntaxError) Unwrap() error { return e.err }

// ReadMessage reads one JSON-RPC 2.0 message. It returns io.EOF when stdin
// is exhausted.
func (t *StdioTransport) ReadMessage() (*Message, error) {
	t.readMu.Lock()
	defer t.readMu.Unlock()

	if t.closed.Load() {
		return nil, ErrClosed
	}

	line, err := t.readLine()
	if err != nil {
		if errors.Is(err, io.EOF) && strings.TrimSpace(line) == "" {
			return nil, io.EOF
		}
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read line: %w", err)
		}
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return nil, errEmptyLine
	}

	var msg Message
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return nil, &syntaxError{err: err}
	}
	return &msg, nil
}

func (t *StdioTransport) readLine() (string, error) {
	var b strings.Builder
	for {
		chunk, err := t.reader.ReadSlice('\n')
		b.Write(chunk)
		if b.Len() > maxLineSize {
			return "", fmt.Errorf("message exceeds %d bytes", maxLineSize)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return b.String(), err
	}
}

// WriteMessage writes a JSON-RPC 2.0 message followed by a newline.
func (t *StdioTransport) WriteMessage(msg *Message) error {
	if t.closed.Load() {
		return ErrClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	data = append(data, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Close closes the transport
func (t *StdioTransport) Close() error {
	t.closed.Store(true)
	return nil
}

// IsClosed returns whether the transport is closed
func (t *StdioTransport) IsClosed() bool {
	return t.closed.Load()
}

// Serve reads messages until EOF, handling each in order.
func (t *StdioTransport) Serve(ctx context.Context, handler Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		msg, err := t.ReadMessage()
		if err != nil {
			var se *syntaxError
			switch {
			case errors.Is(err, io.EOF):
				t.logger.Info("stdin closed, exiting")
				return nil
			case errors.Is(err, ErrClosed):
				return nil
			case errors.Is(err, errEmptyLine):
				continue
			case errors.As(err, &se):
				t.logger.Warn("invalid message", slog.Any("error", err))
				if werr := t.WriteMessage(NewErrorResponse(nil, ErrCodeParseError, err.Error())); werr != nil {
					return werr
				}
				continue
			default:
				return err
			}
		}

		response := respond(ctx, handler, msg)
		if response == nil {
			continue
		}
		if err := t.WriteMessage(response); err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			t.logger.Error("error writing message", slog.Any("error", err))
		}
	}
}
