// Copyright 2025 Joseph Cumines
//
// Package analytics records anonymous tool usage.

package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
)

const (
	// DefaultEndpoint is the PostHog ingestion host.
	DefaultEndpoint = "https://us.i.posthog.com"
	userIDFile      = ".windows-mcp-user-id"

	eventToolExecuted = "tool_executed"
	eventException    = "exception"
)

// ToolEvent describes one tool invocation.
type ToolEvent struct {
	Err           error
	Tool          string
	ClientName    string
	ClientVersion string
	Duration      time.Duration
}

// Tracker receives tool events.
type Tracker interface {
	TrackTool(ctx context.Context, ev ToolEvent)
	Close() error
}

// Enqueuer is the subset of posthog.Client used.
type Enqueuer interface {
	Enqueue(posthog.Message) error
	Close() error
}

// Config configures New.
type Config struct {
	// APIKey enables PostHog delivery when set.
	APIKey   string
	Endpoint string
	// StateDir holds the persisted user id, os.TempDir when empty.
	StateDir string
}

// Analytics logs tool events and forwards them to PostHog when configured.
type Analytics struct {
	client    Enqueuer
	logger    *slog.Logger
	userID    string
	sessionID string
}

var _ Tracker = (*Analytics)(nil)

// New returns an Analytics. Without an API key events are only logged.
func New(cfg Config, logger *slog.Logger) (*Analytics, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := cfg.StateDir
	if dir == "" {
		dir = os.TempDir()
	}
	a := &Analytics{
		logger:    logger,
		userID:    LoadUserID(dir, logger),
		sessionID: SessionID(time.Now(), os.Getpid()),
	}
	if cfg.APIKey != "" {
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = DefaultEndpoint
		}
		client, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{Endpoint: endpoint})
		if err != nil {
			return nil, fmt.Errorf("analytics: posthog: %w", err)
		}
		a.client = client
	}
	logger.Debug("analytics initialized",
		slog.String("user_id", a.userID),
		slog.String("session_id", a.sessionID),
		slog.Bool("posthog", a.client != nil))
	return a, nil
}

// NewWithClient returns an Analytics delivering to client.
func NewWithClient(client Enqueuer, userID, sessionID string, logger *slog.Logger) *Analytics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analytics{client: client, logger: logger, userID: userID, sessionID: sessionID}
}

// UserID is the anonymous id events are attributed to.
func (a *Analytics) UserID() string { return a.userID }

// SessionID identifies this process.
func (a *Analytics) SessionID() string { return a.sessionID }

// TrackTool implements Tracker.
func (a *Analytics) TrackTool(_ context.Context, ev ToolEvent) {
	ms := ev.Duration.Milliseconds()
	props := posthog.NewProperties().
		Set("tool_name", ev.Tool).
		Set("session_id", a.sessionID).
		Set("process_person_profile", true).
		Set("duration_ms", ms)
	if ev.ClientName != "" {
		props.Set("client_name", ev.ClientName).Set("client_version", ev.ClientVersion)
	}

	event := eventToolExecuted
	if ev.Err != nil {
		event = eventException
		props.Set("exception", ev.Err.Error())
		a.logger.Error("tool failed", slog.String("tool", ev.Tool), slog.Int64("duration_ms", ms), slog.Any("error", ev.Err))
	} else {
		props.Set("success", true)
		a.logger.Info("tool executed", slog.String("tool", ev.Tool), slog.Int64("duration_ms", ms))
	}

	if a.client == nil {
		return
	}
	if err := a.client.Enqueue(posthog.Capture{DistinctId: a.userID, Event: event, Properties: props}); err != nil {
		a.logger.Debug("analytics enqueue failed", slog.Any("error", err))
	}
}

// Close flushes pending events.
func (a *Analytics) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

// LoadUserID reads the persisted anonymous id from dir, creating one when
// missing. Persistence failures are logged and a fresh id is returned.
func LoadUserID(dir string, logger *slog.Logger) string {
	path := filepath.Join(dir, userIDFile)
	if b, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			return id
		}
	} else if !errors.Is(err, os.ErrNotExist) && logger != nil {
		logger.Warn("could not read user id", slog.String("path", path), slog.Any("error", err))
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	if err := os.WriteFile(path, []byte(id.String()), 0o600); err != nil && logger != nil {
		logger.Warn("could not persist user id", slog.String("path", path), slog.Any("error", err))
	}
	return id.String()
}

// SessionID formats the per-process session id.
func SessionID(now time.Time, pid int) string {
	return fmt.Sprintf("mcp_%d_%d", now.UnixMilli(), pid)
}

// Nop discards events.
type Nop struct{}

// TrackTool implements Tracker.
func (Nop) TrackTool(context.Context, ToolEvent) {}

// Close implements Tracker.
func (Nop) Close() error { return nil }
