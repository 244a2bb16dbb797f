// Copyright 2025 Joseph Cumines
//
// Audit logging for MCP tool invocations

package server

import (
	"encoding/json"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
)

// AuditLogger records every tool invocation as a JSON line: tool name,
// redacted arguments, result status and duration.
type AuditLogger struct {
	logger  *slog.Logger
	file    *os.File
	enabled bool
	mu      sync.RWMutex
}

// redactedKeys are argument keys whose values are never logged.
var redactedKeys = map[string]bool{
	"password":      true,
	"passphrase":    true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"credential":    true,
	"credentials":   true,
	"private_key":   true,
	"access_token":  true,
	"refresh_token": true,
	"authorization": true,
	"cookie":        true,
}

// sensitiveParts redact a key when they appear as one of its "_" or "-"
// separated words, so "db_password" is redacted but "author" is not.
var sensitiveParts = []string{"password", "passphrase", "secret", "token", "credential", "credentials"}

// NewAuditLogger creates a new audit logger that appends to the specified file.
// If filePath is empty, audit logging is disabled.
func NewAuditLogger(filePath string) (*AuditLogger, error) {
	if filePath == "" {
		return &AuditLogger{enabled: false}, nil
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	return &AuditLogger{
		logger:  slog.New(handler),
		file:    file,
		enabled: true,
	}, nil
}

// Close closes the audit log file. Safe to call multiple times and on a nil
// logger; later calls to LogToolCall are dropped.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.enabled = false
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// IsEnabled returns true if audit logging is enabled and not closed.
func (a *AuditLogger) IsEnabled() bool {
	if a == nil {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// LogToolCall logs a tool invocation. Sensitive values are redacted and long
// strings, such as typed text or scripts, are truncated.
func (a *AuditLogger) LogToolCall(tool string, args json.RawMessage, status string, duration time.Duration) {
	if a == nil {
		return
	}
	// held for the write so Close cannot race it
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.enabled || a.logger == nil {
		return
	}

	a.logger.Info("tool_invocation",
		slog.String("tool", tool),
		slog.String("arguments", redactArguments(args)),
		slog.String("status", status),
		slog.Float64("duration_seconds", duration.Seconds()),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// redactArguments redacts sensitive values from JSON arguments.
func redactArguments(args json.RawMessage) string {
	if len(args) == 0 || string(args) == "null" {
		return "{}"
	}

	var parsed map[string]any
	if err := json.Unmarshal(args, &parsed); err != nil {
		return "[unparseable]"
	}

	redactMapValues(parsed)

	redacted, err := json.Marshal(parsed)
	if err != nil {
		return "[error]"
	}
	return string(redacted)
}

func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	if redactedKeys[lowerKey] {
		return true
	}
	words := strings.FieldsFunc(lowerKey, func(r rune) bool { return r == '_' || r == '-' })
	return slices.ContainsFunc(words, func(w string) bool {
		return slices.Contains(sensitiveParts, w)
	})
}

// redactMapValues recursively redacts sensitive values in a map.
func redactMapValues(m map[string]any) {
	for key, value := range m {
		if isSensitiveKey(key) {
			m[key] = "[REDACTED]"
			continue
		}
		m[key] = redactValue(value)
	}
}

func redactValue(value any) any {
	switch v := value.(type) {
	case string:
		return truncateText(v)
	case map[string]any:
		redactMapValues(v)
	case []any:
		for i, item := range v {
			v[i] = redactValue(item)
		}
	}
	return value
}
