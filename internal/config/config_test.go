// Copyright 2025 Joseph Cumines
//
// Configuration unit tests

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"WINDOWS_MCP_AGENT_ADDR",
	"WINDOWS_MCP_AGENT_TLS",
	"WINDOWS_MCP_AGENT_CERT_FILE",
	"WINDOWS_MCP_REQUEST_TIMEOUT",
	"WINDOWS_MCP_DEBUG",
	"WINDOWS_MCP_AUDIT_LOG",
	"WINDOWS_MCP_TRANSPORT",
	"WINDOWS_MCP_HOST",
	"WINDOWS_MCP_PORT",
	"WINDOWS_MCP_HTTP_SOCKET",
	"WINDOWS_MCP_HEARTBEAT_INTERVAL",
	"WINDOWS_MCP_CORS_ORIGIN",
	"WINDOWS_MCP_HTTP_READ_TIMEOUT",
	"WINDOWS_MCP_HTTP_WRITE_TIMEOUT",
	"WINDOWS_MCP_RATE_LIMIT",
	"WINDOWS_MCP_SHELL_ENABLED",
	"ANONYMIZED_TELEMETRY",
	"WINDOWS_MCP_POSTHOG_API_KEY",
	"WINDOWS_MCP_POSTHOG_ENDPOINT",
	"WINDOWS_MCP_WATCHDOG",
	"WINDOWS_MCP_AGENT_LISTEN",
	"WINDOWS_MCP_AGENT_TLS_CERT",
	"WINDOWS_MCP_AGENT_TLS_KEY",
}

// clearEnv unsets every variable Load reads, restoring them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Transport != TransportStdio {
		t.Errorf("Transport = %s, want stdio", cfg.Transport)
	}
	if got := cfg.HTTPAddress(); got != "localhost:8000" {
		t.Errorf("HTTPAddress() = %s, want localhost:8000", got)
	}
	if cfg.Remote() {
		t.Error("Remote() = true, want false without an agent address")
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Errorf("RequestTimeout = %v, want 60s", cfg.RequestTimeout)
	}
	if cfg.HeartbeatInterval != 15*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 15s", cfg.HeartbeatInterval)
	}
	if cfg.HTTPWriteTimeout != 0 {
		t.Errorf("HTTPWriteTimeout = %v, want 0", cfg.HTTPWriteTimeout)
	}
	if cfg.CORSOrigin != "" {
		t.Errorf("CORSOrigin = %s, want empty (loopback origins only)", cfg.CORSOrigin)
	}
	if cfg.ShellEnabled {
		t.Error("ShellEnabled should default to false")
	}
	if !cfg.Telemetry {
		t.Error("Telemetry should default to true")
	}
	if !cfg.Watchdog {
		t.Error("Watchdog should default to true")
	}
	if cfg.RateLimit != 0 {
		t.Errorf("RateLimit = %v, want 0", cfg.RateLimit)
	}
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("WINDOWS_MCP_TRANSPORT", "sse")
	t.Setenv("WINDOWS_MCP_HOST", "0.0.0.0")
	t.Setenv("WINDOWS_MCP_PORT", "9000")
	t.Setenv("WINDOWS_MCP_AGENT_ADDR", "win-host:50051")
	t.Setenv("WINDOWS_MCP_AGENT_TLS", "true")
	t.Setenv("WINDOWS_MCP_SHELL_ENABLED", "1")
	t.Setenv("ANONYMIZED_TELEMETRY", "false")
	t.Setenv("WINDOWS_MCP_RATE_LIMIT", "2.5")
	t.Setenv("WINDOWS_MCP_REQUEST_TIMEOUT", "5")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Transport != TransportSSE {
		t.Errorf("Transport = %s, want sse", cfg.Transport)
	}
	if got := cfg.HTTPAddress(); got != "0.0.0.0:9000" {
		t.Errorf("HTTPAddress() = %s", got)
	}
	if !cfg.Remote() || cfg.AgentAddr != "win-host:50051" || !cfg.AgentTLS {
		t.Errorf("agent config = %q tls=%v", cfg.AgentAddr, cfg.AgentTLS)
	}
	if !cfg.ShellEnabled {
		t.Error("ShellEnabled = false, want true")
	}
	if cfg.Telemetry {
		t.Error("Telemetry = true, want false")
	}
	if cfg.RateLimit != 2.5 {
		t.Errorf("RateLimit = %v, want 2.5", cfg.RateLimit)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("WINDOWS_MCP_TRANSPORT", "sse")
	t.Setenv("WINDOWS_MCP_PORT", "9000")

	cfg, err := Load([]string{"--transport", "streamable-http", "--host", "127.0.0.1", "--port=8123", "--agent", "10.0.0.5:50051"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Transport != TransportStreamableHTTP {
		t.Errorf("Transport = %s, want streamable-http", cfg.Transport)
	}
	if got := cfg.HTTPAddress(); got != "127.0.0.1:8123" {
		t.Errorf("HTTPAddress() = %s", got)
	}
	if cfg.AgentAddr != "10.0.0.5:50051" {
		t.Errorf("AgentAddr = %s", cfg.AgentAddr)
	}
}

func TestLoad_HTTPAddressIPv6(t *testing.T) {
	clearEnv(t)
	cfg, err := Load([]string{"--host", "::1"})
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.HTTPAddress(); got != "[::1]:8000" {
		t.Errorf("HTTPAddress() = %s, want [::1]:8000", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"invalid transport", map[string]string{"WINDOWS_MCP_TRANSPORT": "websocket"}, nil},
		{"invalid transport flag", nil, []string{"--transport", "grpc"}},
		{"invalid int", map[string]string{"WINDOWS_MCP_REQUEST_TIMEOUT": "soon"}, nil},
		{"zero timeout", map[string]string{"WINDOWS_MCP_REQUEST_TIMEOUT": "0"}, nil},
		{"invalid duration", map[string]string{"WINDOWS_MCP_HEARTBEAT_INTERVAL": "often"}, nil},
		{"invalid rate", map[string]string{"WINDOWS_MCP_RATE_LIMIT": "fast"}, nil},
		{"port out of range", nil, []string{"--port", "70000"}},
		{"unknown flag", nil, []string{"--nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(tt.args); err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}
}

func TestLoadAgent(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadAgent(nil)
	if err != nil {
		t.Fatalf("LoadAgent() error = %v", err)
	}
	if cfg.Listen != "localhost:50051" {
		t.Errorf("Listen = %s, want localhost:50051", cfg.Listen)
	}

	cfg, err = LoadAgent([]string{"--listen", ":6000", "--tls-cert", "c.pem", "--tls-key", "k.pem"})
	if err != nil {
		t.Fatalf("LoadAgent() error = %v", err)
	}
	if cfg.Listen != ":6000" || cfg.CertFile != "c.pem" || cfg.KeyFile != "k.pem" {
		t.Errorf("unexpected agent config: %+v", cfg)
	}

	if _, err := LoadAgent([]string{"--tls-cert", "c.pem"}); err == nil {
		t.Error("expected error when only the certificate is given")
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("WINDOWS_MCP_PORT=9100\nWINDOWS_MCP_SHELL_ENABLED=true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WINDOWS_MCP_SHELL_ENABLED", "false")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("WINDOWS_MCP_PORT") })

	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9100 {
		t.Errorf("Port = %d, want 9100 from .env", cfg.Port)
	}
	if cfg.ShellEnabled {
		t.Error("existing environment must win over .env")
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name      string
		envValue  string
		want      time.Duration
		wantError bool
	}{
		{"valid duration", "30s", 30 * time.Second, false},
		{"minutes", "5m", 5 * time.Minute, false},
		{"milliseconds", "500ms", 500 * time.Millisecond, false},
		{"empty fallback", "", 10 * time.Second, false},
		{"invalid error", "invalid", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.envValue)

			got, err := getEnvAsDuration("TEST_DURATION", 10*time.Second)
			if tt.wantError {
				if err == nil {
					t.Errorf("getEnvAsDuration() expected error for %q", tt.envValue)
				}
				return
			}
			if err != nil {
				t.Errorf("getEnvAsDuration() unexpected error: %v", err)
				return
			}
			if got != tt.want {
				t.Errorf("getEnvAsDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"1", true},
		{"yes", true},
		{"false", false},
		{"0", false},
		{"no", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)
			if got := getEnvAsBool("TEST_BOOL", false); got != tt.want {
				t.Errorf("getEnvAsBool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		value     string
		want      int
		wantError bool
	}{
		{"42", 42, false},
		{"0", 0, false},
		{"-1", -1, false},
		{"12abc", 0, true},
		{"invalid", 0, true},
		{"", 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.value)

			got, err := getEnvAsInt("TEST_INT", 10)
			if tt.wantError {
				if err == nil {
					t.Errorf("getEnvAsInt() expected error for %q", tt.value)
				}
				return
			}
			if err != nil {
				t.Errorf("getEnvAsInt() unexpected error: %v", err)
				return
			}
			if got != tt.want {
				t.Errorf("getEnvAsInt(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}
