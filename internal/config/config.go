// Copyright 2025 Joseph Cumines
//
// Configuration package for the Windows MCP server and agent

package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// TransportType represents the MCP transport type
type TransportType string

const (
	// TransportStdio uses stdin/stdout for communication
	TransportStdio TransportType = "stdio"
	// TransportSSE uses HTTP with server-sent events
	TransportSSE TransportType = "sse"
	// TransportStreamableHTTP uses the single-endpoint streamable HTTP transport
	TransportStreamableHTTP TransportType = "streamable-http"
)

// Config holds the configuration for the MCP server
type Config struct {
	AgentAddr         string
	AgentCertFile     string
	Host              string
	HTTPSocketPath    string
	CORSOrigin        string
	AuditLogPath      string
	PostHogAPIKey     string
	PostHogEndpoint   string
	Transport         TransportType
	Port              int
	HeartbeatInterval time.Duration
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	RequestTimeout    time.Duration
	RateLimit         float64
	AgentTLS          bool
	Debug             bool
	ShellEnabled      bool
	Telemetry         bool
	Watchdog          bool
}

// HTTPAddress is the host:port the HTTP transports listen on.
func (c *Config) HTTPAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Remote reports whether tools are served by a remote agent.
func (c *Config) Remote() bool {
	return c.AgentAddr != ""
}

// AgentConfig holds the configuration for windows-mcp-agent.
type AgentConfig struct {
	Listen   string
	CertFile string
	KeyFile  string
	Debug    bool
}

// LoadDotEnv loads variables from the files, or ./.env when none are given.
// Missing files are ignored, and existing environment variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load loads the configuration from environment variables, then applies
// command line flags from args (without the program name).
func Load(args []string) (*Config, error) {
	requestTimeout, err := getEnvAsInt("WINDOWS_MCP_REQUEST_TIMEOUT", 60)
	if err != nil {
		return nil, err
	}

	port, err := getEnvAsInt("WINDOWS_MCP_PORT", 8000)
	if err != nil {
		return nil, err
	}

	heartbeatInterval, err := getEnvAsDuration("WINDOWS_MCP_HEARTBEAT_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, err
	}

	httpReadTimeout, err := getEnvAsDuration("WINDOWS_MCP_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	// SSE streams are long-lived, so no write timeout by default
	httpWriteTimeout, err := getEnvAsDuration("WINDOWS_MCP_HTTP_WRITE_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}

	rateLimit, err := getEnvAsFloat("WINDOWS_MCP_RATE_LIMIT", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AgentAddr:      os.Getenv("WINDOWS_MCP_AGENT_ADDR"),
		AgentTLS:       getEnvAsBool("WINDOWS_MCP_AGENT_TLS", false),
		AgentCertFile:  os.Getenv("WINDOWS_MCP_AGENT_CERT_FILE"),
		RequestTimeout: time.Duration(requestTimeout) * time.Second,
		Debug:          getEnvAsBool("WINDOWS_MCP_DEBUG", false),
		AuditLogPath:   os.Getenv("WINDOWS_MCP_AUDIT_LOG"),
		// MCP Transport configuration
		Transport:         TransportType(getEnv("WINDOWS_MCP_TRANSPORT", string(TransportStdio))),
		Host:              getEnv("WINDOWS_MCP_HOST", "localhost"),
		Port:              port,
		HTTPSocketPath:    os.Getenv("WINDOWS_MCP_HTTP_SOCKET"),
		HeartbeatInterval: heartbeatInterval,
		// Browser requests are only accepted from loopback origins by default
		CORSOrigin:        os.Getenv("WINDOWS_MCP_CORS_ORIGIN"),
		HTTPReadTimeout:   httpReadTimeout,
		HTTPWriteTimeout:  httpWriteTimeout,
		RateLimit:         rateLimit,
		// Security: shell commands are disabled by default
		ShellEnabled: getEnvAsBool("WINDOWS_MCP_SHELL_ENABLED", false),
		// Telemetry is on unless explicitly disabled
		Telemetry:       !isFalse(os.Getenv("ANONYMIZED_TELEMETRY")),
		PostHogAPIKey:   os.Getenv("WINDOWS_MCP_POSTHOG_API_KEY"),
		PostHogEndpoint: os.Getenv("WINDOWS_MCP_POSTHOG_ENDPOINT"),
		Watchdog:        getEnvAsBool("WINDOWS_MCP_WATCHDOG", true),
	}

	fl := pflag.NewFlagSet("windows-mcp", pflag.ContinueOnError)
	fl.SetOutput(io.Discard)
	transport := fl.String("transport", string(cfg.Transport), "MCP transport: stdio, sse or streamable-http")
	fl.StringVar(&cfg.Host, "host", cfg.Host, "host to bind for the HTTP transports")
	fl.IntVar(&cfg.Port, "port", cfg.Port, "port to bind for the HTTP transports")
	fl.StringVar(&cfg.AgentAddr, "agent", cfg.AgentAddr, "address of a windows-mcp-agent; empty drives the local desktop")
	fl.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")
	if err := fl.Parse(args); err != nil {
		return nil, err
	}
	cfg.Transport = TransportType(*transport)

	switch cfg.Transport {
	case TransportStdio, TransportSSE, TransportStreamableHTTP:
	default:
		return nil, fmt.Errorf("invalid transport type: %s (must be 'stdio', 'sse' or 'streamable-http')", cfg.Transport)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("request timeout must be positive, got %s", cfg.RequestTimeout)
	}

	return cfg, nil
}

// LoadAgent loads the agent configuration from the environment and args.
func LoadAgent(args []string) (*AgentConfig, error) {
	cfg := &AgentConfig{
		Listen:   getEnv("WINDOWS_MCP_AGENT_LISTEN", "localhost:50051"),
		CertFile: os.Getenv("WINDOWS_MCP_AGENT_TLS_CERT"),
		KeyFile:  os.Getenv("WINDOWS_MCP_AGENT_TLS_KEY"),
		Debug:    getEnvAsBool("WINDOWS_MCP_DEBUG", false),
	}

	fl := pflag.NewFlagSet("windows-mcp-agent", pflag.ContinueOnError)
	fl.SetOutput(io.Discard)
	fl.StringVar(&cfg.Listen, "listen", cfg.Listen, "gRPC listen address")
	fl.StringVar(&cfg.CertFile, "tls-cert", cfg.CertFile, "TLS certificate file")
	fl.StringVar(&cfg.KeyFile, "tls-key", cfg.KeyFile, "TLS key file")
	fl.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")
	if err := fl.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Listen == "" {
		return nil, fmt.Errorf("listen address cannot be empty")
	}
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return nil, fmt.Errorf("both --tls-cert and --tls-key are required for TLS")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func isFalse(value string) bool {
	return value == "false" || value == "0" || value == "no"
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q (expected integer)", key, value)
	}
	return result, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q (expected number)", key, value)
	}
	return result, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q (expected duration, e.g., '30s', '5m')", key, value)
	}
	return d, nil
}
