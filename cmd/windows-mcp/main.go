// Copyright 2025 Joseph Cumines
//
// MCP server for Windows desktop automation - JSON-RPC 2.0 over stdio or HTTP

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joeycumines/windows-mcp/internal/analytics"
	"github.com/joeycumines/windows-mcp/internal/config"
	"github.com/joeycumines/windows-mcp/internal/desktop"
	"github.com/joeycumines/windows-mcp/internal/powershell"
	"github.com/joeycumines/windows-mcp/internal/remote"
	"github.com/joeycumines/windows-mcp/internal/scrape"
	"github.com/joeycumines/windows-mcp/internal/server"
	"github.com/joeycumines/windows-mcp/internal/transport"
	"github.com/joeycumines/windows-mcp/internal/watchdog"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("Failed to load .env", slog.Any("error", err))
		os.Exit(1)
	}
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	// stdout carries the stdio transport, logs go to stderr
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, closeDesktop, err := newDesktop(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to create desktop", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeDesktop()

	var tracker analytics.Tracker = analytics.Nop{}
	if cfg.Telemetry {
		a, err := analytics.New(analytics.Config{APIKey: cfg.PostHogAPIKey, Endpoint: cfg.PostHogEndpoint}, logger)
		if err != nil {
			logger.Warn("Analytics disabled", slog.Any("error", err))
		} else {
			tracker = a
		}
	}

	audit, err := server.NewAuditLogger(cfg.AuditLogPath)
	if err != nil {
		logger.Error("Failed to open audit log", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := transport.DefaultMetrics()
	mcpServer, err := server.NewMCPServer(server.Options{
		Desktop: d,
		Scraper: scrape.New(nil),
		Tracker: tracker,
		Audit:   audit,
		Metrics: metrics,
		Logger:  logger,
		Config:  cfg,
	})
	if err != nil {
		logger.Error("Failed to create MCP server", slog.Any("error", err))
		os.Exit(1)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	errChan := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		var serveErr error
		switch cfg.Transport {
		case config.TransportSSE, config.TransportStreamableHTTP:
			serveErr = runHTTPTransport(ctx, cfg, mcpServer, metrics, logger)
		default:
			serveErr = runStdioTransport(ctx, mcpServer, logger)
		}
		if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
			errChan <- serveErr
		}
	}()

	logger.Info("Server started",
		slog.String("transport", string(cfg.Transport)),
		slog.Bool("remote", cfg.Remote()))

	serveDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(serveDone)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", slog.String("signal", sig.String()))
	case err := <-errChan:
		logger.Error("Server error", slog.Any("error", err))
	case <-serveDone:
		// stdin closed
	}
	cancel()
	mcpServer.Shutdown()

	select {
	case <-serveDone:
		logger.Info("Server shutdown complete")
	case <-sigChan:
		logger.Warn("Forced shutdown")
	}
}

// newDesktop returns the remote agent client when one is configured,
// otherwise the local service, with the focus watchdog when enabled.
func newDesktop(ctx context.Context, cfg *config.Config, logger *slog.Logger) (desktop.Desktop, func(), error) {
	if cfg.Remote() {
		client, err := remote.Dial(remote.DialConfig{
			Addr:     cfg.AgentAddr,
			CertFile: cfg.AgentCertFile,
			TLS:      cfg.AgentTLS,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil
	}

	windows := desktop.NativeWindows()
	svc := desktop.NewService(desktop.Options{
		Input:   desktop.NativeInput(),
		Windows: windows,
		Shell:   powershell.New(),
		Logger:  logger,
	})
	if !cfg.Watchdog {
		return svc, func() {}, nil
	}

	wd := watchdog.New(watchdog.ForegroundSource(windows), logger)
	wd.SetFocusCallback(func(f watchdog.Focus) {
		logger.Debug("Focus changed", slog.String("title", f.Title), slog.Int64("handle", f.Handle))
	})
	wd.Start(ctx)
	return svc, wd.Stop, nil
}

// runStdioTransport runs the MCP server with stdio transport
func runStdioTransport(ctx context.Context, mcpServer *server.MCPServer, logger *slog.Logger) error {
	tr := transport.NewStdioTransport(os.Stdin, os.Stdout).WithLogger(logger)
	defer tr.Close()
	return tr.Serve(ctx, mcpServer.Handle)
}

// runHTTPTransport runs the MCP server with the SSE and streamable HTTP transports
func runHTTPTransport(ctx context.Context, cfg *config.Config, mcpServer *server.MCPServer, metrics *transport.MetricsRegistry, logger *slog.Logger) error {
	httpCfg := &transport.HTTPTransportConfig{
		Address:           cfg.HTTPAddress(),
		SocketPath:        cfg.HTTPSocketPath,
		HeartbeatInterval: cfg.HeartbeatInterval,
		CORSOrigin:        cfg.CORSOrigin,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		RateLimit:         cfg.RateLimit,
		Metrics:           metrics,
		Logger:            logger,
	}
	tr := transport.NewHTTPTransport(httpCfg)
	return tr.Serve(ctx, mcpServer.Handle)
}
