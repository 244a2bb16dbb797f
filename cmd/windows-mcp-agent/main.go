// Copyright 2025 Joseph Cumines
//
// gRPC desktop agent - runs on the Windows host and executes tool calls for a
// remote windows-mcp server

package main

import (
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/windows-mcp/internal/config"
	"github.com/joeycumines/windows-mcp/internal/desktop"
	"github.com/joeycumines/windows-mcp/internal/powershell"
	"github.com/joeycumines/windows-mcp/internal/remote"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("Failed to load .env", slog.Any("error", err))
		os.Exit(1)
	}
	cfg, err := config.LoadAgent(os.Args[1:])
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var opts []grpc.ServerOption
	if cfg.CertFile != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			logger.Error("Failed to load TLS credentials", slog.Any("error", err))
			os.Exit(1)
		}
		opts = append(opts, grpc.Creds(creds))
	}

	agent := remote.NewAgent(desktop.NewService(desktop.Options{
		Input:   desktop.NativeInput(),
		Windows: desktop.NativeWindows(),
		Shell:   powershell.New(),
		Logger:  logger,
	}), logger)
	grpcServer := remote.NewServer(agent, opts...)

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		logger.Error("Failed to listen", slog.String("addr", cfg.Listen), slog.Any("error", err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Agent listening", slog.String("addr", lis.Addr().String()), slog.Bool("tls", cfg.CertFile != ""))
		errChan <- grpcServer.Serve(lis)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", slog.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			logger.Error("Server error", slog.Any("error", err))
		}
	}

	agent.Shutdown()
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
		logger.Info("Agent shutdown complete")
	case <-sigChan:
		logger.Warn("Forced shutdown")
		grpcServer.Stop()
	}
}
