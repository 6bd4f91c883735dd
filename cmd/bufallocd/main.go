// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bufallocd serves buffer allocation on a Unix socket.
//
// Usage:
//
//	bufallocd [--config=PATH] [--socket=PATH] [--debug]
//
// Flags override the config file. With no --config and no
// BUFMAP_CONFIG, built-in defaults apply.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/bufmap/lib/allocator"
	"github.com/bureau-foundation/bufmap/lib/config"
	"github.com/bureau-foundation/bufmap/lib/memback"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		socketPath string
		debug      bool
	)
	pflag.StringVar(&configPath, "config", "", "path to YAML configuration")
	pflag.StringVar(&socketPath, "socket", "", "Unix socket path (overrides config)")
	pflag.BoolVar(&debug, "debug", false, "enable debug logging")
	pflag.Parse()

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg := config.Default()
	var err error
	switch {
	case configPath != "":
		cfg, err = config.LoadFile(configPath)
	case os.Getenv("BUFMAP_CONFIG") != "":
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.Socket.Path = socketPath
	}

	device, err := memback.Open(logger)
	if err != nil {
		return fmt.Errorf("opening backend: %w", err)
	}
	defer device.Close()
	device.MaxBytes = cfg.Backend.MaxBytes

	service := allocator.NewService(device, cfg.Socket.Path, logger)
	service.MaxCount = cfg.Socket.MaxCount

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("bufallocd starting",
		"socket", cfg.Socket.Path,
		"max_count", cfg.Socket.MaxCount)
	return service.Serve(ctx)
}
