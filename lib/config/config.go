// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the
// allocator daemon.
//
// Configuration is loaded from a single file specified by either the
// BUFMAP_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides. Environment variable
// references in the socket path (${RUNTIME_DIR} and the like) are
// expanded after loading; nothing else reads the environment.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the allocator daemon configuration.
type Config struct {
	// Socket configures the Unix socket the allocator serves on.
	Socket SocketConfig `yaml:"socket"`

	// Backend selects the mapper capability profile the daemon
	// advertises and the backend limits.
	Backend BackendConfig `yaml:"backend"`
}

// SocketConfig configures the allocator's listening socket.
type SocketConfig struct {
	// Path is the Unix socket path. Default: /run/bufmap/alloc.sock.
	Path string `yaml:"path"`

	// MaxCount bounds the buffers in one allocation request.
	// Default: 16.
	MaxCount int `yaml:"max_count"`
}

// BackendConfig configures the buffer backend.
type BackendConfig struct {
	// MaxBytes caps the size of a single buffer allocation. Zero
	// means unlimited. Default: 256 MiB, enough for an 8K RGBA
	// buffer with room to spare.
	MaxBytes uint32 `yaml:"max_bytes"`
}

// Default returns a Config with development defaults.
func Default() Config {
	return Config{
		Socket: SocketConfig{
			Path:     "/run/bufmap/alloc.sock",
			MaxCount: 16,
		},
		Backend: BackendConfig{
			MaxBytes: 256 << 20,
		},
	}
}

// Load reads configuration from the file named by BUFMAP_CONFIG.
// An unset variable is an error — there is no implicit default file.
func Load() (Config, error) {
	path := os.Getenv("BUFMAP_CONFIG")
	if path == "" {
		return Config{}, errors.New("config: BUFMAP_CONFIG not set")
	}
	return LoadFile(path)
}

// LoadFile reads configuration from path, applies defaults for unset
// fields, expands environment references in the socket path, and
// validates the result.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.Socket.Path = os.ExpandEnv(cfg.Socket.Path)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot
// serve with.
func (c Config) Validate() error {
	if c.Socket.Path == "" {
		return errors.New("socket.path must not be empty")
	}
	if c.Socket.MaxCount < 1 {
		return fmt.Errorf("socket.max_count %d must be at least 1", c.Socket.MaxCount)
	}
	return nil
}
