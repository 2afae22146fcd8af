// Package config holds the startup-fixed configuration for the bridge.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// DefaultModel is substituted when a request does not name a model.
const DefaultModel = "kimi-k2-0711-preview"

// Config is the immutable configuration shared by the server and the
// upstream client. It is built once in main and passed by reference;
// components never read the environment themselves.
type Config struct {
	// UpstreamBaseURL is the backend base address, e.g. https://api.moonshot.cn
	UpstreamBaseURL string

	// UpstreamAPIKey is the bearer credential for the backend.
	UpstreamAPIKey string

	// Port is the listen port for the inbound server.
	Port int

	// DefaultModel is used when the caller omits a model identifier.
	DefaultModel string
}

// NewConfig reads the configuration from the environment and validates it.
func NewConfig() (*Config, error) {
	cfg := &Config{
		UpstreamBaseURL: strings.TrimSuffix(os.Getenv("UPSTREAM_BASE_URL"), "/"),
		UpstreamAPIKey:  os.Getenv("UPSTREAM_API_KEY"),
		Port:            8080,
		DefaultModel:    DefaultModel,
	}

	if cfg.UpstreamBaseURL == "" {
		cfg.UpstreamBaseURL = "https://api.moonshot.cn"
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid PORT value: %q", portStr)
		}
		cfg.Port = port
	}

	if model := os.Getenv("DEFAULT_MODEL"); model != "" {
		cfg.DefaultModel = model
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.UpstreamAPIKey == "" {
		return errors.New("UPSTREAM_API_KEY is required")
	}
	u, err := url.Parse(c.UpstreamBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid UPSTREAM_BASE_URL: %q", c.UpstreamBaseURL)
	}
	return nil
}

// Addr returns the listen address for the inbound server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
