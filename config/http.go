package config

import (
	"fmt"
	"path"
)

// HTTPConfig configures the REST API listener.
type HTTPConfig struct {
	// Addr is the listen address; "-" disables the API.
	Addr string `json:"addr"`
	// ShutdownSeconds bounds the graceful shutdown.
	ShutdownSeconds int `json:"shutdown_seconds"`
	// AllowedOrigins lists host patterns of the pages allowed to open the
	// event feed from another origin, e.g. "*.campus.example".
	AllowedOrigins []string `json:"allowed_origins"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ShutdownSeconds == 0 {
		c.ShutdownSeconds = 5
	}
}

// Enabled reports whether the API should be served.
func (c HTTPConfig) Enabled() bool { return c.Addr != "-" }

// Validate checks mandatory fields.
func (c HTTPConfig) Validate() error {
	if c.ShutdownSeconds < 0 {
		return fmt.Errorf("http: shutdown_seconds must not be negative")
	}
	for _, p := range c.AllowedOrigins {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("http: allowed origin %q: %w", p, err)
		}
	}
	return nil
}
