package config

import (
	"fmt"
	"strings"
	"time"

	"image-scraper/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// SaveDir
	if strings.TrimSpace(c.SaveDir) == "" {
		c.SaveDir = DefaultSaveDir
	}

	// StateDir
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}

	// Outbound headers
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Referer == "" {
		c.Referer = DefaultReferer
	}

	// ChunkSize
	if c.ChunkSize < 0 {
		warnings = append(warnings, fmt.Sprintf("chunk_size cannot be negative, defaulting to %d", DefaultChunkSize))
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkSize > maxChunkSize {
		return warnings, fmt.Errorf("%w: chunk_size %d exceeds maximum of %d bytes", utils.ErrConfigValidation, c.ChunkSize, maxChunkSize)
	}

	// FallbackExtension
	if c.FallbackExtension == "" {
		c.FallbackExtension = DefaultFallbackExtension
	} else if !strings.HasPrefix(c.FallbackExtension, ".") {
		return warnings, fmt.Errorf("%w: fallback_extension %q must start with '.'", utils.ErrConfigValidation, c.FallbackExtension)
	}
	c.FallbackExtension = strings.ToLower(c.FallbackExtension)

	// ListenAddr
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	// MaxConcurrentRuns
	if c.MaxConcurrentRuns < 0 {
		warnings = append(warnings, fmt.Sprintf("max_concurrent_runs cannot be negative, defaulting to %d", DefaultMaxConcurrentRuns))
		c.MaxConcurrentRuns = DefaultMaxConcurrentRuns
	}
	if c.MaxConcurrentRuns == 0 {
		c.MaxConcurrentRuns = DefaultMaxConcurrentRuns
	}

	if c.RespectRobotsTxt {
		warnings = append(warnings, "respect_robots_txt is enabled: disallowed pages and images will not be fetched")
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = DefaultRequestTimeout
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 10 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
	if h.MaxRedirects <= 0 {
		h.MaxRedirects = 10
	}
}
