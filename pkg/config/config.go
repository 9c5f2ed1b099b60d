package config

import "time"

const (
	DefaultSaveDir           = "images"
	DefaultStateDir          = "./scraper_state"
	DefaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	DefaultReferer           = "https://craftedmemories.us"
	DefaultChunkSize         = 1024
	DefaultFallbackExtension = ".webp"
	DefaultListenAddr        = ":5000"
	DefaultMaxConcurrentRuns = 4
	DefaultRequestTimeout    = 10 * time.Second

	maxChunkSize = 1 << 20
)

// AppConfig holds the global application configuration
type AppConfig struct {
	SaveDir            string           `yaml:"save_dir"`
	StateDir           string           `yaml:"state_dir"`
	EnableHistory      *bool            `yaml:"enable_history,omitempty"`      // nil = enabled
	UserAgent          string           `yaml:"user_agent"`
	Referer            string           `yaml:"referer"`
	ChunkSize          int              `yaml:"chunk_size,omitempty"`          // Bytes per write while streaming an image body
	FallbackExtension  string           `yaml:"fallback_extension,omitempty"`  // Used when a content type has no known extension
	RespectRobotsTxt   bool             `yaml:"respect_robots_txt,omitempty"`
	ListenAddr         string           `yaml:"listen_addr,omitempty"`
	MaxConcurrentRuns  int              `yaml:"max_concurrent_runs,omitempty"` // Server-wide limit on simultaneous pipeline runs
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"`
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"` // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`
	MaxRedirects          int           `yaml:"max_redirects,omitempty"`
}

// HistoryEnabled reports whether run history should be persisted
func (c *AppConfig) HistoryEnabled() bool {
	if c.EnableHistory == nil {
		return true
	}
	return *c.EnableHistory
}

// Default returns an AppConfig with every default applied
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.Validate()
	return cfg
}
