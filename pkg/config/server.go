package config

import "time"

// ServerConfig contains HTTP/WebSocket listener configuration.
type ServerConfig struct {
	// Host to bind. Overridden by the HOST environment variable.
	Host string `yaml:"host"`

	// Port to listen on. Overridden by the PORT environment variable.
	Port int `yaml:"port"`

	// AllowedWSOrigins are additional origin patterns accepted for
	// WebSocket upgrades (localhost variants are always accepted).
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`

	// MaxInflight is the high-water mark for concurrently processed chat
	// requests. Requests beyond it receive 503.
	MaxInflight int `yaml:"max_inflight"`

	// GzipMinBytes is the minimum response size for gzip compression.
	GzipMinBytes int `yaml:"gzip_min_bytes"`

	// ShutdownTimeout is the max time to drain inflight requests on stop.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultServerConfig returns the built-in server defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8000,
		MaxInflight:     32,
		GzipMinBytes:    1024,
		ShutdownTimeout: 30 * time.Second,
	}
}
