package server

import (
	"crypto/tls"
	"time"
)

// Config holds listener and per-connection settings. Zero timeouts mean
// wait indefinitely.
type Config struct {
	Addr     string
	CertFile string
	KeyFile  string
	// TLSConfig, when set, is used instead of loading CertFile/KeyFile.
	TLSConfig *tls.Config

	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	MaxHeaderSize    int
	MaxBodySize      int64
	HandlerWorkers   int
	ReusePort        bool
	EnableLogging    bool
}

func DefaultConfig() *Config {
	return &Config{
		Addr:           "0.0.0.0:23030",
		MaxHeaderSize:  8192,
		MaxBodySize:    10 * 1024 * 1024, // 10MB
		HandlerWorkers: 64,
		EnableLogging:  true,
	}
}
