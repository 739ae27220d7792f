package httpclient

import (
	"net"
	"net/http"
	"time"
)

// Config holds HTTP transport configuration.
type Config struct {
	// Timeout bounds the wait for response headers on each round-trip.
	Timeout         time.Duration
	MaxConnsPerHost int
}

// DefaultConfig returns sensible defaults for an upstream transport.
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		MaxConnsPerHost: 100,
	}
}

// NewTransport returns a pooled transport. It never retries; callers that
// need a retry policy own it.
func NewTransport(cfg Config) *http.Transport {
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = DefaultConfig().MaxConnsPerHost
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
