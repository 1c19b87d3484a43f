package fetch

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// ClientConfig holds HTTP transport settings.
type ClientConfig struct {
	ConnectTimeout time.Duration // dial and response header timeout
	IdleTimeout    time.Duration // idle keep-alive connection timeout
	ProxyURL       string        // http:// or socks5:// proxy, empty for environment
}

// DefaultClientConfig returns conservative transport settings.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout: 30 * time.Second,
		IdleTimeout:    60 * time.Second,
	}
}

// NewHTTPClient builds an http.Client for episode downloads.
// No overall timeout is set: episodes are large and the body is streamed,
// so per-attempt deadlines are applied via context instead.
func NewHTTPClient(cfg ClientConfig) (*http.Client, error) {
	def := DefaultClientConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}

	proxy := http.ProxyFromEnvironment
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		proxy = http.ProxyURL(proxyURL)
	}

	transport := &http.Transport{
		Proxy: proxy,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       cfg.IdleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: cfg.ConnectTimeout,
	}

	return &http.Client{Transport: transport}, nil
}
