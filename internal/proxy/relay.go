// File: internal/proxy/relay.go

// Package proxy provides the local forward-proxy relay the browser is pointed
// at when an upstream proxy URL is configured. Chrome speaks plain HTTP proxy
// to the fixed local address; the relay chains every request (including
// CONNECT tunnels) to the upstream.
package proxy

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/elazarl/goproxy"
	"go.uber.org/zap"
)

// LocalAddr is the fixed local address the browser session routes through.
const LocalAddr = "127.0.0.1:9377"

// Relay is a minimal forward proxy bound to a local address, chaining all
// traffic to a single upstream HTTP proxy.
type Relay struct {
	upstream *url.URL
	server   *http.Server
	logger   *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// NewRelay creates a relay that listens on LocalAddr and forwards through
// upstream. Start must be called before use.
func NewRelay(upstream string, logger *zap.Logger) (*Relay, error) {
	return NewRelayAt(LocalAddr, upstream, logger)
}

// NewRelayAt is NewRelay with an explicit listen address. Tests use it with
// an ephemeral port.
func NewRelayAt(addr, upstream string, logger *zap.Logger) (*Relay, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	upstreamURL, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream proxy URL %q: %w", upstream, err)
	}
	if upstreamURL.Scheme != "http" {
		return nil, fmt.Errorf("upstream proxy must use the http scheme, got %q", upstreamURL.Scheme)
	}

	srv := goproxy.NewProxyHttpServer()
	srv.Tr = &http.Transport{
		Proxy:           http.ProxyURL(upstreamURL),
		IdleConnTimeout: 90 * time.Second,
	}
	// CONNECT tunnels must also go through the upstream.
	srv.ConnectDial = srv.NewConnectDialToProxy(upstreamURL.String())

	return &Relay{
		upstream: upstreamURL,
		server:   &http.Server{Addr: addr, Handler: srv},
		logger:   logger.Named("proxy_relay"),
	}, nil
}

// Start binds the listener and serves in the background.
func (r *Relay) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("relay is closed")
	}
	if r.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", r.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind relay on %s: %w", r.server.Addr, err)
	}
	r.listener = ln

	r.logger.Info("Proxy relay listening.",
		zap.String("addr", ln.Addr().String()),
		zap.String("upstream", r.upstream.String()))

	go func() {
		if err := r.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			r.logger.Error("Proxy relay server stopped unexpectedly.", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured address before Start.
func (r *Relay) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener != nil {
		return r.listener.Addr().String()
	}
	return r.server.Addr
}

// Close stops the relay. Safe to call multiple times.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.server.Close()
}
