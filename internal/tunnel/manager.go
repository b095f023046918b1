package tunnel

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/peerwise/peerwise/internal/domain"
	"go.uber.org/zap"
)

// The transport can report ready slightly before it can actually route
// traffic; clients wait this long before declaring themselves connected.
const DefaultStabilizationDelay = 500 * time.Millisecond

// Manager binds local listeners and exposes or consumes them through
// the transport collaborator.
type Manager struct {
	transport     domain.Transport
	logger        *zap.Logger
	stabilization time.Duration
}

type Options struct {
	StabilizationDelay time.Duration
}

func NewManager(transport domain.Transport, opts Options, logger *zap.Logger) *Manager {
	if opts.StabilizationDelay <= 0 {
		opts.StabilizationDelay = DefaultStabilizationDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{transport: transport, logger: logger, stabilization: opts.StabilizationDelay}
}

// Listener is a served HTTP handler exposed under a transport address.
type Listener struct {
	Address string
	Port    int

	handle   domain.TransportHandle
	server   *http.Server
	stopOnce sync.Once
	stopErr  error
}

// StartListener binds an ephemeral local listener for handler on host,
// then exposes the bound port through the transport. A non-empty
// seedPath pins the transport address across restarts.
func (m *Manager) StartListener(ctx context.Context, handler http.Handler, host, seedPath string) (*Listener, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, fmt.Errorf("bind listener: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	var seed string
	if seedPath != "" {
		seed, err = LoadOrCreateSeed(seedPath)
		if err != nil {
			_ = ln.Close()
			return nil, err
		}
	}

	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			m.logger.Error("listener serve failed", zap.Error(err))
		}
	}()

	handle, err := m.transport.Expose(ctx, host, port, seed)
	if err != nil {
		_ = srv.Close()
		return nil, fmt.Errorf("expose port %d: %w", port, err)
	}

	m.logger.Info("listener exposed",
		zap.Int("port", port), zap.String("address", handle.Address()))
	return &Listener{
		Address: handle.Address(),
		Port:    port,
		handle:  handle,
		server:  srv,
	}, nil
}

// Stop closes the transport handle before the local listener and
// awaits both, so the tunnel never serves through a half-closed pair.
// Idempotent.
func (l *Listener) Stop(ctx context.Context) error {
	l.stopOnce.Do(func() {
		if err := l.handle.Close(ctx); err != nil {
			l.stopErr = fmt.Errorf("close transport: %w", err)
		}
		if err := l.server.Shutdown(ctx); err != nil && l.stopErr == nil {
			l.stopErr = fmt.Errorf("shutdown listener: %w", err)
		}
	})
	return l.stopErr
}

// Conn is a client-side proxy to a remote transport address.
type Conn struct {
	LocalPort int

	handle    domain.TransportHandle
	closeOnce sync.Once
	closeErr  error
}

// BaseURL is the local HTTP entry point for the proxied remote.
func (c *Conn) BaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", c.LocalPort)
}

// Close tears down the proxy. Idempotent and safe to call after a
// failed connect.
func (c *Conn) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		if c.handle != nil {
			c.closeErr = c.handle.Close(ctx)
		}
	})
	return c.closeErr
}

// Connect picks a free local port, proxies it to the remote address,
// and waits out the stabilization delay before declaring the client
// connected.
func (m *Manager) Connect(ctx context.Context, address string) (*Conn, error) {
	port, err := freePort()
	if err != nil {
		return nil, err
	}

	handle, err := m.transport.Proxy(ctx, address, port)
	if err != nil {
		return nil, fmt.Errorf("proxy to %s: %w", address, err)
	}

	select {
	case <-time.After(m.stabilization):
	case <-ctx.Done():
		_ = handle.Close(context.WithoutCancel(ctx))
		return nil, ctx.Err()
	}

	return &Conn{LocalPort: port, handle: handle}, nil
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("find free port: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if err := ln.Close(); err != nil {
		return 0, fmt.Errorf("release free port: %w", err)
	}
	return port, nil
}
