package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/peerwise/peerwise/internal/domain"
	"go.uber.org/zap"
)

const tcpAddressScheme = "tcp://"

var ErrBadAddress = errors.New("bad transport address")

// TCPTransport announces listeners as plain tcp://host:port addresses
// and proxies clients to them over direct TCP. It carries no NAT
// traversal; peers must be mutually routable. The seed is ignored
// because the address derives from the bind, not from key material.
type TCPTransport struct {
	// AdvertiseHost overrides the host written into announced
	// addresses, for listeners bound to 0.0.0.0 behind a known name.
	AdvertiseHost string

	logger *zap.Logger
}

func NewTCPTransport(advertiseHost string, logger *zap.Logger) *TCPTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TCPTransport{AdvertiseHost: advertiseHost, logger: logger}
}

type tcpExposeHandle struct {
	address string
}

func (h *tcpExposeHandle) Address() string                 { return h.address }
func (h *tcpExposeHandle) Close(ctx context.Context) error { return nil }

func (t *TCPTransport) Expose(ctx context.Context, host string, port int, seed string) (domain.TransportHandle, error) {
	announce := host
	if t.AdvertiseHost != "" {
		announce = t.AdvertiseHost
	}
	return &tcpExposeHandle{
		address: fmt.Sprintf("%s%s", tcpAddressScheme, net.JoinHostPort(announce, fmt.Sprint(port))),
	}, nil
}

// tcpProxyHandle forwards a local listener to one remote address until
// closed.
type tcpProxyHandle struct {
	address string
	ln      net.Listener
	logger  *zap.Logger

	mu        sync.Mutex
	conns     map[net.Conn]struct{}
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (h *tcpProxyHandle) Address() string { return h.address }

func (h *tcpProxyHandle) Close(ctx context.Context) error {
	var err error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		for c := range h.conns {
			_ = c.Close()
		}
		h.mu.Unlock()

		err = h.ln.Close()
		h.wg.Wait()
	})
	return err
}

func (h *tcpProxyHandle) track(c net.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c] = struct{}{}
	return true
}

func (h *tcpProxyHandle) untrack(c net.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *tcpProxyHandle) acceptLoop(remote string) {
	defer h.wg.Done()
	for {
		local, err := h.ln.Accept()
		if err != nil {
			return
		}
		if !h.track(local) {
			_ = local.Close()
			return
		}
		h.wg.Add(1)
		go h.forward(local, remote)
	}
}

func (h *tcpProxyHandle) forward(local net.Conn, remote string) {
	defer h.wg.Done()
	defer h.untrack(local)
	defer local.Close()

	upstream, err := net.Dial("tcp", remote)
	if err != nil {
		h.logger.Warn("proxy dial failed", zap.String("remote", remote), zap.Error(err))
		return
	}
	if !h.track(upstream) {
		_ = upstream.Close()
		return
	}
	defer h.untrack(upstream)
	defer upstream.Close()

	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(upstream, local)
		// Half-close so the upstream sees EOF without losing the
		// response direction.
		if tc, ok := upstream.(*net.TCPConn); ok {
			_ = tc.CloseWrite()
		}
		close(done)
	}()
	_, _ = io.Copy(local, upstream)
	<-done
}

func (t *TCPTransport) Proxy(ctx context.Context, address string, localPort int) (domain.TransportHandle, error) {
	if !strings.HasPrefix(address, tcpAddressScheme) {
		return nil, fmt.Errorf("%w: %q", ErrBadAddress, address)
	}
	remote := strings.TrimPrefix(address, tcpAddressScheme)
	if _, _, err := net.SplitHostPort(remote); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadAddress, address)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", localPort))
	if err != nil {
		return nil, fmt.Errorf("bind proxy port %d: %w", localPort, err)
	}

	h := &tcpProxyHandle{
		address: address,
		ln:      ln,
		logger:  t.logger,
		conns:   make(map[net.Conn]struct{}),
	}
	h.wg.Add(1)
	go h.acceptLoop(remote)
	return h, nil
}
