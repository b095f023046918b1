package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/peerwise/peerwise/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTransport records expose/proxy calls and hands out fake handles.
type fakeTransport struct {
	mu         sync.Mutex
	exposeErr  error
	proxyErr   error
	exposed    []exposeCall
	handles    []*fakeHandle
	closeOrder *[]string
}

type exposeCall struct {
	host string
	port int
	seed string
}

type fakeHandle struct {
	address    string
	mu         sync.Mutex
	closed     int
	closeOrder *[]string
	name       string
}

func (h *fakeHandle) Address() string { return h.address }

func (h *fakeHandle) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
	if h.closeOrder != nil {
		*h.closeOrder = append(*h.closeOrder, h.name)
	}
	return nil
}

func (t *fakeTransport) Expose(ctx context.Context, host string, port int, seed string) (domain.TransportHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exposeErr != nil {
		return nil, t.exposeErr
	}
	t.exposed = append(t.exposed, exposeCall{host: host, port: port, seed: seed})
	h := &fakeHandle{address: fmt.Sprintf("peer://%s-%d", seed, port), closeOrder: t.closeOrder, name: "transport"}
	t.handles = append(t.handles, h)
	return h, nil
}

func (t *fakeTransport) Proxy(ctx context.Context, address string, localPort int) (domain.TransportHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.proxyErr != nil {
		return nil, t.proxyErr
	}
	h := &fakeHandle{address: address, name: "proxy"}
	t.handles = append(t.handles, h)
	return h, nil
}

func TestStartListenerExposesBoundPort(t *testing.T) {
	ft := &fakeTransport{}
	m := NewManager(ft, Options{StabilizationDelay: time.Millisecond}, zap.NewNop())

	ln, err := m.StartListener(context.Background(), http.NotFoundHandler(), "127.0.0.1", "")
	require.NoError(t, err)
	defer func() { _ = ln.Stop(context.Background()) }()

	assert.NotZero(t, ln.Port)
	require.Len(t, ft.exposed, 1)
	assert.Equal(t, ln.Port, ft.exposed[0].port)
	assert.NotEmpty(t, ln.Address)

	// The local HTTP server is actually serving.
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/", ln.Port))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartListenerPersistsSeed(t *testing.T) {
	ft := &fakeTransport{}
	m := NewManager(ft, Options{StabilizationDelay: time.Millisecond}, zap.NewNop())
	seedPath := filepath.Join(t.TempDir(), "keys", "seed")

	ln, err := m.StartListener(context.Background(), http.NotFoundHandler(), "127.0.0.1", seedPath)
	require.NoError(t, err)
	require.NoError(t, ln.Stop(context.Background()))

	info, err := os.Stat(seedPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// The same seed (and thus address) is reused on restart.
	ln2, err := m.StartListener(context.Background(), http.NotFoundHandler(), "127.0.0.1", seedPath)
	require.NoError(t, err)
	require.NoError(t, ln2.Stop(context.Background()))
	assert.Equal(t, ft.exposed[0].seed, ft.exposed[1].seed)
}

func TestStopClosesTransportBeforeListener(t *testing.T) {
	var order []string
	ft := &fakeTransport{closeOrder: &order}
	m := NewManager(ft, Options{StabilizationDelay: time.Millisecond}, zap.NewNop())

	ln, err := m.StartListener(context.Background(), http.NotFoundHandler(), "127.0.0.1", "")
	require.NoError(t, err)
	require.NoError(t, ln.Stop(context.Background()))

	require.Equal(t, []string{"transport"}, order)

	// The local port no longer accepts connections.
	_, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/", ln.Port))
	assert.Error(t, err)
}

func TestStopIsIdempotent(t *testing.T) {
	ft := &fakeTransport{}
	m := NewManager(ft, Options{StabilizationDelay: time.Millisecond}, zap.NewNop())

	ln, err := m.StartListener(context.Background(), http.NotFoundHandler(), "127.0.0.1", "")
	require.NoError(t, err)

	require.NoError(t, ln.Stop(context.Background()))
	require.NoError(t, ln.Stop(context.Background()))
	assert.Equal(t, 1, ft.handles[0].closed)
}

func TestConnectWaitsForStabilization(t *testing.T) {
	ft := &fakeTransport{}
	delay := 50 * time.Millisecond
	m := NewManager(ft, Options{StabilizationDelay: delay}, zap.NewNop())

	start := time.Now()
	conn, err := m.Connect(context.Background(), "peer://remote")
	require.NoError(t, err)
	defer func() { _ = conn.Close(context.Background()) }()

	assert.GreaterOrEqual(t, time.Since(start), delay)
	assert.Contains(t, conn.BaseURL(), "http://127.0.0.1:")
}

func TestConnectProxyFailure(t *testing.T) {
	ft := &fakeTransport{proxyErr: errors.New("unreachable")}
	m := NewManager(ft, Options{StabilizationDelay: time.Millisecond}, zap.NewNop())

	_, err := m.Connect(context.Background(), "peer://remote")
	assert.Error(t, err)
}

func TestConnCloseIsIdempotent(t *testing.T) {
	ft := &fakeTransport{}
	m := NewManager(ft, Options{StabilizationDelay: time.Millisecond}, zap.NewNop())

	conn, err := m.Connect(context.Background(), "peer://remote")
	require.NoError(t, err)

	require.NoError(t, conn.Close(context.Background()))
	require.NoError(t, conn.Close(context.Background()))
	assert.Equal(t, 1, ft.handles[0].closed)
}
