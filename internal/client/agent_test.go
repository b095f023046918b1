package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/peerwise/peerwise/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// attached builds a client already pointed at a local test server,
// bypassing the tunnel.
func attached(srv *httptest.Server) *AgentClient {
	return &AgentClient{
		httpClient: srv.Client(),
		baseURL:    srv.URL,
	}
}

func TestAskNotConnected(t *testing.T) {
	c := NewAgentClient(nil, nil)
	_, err := c.Ask(context.Background(), "q", AskOptions{})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestAskTracksSession(t *testing.T) {
	var gotSessionIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotSessionIDs = append(gotSessionIDs, body["session_id"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response":   "answer",
			"confidence": "high",
			"session_id": "sess-123",
		})
	}))
	defer srv.Close()

	c := attached(srv)

	res, err := c.Ask(context.Background(), "first", AskOptions{})
	require.NoError(t, err)
	assert.False(t, res.PaymentRequired)
	assert.Equal(t, "answer", res.Response)
	assert.Equal(t, "sess-123", res.SessionID)

	_, err = c.Ask(context.Background(), "second", AskOptions{})
	require.NoError(t, err)

	require.Len(t, gotSessionIDs, 2)
	assert.Empty(t, gotSessionIDs[0])
	assert.Equal(t, "sess-123", gotSessionIDs[1], "follow-up must reuse the tracked session")
}

func TestAskSurfacesPaymentDemand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Cashu") != "" {
			_ = json.NewEncoder(w).Encode(map[string]any{"response": "paid answer", "session_id": "s1"})
			return
		}
		w.Header().Set("X-Cashu", "creqAexample")
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "Payment required", "amount": 10, "unit": "sat"})
	}))
	defer srv.Close()

	c := attached(srv)

	res, err := c.Ask(context.Background(), "q", AskOptions{})
	require.NoError(t, err, "a 402 is a result, not an error")
	assert.True(t, res.PaymentRequired)
	assert.Equal(t, "creqAexample", res.PaymentRequest)
	assert.Equal(t, int64(10), res.Amount)
	assert.Equal(t, "sat", res.Unit)

	res, err = c.Ask(context.Background(), "q", AskOptions{CashuToken: "cashuBtok"})
	require.NoError(t, err)
	assert.False(t, res.PaymentRequired)
	assert.Equal(t, "paid answer", res.Response)
}

func TestAskServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
	}))
	defer srv.Close()

	c := attached(srv)
	_, err := c.Ask(context.Background(), "q", AskOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal server error")
}

func TestProfileAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/profile":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"agent_id":     "agent-a",
				"display_name": "Agent A",
				"domains": []map[string]any{
					{"name": "nix packaging", "depth": "deep", "tags": []string{"nix"}},
				},
				"session_count": 4,
				"status":        "available",
			})
		case "/status":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "ok", "uptime_seconds": 12, "active_consultations": 2,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := attached(srv)

	profile, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "agent-a", profile.AgentID)
	require.Len(t, profile.Domains, 1)
	assert.Equal(t, "nix packaging", profile.Domains[0].Name)

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 2, status.ActiveConsultations)
}

func TestDisconnectIdempotent(t *testing.T) {
	c := NewAgentClient(nil, nil)
	require.NoError(t, c.Disconnect(context.Background()))
	require.NoError(t, c.Disconnect(context.Background()))
}

func TestDirectoryDiscoverAndResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/discover":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"recommendations": []domain.Recommendation{
					{AgentID: "nix-expert", RelevanceScore: 0.9, Reasoning: "deep nix expertise"},
				},
			})
		case "/connect":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"connection_key": "key-nix", "display_name": "Nix Expert",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := &DirectoryClient{httpClient: srv.Client(), baseURL: srv.URL}

	recs, err := c.Discover(context.Background(), "nix flakes")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "nix-expert", recs[0].AgentID)

	info, err := c.ResolveAgent(context.Background(), "nix-expert", "")
	require.NoError(t, err)
	assert.Equal(t, "key-nix", info.ConnectionKey)
}

func TestHeartbeaterStopAnnouncesShutdown(t *testing.T) {
	var heartbeats, unregisters atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/heartbeat":
			heartbeats.Add(1)
		case "/unregister":
			unregisters.Add(1)
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer srv.Close()

	dir := &DirectoryClient{httpClient: srv.Client(), baseURL: srv.URL}
	h := StartHeartbeater(dir, "agent-a", 10*time.Millisecond, nil)

	assert.Eventually(t, func() bool { return heartbeats.Load() >= 2 }, time.Second, 5*time.Millisecond)

	h.Stop(context.Background())
	assert.Equal(t, int32(1), unregisters.Load())

	// Second Stop is a no-op.
	h.Stop(context.Background())
	assert.Equal(t, int32(1), unregisters.Load())
}
