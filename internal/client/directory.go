package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/peerwise/peerwise/internal/domain"
	"github.com/peerwise/peerwise/internal/tunnel"
	"go.uber.org/zap"
)

// DirectoryClient talks to the discovery directory over a tunnel.
type DirectoryClient struct {
	manager    *tunnel.Manager
	httpClient *http.Client
	logger     *zap.Logger

	conn    *tunnel.Conn
	baseURL string
}

func NewDirectoryClient(manager *tunnel.Manager, logger *zap.Logger) *DirectoryClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryClient{
		manager:    manager,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     logger,
	}
}

func (c *DirectoryClient) Connect(ctx context.Context, connectionKey string) error {
	conn, err := c.manager.Connect(ctx, connectionKey)
	if err != nil {
		return err
	}
	c.conn = conn
	c.baseURL = conn.BaseURL()
	return nil
}

func (c *DirectoryClient) Disconnect(ctx context.Context) error {
	c.baseURL = ""
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	return conn.Close(ctx)
}

// Register announces this agent's profile to the directory.
func (c *DirectoryClient) Register(ctx context.Context, profile domain.AgentProfile) error {
	if c.baseURL == "" {
		return ErrNotConnected
	}
	resp, err := c.postJSON(ctx, "/register", profile, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError("register", resp)
	}
	return nil
}

// Heartbeat refreshes this agent's liveness with the directory.
func (c *DirectoryClient) Heartbeat(ctx context.Context, agentID string) error {
	if c.baseURL == "" {
		return ErrNotConnected
	}
	resp, err := c.postJSON(ctx, "/heartbeat", map[string]string{"agent_id": agentID}, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError("heartbeat", resp)
	}
	return nil
}

// Unregister announces this agent's shutdown so the directory can mark
// it offline immediately.
func (c *DirectoryClient) Unregister(ctx context.Context, agentID string) error {
	if c.baseURL == "" {
		return ErrNotConnected
	}
	resp, err := c.postJSON(ctx, "/unregister", map[string]string{"agent_id": agentID}, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError("unregister", resp)
	}
	return nil
}

// Discover asks the directory which agents fit a query.
func (c *DirectoryClient) Discover(ctx context.Context, query string) ([]domain.Recommendation, error) {
	if c.baseURL == "" {
		return nil, ErrNotConnected
	}
	resp, err := c.postJSON(ctx, "/discover", map[string]string{"query": query}, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError("discover", resp)
	}

	var out struct {
		Recommendations []domain.Recommendation `json:"recommendations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}

// ConnectionInfo is the broker's answer to a connect request: the
// agent's tunnel key, ready to dial.
type ConnectionInfo struct {
	ConnectionKey string `json:"connection_key"`
	DisplayName   string `json:"display_name"`
}

// ResolveAgent asks the directory for an agent's connection key.
// cashuToken may be empty when the directory does not charge for
// brokering.
func (c *DirectoryClient) ResolveAgent(ctx context.Context, agentID, cashuToken string) (*ConnectionInfo, error) {
	if c.baseURL == "" {
		return nil, ErrNotConnected
	}
	resp, err := c.postJSON(ctx, "/connect", map[string]string{"agent_id": agentID}, cashuToken)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError("connect", resp)
	}

	var info ConnectionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *DirectoryClient) postJSON(ctx context.Context, path string, body any, cashuToken string) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if cashuToken != "" {
		req.Header.Set("X-Cashu", cashuToken)
	}
	return c.httpClient.Do(req)
}

// Heartbeater periodically refreshes an agent's liveness with the
// directory. Failures are logged and retried on the next tick; the
// directory's sweep handles prolonged silence.
type Heartbeater struct {
	dir      *DirectoryClient
	agentID  string
	interval time.Duration
	logger   *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

// StartHeartbeater begins the heartbeat loop. Call Stop to end it and
// announce shutdown.
func StartHeartbeater(dir *DirectoryClient, agentID string, interval time.Duration, logger *zap.Logger) *Heartbeater {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Heartbeater{
		dir:      dir,
		agentID:  agentID,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Heartbeater) loop() {
	defer close(h.doneCh)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
			if err := h.dir.Heartbeat(ctx, h.agentID); err != nil {
				h.logger.Warn("heartbeat failed", zap.Error(err))
			}
			cancel()
		case <-h.stopCh:
			return
		}
	}
}

// Stop ends the loop and tells the directory this agent is going
// offline. The unregister is best-effort.
func (h *Heartbeater) Stop(ctx context.Context) {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		<-h.doneCh

		if err := h.dir.Unregister(ctx, h.agentID); err != nil {
			h.logger.Warn("unregister failed", zap.Error(err))
		}
	})
}
