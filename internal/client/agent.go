// Package client implements the consumer side of the network: tunnel
// dialing, the agent consultation surface and the directory surface.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/peerwise/peerwise/internal/domain"
	"github.com/peerwise/peerwise/internal/tunnel"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("not connected")

const defaultRequestTimeout = 10 * time.Second

// AgentClient consults one expert agent over a tunnel. It tracks the
// session id from the last answer so follow-ups continue the same
// conversation.
type AgentClient struct {
	manager    *tunnel.Manager
	httpClient *http.Client
	logger     *zap.Logger

	conn      *tunnel.Conn
	baseURL   string
	sessionID string
}

func NewAgentClient(manager *tunnel.Manager, logger *zap.Logger) *AgentClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentClient{
		manager:    manager,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     logger,
	}
}

// Connect dials the agent's tunnel by connection key and waits for the
// proxy to stabilize.
func (c *AgentClient) Connect(ctx context.Context, connectionKey string) error {
	conn, err := c.manager.Connect(ctx, connectionKey)
	if err != nil {
		return err
	}
	c.conn = conn
	c.baseURL = conn.BaseURL()
	return nil
}

// Disconnect tears the tunnel down and forgets the session. Safe to
// call twice.
func (c *AgentClient) Disconnect(ctx context.Context) error {
	c.baseURL = ""
	c.sessionID = ""
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	return conn.Close(ctx)
}

// AskOptions are the optional knobs on one question.
type AskOptions struct {
	// SessionID overrides the tracked session. Leave empty to continue
	// the conversation from the previous Ask.
	SessionID string
	Context   string
	// CashuToken is attached as the bearer credential when the agent
	// charges for consultations.
	CashuToken string
}

// AskResult is either an answer or a payment demand; PaymentRequired
// tells which. On a payment demand PaymentRequest holds the encoded
// request to satisfy and retry with.
type AskResult struct {
	PaymentRequired bool   `json:"payment_required,omitempty"`
	PaymentRequest  string `json:"payment_request,omitempty"`
	Amount          int64  `json:"amount,omitempty"`
	Unit            string `json:"unit,omitempty"`

	Response          string            `json:"response,omitempty"`
	Confidence        domain.Confidence `json:"confidence,omitempty"`
	BasedOnSessions   []string          `json:"based_on_sessions,omitempty"`
	SessionID         string            `json:"session_id,omitempty"`
	FollowupAvailable bool              `json:"followup_available,omitempty"`
}

// Ask sends one question. A 402 is not an error: the result comes back
// with PaymentRequired set so the caller can pay and retry.
func (c *AgentClient) Ask(ctx context.Context, question string, opts AskOptions) (*AskResult, error) {
	if c.baseURL == "" {
		return nil, ErrNotConnected
	}

	sid := opts.SessionID
	if sid == "" {
		sid = c.sessionID
	}
	body := map[string]string{"question": question}
	if sid != "" {
		body["session_id"] = sid
	}
	if opts.Context != "" {
		body["context"] = opts.Context
	}

	headers := map[string]string{}
	if opts.CashuToken != "" {
		headers["X-Cashu"] = opts.CashuToken
	}

	resp, err := c.post(ctx, "/ask", body, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPaymentRequired {
		var demand struct {
			Amount int64  `json:"amount"`
			Unit   string `json:"unit"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&demand)
		return &AskResult{
			PaymentRequired: true,
			PaymentRequest:  resp.Header.Get("X-Cashu"),
			Amount:          demand.Amount,
			Unit:            demand.Unit,
		}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, responseError("ask", resp)
	}

	var result AskResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	c.sessionID = result.SessionID
	return &result, nil
}

// AgentProfileInfo is the agent's advertised expertise surface.
type AgentProfileInfo struct {
	AgentID      string                   `json:"agent_id"`
	DisplayName  string                   `json:"display_name"`
	Domains      []domain.ExpertiseDomain `json:"domains"`
	SessionCount int                      `json:"session_count"`
	Status       string                   `json:"status"`
	Payment      *domain.PaymentTerms     `json:"payment,omitempty"`
}

func (c *AgentClient) Profile(ctx context.Context) (*AgentProfileInfo, error) {
	if c.baseURL == "" {
		return nil, ErrNotConnected
	}

	resp, err := c.get(ctx, "/profile")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError("profile", resp)
	}
	var profile AgentProfileInfo
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// AgentStatusInfo is the agent's health snapshot.
type AgentStatusInfo struct {
	Status              string `json:"status"`
	UptimeSeconds       int64  `json:"uptime_seconds"`
	ActiveConsultations int    `json:"active_consultations"`
}

func (c *AgentClient) Status(ctx context.Context) (*AgentStatusInfo, error) {
	if c.baseURL == "" {
		return nil, ErrNotConnected
	}

	resp, err := c.get(ctx, "/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError("status", resp)
	}
	var status AgentStatusInfo
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *AgentClient) post(ctx context.Context, path string, body any, headers map[string]string) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.httpClient.Do(req)
}

func (c *AgentClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

// responseError extracts the server's error message, falling back to
// the HTTP status.
func responseError(op string, resp *http.Response) error {
	var e struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&e)
	if e.Error == "" {
		e.Error = resp.Status
	}
	return fmt.Errorf("%s failed (%d): %s", op, resp.StatusCode, e.Error)
}
