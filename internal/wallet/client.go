// Package wallet talks to the cashu wallet sidecar. The sidecar owns
// the seed and the proof database; this process only asks it to claim
// inbound tokens, mint outbound ones and report balances.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrWalletUnavailable = errors.New("wallet sidecar unavailable")

// Client is an HTTP client for the wallet sidecar.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// Claim redeems a bearer token into the wallet. Once this returns nil
// the funds are held; the token cannot be spent again.
func (c *Client) Claim(ctx context.Context, token string) error {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/receive", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrWalletUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return fmt.Errorf("wallet claim failed: %s", e.Error)
	}
	return nil
}

// Balance reports the spendable amount held at one mint.
func (c *Client) Balance(ctx context.Context, mintURL string) (int64, error) {
	u := c.baseURL + "/balance?mint=" + url.QueryEscape(mintURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrWalletUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("wallet balance failed: %s", resp.Status)
	}

	var out struct {
		Balance int64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

// Withdraw mints an encoded bearer token worth amount at the given
// mint, ready to attach to an X-Cashu header.
func (c *Client) Withdraw(ctx context.Context, mintURL string, amount int64) (string, error) {
	body, err := json.Marshal(map[string]any{"mint": mintURL, "amount": amount})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrWalletUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return "", fmt.Errorf("wallet withdraw failed: %s", e.Error)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("wallet returned empty token")
	}
	return out.Token, nil
}
