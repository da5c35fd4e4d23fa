package rpc

import (
	"bytes"         // Request bodies
	"context"       // Context for cancellation and timeouts
	"encoding/json" // JSON encoding/decoding
	"errors"        // Error checks
	"fmt"           // Error formatting
	"io"            // Readers and writers
	"net/http"      // HTTP client
	"net/url"       // Path escaping
	"strings"       // String manipulation
	"time"          // Time durations

	"bank_system/internal/domain" // Domain models
	"bank_system/internal/utils"  // Utility functions
)

const maxResponseBytes = 4 << 20

// envelope is the outcome part of every ledger response
type envelope struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message"`
	ErrorKind  domain.ErrorKind `json:"error_kind"`
	TransferID string           `json:"transfer_id"`
	Timestamp  time.Time        `json:"timestamp"`
	Balance    *domain.Money    `json:"balance"`
	Retryable  bool             `json:"retryable"`
}

// Client calls the ledger tier over HTTP. It is safe for concurrent use; connections
// are pooled by the underlying http.Transport and released after every call.
type Client struct {
	baseURL  string
	secret   string
	timeout  time.Duration
	tokenTTL time.Duration
	http     *http.Client
}

type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client, e.g. to tune the transport
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient returns a client for the ledger at baseURL. Each call is bounded by timeout.
func NewClient(baseURL, secret string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		secret:   secret,
		timeout:  timeout,
		tokenTTL: time.Minute,
		http: &http.Client{Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        64,
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     90 * time.Second,
		}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call sends one request and decodes the success payload into out.
// Transport failures and timeouts are retryable STORE_FAILURE errors; the outcome is unknown.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return domain.StoreFailure(fmt.Errorf("encode %s request: %w", path, err), false)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return domain.StoreFailure(fmt.Errorf("build %s request: %w", path, err), false)
	}
	requestID := utils.RequestID(ctx)
	token, err := utils.GenerateServiceToken(c.secret, requestID, c.tokenTTL)
	if err != nil {
		return domain.StoreFailure(fmt.Errorf("sign %s request: %w", path, err), false)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set(utils.RequestIDHeader, requestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.StoreFailure(fmt.Errorf("ledger %s %s timed out after %s: %w", method, path, c.timeout, err), true)
		}
		return domain.StoreFailure(fmt.Errorf("ledger %s %s: %w", method, path, err), true)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.StoreFailure(fmt.Errorf("read ledger %s response: %w", path, err), true)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.StoreFailure(fmt.Errorf("decode ledger %s response (status %d): %w", path, resp.StatusCode, err), resp.StatusCode >= 500)
	}
	if !env.Success {
		if env.ErrorKind == "" {
			// Rejected before reaching a ledger operation (auth, malformed request, overload)
			retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
			return domain.StoreFailure(fmt.Errorf("ledger %s %s returned %d: %s", method, path, resp.StatusCode, env.Message), retryable)
		}
		return &domain.Error{
			Kind:       env.ErrorKind,
			Message:    env.Message,
			Balance:    env.Balance,
			TransferID: env.TransferID,
			Timestamp:  env.Timestamp,
			Retryable:  env.Retryable,
		}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return domain.StoreFailure(fmt.Errorf("decode ledger %s payload: %w", path, err), false)
		}
	}
	return nil
}

// CheckCredentials validates a username/password pair
func (c *Client) CheckCredentials(ctx context.Context, username, password string) (*domain.Identity, error) {
	var id domain.Identity
	if err := c.call(ctx, http.MethodPost, "/v1/credentials/validate", CredentialsRequest{Username: username, Password: password}, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// GetBalance returns a user's balance
func (c *Client) GetBalance(ctx context.Context, userID string) (*domain.BalanceView, error) {
	var view domain.BalanceView
	if err := c.call(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID)+"/balance", nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// AccountExists reports whether an account exists
func (c *Client) AccountExists(ctx context.Context, accountID string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	if err := c.call(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(accountID)+"/exists", nil, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

// ResolveAccount returns the owner of an account
func (c *Client) ResolveAccount(ctx context.Context, accountID string) (*domain.Identity, error) {
	var id domain.Identity
	if err := c.call(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(accountID), nil, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// ExecuteTransfer runs one atomic transfer on the ledger
func (c *Client) ExecuteTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	var res domain.TransferResult
	if err := c.call(ctx, http.MethodPost, "/v1/transfers", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetTransfer returns one transfer with both parties
func (c *Client) GetTransfer(ctx context.Context, transferID string) (*domain.TransferDetail, error) {
	var out struct {
		Transfer *domain.TransferDetail `json:"transfer"`
	}
	if err := c.call(ctx, http.MethodGet, "/v1/transfers/"+url.PathEscape(transferID), nil, &out); err != nil {
		return nil, err
	}
	if out.Transfer == nil {
		return nil, domain.StoreFailure(fmt.Errorf("ledger returned no transfer for %s", transferID), false)
	}
	return out.Transfer, nil
}

// ListTransfersForUser returns a user's transfers, newest first
func (c *Client) ListTransfersForUser(ctx context.Context, userID string) ([]domain.TransferDetail, error) {
	var out struct {
		Transfers []domain.TransferDetail `json:"transfers"`
	}
	if err := c.call(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID)+"/transfers", nil, &out); err != nil {
		return nil, err
	}
	if out.Transfers == nil {
		out.Transfers = []domain.TransferDetail{}
	}
	return out.Transfers, nil
}

// GetStats returns aggregate ledger counters
func (c *Client) GetStats(ctx context.Context) (*domain.LedgerStats, error) {
	var stats domain.LedgerStats
	if err := c.call(ctx, http.MethodGet, "/v1/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
