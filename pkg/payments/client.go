// Package payments is a client for the external credit verification service
// that checks access tokens and debits credits after a paid call.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultTimeout = 15 * time.Second

// Client verifies and settles access tokens.
type Client interface {
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error)
	Settle(ctx context.Context, req SettleRequest) (*SettleResponse, error)
}

// VerifyRequest asks whether a token can pay for Cost credits.
type VerifyRequest struct {
	Token    string `json:"token"`
	PlanID   string `json:"planId"`
	AgentID  string `json:"agentId"`
	Endpoint string `json:"endpoint,omitempty"`
	Cost     int    `json:"cost"`
}

// VerifyResponse is the verifier's answer.
type VerifyResponse struct {
	IsValid bool   `json:"isValid"`
	Balance int    `json:"balance"`
	Reason  string `json:"reason,omitempty"`
}

// SettleRequest debits Cost credits from a previously verified token.
type SettleRequest struct {
	Token    string `json:"token"`
	PlanID   string `json:"planId"`
	AgentID  string `json:"agentId"`
	Endpoint string `json:"endpoint,omitempty"`
	Cost     int    `json:"cost"`
}

// SettleResponse reports the debit.
type SettleResponse struct {
	Success        bool   `json:"success"`
	CreditsDebited int    `json:"creditsDebited"`
	Reference      string `json:"reference,omitempty"`
	Error          string `json:"error,omitempty"`
}

// StatusError reports a non-2xx response from the verifier.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("payments: unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Option configures the client.
type Option func(*httpClient)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a verifier client rooted at baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	var resp VerifyResponse
	if err := c.post(ctx, "/verify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) Settle(ctx context.Context, req SettleRequest) (*SettleResponse, error) {
	var resp SettleResponse
	if err := c.post(ctx, "/settle", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return eris.Wrap(err, "payments: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "payments: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "payments: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "payments: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 256 {
			msg = msg[:256]
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "payments: unmarshal response")
	}
	return nil
}
