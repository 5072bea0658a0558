package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CallerHeader carries the caller identity in header auth mode.
const CallerHeader = "X-Caller"

// APIError is the structured error payload returned by the daemon. Kind is
// one of the protocol's stable error kinds (not_found, already_exists,
// invalid_argument, not_authorized, wrong_state, expired, transfer_failed);
// Reason is the stable human-readable string.
type APIError struct {
	Status int
	Kind   string
	Reason string
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("trustplane: %s (HTTP %d)", e.Reason, e.Status)
	}
	return fmt.Sprintf("trustplane: %s (%s)", e.Reason, e.Kind)
}

// IsKind reports whether err is an APIError with the given kind.
func IsKind(err error, kind string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// Client is the TrustPlane SDK entry point.
type Client struct {
	baseURL    string
	httpClient *http.Client

	bearerToken string
	caller      string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a caller token to every request (jwt auth mode).
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithCaller sets the caller identity sent as the X-Caller header (header
// auth mode).
func WithCaller(caller string) Option {
	return func(c *Client) error {
		c.caller = caller
		return nil
	}
}

// WithTimeout sets the request timeout on the default http.Client. Ignored
// when WithHTTPClient is also given.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// New creates a Client for the daemon at baseURL.
//
//	c, err := client.New("http://localhost:8080",
//	    client.WithCaller("acct:alice"),
//	)
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("client: base URL required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Healthz probes the daemon's health endpoint.
func (c *Client) Healthz(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// do executes one API call: it JSON-encodes reqBody when non-nil, attaches
// the configured identity, and decodes the response into out when non-nil.
// Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, reqBody, out any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	if c.caller != "" {
		req.Header.Set(CallerHeader, c.caller)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			apiErr.Reason = payload.Error
			apiErr.Kind = payload.Kind
		} else {
			apiErr.Reason = strings.TrimSpace(string(body))
		}
		return apiErr
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, reqBody, out any) error {
	return c.do(ctx, http.MethodPost, path, reqBody, out)
}

// pathEscape keeps identities with reserved characters (acct:alice) intact
// as single path segments.
func pathEscape(s string) string { return url.PathEscape(s) }
