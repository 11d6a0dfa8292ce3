package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultUserAgent      = "newsdesk/0.1"
	DefaultAttemptTimeout = 12 * time.Second
	maxResponseBytes      = 8 << 20
)

// Sender issues a single attempt against one endpoint.
type Sender interface {
	Send(ctx context.Context, token string, ep Endpoint, id string, req Request) (*Response, error)
}

// Ensure Client implements Sender at compile time.
var _ Sender = (*Client)(nil)

// Request is the payload of one logical call. Body is replayed for every
// attempt.
type Request struct {
	Body           []byte
	ContentType    string
	IdempotencyKey string
	// AllowEmpty accepts a 2xx reply with no usable body (e.g. 204).
	AllowEmpty bool
}

// Response is a completed HTTP exchange, whatever its status.
type Response struct {
	Endpoint Endpoint
	Status   int
	Body     []byte
}

// Client talks to the content backend, one attempt at a time.
type Client struct {
	baseURL        *url.URL
	http           *http.Client
	userAgent      string
	attemptTimeout time.Duration
}

// Options configure a Client.
type Options struct {
	BaseURL        string
	UserAgent      string
	AttemptTimeout time.Duration
	HTTPClient     *http.Client
}

// NewClient builds a Client for the backend at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := opts.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Client{
		baseURL:        base,
		http:           httpClient,
		userAgent:      ua,
		attemptTimeout: timeout,
	}, nil
}

// Send performs one attempt bounded by the attempt timeout. Any HTTP status is
// returned as a Response; only transport failures produce an error. When the
// caller's context is cancelled the context error is returned as-is.
func (c *Client) Send(ctx context.Context, token string, ep Endpoint, id string, req Request) (*Response, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	rel, err := ep.Target(id)
	if err != nil {
		return nil, err
	}
	reqURL := joinURL(c.baseURL, rel)

	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, ep.method(), reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if len(req.Body) > 0 {
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, ep, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.transportError(ctx, ep, fmt.Errorf("read response: %w", err))
	}
	return &Response{Endpoint: ep, Status: resp.StatusCode, Body: payload}, nil
}

func (c *Client) transportError(ctx context.Context, ep Endpoint, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	outcome := OutcomeNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		outcome = OutcomeTimeout
	}
	return &TransientError{Endpoint: ep.Label(), Outcome: outcome, Err: fmt.Errorf("execute request: %w", err)}
}

// joinURL appends rel to base, keeping any path prefix the base carries.
func joinURL(base, rel *url.URL) *url.URL {
	u := *base
	u.Path = base.Path + rel.Path
	u.RawPath = ""
	if rel.RawPath != "" {
		u.RawPath = base.Path + rel.RawPath
	}
	u.RawQuery = rel.RawQuery
	return &u
}

func parseBaseURL(base string) (*url.URL, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return nil, fmt.Errorf("backend base url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", base, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", base)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
