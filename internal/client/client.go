// Package client implements the REST client for the MyCafe backend.
//
// The backend is the single source of truth; this client is the only path
// the floor core uses to read or mutate it. Calls are bounded by a fixed
// request timeout and are never retried automatically: retrying a mutating
// call risks duplication when the first attempt succeeded server-side.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"

	"mycafe/internal/core/apperror"
	"mycafe/internal/core/appctx"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 15 * time.Second

const clientHeader = "MyCafe-Floor/1.0"

// TokenSource supplies the bearer token for outbound calls.
// *session.Session satisfies this.
type TokenSource interface {
	Token() (string, error)
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:8000/api/v1".
	BaseURL string

	// Tokens supplies the bearer token. Optional for unauthenticated
	// endpoints (login against the stub).
	Tokens TokenSource

	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration
}

// Client is a MyCafe backend client. Safe for concurrent use.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

// New creates a backend client. The transport transparently negotiates
// gzip so large invoice listings stay cheap on slow links.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("client: base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("client: invalid base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: base,
		tokens:  cfg.Tokens,
		http: &http.Client{
			Timeout:   timeout,
			Transport: gzhttp.Transport(http.DefaultTransport),
		},
	}, nil
}

// errorBody matches both the FastAPI-style {"detail": ...} shape and the
// structured {"code","message"} shape the stub emits.
type errorBody struct {
	Detail  string         `json:"detail"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func (b errorBody) text() string {
	if b.Detail != "" {
		return b.Detail
	}
	return b.Message
}

// do executes one request. in is marshaled as JSON when non-nil; out is
// unmarshaled from the response body when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return apperror.NewInternal(fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("build request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-MyCafe-Client", clientHeader)
	req.Header.Set("X-Client-Time", time.Now().UTC().Format(time.RFC3339))
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if rid := appctx.GetRequestID(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	} else {
		req.Header.Set("X-Request-ID", uuid.New().String())
	}

	// Mutations carry an idempotency key so an accidental duplicate
	// submission (double click, client retry by the operator) is safe
	// for backends that honor it.
	if method != http.MethodGet {
		req.Header.Set("X-Idempotency-Key", uuid.New().String())
	}

	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return apperror.NewUnauthorized("no active session").WithCause(err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return apperror.NewTimeout(method+" "+path, err)
		}
		return apperror.NewSync(method+" "+path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return apperror.NewSync(method+" "+path, err)
	}

	if resp.StatusCode >= 400 {
		return c.statusError(resp.StatusCode, raw, method, path)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return apperror.NewSync(method+" "+path, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

func (c *Client) statusError(status int, raw []byte, method, path string) error {
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	detail := eb.text()

	switch {
	case status == http.StatusUnauthorized:
		if detail == "" {
			detail = "authentication required"
		}
		return apperror.NewUnauthorized(detail)
	case status == http.StatusForbidden:
		if detail == "" {
			detail = "not permitted"
		}
		return apperror.NewForbidden(detail)
	case status == http.StatusNotFound:
		return apperror.NewNotFound("resource", method+" "+path)
	default:
		// Server-rejected write or read: surface the server detail
		// verbatim when available.
		return apperror.NewMutation(detail, fmt.Errorf("%s %s: status %d", method, path, status)).
			WithDetail("status", status)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
