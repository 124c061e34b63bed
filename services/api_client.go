package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const userAgent = "labdesk/2"

// TokenStore is the single persisted slot holding the bearer token.
type TokenStore interface {
	// Get returns the token, or "" when none is stored.
	Get() (string, error)
	Set(token string) error
	Clear() error
}

// Request describes an outgoing authorized call.
type Request struct {
	Method string
	// Path is relative to the API base URL, e.g. "/reservations/42".
	Path         string
	Query        url.Values
	Body         any
	RequiresBody bool
}

// Result is a successful (2xx) response.
type Result struct {
	Status int
	Body   json.RawMessage
}

// Empty reports whether the response carried no payload, e.g. a 204 from a
// DELETE.
func (r *Result) Empty() bool {
	return len(bytes.TrimSpace(r.Body)) == 0
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (r *Result) Decode(v any) error {
	if r.Empty() {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse response JSON: %w", err)
	}
	return nil
}

// APIClient is the only component that attaches the Authorization header. It
// classifies every response and reports 401s to its unauthorized handlers; it
// never changes session state itself.
type APIClient struct {
	BaseURL string

	tokens    TokenStore
	client    *http.Client
	log       *zap.Logger
	requestID func() string

	mu             sync.RWMutex
	onUnauthorized []func()
	authenticated  func() bool
}

// Option configures an APIClient.
type Option func(*APIClient)

func WithHTTPClient(client *http.Client) Option {
	return func(c *APIClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithTimeout bounds each call; zero keeps the default of no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *APIClient) {
		if d > 0 {
			clone := *c.client
			clone.Timeout = d
			c.client = &clone
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *APIClient) {
		if log != nil {
			c.log = log
		}
	}
}

func NewAPIClient(baseURL string, tokens TokenStore, opts ...Option) *APIClient {
	c := &APIClient{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		tokens:    tokens,
		client:    &http.Client{},
		log:       zap.NewNop(),
		requestID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnUnauthorized registers fn to run whenever a call is classified as
// Unauthorized, before Call returns.
func (c *APIClient) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = append(c.onUnauthorized, fn)
}

// RequireSession makes Call fail with ErrUnauthorized, without a request,
// whenever authenticated reports false.
func (c *APIClient) RequireSession(authenticated func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = authenticated
}

func (c *APIClient) sessionActive() bool {
	c.mu.RLock()
	authenticated := c.authenticated
	c.mu.RUnlock()
	return authenticated == nil || authenticated()
}

func (c *APIClient) reportUnauthorized() {
	c.mu.RLock()
	handlers := append([]func(){}, c.onUnauthorized...)
	c.mu.RUnlock()
	for _, fn := range handlers {
		fn()
	}
}

// Call performs req exactly once. Errors are ErrUnauthorized, *RemoteError or
// *TransportError; a missing token fails with ErrUnauthorized before any
// network activity.
func (c *APIClient) Call(ctx context.Context, req Request) (*Result, error) {
	if !c.sessionActive() {
		c.log.Debug("session anonymous, refusing call", zap.String("method", req.Method), zap.String("path", req.Path))
		return nil, ErrUnauthorized
	}
	token, err := c.tokens.Get()
	if err != nil {
		c.log.Warn("token store unreadable", zap.Error(err))
	}
	if token == "" {
		c.log.Debug("no token, refusing call", zap.String("method", req.Method), zap.String("path", req.Path))
		c.reportUnauthorized()
		return nil, ErrUnauthorized
	}

	httpReq, err := c.prepareRequest(ctx, req, token)
	if err != nil {
		return nil, err
	}

	requestID := httpReq.Header.Get("X-Request-ID")
	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.log.Warn("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, &TransportError{Op: req.Method + " " + req.Path, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read response " + req.Path, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.log.Info("server rejected token", zap.String("path", req.Path), zap.String("request_id", requestID))
		c.reportUnauthorized()
		return nil, ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Status: resp.StatusCode, Detail: errorDetail(body, resp.StatusCode)}
	}

	result := &Result{Status: resp.StatusCode, Body: body}
	if !result.Empty() && !json.Valid(body) {
		return nil, &RemoteError{Status: resp.StatusCode, Detail: "malformed JSON response"}
	}
	return result, nil
}

// prepareRequest creates a new HTTP request with the bearer token and, for
// calls that carry one, a JSON body.
func (c *APIClient) prepareRequest(ctx context.Context, req Request, token string) (*http.Request, error) {
	endpoint := c.BaseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.RequiresBody {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request data: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+token)
	if req.RequiresBody {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("X-Request-ID", c.requestID())
	return httpReq, nil
}

// errorDetail extracts the server's message from an error body. FastAPI puts
// it under "detail", either a string or a list of validation problems.
func errorDetail(body []byte, status int) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"detail", "message", "error"} {
			raw, ok := payload[key]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && s != "" {
				return s
			}
			var problems []struct {
				Loc []any  `json:"loc"`
				Msg string `json:"msg"`
			}
			if err := json.Unmarshal(raw, &problems); err == nil && len(problems) > 0 {
				msgs := make([]string, 0, len(problems))
				for _, p := range problems {
					if len(p.Loc) > 0 {
						msgs = append(msgs, fmt.Sprintf("%v: %s", p.Loc[len(p.Loc)-1], p.Msg))
					} else {
						msgs = append(msgs, p.Msg)
					}
				}
				return strings.Join(msgs, "; ")
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}
