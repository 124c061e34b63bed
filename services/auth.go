package services

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
	"sync"

	"go.uber.org/zap"

	"github.com/labdesk/v2/internal/auth"
)

// AuthService is the session controller. It owns the authenticated flag,
// performs login and registration against the token endpoints, and tears the
// session down on logout or when any call comes back Unauthorized.
type AuthService struct {
	baseURL string
	tokens  TokenStore
	client  *http.Client
	log     *zap.Logger

	mu        sync.Mutex
	state     auth.State
	clearers  []func()
	listeners map[int]func(auth.State)
	nextID    int
}

var _ auth.Service = (*AuthService)(nil)

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

func WithAuthHTTPClient(client *http.Client) AuthOption {
	return func(s *AuthService) {
		if client != nil {
			s.client = client
		}
	}
}

func WithAuthLogger(log *zap.Logger) AuthOption {
	return func(s *AuthService) {
		if log != nil {
			s.log = log
		}
	}
}

// NewAuthService starts Authenticated when tokens already holds a token. The
// token is trusted until a call is rejected; see Validate for an eager check.
func NewAuthService(baseURL string, tokens TokenStore, opts ...AuthOption) *AuthService {
	s := &AuthService{
		baseURL:   strings.TrimRight(baseURL, "/"),
		tokens:    tokens,
		client:    &http.Client{},
		log:       zap.NewNop(),
		state:     auth.Anonymous,
		listeners: make(map[int]func(auth.State)),
	}
	for _, opt := range opts {
		opt(s)
	}

	token, err := tokens.Get()
	if err != nil {
		s.log.Warn("token store unreadable, starting anonymous", zap.Error(err))
	}
	if token != "" {
		s.state = auth.Authenticated
	}
	s.log.Info("session initialised", zap.Stringer("state", s.state))
	return s
}

// Bind wires the session to the dispatcher's Unauthorized reports and makes
// the dispatcher refuse calls while the session is anonymous, even if the
// token store still holds a token it failed to clear.
func (s *AuthService) Bind(api *APIClient) {
	api.OnUnauthorized(s.HandleUnauthorized)
	api.RequireSession(s.IsAuthenticated)
}

func (s *AuthService) State() auth.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *AuthService) IsAuthenticated() bool {
	return s.State() == auth.Authenticated
}

// Subscribe calls fn after every state transition.
func (s *AuthService) Subscribe(fn func(auth.State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// OnTeardown registers fn to drop in-memory remote data when the session ends.
func (s *AuthService) OnTeardown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearers = append(s.clearers, fn)
}

// Login exchanges credentials for a token with an unauthenticated,
// form-encoded POST to /auth/token. It returns ErrInvalidCredentials for
// 400/401 and ErrServiceUnavailable for anything else that is not a token. On
// failure the stored token is left as it was.
func (s *AuthService) Login(ctx context.Context, creds auth.Credentials) error {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return ErrInvalidCredentials
	}

	form := url.Values{}
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, body, err := s.do(req)
	if err != nil {
		s.log.Warn("login request failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		s.log.Info("login rejected", zap.Int("status", resp.StatusCode))
		return ErrInvalidCredentials
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		s.log.Warn("login failed", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	token, err := accessToken(body)
	if err != nil {
		s.log.Warn("login response without token", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if err := s.establish(token); err != nil {
		return err
	}
	s.log.Info("login successful")
	return nil
}

// Register creates an API account and, like Login, starts a session with the
// returned token. Rejections such as a taken username come back as
// *RemoteError with the server's detail.
func (s *AuthService) Register(ctx context.Context, reg auth.Registration) error {
	if strings.TrimSpace(reg.Username) == "" || reg.Password == "" {
		return &RemoteError{Status: http.StatusBadRequest, Detail: "username and password are required"}
	}

	data, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("failed to marshal registration: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/register", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, body, err := s.do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{Status: resp.StatusCode, Detail: errorDetail(body, resp.StatusCode)}
	}

	token, err := accessToken(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if err := s.establish(token); err != nil {
		return err
	}
	s.log.Info("registration successful")
	return nil
}

// Logout ends the session. Calling it while anonymous does nothing.
func (s *AuthService) Logout() {
	s.teardown("logout")
}

// HandleUnauthorized ends the session after the server rejected the token.
func (s *AuthService) HandleUnauthorized() {
	s.teardown("unauthorized")
}

// Validate issues one cheap authenticated call. A rejected token ends the
// session through the dispatcher's Unauthorized report; transport and server
// errors leave the session as it is.
func (s *AuthService) Validate(ctx context.Context, api *APIClient) error {
	if !s.IsAuthenticated() {
		return ErrUnauthorized
	}
	_, err := api.Call(ctx, Request{Method: http.MethodGet, Path: reservationsPath})
	if err != nil && !errors.Is(err, ErrUnauthorized) {
		s.log.Warn("session validation inconclusive", zap.Error(err))
	}
	return err
}

func (s *AuthService) establish(token string) error {
	s.mu.Lock()
	if err := s.tokens.Set(token); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to save token: %w", err)
	}
	changed := s.state != auth.Authenticated
	s.state = auth.Authenticated
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if changed {
		notify(listeners, auth.Authenticated)
	}
	return nil
}

func (s *AuthService) teardown(reason string) {
	s.mu.Lock()
	if s.state == auth.Anonymous {
		s.mu.Unlock()
		return
	}
	if err := s.tokens.Clear(); err != nil {
		s.log.Error("failed to clear token", zap.Error(err))
	}
	s.state = auth.Anonymous
	clearers := append([]func(){}, s.clearers...)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	s.log.Info("session ended", zap.String("reason", reason))
	for _, fn := range clearers {
		fn()
	}
	notify(listeners, auth.Anonymous)
}

func (s *AuthService) snapshotListeners() []func(auth.State) {
	listeners := make([]func(auth.State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	return listeners
}

func notify(listeners []func(auth.State), state auth.State) {
	for _, fn := range listeners {
		fn(state)
	}
}

func (s *AuthService) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, &TransportError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &TransportError{Op: "read response " + req.URL.Path, Err: err}
	}
	return resp, body, nil
}

func accessToken(body []byte) (string, error) {
	var tokenResp auth.TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", errors.New("token response has no access_token")
	}
	return tokenResp.AccessToken, nil
}
