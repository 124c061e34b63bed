package services

import (
	"sync"
	"testing"

	"github.com/labdesk/v2/internal/labapitest"
)

type memTokenStore struct {
	mu    sync.Mutex
	token string
	sets  int
}

func (s *memTokenStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *memTokenStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.sets++
	return nil
}

func (s *memTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

type stack struct {
	api     *labapitest.Server
	tokens  *memTokenStore
	client  *APIClient
	session *AuthService
}

// newStack wires a session and dispatcher to a fresh fake API. When loggedIn
// is set the store starts with a valid token.
func newStack(t *testing.T, loggedIn bool) *stack {
	t.Helper()
	api := labapitest.New()
	t.Cleanup(api.Close)

	tokens := &memTokenStore{}
	if loggedIn {
		tokens.token = api.Token(labapitest.DefaultUsername)
	}
	client := NewAPIClient(api.URL, tokens)
	session := NewAuthService(api.URL, tokens)
	session.Bind(client)
	return &stack{api: api, tokens: tokens, client: client, session: session}
}
