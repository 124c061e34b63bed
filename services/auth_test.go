package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/labdesk/v2/internal/auth"
	"github.com/labdesk/v2/internal/labapitest"
)

var adminCreds = auth.Credentials{Username: labapitest.DefaultUsername, Password: labapitest.DefaultPassword}

func TestAuthService_InitialState(t *testing.T) {
	assert.Equal(t, auth.Anonymous, NewAuthService("http://unused", &memTokenStore{}).State())
	assert.Equal(t, auth.Authenticated, NewAuthService("http://unused", &memTokenStore{token: "stale"}).State())
}

func TestAuthService_LoginLogoutLogin(t *testing.T) {
	s := newStack(t, false)
	ctx := context.Background()

	var states []auth.State
	unsubscribe := s.session.Subscribe(func(st auth.State) { states = append(states, st) })
	defer unsubscribe()

	require.NoError(t, s.session.Login(ctx, adminCreds))
	assert.True(t, s.session.IsAuthenticated())
	first := s.tokens.token
	assert.NotEmpty(t, first)

	s.session.Logout()
	assert.False(t, s.session.IsAuthenticated())
	assert.Empty(t, s.tokens.token)

	require.NoError(t, s.session.Login(ctx, adminCreds))
	assert.True(t, s.session.IsAuthenticated())
	assert.NotEmpty(t, s.tokens.token)

	_, err := s.client.Call(ctx, Request{Method: http.MethodGet, Path: reservationsPath})
	require.NoError(t, err)

	assert.Equal(t, []auth.State{auth.Authenticated, auth.Anonymous, auth.Authenticated}, states)
}

func TestAuthService_InvalidCredentials(t *testing.T) {
	s := newStack(t, false)
	ctx := context.Background()

	err := s.session.Login(ctx, auth.Credentials{Username: "admin", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.False(t, s.session.IsAuthenticated())
	assert.Empty(t, s.tokens.token)

	before := s.api.Requests()
	err = s.session.Login(ctx, auth.Credentials{Username: "", Password: "x"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, before, s.api.Requests())
}

func TestAuthService_FailedLoginKeepsExistingToken(t *testing.T) {
	s := newStack(t, true)
	token := s.tokens.token

	err := s.session.Login(context.Background(), auth.Credentials{Username: "admin", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, token, s.tokens.token)
	assert.True(t, s.session.IsAuthenticated())
}

func TestAuthService_ServiceUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"no token in body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html></html>`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			tokens := &memTokenStore{}
			session := NewAuthService(srv.URL, tokens)
			err := session.Login(context.Background(), adminCreds)
			assert.ErrorIs(t, err, ErrServiceUnavailable)
			assert.False(t, session.IsAuthenticated())
			assert.Zero(t, tokens.sets)
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		session := NewAuthService(url, &memTokenStore{})
		err := session.Login(context.Background(), adminCreds)
		assert.ErrorIs(t, err, ErrServiceUnavailable)
		var transportErr *TransportError
		assert.ErrorAs(t, err, &transportErr)
	})
}

func TestAuthService_LoginSendsForm(t *testing.T) {
	forms := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "/auth/token", r.URL.Path)
		assert.Equal(t, "admin", r.PostForm.Get("username"))
		assert.Equal(t, "admin123", r.PostForm.Get("password"))
		forms <- r.Header.Clone()
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"bearer"}`))
	}))
	defer srv.Close()

	tokens := &memTokenStore{}
	require.NoError(t, NewAuthService(srv.URL, tokens).Login(context.Background(), adminCreds))
	assert.Equal(t, "abc", tokens.token)

	header := <-forms
	assert.Equal(t, "application/x-www-form-urlencoded", header.Get("Content-Type"))
	assert.Empty(t, header.Get("Authorization"))
}

func TestAuthService_UnauthorizedTearsDown(t *testing.T) {
	s := newStack(t, true)
	ctx := context.Background()

	var cleared int
	s.session.OnTeardown(func() { cleared++ })
	var states []auth.State
	s.session.Subscribe(func(st auth.State) { states = append(states, st) })

	s.api.ExpireTokens()
	_, err := s.client.Call(ctx, Request{Method: http.MethodGet, Path: reservationsPath})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, s.session.IsAuthenticated())
	assert.Empty(t, s.tokens.token)
	assert.Equal(t, 1, cleared)
	assert.Equal(t, []auth.State{auth.Anonymous}, states)

	// The next call fails fast without reaching the server.
	before := s.api.Requests()
	_, err = s.client.Call(ctx, Request{Method: http.MethodGet, Path: reservationsPath})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, before, s.api.Requests())
	assert.Equal(t, 1, cleared)
	assert.Len(t, states, 1)
}

func TestAuthService_LogoutIdempotent(t *testing.T) {
	s := newStack(t, true)

	var cleared, notified int
	s.session.OnTeardown(func() { cleared++ })
	s.session.Subscribe(func(auth.State) { notified++ })

	s.session.Logout()
	s.session.Logout()
	s.session.HandleUnauthorized()

	assert.False(t, s.session.IsAuthenticated())
	assert.Equal(t, 1, cleared)
	assert.Equal(t, 1, notified)
}

func TestAuthService_Unsubscribe(t *testing.T) {
	s := newStack(t, true)
	var notified int
	unsubscribe := s.session.Subscribe(func(auth.State) { notified++ })
	unsubscribe()

	s.session.Logout()
	assert.Zero(t, notified)
}

func TestAuthService_Register(t *testing.T) {
	s := newStack(t, false)
	ctx := context.Background()

	reg := auth.Registration{Username: "lucia", Password: "s3cret!", FullName: "Lucía Gómez", Email: "lucia@lab.test"}
	require.NoError(t, s.session.Register(ctx, reg))
	assert.True(t, s.session.IsAuthenticated())

	s.session.Logout()
	require.NoError(t, s.session.Login(ctx, auth.Credentials{Username: "lucia", Password: "s3cret!"}))

	err := s.session.Register(ctx, reg)
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusBadRequest, remoteErr.Status)
	assert.Equal(t, "El nombre de usuario ya existe", remoteErr.Detail)
}

func TestAuthService_Validate(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		s := newStack(t, true)
		require.NoError(t, s.session.Validate(context.Background(), s.client))
		assert.True(t, s.session.IsAuthenticated())
	})

	t.Run("stale token", func(t *testing.T) {
		s := newStack(t, true)
		s.api.ExpireTokens()
		assert.ErrorIs(t, s.session.Validate(context.Background(), s.client), ErrUnauthorized)
		assert.False(t, s.session.IsAuthenticated())
	})

	t.Run("server error keeps session", func(t *testing.T) {
		s := newStack(t, true)
		s.api.Fail(http.StatusServiceUnavailable, "maintenance")
		var remoteErr *RemoteError
		assert.ErrorAs(t, s.session.Validate(context.Background(), s.client), &remoteErr)
		assert.True(t, s.session.IsAuthenticated())
	})

	t.Run("anonymous", func(t *testing.T) {
		s := newStack(t, false)
		assert.ErrorIs(t, s.session.Validate(context.Background(), s.client), ErrUnauthorized)
		assert.Zero(t, s.api.Requests())
	})
}

// unclearableStore keeps its token when asked to clear it.
type unclearableStore struct {
	memTokenStore
}

func (s *unclearableStore) Clear() error {
	return errors.New("disk is read-only")
}

func TestAuthService_LogoutWithUnclearableStoreBlocksCalls(t *testing.T) {
	api := labapitest.New()
	t.Cleanup(api.Close)

	tokens := &unclearableStore{}
	tokens.token = api.Token(labapitest.DefaultUsername)
	client := NewAPIClient(api.URL, tokens)
	session := NewAuthService(api.URL, tokens)
	session.Bind(client)

	session.Logout()
	require.False(t, session.IsAuthenticated())
	token, _ := tokens.Get()
	require.NotEmpty(t, token)

	before := api.Requests()
	_, err := client.Call(context.Background(), Request{Method: http.MethodGet, Path: reservationsPath})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, before, api.Requests())
}

func TestAuthService_DoesNotLogCredentials(t *testing.T) {
	api := labapitest.New()
	t.Cleanup(api.Close)

	core, logs := observer.New(zap.DebugLevel)
	session := NewAuthService(api.URL, &memTokenStore{}, WithAuthLogger(zap.New(core)))
	ctx := context.Background()

	require.ErrorIs(t, session.Login(ctx, auth.Credentials{Username: "mallory", Password: "hunter2"}), ErrInvalidCredentials)
	require.NoError(t, session.Login(ctx, adminCreds))
	session.Logout()
	require.NoError(t, session.Register(ctx, auth.Registration{Username: "newcomer", Password: "s3cret-pass"}))

	require.NotZero(t, logs.Len())
	for _, entry := range logs.All() {
		for key, value := range entry.ContextMap() {
			text, _ := value.(string)
			for _, secret := range []string{"mallory", "hunter2", labapitest.DefaultUsername, labapitest.DefaultPassword, "newcomer", "s3cret-pass"} {
				assert.NotEqual(t, secret, text, "%q logged under %q in %q", secret, key, entry.Message)
			}
		}
	}
}
