package auth

import "context"

// State is the client's belief about whether it holds a usable credential.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Service defines the session operations the views depend on.
type Service interface {
	Login(ctx context.Context, creds Credentials) error
	Register(ctx context.Context, reg Registration) error
	Logout()
	IsAuthenticated() bool
	State() State
	Subscribe(fn func(State)) (unsubscribe func())
}

// Credentials contains login request data. It is never persisted.
type Credentials struct {
	Username string
	Password string
}

// Registration creates a new API account.
type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
}

// TokenResponse is the body returned by the token and register endpoints.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
