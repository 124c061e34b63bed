package services

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/labdesk/v2/internal/types"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"unauthorized", ErrUnauthorized, ""},
		{"wrapped unauthorized", fmt.Errorf("list: %w", ErrUnauthorized), ""},
		{"invalid credentials", ErrInvalidCredentials, "invalid username or password"},
		{"remote", &RemoteError{Status: 404, Detail: "Reserva no encontrada o sin permisos"}, "Reserva no encontrada o sin permisos"},
		{"transport", &TransportError{Op: "GET /x", Err: &net.OpError{Op: "dial", Err: errors.New("refused")}}, connectivityMessage},
		{"service unavailable", fmt.Errorf("%w: status 502", ErrServiceUnavailable), connectivityMessage},
		{"validation", &types.ValidationError{Problems: []string{"name is required"}}, "invalid input: name is required"},
		{"other", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("call: %w", &TransportError{Op: "GET /x", Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "call: GET /x: connection reset", err.Error())
}
