package services

import (
	"errors"
	"fmt"

	"github.com/labdesk/v2/internal/types"
)

var (
	// ErrInvalidCredentials is returned by Login when the token endpoint
	// rejects the username/password pair.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrServiceUnavailable is returned by Login for any other failure.
	ErrServiceUnavailable = errors.New("authentication service unavailable")
	// ErrUnauthorized means the token is missing, expired or rejected. It is
	// never shown as a form error: the session is torn down instead.
	ErrUnauthorized = errors.New("unauthorized")
)

// RemoteError is a non-2xx, non-401 response from the API.
type RemoteError struct {
	Status int
	Detail string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Status, e.Detail)
}

// TransportError means no response was received.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

const connectivityMessage = "Cannot reach the reservation server. Check your connection and try again."

// UserMessage returns the text a view shows for err. Remote details and
// credential errors are shown verbatim; transport failures get a generic
// message. It returns "" for ErrUnauthorized, which views must route to the
// login screen instead.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var remoteErr *RemoteError
	var transportErr *TransportError
	var validationErr *types.ValidationError
	switch {
	case errors.Is(err, ErrUnauthorized):
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return ErrInvalidCredentials.Error()
	case errors.As(err, &remoteErr):
		return remoteErr.Detail
	case errors.As(err, &transportErr), errors.Is(err, ErrServiceUnavailable):
		return connectivityMessage
	case errors.As(err, &validationErr):
		return validationErr.Error()
	default:
		return err.Error()
	}
}
