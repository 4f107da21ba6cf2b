package core

import "errors"

// Error codes for domain errors delivered to clients.
const (
	ErrCodeAlreadyJoined  = "already_joined"
	ErrCodeNotInRoom      = "not_in_room"
	ErrCodeBadRequest     = "bad_request"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeInvalidMessage = "invalid_message"
	ErrCodeInternal       = "internal"
)

var (
	// ErrNotFound is returned when a connection is not registered.
	ErrNotFound = errors.New("connection not found")
	// ErrInvalidState is returned when a registry operation is out of order.
	ErrInvalidState = errors.New("invalid connection state")

	ErrAlreadyJoined = errors.New("already joined")
	ErrNotInRoom     = errors.New("not in room")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// NewError builds an error for delivery to a client.
func NewError(code, msg string) *CoreError {
	return coreError(code, msg)
}
