package core

import "errors"

// Error codes for domain errors surfaced to clients.
const (
	ErrCodeRoomNotFound       = "room_not_found"
	ErrCodeNotMember          = "not_member"
	ErrCodeInvalidCommand     = "invalid_command"
	ErrCodeHandshakeRejected  = "handshake_rejected"
	ErrCodeStorageUnavailable = "storage_unavailable"
)

// ErrRoomNotFound is returned by the membership index for unknown rooms.
var ErrRoomNotFound = errors.New("room not found")

// Error wraps a stable code and a human-readable message. Retryable marks
// failures the client may repeat unchanged, such as a degraded store.
type Error struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	return e.Message
}

func coreError(code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func retryableError(code, msg string) *Error {
	return &Error{Code: code, Message: msg, Retryable: true}
}
