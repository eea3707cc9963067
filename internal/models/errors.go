package models

import "net/http"

// AppError is a structured error carried across the host protocol and the local API.
type AppError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"-"`

	cause error
}

func (e *AppError) Error() string { return e.Message }

// Unwrap returns the underlying cause, if any.
func (e *AppError) Unwrap() error { return e.cause }

// Is matches any AppError with the same Code, so wrapped or re-messaged
// errors still compare equal to the sentinels below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap returns a copy of e carrying cause, with the cause's text appended to the message.
func (e *AppError) Wrap(cause error) *AppError {
	msg := e.Message
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &AppError{Code: e.Code, Message: msg, Status: e.Status, cause: cause}
}

// Protocol error sentinels. Messages are the exact strings the extension expects.
var (
	ErrNotFound            = &AppError{Code: "NOT_FOUND", Message: "State file not found", Status: http.StatusNotFound}
	ErrCorrupt             = &AppError{Code: "CORRUPT", Message: "State file corrupt", Status: http.StatusInternalServerError}
	ErrIO                  = &AppError{Code: "IO_ERROR", Message: "I/O error", Status: http.StatusInternalServerError}
	ErrUnsupportedPlatform = &AppError{Code: "UNSUPPORTED_PLATFORM", Message: "Unsupported platform", Status: http.StatusNotImplemented}
	ErrInvalidPayload      = &AppError{Code: "INVALID_PAYLOAD", Message: "Invalid payload", Status: http.StatusBadRequest}
	ErrUnknownMessageType  = &AppError{Code: "UNKNOWN_MESSAGE_TYPE", Message: "Unknown message type", Status: http.StatusBadRequest}
)

// Error constructors for the local API.
var (
	ErrBadRequest = func(msg string) *AppError {
		return &AppError{Code: "BAD_REQUEST", Message: msg, Status: http.StatusBadRequest}
	}
	ErrBlocked = func(msg string) *AppError {
		return &AppError{Code: "BLOCKED", Message: msg, Status: http.StatusConflict}
	}
	ErrUnavailable = func(msg string) *AppError {
		return &AppError{Code: "UNAVAILABLE", Message: msg, Status: http.StatusServiceUnavailable}
	}
	ErrInternal = func(msg string) *AppError {
		return &AppError{Code: "INTERNAL", Message: msg, Status: http.StatusInternalServerError}
	}
)
