package utils

import (
	"errors"
	"net/http"
)

// ErrorKind classifies a failure independently of transport.
type ErrorKind string

const (
	KindBadRequest         ErrorKind = "BAD_REQUEST"
	KindUnauthorized       ErrorKind = "UNAUTHORIZED"
	KindForbidden          ErrorKind = "FORBIDDEN"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindMethodNotSupported ErrorKind = "METHOD_NOT_SUPPORTED"
	KindConflict           ErrorKind = "CONFLICT"
	KindTooManyRequests    ErrorKind = "TOO_MANY_REQUESTS"
	KindInternal           ErrorKind = "INTERNAL_SERVER_ERROR"
)

// HTTPStatus maps the kind onto the response status code.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotSupported:
		return http.StatusMethodNotAllowed
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// KindForStatus is the inverse of HTTPStatus for handlers that only know a status.
func KindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusMethodNotAllowed:
		return KindMethodNotSupported
	case http.StatusConflict:
		return KindConflict
	case http.StatusTooManyRequests:
		return KindTooManyRequests
	default:
		return KindInternal
	}
}

// AppError is a structured failure carrying a kind, a numeric code and a client-safe message.
// Err holds the underlying cause for logs and is never sent to clients.
type AppError struct {
	Kind    ErrorKind
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewError builds an AppError of the given kind.
func NewError(kind ErrorKind, code int, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

// WrapError builds an AppError that keeps err as its cause.
func WrapError(kind ErrorKind, code int, message string, err error) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, Err: err}
}

func BadRequest(code int, message string) *AppError {
	return NewError(KindBadRequest, code, message)
}

func Unauthorized(code int, message string) *AppError {
	return NewError(KindUnauthorized, code, message)
}

func Forbidden(code int, message string) *AppError {
	return NewError(KindForbidden, code, message)
}

func NotFound(code int, message string) *AppError {
	return NewError(KindNotFound, code, message)
}

func Conflict(code int, message string) *AppError {
	return NewError(KindConflict, code, message)
}

// Internal hides err behind a generic message.
func Internal(code int, message string, err error) *AppError {
	return WrapError(KindInternal, code, message, err)
}

// AsAppError returns err as an AppError, wrapping unknown errors as internal.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(50000, "internal server error", err)
}

// KindOf reports the kind of err, or "" for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return AsAppError(err).Kind
}
