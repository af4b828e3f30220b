package common

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindClient Kind = iota + 1
	KindDependency
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindDependency:
		return "dependency"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is the error type every handler renders. Status and Code are what the
// caller sees; Err is kept for errors.Is/As and logs.
type Error struct {
	Kind    Kind
	Status  int
	Code    int
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

func ClientError(status, code int, msg string, err error) *Error {
	return &Error{Kind: KindClient, Status: status, Code: code, Message: msg, Err: err}
}

func BadRequest(code int, msg string, err error) *Error {
	e := ClientError(http.StatusBadRequest, code, msg, err)
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

func NotFound(code int, msg string) *Error {
	return ClientError(http.StatusNotFound, code, msg, ErrNotFound)
}

func Conflict(code int, msg string) *Error {
	return ClientError(http.StatusConflict, code, msg, ErrConflict)
}

func Unauthorized(code int, msg string) *Error {
	return ClientError(http.StatusUnauthorized, code, msg, ErrUnauthorized)
}

// DependencyError wraps a storage or external API failure. The cause is
// exposed as detail.
func DependencyError(code int, msg string, err error) *Error {
	e := &Error{Kind: KindDependency, Status: http.StatusInternalServerError, Code: code, Message: msg, Err: err}
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

func ConfigurationError(code int, msg string, err error) *Error {
	return &Error{Kind: KindConfiguration, Status: http.StatusInternalServerError, Code: code, Message: msg, Err: err}
}

// AsError converts any error into an *Error. Unknown errors become a generic
// dependency failure.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return DependencyError(50000, "Internal server error", err)
}
