// Package errors carries the typed error codes shared by the storefront
// services and the HTTP layer.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"
)

type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeStateConflict       Code = "STATE_CONFLICT"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeInternal            Code = "INTERNAL_ERROR"
	CodeDependency          Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a code surfaces to callers.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

// ClientFacing reports whether the error's own message may be shown as is.
func (m Metadata) ClientFacing() bool {
	return m.HTTPStatus < http.StatusInternalServerError
}

func clientError(status int, msg string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: msg, DetailsAllowed: details}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:          clientError(http.StatusBadRequest, "validation failed", true),
	CodeUnauthorized:        clientError(http.StatusUnauthorized, "authentication required", false),
	CodeForbidden:           clientError(http.StatusForbidden, "access denied", false),
	CodeNotFound:            clientError(http.StatusNotFound, "resource not found", false),
	CodeConflict:            clientError(http.StatusConflict, "conflict detected", false),
	CodeStateConflict:       clientError(http.StatusUnprocessableEntity, "state transition disallowed", true),
	CodeInsufficientBalance: clientError(http.StatusPaymentRequired, "insufficient LuckCoins balance", true),
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	meta, ok := metadataByCode[code]
	if !ok {
		return metadataByCode[CodeInternal]
	}
	return meta
}

// Error is a coded error with an optional cause and public details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to err. A nil err degrades to New.
func Wrap(code Code, err error, message string) *Error {
	e := New(code, message)
	e.cause = err
	return e
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err == nil || !stdErrors.As(err, &typed) {
		return nil
	}
	return typed
}

// Is reports whether the outermost coded error in err's chain has code.
func Is(err error, code Code) bool {
	return As(err).codeOr("") == code
}

// CodeOf returns err's code, CodeInternal for untyped errors.
func CodeOf(err error) Code {
	return As(err).codeOr(CodeInternal)
}

// PublicText is the message safe to show an end user for err.
func PublicText(err error) string {
	typed := As(err)
	meta := MetadataFor(typed.codeOr(CodeInternal))
	if typed == nil || !meta.ClientFacing() || strings.TrimSpace(typed.message) == "" {
		return meta.PublicMessage
	}
	return typed.message
}

func (e *Error) codeOr(fallback Code) Code {
	if e == nil {
		return fallback
	}
	return e.code
}
