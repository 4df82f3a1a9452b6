// Package gameerr classifies the ways an intent can be rejected so that the
// transports can map them without knowing every rule.
package gameerr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindRule
	KindConflict
	KindNotFound
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRule:
		return "rule_violation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error is a rejection with a stable reason code. Sentinels are declared as
// package vars and compared with errors.Is.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(k Kind, code, msg string) *Error {
	return &Error{Kind: k, Code: code, Message: msg}
}

func Validation(code, msg string) *Error { return newError(KindValidation, code, msg) }
func Rule(code, msg string) *Error       { return newError(KindRule, code, msg) }
func Conflict(code, msg string) *Error   { return newError(KindConflict, code, msg) }
func NotFound(code, msg string) *Error   { return newError(KindNotFound, code, msg) }
func Forbidden(code, msg string) *Error  { return newError(KindForbidden, code, msg) }
func Internal(code, msg string) *Error   { return newError(KindInternal, code, msg) }

// KindOf reports the kind of the first *Error in err's chain. Errors that
// carry no classification are internal.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}

// CodeOf returns the reason code of err, or "Internal".
func CodeOf(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return "Internal"
}

// HTTPStatus maps err to the status code the REST handlers answer with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindRule:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
