// Package apperr classifies failures that reach the user.
package apperr

import (
	"errors"
	"strings"
)

// Kind is a failure class.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindStaging           Kind = "staging"
	KindFileMissing       Kind = "file_missing"
	KindSendFailure       Kind = "send_failure"
	KindStore             Kind = "store"
	KindUnsupportedFormat Kind = "unsupported_format"
)

// Error carries a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New wraps err with kind and op. A nil err is allowed for pure validation failures.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Code is picked up by the handler summary as err_code.
func (e *Error) Code() string { return string(e.Kind) }

// KindOf returns the kind of the first *Error in the chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
