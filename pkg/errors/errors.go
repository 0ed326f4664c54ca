// Package errors defines the error kinds reported while interpreting a command line
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a fatal session error
type Kind string

const (
	// KindGrammar indicates a token that is not allowed in the current state.
	KindGrammar Kind = "grammar-sequence"
	// KindDuplicateHandle indicates a handle bound to a second input file.
	KindDuplicateHandle Kind = "duplicate-handle"
	// KindUnboundHandle indicates a handle with no associated input file.
	KindUnboundHandle Kind = "unbound-handle"
	// KindMalformedRange indicates a page range token that does not parse.
	KindMalformedRange Kind = "malformed-range"
	// KindPageOutOfRange indicates a page number past the end of its document.
	KindPageOutOfRange Kind = "page-out-of-range"
	// KindPasswordConflict indicates inconsistent or conflicting passwords.
	KindPasswordConflict Kind = "password-conflict"
	// KindOpenFailure indicates an input document could not be opened.
	KindOpenFailure Kind = "open-failure"
	// KindInternal indicates a broken internal invariant.
	KindInternal Kind = "internal"
)

// ErrBadPassword is returned by document openers when a password is rejected
var ErrBadPassword = errors.New("bad password")

// Error describes one fatal error together with the token that caused it.
type Error struct {
	Kind     Kind
	Message  string
	Token    string
	Expected []string
	Err      error
}

// Error formats the error with its kind, offending token and expectations.
func (e *Error) Error() string {
	if e == nil {
		return "error <nil>"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s", e.Kind, e.Message))
	if e.Token != "" {
		b.WriteString(fmt.Sprintf(", here: %s", e.Token))
	}
	if len(e.Expected) > 0 {
		b.WriteString(fmt.Sprintf(" (expected: %s)", strings.Join(e.Expected, ", ")))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error for a token.
func New(kind Kind, token, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Token: token}
}

// Newf formats a message and builds an Error.
func Newf(kind Kind, token, format string, args ...any) *Error {
	return New(kind, token, fmt.Sprintf(format, args...))
}

// Wrap builds an Error around a cause.
func Wrap(kind Kind, token string, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Token: token, Err: err}
}

// WithExpected returns e with the list of acceptable alternatives set.
func (e *Error) WithExpected(expected ...string) *Error {
	e.Expected = expected
	return e
}

// List collects several errors of one pass, e.g. every missing page of a range.
type List []*Error

// Error returns a compact summary of the errors.
func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more)", l[0].Error(), len(l)-1)
	}
}

// Unwrap exposes the member errors to errors.Is and errors.As.
func (l List) Unwrap() []error {
	out := make([]error, len(l))
	for i, e := range l {
		out[i] = e
	}
	return out
}

// KindOf returns the kind of the first Error found in err's chain.
func KindOf(err error) (Kind, bool) {
	if err == nil {
		return "", false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
