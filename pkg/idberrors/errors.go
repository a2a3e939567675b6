package idberrors

import (
	"errors"
	"fmt"
)

// Name identifies a member of the error taxonomy in spec §7.
type Name string

const (
	VersionError            Name = "VersionError"
	InvalidStateError        Name = "InvalidStateError"
	TransactionInactiveError Name = "TransactionInactiveError"
	ReadOnlyError            Name = "ReadOnlyError"
	ConstraintError          Name = "ConstraintError"
	DataError                Name = "DataError"
	DataCloneError           Name = "DataCloneError"
	NotFoundError            Name = "NotFoundError"
	InvalidAccessError       Name = "InvalidAccessError"
	AbortError               Name = "AbortError"
	SyntaxError              Name = "SyntaxError"
	TypeError                Name = "TypeError"
)

// Error is a named engine error. It wraps an optional underlying cause so
// %w chains keep working with errors.Is/errors.As.
type Error struct {
	name    Name
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.name, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.name, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Name returns the taxonomy member this error belongs to.
func (e *Error) Name() Name { return e.name }

// Is lets errors.Is(err, idberrors.New(SomeName, "")) match by name alone,
// which is how callers test "is this a ConstraintError" without caring
// about the message.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.name == e.name
	}
	return false
}

// New builds an Error of the given kind.
func New(name Name, message string) *Error {
	return &Error{name: name, message: message}
}

// Newf builds an Error of the given kind with a formatted message.
func Newf(name Name, format string, args ...any) *Error {
	return &Error{name: name, message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an underlying cause,
// matching the fmt.Errorf("...: %w", err) convention used elsewhere in
// this codebase but attaching a stable taxonomy name for programmatic
// dispatch.
func Wrap(name Name, message string, cause error) *Error {
	return &Error{name: name, message: message, cause: cause}
}

// Of extracts the taxonomy Name from err, if it carries one.
func Of(err error) (Name, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.name, true
	}
	return "", false
}

// Is reports whether err's taxonomy Name equals name.
func Is(err error, name Name) bool {
	n, ok := Of(err)
	return ok && n == name
}
