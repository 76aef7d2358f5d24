package types

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for retry and status decisions.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindTransient
	KindTerminal
	KindPersistence
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
	ErrTransient              = errors.New("transient external error")
	ErrTerminal               = errors.New("terminal external error")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	// ErrStatusConflict is returned by a conditional transition whose expected status no longer matches.
	ErrStatusConflict = errors.New("transfer status changed concurrently")

	// ErrAlreadyProcessed is returned by a destination chain when the attested message was already received.
	ErrAlreadyProcessed = errors.New("message already processed on destination")
)

var kindSentinels = map[Kind]error{
	KindValidation:  ErrValidation,
	KindNotFound:    ErrNotFound,
	KindTransient:   ErrTransient,
	KindTerminal:    ErrTerminal,
	KindPersistence: ErrPersistenceUnavailable,
}

// Error carries a Kind alongside a human readable message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Err.Error())
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

func NewValidationError(format string, args ...any) error {
	return newError(KindValidation, nil, format, args...)
}

func NewNotFoundError(format string, args ...any) error {
	return newError(KindNotFound, nil, format, args...)
}

func NewTransientError(cause error, format string, args ...any) error {
	return newError(KindTransient, cause, format, args...)
}

func NewTerminalError(cause error, format string, args ...any) error {
	return newError(KindTerminal, cause, format, args...)
}

func NewPersistenceError(cause error, format string, args ...any) error {
	return newError(KindPersistence, cause, format, args...)
}

// IsRetryable reports whether err should leave a transfer in its current state
// so a later Resume can try again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) ||
		errors.Is(err, ErrPersistenceUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
