// Package apperr defines the user-facing error taxonomy.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the user.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindFormat
	KindNetwork
	KindService
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindFormat:
		return "format"
	case KindNetwork:
		return "network"
	case KindService:
		return "service"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Msg is shown to the user, Err is the cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels like ErrValidation work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrFormat     = &Error{Kind: KindFormat}
	ErrNetwork    = &Error{Kind: KindNetwork}
	ErrService    = &Error{Kind: KindService}
)

// Validation reports bad user input such as a wrong extension or a missing file.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// Format reports an unparseable workbook or a malformed service response.
func Format(msg string, err error) error {
	return &Error{Kind: KindFormat, Msg: msg, Err: err}
}

// Network reports a transport failure.
func Network(msg string, err error) error {
	return &Error{Kind: KindNetwork, Msg: msg, Err: err}
}

// Service reports an error message returned by the redundancy service.
func Service(msg string) error {
	return &Error{Kind: KindService, Msg: msg}
}

// KindOf returns the kind of err, or 0 if err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// UserMessage renders err as a one-line notification.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch e.Kind {
	case KindValidation:
		return e.Msg
	case KindFormat:
		return "Invalid format: " + e.Error()
	case KindNetwork:
		return "Failed to reach redundancy service: " + e.Error()
	case KindService:
		return "Error: " + e.Msg
	default:
		return e.Error()
	}
}
