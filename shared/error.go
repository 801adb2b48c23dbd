package shared

import (
	"errors"
	"fmt"
)

type ErrorSource int

const (
	ErrorSourceTransport ErrorSource = iota
	ErrorSourceSerialization
	ErrorSourceConfig
	ErrorSourceProbe
	ErrorSourceUnknown
)

func (s ErrorSource) String() string {
	switch s {
	case ErrorSourceTransport:
		return "transport"
	case ErrorSourceSerialization:
		return "serialization"
	case ErrorSourceConfig:
		return "config"
	case ErrorSourceProbe:
		return "probe"
	}
	return "unknown"
}

// Error is a failure tagged with the layer it originated in.
type Error struct {
	Source  ErrorSource
	Message string
	Err     error
}

func Errorf(source ErrorSource, format string, a ...any) *Error {
	return &Error{
		Source:  source,
		Message: fmt.Sprintf(format, a...),
	}
}

func Wrap(source ErrorSource, err error, format string, a ...any) *Error {
	return &Error{
		Source:  source,
		Message: fmt.Sprintf(format, a...),
		Err:     err,
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// SourceOf returns the source of the first *Error in err's chain.
func SourceOf(err error) ErrorSource {
	var e *Error
	if errors.As(err, &e) {
		return e.Source
	}
	return ErrorSourceUnknown
}
