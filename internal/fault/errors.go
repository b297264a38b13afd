// Package fault defines the two error classes raised while configuring the
// server and validation components.
//
// Neither class is retryable: both describe a static mistake made by the
// host application, either in the arguments it passed or in the state it
// assembled.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrArgument matches every *ArgumentError via errors.Is
	ErrArgument = errors.New("invalid argument")

	// ErrConfiguration matches every *ConfigurationError via errors.Is
	ErrConfiguration = errors.New("invalid configuration")
)

// ArgumentError reports a nil, empty or malformed value passed to a builder
// method. It is always raised before any state is mutated.
type ArgumentError struct {
	// Param is the name of the offending parameter
	Param string

	// Reason describes what was wrong with it
	Reason string
}

// Argument creates an ArgumentError for the named parameter.
func Argument(param, reason string) *ArgumentError {
	return &ArgumentError{Param: param, Reason: reason}
}

// Argumentf creates an ArgumentError with a formatted reason.
func Argumentf(param, format string, args ...any) *ArgumentError {
	return &ArgumentError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Param, e.Reason)
}

// Is reports whether target is ErrArgument.
func (e *ArgumentError) Is(target error) bool {
	return target == ErrArgument
}

// ConfigurationError reports an incomplete or inconsistent configuration.
// The message names the call that fixes it.
type ConfigurationError struct {
	Message string
	Err     error
}

// Configuration creates a ConfigurationError.
func Configuration(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// WrapConfiguration creates a ConfigurationError caused by err.
func WrapConfiguration(err error, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ParamName returns the parameter named by an ArgumentError in err's chain.
func ParamName(err error) (string, bool) {
	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		return argErr.Param, true
	}
	return "", false
}
