// Package errors provides standardized error handling for opscore components.
// It includes error classification, standard error variables, and helper
// functions for consistent error wrapping across the read, write, and
// subscription paths.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorClass represents the classification of errors for handling purposes.
// The classes mirror how the gateway surfaces failures: validation and
// authorization errors carry actionable messages, upstream and timeout
// errors degrade to a generic "temporarily unavailable" condition.
type ErrorClass int

const (
	// ErrorValidation represents malformed input rejected before any I/O
	ErrorValidation ErrorClass = iota
	// ErrorAuthorization represents a caller that lacks permission
	ErrorAuthorization
	// ErrorUpstream represents an unreachable or failed downstream store/bus
	ErrorUpstream
	// ErrorTimeout represents a downstream call that exceeded its deadline
	ErrorTimeout
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorValidation:
		return "validation"
	case ErrorAuthorization:
		return "authorization"
	case ErrorUpstream:
		return "upstream"
	case ErrorTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Input validation errors
	ErrEmptyKey      = errors.New("key cannot be empty")
	ErrEmptySeed     = errors.New("seed entity id cannot be empty")
	ErrNegativeDepth = errors.New("max depth cannot be negative")
	ErrScoreRange    = errors.New("score must be between 0.0 and 1.0")
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownEntity rejects writes addressed to entities that do not
	// exist. Reads never use it; an absent entity on the read path is an
	// absent value, not an error.
	ErrUnknownEntity = errors.New("entity does not exist")

	// Authorization errors
	ErrNotAuthorized = errors.New("caller is not authorized")

	// Downstream store and bus errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrBatchFailed      = errors.New("batch fetch failed")
	ErrPublishFailed    = errors.New("publish failed")

	// Timeout errors
	ErrDeadlineExceeded = errors.New("downstream call deadline exceeded")

	// Lifecycle errors
	ErrScopeClosed        = errors.New("request scope already closed")
	ErrSubscriptionClosed = errors.New("subscription already closed")
	ErrCacheNotRegistered = errors.New("cache not registered")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsValidation checks if an error was caused by malformed input
func IsValidation(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorValidation
	}

	return errors.Is(err, ErrEmptyKey) ||
		errors.Is(err, ErrEmptySeed) ||
		errors.Is(err, ErrNegativeDepth) ||
		errors.Is(err, ErrScoreRange) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrUnknownEntity)
}

// IsAuthorization checks if an error is an authorization failure.
// Authorization failures are surfaced immediately and never degraded
// to partial results.
func IsAuthorization(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorAuthorization
	}

	return errors.Is(err, ErrNotAuthorized)
}

// IsTimeout checks if an error was caused by an exceeded deadline.
// Timeouts are a distinguishable subset of upstream failures so callers
// can make retry/backoff decisions.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTimeout
	}

	return errors.Is(err, ErrDeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsUpstream checks if an error originated in a downstream store or bus.
// Timeouts count as upstream failures for surfacing purposes.
func IsUpstream(err error) bool {
	if err == nil {
		return false
	}

	if IsTimeout(err) {
		return true
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorUpstream
	}

	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrBatchFailed) ||
		errors.Is(err, ErrPublishFailed)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	switch {
	case IsTimeout(err):
		return ErrorTimeout
	case IsValidation(err):
		return ErrorValidation
	case IsAuthorization(err):
		return ErrorAuthorization
	default:
		// Unknown errors default to upstream so callers treat them as
		// retryable rather than surfacing internals
		return ErrorUpstream
	}
}

// newClassified creates a new classified error.
// This is an internal helper - use the Wrap* functions instead.
func newClassified(class ErrorClass, err error, component, operation string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapValidation wraps an error as a validation failure with context
func WrapValidation(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorValidation, Wrap(err, component, method, action), component, method)
}

// WrapAuthorization wraps an error as an authorization failure with context
func WrapAuthorization(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorAuthorization, Wrap(err, component, method, action), component, method)
}

// WrapUpstream wraps an error as an upstream failure with context
func WrapUpstream(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorUpstream, Wrap(err, component, method, action), component, method)
}

// WrapTimeout wraps an error as a timeout with context
func WrapTimeout(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorTimeout, Wrap(err, component, method, action), component, method)
}

// UserMessage returns the message that should be surfaced to an end user
// for the given error. Validation and authorization errors are specific and
// actionable; upstream and timeout errors deliberately are not.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch Classify(err) {
	case ErrorValidation:
		return err.Error()
	case ErrorAuthorization:
		return "you do not have permission to perform this operation"
	default:
		return "service temporarily unavailable, please retry"
	}
}
