// Package errors provides the typed error kinds used across redwrenlib.
// Every fallible operation reports one of these kinds together with the
// component and operation it failed in, so callers can branch on the kind
// without string matching and diagnostics always name the call site.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for handling purposes.
type Kind int

const (
	// KindCorruptContainer indicates a malformed or missing field in a
	// gesture container (or a truncated sequential log).
	KindCorruptContainer Kind = iota
	// KindUnsupportedVersion indicates an unknown schema version tag.
	KindUnsupportedVersion
	// KindInvalidParameter indicates a precondition violation on model
	// parameters (n_components, random_state) or malformed input.
	KindInvalidParameter
	// KindNoModelsLoaded indicates an operation that requires a populated
	// store was called on an empty one.
	KindNoModelsLoaded
	// KindLengthMismatch indicates timestamps and readings of unequal length.
	KindLengthMismatch
	// KindUnknownSensor indicates readings for a sensor the store does not hold.
	KindUnknownSensor
	// KindIO indicates an underlying storage failure.
	KindIO
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindCorruptContainer:
		return "corrupt_container"
	case KindUnsupportedVersion:
		return "unsupported_version"
	case KindInvalidParameter:
		return "invalid_parameter"
	case KindNoModelsLoaded:
		return "no_models_loaded"
	case KindLengthMismatch:
		return "length_mismatch"
	case KindUnknownSensor:
		return "unknown_sensor"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	ErrCorruptContainer   = errors.New("corrupt gesture container")
	ErrUnsupportedVersion = errors.New("unsupported container version")
	ErrInvalidParameter   = errors.New("invalid model parameter")
	ErrNoModelsLoaded     = errors.New("no models loaded")
	ErrLengthMismatch     = errors.New("timestamps and readings length mismatch")
	ErrUnknownSensor      = errors.New("unknown sensor")
	ErrIO                 = errors.New("storage failure")
)

// sentinel returns the standard error variable for a kind, used as the
// underlying error when a wrapper is called with err == nil.
func sentinel(k Kind) error {
	switch k {
	case KindCorruptContainer:
		return ErrCorruptContainer
	case KindUnsupportedVersion:
		return ErrUnsupportedVersion
	case KindInvalidParameter:
		return ErrInvalidParameter
	case KindNoModelsLoaded:
		return ErrNoModelsLoaded
	case KindLengthMismatch:
		return ErrLengthMismatch
	case KindUnknownSensor:
		return ErrUnknownSensor
	case KindIO:
		return ErrIO
	default:
		return ErrIO
	}
}

// Error wraps a failure with its kind and the call site it occurred at.
// Component and Operation replace the stack-walking diagnostics of earlier
// designs: the caller supplies the location tag, the error carries it.
type Error struct {
	Kind      Kind
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a kinded error with call-site context and no underlying cause.
func New(kind Kind, component, operation, message string) error {
	return &Error{
		Kind:      kind,
		Err:       sentinel(kind),
		Message:   fmt.Sprintf("%s.%s: %s", component, operation, message),
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a kinded error around an underlying cause following the
// pattern "component.operation: action failed: %w".
func Wrap(err error, kind Kind, component, operation, action string) error {
	if err == nil {
		err = sentinel(kind)
	}
	wrapped := fmt.Errorf("%s.%s: %s failed: %w", component, operation, action, err)
	return &Error{
		Kind:      kind,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: operation,
	}
}

// WrapCorrupt wraps an error as a corrupt-container failure
func WrapCorrupt(err error, component, operation, action string) error {
	return Wrap(err, KindCorruptContainer, component, operation, action)
}

// WrapIO wraps an error as an underlying-storage failure
func WrapIO(err error, component, operation, action string) error {
	return Wrap(err, KindIO, component, operation, action)
}

// KindOf returns the kind of an error, or ok=false for unclassified errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// isKind reports whether err carries the given kind or its sentinel.
func isKind(err error, k Kind) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return errors.Is(err, sentinel(k))
}

// IsCorruptContainer checks for a malformed or truncated container
func IsCorruptContainer(err error) bool { return isKind(err, KindCorruptContainer) }

// IsUnsupportedVersion checks for an unknown schema version tag
func IsUnsupportedVersion(err error) bool { return isKind(err, KindUnsupportedVersion) }

// IsInvalidParameter checks for a parameter precondition violation
func IsInvalidParameter(err error) bool { return isKind(err, KindInvalidParameter) }

// IsNoModelsLoaded checks for an empty-store precondition failure
func IsNoModelsLoaded(err error) bool { return isKind(err, KindNoModelsLoaded) }

// IsLengthMismatch checks for mismatched timestamps/readings lengths
func IsLengthMismatch(err error) bool { return isKind(err, KindLengthMismatch) }

// IsUnknownSensor checks for readings naming a sensor absent from the store
func IsUnknownSensor(err error) bool { return isKind(err, KindUnknownSensor) }

// IsIO checks for an underlying storage failure
func IsIO(err error) bool { return isKind(err, KindIO) }
