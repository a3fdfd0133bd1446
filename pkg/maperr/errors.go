// Package maperr provides the error taxonomy shared by the X12 parser, the
// mapping resolver and the HTTP handler.
//
// Callers classify failures with errors.Is against the sentinels or with
// errors.As against the typed errors:
//
//   - InputError: the caller's payload is structurally invalid
//   - NotFoundError: a mapping document path does not exist in the store
//   - CycleError: an extends chain revisits a path that is still resolving
//   - MappingError: a mapping document has the wrong shape
//
// Any other error coming out of the core is an unexpected failure.
package maperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInput indicates an invalid caller payload.
	ErrInput = errors.New("invalid input")

	// ErrNotFound indicates a missing mapping document.
	ErrNotFound = errors.New("mapping not found")

	// ErrCycle indicates a self-referential extends chain.
	ErrCycle = errors.New("extends cycle")

	// ErrMapping indicates malformed mapping content.
	ErrMapping = errors.New("invalid mapping")
)

// InputError reports a structurally invalid request payload.
type InputError struct {
	// Field is the payload field at fault, if known.
	Field   string
	Message string
}

func (e *InputError) Error() string {
	if e.Field != "" && e.Message != "" {
		return e.Field + ": " + e.Message
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Field != "" {
		return "invalid input: " + e.Field
	}
	return "invalid input"
}

// Is reports whether target is ErrInput.
func (e *InputError) Is(target error) bool {
	return target == ErrInput
}

// Input returns an *InputError with a formatted message.
func Input(field, format string, args ...any) error {
	return &InputError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a mapping path missing from the store.
type NotFoundError struct {
	Path  string
	Cause error
}

func (e *NotFoundError) Error() string {
	msg := "mapping not found"
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *NotFoundError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// CycleError reports an extends chain that re-enters an in-flight path.
// Chain lists the paths in resolution order and ends with the repeated path.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	if len(e.Chain) == 0 {
		return "extends cycle"
	}
	return "extends cycle: " + strings.Join(e.Chain, " -> ")
}

// Is reports whether target is ErrCycle.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// MappingError reports mapping content with an unexpected shape.
type MappingError struct {
	// Path is the mapping document path, if known.
	Path string
	// Field locates the offending value inside the document (e.g. "fields.patient.id.element").
	Field string
	Cause error
}

func (e *MappingError) Error() string {
	msg := "invalid mapping"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Field != "" {
		msg += " at " + e.Field
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *MappingError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrMapping.
func (e *MappingError) Is(target error) bool {
	return target == ErrMapping
}

// Kind returns a short classification label used in logs and responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInput):
		return "input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCycle):
		return "cycle"
	case errors.Is(err, ErrMapping):
		return "mapping"
	default:
		return "internal"
	}
}
