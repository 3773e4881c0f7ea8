package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownField indicates a value was addressed to a field the template does not define
	ErrUnknownField = errors.New("unknown field")

	// ErrNoNextField indicates Advance was called on the last field
	ErrNoNextField = errors.New("no next field")

	// ErrSessionSubmitted indicates the session already reached its terminal state
	ErrSessionSubmitted = errors.New("session already submitted")

	// ErrHandoffConflict indicates a hand-off was already completed by another device
	ErrHandoffConflict = errors.New("handoff already completed")

	// ErrHandoffTimeout indicates no completion arrived before the await deadline
	ErrHandoffTimeout = errors.New("handoff timed out")

	// ErrTokenExpired indicates the hand-off token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the hand-off token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrSourceLoad indicates the original PDF bytes could not be parsed
	ErrSourceLoad = errors.New("source document could not be loaded")

	// ErrServiceUnavailable indicates a backing service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)

// LoadError reports that a template or the original PDF bytes are unavailable.
// Recoverable by retrying the load.
type LoadError struct {
	Resource string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Resource, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ValidationError lists the required fields that are missing or blank.
type ValidationError struct {
	MissingFieldIDs []string
	MissingLabels   []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.MissingLabels, ", ")
}

// Unwrap lets callers match validation failures with errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// PersistError reports a failed insert. Nothing was committed.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// OverlayDecodeError reports a malformed signature payload for one field.
// It is local to the field and never aborts flattening.
type OverlayDecodeError struct {
	FieldID string
	Err     error
}

func (e *OverlayDecodeError) Error() string {
	return fmt.Sprintf("decode signature for field %s: %v", e.FieldID, e.Err)
}

func (e *OverlayDecodeError) Unwrap() error { return e.Err }

// RenderError reports that a signed copy could not be produced.
// The persisted signed document stays valid.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("cannot produce signed copy: %v", e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
