package domain

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Failure classes. Match with errors.Is.
var (
	// ErrValidation marks a missing or malformed field in a payload.
	ErrValidation = errors.New("invalid request")

	// ErrNotFound marks a reference to an unknown track, data channel or mid.
	ErrNotFound = errors.New("not found")

	// ErrEngine marks an operation the media engine rejected.
	ErrEngine = errors.New("engine failure")

	// ErrTransport marks a channel read failure. It is the only fatal class.
	ErrTransport = errors.New("transport failure")

	// ErrUnknownOperation is an unrecognized method or event; it is also an ErrValidation.
	ErrUnknownOperation = fmt.Errorf("%w: unknown operation", ErrValidation)
)

type engineError struct {
	err error
}

func (e *engineError) Error() string        { return e.err.Error() }
func (e *engineError) Unwrap() error        { return e.err }
func (e *engineError) Is(target error) bool { return target == ErrEngine }

// EngineFailure classifies err as ErrEngine, keeping the engine's message
// and recording a stack trace for the error log.
func EngineFailure(err error) error {
	if err == nil || errors.Is(err, ErrEngine) {
		return err
	}
	return pkgerrors.WithStack(&engineError{err: err})
}
