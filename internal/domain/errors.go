package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrExtraction         = errors.New("extraction error")
	ErrTranslationUnit    = errors.New("translation unit error")
	ErrReconstruction     = errors.New("reconstruction error")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Error is a kind-tagged pipeline failure.
type Error struct {
	Kind     error
	Op       string
	Artifact string
	Err      error
}

// Error formats the failure as "<kind>: <op> <artifact>: <cause>".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Artifact != "" {
		msg += " " + e.Artifact
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinel.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// ExtractionFailed reports that op could not read artifact.
func ExtractionFailed(op, artifact string, err error) error {
	return &Error{Kind: ErrExtraction, Op: op, Artifact: artifact, Err: err}
}

// Extractionf reports an unreadable or unsupported artifact with a formatted cause.
func Extractionf(artifact, format string, args ...interface{}) error {
	return &Error{Kind: ErrExtraction, Artifact: artifact, Err: fmt.Errorf(format, args...)}
}

// TranslationUnit reports a failed translation of the block with the given id.
func TranslationUnit(blockID string, err error) error {
	return &Error{Kind: ErrTranslationUnit, Op: "translate", Artifact: blockID, Err: err}
}

// Reconstruction reports a failure while writing the translated artifact.
func Reconstruction(op string, err error) error {
	return &Error{Kind: ErrReconstruction, Op: op, Err: err}
}

// Reconstructionf is Reconstruction with a formatted cause.
func Reconstructionf(format string, args ...interface{}) error {
	return &Error{Kind: ErrReconstruction, Err: fmt.Errorf(format, args...)}
}

// BackendUnavailable reports that an external backend could not be reached.
func BackendUnavailable(backend string, err error) error {
	return &Error{Kind: ErrBackendUnavailable, Op: backend, Err: err}
}

// KindOf returns the kind sentinel of err, or nil when err is not a pipeline error.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
