package usecase

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the pipeline can produce. The HTTP layer
// owns the only translation from kinds to status codes.
type Kind int

const (
	// KindInternal covers unexpected decode/encode/processing failures.
	KindInternal Kind = iota
	// KindValidation marks rejected input: wrong content type, oversized
	// upload, missing parameters.
	KindValidation
	// KindDownload marks a failed or non-image URL fetch.
	KindDownload
	// KindModelLoad marks an explicit load or reload failure.
	KindModelLoad
	// KindInference marks a forward-pass failure against a loaded model.
	KindInference
	// KindUnavailable marks requests that found no model and could not
	// load one on demand.
	KindUnavailable
)

// Error carries a failure kind across the usecase boundary.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func wrapError(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the failure kind from err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
