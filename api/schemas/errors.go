// api/schemas/errors.go
package schemas

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	// ErrNoUsableForms is returned when the target page has no <form> elements.
	ErrNoUsableForms = errors.New("no usable forms")
	// ErrInvalidURL is returned when the run target is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid target url")
	// ErrTargetNotFound is returned when no on-page element matches a selector hint.
	ErrTargetNotFound = errors.New("target not found")
	// ErrPageClosed is returned by page operations after the session was released.
	ErrPageClosed = errors.New("page handle is closed")
)

// ExtractionError reports that the page was unreachable or never settled.
// It is fatal to the run.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// GenerationError reports that the oracle was unavailable after the single
// permitted retry. It is fatal to the run.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("scenario generation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// LaunchError reports that no browser binary could be resolved or started.
// It is fatal and never retried.
type LaunchError struct {
	Mode string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("browser launch failed (%s): %v", e.Mode, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// IsFatal reports whether err belongs to one of the fatal run error classes.
func IsFatal(err error) bool {
	var ee *ExtractionError
	var ge *GenerationError
	var le *LaunchError
	return errors.As(err, &ee) || errors.As(err, &ge) || errors.As(err, &le)
}
