package worker

import (
	"context"
	"errors"
)

// Task is a unit of periodic background work.
type Task interface {
	// Name identifies the task in logs. It must be unique per Worker.
	Name() string

	// Run performs one pass. Returning a PermanentError unschedules the task.
	Run(ctx context.Context) error
}

type taskFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewTask adapts a function into a Task.
func NewTask(name string, fn func(ctx context.Context) error) Task {
	return &taskFunc{name: name, fn: fn}
}

func (t *taskFunc) Name() string                  { return t.name }
func (t *taskFunc) Run(ctx context.Context) error { return t.fn(ctx) }

// PermanentError wraps an error to indicate the task should not run again.
type PermanentError struct {
	Err error
}

// Error implements the error interface.
func (e *PermanentError) Error() string {
	return e.Err.Error()
}

// Unwrap allows errors.Is and errors.As to work with PermanentError.
func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError creates a new PermanentError that wraps the given error.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err (or anything it wraps) is a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
