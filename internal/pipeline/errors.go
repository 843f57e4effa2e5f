package pipeline

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors for pipeline invocations. Input-size violations and
// timeouts propagate because any partial result would be invalid; every
// other failure mode recovers locally.
var (
	// ErrInputTooLarge rejects input exceeding the configured byte limit
	// before clustering starts.
	ErrInputTooLarge = errors.New("input exceeds size limit")

	// ErrTooManyEvents rejects input that segments into more events than
	// the configured limit.
	ErrTooManyEvents = errors.New("too many events")

	// ErrTimeout indicates the invocation deadline elapsed; no partial
	// results are returned.
	ErrTimeout = errors.New("pipeline timed out")
)

// PipelineError carries structured context for a failed invocation.
type PipelineError struct {
	// Op is the pipeline stage that failed (e.g. "preflight", "cluster").
	Op string

	// RunID identifies the invocation.
	RunID uuid.UUID

	// Err is the underlying error.
	Err error

	// Context holds additional key-value pairs for debugging.
	Context map[string]any
}

// Error returns a formatted message.
func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("distill %s failed", e.Op)
	if e.RunID != uuid.Nil {
		msg += fmt.Sprintf(" for run %s", e.RunID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// WithContext attaches a key-value pair, allocating the map lazily.
func (e *PipelineError) WithContext(key string, value any) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// newError builds a PipelineError for the given stage.
func newError(op string, runID uuid.UUID, err error) *PipelineError {
	return &PipelineError{Op: op, RunID: runID, Err: err}
}
