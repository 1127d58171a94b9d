// Package core provides the engine client wiring the classifier, linker,
// workflow validator, executor and storage together.
package core

import (
	"errors"
	"fmt"

	"github.com/taskmem-labs/taskmem-go/pkg/executor"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotFound indicates that a requested task or memory was not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	// Raised at construction; a missing required collaborator is fatal.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidTransition indicates a status change outside the allowed
	// transition matrix. No mutation is performed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTaskDone indicates a mutation was requested on a task that has
	// already reached done.
	ErrTaskDone = errors.New("task is already done")

	// ErrBelowConfidence indicates an action below the confidence gate.
	// It is the executor's sentinel, re-exported for facade callers.
	ErrBelowConfidence = executor.ErrBelowConfidence

	// ErrDuplicateWork indicates the task already exists; callers resolve
	// it by linking to the existing task rather than creating another.
	ErrDuplicateWork = errors.New("duplicate work detected")

	// ErrStorageOperation indicates a store collaborator I/O failure.
	ErrStorageOperation = errors.New("storage operation failed")

	// ErrSimilarityOperation indicates the semantic-similarity collaborator
	// could not be constructed. Scoring failures at discovery time never
	// surface it; discovery degrades to lexical scoring instead.
	ErrSimilarityOperation = errors.New("similarity operation failed")
)

// EngineError wraps errors with operation context.
//
// Example:
//
//	err := &EngineError{Op: "Execute", Err: ErrStorageOperation}
//	// Error() returns: "taskmem: Execute: storage operation failed"
type EngineError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message of the form
// "taskmem: <Op>: <Err>".
func (e *EngineError) Error() string {
	return fmt.Sprintf("taskmem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error so errors.Is and errors.As work
// through an EngineError.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError wraps err with operation context. If err is nil, returns
// nil, allowing unconditional wrapping at return sites.
func NewEngineError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Op: op, Err: err}
}
