// Package executor dispatches lifecycle actions onto tasks.
//
// The action set is a closed union over create, update, complete and block;
// destructive operations (delete, archive) are unconditionally rejected at
// parse time. Every path returns a structured Result: internal failures are
// caught at the component boundary and converted into a failed result,
// nothing escapes uncaught.
package executor

import (
	"errors"
	"fmt"

	"github.com/taskmem-labs/taskmem-go/pkg/storage"
)

// ActionType is the closed set of task lifecycle actions.
type ActionType uint8

const (
	// ActionCreate creates a task from a memory (or links to a duplicate).
	ActionCreate ActionType = iota + 1

	// ActionUpdate records progress and optionally moves status.
	ActionUpdate

	// ActionComplete marks a task done with completion evidence.
	ActionComplete

	// ActionBlock marks a task blocked with a reason.
	ActionBlock
)

// String returns the wire name of the action.
func (t ActionType) String() string {
	switch t {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionComplete:
		return "complete"
	case ActionBlock:
		return "block"
	}
	return "unknown"
}

// Errors returned by ParseActionType.
var (
	// ErrUnknownAction indicates an action name outside the closed set.
	ErrUnknownAction = errors.New("unknown action")

	// ErrDestructiveAction indicates a delete/archive request, which the
	// executor never performs.
	ErrDestructiveAction = errors.New("destructive actions are not executed")

	// ErrBelowConfidence indicates the gate rejected an action whose
	// confidence is below the configured minimum.
	ErrBelowConfidence = errors.New("action confidence below threshold")

	// ErrContentTooShort indicates a create action triggered by a memory
	// shorter than the configured minimum.
	ErrContentTooShort = errors.New("memory content too short to create a task")
)

// ParseActionType maps an action name onto the closed union.
func ParseActionType(name string) (ActionType, error) {
	switch name {
	case "create":
		return ActionCreate, nil
	case "update":
		return ActionUpdate, nil
	case "complete":
		return ActionComplete, nil
	case "block":
		return ActionBlock, nil
	case "delete", "archive":
		return 0, fmt.Errorf("%w: %s", ErrDestructiveAction, name)
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

// Action is one requested lifecycle operation.
type Action struct {
	// Type selects the operation.
	Type ActionType

	// Confidence is the caller's confidence in the action, in [0,1].
	Confidence float64

	// TargetStatus optionally moves the task's status during an update.
	TargetStatus storage.Status

	// ProgressNote is appended to the task description during an update.
	ProgressNote string

	// Reason states why a task is being blocked.
	Reason string

	// Title overrides the derived title when creating a task.
	Title string

	// Category sets the category when creating a task (defaults to the
	// memory's category).
	Category string

	// Priority sets the priority when creating a task (defaults to medium).
	Priority storage.Priority

	// ForceComplete overrides the incomplete-subtasks block on complete.
	ForceComplete bool
}

// Result is the structured outcome of an Execute call.
type Result struct {
	// Success reports whether the action was performed.
	Success bool `json:"success"`

	// Action is the wire name of the requested action.
	Action string `json:"action"`

	// Task is the affected task on success.
	Task *storage.Task `json:"task,omitempty"`

	// Error describes the failure when Success is false.
	Error string `json:"error,omitempty"`

	// Message is a human-readable summary.
	Message string `json:"message,omitempty"`

	// Warnings carries non-fatal advisories (validator warnings, summary
	// write-back failures).
	Warnings []string `json:"warnings,omitempty"`
}

func failure(action ActionType, format string, args ...interface{}) *Result {
	return &Result{
		Success: false,
		Action:  action.String(),
		Error:   fmt.Sprintf(format, args...),
	}
}
