package executor

import (
	"errors"
	"fmt"

	"github.com/taskmem-labs/taskmem-go/pkg/storage"
)

// eligibleStatuses maps each action to the task statuses it may operate on.
// Create is absent: it targets no existing task.
var eligibleStatuses = map[ActionType][]storage.Status{
	ActionUpdate:   {storage.StatusTodo, storage.StatusInProgress},
	ActionComplete: {storage.StatusTodo, storage.StatusInProgress},
	ActionBlock:    {storage.StatusTodo, storage.StatusInProgress},
}

// SelectBestTask returns the first task in relevantTasks whose status is
// eligible for the action, or nil when none qualifies.
//
// relevantTasks is expected to arrive already ranked by relevance; the
// contract is deliberately first-eligible, not best-relevance.
func SelectBestTask(relevantTasks []*storage.Task, action ActionType) *storage.Task {
	allowed, ok := eligibleStatuses[action]
	if !ok {
		return nil
	}

	for _, task := range relevantTasks {
		if task == nil {
			continue
		}
		for _, status := range allowed {
			if task.Status == status {
				return task
			}
		}
	}
	return nil
}

// Decision is the outcome of the pre-execution gate.
type Decision struct {
	// Allowed reports whether the action may be executed at all.
	Allowed bool

	// AutoApprove reports whether the action may run without review.
	AutoApprove bool

	// Reason explains a rejection or the approval mode.
	Reason string

	// Err carries the matchable rejection cause (ErrDestructiveAction,
	// ErrUnknownAction, ErrBelowConfidence, ErrContentTooShort); nil when
	// the action is allowed.
	Err error
}

// ShouldExecute is the gate a caller evaluates before invoking Execute.
//
// Destructive action names are rejected unconditionally. Below-confidence
// actions are rejected. Create actions on memories shorter than the
// configured minimum are rejected regardless of confidence. Confidence at
// or above the auto-execute threshold approves without review.
func (e *Executor) ShouldExecute(actionName string, confidence float64, memory *storage.Memory) Decision {
	typ, err := ParseActionType(actionName)
	if err != nil {
		if errors.Is(err, ErrDestructiveAction) {
			return Decision{Reason: "destructive actions are never executed", Err: err}
		}
		return Decision{Reason: err.Error(), Err: err}
	}

	if confidence < e.cfg.MinConfidence {
		return Decision{
			Reason: fmt.Sprintf("confidence %.2f below minimum %.2f", confidence, e.cfg.MinConfidence),
			Err:    fmt.Errorf("%w: %.2f < %.2f", ErrBelowConfidence, confidence, e.cfg.MinConfidence),
		}
	}

	if typ == ActionCreate && len(memory.Content) < e.cfg.MinCreateContentLength {
		return Decision{
			Reason: fmt.Sprintf("memory content shorter than %d characters", e.cfg.MinCreateContentLength),
			Err:    fmt.Errorf("%w: %d < %d characters", ErrContentTooShort, len(memory.Content), e.cfg.MinCreateContentLength),
		}
	}

	if confidence >= e.cfg.AutoExecuteThreshold {
		return Decision{Allowed: true, AutoApprove: true, Reason: "confidence meets auto-execute threshold"}
	}
	return Decision{Allowed: true, Reason: "approved, review recommended"}
}
