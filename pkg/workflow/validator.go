// Package workflow validates task status transitions.
//
// The validator enforces a fixed transition matrix and runs a set of
// independent advisory rules. Only the subtask-dependency rule can make a
// transition invalid; every other rule contributes warnings and coaching
// suggestions without blocking. A rule's internal failure is caught and
// downgraded to a warning, never aborting the pipeline.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskmem-labs/taskmem-go/pkg/storage"
)

// transitions is the exhaustive allowed-transition matrix. Any edge absent
// here is invalid; same-status requests are rejected before the matrix is
// consulted.
var transitions = map[storage.Status][]storage.Status{
	storage.StatusTodo:       {storage.StatusInProgress, storage.StatusBlocked, storage.StatusDone},
	storage.StatusInProgress: {storage.StatusDone, storage.StatusBlocked, storage.StatusTodo},
	storage.StatusBlocked:    {storage.StatusTodo, storage.StatusInProgress, storage.StatusDone},
	storage.StatusDone:       {storage.StatusInProgress, storage.StatusTodo},
}

// AllowedTargets returns the statuses reachable from the given status.
func AllowedTargets(from storage.Status) []storage.Status {
	targets := transitions[from]
	out := make([]storage.Status, len(targets))
	copy(out, targets)
	return out
}

// Context carries caller-supplied context for a validation request.
type Context struct {
	// ForceComplete downgrades the incomplete-subtasks block to a warning.
	ForceComplete bool

	// Reason is the stated reason when blocking a task.
	Reason string

	// Now overrides the validation clock (zero means time.Now).
	Now time.Time
}

// Config holds the staleness windows of the time-based advisory rules.
type Config struct {
	// StaleDays warns when a task has been untouched this long.
	StaleDays int

	// InProgressReviewDays suggests decomposition after this long in progress.
	InProgressReviewDays int

	// FastCompletionMinutes warns when a non-low-priority task completes
	// faster than this after creation.
	FastCompletionMinutes int

	// LowPriorityFastHours suggests re-examining priority when a low
	// priority task completes faster than this.
	LowPriorityFastHours int
}

// DefaultConfig returns the standard staleness windows.
func DefaultConfig() Config {
	return Config{
		StaleDays:             7,
		InProgressReviewDays:  3,
		FastCompletionMinutes: 60,
		LowPriorityFastHours:  2,
	}
}

// Result is the full validation output.
type Result struct {
	// Valid reports whether the transition may proceed.
	Valid bool `json:"valid"`

	// Confidence is 1.0 minus penalties for warnings, blocking issues and
	// suggestion volume, clamped to [0,1].
	Confidence float64 `json:"confidence"`

	// Warnings are non-blocking concerns.
	Warnings []string `json:"warnings,omitempty"`

	// Suggestions are coaching hints.
	Suggestions []string `json:"suggestions,omitempty"`

	// BlockingIssues name why the transition is invalid.
	BlockingIssues []string `json:"blocking_issues,omitempty"`

	// RecommendedActions are concrete next steps to unblock.
	RecommendedActions []string `json:"recommended_actions,omitempty"`

	// Analysis is the derived workflow analysis for the target status.
	Analysis Analysis `json:"workflow_analysis"`
}

// Validator enforces the transition matrix and runs the advisory rules.
type Validator struct {
	// tasks resolves subtask statuses; may be nil, in which case the
	// subtask rule degrades to a warning.
	tasks storage.TaskStore

	cfg Config
}

// New creates a Validator. tasks may be nil.
func New(tasks storage.TaskStore, cfg Config) *Validator {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Validator{tasks: tasks, cfg: cfg}
}

// ValidateStatusChange checks the proposed transition and runs every
// advisory rule regardless of the others' outcome.
func (v *Validator) ValidateStatusChange(ctx context.Context, task *storage.Task, newStatus storage.Status, vc Context) *Result {
	result := &Result{Valid: true}

	now := vc.Now
	if now.IsZero() {
		now = time.Now()
	}

	switch {
	case !newStatus.Valid():
		result.Valid = false
		result.BlockingIssues = append(result.BlockingIssues,
			fmt.Sprintf("unknown status %q", newStatus))
	case newStatus == task.Status:
		result.Valid = false
		result.BlockingIssues = append(result.BlockingIssues,
			fmt.Sprintf("task is already in status %q", task.Status))
	case !allowed(task.Status, newStatus):
		result.Valid = false
		result.BlockingIssues = append(result.BlockingIssues,
			fmt.Sprintf("invalid transition %s -> %s; allowed targets from %s: %s",
				task.Status, newStatus, task.Status, joinStatuses(AllowedTargets(task.Status))))
	}

	for _, rule := range v.rules() {
		v.runRule(ctx, rule, task, newStatus, vc, now, result)
	}

	result.Confidence = confidence(result)
	result.Analysis = analyze(task, newStatus)

	return result
}

func allowed(from, to storage.Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func joinStatuses(statuses []storage.Status) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// confidence applies the fixed penalty schedule: 0.1 per warning, 0.3 per
// blocking issue, 0.1 once when suggestions exceed three.
func confidence(r *Result) float64 {
	c := 1.0 - 0.1*float64(len(r.Warnings)) - 0.3*float64(len(r.BlockingIssues))
	if len(r.Suggestions) > 3 {
		c -= 0.1
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
