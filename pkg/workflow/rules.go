package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskmem-labs/taskmem-go/pkg/storage"
)

// advisoryRule is one independent check. Rules append to the shared result;
// only the subtask-dependency rule may clear result.Valid.
type advisoryRule struct {
	name string
	run  func(ctx context.Context, task *storage.Task, newStatus storage.Status, vc Context, now time.Time, result *Result)
}

func (v *Validator) rules() []advisoryRule {
	return []advisoryRule{
		{"subtask_dependency", v.subtaskDependency},
		{"workflow_logic", v.workflowLogic},
		{"business_rules", v.businessRules},
		{"time_constraints", v.timeConstraints},
		{"priority_alignment", v.priorityAlignment},
		{"resource_availability", v.resourceAvailability},
	}
}

// runRule executes one rule, converting a panic into a warning so a broken
// rule never aborts the pipeline.
func (v *Validator) runRule(ctx context.Context, rule advisoryRule, task *storage.Task, newStatus storage.Status, vc Context, now time.Time, result *Result) {
	defer func() {
		if r := recover(); r != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("advisory rule %s failed: %v", rule.name, r))
		}
	}()
	rule.run(ctx, task, newStatus, vc, now, result)
}

// subtaskDependency blocks completing a task with incomplete subtasks
// unless the caller forces completion. It is the only rule permitted to
// invalidate a transition.
func (v *Validator) subtaskDependency(ctx context.Context, task *storage.Task, newStatus storage.Status, vc Context, now time.Time, result *Result) {
	if newStatus != storage.StatusDone || len(task.Subtasks) == 0 {
		return
	}

	if v.tasks == nil {
		result.Warnings = append(result.Warnings,
			"could not verify subtask completion: no task store configured")
		return
	}

	incomplete := 0
	for _, id := range task.Subtasks {
		sub, err := v.tasks.GetTask(ctx, id)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("could not verify subtask %d: %v", id, err))
			continue
		}
		if sub.Status != storage.StatusDone {
			incomplete++
		}
	}

	if incomplete == 0 {
		return
	}

	if vc.ForceComplete {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("completing with %d incomplete subtask(s) (forced)", incomplete))
		return
	}

	result.Valid = false
	result.BlockingIssues = append(result.BlockingIssues,
		fmt.Sprintf("%d subtask(s) are not done", incomplete))
	result.RecommendedActions = append(result.RecommendedActions,
		"complete the remaining subtasks, or set force_complete to override")
}

// workflowLogic applies category-specific completion heuristics.
func (v *Validator) workflowLogic(ctx context.Context, task *storage.Task, newStatus storage.Status, vc Context, now time.Time, result *Result) {
	if newStatus != storage.StatusDone {
		return
	}

	text := strings.ToLower(task.Title + " " + task.Description)

	switch task.Category {
	case "code":
		if !containsAny(text, "test", "tested", "testing", "review", "reviewed", "qa", "pull request", "pr ") {
			result.Warnings = append(result.Warnings,
				"code task completing without any testing or review evidence")
			result.Suggestions = append(result.Suggestions,
				"add testing notes before closing",
				"create a pull request for review")
		}
	case "research":
		if !containsAny(text, "found", "findings", "conclusion", "learned", "result", "summary") {
			result.Suggestions = append(result.Suggestions,
				"document the research findings before closing")
		}
	}
}

// businessRules applies priority-aware heuristics.
func (v *Validator) businessRules(ctx context.Context, task *storage.Task, newStatus storage.Status, vc Context, now time.Time, result *Result) {
	if task.Priority != storage.PriorityUrgent {
		return
	}

	if newStatus == storage.StatusTodo && task.Status != storage.StatusTodo {
		result.Warnings = append(result.Warnings,
			"urgent task is regressing to todo")
	}
	if newStatus == storage.StatusBlocked {
		result.Suggestions = append(result.Suggestions,
			"escalate the blocker: urgent work is waiting on it")
	}
}

// timeConstraints applies staleness heuristics from elapsed time.
func (v *Validator) timeConstraints(ctx context.Context, task *storage.Task, newStatus storage.Status, vc Context, now time.Time, result *Result) {
	if newStatus == storage.StatusDone && task.Priority != storage.PriorityLow {
		if now.Sub(task.CreatedAt) < time.Duration(v.cfg.FastCompletionMinutes)*time.Minute {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("completed less than %d minutes after creation; double-check the work is really done",
					v.cfg.FastCompletionMinutes))
		}
	}

	idle := now.Sub(task.UpdatedAt)
	if idle > time.Duration(v.cfg.StaleDays)*24*time.Hour {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("task untouched for over %d days; review whether it is still relevant", v.cfg.StaleDays))
	}

	if task.Status == storage.StatusInProgress && idle > time.Duration(v.cfg.InProgressReviewDays)*24*time.Hour {
		result.Suggestions = append(result.Suggestions,
			fmt.Sprintf("in progress for over %d days; consider splitting it into subtasks", v.cfg.InProgressReviewDays))
	}
}

// priorityAlignment checks that priority and behavior agree.
func (v *Validator) priorityAlignment(ctx context.Context, task *storage.Task, newStatus storage.Status, vc Context, now time.Time, result *Result) {
	highPriority := task.Priority == storage.PriorityHigh || task.Priority == storage.PriorityUrgent
	if highPriority && newStatus == storage.StatusBlocked && vc.Reason == "" {
		result.Suggestions = append(result.Suggestions,
			"add a blocking reason so the blocker can be escalated")
	}

	if task.Priority == storage.PriorityLow && newStatus == storage.StatusDone {
		if now.Sub(task.CreatedAt) < time.Duration(v.cfg.LowPriorityFastHours)*time.Hour {
			result.Suggestions = append(result.Suggestions,
				fmt.Sprintf("completed in under %d hours; the priority may have been set too low", v.cfg.LowPriorityFastHours))
		}
	}
}

// resourceAvailability emits keyword-triggered suggestions when work is
// about to start.
func (v *Validator) resourceAvailability(ctx context.Context, task *storage.Task, newStatus storage.Status, vc Context, now time.Time, result *Result) {
	if newStatus != storage.StatusInProgress {
		return
	}

	text := strings.ToLower(task.Title + " " + task.Description)
	resources := []struct {
		keyword string
		hint    string
	}{
		{"deploy", "confirm deployment access before starting"},
		{"approval", "confirm the approver is available before starting"},
		{"external", "confirm the external system is reachable before starting"},
		{"vendor", "confirm vendor availability before starting"},
		{"credentials", "confirm the required credentials are provisioned"},
		{"migration", "confirm a maintenance window for the migration"},
	}
	for _, r := range resources {
		if strings.Contains(text, r.keyword) {
			result.Suggestions = append(result.Suggestions, r.hint)
		}
	}
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
