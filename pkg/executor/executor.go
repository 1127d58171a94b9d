package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/taskmem-labs/taskmem-go/pkg/storage"
	"github.com/taskmem-labs/taskmem-go/pkg/workflow"
)

// SummaryWriter is an optional collaborator that records a completion
// summary back onto the triggering memory. Failures degrade to a warning
// on the result.
type SummaryWriter interface {
	WriteCompletionSummary(ctx context.Context, task *storage.Task, memory *storage.Memory) error
}

// Config holds the executor gate thresholds.
type Config struct {
	// MinConfidence rejects actions below this confidence.
	MinConfidence float64

	// AutoExecuteThreshold auto-approves actions at or above it.
	AutoExecuteThreshold float64

	// MinCreateContentLength rejects create actions whose memory content
	// is shorter, regardless of confidence.
	MinCreateContentLength int
}

// DefaultConfig returns the standard gate thresholds.
func DefaultConfig() Config {
	return Config{
		MinConfidence:          0.5,
		AutoExecuteThreshold:   0.8,
		MinCreateContentLength: 20,
	}
}

// Executor mutates task state on behalf of classified memories, guarding
// every status change with the workflow validator and maintaining
// bidirectional task-memory links.
type Executor struct {
	tasks     storage.TaskStore
	memories  storage.MemoryStore
	validator *workflow.Validator
	node      *snowflake.Node
	summary   SummaryWriter
	cfg       Config

	// now is replaceable in tests.
	now func() time.Time
}

// New creates an Executor. summary may be nil.
func New(tasks storage.TaskStore, memories storage.MemoryStore, validator *workflow.Validator, node *snowflake.Node, summary SummaryWriter, cfg Config) *Executor {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Executor{
		tasks:     tasks,
		memories:  memories,
		validator: validator,
		node:      node,
		summary:   summary,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Execute dispatches the action. relevantTasks must already be ranked by
// relevance; the handlers pick the first eligible entry.
//
// Every path returns a structured result; a panic inside a handler is
// converted into a failed result at this boundary.
func (e *Executor) Execute(ctx context.Context, action Action, memory *storage.Memory, relevantTasks []*storage.Task) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			result = failure(action.Type, "internal error: %v", r)
		}
	}()

	switch action.Type {
	case ActionCreate:
		return e.executeCreate(ctx, action, memory)
	case ActionUpdate:
		return e.executeUpdate(ctx, action, memory, relevantTasks)
	case ActionComplete:
		return e.executeComplete(ctx, action, memory, relevantTasks)
	case ActionBlock:
		return e.executeBlock(ctx, action, memory, relevantTasks)
	}
	return failure(action.Type, "unsupported action")
}

// executeCreate creates a task from the memory, or links the memory to an
// existing open task with the same title and project instead of creating a
// duplicate.
func (e *Executor) executeCreate(ctx context.Context, action Action, memory *storage.Memory) *Result {
	title := action.Title
	if title == "" {
		title = deriveTitle(memory.Content)
	}

	open := []storage.Status{storage.StatusTodo, storage.StatusInProgress, storage.StatusBlocked}
	existing, err := e.tasks.ListTasks(ctx, storage.TaskFilters{
		Project:  memory.Project,
		Title:    title,
		Statuses: open,
		Limit:    1,
	})
	if err != nil {
		return failure(action.Type, "duplicate check failed: %v", err)
	}

	now := e.now()

	if len(existing) > 0 {
		task := existing[0]
		if !task.HasConnection(memory.ID, storage.ConnExistingTask) {
			e.appendConnection(task, memory, storage.Connection{
				MemoryID:     memory.ID,
				MemorySerial: memory.Serial,
				Type:         storage.ConnExistingTask,
				Relevance:    1.0,
				CreatedAt:    now,
			})
			task.UpdatedAt = now
			if err := e.persist(ctx, task, memory); err != nil {
				return failure(action.Type, "%v", err)
			}
		}
		return &Result{
			Success: true,
			Action:  action.Type.String(),
			Task:    task,
			Message: fmt.Sprintf("linked memory to existing task %s instead of creating a duplicate", task.Serial),
		}
	}

	category := action.Category
	if category == "" {
		category = memory.Category
	}
	priority := action.Priority
	if priority == "" {
		priority = storage.PriorityMedium
	}

	serial, err := e.tasks.NextSerial(ctx, memory.Project, category)
	if err != nil {
		return failure(action.Type, "serial allocation failed: %v", err)
	}

	task := &storage.Task{
		ID:          e.node.Generate().Int64(),
		Serial:      serial,
		Title:       title,
		Description: memory.Content,
		Status:      storage.StatusTodo,
		Priority:    priority,
		Category:    category,
		Project:     memory.Project,
		Tags:        append([]string(nil), memory.Tags...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	e.appendConnection(task, memory, storage.Connection{
		MemoryID:     memory.ID,
		MemorySerial: memory.Serial,
		Type:         storage.ConnCreationTrigger,
		Relevance:    1.0,
		CreatedAt:    now,
	})

	if err := e.persist(ctx, task, memory); err != nil {
		return failure(action.Type, "%v", err)
	}

	return &Result{
		Success: true,
		Action:  action.Type.String(),
		Task:    task,
		Message: fmt.Sprintf("created task %s", task.Serial),
	}
}

// executeUpdate applies a progress note and an optional status change to
// the first eligible task.
func (e *Executor) executeUpdate(ctx context.Context, action Action, memory *storage.Memory, relevantTasks []*storage.Task) *Result {
	task := SelectBestTask(relevantTasks, ActionUpdate)
	if task == nil {
		return failure(action.Type, "no eligible task to update")
	}
	if task.Status == storage.StatusDone {
		return failure(action.Type, "task %s is already done", task.Serial)
	}

	result := &Result{Success: true, Action: action.Type.String()}
	now := e.now()

	if action.TargetStatus != "" && action.TargetStatus != task.Status {
		vr := e.validator.ValidateStatusChange(ctx, task, action.TargetStatus, workflow.Context{Now: now})
		if !vr.Valid {
			return failure(action.Type, "status change rejected: %s", strings.Join(vr.BlockingIssues, "; "))
		}
		result.Warnings = append(result.Warnings, vr.Warnings...)
		task.Status = action.TargetStatus
	}

	if action.ProgressNote != "" {
		task.Description = strings.TrimRight(task.Description, "\n") + "\n\n" + action.ProgressNote
	}

	// A memory already linked under any type is not re-linked on update.
	if !task.LinksMemory(memory.ID) {
		e.appendConnection(task, memory, storage.Connection{
			MemoryID:     memory.ID,
			MemorySerial: memory.Serial,
			Type:         storage.ConnProgressUpdate,
			Relevance:    0.9,
			CreatedAt:    now,
		})
	}

	task.UpdatedAt = now
	if err := e.persist(ctx, task, memory); err != nil {
		return failure(action.Type, "%v", err)
	}

	result.Task = task
	result.Message = fmt.Sprintf("updated task %s", task.Serial)
	return result
}

// executeComplete marks the first eligible task done and always records
// completion evidence, even when the memory already carries links of other
// types to the task.
func (e *Executor) executeComplete(ctx context.Context, action Action, memory *storage.Memory, relevantTasks []*storage.Task) *Result {
	task := SelectBestTask(relevantTasks, ActionComplete)
	if task == nil {
		return failure(action.Type, "no eligible task to complete")
	}
	if task.Status == storage.StatusDone {
		return failure(action.Type, "task %s is already done", task.Serial)
	}

	now := e.now()
	vr := e.validator.ValidateStatusChange(ctx, task, storage.StatusDone, workflow.Context{
		ForceComplete: action.ForceComplete,
		Now:           now,
	})
	if !vr.Valid {
		return failure(action.Type, "completion rejected: %s", strings.Join(vr.BlockingIssues, "; "))
	}

	result := &Result{Success: true, Action: action.Type.String()}
	result.Warnings = append(result.Warnings, vr.Warnings...)

	task.Status = storage.StatusDone
	task.CompletedAt = &now
	task.UpdatedAt = now

	if !task.HasConnection(memory.ID, storage.ConnCompletionEvidence) {
		e.appendConnection(task, memory, storage.Connection{
			MemoryID:     memory.ID,
			MemorySerial: memory.Serial,
			Type:         storage.ConnCompletionEvidence,
			Relevance:    1.0,
			CreatedAt:    now,
		})
	}

	if err := e.persist(ctx, task, memory); err != nil {
		return failure(action.Type, "%v", err)
	}

	if e.summary != nil {
		if err := e.summary.WriteCompletionSummary(ctx, task, memory); err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("completion summary write-back failed: %v", err))
		}
	}

	result.Task = task
	result.Message = fmt.Sprintf("completed task %s", task.Serial)
	return result
}

// executeBlock marks the first eligible task blocked with the stated reason.
func (e *Executor) executeBlock(ctx context.Context, action Action, memory *storage.Memory, relevantTasks []*storage.Task) *Result {
	task := SelectBestTask(relevantTasks, ActionBlock)
	if task == nil {
		return failure(action.Type, "no eligible task to block")
	}
	if task.Status == storage.StatusDone {
		return failure(action.Type, "task %s is already done", task.Serial)
	}

	now := e.now()
	vr := e.validator.ValidateStatusChange(ctx, task, storage.StatusBlocked, workflow.Context{
		Reason: action.Reason,
		Now:    now,
	})
	if !vr.Valid {
		return failure(action.Type, "blocking rejected: %s", strings.Join(vr.BlockingIssues, "; "))
	}

	result := &Result{Success: true, Action: action.Type.String()}
	result.Warnings = append(result.Warnings, vr.Warnings...)

	task.Status = storage.StatusBlocked
	task.UpdatedAt = now

	if !task.HasConnection(memory.ID, storage.ConnBlockingReason) {
		e.appendConnection(task, memory, storage.Connection{
			MemoryID:     memory.ID,
			MemorySerial: memory.Serial,
			Type:         storage.ConnBlockingReason,
			Relevance:    0.9,
			CreatedAt:    now,
			Notes:        action.Reason,
		})
	}

	if err := e.persist(ctx, task, memory); err != nil {
		return failure(action.Type, "%v", err)
	}

	result.Task = task
	result.Message = fmt.Sprintf("blocked task %s", task.Serial)
	return result
}

// appendConnection appends the link to the task and mirrors it onto the
// memory record.
func (e *Executor) appendConnection(task *storage.Task, memory *storage.Memory, conn storage.Connection) {
	task.Connections = append(task.Connections, conn)
	if !memory.HasTaskRef(task.ID, conn.Type) {
		memory.TaskRefs = append(memory.TaskRefs, storage.TaskRef{
			TaskID:     task.ID,
			TaskSerial: task.Serial,
			Type:       conn.Type,
			Relevance:  conn.Relevance,
			CreatedAt:  conn.CreatedAt,
		})
	}
}

// persist saves the task and then the memory write-back.
func (e *Executor) persist(ctx context.Context, task *storage.Task, memory *storage.Memory) error {
	if err := e.tasks.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("task save failed: %w", err)
	}
	if err := e.memories.SaveMemory(ctx, memory); err != nil {
		return fmt.Errorf("memory write-back failed: %w", err)
	}
	return nil
}

// deriveTitle turns memory content into a short task title.
func deriveTitle(content string) string {
	title := strings.TrimSpace(content)
	if i := strings.IndexAny(title, "\n.!?"); i > 0 {
		title = title[:i]
	}
	if len(title) > 80 {
		title = strings.TrimSpace(title[:80])
	}
	return title
}
