// Package storage defines the task and memory record types and the store
// interfaces the engine persists through.
//
// The engine itself never touches a database directly; it talks to a
// TaskStore and a MemoryStore. SQLite, PostgreSQL and MySQL implementations
// live in the subpackages. All implementations are expected to serialize
// writes per record: a read-modify-append of a connection list is the
// store's atomic unit, not the engine's.
package storage

import (
	"context"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	// StatusTodo marks a task that has not been started.
	StatusTodo Status = "todo"

	// StatusInProgress marks a task that is actively being worked on.
	StatusInProgress Status = "in_progress"

	// StatusDone marks a completed task. Done tasks are immutable to
	// update/block; only re-opening to todo/in_progress is permitted.
	StatusDone Status = "done"

	// StatusBlocked marks a task waiting on something external.
	StatusBlocked Status = "blocked"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusBlocked:
		return true
	}
	return false
}

// Priority is the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the four known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ConnectionType classifies how a memory relates to a task.
type ConnectionType string

const (
	// ConnCreationTrigger links the memory that caused a task to be created.
	ConnCreationTrigger ConnectionType = "creation_trigger"

	// ConnProgressUpdate links a memory recording progress on a task.
	ConnProgressUpdate ConnectionType = "progress_update"

	// ConnCompletionEvidence links the memory that evidences completion.
	ConnCompletionEvidence ConnectionType = "completion_evidence"

	// ConnBlockingReason links the memory explaining why a task is blocked.
	ConnBlockingReason ConnectionType = "blocking_reason"

	// ConnResearch links background research relevant to a task.
	ConnResearch ConnectionType = "research"

	// ConnImplementation links implementation notes relevant to a task.
	ConnImplementation ConnectionType = "implementation"

	// ConnReference links a loosely related memory kept for reference.
	ConnReference ConnectionType = "reference"

	// ConnExistingTask links a memory that matched an already-existing task
	// instead of creating a duplicate.
	ConnExistingTask ConnectionType = "existing_task"
)

// Connection is a typed, scored link from a task to a memory.
//
// A task holds at most one connection per (memory, type) pair; the same
// memory may carry connections of different types to the same task, for
// example a progress_update followed by a completion_evidence.
type Connection struct {
	// MemoryID is the linked memory's identifier.
	MemoryID int64 `json:"memory_id"`

	// MemorySerial is the linked memory's human-readable serial, if any.
	MemorySerial string `json:"memory_serial,omitempty"`

	// Type classifies the relationship.
	Type ConnectionType `json:"connection_type"`

	// Relevance is the link strength in [0,1].
	Relevance float64 `json:"relevance"`

	// MatchedTerms lists the terms that produced the lexical match.
	MatchedTerms []string `json:"matched_terms,omitempty"`

	// CreatedAt is when the connection was discovered or created.
	CreatedAt time.Time `json:"created_at"`

	// Notes carries free-form context, e.g. a blocking reason.
	Notes string `json:"notes,omitempty"`
}

// TaskRef is the mirror of a Connection written back onto a memory record,
// pointing at the task side of the link.
type TaskRef struct {
	// TaskID is the linked task's identifier.
	TaskID int64 `json:"task_id"`

	// TaskSerial is the linked task's serial.
	TaskSerial string `json:"task_serial,omitempty"`

	// Type classifies the relationship.
	Type ConnectionType `json:"connection_type"`

	// Relevance is the link strength in [0,1].
	Relevance float64 `json:"relevance"`

	// CreatedAt is when the link was created.
	CreatedAt time.Time `json:"created_at"`
}

// Task is a structured, stateful work item.
type Task struct {
	// ID is the unique identifier of the task.
	ID int64 `json:"id"`

	// Serial is the human-readable identifier, formatted as
	// <PROJECTCODE>-<CATEGORYCODE><4-digit-number>, monotonic per
	// (project, category).
	Serial string `json:"serial"`

	// Title is the short task title.
	Title string `json:"title"`

	// Description is the longer task body.
	Description string `json:"description,omitempty"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Priority is the urgency level.
	Priority Priority `json:"priority"`

	// Category groups tasks by kind of work (code, research, ...).
	Category string `json:"category,omitempty"`

	// Project scopes the task to a project.
	Project string `json:"project,omitempty"`

	// Tags are free-form labels.
	Tags []string `json:"tags,omitempty"`

	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the task was last modified.
	UpdatedAt time.Time `json:"updated_at"`

	// CompletedAt is when the task reached done (nil if never completed).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ParentTask references the parent task ID (0 if top-level).
	ParentTask int64 `json:"parent_task,omitempty"`

	// Subtasks lists child task IDs in creation order.
	Subtasks []int64 `json:"subtasks,omitempty"`

	// Connections lists memory links in append order. Discovery ranks a
	// fresh candidate set on every call; the persisted order is always
	// insertion order.
	Connections []Connection `json:"memory_connections,omitempty"`
}

// HasConnection reports whether the task already links the given memory
// with the given type.
func (t *Task) HasConnection(memoryID int64, typ ConnectionType) bool {
	for _, c := range t.Connections {
		if c.MemoryID == memoryID && c.Type == typ {
			return true
		}
	}
	return false
}

// LinksMemory reports whether the task links the given memory under any type.
func (t *Task) LinksMemory(memoryID int64) bool {
	for _, c := range t.Connections {
		if c.MemoryID == memoryID {
			return true
		}
	}
	return false
}

// Memory is an unstructured note record. The memory side is owned by its
// store; the engine only appends task references to it.
type Memory struct {
	// ID is the unique identifier of the memory.
	ID int64 `json:"id"`

	// Serial is the memory's human-readable serial, if the store assigns one.
	Serial string `json:"serial,omitempty"`

	// Content is the note text.
	Content string `json:"content"`

	// Tags are free-form labels.
	Tags []string `json:"tags,omitempty"`

	// Category groups memories by kind (code, research, ...).
	Category string `json:"category,omitempty"`

	// Project scopes the memory to a project.
	Project string `json:"project,omitempty"`

	// CreatedAt is when the memory was recorded.
	CreatedAt time.Time `json:"created_at"`

	// TaskRefs mirrors the task-side connections onto the memory record,
	// in append order.
	TaskRefs []TaskRef `json:"task_connections,omitempty"`
}

// HasTaskRef reports whether the memory already mirrors a link to the given
// task with the given type.
func (m *Memory) HasTaskRef(taskID int64, typ ConnectionType) bool {
	for _, r := range m.TaskRefs {
		if r.TaskID == taskID && r.Type == typ {
			return true
		}
	}
	return false
}

// TaskFilters narrows a ListTasks call. Zero values mean "no filter".
type TaskFilters struct {
	// Project restricts to a single project.
	Project string

	// Category restricts to a single category.
	Category string

	// Statuses restricts to the given statuses (empty = all).
	Statuses []Status

	// Title restricts to tasks with this exact title.
	Title string

	// Limit caps the number of results (0 = store default).
	Limit int
}

// MemoryQuery describes a lexical memory search.
type MemoryQuery struct {
	// Text is matched against memory content.
	Text string

	// Tags match memories carrying any of the given tags.
	Tags []string

	// Project restricts to a single project ("" = all projects).
	Project string

	// Limit caps the number of results (0 = store default).
	Limit int
}

// TaskStore persists task records and allocates serials.
type TaskStore interface {
	// GetTask returns the task with the given ID, or ErrNotFound.
	GetTask(ctx context.Context, id int64) (*Task, error)

	// SaveTask inserts or fully replaces a task record.
	SaveTask(ctx context.Context, task *Task) error

	// ListTasks returns tasks matching the filters, newest first.
	ListTasks(ctx context.Context, filters TaskFilters) ([]*Task, error)

	// SearchTasks returns tasks whose title or description contains text.
	SearchTasks(ctx context.Context, text string) ([]*Task, error)

	// NextSerial allocates the next serial for (project, category).
	// Serials are unique and strictly increasing per scope.
	NextSerial(ctx context.Context, project, category string) (string, error)
}

// MemoryStore persists memory records and serves candidate search.
type MemoryStore interface {
	// GetMemory returns the memory with the given ID, or ErrNotFound.
	GetMemory(ctx context.Context, id int64) (*Memory, error)

	// SaveMemory inserts or fully replaces a memory record.
	SaveMemory(ctx context.Context, memory *Memory) error

	// SearchMemories returns memories matching the query, newest first.
	SearchMemories(ctx context.Context, query MemoryQuery) ([]*Memory, error)
}

// Store combines both stores over one backend.
type Store interface {
	TaskStore
	MemoryStore

	// Close releases the underlying database resources.
	Close() error
}
