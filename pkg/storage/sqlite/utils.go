package sqlite

import (
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/taskmem-labs/taskmem-go/pkg/storage"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*storage.Task, error) {
	var (
		task        storage.Task
		description sql.NullString
		category    sql.NullString
		project     sql.NullString
		tagsJSON    sql.NullString
		completedAt sql.NullTime
		subtasks    sql.NullString
		connections sql.NullString
		status      string
		priority    string
	)

	err := row.Scan(
		&task.ID, &task.Serial, &task.Title, &description, &status, &priority,
		&category, &project, &tagsJSON, &task.CreatedAt, &task.UpdatedAt,
		&completedAt, &task.ParentTask, &subtasks, &connections,
	)
	if err != nil {
		return nil, err
	}

	task.Description = description.String
	task.Status = storage.Status(status)
	task.Priority = storage.Priority(priority)
	task.Category = category.String
	task.Project = project.String
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}
	if err := decodeJSON(tagsJSON.String, &task.Tags); err != nil {
		return nil, err
	}
	if err := decodeJSON(subtasks.String, &task.Subtasks); err != nil {
		return nil, err
	}
	if err := decodeJSON(connections.String, &task.Connections); err != nil {
		return nil, err
	}

	return &task, nil
}

func scanTasks(rows *sql.Rows) ([]*storage.Task, error) {
	var tasks []*storage.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanMemory(row rowScanner) (*storage.Memory, error) {
	var (
		memory   storage.Memory
		serial   sql.NullString
		tagsJSON sql.NullString
		category sql.NullString
		project  sql.NullString
		refsJSON sql.NullString
	)

	err := row.Scan(
		&memory.ID, &serial, &memory.Content, &tagsJSON,
		&category, &project, &memory.CreatedAt, &refsJSON,
	)
	if err != nil {
		return nil, err
	}

	memory.Serial = serial.String
	memory.Category = category.String
	memory.Project = project.String
	if err := decodeJSON(tagsJSON.String, &memory.Tags); err != nil {
		return nil, err
	}
	if err := decodeJSON(refsJSON.String, &memory.TaskRefs); err != nil {
		return nil, err
	}

	return &memory, nil
}

func scanMemories(rows *sql.Rows) ([]*storage.Memory, error) {
	var memories []*storage.Memory
	for rows.Next() {
		memory, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, memory)
	}
	return memories, rows.Err()
}

func encodeTaskLists(task *storage.Task) (tags, subtasks, connections string, err error) {
	if tags, err = encodeJSON(task.Tags); err != nil {
		return
	}
	if subtasks, err = encodeJSON(task.Subtasks); err != nil {
		return
	}
	connections, err = encodeJSON(task.Connections)
	return
}

func encodeMemoryLists(memory *storage.Memory) (tags, refs string, err error) {
	if tags, err = encodeJSON(memory.Tags); err != nil {
		return
	}
	refs, err = encodeJSON(memory.TaskRefs)
	return
}

func encodeJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeJSON(s string, v interface{}) error {
	if s == "" || s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

// placeholders returns n comma-separated "?" markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// tagClause builds an OR chain of LIKE matches against the JSON tags column.
func tagClause(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "tags LIKE ?"
	}
	return strings.Join(parts, " OR ")
}
