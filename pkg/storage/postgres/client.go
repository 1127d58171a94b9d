// Package postgres provides the PostgreSQL implementation of the task and
// memory stores.
//
// List-valued fields (tags, subtasks, connections) are stored as JSONB
// columns; serial counters use an upsert with RETURNING so allocation is a
// single round trip.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/taskmem-labs/taskmem-go/pkg/storage"
)

// Client implements storage.Store using PostgreSQL as the backend.
type Client struct {
	db     *sql.DB
	prefix string
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	TablePrefix string
}

// NewClient creates a new PostgreSQL store client and initializes the schema.
func NewClient(cfg *Config) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	prefix := cfg.TablePrefix
	if prefix == "" {
		prefix = "taskmem"
	}

	client := &Client{db: db, prefix: prefix}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *Client) tasksTable() string    { return c.prefix + "_tasks" }
func (c *Client) memoriesTable() string { return c.prefix + "_memories" }
func (c *Client) serialsTable() string  { return c.prefix + "_serials" }

// initTables initializes the database table structure.
func (c *Client) initTables(ctx context.Context) error {
	queries := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGINT PRIMARY KEY,
				serial VARCHAR(64) NOT NULL UNIQUE,
				title TEXT NOT NULL,
				description TEXT,
				status VARCHAR(32) NOT NULL,
				priority VARCHAR(32) NOT NULL,
				category VARCHAR(255),
				project VARCHAR(255),
				tags JSONB,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL,
				completed_at TIMESTAMPTZ,
				parent_task BIGINT DEFAULT 0,
				subtasks JSONB,
				connections JSONB
			)
		`, c.tasksTable()),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS idx_%s_project_status ON %s(project, status)
		`, c.tasksTable(), c.tasksTable()),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGINT PRIMARY KEY,
				serial VARCHAR(64),
				content TEXT NOT NULL,
				tags JSONB,
				category VARCHAR(255),
				project VARCHAR(255),
				created_at TIMESTAMPTZ NOT NULL,
				task_refs JSONB
			)
		`, c.memoriesTable()),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS idx_%s_project ON %s(project)
		`, c.memoriesTable(), c.memoriesTable()),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				project VARCHAR(255) NOT NULL,
				category VARCHAR(255) NOT NULL,
				seq BIGINT NOT NULL,
				PRIMARY KEY (project, category)
			)
		`, c.serialsTable()),
	}

	for _, query := range queries {
		if _, err := c.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("initTables: %w", err)
		}
	}

	return nil
}

const taskColumns = `id, serial, title, description, status, priority, category, project,
	tags, created_at, updated_at, completed_at, parent_task, subtasks, connections`

// GetTask returns the task with the given ID.
func (c *Client) GetTask(ctx context.Context, id int64) (*storage.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, taskColumns, c.tasksTable())

	task, err := scanTask(c.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetTask: %w", err)
	}
	return task, nil
}

// SaveTask inserts or fully replaces a task record.
func (c *Client) SaveTask(ctx context.Context, task *storage.Task) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			serial = EXCLUDED.serial,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			category = EXCLUDED.category,
			project = EXCLUDED.project,
			tags = EXCLUDED.tags,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at,
			parent_task = EXCLUDED.parent_task,
			subtasks = EXCLUDED.subtasks,
			connections = EXCLUDED.connections
	`, c.tasksTable(), taskColumns)

	tagsJSON, subtasksJSON, connsJSON, err := encodeTaskLists(task)
	if err != nil {
		return fmt.Errorf("SaveTask: %w", err)
	}

	_, err = c.db.ExecContext(ctx, query,
		task.ID, task.Serial, task.Title, task.Description,
		string(task.Status), string(task.Priority), task.Category, task.Project,
		tagsJSON, task.CreatedAt, task.UpdatedAt, nullableTime(task.CompletedAt),
		task.ParentTask, subtasksJSON, connsJSON,
	)
	if err != nil {
		return fmt.Errorf("SaveTask: %w", err)
	}
	return nil
}

// ListTasks returns tasks matching the filters, newest first.
func (c *Client) ListTasks(ctx context.Context, filters storage.TaskFilters) ([]*storage.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE 1=1`, taskColumns, c.tasksTable())

	var args []interface{}
	if filters.Project != "" {
		args = append(args, filters.Project)
		query += " AND project = $" + strconv.Itoa(len(args))
	}
	if filters.Category != "" {
		args = append(args, filters.Category)
		query += " AND category = $" + strconv.Itoa(len(args))
	}
	if filters.Title != "" {
		args = append(args, filters.Title)
		query += " AND title = $" + strconv.Itoa(len(args))
	}
	if len(filters.Statuses) > 0 {
		marks := make([]string, len(filters.Statuses))
		for i, s := range filters.Statuses {
			args = append(args, string(s))
			marks[i] = "$" + strconv.Itoa(len(args))
		}
		query += " AND status IN (" + strings.Join(marks, ", ") + ")"
	}
	query += " ORDER BY created_at DESC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTasks: %w", err)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, fmt.Errorf("ListTasks: %w", err)
	}
	return tasks, nil
}

// SearchTasks returns tasks whose title or description contains text.
func (c *Client) SearchTasks(ctx context.Context, text string) ([]*storage.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE title ILIKE $1 OR description ILIKE $1
		ORDER BY created_at DESC
	`, taskColumns, c.tasksTable())

	rows, err := c.db.QueryContext(ctx, query, "%"+text+"%")
	if err != nil {
		return nil, fmt.Errorf("SearchTasks: %w", err)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, fmt.Errorf("SearchTasks: %w", err)
	}
	return tasks, nil
}

// NextSerial allocates the next serial for (project, category).
func (c *Client) NextSerial(ctx context.Context, project, category string) (string, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (project, category, seq) VALUES ($1, $2, 1)
		ON CONFLICT (project, category) DO UPDATE SET seq = %s.seq + 1
		RETURNING seq
	`, c.serialsTable(), c.serialsTable())

	var seq int64
	if err := c.db.QueryRowContext(ctx, query, project, category).Scan(&seq); err != nil {
		return "", fmt.Errorf("NextSerial: %w", err)
	}

	return storage.FormatSerial(project, category, seq), nil
}

// GetMemory returns the memory with the given ID.
func (c *Client) GetMemory(ctx context.Context, id int64) (*storage.Memory, error) {
	query := fmt.Sprintf(`
		SELECT id, serial, content, tags, category, project, created_at, task_refs
		FROM %s WHERE id = $1
	`, c.memoriesTable())

	memory, err := scanMemory(c.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetMemory: %w", err)
	}
	return memory, nil
}

// SaveMemory inserts or fully replaces a memory record.
func (c *Client) SaveMemory(ctx context.Context, memory *storage.Memory) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, serial, content, tags, category, project, created_at, task_refs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			serial = EXCLUDED.serial,
			content = EXCLUDED.content,
			tags = EXCLUDED.tags,
			category = EXCLUDED.category,
			project = EXCLUDED.project,
			task_refs = EXCLUDED.task_refs
	`, c.memoriesTable())

	tagsJSON, refsJSON, err := encodeMemoryLists(memory)
	if err != nil {
		return fmt.Errorf("SaveMemory: %w", err)
	}

	_, err = c.db.ExecContext(ctx, query,
		memory.ID, memory.Serial, memory.Content, tagsJSON,
		memory.Category, memory.Project, memory.CreatedAt, refsJSON,
	)
	if err != nil {
		return fmt.Errorf("SaveMemory: %w", err)
	}
	return nil
}

// SearchMemories returns memories matching the query, newest first.
func (c *Client) SearchMemories(ctx context.Context, q storage.MemoryQuery) ([]*storage.Memory, error) {
	query := fmt.Sprintf(`
		SELECT id, serial, content, tags, category, project, created_at, task_refs
		FROM %s WHERE 1=1
	`, c.memoriesTable())

	var args []interface{}
	if q.Project != "" {
		args = append(args, q.Project)
		query += " AND project = $" + strconv.Itoa(len(args))
	}
	if q.Text != "" {
		args = append(args, "%"+q.Text+"%")
		query += " AND content ILIKE $" + strconv.Itoa(len(args))
	}
	if len(q.Tags) > 0 {
		marks := make([]string, len(q.Tags))
		for i, tag := range q.Tags {
			args = append(args, tag)
			marks[i] = "tags ? $" + strconv.Itoa(len(args))
		}
		query += " AND (" + strings.Join(marks, " OR ") + ")"
	}
	query += " ORDER BY created_at DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("SearchMemories: %w", err)
	}
	defer rows.Close()

	memories, err := scanMemories(rows)
	if err != nil {
		return nil, fmt.Errorf("SearchMemories: %w", err)
	}
	return memories, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
