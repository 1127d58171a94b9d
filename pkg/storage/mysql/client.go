// Package mysql provides the MySQL implementation of the task and memory
// stores. It also works against MySQL-compatible databases such as OceanBase
// and MariaDB.
//
// List-valued fields (tags, subtasks, connections) are stored as JSON text
// columns.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/taskmem-labs/taskmem-go/pkg/storage"
)

// Client implements storage.Store using MySQL as the backend.
type Client struct {
	db     *sql.DB
	prefix string
}

// Config contains MySQL configuration.
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	TablePrefix string
}

// NewClient creates a new MySQL store client and initializes the schema.
func NewClient(cfg *Config) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
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
				tags TEXT,
				created_at DATETIME(6) NOT NULL,
				updated_at DATETIME(6) NOT NULL,
				completed_at DATETIME(6),
				parent_task BIGINT DEFAULT 0,
				subtasks TEXT,
				connections TEXT,
				INDEX idx_project_status (project, status)
			)
		`, c.tasksTable()),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGINT PRIMARY KEY,
				serial VARCHAR(64),
				content TEXT NOT NULL,
				tags TEXT,
				category VARCHAR(255),
				project VARCHAR(255),
				created_at DATETIME(6) NOT NULL,
				task_refs TEXT,
				INDEX idx_project (project)
			)
		`, c.memoriesTable()),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				project VARCHAR(191) NOT NULL,
				category VARCHAR(191) NOT NULL,
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
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, taskColumns, c.tasksTable())

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
		REPLACE INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
		query += " AND project = ?"
		args = append(args, filters.Project)
	}
	if filters.Category != "" {
		query += " AND category = ?"
		args = append(args, filters.Category)
	}
	if filters.Title != "" {
		query += " AND title = ?"
		args = append(args, filters.Title)
	}
	if len(filters.Statuses) > 0 {
		query += " AND status IN (" + placeholders(len(filters.Statuses)) + ")"
		for _, s := range filters.Statuses {
			args = append(args, string(s))
		}
	}
	query += " ORDER BY created_at DESC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
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
		WHERE title LIKE ? OR description LIKE ?
		ORDER BY created_at DESC
	`, taskColumns, c.tasksTable())

	pattern := "%" + text + "%"
	rows, err := c.db.QueryContext(ctx, query, pattern, pattern)
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
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("NextSerial: %w", err)
	}
	defer tx.Rollback()

	upsert := fmt.Sprintf(`
		INSERT INTO %s (project, category, seq) VALUES (?, ?, 1)
		ON DUPLICATE KEY UPDATE seq = seq + 1
	`, c.serialsTable())
	if _, err := tx.ExecContext(ctx, upsert, project, category); err != nil {
		return "", fmt.Errorf("NextSerial: %w", err)
	}

	var seq int64
	sel := fmt.Sprintf(`SELECT seq FROM %s WHERE project = ? AND category = ?`, c.serialsTable())
	if err := tx.QueryRowContext(ctx, sel, project, category).Scan(&seq); err != nil {
		return "", fmt.Errorf("NextSerial: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("NextSerial: %w", err)
	}

	return storage.FormatSerial(project, category, seq), nil
}

// GetMemory returns the memory with the given ID.
func (c *Client) GetMemory(ctx context.Context, id int64) (*storage.Memory, error) {
	query := fmt.Sprintf(`
		SELECT id, serial, content, tags, category, project, created_at, task_refs
		FROM %s WHERE id = ?
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
		REPLACE INTO %s (id, serial, content, tags, category, project, created_at, task_refs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
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
		query += " AND project = ?"
		args = append(args, q.Project)
	}
	if q.Text != "" {
		query += " AND content LIKE ?"
		args = append(args, "%"+q.Text+"%")
	}
	if len(q.Tags) > 0 {
		parts := make([]string, len(q.Tags))
		for i, tag := range q.Tags {
			parts[i] = "tags LIKE ?"
			args = append(args, `%"`+tag+`"%`)
		}
		query += " AND (" + strings.Join(parts, " OR ") + ")"
	}
	query += " ORDER BY created_at DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
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
