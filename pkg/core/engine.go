package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/taskmem-labs/taskmem-go/pkg/classifier"
	"github.com/taskmem-labs/taskmem-go/pkg/executor"
	"github.com/taskmem-labs/taskmem-go/pkg/linking"
	"github.com/taskmem-labs/taskmem-go/pkg/similarity"
	"github.com/taskmem-labs/taskmem-go/pkg/similarity/openai"
	"github.com/taskmem-labs/taskmem-go/pkg/storage"
	"github.com/taskmem-labs/taskmem-go/pkg/storage/mysql"
	"github.com/taskmem-labs/taskmem-go/pkg/storage/postgres"
	"github.com/taskmem-labs/taskmem-go/pkg/storage/sqlite"
	"github.com/taskmem-labs/taskmem-go/pkg/workflow"
)

// Client is the top-level entry point. It owns the store, the classifier
// and session manager, the linker, the validator and the executor, and
// exposes the full engine surface through a single handle.
type Client struct {
	config *Config

	store      storage.Store
	node       *snowflake.Node
	classifier *classifier.Classifier
	sessions   *classifier.SessionManager
	linker     *linking.Linker
	validator  *workflow.Validator
	executor   *executor.Executor
}

// NewClient creates a fully wired engine from the configuration.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, NewEngineError("NewClient", fmt.Errorf("%w: config is nil", ErrInvalidConfig))
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := initStorage(&config.Storage)
	if err != nil {
		return nil, NewEngineError("NewClient", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		store.Close()
		return nil, NewEngineError("NewClient", err)
	}

	rules := classifier.DefaultRules()
	if config.Classifier.RulesPath != "" {
		rules, err = classifier.LoadRules(config.Classifier.RulesPath)
		if err != nil {
			store.Close()
			return nil, NewEngineError("NewClient", err)
		}
	}
	cl, err := classifier.New(rules)
	if err != nil {
		store.Close()
		return nil, NewEngineError("NewClient", err)
	}

	sessions := classifier.NewSessionManager(cl, classifier.CaptureConfig{
		MinElapsed:        time.Duration(config.Classifier.CaptureMinElapsedMinutes) * time.Minute,
		MinActivities:     config.Classifier.CaptureMinActivities,
		ComplexActivities: config.Classifier.CaptureComplexActivities,
		MaxElapsed:        time.Duration(config.Classifier.CaptureMaxElapsedMinutes) * time.Minute,
	})

	semantic, err := initSimilarity(config.Similarity)
	if err != nil {
		store.Close()
		return nil, NewEngineError("NewClient", err)
	}

	linker := linking.New(store, semantic, linking.Config{
		RelevanceThreshold:  config.Linking.RelevanceThreshold,
		MaxLinks:            config.Linking.MaxLinks,
		CrossProject:        config.Linking.CrossProject,
		RecencyHalfLifeDays: config.Linking.RecencyHalfLifeDays,
	})

	validator := workflow.New(store, workflow.Config{
		StaleDays:             config.Workflow.StaleDays,
		InProgressReviewDays:  config.Workflow.InProgressReviewDays,
		FastCompletionMinutes: config.Workflow.FastCompletionMinutes,
		LowPriorityFastHours:  config.Workflow.LowPriorityFastHours,
	})

	client := &Client{
		config:     config,
		store:      store,
		node:       node,
		classifier: cl,
		sessions:   sessions,
		linker:     linker,
		validator:  validator,
	}
	client.executor = executor.New(store, store, validator, node,
		&completionSummaryWriter{store: store}, executor.Config{
			MinConfidence:          config.Executor.MinConfidence,
			AutoExecuteThreshold:   config.Executor.AutoExecuteThreshold,
			MinCreateContentLength: config.Executor.MinCreateContentLength,
		})

	return client, nil
}

// initStorage creates the store backend from provider-keyed configuration.
func initStorage(config *StorageConfig) (storage.Store, error) {
	switch config.Provider {
	case "sqlite":
		return sqlite.NewClient(&sqlite.Config{
			DBPath:      getStringConfig(config.Config, "db_path", "./taskmem.db"),
			TablePrefix: getStringConfig(config.Config, "table_prefix", ""),
		})
	case "postgres":
		return postgres.NewClient(&postgres.Config{
			Host:        getStringConfig(config.Config, "host", "localhost"),
			Port:        getIntConfig(config.Config, "port", 5432),
			User:        getStringConfig(config.Config, "user", "postgres"),
			Password:    getStringConfig(config.Config, "password", ""),
			DBName:      getStringConfig(config.Config, "db_name", "taskmem"),
			SSLMode:     getStringConfig(config.Config, "ssl_mode", "disable"),
			TablePrefix: getStringConfig(config.Config, "table_prefix", ""),
		})
	case "mysql":
		return mysql.NewClient(&mysql.Config{
			Host:        getStringConfig(config.Config, "host", "localhost"),
			Port:        getIntConfig(config.Config, "port", 3306),
			User:        getStringConfig(config.Config, "user", "root"),
			Password:    getStringConfig(config.Config, "password", ""),
			DBName:      getStringConfig(config.Config, "db_name", "taskmem"),
			TablePrefix: getStringConfig(config.Config, "table_prefix", ""),
		})
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", config.Provider)
	}
}

// initSimilarity creates the bounded semantic scorer, or nil when semantic
// scoring is not configured. A nil *similarity.Bounded is safe to use; the
// linker simply stays lexical.
func initSimilarity(config *SimilarityConfig) (*similarity.Bounded, error) {
	if config == nil {
		return nil, nil
	}
	provider, err := openai.NewClient(&openai.Config{
		APIKey:  config.APIKey,
		Model:   config.Model,
		BaseURL: config.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSimilarityOperation, err)
	}
	return similarity.NewBounded(provider, time.Duration(config.TimeoutMS)*time.Millisecond), nil
}

// Classify runs the content classifier over a single text.
func (c *Client) Classify(text string) classifier.Classification {
	return c.classifier.Classify(text)
}

// ObserveActivity feeds one activity into session tracking. When the
// accumulated session crosses a capture threshold, the synthesized memory
// is persisted and returned with ok=true; otherwise the activity is
// buffered and (nil, false, nil) is returned.
func (c *Client) ObserveActivity(ctx context.Context, project, text string) (*storage.Memory, bool, error) {
	captured, ok := c.sessions.Observe(text, time.Now())
	if !ok {
		return nil, false, nil
	}

	serial, err := c.store.NextSerial(ctx, project, captured.Category)
	if err != nil {
		return nil, false, NewEngineError("ObserveActivity", mapStoreErr(err))
	}

	memory := &storage.Memory{
		ID:        c.node.Generate().Int64(),
		Serial:    serial,
		Content:   captured.Title + "\n\n" + captured.Content,
		Tags:      captured.Tags,
		Category:  captured.Category,
		Project:   project,
		CreatedAt: time.Now(),
	}
	if err := c.store.SaveMemory(ctx, memory); err != nil {
		return nil, false, NewEngineError("ObserveActivity", mapStoreErr(err))
	}
	return memory, true, nil
}

// ActiveSessions reports how many work sessions are currently buffered.
func (c *Client) ActiveSessions() int {
	return c.sessions.ActiveSessions()
}

// AutoLink discovers relevant memories for the task, appends the new
// connections, persists the task and mirrors a task reference onto each
// linked memory. Calling it twice for the same lifecycle stage is a no-op
// the second time.
func (c *Client) AutoLink(ctx context.Context, taskID int64, stage linking.Stage) ([]storage.Connection, error) {
	task, err := c.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, NewEngineError("AutoLink", mapStoreErr(err))
	}

	added, err := c.linker.AutoLink(ctx, task, stage)
	if err != nil {
		return nil, NewEngineError("AutoLink", err)
	}
	if len(added) == 0 {
		return nil, nil
	}

	task.Connections = append(task.Connections, added...)
	task.UpdatedAt = time.Now()
	if err := c.store.SaveTask(ctx, task); err != nil {
		return nil, NewEngineError("AutoLink", mapStoreErr(err))
	}

	for _, conn := range added {
		memory, err := c.store.GetMemory(ctx, conn.MemoryID)
		if err != nil {
			continue
		}
		if memory.HasTaskRef(task.ID, conn.Type) {
			continue
		}
		memory.TaskRefs = append(memory.TaskRefs, storage.TaskRef{
			TaskID:     task.ID,
			TaskSerial: task.Serial,
			Type:       conn.Type,
			Relevance:  conn.Relevance,
			CreatedAt:  conn.CreatedAt,
		})
		if err := c.store.SaveMemory(ctx, memory); err != nil {
			return added, NewEngineError("AutoLink", mapStoreErr(err))
		}
	}
	return added, nil
}

// ValidateStatusChange checks a status transition without applying it.
func (c *Client) ValidateStatusChange(ctx context.Context, taskID int64, newStatus storage.Status, vc workflow.Context) (*workflow.Result, error) {
	task, err := c.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, NewEngineError("ValidateStatusChange", mapStoreErr(err))
	}
	return c.validator.ValidateStatusChange(ctx, task, newStatus, vc), nil
}

// ChangeStatus validates a status transition and applies it when valid.
// Hard-invalid requests return ErrInvalidTransition, or ErrTaskDone when
// the task has already reached done; advisory findings never stop the
// change. The validation result is returned either way.
func (c *Client) ChangeStatus(ctx context.Context, taskID int64, newStatus storage.Status, vc workflow.Context) (*workflow.Result, error) {
	task, err := c.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, NewEngineError("ChangeStatus", mapStoreErr(err))
	}

	result := c.validator.ValidateStatusChange(ctx, task, newStatus, vc)
	if !result.Valid {
		reason := ""
		if len(result.BlockingIssues) > 0 {
			reason = result.BlockingIssues[0]
		}
		if task.Status == storage.StatusDone {
			return result, NewEngineError("ChangeStatus", fmt.Errorf("%w: %s", ErrTaskDone, reason))
		}
		return result, NewEngineError("ChangeStatus", fmt.Errorf("%w: %s", ErrInvalidTransition, reason))
	}

	now := time.Now()
	task.Status = newStatus
	task.UpdatedAt = now
	if newStatus == storage.StatusDone {
		task.CompletedAt = &now
	}
	if err := c.store.SaveTask(ctx, task); err != nil {
		return result, NewEngineError("ChangeStatus", mapStoreErr(err))
	}
	return result, nil
}

// ShouldExecute evaluates the action gate before Execute is invoked.
func (c *Client) ShouldExecute(actionName string, confidence float64, memory *storage.Memory) executor.Decision {
	return c.executor.ShouldExecute(actionName, confidence, memory)
}

// Execute performs an action triggered by the given memory. Candidate
// tasks are gathered from the memory's project, open work first.
func (c *Client) Execute(ctx context.Context, action executor.Action, memoryID int64) (*executor.Result, error) {
	memory, err := c.store.GetMemory(ctx, memoryID)
	if err != nil {
		return nil, NewEngineError("Execute", mapStoreErr(err))
	}

	tasks, err := c.store.ListTasks(ctx, storage.TaskFilters{
		Project:  memory.Project,
		Statuses: []storage.Status{storage.StatusTodo, storage.StatusInProgress, storage.StatusBlocked},
	})
	if err != nil {
		return nil, NewEngineError("Execute", mapStoreErr(err))
	}

	return c.executor.Execute(ctx, action, memory, tasks), nil
}

// CreateTask persists a new task with a generated ID and serial. A task
// with the same title already open in the project is reported as
// ErrDuplicateWork; callers link to the existing task instead.
func (c *Client) CreateTask(ctx context.Context, task *storage.Task) error {
	existing, err := c.store.ListTasks(ctx, storage.TaskFilters{
		Project: task.Project,
		Title:   task.Title,
		Limit:   1,
	})
	if err != nil {
		return NewEngineError("CreateTask", mapStoreErr(err))
	}
	if len(existing) > 0 {
		return NewEngineError("CreateTask",
			fmt.Errorf("%w: task %s has the same title", ErrDuplicateWork, existing[0].Serial))
	}

	if task.ID == 0 {
		task.ID = c.node.Generate().Int64()
	}
	if task.Serial == "" {
		serial, err := c.store.NextSerial(ctx, task.Project, task.Category)
		if err != nil {
			return NewEngineError("CreateTask", mapStoreErr(err))
		}
		task.Serial = serial
	}
	if task.Status == "" {
		task.Status = storage.StatusTodo
	}
	if task.Priority == "" {
		task.Priority = storage.PriorityMedium
	}
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	if err := c.store.SaveTask(ctx, task); err != nil {
		return NewEngineError("CreateTask", mapStoreErr(err))
	}
	return nil
}

// GetTask fetches a task by ID.
func (c *Client) GetTask(ctx context.Context, id int64) (*storage.Task, error) {
	task, err := c.store.GetTask(ctx, id)
	if err != nil {
		return nil, NewEngineError("GetTask", mapStoreErr(err))
	}
	return task, nil
}

// ListTasks fetches tasks matching the filters.
func (c *Client) ListTasks(ctx context.Context, filters storage.TaskFilters) ([]*storage.Task, error) {
	tasks, err := c.store.ListTasks(ctx, filters)
	if err != nil {
		return nil, NewEngineError("ListTasks", mapStoreErr(err))
	}
	return tasks, nil
}

// SaveMemory persists a memory, generating an ID and serial when absent.
func (c *Client) SaveMemory(ctx context.Context, memory *storage.Memory) error {
	if memory.ID == 0 {
		memory.ID = c.node.Generate().Int64()
	}
	if memory.Serial == "" {
		serial, err := c.store.NextSerial(ctx, memory.Project, memory.Category)
		if err != nil {
			return NewEngineError("SaveMemory", mapStoreErr(err))
		}
		memory.Serial = serial
	}
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now()
	}
	if err := c.store.SaveMemory(ctx, memory); err != nil {
		return NewEngineError("SaveMemory", mapStoreErr(err))
	}
	return nil
}

// GetMemory fetches a memory by ID.
func (c *Client) GetMemory(ctx context.Context, id int64) (*storage.Memory, error) {
	memory, err := c.store.GetMemory(ctx, id)
	if err != nil {
		return nil, NewEngineError("GetMemory", mapStoreErr(err))
	}
	return memory, nil
}

// SearchMemories fetches memories matching the query.
func (c *Client) SearchMemories(ctx context.Context, query storage.MemoryQuery) ([]*storage.Memory, error) {
	memories, err := c.store.SearchMemories(ctx, query)
	if err != nil {
		return nil, NewEngineError("SearchMemories", mapStoreErr(err))
	}
	return memories, nil
}

// Stats summarizes the stored work: task counts per status and the total
// number of task-memory connections.
type Stats struct {
	TotalTasks     int                    `json:"total_tasks"`
	TasksByStatus  map[storage.Status]int `json:"tasks_by_status"`
	Connections    int                    `json:"connections"`
	ActiveSessions int                    `json:"active_sessions"`
}

// Stats computes engine statistics for a project; an empty project covers
// everything.
func (c *Client) Stats(ctx context.Context, project string) (*Stats, error) {
	tasks, err := c.store.ListTasks(ctx, storage.TaskFilters{Project: project})
	if err != nil {
		return nil, NewEngineError("Stats", mapStoreErr(err))
	}

	stats := &Stats{
		TotalTasks:     len(tasks),
		TasksByStatus:  make(map[storage.Status]int),
		ActiveSessions: c.sessions.ActiveSessions(),
	}
	for _, task := range tasks {
		stats.TasksByStatus[task.Status]++
		stats.Connections += len(task.Connections)
	}
	return stats, nil
}

// Close releases the underlying store.
func (c *Client) Close() error {
	if err := c.store.Close(); err != nil {
		return NewEngineError("Close", err)
	}
	return nil
}

// mapStoreErr translates store failures into the package sentinels:
// missing records match ErrNotFound, everything else ErrStorageOperation.
func mapStoreErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrStorageOperation, err)
}

// completionSummaryWriter records a durable completion note on the
// triggering memory after a complete action succeeds.
type completionSummaryWriter struct {
	store storage.MemoryStore
}

func (w *completionSummaryWriter) WriteCompletionSummary(ctx context.Context, task *storage.Task, memory *storage.Memory) error {
	memory.Content += fmt.Sprintf("\n\n[completed %s] %s", task.Serial, task.Title)
	return w.store.SaveMemory(ctx, memory)
}

func getStringConfig(config map[string]interface{}, key, def string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return def
}

func getIntConfig(config map[string]interface{}, key string, def int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case float64:
		// JSON numbers decode as float64.
		return int(v)
	}
	return def
}
