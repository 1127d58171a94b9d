package core_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmem-labs/taskmem-go/pkg/core"
	"github.com/taskmem-labs/taskmem-go/pkg/executor"
	"github.com/taskmem-labs/taskmem-go/pkg/linking"
	"github.com/taskmem-labs/taskmem-go/pkg/storage"
	"github.com/taskmem-labs/taskmem-go/pkg/workflow"
)

func newTestClient(t *testing.T) *core.Client {
	t.Helper()
	client, err := core.NewClient(&core.Config{
		Storage: core.StorageConfig{
			Provider: "sqlite",
			Config: map[string]interface{}{
				"db_path": filepath.Join(t.TempDir(), "engine_test.db"),
			},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCreateTaskAssignsIdentifiers(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	task := &storage.Task{
		Title:    "Fix OAuth token refresh",
		Category: "code",
		Project:  "webshop",
	}
	require.NoError(t, client.CreateTask(ctx, task))

	assert.NotZero(t, task.ID)
	assert.Equal(t, "WEBS-C0001", task.Serial)
	assert.Equal(t, storage.StatusTodo, task.Status)
	assert.Equal(t, storage.PriorityMedium, task.Priority)

	got, err := client.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Title, got.Title)

	_, err = client.GetTask(ctx, task.ID+1)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAutoLinkPersistsBothSides(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	memory := &storage.Memory{
		Content:  "OAuth token refresh fails when clock skew exceeds the limit",
		Tags:     []string{"oauth"},
		Category: "code",
		Project:  "webshop",
	}
	require.NoError(t, client.SaveMemory(ctx, memory))

	task := &storage.Task{
		Title:       "Fix OAuth token refresh",
		Description: "token refresh fails under clock skew",
		Category:    "code",
		Project:     "webshop",
		Tags:        []string{"oauth", "mobile"},
	}
	require.NoError(t, client.CreateTask(ctx, task))

	connections, err := client.AutoLink(ctx, task.ID, linking.StageCreation)
	require.NoError(t, err)
	require.Len(t, connections, 1)
	assert.Equal(t, storage.ConnCreationTrigger, connections[0].Type)

	// Both sides of the link are durable.
	gotTask, err := client.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, gotTask.Connections, 1)
	assert.Equal(t, memory.ID, gotTask.Connections[0].MemoryID)

	gotMemory, err := client.GetMemory(ctx, memory.ID)
	require.NoError(t, err)
	require.Len(t, gotMemory.TaskRefs, 1)
	assert.Equal(t, task.ID, gotMemory.TaskRefs[0].TaskID)

	// Re-running discovery adds nothing.
	again, err := client.AutoLink(ctx, task.ID, linking.StageCreation)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestObserveActivityPersistsCapturedMemory(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	// A high-importance success signal captures on first observation.
	memory, captured, err := client.ObserveActivity(ctx, "webshop",
		"Fixed the retry storm, all tests pass after adding the circuit breaker")
	require.NoError(t, err)
	require.True(t, captured)
	require.NotNil(t, memory)

	assert.NotZero(t, memory.ID)
	assert.Equal(t, "code", memory.Category)
	assert.Contains(t, memory.Content, "circuit breaker")

	got, err := client.GetMemory(ctx, memory.ID)
	require.NoError(t, err)
	assert.Equal(t, memory.Serial, got.Serial)
	assert.Equal(t, 0, client.ActiveSessions())
}

func TestValidateStatusChangeThroughClient(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	task := &storage.Task{Title: "Fix OAuth token refresh", Project: "webshop", Category: "code"}
	require.NoError(t, client.CreateTask(ctx, task))

	result, err := client.ValidateStatusChange(ctx, task.ID, storage.StatusTodo, workflow.Context{})
	require.NoError(t, err)
	assert.False(t, result.Valid)

	result, err = client.ValidateStatusChange(ctx, task.ID, storage.StatusInProgress, workflow.Context{})
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "execution", result.Analysis.Stage)
}

func TestExecuteCompleteWritesSummaryBack(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	task := &storage.Task{
		Title:       "Fix OAuth token refresh",
		Description: "token refresh fails under clock skew, tested against staging",
		Category:    "code",
		Project:     "webshop",
	}
	require.NoError(t, client.CreateTask(ctx, task))

	memory := &storage.Memory{
		Content:  "Padded the expiry check, the refresh flow survives 60s of clock skew now",
		Category: "code",
		Project:  "webshop",
	}
	require.NoError(t, client.SaveMemory(ctx, memory))

	decision := client.ShouldExecute("complete", 0.9, memory)
	require.True(t, decision.Allowed)
	assert.True(t, decision.AutoApprove)

	result, err := client.Execute(ctx, executor.Action{
		Type:       executor.ActionComplete,
		Confidence: 0.9,
	}, memory.ID)
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	gotTask, err := client.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusDone, gotTask.Status)
	require.NotNil(t, gotTask.CompletedAt)

	// The completion note lands on the triggering memory.
	gotMemory, err := client.GetMemory(ctx, memory.ID)
	require.NoError(t, err)
	assert.Contains(t, gotMemory.Content, "[completed "+gotTask.Serial+"]")

	stats, err := client.Stats(ctx, "webshop")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTasks)
	assert.Equal(t, 1, stats.TasksByStatus[storage.StatusDone])
	assert.Equal(t, 1, stats.Connections)
}

func TestChangeStatusAppliesValidTransitions(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	task := &storage.Task{Title: "Fix OAuth token refresh", Project: "webshop", Category: "code"}
	require.NoError(t, client.CreateTask(ctx, task))

	result, err := client.ChangeStatus(ctx, task.ID, storage.StatusInProgress, workflow.Context{})
	require.NoError(t, err)
	assert.True(t, result.Valid)

	got, err := client.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusInProgress, got.Status)

	// Same-status requests never apply.
	result, err = client.ChangeStatus(ctx, task.ID, storage.StatusInProgress, workflow.Context{})
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	assert.False(t, result.Valid)
}

func TestChangeStatusOnDoneTask(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	task := &storage.Task{
		Title:       "Fix OAuth token refresh",
		Description: "token refresh fails under clock skew, tested against staging",
		Project:     "webshop",
		Category:    "code",
	}
	require.NoError(t, client.CreateTask(ctx, task))

	_, err := client.ChangeStatus(ctx, task.ID, storage.StatusDone, workflow.Context{})
	require.NoError(t, err)

	got, err := client.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)

	// Blocking a finished task is the one illegal edge out of done.
	_, err = client.ChangeStatus(ctx, task.ID, storage.StatusBlocked, workflow.Context{})
	assert.ErrorIs(t, err, core.ErrTaskDone)

	// Re-opening is allowed.
	_, err = client.ChangeStatus(ctx, task.ID, storage.StatusTodo, workflow.Context{})
	require.NoError(t, err)
}

func TestCreateTaskRejectsDuplicateTitle(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	task := &storage.Task{Title: "Fix OAuth token refresh", Project: "webshop", Category: "code"}
	require.NoError(t, client.CreateTask(ctx, task))

	dup := &storage.Task{Title: "Fix OAuth token refresh", Project: "webshop", Category: "code"}
	err := client.CreateTask(ctx, dup)
	assert.ErrorIs(t, err, core.ErrDuplicateWork)
	assert.Contains(t, err.Error(), task.Serial)

	// The same title in another project is unrelated work.
	other := &storage.Task{Title: "Fix OAuth token refresh", Project: "mobileapp", Category: "code"}
	require.NoError(t, client.CreateTask(ctx, other))
}

func TestStorageFailuresCarrySentinel(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, client.Close())

	_, err := client.ListTasks(context.Background(), storage.TaskFilters{})
	assert.ErrorIs(t, err, core.ErrStorageOperation)
}

func TestSimilaritySetupFailureCarriesSentinel(t *testing.T) {
	_, err := core.NewClient(&core.Config{
		Storage: core.StorageConfig{
			Provider: "sqlite",
			Config: map[string]interface{}{
				"db_path": filepath.Join(t.TempDir(), "similarity_test.db"),
			},
		},
		Similarity: &core.SimilarityConfig{Provider: "openai"},
	})
	assert.ErrorIs(t, err, core.ErrSimilarityOperation)
}
