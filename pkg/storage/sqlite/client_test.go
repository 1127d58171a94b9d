package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmem-labs/taskmem-go/pkg/storage"
	"github.com/taskmem-labs/taskmem-go/pkg/storage/sqlite"
)

func newClient(t *testing.T) *sqlite.Client {
	t.Helper()
	client, err := sqlite.NewClient(&sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "taskmem_test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestTaskRoundTrip(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	completed := time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC)
	task := &storage.Task{
		ID:          42,
		Serial:      "WEBS-C0001",
		Title:       "Fix OAuth token refresh",
		Description: "token refresh fails under clock skew",
		Status:      storage.StatusDone,
		Priority:    storage.PriorityHigh,
		Category:    "code",
		Project:     "webshop",
		Tags:        []string{"oauth", "mobile"},
		CreatedAt:   time.Date(2026, 1, 30, 9, 0, 0, 0, time.UTC),
		UpdatedAt:   completed,
		CompletedAt: &completed,
		Subtasks:    []int64{43, 44},
		Connections: []storage.Connection{{
			MemoryID:     100,
			MemorySerial: "WEBS-C0090",
			Type:         storage.ConnCompletionEvidence,
			Relevance:    1.0,
			MatchedTerms: []string{"oauth", "skew"},
			CreatedAt:    completed,
		}},
	}
	require.NoError(t, client.SaveTask(ctx, task))

	got, err := client.GetTask(ctx, 42)
	require.NoError(t, err)

	assert.Equal(t, task.Serial, got.Serial)
	assert.Equal(t, task.Title, got.Title)
	assert.Equal(t, storage.StatusDone, got.Status)
	assert.Equal(t, storage.PriorityHigh, got.Priority)
	assert.Equal(t, task.Tags, got.Tags)
	assert.Equal(t, task.Subtasks, got.Subtasks)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(completed))
	require.Len(t, got.Connections, 1)
	assert.Equal(t, storage.ConnCompletionEvidence, got.Connections[0].Type)
	assert.Equal(t, []string{"oauth", "skew"}, got.Connections[0].MatchedTerms)

	_, err = client.GetTask(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveTaskReplacesExisting(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	task := &storage.Task{
		ID:        1,
		Serial:    "WEBS-C0001",
		Title:     "Original title",
		Status:    storage.StatusTodo,
		Priority:  storage.PriorityMedium,
		Project:   "webshop",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, client.SaveTask(ctx, task))

	task.Title = "Updated title"
	task.Status = storage.StatusInProgress
	require.NoError(t, client.SaveTask(ctx, task))

	got, err := client.GetTask(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Updated title", got.Title)
	assert.Equal(t, storage.StatusInProgress, got.Status)
}

func TestListTasksFilters(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []*storage.Task{
		{ID: 1, Serial: "WEBS-C0001", Title: "A", Status: storage.StatusTodo, Priority: storage.PriorityMedium, Category: "code", Project: "webshop", CreatedAt: base, UpdatedAt: base},
		{ID: 2, Serial: "WEBS-C0002", Title: "B", Status: storage.StatusDone, Priority: storage.PriorityMedium, Category: "code", Project: "webshop", CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)},
		{ID: 3, Serial: "MOBI-C0001", Title: "C", Status: storage.StatusTodo, Priority: storage.PriorityMedium, Category: "code", Project: "mobileapp", CreatedAt: base.Add(2 * time.Hour), UpdatedAt: base.Add(2 * time.Hour)},
	}
	for _, task := range seed {
		require.NoError(t, client.SaveTask(ctx, task))
	}

	open, err := client.ListTasks(ctx, storage.TaskFilters{
		Project:  "webshop",
		Statuses: []storage.Status{storage.StatusTodo, storage.StatusInProgress},
	})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, int64(1), open[0].ID)

	byTitle, err := client.ListTasks(ctx, storage.TaskFilters{Title: "B"})
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, int64(2), byTitle[0].ID)

	// Newest first, capped by limit.
	all, err := client.ListTasks(ctx, storage.TaskFilters{Limit: 2})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(3), all[0].ID)
	assert.Equal(t, int64(2), all[1].ID)
}

func TestMemoryRoundTripAndSearch(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []*storage.Memory{
		{ID: 1, Serial: "WEBS-C0001", Content: "OAuth refresh notes", Tags: []string{"oauth"}, Category: "code", Project: "webshop", CreatedAt: base},
		{ID: 2, Serial: "WEBS-R0001", Content: "PKCE research summary", Tags: []string{"oauth", "research"}, Category: "research", Project: "webshop", CreatedAt: base.Add(time.Hour)},
		{ID: 3, Serial: "MOBI-C0001", Content: "Mobile build pipeline notes", Tags: []string{"ci"}, Category: "code", Project: "mobileapp", CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, memory := range seed {
		require.NoError(t, client.SaveMemory(ctx, memory))
	}

	got, err := client.GetMemory(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "PKCE research summary", got.Content)
	assert.Equal(t, []string{"oauth", "research"}, got.Tags)

	byProject, err := client.SearchMemories(ctx, storage.MemoryQuery{Project: "webshop"})
	require.NoError(t, err)
	assert.Len(t, byProject, 2)

	byText, err := client.SearchMemories(ctx, storage.MemoryQuery{Text: "research"})
	require.NoError(t, err)
	require.Len(t, byText, 1)
	assert.Equal(t, int64(2), byText[0].ID)

	byTag, err := client.SearchMemories(ctx, storage.MemoryQuery{Tags: []string{"ci"}})
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, int64(3), byTag[0].ID)

	_, err = client.GetMemory(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNextSerialSequencesPerScope(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	first, err := client.NextSerial(ctx, "webshop", "code")
	require.NoError(t, err)
	assert.Equal(t, "WEBS-C0001", first)

	second, err := client.NextSerial(ctx, "webshop", "code")
	require.NoError(t, err)
	assert.Equal(t, "WEBS-C0002", second)

	// Other scopes count independently.
	research, err := client.NextSerial(ctx, "webshop", "research")
	require.NoError(t, err)
	assert.Equal(t, "WEBS-R0001", research)

	other, err := client.NextSerial(ctx, "mobileapp", "code")
	require.NoError(t, err)
	assert.Equal(t, "MOBI-C0001", other)
}
