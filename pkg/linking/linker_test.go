package linking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmem-labs/taskmem-go/pkg/linking"
	"github.com/taskmem-labs/taskmem-go/pkg/storage"
)

// memoryStore is an in-memory MemoryStore for linker tests.
type memoryStore struct {
	memories []*storage.Memory
}

func (s *memoryStore) GetMemory(ctx context.Context, id int64) (*storage.Memory, error) {
	for _, m := range s.memories {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *memoryStore) SaveMemory(ctx context.Context, memory *storage.Memory) error {
	for i, m := range s.memories {
		if m.ID == memory.ID {
			s.memories[i] = memory
			return nil
		}
	}
	s.memories = append(s.memories, memory)
	return nil
}

func (s *memoryStore) SearchMemories(ctx context.Context, query storage.MemoryQuery) ([]*storage.Memory, error) {
	var out []*storage.Memory
	for _, m := range s.memories {
		if query.Project != "" && m.Project != query.Project {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func newTask() *storage.Task {
	return &storage.Task{
		ID:          1,
		Serial:      "WEBS-C0001",
		Title:       "Fix OAuth token refresh",
		Description: "token refresh fails under clock skew",
		Status:      storage.StatusTodo,
		Project:     "webshop",
		Tags:        []string{"oauth", "mobile"},
		CreatedAt:   time.Now(),
	}
}

func TestAutoLinkRanksAndFilters(t *testing.T) {
	now := time.Now()
	store := &memoryStore{memories: []*storage.Memory{
		{
			ID:        10,
			Serial:    "WEBS-C0002",
			Content:   "OAuth token refresh fails when clock skew exceeds the limit",
			Tags:      []string{"oauth"},
			Category:  "code",
			Project:   "webshop",
			CreatedAt: now,
		},
		{
			ID:        11,
			Serial:    "WEBS-G0001",
			Content:   "Grocery list for the team offsite",
			Project:   "webshop",
			CreatedAt: now,
		},
		{
			// One weak term hit on a three-month-old memory scores
			// below the relevance cutoff.
			ID:        12,
			Serial:    "WEBS-G0002",
			Content:   "Notes about the token ceremony at the offsite",
			Project:   "webshop",
			CreatedAt: now.Add(-90 * 24 * time.Hour),
		},
		{
			ID:        13,
			Serial:    "MOBI-C0001",
			Content:   "OAuth token refresh fails when clock skew exceeds the limit",
			Tags:      []string{"oauth"},
			Category:  "code",
			Project:   "mobileapp",
			CreatedAt: now,
		},
	}}

	linker := linking.New(store, nil, linking.DefaultConfig())
	connections, err := linker.AutoLink(context.Background(), newTask(), linking.StageNone)
	require.NoError(t, err)

	// Only the strong same-project candidate qualifies: the grocery note
	// shares no terms, the old note scores too low, and the other
	// project is out of scope.
	require.Len(t, connections, 1)
	assert.Equal(t, int64(10), connections[0].MemoryID)
	assert.Equal(t, "WEBS-C0002", connections[0].MemorySerial)
	assert.Greater(t, connections[0].Relevance, 0.3)
	assert.Contains(t, connections[0].MatchedTerms, "oauth")
	assert.Contains(t, connections[0].MatchedTerms, "skew")
}

func TestAutoLinkIsIdempotent(t *testing.T) {
	store := &memoryStore{memories: []*storage.Memory{{
		ID:        10,
		Serial:    "WEBS-C0002",
		Content:   "OAuth token refresh fails when clock skew exceeds the limit",
		Tags:      []string{"oauth"},
		Category:  "code",
		Project:   "webshop",
		CreatedAt: time.Now(),
	}}}

	linker := linking.New(store, nil, linking.DefaultConfig())
	task := newTask()

	first, err := linker.AutoLink(context.Background(), task, linking.StageCreation)
	require.NoError(t, err)
	require.Len(t, first, 1)
	task.Connections = append(task.Connections, first...)

	second, err := linker.AutoLink(context.Background(), task, linking.StageCreation)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Len(t, task.Connections, 1)
}

func TestAutoLinkCapsAtMaxLinks(t *testing.T) {
	now := time.Now()
	store := &memoryStore{}
	for i := int64(0); i < 4; i++ {
		store.memories = append(store.memories, &storage.Memory{
			ID:        20 + i,
			Content:   "OAuth token refresh fails when clock skew exceeds the limit",
			Project:   "webshop",
			CreatedAt: now.Add(-time.Duration(i) * 24 * time.Hour),
		})
	}

	cfg := linking.DefaultConfig()
	cfg.MaxLinks = 2
	linker := linking.New(store, nil, cfg)

	connections, err := linker.AutoLink(context.Background(), newTask(), linking.StageNone)
	require.NoError(t, err)
	require.Len(t, connections, 2)

	// Equal lexical scores rank the fresher memory first.
	assert.Equal(t, int64(20), connections[0].MemoryID)
	assert.Equal(t, int64(21), connections[1].MemoryID)
	assert.GreaterOrEqual(t, connections[0].Relevance, connections[1].Relevance)
}

func TestAutoLinkStageBindsConnectionType(t *testing.T) {
	mem := &storage.Memory{
		ID:        10,
		Content:   "OAuth token refresh fails when clock skew exceeds the limit",
		Category:  "code",
		Project:   "webshop",
		CreatedAt: time.Now(),
	}

	cases := []struct {
		stage linking.Stage
		want  storage.ConnectionType
	}{
		{linking.StageCreation, storage.ConnCreationTrigger},
		{linking.StageProgress, storage.ConnProgressUpdate},
		{linking.StageCompletion, storage.ConnCompletionEvidence},
		{linking.StageBlocking, storage.ConnBlockingReason},
		{linking.StageNone, storage.ConnImplementation}, // code category
	}
	for _, tc := range cases {
		store := &memoryStore{memories: []*storage.Memory{mem}}
		linker := linking.New(store, nil, linking.DefaultConfig())

		connections, err := linker.AutoLink(context.Background(), newTask(), tc.stage)
		require.NoError(t, err)
		require.Len(t, connections, 1)
		assert.Equal(t, tc.want, connections[0].Type)
	}
}

func TestAutoLinkClassifiesResearchOutsideLifecycle(t *testing.T) {
	store := &memoryStore{memories: []*storage.Memory{{
		ID:        10,
		Content:   "Research notes comparing oauth token refresh strategies under clock skew",
		Category:  "research",
		Project:   "webshop",
		CreatedAt: time.Now(),
	}}}

	linker := linking.New(store, nil, linking.DefaultConfig())
	connections, err := linker.AutoLink(context.Background(), newTask(), linking.StageNone)
	require.NoError(t, err)
	require.Len(t, connections, 1)
	assert.Equal(t, storage.ConnResearch, connections[0].Type)
}

func TestAutoLinkCrossProject(t *testing.T) {
	store := &memoryStore{memories: []*storage.Memory{{
		ID:        13,
		Content:   "OAuth token refresh fails when clock skew exceeds the limit",
		Category:  "code",
		Project:   "mobileapp",
		CreatedAt: time.Now(),
	}}}

	cfg := linking.DefaultConfig()
	cfg.CrossProject = true
	linker := linking.New(store, nil, cfg)

	connections, err := linker.AutoLink(context.Background(), newTask(), linking.StageNone)
	require.NoError(t, err)
	assert.Len(t, connections, 1)
}
