// Package linking discovers which memories relate to a task, ranks them by
// relevance, and classifies the relationship type.
//
// Discovery is lexical first: candidates come from term and tag overlap
// between the task and each memory, scoped to the task's project unless
// cross-project linking is enabled. A semantic-similarity collaborator, when
// configured, blends into the score; its absence or failure silently falls
// back to lexical-only scoring.
package linking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/taskmem-labs/taskmem-go/pkg/similarity"
	"github.com/taskmem-labs/taskmem-go/pkg/storage"
)

// Stage identifies the lifecycle action on whose behalf discovery runs.
// Some connection types are only assignable at particular stages.
type Stage int

const (
	// StageNone is background discovery outside any lifecycle action.
	StageNone Stage = iota

	// StageCreation runs while a task is being created.
	StageCreation

	// StageProgress runs while a task is being updated.
	StageProgress

	// StageCompletion runs while a task is being completed.
	StageCompletion

	// StageBlocking runs while a task is being blocked.
	StageBlocking
)

// Config holds the discovery tunables.
type Config struct {
	// RelevanceThreshold discards candidates scoring at or below it.
	RelevanceThreshold float64

	// MaxLinks caps how many connections one call may produce.
	MaxLinks int

	// CrossProject widens candidate search beyond the task's project.
	CrossProject bool

	// RecencyHalfLifeDays controls the recency decay signal.
	RecencyHalfLifeDays float64

	// CandidateLimit caps how many memories are fetched for scoring.
	CandidateLimit int
}

// DefaultConfig returns the standard discovery tunables.
func DefaultConfig() Config {
	return Config{
		RelevanceThreshold:  0.3,
		MaxLinks:            5,
		RecencyHalfLifeDays: 30,
		CandidateLimit:      100,
	}
}

// Linker finds and scores task-memory connections.
type Linker struct {
	memories storage.MemoryStore
	semantic *similarity.Bounded
	cfg      Config

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a Linker. semantic may be nil; discovery then scores
// lexically only.
func New(memories storage.MemoryStore, semantic *similarity.Bounded, cfg Config) *Linker {
	if cfg.RelevanceThreshold == 0 {
		cfg.RelevanceThreshold = 0.3
	}
	if cfg.MaxLinks == 0 {
		cfg.MaxLinks = 5
	}
	if cfg.CandidateLimit == 0 {
		cfg.CandidateLimit = 100
	}
	return &Linker{
		memories: memories,
		semantic: semantic,
		cfg:      cfg,
		now:      time.Now,
	}
}

// scored pairs a candidate memory with its computed relevance.
type scored struct {
	memory    *storage.Memory
	relevance float64
	matched   []string
	termScore float64
	tagScore  float64
}

// AutoLink finds qualifying memories for the task and returns the new
// connections to append, ranked by relevance (ties broken by more recent
// memory first) and capped at MaxLinks.
//
// Existing connections are never mutated or reordered; a candidate whose
// (memory, type) pair the task already holds is skipped.
func (l *Linker) AutoLink(ctx context.Context, task *storage.Task, stage Stage) ([]storage.Connection, error) {
	query := storage.MemoryQuery{Limit: l.cfg.CandidateLimit}
	if !l.cfg.CrossProject {
		query.Project = task.Project
	}

	candidates, err := l.memories.SearchMemories(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("AutoLink: %w", err)
	}

	taskTerms := extractTerms(task.Title, task.Description)
	now := l.now()

	var ranked []scored
	for _, mem := range candidates {
		matched, termScore := termOverlap(taskTerms, mem.Content)
		tagScore := tagOverlap(task.Tags, mem.Tags)
		if len(matched) == 0 && tagScore == 0 {
			continue
		}

		recency := recencyScore(mem.CreatedAt, now, l.cfg.RecencyHalfLifeDays)

		// Best-effort semantic blend; a miss degrades to lexical-only.
		semScore, hasSem := l.semantic.Score(ctx, task.Title+" "+task.Description, mem.Content)

		relevance := combine(termScore, tagScore, recency, semScore, hasSem)
		if relevance <= l.cfg.RelevanceThreshold {
			continue
		}

		ranked = append(ranked, scored{
			memory:    mem,
			relevance: relevance,
			matched:   matched,
			termScore: termScore,
			tagScore:  tagScore,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].relevance != ranked[j].relevance {
			return ranked[i].relevance > ranked[j].relevance
		}
		return ranked[i].memory.CreatedAt.After(ranked[j].memory.CreatedAt)
	})

	if len(ranked) > l.cfg.MaxLinks {
		ranked = ranked[:l.cfg.MaxLinks]
	}

	var connections []storage.Connection
	for _, cand := range ranked {
		typ := classifyConnection(cand, stage)
		if task.HasConnection(cand.memory.ID, typ) {
			continue
		}
		connections = append(connections, storage.Connection{
			MemoryID:     cand.memory.ID,
			MemorySerial: cand.memory.Serial,
			Type:         typ,
			Relevance:    cand.relevance,
			MatchedTerms: cand.matched,
			CreatedAt:    now,
		})
	}

	return connections, nil
}

// classifyConnection picks the connection type from the calling stage and
// the dominant scoring signal. Lifecycle-bound types (completion evidence,
// blocking reason, progress update, creation trigger) are only assignable
// at their stage.
func classifyConnection(cand scored, stage Stage) storage.ConnectionType {
	switch stage {
	case StageCompletion:
		return storage.ConnCompletionEvidence
	case StageBlocking:
		return storage.ConnBlockingReason
	case StageProgress:
		return storage.ConnProgressUpdate
	case StageCreation:
		return storage.ConnCreationTrigger
	}

	switch {
	case cand.memory.Category == "research":
		return storage.ConnResearch
	case cand.tagScore > cand.termScore:
		return storage.ConnReference
	case looksLikeImplementation(cand.memory):
		return storage.ConnImplementation
	default:
		return storage.ConnExistingTask
	}
}

func looksLikeImplementation(mem *storage.Memory) bool {
	if mem.Category == "code" {
		return true
	}
	lower := strings.ToLower(mem.Content)
	for _, kw := range []string{"implemented", "refactored", "wrote", "patched"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
