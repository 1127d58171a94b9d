package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskmem-labs/taskmem-go/pkg/storage"
)

func TestProjectCode(t *testing.T) {
	cases := []struct {
		project string
		want    string
	}{
		{"webapp", "WEBA"},
		{"go-claw", "GOCL"},
		{"ml", "ML"},
		{"", "GEN"},
		{"---", "GEN"},
		{"a1b2c3", "A1B2"},
		{"äpfelwiese", "ÄPFE"},
		{"örn-data", "ÖRND"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, storage.ProjectCode(tc.project), "project %q", tc.project)
	}
}

func TestCategoryCode(t *testing.T) {
	cases := []struct {
		category string
		want     string
	}{
		{"code", "C"},
		{"Research", "R"},
		{"integration", "I"},
		{"data", "D"},
		{"workflow", "W"},
		{"docs", "D"},
		{"general", "G"},
		{"", "T"},
		{"1234", "T"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, storage.CategoryCode(tc.category), "category %q", tc.category)
	}
}

func TestFormatSerial(t *testing.T) {
	assert.Equal(t, "WEBA-C0007", storage.FormatSerial("webapp", "code", 7))
	assert.Equal(t, "GEN-T0001", storage.FormatSerial("", "", 1))
	assert.Equal(t, "MOBI-R12345", storage.FormatSerial("mobileapp", "research", 12345))
}

func TestStatusAndPriorityValidity(t *testing.T) {
	for _, s := range []storage.Status{
		storage.StatusTodo, storage.StatusInProgress,
		storage.StatusDone, storage.StatusBlocked,
	} {
		assert.True(t, s.Valid())
	}
	assert.False(t, storage.Status("archived").Valid())

	assert.True(t, storage.PriorityUrgent.Valid())
	assert.False(t, storage.Priority("critical").Valid())
}

func TestTaskConnectionHelpers(t *testing.T) {
	task := &storage.Task{
		Connections: []storage.Connection{
			{MemoryID: 1, Type: storage.ConnCreationTrigger},
			{MemoryID: 1, Type: storage.ConnProgressUpdate},
		},
	}

	assert.True(t, task.HasConnection(1, storage.ConnCreationTrigger))
	assert.False(t, task.HasConnection(1, storage.ConnCompletionEvidence))
	assert.False(t, task.HasConnection(2, storage.ConnCreationTrigger))
	assert.True(t, task.LinksMemory(1))
	assert.False(t, task.LinksMemory(2))
}
