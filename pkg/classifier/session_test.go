package classifier_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmem-labs/taskmem-go/pkg/classifier"
)

func newSessionManager(t *testing.T) *classifier.SessionManager {
	t.Helper()
	return classifier.NewSessionManager(newClassifier(t), classifier.CaptureConfig{})
}

func TestObserveBuffersShortSessions(t *testing.T) {
	m := newSessionManager(t)
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	_, ok := m.Observe("Fixed the login timeout bug after retrying 4 times", start)
	assert.False(t, ok)

	// Six minutes in, two activities: below every threshold.
	_, ok = m.Observe("Retried the login flow to reproduce the timeout bug", start.Add(6*time.Minute))
	assert.False(t, ok)

	assert.Equal(t, 1, m.ActiveSessions())
}

func TestObserveCapturesOnSuccessSignal(t *testing.T) {
	m := newSessionManager(t)
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	_, ok := m.Observe("Fixed the login timeout bug after retrying 4 times", start)
	require.False(t, ok)
	_, ok = m.Observe("Retried the login flow to reproduce the timeout bug", start.Add(6*time.Minute))
	require.False(t, ok)

	captured, ok := m.Observe("Fixed it, all tests pass now", start.Add(10*time.Minute))
	require.True(t, ok)

	assert.Equal(t, "Software Development: problemSolving success", captured.Title)
	assert.Equal(t, "code", captured.Category)
	assert.Equal(t, classifier.ImportanceHigh, captured.Importance)
	assert.Contains(t, captured.Content, "login timeout bug")
	assert.Contains(t, captured.Content, "all tests pass now")
	assert.Contains(t, captured.Tags, "software-development")
	assert.Contains(t, captured.Tags, "problemSolving")
	assert.Contains(t, captured.Tags, "success")

	// The session is destroyed on capture.
	assert.Equal(t, 0, m.ActiveSessions())
}

func TestObserveCapturesOnElapsedAndCount(t *testing.T) {
	m := newSessionManager(t)
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	_, ok := m.Observe("Reviewed the sprint board", start)
	require.False(t, ok)
	_, ok = m.Observe("Organized the backlog grooming", start.Add(5*time.Minute))
	require.False(t, ok)

	captured, ok := m.Observe("Planned the next sprint", start.Add(16*time.Minute))
	require.True(t, ok)

	assert.Equal(t, "General: workflow session", captured.Title)
	assert.Equal(t, "general", captured.Category)
	assert.Len(t, captured.Tags, 4)
}

func TestObserveCapturesComplexWorkEarly(t *testing.T) {
	m := newSessionManager(t)
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	_, ok := m.Observe("Stuck on a deadlock between the two mutexes for hours", start)
	require.False(t, ok)

	captured, ok := m.Observe("Still stuck, the deadlock shows up only under heavy load", start.Add(3*time.Minute))
	require.True(t, ok)
	assert.Contains(t, captured.Content, "deadlock")
	assert.Contains(t, captured.Tags, "high")
}

func TestObserveCapturesOnMaxElapsed(t *testing.T) {
	m := newSessionManager(t)
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	_, ok := m.Observe("Reviewed the on-call handover notes", start)
	require.False(t, ok)

	captured, ok := m.Observe("Reviewed the postmortem agenda", start.Add(61*time.Minute))
	require.True(t, ok)
	assert.Equal(t, []string{"general", "workflow", "low", "session"}, captured.Tags)
}

func TestObserveKeepsUnrelatedSessionsApart(t *testing.T) {
	m := newSessionManager(t)
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	_, ok := m.Observe("Fixed the flaky retry in the billing worker", start)
	require.False(t, ok)
	_, ok = m.Observe("Drafted the outline for the architecture document", start.Add(time.Minute))
	require.False(t, ok)

	assert.Equal(t, 2, m.ActiveSessions())
}
