package classifier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmem-labs/taskmem-go/pkg/classifier"
)

func newClassifier(t *testing.T) *classifier.Classifier {
	t.Helper()
	cl, err := classifier.New(nil)
	require.NoError(t, err)
	return cl
}

func TestClassifySoftwareDevelopment(t *testing.T) {
	cl := newClassifier(t)

	result := cl.Classify("Fix the bug in parser.go, bisected it with git and reproduced inside docker")

	assert.Equal(t, "software-development", result.Domain)
	assert.Equal(t, "problemSolving", result.WorkType)
	assert.Contains(t, result.Tools, "git")
	assert.Contains(t, result.Tools, "docker")
}

func TestClassifyUnmatchedTextIsGeneral(t *testing.T) {
	cl := newClassifier(t)

	result := cl.Classify("Bought milk and eggs")

	assert.Equal(t, "general", result.Domain)
	assert.Equal(t, "general", result.WorkType)
	assert.Equal(t, classifier.ComplexityLow, result.Complexity)
	assert.Equal(t, classifier.ImportanceLow, result.Importance)
	assert.Empty(t, result.Tools)
}

func TestClassifyDiscoveryEscalatesImportance(t *testing.T) {
	cl := newClassifier(t)

	result := cl.Classify("Turns out the cache key was missing the tenant prefix")

	assert.Equal(t, classifier.ImportanceHigh, result.Importance)
	assert.True(t, result.HasSuccessSignal())
}

func TestClassifySuccessEscalatesImportance(t *testing.T) {
	cl := newClassifier(t)

	result := cl.Classify("All tests pass after guarding the cache with a mutex")

	assert.Equal(t, classifier.ImportanceHigh, result.Importance)
	assert.True(t, result.HasSuccessSignal())
}

func TestClassifyBareFixedIsNotASuccessSignal(t *testing.T) {
	cl := newClassifier(t)

	// "Fixed" marks problem-solving work but does not by itself prove the
	// work concluded successfully.
	result := cl.Classify("Fixed the login timeout bug after retrying 4 times")

	assert.Equal(t, "problemSolving", result.WorkType)
	assert.Equal(t, classifier.ImportanceMedium, result.Importance)
	assert.False(t, result.HasSuccessSignal())
}

func TestClassifyComplexityAccumulates(t *testing.T) {
	cl := newClassifier(t)

	result := cl.Classify("Stuck for hours on a race condition in the goroutine pool, still failing")

	assert.Equal(t, classifier.ComplexityHigh, result.Complexity)
}

func TestCategoryMapping(t *testing.T) {
	cl := newClassifier(t)

	assert.Equal(t, "code", cl.Category("software-development"))
	assert.Equal(t, "research", cl.Category("data-science"))
	assert.Equal(t, "integration", cl.Category("infrastructure"))
	assert.Equal(t, "docs", cl.Category("writing"))
	assert.Equal(t, "general", cl.Category("something-unmapped"))
}

func TestNewRejectsBadPattern(t *testing.T) {
	rules := classifier.DefaultRules()
	rules.ComplexityPatterns = append(rules.ComplexityPatterns, `(\b`)

	_, err := classifier.New(rules)
	assert.Error(t, err)
}
