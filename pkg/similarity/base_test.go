package similarity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taskmem-labs/taskmem-go/pkg/similarity"
)

// providerFunc adapts a function to the Provider interface.
type providerFunc func(ctx context.Context, a, b string) (float64, error)

func (f providerFunc) Similarity(ctx context.Context, a, b string) (float64, error) {
	return f(ctx, a, b)
}

func TestScoreNilReceiverMisses(t *testing.T) {
	var bounded *similarity.Bounded

	score, ok := bounded.Score(context.Background(), "a", "b")
	assert.False(t, ok)
	assert.Zero(t, score)
}

func TestScoreNilProviderMisses(t *testing.T) {
	bounded := similarity.NewBounded(nil, 0)

	_, ok := bounded.Score(context.Background(), "a", "b")
	assert.False(t, ok)
}

func TestScorePassesThroughUsableScores(t *testing.T) {
	bounded := similarity.NewBounded(providerFunc(func(ctx context.Context, a, b string) (float64, error) {
		return 0.72, nil
	}), time.Second)

	score, ok := bounded.Score(context.Background(), "a", "b")
	assert.True(t, ok)
	assert.Equal(t, 0.72, score)
}

func TestScoreConvertsErrorsToMisses(t *testing.T) {
	bounded := similarity.NewBounded(providerFunc(func(ctx context.Context, a, b string) (float64, error) {
		return 0, errors.New("upstream unavailable")
	}), time.Second)

	score, ok := bounded.Score(context.Background(), "a", "b")
	assert.False(t, ok)
	assert.Zero(t, score)
}

func TestScoreRejectsOutOfRangeScores(t *testing.T) {
	for _, bad := range []float64{-0.1, 1.1} {
		bounded := similarity.NewBounded(providerFunc(func(ctx context.Context, a, b string) (float64, error) {
			return bad, nil
		}), time.Second)

		_, ok := bounded.Score(context.Background(), "a", "b")
		assert.False(t, ok, "score %v must be rejected", bad)
	}
}

func TestScoreTimesOut(t *testing.T) {
	bounded := similarity.NewBounded(providerFunc(func(ctx context.Context, a, b string) (float64, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Second):
			return 0.9, nil
		}
	}), 10*time.Millisecond)

	start := time.Now()
	_, ok := bounded.Score(context.Background(), "a", "b")
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
