// Package similarity defines the optional semantic-similarity collaborator.
//
// The engine treats semantic similarity as a best-effort signal: absence,
// errors and timeouts all degrade silently to lexical-only scoring and must
// never fail the enclosing call. The Bounded wrapper enforces that contract.
package similarity

import (
	"context"
	"time"
)

// Provider computes a semantic similarity score in [0,1] for two texts.
type Provider interface {
	// Similarity returns how semantically close a and b are, where 1.0 is
	// identical meaning and 0.0 is unrelated.
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Bounded wraps a Provider with a per-call timeout and converts every
// failure mode (nil provider, error, timeout, out-of-range score) into a
// quiet miss.
type Bounded struct {
	provider Provider
	timeout  time.Duration
}

// NewBounded wraps the provider. A nil provider is valid and always misses.
// A non-positive timeout defaults to 2 seconds.
func NewBounded(provider Provider, timeout time.Duration) *Bounded {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Bounded{provider: provider, timeout: timeout}
}

// Score returns the similarity of a and b and whether a usable score was
// obtained. It never returns an error.
func (b *Bounded) Score(ctx context.Context, textA, textB string) (float64, bool) {
	if b == nil || b.provider == nil {
		return 0, false
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	score, err := b.provider.Similarity(ctx, textA, textB)
	if err != nil || score < 0 || score > 1 {
		return 0, false
	}
	return score, true
}
