package indexer

import (
	"context"
	"errors"
	"log/slog"

	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
)

// GuardedIndexer wraps an Indexer with a circuit breaker. Once the breaker
// opens, calls fail with a retryable ERR_301_INDEX_UNAVAILABLE without
// reaching the index.
type GuardedIndexer struct {
	inner   Indexer
	breaker *termerrors.CircuitBreaker
}

// Guarded wraps inner with breaker.
func Guarded(inner Indexer, breaker *termerrors.CircuitBreaker) *GuardedIndexer {
	return &GuardedIndexer{inner: inner, breaker: breaker}
}

// UpdateIndexAfterUpdate implements Indexer.
func (g *GuardedIndexer) UpdateIndexAfterUpdate(ctx context.Context, a AffectedNodes) error {
	return g.run(OpUpdate, a, func() error { return g.inner.UpdateIndexAfterUpdate(ctx, a) })
}

// UpdateIndexAfterDelete implements Indexer.
func (g *GuardedIndexer) UpdateIndexAfterDelete(ctx context.Context, a AffectedNodes) error {
	return g.run(OpDelete, a, func() error { return g.inner.UpdateIndexAfterDelete(ctx, a) })
}

// Breaker returns the underlying circuit breaker.
func (g *GuardedIndexer) Breaker() *termerrors.CircuitBreaker {
	return g.breaker
}

func (g *GuardedIndexer) run(op string, a AffectedNodes, fn func() error) error {
	// Only index faults trip the breaker; a cancelled caller says nothing
	// about index health.
	var passthrough error
	err := g.breaker.Execute(func() error {
		err := fn()
		if err != nil && !countsAsFailure(err) {
			passthrough = err
			return nil
		}
		return err
	})

	if errors.Is(err, termerrors.ErrCircuitOpen) {
		slog.Warn("index_circuit_open",
			slog.String("breaker", g.breaker.Name()),
			slog.String("operation", op),
			slog.String("graph_id", a.GraphID))
		return termerrors.UnavailableError("node index circuit is open", err).
			WithDetail("graph_id", a.GraphID).
			WithSuggestion("The index failed repeatedly; retry the notification later")
	}
	if err != nil {
		return err
	}
	return passthrough
}

func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return termerrors.GetCategory(err) != termerrors.CategoryValidation
}

var _ Indexer = (*GuardedIndexer)(nil)
