package indexer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
	"github.com/Aman-CERP/termsearch/internal/store"
)

// ErrNilStore is returned when attempting to create a GraphIndexer without a store.
var ErrNilStore = errors.New("node store is required")

// GraphIndexer writes AffectedNodes into a [store.NodeIndex].
//
// Saved nodes become one document each, keyed by graph and node id.
// Deleting a vocabulary drops the graph it lives in, since its concepts
// cannot outlive it.
type GraphIndexer struct {
	store store.NodeIndex
	now   func() time.Time
}

// Option configures a GraphIndexer.
type Option func(*GraphIndexer)

// WithStore sets the node store. Required.
func WithStore(s store.NodeIndex) Option {
	return func(g *GraphIndexer) {
		g.store = s
	}
}

// WithClock overrides the timestamp source for indexed documents.
func WithClock(now func() time.Time) Option {
	return func(g *GraphIndexer) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGraphIndexer creates a GraphIndexer.
//
// Returns ErrNilStore if no store is provided.
func NewGraphIndexer(opts ...Option) (*GraphIndexer, error) {
	g := &GraphIndexer{now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	if g.store == nil {
		return nil, ErrNilStore
	}
	return g, nil
}

// UpdateIndexAfterUpdate implements Indexer.
func (g *GraphIndexer) UpdateIndexAfterUpdate(ctx context.Context, a AffectedNodes) error {
	if a.Empty() {
		return nil
	}

	now := g.now()
	docs := make([]*store.Document, 0, len(a.Vocabularies)+len(a.Concepts))
	for _, id := range a.Vocabularies {
		docs = append(docs, store.NewDocument(a.GraphID, id, store.KindVocabulary, now))
	}
	for _, id := range a.Concepts {
		docs = append(docs, store.NewDocument(a.GraphID, id, store.KindConcept, now))
	}

	if err := g.store.Upsert(ctx, docs); err != nil {
		return storeError("upsert", a.GraphID, err)
	}

	slog.Debug("graph_index_updated",
		slog.String("graph_id", a.GraphID),
		slog.Int("vocabularies", len(a.Vocabularies)),
		slog.Int("concepts", len(a.Concepts)))
	return nil
}

// UpdateIndexAfterDelete implements Indexer.
func (g *GraphIndexer) UpdateIndexAfterDelete(ctx context.Context, a AffectedNodes) error {
	if a.Empty() {
		return nil
	}

	if len(a.Vocabularies) > 0 {
		removed, err := g.store.DeleteGraph(ctx, a.GraphID)
		if err != nil {
			return storeError("delete graph", a.GraphID, err)
		}
		slog.Debug("graph_index_dropped",
			slog.String("graph_id", a.GraphID),
			slog.Int("removed", removed))
		return nil
	}

	ids := make([]string, len(a.Concepts))
	for i, id := range a.Concepts {
		ids[i] = store.DocumentID(a.GraphID, id)
	}
	if err := g.store.Delete(ctx, ids); err != nil {
		return storeError("delete", a.GraphID, err)
	}

	slog.Debug("graph_index_concepts_deleted",
		slog.String("graph_id", a.GraphID),
		slog.Int("concepts", len(ids)))
	return nil
}

// storeError classifies a store failure. Context errors pass through so
// callers can still match them with errors.Is.
func storeError(op, graphID string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, store.ErrClosed):
		return termerrors.UnavailableError("node index is closed", err).
			WithDetail("graph_id", graphID)
	default:
		return termerrors.New(termerrors.ErrCodeIndexFailed, "node index "+op+" failed", err).
			WithDetail("graph_id", graphID)
	}
}

// Ensure GraphIndexer implements Indexer at compile time.
var _ Indexer = (*GraphIndexer)(nil)
