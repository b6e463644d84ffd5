package searcher

import (
	"context"
	"errors"
	"fmt"

	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
	"github.com/Aman-CERP/termsearch/internal/store"
)

// ErrNilStore is returned when attempting to create a NodeSearcher without a store.
var ErrNilStore = errors.New("node store is required")

const (
	// DefaultLimit applies when a query sets no limit.
	DefaultLimit = 100
	// MaxLimit caps a single query.
	MaxLimit = 1000
)

// Query selects indexed nodes of one graph.
type Query struct {
	GraphID string
	Kind    store.Kind
	NodeID  string
	Limit   int
}

// Result is one page of matching documents plus the total match count.
type Result struct {
	GraphID   string            `json:"graph_id"`
	Total     int               `json:"total"`
	Documents []*store.Document `json:"documents"`
}

// NodeSearcher looks up documents in a store.NodeIndex.
type NodeSearcher struct {
	store store.NodeIndex
}

// Option configures a NodeSearcher.
type Option func(*NodeSearcher)

// WithStore sets the node store. Required.
func WithStore(s store.NodeIndex) Option {
	return func(n *NodeSearcher) {
		n.store = s
	}
}

// NewNodeSearcher creates a NodeSearcher.
//
// Returns ErrNilStore if no store is provided.
func NewNodeSearcher(opts ...Option) (*NodeSearcher, error) {
	s := &NodeSearcher{}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		return nil, ErrNilStore
	}
	return s, nil
}

// Normalize validates q and fills in the default limit.
func (q Query) Normalize() (Query, error) {
	if q.GraphID == "" {
		return q, termerrors.ValidationError("graph id is required", nil)
	}
	if q.Kind != "" && !q.Kind.Valid() {
		return q, termerrors.ValidationError(fmt.Sprintf("unknown kind %q", q.Kind), nil).
			WithSuggestion("Use kind=vocabulary or kind=concept")
	}
	if q.Limit < 0 {
		return q, termerrors.ValidationError("limit must not be negative", nil)
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q, nil
}

// Search returns the documents matching q ordered by document id.
// Documents is an empty slice, never nil, when nothing matches.
func (s *NodeSearcher) Search(ctx context.Context, q Query) (*Result, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	f := store.Filter{GraphID: q.GraphID, Kind: q.Kind, NodeID: q.NodeID}

	total, err := s.store.Count(ctx, f)
	if err != nil {
		return nil, lookupError(err)
	}
	docs, err := s.store.Find(ctx, f, q.Limit)
	if err != nil {
		return nil, lookupError(err)
	}
	if docs == nil {
		docs = []*store.Document{}
	}

	return &Result{GraphID: q.GraphID, Total: total, Documents: docs}, nil
}

func lookupError(err error) error {
	if errors.Is(err, store.ErrClosed) {
		return termerrors.UnavailableError("node index is closed", err)
	}
	return termerrors.New(termerrors.ErrCodeIndexFailed, "node lookup failed", err)
}
