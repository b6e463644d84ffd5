package searcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
	"github.com/Aman-CERP/termsearch/internal/store"
)

func newSeededSearcher(t *testing.T) (*NodeSearcher, store.NodeIndex) {
	t.Helper()
	idx, err := store.NewNodeIndexWithBackend("", "sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, idx.Upsert(context.Background(), []*store.Document{
		store.NewDocument("g1", "v1", store.KindVocabulary, now),
		store.NewDocument("g1", "c1", store.KindConcept, now),
		store.NewDocument("g1", "c2", store.KindConcept, now),
		store.NewDocument("g2", "c3", store.KindConcept, now),
	}))

	s, err := NewNodeSearcher(WithStore(idx))
	require.NoError(t, err)
	return s, idx
}

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNewNodeSearcher_NilStore_ReturnsError(t *testing.T) {
	s, err := NewNodeSearcher()
	assert.ErrorIs(t, err, ErrNilStore)
	assert.Nil(t, s)
}

// =============================================================================
// Search
// =============================================================================

func TestNodeSearcher_Search_ByGraph(t *testing.T) {
	s, _ := newSeededSearcher(t)

	res, err := s.Search(context.Background(), Query{GraphID: "g1"})
	require.NoError(t, err)

	assert.Equal(t, "g1", res.GraphID)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Documents, 3)
	assert.Equal(t, "g1/c1", res.Documents[0].ID)
}

func TestNodeSearcher_Search_ByKindAndLimit(t *testing.T) {
	s, _ := newSeededSearcher(t)

	// When: asking for one concept of g1
	res, err := s.Search(context.Background(), Query{GraphID: "g1", Kind: "concept", Limit: 1})
	require.NoError(t, err)

	// Then: the page is truncated but the total is not
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "c1", res.Documents[0].NodeID)
}

func TestNodeSearcher_Search_NoMatchIsEmptySlice(t *testing.T) {
	s, _ := newSeededSearcher(t)

	res, err := s.Search(context.Background(), Query{GraphID: "unknown"})
	require.NoError(t, err)

	assert.NotNil(t, res.Documents)
	assert.Empty(t, res.Documents)
	assert.Zero(t, res.Total)
}

func TestNodeSearcher_Search_InvalidQueries(t *testing.T) {
	s, _ := newSeededSearcher(t)

	tests := []struct {
		name string
		q    Query
	}{
		{"missing graph", Query{Kind: "concept"}},
		{"unknown kind", Query{GraphID: "g1", Kind: "term"}},
		{"negative limit", Query{GraphID: "g1", Limit: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Search(context.Background(), tt.q)
			require.Error(t, err)
			assert.Equal(t, termerrors.CategoryValidation, termerrors.GetCategory(err))
		})
	}
}

func TestNodeSearcher_Search_ClosedStore(t *testing.T) {
	s, idx := newSeededSearcher(t)
	require.NoError(t, idx.Close())

	_, err := s.Search(context.Background(), Query{GraphID: "g1"})
	require.Error(t, err)
	assert.True(t, termerrors.IsRetryable(err))
}

func TestQuery_Normalize_Limits(t *testing.T) {
	q, err := Query{GraphID: "g"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, q.Limit)

	q, err = Query{GraphID: "g", Limit: MaxLimit + 50}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, q.Limit)
}
