package indexer

import (
	"context"
)

// AffectedNodes is the change set of one graph within one notification.
// It is built per dispatch and never stored.
type AffectedNodes struct {
	GraphID      string   `json:"graph_id"`
	Vocabularies []string `json:"vocabularies"`
	Concepts     []string `json:"concepts"`
}

// Empty reports whether there is nothing to index.
func (a AffectedNodes) Empty() bool {
	return len(a.Vocabularies) == 0 && len(a.Concepts) == 0
}

// Indexer defines the contract between notification processing and the
// search index.
//
// Implementations must be thread-safe for concurrent use.
type Indexer interface {
	// UpdateIndexAfterUpdate reflects saved vocabularies and concepts.
	//
	// Behavior:
	//   - Idempotent: repeating a call leaves the index unchanged
	//   - Empty change set is a no-op (returns nil)
	UpdateIndexAfterUpdate(ctx context.Context, a AffectedNodes) error

	// UpdateIndexAfterDelete reflects deleted vocabularies and concepts.
	//
	// Behavior:
	//   - Deleting a vocabulary removes the whole graph from the index
	//   - Unknown ids are ignored
	//   - Empty change set is a no-op (returns nil)
	UpdateIndexAfterDelete(ctx context.Context, a AffectedNodes) error
}

// Operation names used in logs and metrics.
const (
	OpUpdate = "update"
	OpDelete = "delete"
)
