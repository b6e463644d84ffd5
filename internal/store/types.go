// Package store persists the node documents the search index serves.
// Two backends implement NodeIndex: Bleve (default) and SQLite.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by every NodeIndex operation after Close.
var ErrClosed = errors.New("index is closed")

// Kind is the index category of a node document.
type Kind string

const (
	KindVocabulary Kind = "vocabulary"
	KindConcept    Kind = "concept"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindVocabulary || k == KindConcept
}

// Document is one indexed node. Node ids are unique within a graph only,
// so the document ID combines both.
type Document struct {
	ID        string    `json:"id"`
	GraphID   string    `json:"graph_id"`
	NodeID    string    `json:"node_id"`
	Kind      Kind      `json:"kind"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentID returns the index key of a node within a graph.
func DocumentID(graphID, nodeID string) string {
	return graphID + "/" + nodeID
}

// NewDocument builds a Document with its ID filled in.
func NewDocument(graphID, nodeID string, kind Kind, updatedAt time.Time) *Document {
	return &Document{
		ID:        DocumentID(graphID, nodeID),
		GraphID:   graphID,
		NodeID:    nodeID,
		Kind:      kind,
		UpdatedAt: updatedAt.UTC(),
	}
}

// Filter selects documents by exact match. Empty fields match anything.
type Filter struct {
	GraphID string
	Kind    Kind
	NodeID  string
}

// IndexStats contains index statistics.
type IndexStats struct {
	DocumentCount int `json:"document_count"`
}

// NodeIndex is the storage contract behind the graph indexer.
type NodeIndex interface {
	// Upsert inserts documents, replacing any with the same ID.
	Upsert(ctx context.Context, docs []*Document) error

	// Delete removes documents by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// DeleteGraph removes every document of a graph and returns how many
	// were removed.
	DeleteGraph(ctx context.Context, graphID string) (int, error)

	// Find returns documents matching f ordered by ID. limit <= 0 means all.
	Find(ctx context.Context, f Filter, limit int) ([]*Document, error)

	// Count returns the number of documents matching f.
	Count(ctx context.Context, f Filter) (int, error)

	// Stats returns index statistics.
	Stats() *IndexStats

	// Close releases the index. Safe to call more than once.
	Close() error
}
