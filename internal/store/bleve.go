package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Stored field names of a node document.
const (
	fieldGraphID   = "graph_id"
	fieldNodeID    = "node_id"
	fieldKind      = "kind"
	fieldUpdatedAt = "updated_at"
)

// findPageSize bounds a single Bleve search request when listing documents.
const findPageSize = 1000

// BleveNodeIndex stores node documents in a Bleve index with keyword fields.
type BleveNodeIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// bleveDocument is the document structure for Bleve indexing.
type bleveDocument struct {
	GraphID   string `json:"graph_id"`
	NodeID    string `json:"node_id"`
	Kind      string `json:"kind"`
	UpdatedAt string `json:"updated_at"`
}

// validateBleveIntegrity checks if a Bleve index is valid before opening.
// Returns nil if valid or absent, error describing corruption if not.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

// isCorruptionError checks if an error indicates Bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	if err == bleve.ErrorIndexMetaCorrupt {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt")
}

// NewBleveNodeIndex opens or creates a Bleve node index at path.
// If path is empty, creates an in-memory index. A corrupted on-disk index
// is cleared and recreated; the notifier will repopulate it.
func NewBleveNodeIndex(path string) (*BleveNodeIndex, error) {
	indexMapping := newNodeMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}

		if validErr := validateBleveIntegrity(path); validErr != nil {
			slog.Warn("node_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("node index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			slog.Info("node_index_cleared", slog.String("path", path))
		}

		idx, err = bleve.Open(path)
		switch {
		case err == bleve.ErrorIndexPathDoesNotExist:
			idx, err = bleve.New(path, indexMapping)
		case err != nil && isCorruptionError(err):
			slog.Warn("node_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("node index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			slog.Info("node_index_cleared", slog.String("path", path))
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveNodeIndex{index: idx, path: path}, nil
}

// newNodeMapping maps every document field as a stored keyword so lookups
// are exact and hits carry their fields back.
func newNodeMapping() *mapping.IndexMappingImpl {
	keyword := bleve.NewKeywordFieldMapping()
	keyword.Store = true

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt(fieldGraphID, keyword)
	doc.AddFieldMappingsAt(fieldNodeID, keyword)
	doc.AddFieldMappingsAt(fieldKind, keyword)
	doc.AddFieldMappingsAt(fieldUpdatedAt, keyword)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Upsert implements NodeIndex.
func (b *BleveNodeIndex) Upsert(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		bd := bleveDocument{
			GraphID:   doc.GraphID,
			NodeID:    doc.NodeID,
			Kind:      string(doc.Kind),
			UpdatedAt: doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := batch.Index(doc.ID, bd); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Delete implements NodeIndex.
func (b *BleveNodeIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// DeleteGraph implements NodeIndex.
func (b *BleveNodeIndex) DeleteGraph(ctx context.Context, graphID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	docs, err := b.find(ctx, Filter{GraphID: graphID}, 0)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		batch.Delete(doc.ID)
	}
	if err := b.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("failed to delete graph %s: %w", graphID, err)
	}
	return len(docs), nil
}

// Find implements NodeIndex.
func (b *BleveNodeIndex) Find(ctx context.Context, f Filter, limit int) ([]*Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	return b.find(ctx, f, limit)
}

// Count implements NodeIndex.
func (b *BleveNodeIndex) Count(ctx context.Context, f Filter) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, ErrClosed
	}

	req := bleve.NewSearchRequestOptions(filterQuery(f), 0, 0, false)
	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return int(result.Total), nil
}

// find pages through matching documents. Caller must hold the lock.
func (b *BleveNodeIndex) find(ctx context.Context, f Filter, limit int) ([]*Document, error) {
	q := filterQuery(f)
	var docs []*Document

	for from := 0; ; from += findPageSize {
		size := findPageSize
		if limit > 0 && limit-len(docs) < size {
			size = limit - len(docs)
		}

		req := bleve.NewSearchRequestOptions(q, size, from, false)
		req.Fields = []string{fieldGraphID, fieldNodeID, fieldKind, fieldUpdatedAt}
		req.SortBy([]string{"_id"})

		result, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}

		for _, hit := range result.Hits {
			docs = append(docs, documentFromFields(hit.ID, hit.Fields))
		}

		if len(result.Hits) < size || (limit > 0 && len(docs) >= limit) {
			return docs, nil
		}
	}
}

// filterQuery turns a Filter into a conjunction of term queries.
func filterQuery(f Filter) query.Query {
	var terms []query.Query
	add := func(field, value string) {
		if value == "" {
			return
		}
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		terms = append(terms, tq)
	}
	add(fieldGraphID, f.GraphID)
	add(fieldKind, string(f.Kind))
	add(fieldNodeID, f.NodeID)

	if len(terms) == 0 {
		return bleve.NewMatchAllQuery()
	}
	return bleve.NewConjunctionQuery(terms...)
}

func documentFromFields(id string, fields map[string]any) *Document {
	str := func(name string) string {
		s, _ := fields[name].(string)
		return s
	}
	updated, _ := time.Parse(time.RFC3339Nano, str(fieldUpdatedAt))
	return &Document{
		ID:        id,
		GraphID:   str(fieldGraphID),
		NodeID:    str(fieldNodeID),
		Kind:      Kind(str(fieldKind)),
		UpdatedAt: updated,
	}
}

// Stats implements NodeIndex.
func (b *BleveNodeIndex) Stats() *IndexStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return &IndexStats{}
	}

	docCount, _ := b.index.DocCount()
	return &IndexStats{DocumentCount: int(docCount)}
}

// Close implements NodeIndex.
func (b *BleveNodeIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// Verify interface implementation
var _ NodeIndex = (*BleveNodeIndex)(nil)
