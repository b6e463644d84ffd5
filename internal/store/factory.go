package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend names a NodeIndex implementation.
type Backend string

const (
	// BackendBleve stores nodes in a Bleve index directory (default).
	// BoltDB holds an exclusive file lock, so one process at a time.
	BackendBleve Backend = "bleve"

	// BackendSQLite stores nodes in a SQLite file in WAL mode.
	BackendSQLite Backend = "sqlite"
)

// indexBaseName is the file name (without extension) of the index in the data dir.
const indexBaseName = "nodes"

// NewNodeIndexWithBackend creates a NodeIndex using the specified backend.
// basePath has no extension; ".bleve" or ".db" is appended per backend.
// If basePath is empty, creates an in-memory index.
func NewNodeIndexWithBackend(basePath string, backend string) (NodeIndex, error) {
	switch backend {
	case string(BackendBleve), "":
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveNodeIndex(path)

	case string(BackendSQLite):
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteNodeIndex(path)

	default:
		return nil, fmt.Errorf("unknown index backend: %s (valid options: bleve, sqlite)", backend)
	}
}

// OpenNodeIndex opens the node index inside dataDir.
func OpenNodeIndex(dataDir string, backend string) (NodeIndex, error) {
	return NewNodeIndexWithBackend(filepath.Join(dataDir, indexBaseName), backend)
}

// DetectBackend reports which backend an existing index in dataDir uses.
// Returns an empty string if no index exists.
func DetectBackend(dataDir string) Backend {
	basePath := filepath.Join(dataDir, indexBaseName)
	if dirExists(basePath + ".bleve") {
		return BackendBleve
	}
	if fileExists(basePath + ".db") {
		return BackendSQLite
	}
	return ""
}

// IndexPath returns the full path of the index file or directory.
func IndexPath(dataDir string, backend string) string {
	basePath := filepath.Join(dataDir, indexBaseName)
	switch backend {
	case string(BackendSQLite):
		return basePath + ".db"
	default:
		return basePath + ".bleve"
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
