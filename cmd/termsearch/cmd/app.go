package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/termsearch/internal/config"
	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
	"github.com/Aman-CERP/termsearch/internal/logging"
	"github.com/Aman-CERP/termsearch/internal/notify"
	"github.com/Aman-CERP/termsearch/internal/store"
	"github.com/Aman-CERP/termsearch/internal/telemetry"
	"github.com/Aman-CERP/termsearch/pkg/indexer"
	"github.com/Aman-CERP/termsearch/pkg/searcher"
)

// app is the processing stack shared by serve, notify and search.
type app struct {
	cfg       *config.Config
	dataDir   string
	backend   string
	lock      *store.DirLock
	index     store.NodeIndex
	breaker   *termerrors.CircuitBreaker
	metrics   *telemetry.Metrics
	history   *notify.History
	processor *notify.Processor
	searcher  *searcher.NodeSearcher
}

// loadConfig loads the configuration from --config-dir.
func loadConfig() (*config.Config, string, error) {
	dir, err := filepath.Abs(configDir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, "", termerrors.ConfigError("failed to load configuration", err).
			WithSuggestion("Run 'termsearch config show --source defaults' to compare with the defaults")
	}
	return cfg, dir, nil
}

// resolvePath makes a configured path absolute relative to the config dir.
func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// openApp locks the data directory, opens the node index and builds the
// processor over it. withMetrics adds the Prometheus collectors.
func openApp(cfg *config.Config, baseDir string, withMetrics bool) (a *app, err error) {
	dataDir := resolvePath(baseDir, cfg.Index.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, termerrors.IOError("failed to create data directory", err).WithDetail("path", dataDir)
	}

	lock := store.NewDirLock(dataDir)
	if err := lock.TryLock(); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = lock.Unlock()
		}
	}()

	backend := cfg.Index.Backend
	if existing := store.DetectBackend(dataDir); existing != "" && string(existing) != backend {
		slog.Warn("index_backend_mismatch",
			slog.String("configured", backend),
			slog.String("existing", string(existing)),
			slog.String("path", store.IndexPath(dataDir, string(existing))))
		backend = string(existing)
	}

	idx, err := store.OpenNodeIndex(dataDir, backend)
	if err != nil {
		return nil, termerrors.IOError("failed to open node index", err).
			WithDetail("path", store.IndexPath(dataDir, backend))
	}
	defer func() {
		if err != nil {
			_ = idx.Close()
		}
	}()

	a = &app{
		cfg:     cfg,
		dataDir: dataDir,
		backend: backend,
		lock:    lock,
		index:   idx,
		history: notify.NewHistory(notify.DefaultHistorySize),
	}

	var opts []termerrors.CircuitBreakerOption
	if cfg.Index.CircuitMaxFailures > 0 {
		opts = append(opts, termerrors.WithMaxFailures(cfg.Index.CircuitMaxFailures))
	}
	if d := cfg.Index.ResetTimeout(); d > 0 {
		opts = append(opts, termerrors.WithResetTimeout(d))
	}
	a.breaker = termerrors.NewCircuitBreaker("node-index", opts...)

	gi, err := indexer.NewGraphIndexer(indexer.WithStore(idx))
	if err != nil {
		return nil, err
	}
	var ix indexer.Indexer = indexer.Guarded(gi, a.breaker)

	procOpts := []notify.Option{
		notify.WithHistory(a.history),
		notify.WithContinueOnError(cfg.Dispatch.ContinueOnError),
	}
	if withMetrics {
		a.metrics = telemetry.New()
		if err := a.metrics.RegisterIndexSize(func() float64 {
			return float64(idx.Stats().DocumentCount)
		}); err != nil {
			return nil, fmt.Errorf("failed to register index metrics: %w", err)
		}
		ix = indexer.Instrumented(ix, a.metrics)
		procOpts = append(procOpts, notify.WithObserver(a.metrics))
	}

	classifier, err := notify.NewClassifier(cfg.Classification.VocabularyTypes, cfg.Classification.ConceptTypes)
	if err != nil {
		return nil, err
	}
	if a.processor, err = notify.NewProcessor(ix, classifier, procOpts...); err != nil {
		return nil, err
	}
	if a.searcher, err = searcher.NewNodeSearcher(searcher.WithStore(idx)); err != nil {
		return nil, err
	}

	slog.Debug("index_opened",
		slog.String("backend", backend),
		slog.String("data_dir", dataDir),
		slog.Int("documents", idx.Stats().DocumentCount))
	return a, nil
}

// Close closes the index and releases the data directory lock.
func (a *app) Close() error {
	return errors.Join(a.index.Close(), a.lock.Unlock())
}

// setupCommandLogging installs a warn-level stderr logger for one-shot
// commands, unless --debug already installed one.
func setupCommandLogging() func() {
	if debugMode {
		return func() {}
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = "warn"
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return func() {}
	}
	slog.SetDefault(logger)
	return cleanup
}
