package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/termsearch/internal/config"
	"github.com/Aman-CERP/termsearch/internal/logging"
	"github.com/Aman-CERP/termsearch/internal/server"
	"github.com/Aman-CERP/termsearch/internal/spool"
	"github.com/Aman-CERP/termsearch/pkg/version"
)

func newServeCmd() *cobra.Command {
	var addr string
	var skipCheck bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept notifications over HTTP",
		Long: `Start the HTTP server and, when spool.enabled is set, the spool
directory watcher. Both feed the same processor, so notifications from
either source are applied one at a time.

Endpoints:
  POST /notify                 apply a notification (PUT is accepted too)
  GET  /graphs/{graph}/nodes   list indexed nodes of a graph
  GET  /status                 processed counts, index size, recent notifications
  GET  /health                 liveness
  GET  /metrics                Prometheus metrics`,
		Example: `  # Serve with the configuration in the current directory
  termsearch serve

  # Override the listen address
  termsearch serve --addr 127.0.0.1:9090`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), addr, skipCheck)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip the startup system checks")

	return cmd
}

func runServe(ctx context.Context, addr string, skipCheck bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, baseDir, err := loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	if !debugMode {
		cleanup, err := setupServeLogging(cfg, baseDir)
		if err != nil {
			return err
		}
		defer cleanup()
	}

	if !skipCheck {
		if err := runPreflight(ctx, cfg, baseDir); err != nil {
			return err
		}
	}

	a, err := openApp(cfg, baseDir, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("index_close_failed", slog.String("error", err.Error()))
		}
	}()

	read, write, shutdown := cfg.Server.Durations()
	srv, err := server.New(server.Options{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     read,
		WriteTimeout:    write,
		ShutdownTimeout: shutdown,
		MaxBodyBytes:    int64(cfg.Server.MaxBodyMB) << 20,
	}, server.Deps{
		Processor:  a.processor,
		Searcher:   a.searcher,
		History:    a.history,
		IndexStats: a.index.Stats,
		Breaker:    a.breaker,
		Metrics:    a.metrics,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if cfg.Spool.Enabled {
		sp, err := spool.New(resolvePath(baseDir, cfg.Spool.Dir), a.processor, spool.Options{
			PollInterval: cfg.Spool.Interval(),
		}.WithDefaults())
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			return sp.Run(gctx)
		})
	}

	slog.Info("termsearch_started",
		slog.String("version", version.Short()),
		slog.String("addr", cfg.Server.Addr),
		slog.String("backend", a.backend),
		slog.Bool("spool", cfg.Spool.Enabled),
		slog.Bool("continue_on_error", cfg.Dispatch.ContinueOnError))

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	processed, failed := a.history.Totals()
	slog.Info("termsearch_stopped", slog.Int64("processed", processed), slog.Int64("failed", failed))
	return nil
}

// setupServeLogging installs the logger described by server.log_level and
// server.log_file.
func setupServeLogging(cfg *config.Config, baseDir string) (func(), error) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	if cfg.Server.LogFile != "" {
		logCfg.FilePath = resolvePath(baseDir, cfg.Server.LogFile)
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)
	return cleanup, nil
}
