package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/termsearch/internal/config"
	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
	"github.com/Aman-CERP/termsearch/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var jsonOutput bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the host can run termsearch",
		Long: `Check write access to the data and spool directories, free disk
space and the open file limit. 'serve' runs the same checks on startup
unless --skip-check is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, baseDir, err := loadConfig()
			if err != nil {
				return err
			}
			checker := preflight.New(preflight.WithOutput(cmd.OutOrStdout()), preflight.WithVerbose(verbose))
			results := checker.RunAll(cmd.Context(), preflightTargets(cfg, baseDir))

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{
					"status": checker.SummaryStatus(results),
					"checks": results,
				}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return termerrors.ConfigError("system check failed", nil).
					WithSuggestion("Fix the FAIL items above, then run 'termsearch doctor' again")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")

	return cmd
}

func preflightTargets(cfg *config.Config, baseDir string) preflight.Targets {
	t := preflight.Targets{DataDir: resolvePath(baseDir, cfg.Index.DataDir)}
	if cfg.Spool.Enabled {
		t.SpoolDir = resolvePath(baseDir, cfg.Spool.Dir)
	}
	return t
}

// runPreflight logs every non-passing check and fails on critical ones.
func runPreflight(ctx context.Context, cfg *config.Config, baseDir string) error {
	checker := preflight.New()
	results := checker.RunAll(ctx, preflightTargets(cfg, baseDir))
	for _, r := range results {
		if r.Status == preflight.StatusPass {
			continue
		}
		slog.Warn("preflight_check",
			slog.String("check", r.Name),
			slog.String("status", r.Status.String()),
			slog.String("message", r.Message),
			slog.Bool("required", r.Required))
	}
	if checker.HasCriticalFailures(results) {
		return termerrors.ConfigError(fmt.Sprintf("system check %s", checker.SummaryStatus(results)), nil).
			WithSuggestion("Run 'termsearch doctor' for details, or pass --skip-check")
	}
	return nil
}
