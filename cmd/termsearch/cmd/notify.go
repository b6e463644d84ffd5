package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
	"github.com/Aman-CERP/termsearch/internal/notify"
	"github.com/Aman-CERP/termsearch/internal/output"
)

func newNotifyCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "notify <file|->",
		Short: "Apply one notification to the local index",
		Long: `Read a notification JSON document from a file (or stdin with "-")
and apply it to the local index with the same processor 'serve' uses.

The command takes the data directory lock, so it cannot run while
'termsearch serve' holds the same index. POST to /notify instead.`,
		Example: `  termsearch notify saved.json
  cat deleted.json | termsearch notify -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotify(cmd.Context(), cmd, args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the history entry as JSON")

	return cmd
}

func runNotify(ctx context.Context, cmd *cobra.Command, source string, jsonOutput bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer setupCommandLogging()()

	n, err := readNotification(cmd.InOrStdin(), source)
	if err != nil {
		return err
	}

	cfg, baseDir, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg, baseDir, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	procErr := a.processor.Process(ctx, n)

	var entry notify.Entry
	if recent := a.history.Recent(1); len(recent) > 0 {
		entry = recent[0]
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(entry); err != nil {
			return err
		}
		return procErr
	}

	out := output.New(cmd.OutOrStdout())
	if procErr != nil {
		out.Errorf("%s failed after %dms", entry.Event, entry.DurationMS)
		return procErr
	}
	out.Successf("%s applied: %d node(s) in %d graph(s)", entry.Event, entry.Nodes, entry.Graphs)
	out.Statusf("", "id: %s", entry.ID)
	return nil
}

// readNotification decodes a notification from path, or from stdin for "-".
func readNotification(stdin io.Reader, path string) (*notify.Notification, error) {
	if path == "-" {
		return notify.Decode(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, termerrors.ValidationError(fmt.Sprintf("cannot read notification file %s", path), err)
	}
	defer func() { _ = f.Close() }()
	return notify.Decode(f)
}
