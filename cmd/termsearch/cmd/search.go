package cmd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/termsearch/internal/output"
	"github.com/Aman-CERP/termsearch/internal/store"
	"github.com/Aman-CERP/termsearch/pkg/searcher"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	graph      string
	kind       string
	node       string
	limit      int
	jsonOutput bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search",
		Short: "List indexed nodes of a graph",
		Long: `List the vocabulary and concept documents indexed for one graph,
read straight from the local index.

Like 'notify', this takes the data directory lock. While 'serve' is
running, use GET /graphs/{graph}/nodes instead.`,
		Example: `  termsearch search --graph g1
  termsearch search --graph g1 --kind concept --limit 20
  termsearch search --graph g1 --node c42 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.graph, "graph", "g", "", "Graph id (required)")
	cmd.Flags().StringVarP(&opts.kind, "kind", "k", "", "Filter by kind: vocabulary, concept")
	cmd.Flags().StringVar(&opts.node, "node", "", "Filter by node id")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", searcher.DefaultLimit, "Maximum number of documents")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("graph")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, opts searchOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer setupCommandLogging()()

	q, err := searcher.Query{
		GraphID: opts.graph,
		Kind:    store.Kind(opts.kind),
		NodeID:  opts.node,
		Limit:   opts.limit,
	}.Normalize()
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

	res, err := a.searcher.Search(ctx, q)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	out := output.New(cmd.OutOrStdout())
	if res.Total == 0 {
		out.Warningf("No documents indexed for graph %s", res.GraphID)
		return nil
	}
	out.Statusf("🔍", "Graph %s: %d document(s), showing %d", res.GraphID, res.Total, len(res.Documents))
	rows := make([][]string, 0, len(res.Documents))
	for _, d := range res.Documents {
		rows = append(rows, []string{string(d.Kind), d.NodeID, d.UpdatedAt.Format(time.RFC3339)})
	}
	out.Table(rows)
	return nil
}
