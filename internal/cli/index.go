package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/coderag/internal/config"
	"github.com/dshills/coderag/internal/indexer"
	"github.com/dshills/coderag/pkg/types"
)

var (
	flagForce      bool
	flagDryRun     bool
	flagInclude    []string
	flagExclude    []string
	flagIndexModel string
	flagWorkers    int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index or re-index the project tree",
	Long: `Scans the project tree, chunks changed files, embeds new chunks, and
updates the local index. Unchanged files are skipped; deleted files have
their chunks removed. Interrupting with Ctrl-C stops cleanly between
files.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "re-embed everything, ignoring change detection")
	indexCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "report what would change without writing")
	indexCmd.Flags().StringSliceVar(&flagInclude, "include", nil, "additional include glob (repeatable)")
	indexCmd.Flags().StringSliceVar(&flagExclude, "exclude", nil, "additional exclude glob (repeatable)")
	indexCmd.Flags().StringVar(&flagIndexModel, "model", "", "embedding model override")
	indexCmd.Flags().IntVar(&flagWorkers, "workers", 0, "scan worker count (default: CPU count)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	if flagIndexModel != "" {
		cfg.Embedding.Model = flagIndexModel
	}
	if flagWorkers > 0 {
		cfg.Index.Workers = flagWorkers
	}

	st, err := openStore(root)
	if err != nil {
		return err
	}
	defer st.Close()

	emb, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	defer emb.Close()

	filter, err := newFilter(cfg, flagInclude, flagExclude)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	idx := indexer.New(root, st, emb, newChunker(cfg), filter)
	report, err := idx.Run(ctx, indexer.Options{
		Force:   flagForce,
		DryRun:  flagDryRun,
		Workers: cfg.Index.Workers,
	})
	printReport(cmd, report)
	return err
}

func printReport(cmd *cobra.Command, r *types.RunReport) {
	if r == nil {
		return
	}
	if r.DryRun {
		cmd.Println("=== Dry Run ===")
	}
	cmd.Printf("Outcome:            %s\n", r.Summary())
	cmd.Printf("Files scanned:      %d\n", r.FilesScanned)
	cmd.Printf("Files unchanged:    %d\n", r.FilesSkippedUnchanged)
	cmd.Printf("Chunks created:     %d\n", r.ChunksCreated)
	cmd.Printf("Chunks updated:     %d\n", r.ChunksUpdated)
	cmd.Printf("Chunks deleted:     %d\n", r.ChunksDeleted)
	if r.EmbeddingErrors > 0 {
		cmd.Printf("Embedding errors:   %d\n", r.EmbeddingErrors)
	}
	cmd.Printf("Elapsed:            %s\n", r.Elapsed.Round(1e6))

	for _, f := range r.Files {
		switch f.Outcome {
		case types.FileFailed:
			cmd.Printf("  ✗ %s: %s\n", f.FilePath, f.Error)
		case types.FileDeleted:
			cmd.Printf("  - %s\n", f.FilePath)
		default:
			if r.DryRun {
				cmd.Printf("  ~ %s (%s)\n", f.FilePath, f.Outcome)
			}
		}
	}
}
