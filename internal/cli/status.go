package cli

import (
	"errors"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dshills/coderag/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics for the project",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	if _, err := os.Stat(dbPath(root)); os.IsNotExist(err) {
		cmd.Println("No index found. Run 'coderag index' first.")
		return nil
	}

	st, err := openStore(root)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(cmd.Context())
	if err != nil {
		return err
	}

	cmd.Printf("Project root:   %s\n", root)
	cmd.Printf("Index database: %s\n", dbPath(root))
	cmd.Printf("Indexed files:  %d\n", stats.TotalFiles)
	cmd.Printf("Stored chunks:  %d\n", stats.TotalChunks)

	info, err := st.ModelInfo(cmd.Context())
	switch {
	case err == nil:
		cmd.Printf("Embedding:      %s (dimension %d)\n", info.Model, info.Dimension)
	case errors.Is(err, store.ErrNotFound):
		cmd.Println("Embedding:      not yet established")
	default:
		return err
	}

	if len(stats.PerLanguage) > 0 {
		cmd.Println("Languages:")
		langs := make([]string, 0, len(stats.PerLanguage))
		for l := range stats.PerLanguage {
			langs = append(langs, l)
		}
		sort.Strings(langs)
		for _, l := range langs {
			cmd.Printf("  %-12s %d\n", l, stats.PerLanguage[l])
		}
	}
	return nil
}
