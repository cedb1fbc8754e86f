package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/coderag/internal/config"
	"github.com/dshills/coderag/internal/searcher"
	"github.com/dshills/coderag/pkg/types"
)

var (
	flagTopK       int
	flagLanguage   string
	flagPathPrefix string
	flagShowBodies bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index with a natural-language query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&flagTopK, "top", "k", types.DefaultTopK, "number of results")
	searchCmd.Flags().StringVar(&flagLanguage, "language", "", "filter by language")
	searchCmd.Flags().StringVar(&flagPathPrefix, "path", "", "filter by file path prefix")
	searchCmd.Flags().BoolVar(&flagShowBodies, "content", false, "print chunk bodies")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
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

	s, err := searcher.New(st, emb)
	if err != nil {
		return err
	}

	results, err := s.Search(cmd.Context(), types.Query{
		Text:       strings.Join(args, " "),
		TopK:       flagTopK,
		Language:   flagLanguage,
		PathPrefix: flagPathPrefix,
	})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		cmd.Println("No results. Has the project been indexed? Try 'coderag index'.")
		return nil
	}

	for _, r := range results {
		cmd.Printf("%2d. %s:%d-%d  (%s, score %.4f)\n",
			r.Rank, r.Chunk.FilePath, r.Chunk.StartLine, r.Chunk.EndLine, r.Chunk.ChunkType, r.Score)
		if name := r.Chunk.Metadata["name"]; name != "" {
			cmd.Printf("    %s %s\n", r.Chunk.ChunkType, name)
		}
		if flagShowBodies {
			for _, line := range strings.Split(r.Chunk.Content, "\n") {
				cmd.Printf("    | %s\n", line)
			}
		}
	}
	return nil
}
