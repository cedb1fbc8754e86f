// Package cli implements the coderag command tree.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/coderag/internal/chunker"
	"github.com/dshills/coderag/internal/config"
	"github.com/dshills/coderag/internal/embedder"
	"github.com/dshills/coderag/internal/ignore"
	"github.com/dshills/coderag/internal/store"
)

var flagRoot string

var rootCmd = &cobra.Command{
	Use:          "coderag",
	Short:        "Semantic code search over a project tree",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `coderag builds a local semantic index of a source tree and answers
natural-language queries against it. The index lives in .coderag/ under
the project root; runs are incremental, re-embedding only what changed.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", ".", "project root directory")
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// projectRoot resolves the --root flag to an absolute path.
func projectRoot() (string, error) {
	abs, err := filepath.Abs(flagRoot)
	if err != nil {
		return "", fmt.Errorf("cannot resolve project root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cannot access project root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project root %s is not a directory", abs)
	}
	return abs, nil
}

// dbPath returns the index database location for a project root.
func dbPath(root string) string {
	return filepath.Join(root, ".coderag", "index.db")
}

// openStore creates the index directory if needed and opens the store.
func openStore(root string) (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Join(root, ".coderag"), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create index directory: %w", err)
	}
	return store.Open(dbPath(root))
}

// newEmbedder builds the embedding client from config, with environment
// variables taking precedence via config.Load.
func newEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	if cfg.Embedding.Provider == "" && cfg.Embedding.Model == "" {
		return embedder.NewFromEnv()
	}
	return embedder.New(embedder.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   os.Getenv("OPENAI_API_KEY"),
	})
}

// newFilter builds the ignore filter from config plus command-line
// include/exclude additions.
func newFilter(cfg *config.Config, include, exclude []string) (*ignore.Filter, error) {
	return ignore.New(ignore.Config{
		Include:     append(append([]string{}, cfg.Index.Include...), include...),
		Exclude:     append(append([]string{}, cfg.Index.Exclude...), exclude...),
		MaxFileSize: cfg.Index.MaxFileSize,
	})
}

// newChunker builds the chunker with any configured window overrides.
func newChunker(cfg *config.Config) *chunker.Chunker {
	if cfg.Index.WindowSize > 0 || cfg.Index.Overlap > 0 {
		return chunker.New(chunker.WithWindow(cfg.Index.WindowSize, cfg.Index.Overlap))
	}
	return chunker.New()
}
