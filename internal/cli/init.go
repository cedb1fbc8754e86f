package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/coderag/internal/chunker"
	"github.com/dshills/coderag/internal/config"
	"github.com/dshills/coderag/internal/embedder"
	"github.com/dshills/coderag/internal/llm"
)

var (
	flagInitForce bool
	flagInitType  string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize coderag in the project root",
	Long: `init detects the project type, writes a starter .coderag.yaml, and
creates the .coderag/ data directory. An existing config is kept unless
--force is given.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&flagInitForce, "force", false, "overwrite an existing config")
	initCmd.Flags().StringVar(&flagInitType, "type", "", "project type (python, javascript, typescript, go, rust, java); auto-detected when empty")
	rootCmd.AddCommand(initCmd)
}

// projectProfile describes one recognizable project type: the marker files
// that identify it, the extensions it is counted by when no marker is
// present, and the exclude patterns worth seeding its config with.
type projectProfile struct {
	name       string
	markers    []string
	extensions []string
	excludes   []string
}

// Ordered so marker detection is deterministic when a tree carries markers
// for more than one type. The built-in directory excludes (vendor,
// node_modules, target, ...) already prune each type's build output;
// profile excludes only add file globs beyond those.
var projectProfiles = []projectProfile{
	{
		name:       "go",
		markers:    []string{"go.mod", "go.sum"},
		extensions: []string{".go"},
		excludes:   []string{"*.pb.go", "*_gen.go"},
	},
	{
		name:       "python",
		markers:    []string{"pyproject.toml", "requirements.txt", "setup.py", "Pipfile"},
		extensions: []string{".py"},
		excludes:   []string{"*.pyi"},
	},
	{
		name:       "typescript",
		markers:    []string{"tsconfig.json"},
		extensions: []string{".ts", ".tsx"},
		excludes:   []string{"*.d.ts", "*.min.js"},
	},
	{
		name:       "javascript",
		markers:    []string{"package.json"},
		extensions: []string{".js", ".jsx"},
		excludes:   []string{"*.min.js", "*.bundle.js"},
	},
	{
		name:       "rust",
		markers:    []string{"Cargo.toml"},
		extensions: []string{".rs"},
	},
	{
		name:       "java",
		markers:    []string{"pom.xml", "build.gradle", "settings.gradle"},
		extensions: []string{".java"},
	},
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	cfgPath := filepath.Join(root, config.ConfigFileName)
	if _, serr := os.Stat(cfgPath); serr == nil && !flagInitForce {
		return fmt.Errorf("%s already exists; use --force to overwrite", cfgPath)
	}

	profile := detectProject(root, flagInitType)
	name := "generic"
	if profile != nil {
		name = profile.name
	}
	cmd.Printf("Detected project type: %s\n", name)

	cfg := starterConfig(profile)
	if err := cfg.Save(root); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(root, ".coderag"), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	cmd.Printf("Wrote %s\n", cfgPath)
	cmd.Println("Run 'coderag index' to build the index.")
	return nil
}

// detectProject picks a profile by explicit choice, then marker files, then
// whichever type owns the most source files. Nil means generic.
func detectProject(root, explicit string) *projectProfile {
	if explicit != "" {
		for i := range projectProfiles {
			if projectProfiles[i].name == strings.ToLower(explicit) {
				return &projectProfiles[i]
			}
		}
		fmt.Fprintf(os.Stderr, "unknown project type %q, auto-detecting\n", explicit)
	}

	for i := range projectProfiles {
		for _, marker := range projectProfiles[i].markers {
			if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
				return &projectProfiles[i]
			}
		}
	}

	byExt := make(map[string]int)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		byExt[filepath.Ext(path)]++
		return nil
	})

	var best *projectProfile
	bestCount := 0
	for i := range projectProfiles {
		count := 0
		for _, ext := range projectProfiles[i].extensions {
			count += byExt[ext]
		}
		if count > bestCount {
			best = &projectProfiles[i]
			bestCount = count
		}
	}
	return best
}

// starterConfig builds the config init writes: chunking and provider
// defaults made explicit so they are discoverable, plus the profile's
// exclude patterns.
func starterConfig(profile *projectProfile) *config.Config {
	cfg := &config.Config{}
	cfg.Embedding.Provider = embedder.ProviderOllama
	cfg.Embedding.Model = embedder.DefaultOllamaModel
	cfg.LLM.Provider = llm.ProviderOllama
	cfg.LLM.Model = llm.DefaultOllamaChatModel
	cfg.LLM.Temperature = llm.DefaultTemperature
	cfg.LLM.MaxTokens = llm.DefaultMaxTokens
	cfg.Index.WindowSize = chunker.DefaultWindowSize
	cfg.Index.Overlap = chunker.DefaultOverlap
	if profile != nil {
		cfg.Index.Exclude = append([]string{}, profile.excludes...)
	}
	return cfg
}
