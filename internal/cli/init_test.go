package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/coderag/internal/config"
	"github.com/dshills/coderag/internal/embedder"
)

func writeTreeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDetectProject(t *testing.T) {
	t.Run("marker file wins", func(t *testing.T) {
		root := t.TempDir()
		writeTreeFile(t, root, "go.mod", "module example.com/demo\n")
		writeTreeFile(t, root, "script.py", "print('hi')\n")

		p := detectProject(root, "")
		require.NotNil(t, p)
		assert.Equal(t, "go", p.name)
	})

	t.Run("typescript marker beats javascript", func(t *testing.T) {
		root := t.TempDir()
		writeTreeFile(t, root, "package.json", "{}")
		writeTreeFile(t, root, "tsconfig.json", "{}")

		p := detectProject(root, "")
		require.NotNil(t, p)
		assert.Equal(t, "typescript", p.name)
	})

	t.Run("extension count fallback", func(t *testing.T) {
		root := t.TempDir()
		writeTreeFile(t, root, "a.py", "pass\n")
		writeTreeFile(t, root, "b.py", "pass\n")
		writeTreeFile(t, root, "c.rs", "fn main() {}\n")

		p := detectProject(root, "")
		require.NotNil(t, p)
		assert.Equal(t, "python", p.name)
	})

	t.Run("explicit type overrides detection", func(t *testing.T) {
		root := t.TempDir()
		writeTreeFile(t, root, "go.mod", "module example.com/demo\n")

		p := detectProject(root, "rust")
		require.NotNil(t, p)
		assert.Equal(t, "rust", p.name)
	})

	t.Run("empty tree is generic", func(t *testing.T) {
		assert.Nil(t, detectProject(t.TempDir(), ""))
	})
}

func TestRunInit(t *testing.T) {
	root := t.TempDir()
	writeTreeFile(t, root, "go.mod", "module example.com/demo\n")

	prevRoot, prevForce := flagRoot, flagInitForce
	t.Cleanup(func() { flagRoot, flagInitForce = prevRoot, prevForce })
	flagRoot = root
	flagInitForce = false

	require.NoError(t, runInit(initCmd, nil))

	cfg, err := config.Load(root)
	require.NoError(t, err)
	assert.Equal(t, embedder.ProviderOllama, cfg.Embedding.Provider)
	assert.Equal(t, embedder.DefaultOllamaModel, cfg.Embedding.Model)
	assert.NotZero(t, cfg.Index.WindowSize)
	assert.Contains(t, cfg.Index.Exclude, "*.pb.go")

	info, err := os.Stat(filepath.Join(root, ".coderag"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// A second init refuses to clobber the config without --force.
	err = runInit(initCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	flagInitForce = true
	require.NoError(t, runInit(initCmd, nil))
}
