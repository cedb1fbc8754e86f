package ignore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/coderag/pkg/types"
)

func TestFilterDefaults(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)

	assert.True(t, f.Eligible("main.go", 100))
	assert.True(t, f.Eligible("src/app.py", 100))
	assert.True(t, f.Eligible("README.md", 100))

	// Excluded directory components
	assert.False(t, f.Eligible("node_modules/lodash/index.js", 100))
	assert.False(t, f.Eligible("vendor/pkg/mod.go", 100))
	assert.False(t, f.Eligible(".git/config", 100))
	assert.False(t, f.Eligible("src/__pycache__/mod.pyc", 100))

	// Default file excludes
	assert.False(t, f.Eligible("app.min.js", 100))
	assert.False(t, f.Eligible("mod.pyc", 100))

	// Unknown extensions are assumed binary or generated
	assert.False(t, f.Eligible("logo.png", 100))
	assert.False(t, f.Eligible("data.bin", 100))
}

func TestFilterSizeCutoff(t *testing.T) {
	f, err := New(Config{MaxFileSize: 1024})
	require.NoError(t, err)

	assert.True(t, f.Eligible("small.go", 1024))
	assert.False(t, f.Eligible("big.go", 1025))
}

func TestFilterIncludeNarrows(t *testing.T) {
	f, err := New(Config{Include: []string{"*.go"}})
	require.NoError(t, err)

	assert.True(t, f.Eligible("pkg/a.go", 10))
	assert.False(t, f.Eligible("pkg/a.py", 10), "include list narrows to matching files only")
}

func TestFilterExcludeWins(t *testing.T) {
	f, err := New(Config{
		Include: []string{"*.go"},
		Exclude: []string{"*_gen.go"},
	})
	require.NoError(t, err)

	assert.True(t, f.Eligible("a.go", 10))
	assert.False(t, f.Eligible("a_gen.go", 10), "exclude always wins over include")
}

func TestFilterPathPatterns(t *testing.T) {
	f, err := New(Config{Exclude: []string{"docs/*.md"}})
	require.NoError(t, err)

	assert.False(t, f.Eligible("docs/guide.md", 10))
	assert.True(t, f.Eligible("README.md", 10))
}

func TestFilterBadPattern(t *testing.T) {
	_, err := New(Config{Include: []string{"[unclosed"}})
	assert.ErrorIs(t, err, ErrFilterConfig)

	_, err = New(Config{Exclude: []string{""}})
	assert.ErrorIs(t, err, ErrFilterConfig)
}

func TestSkipDir(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)

	assert.True(t, f.SkipDir("node_modules"))
	assert.True(t, f.SkipDir(".coderag"))
	assert.True(t, f.SkipDir(".hidden"))
	assert.False(t, f.SkipDir("internal"))
	assert.False(t, f.SkipDir("."))
}

func TestLanguageDetection(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.go", "go"},
		{"app.py", "python"},
		{"index.tsx", "typescript"},
		{"lib.rs", "rust"},
		{"notes.md", "markdown"},
		{"script.sh", "shell"},
		{"archive.tar.gz", types.LanguageUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Language(tt.path), tt.path)
	}
}
