package ignore

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ErrFilterConfig indicates a malformed ignore rule set. It is fatal at
// startup: a filter is never constructed from bad rules.
var ErrFilterConfig = errors.New("invalid ignore filter configuration")

// DefaultMaxFileSize is the size cutoff above which files are treated as
// non-indexable (generated bundles, data dumps, binaries).
const DefaultMaxFileSize int64 = 1 << 20 // 1 MiB

// defaultDirExcludes are directory names pruned from every scan.
var defaultDirExcludes = []string{
	".git",
	".coderag",
	"node_modules",
	"__pycache__",
	".venv",
	"venv",
	"env",
	"dist",
	"build",
	".next",
	"target",
	"vendor",
	".gradle",
}

// defaultFileExcludes are glob patterns applied to file base names.
var defaultFileExcludes = []string{
	"*.pyc",
	"*.min.js",
	"*.bundle.js",
}

// Config holds the user-supplied portion of the rule set.
type Config struct {
	// Include narrows eligibility: when non-empty, a file must match at
	// least one pattern. Matched against the slash-separated relative
	// path and the base name.
	Include []string
	// Exclude always wins over Include on conflict.
	Exclude []string
	// MaxFileSize in bytes; zero means DefaultMaxFileSize.
	MaxFileSize int64
}

// Filter decides, given a relative path, whether it is eligible for
// indexing. It is a pure function of the path and the rule set fixed at
// construction.
type Filter struct {
	include     []string
	exclude     []string
	dirExcludes map[string]bool
	maxFileSize int64
}

// New builds a Filter, validating every glob pattern up front.
func New(cfg Config) (*Filter, error) {
	for _, p := range append(append([]string{}, cfg.Include...), cfg.Exclude...) {
		if p == "" {
			return nil, fmt.Errorf("%w: empty pattern", ErrFilterConfig)
		}
		if _, err := path.Match(p, "probe"); err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", ErrFilterConfig, p, err)
		}
	}

	dirs := make(map[string]bool, len(defaultDirExcludes))
	for _, d := range defaultDirExcludes {
		dirs[d] = true
	}

	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	return &Filter{
		include:     append([]string{}, cfg.Include...),
		exclude:     append(append([]string{}, defaultFileExcludes...), cfg.Exclude...),
		dirExcludes: dirs,
		maxFileSize: maxSize,
	}, nil
}

// SkipDir reports whether a directory should be pruned from the walk.
// Hidden directories are skipped except the root itself.
func (f *Filter) SkipDir(name string) bool {
	if f.dirExcludes[name] {
		return true
	}
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// Eligible reports whether the file at relPath (slash-separated, relative
// to the indexed root) with the given size should be indexed.
func (f *Filter) Eligible(relPath string, size int64) bool {
	relPath = filepath.ToSlash(relPath)

	if size > f.maxFileSize {
		return false
	}

	// A file under an excluded directory is ineligible even when handed
	// in directly rather than via a walk.
	parts := strings.Split(relPath, "/")
	for _, part := range parts[:len(parts)-1] {
		if f.SkipDir(part) {
			return false
		}
	}

	// Only files whose extension maps to a known language (including
	// markdown/text) are candidates; everything else is assumed binary
	// or generated.
	if !KnownExtension(relPath) {
		return false
	}

	// Exclude always wins.
	for _, p := range f.exclude {
		if matchPattern(p, relPath) {
			return false
		}
	}

	// Include patterns, when present, narrow eligibility.
	if len(f.include) > 0 {
		for _, p := range f.include {
			if matchPattern(p, relPath) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern applies a glob against both the full relative path and the
// base name, so "*.min.js" and "docs/*.md" both behave as expected.
// Patterns were validated at construction; Match cannot fail here.
func matchPattern(pattern, relPath string) bool {
	if ok, _ := path.Match(pattern, relPath); ok {
		return true
	}
	ok, _ := path.Match(pattern, path.Base(relPath))
	return ok
}
