package ignore

import (
	"path/filepath"
	"strings"

	"github.com/dshills/coderag/pkg/types"
)

// languageByExtension maps file extensions to language names. Extensions
// absent from this table mark a file as non-indexable.
var languageByExtension = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".go":    "go",
	".rs":    "rust",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".sh":    "shell",
	".bash":  "shell",
	".md":    "markdown",
	".txt":   "text",
}

// Language infers the language of a file from its extension. Unknown
// extensions return types.LanguageUnknown, which routes to generic
// chunking.
func Language(path string) string {
	if lang, ok := languageByExtension[normalizedExt(path)]; ok {
		return lang
	}
	return types.LanguageUnknown
}

// KnownExtension reports whether the file's extension appears in the
// language table.
func KnownExtension(path string) bool {
	_, ok := languageByExtension[normalizedExt(path)]
	return ok
}

func normalizedExt(path string) string {
	return strings.ToLower(filepath.Ext(filepath.ToSlash(path)))
}
