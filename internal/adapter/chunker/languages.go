package chunker

import (
	"path/filepath"
	"sort"
	"strings"
)

var extLanguages = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".mjs":  "javascript",
	".cjs":  "javascript",
	".jsx":  "jsx",
	".ts":   "typescript",
	".tsx":  "tsx",
	".rs":   "rust",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cc":   "cpp",
	".cpp":  "cpp",
	".cxx":  "cpp",
	".hpp":  "cpp",
	".hh":   "cpp",
	".rb":   "ruby",
	".php":  "php",
	".sh":   "bash",
	".bash": "bash",
}

// DetectLanguage maps a file path to a language name by extension. Unknown
// extensions return "text", which has no parser.
func DetectLanguage(path string) string {
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "text"
}

// SourceExtensions lists the extensions DetectLanguage recognises, as
// doublestar patterns for the directory walker.
func SourceExtensions() []string {
	patterns := make([]string, 0, len(extLanguages))
	for ext := range extLanguages {
		patterns = append(patterns, "**/*"+ext)
	}
	sort.Strings(patterns)
	return patterns
}

// SkipDirs are directory names never descended into when splitting a tree.
var SkipDirs = []string{
	".git", ".hg", ".svn",
	"node_modules", "vendor", "third_party",
	"__pycache__", ".venv", "venv", ".tox", ".mypy_cache", ".pytest_cache",
	"dist", "build", "target", ".idea", ".vscode", ".rlm",
}
