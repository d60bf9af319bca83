package editor

import (
	"path/filepath"
	"strings"
)

var languageByExt = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".jsx":   "javascriptreact",
	".ts":    "typescript",
	".tsx":   "typescriptreact",
	".java":  "java",
	".kt":    "kotlin",
	".rs":    "rust",
	".rb":    "ruby",
	".php":   "php",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".scala": "scala",
	".sh":    "shellscript",
	".bash":  "shellscript",
	".sql":   "sql",
	".html":  "html",
	".css":   "css",
	".json":  "json",
	".yaml":  "yaml",
	".yml":   "yaml",
	".md":    "markdown",
	".lua":   "lua",
}

var languageByName = map[string]string{
	"dockerfile": "dockerfile",
	"makefile":   "makefile",
}

// LanguageID maps a file path to an editor language identifier, falling
// back to "plaintext".
func LanguageID(path string) string {
	base := strings.ToLower(filepath.Base(path))
	if id, ok := languageByName[base]; ok {
		return id
	}
	if id, ok := languageByExt[strings.ToLower(filepath.Ext(base))]; ok {
		return id
	}
	return "plaintext"
}
