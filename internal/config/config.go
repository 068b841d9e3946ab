// Package config holds the daemon's immutable configuration, established
// once by the initialize RPC and read by every other component thereafter.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultEmbedderURL   = "http://localhost:11434"
	DefaultEmbedderModel = "nomic-embed-text"
	dbPathEnvVar         = "VOIDINDEXD_DB_PATH"
)

// EligibleExtensions is the set of source file extensions indexing applies to.
var EligibleExtensions = map[string]struct{}{
	"rs": {}, "ts": {}, "tsx": {}, "js": {}, "jsx": {}, "py": {}, "java": {},
	"c": {}, "cpp": {}, "h": {}, "hpp": {}, "go": {}, "rb": {}, "php": {},
	"swift": {}, "kt": {}, "scala": {}, "cs": {}, "dart": {}, "lua": {},
	"r": {}, "sh": {}, "bash": {}, "zsh": {}, "fish": {},
}

// ExcludedDirs is matched against any path segment; matching directories are
// never walked or watched.
var ExcludedDirs = map[string]struct{}{
	".git": {}, "node_modules": {}, "target": {}, "dist": {}, "build": {}, ".void": {},
}

// Config is the daemon's process-wide, write-once configuration.
type Config struct {
	WorkspacePath string
	EmbedderURL   string
	EmbedderModel string
	DBPath        string
}

// Params mirrors the wire-level initialize parameters, before defaulting.
type Params struct {
	WorkspacePath string
	EmbedderURL   string
	EmbedderModel string
	DBPath        string
}

// New builds a Config from initialize params, applying defaults.
func New(p Params) Config {
	cfg := Config{
		WorkspacePath: p.WorkspacePath,
		EmbedderURL:   p.EmbedderURL,
		EmbedderModel: p.EmbedderModel,
		DBPath:        p.DBPath,
	}
	if cfg.EmbedderURL == "" {
		cfg.EmbedderURL = DefaultEmbedderURL
	}
	if cfg.EmbedderModel == "" {
		cfg.EmbedderModel = DefaultEmbedderModel
	}
	if cfg.DBPath == "" {
		if env := os.Getenv(dbPathEnvVar); env != "" {
			cfg.DBPath = env
		} else {
			cfg.DBPath = filepath.Join(cfg.WorkspacePath, ".void", "index.lance")
		}
	}
	return cfg
}

// Equal reports whether two configs were built from identical effective
// parameters, used to decide AlreadyInitialized vs idempotent re-init.
func (c Config) Equal(o Config) bool {
	return c.WorkspacePath == o.WorkspacePath &&
		c.EmbedderURL == o.EmbedderURL &&
		c.EmbedderModel == o.EmbedderModel &&
		c.DBPath == o.DBPath
}

// IsEligibleExtension reports whether path's extension is indexable.
func IsEligibleExtension(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := EligibleExtensions[ext]
	return ok
}

// IsExcluded reports whether path has any segment in ExcludedDirs.
func IsExcluded(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if _, ok := ExcludedDirs[seg]; ok {
			return true
		}
	}
	return false
}

// Language derives a short language identifier from a file extension, for
// the chunker's language hint. Unknown extensions return the extension
// itself, per spec.
func Language(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "rs":
		return "rust"
	case "ts", "tsx":
		return "typescript"
	case "js", "jsx":
		return "javascript"
	case "py":
		return "python"
	case "java":
		return "java"
	case "c", "h":
		return "c"
	case "cpp", "hpp":
		return "cpp"
	case "go":
		return "go"
	case "rb":
		return "ruby"
	case "php":
		return "php"
	case "swift":
		return "swift"
	case "kt":
		return "kotlin"
	case "scala":
		return "scala"
	case "cs":
		return "csharp"
	case "dart":
		return "dart"
	case "lua":
		return "lua"
	case "r":
		return "r"
	case "sh", "bash", "zsh", "fish":
		return "shell"
	default:
		return ext
	}
}
