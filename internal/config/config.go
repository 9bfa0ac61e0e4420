// Package config loads vlt.toml and the environment-derived settings.
// The file is searched upward from the working directory. Every section
// except [project] is optional; missing sections fall back to defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName is the project configuration file searched upward from cwd.
const ConfigFileName = "vlt.toml"

// ErrNotFound is returned when no vlt.toml exists in any parent directory.
var ErrNotFound = errors.New("vlt.toml not found")

// ConfigError indicates a malformed or incomplete configuration file.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config is the parsed vlt.toml.
type Config struct {
	Project ProjectConfig `toml:"project"`
	CodeRAG CodeRAGConfig `toml:"coderag"`
	Oracle  OracleConfig  `toml:"oracle"`

	// Path is the absolute path of the loaded file. Not serialized.
	Path string `toml:"-"`
}

// ProjectConfig identifies the project. Name and ID are required.
type ProjectConfig struct {
	Name        string `toml:"name"`
	ID          string `toml:"id"`
	Description string `toml:"description"`
}

// CodeRAGConfig controls indexing of source repositories.
type CodeRAGConfig struct {
	Include   []string        `toml:"include"`
	Exclude   []string        `toml:"exclude"`
	Languages []string        `toml:"languages"`
	Embedding EmbeddingConfig `toml:"embedding"`
	RepoMap   RepoMapConfig   `toml:"repomap"`
	Delta     DeltaConfig     `toml:"delta"`
}

// EmbeddingConfig selects the embedding model and batch size.
type EmbeddingConfig struct {
	Model     string `toml:"model"`
	Provider  string `toml:"provider"` // "openai" (default) or "genai"
	BatchSize int    `toml:"batch_size"`
}

// RepoMapConfig controls repo-map rendering.
type RepoMapConfig struct {
	MaxTokens         int  `toml:"max_tokens"`
	IncludeSignatures bool `toml:"include_signatures"`
	IncludeDocstrings bool `toml:"include_docstrings"`
}

// DeltaConfig controls the re-indexing thresholds.
type DeltaConfig struct {
	FileThreshold  int  `toml:"file_threshold"`
	LineThreshold  int  `toml:"line_threshold"`
	TimeoutSeconds int  `toml:"timeout_seconds"`
	JITIndexing    bool `toml:"jit_indexing"`
}

// OracleConfig controls the query pipeline.
type OracleConfig struct {
	VaultURL         string `toml:"vault_url"`
	SynthesisModel   string `toml:"synthesis_model"`
	RerankModel      string `toml:"rerank_model"`
	MaxContextTokens int    `toml:"max_context_tokens"`
}

// Root returns the directory containing the loaded vlt.toml, or "." for
// a config that was never loaded from disk.
func (c *Config) Root() string {
	if c.Path == "" {
		return "."
	}
	return filepath.Dir(c.Path)
}

// Default returns a Config with built-in defaults and no project identity.
func Default() *Config {
	return &Config{
		CodeRAG: CodeRAGConfig{
			Include:   []string{"**/*.py", "**/*.ts", "**/*.js", "**/*.go"},
			Exclude:   []string{"node_modules", ".git", "vendor", "__pycache__", "dist", "build"},
			Languages: []string{"python", "typescript", "javascript", "go"},
			Embedding: EmbeddingConfig{
				Model:     "text-embedding-3-small",
				Provider:  "openai",
				BatchSize: 32,
			},
			RepoMap: RepoMapConfig{
				MaxTokens:         2048,
				IncludeSignatures: true,
				IncludeDocstrings: false,
			},
			Delta: DeltaConfig{
				FileThreshold:  5,
				LineThreshold:  1000,
				TimeoutSeconds: 300,
				JITIndexing:    true,
			},
		},
		Oracle: OracleConfig{
			SynthesisModel:   "gpt-4o",
			RerankModel:      "gpt-4o-mini",
			MaxContextTokens: 16000,
		},
	}
}

// Find walks upward from dir looking for vlt.toml.
func Find(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(abs, ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ErrNotFound
		}
		abs = parent
	}
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	cfg.Path = path

	if cfg.Project.Name == "" || cfg.Project.ID == "" {
		return nil, &ConfigError{Path: path, Err: errors.New("[project] requires name and id")}
	}
	if cfg.Oracle.MaxContextTokens <= 0 {
		cfg.Oracle.MaxContextTokens = 16000
	}
	if cfg.CodeRAG.Embedding.BatchSize <= 0 {
		cfg.CodeRAG.Embedding.BatchSize = 32
	}
	return cfg, nil
}

// Discover finds and loads the config starting from dir.
func Discover(dir string) (*Config, error) {
	path, err := Find(dir)
	if err != nil {
		return nil, err
	}
	return Load(path)
}
