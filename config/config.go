package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"rlm/internal/domain"
)

// Config holds all configuration for the rlm tool.
type Config struct {
	Chunk    ChunkConfig    `yaml:"chunk"`
	Split    SplitConfig    `yaml:"split"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ChunkConfig holds flat text chunking configuration. Sizes are characters.
type ChunkConfig struct {
	MaxChars      int    `yaml:"max_chars"`
	OverlapChars  int    `yaml:"overlap_chars"`
	LookbackChars int    `yaml:"lookback_chars"` // Window searched for a newline or space before a hard split
	Encoding      string `yaml:"encoding"`
	OutDir        string `yaml:"out_dir"`
}

// SplitConfig holds syntax-aware splitting configuration.
type SplitConfig struct {
	MaxChars int      `yaml:"max_chars"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	Workers  int      `yaml:"workers"`
	OutDir   string   `yaml:"out_dir"`
}

// LedgerConfig holds evidence ledger storage configuration.
type LedgerConfig struct {
	DBPath      string        `yaml:"db_path"` // Relative to the project dir; empty means .rlm/ledger.db
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// DispatchConfig holds per-chunk analysis dispatch configuration.
type DispatchConfig struct {
	Command   string        `yaml:"command"` // Run through sh -c; reads a request on stdin, writes a result on stdout
	Workers   int           `yaml:"workers"`
	Timeout   time.Duration `yaml:"timeout"`
	Questions []string      `yaml:"questions"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunk: ChunkConfig{
			MaxChars:      15000,
			OverlapChars:  200,
			LookbackChars: 200,
			Encoding:      "utf-8",
			OutDir:        "chunks",
		},
		Split: SplitConfig{
			MaxChars: 15000,
			Includes: []string{
				"**/*.go", "**/*.py", "**/*.js", "**/*.mjs", "**/*.cjs", "**/*.jsx", "**/*.ts", "**/*.tsx",
				"**/*.rs", "**/*.java", "**/*.c", "**/*.h", "**/*.cc", "**/*.cpp", "**/*.cxx", "**/*.hpp", "**/*.hh",
				"**/*.rb", "**/*.php", "**/*.sh", "**/*.bash", "**/*.md", "**/*.txt",
			},
			Excludes: []string{"**/*.min.js", "**/*.pb.go", "**/*_generated.go"},
			Workers:  4,
			OutDir:   "chunks",
		},
		Ledger: LedgerConfig{
			OpenTimeout: time.Second,
		},
		Dispatch: DispatchConfig{
			Workers: 4,
			Timeout: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Chunk.MaxChars <= 0 {
		return domain.InvalidConfig("chunk.max_chars", c.Chunk.MaxChars, "must be > 0")
	}
	if c.Chunk.OverlapChars < 0 || c.Chunk.OverlapChars >= c.Chunk.MaxChars {
		return domain.InvalidConfig("chunk.overlap_chars", c.Chunk.OverlapChars, fmt.Sprintf("must be in [0, %d)", c.Chunk.MaxChars))
	}
	if c.Chunk.LookbackChars < 0 {
		return domain.InvalidConfig("chunk.lookback_chars", c.Chunk.LookbackChars, "must be >= 0")
	}
	if c.Split.MaxChars <= 0 {
		return domain.InvalidConfig("split.max_chars", c.Split.MaxChars, "must be > 0")
	}
	if c.Split.Workers <= 0 {
		return domain.InvalidConfig("split.workers", c.Split.Workers, "must be > 0")
	}
	if c.Dispatch.Workers <= 0 {
		return domain.InvalidConfig("dispatch.workers", c.Dispatch.Workers, "must be > 0")
	}
	if c.Dispatch.Timeout < 0 {
		return domain.InvalidConfig("dispatch.timeout", c.Dispatch.Timeout, "must be >= 0")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return domain.InvalidConfig("logging.format", c.Logging.Format, "must be console or json")
	}
	return nil
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfiguration, path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for rlm.yaml).
func LoadFromDir(dir string) (*Config, error) {
	// Try rlm.yaml in the directory
	path := filepath.Join(dir, "rlm.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Try .rlm/config.yaml
	path = filepath.Join(dir, ".rlm", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Return defaults
	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LedgerDBPath returns the path to the ledger database.
func (c *Config) LedgerDBPath(dir string) string {
	if c.Ledger.DBPath != "" {
		if filepath.IsAbs(c.Ledger.DBPath) {
			return c.Ledger.DBPath
		}
		return filepath.Join(dir, c.Ledger.DBPath)
	}
	return filepath.Join(dir, ".rlm", "ledger.db")
}

// EnsureRLMDir ensures the .rlm directory exists.
func EnsureRLMDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".rlm"), 0755)
}
