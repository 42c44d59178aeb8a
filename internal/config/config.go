// Package config loads per-project indexer settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the project config file looked up in the root.
const FileName = ".phpindex.yaml"

// DataDir holds the index database, graph snapshot and rules file.
const DataDir = ".phpindex"

// Storage back-ends.
const (
	BackendSQLite     = "sqlite"
	BackendSQLitePure = "sqlite-pure"
	BackendPostgres   = "postgres"
	BackendGraph      = "graph"
	BackendDummy      = "dummy"
)

// Environment overrides.
const (
	EnvBackend   = "PHPINDEX_BACKEND"
	EnvDSN       = "PHPINDEX_DSN"
	EnvBatchSize = "PHPINDEX_BATCH_SIZE"
	EnvParallel  = "PHPINDEX_PARALLEL"
	EnvGitignore = "PHPINDEX_GITIGNORE"
)

type Config struct {
	Root       string   `yaml:"-"`
	Backend    string   `yaml:"backend"`
	DSN        string   `yaml:"dsn"`
	Extensions []string `yaml:"extensions"`
	BatchSize  int      `yaml:"batch_size"`
	Parallel   bool     `yaml:"parallel"`
	Gitignore  bool     `yaml:"gitignore"`
	RulesFile  string   `yaml:"rules_file"`
	SkipDirs   []string `yaml:"skip_dirs"`
	// Builtins names a manifest replacing the compiled-in built-ins.
	Builtins string `yaml:"builtins"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults(root string) *Config {
	return &Config{
		Root:       root,
		Backend:    BackendSQLite,
		Extensions: []string{".php"},
		BatchSize:  3000,
		Parallel:   true,
		Gitignore:  true,
		SkipDirs:   []string{".git", ".svn", ".hg", "node_modules", DataDir},
	}
}

// Option overrides a loaded setting. Options run after the environment,
// before defaults are derived for unset paths.
type Option func(*Config)

// WithBackend selects the storage back-end.
func WithBackend(b string) Option {
	return func(c *Config) {
		if b != "" {
			c.Backend = b
		}
	}
}

// WithDSN sets the database path or connection string.
func WithDSN(dsn string) Option {
	return func(c *Config) {
		if dsn != "" {
			c.DSN = dsn
		}
	}
}

// Load builds the configuration of the project at root: defaults, then
// .phpindex.yaml, then PHPINDEX_* variables from the environment or the
// root's .env file, then opts. The process environment wins over .env.
func Load(root string, opts ...Option) (*Config, error) {
	cfg := Defaults(root)

	data, err := os.ReadFile(filepath.Join(root, FileName))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", FileName, err)
		}
	}

	dotenv, err := godotenv.Read(filepath.Join(root, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	getenv := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvBackend); v != "" {
		c.Backend = v
	}
	if v := getenv(EnvDSN); v != "" {
		c.DSN = v
	}
	if v := getenv(EnvBatchSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBatchSize, err)
		}
		c.BatchSize = n
	}
	for key, dst := range map[string]*bool{EnvParallel: &c.Parallel, EnvGitignore: &c.Gitignore} {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}
	return nil
}

// resolve validates the backend and fills in root-relative paths.
func (c *Config) resolve() error {
	switch c.Backend {
	case BackendSQLite, BackendSQLitePure, BackendPostgres, BackendGraph, BackendDummy:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batch_size must be positive, got %d", c.BatchSize)
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("config: no source extensions")
	}

	if c.DSN == "" {
		switch c.Backend {
		case BackendPostgres:
			return fmt.Errorf("config: postgres backend needs a dsn")
		case BackendGraph:
			c.DSN = filepath.Join(DataDir, "graph.yaml")
		default:
			c.DSN = filepath.Join(DataDir, "index.db")
		}
	}
	if c.Backend != BackendPostgres {
		c.DSN = c.abs(c.DSN)
	}
	if c.RulesFile == "" {
		c.RulesFile = filepath.Join(DataDir, "rules.csv")
	}
	c.RulesFile = c.abs(c.RulesFile)
	if c.Builtins != "" {
		c.Builtins = c.abs(c.Builtins)
	}
	return nil
}

func (c *Config) abs(p string) string {
	if filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}
