package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/phpindex"
	"github.com/jward/phpindex/internal/config"
	"github.com/jward/phpindex/internal/logging"
)

func main() {
	cmd, a := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if !a.errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

// app holds the persistent flags and output streams shared by every
// command.
type app struct {
	root     string
	db       string
	backend  string
	format   string
	logLevel string

	out    io.Writer
	errOut io.Writer

	// errorHandled is set by outputError so main doesn't double-print.
	errorHandled bool
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{out: os.Stdout, errOut: os.Stderr}

	root := &cobra.Command{
		Use:           "phpindex",
		Short:         "Index PHP source trees for navigation, completion and search",
		Long:          "phpindex tokenizes PHP files, records their declarations and cross-references in an index, and answers declaration, type, completion and search queries against it.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			a.errOut = cmd.ErrOrStderr()
			return validateFormat(a.format)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.root, "root", "", "project root (default: nearest ancestor holding .git, else the working directory)")
	pf.StringVar(&a.db, "db", "", "database path or DSN (default: .phpindex/index.db under the root)")
	pf.StringVar(&a.backend, "backend", "", "storage back-end: sqlite|sqlite-pure|postgres|graph|dummy")
	pf.StringVar(&a.format, "format", "json", "output format: json|text")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug|info|warn|error (default: $"+logging.LevelEnv+" or info)")

	root.AddCommand(
		newBuildCmd(a),
		newUpdateCmd(a),
		newWatchCmd(a),
		newRulesCmd(a),
		newQueryCmd(a),
		newSearchCmd(a),
		newCompleteCmd(a),
		newScriptCmd(a),
	)
	return root, a
}

// logger returns the CLI logger, writing to the command's error stream.
func (a *app) logger(component string) *slog.Logger {
	level := a.logLevel
	if level == "" {
		level = os.Getenv(logging.LevelEnv)
	}
	return logging.New(component, logging.ParseLevel(level), a.errOut)
}

// projectRoot picks the project root: the positional path, then --root,
// then the repository containing the working directory.
func (a *app) projectRoot(args []string) (string, error) {
	switch {
	case len(args) > 0:
		return resolveTargetDir(args[0])
	case a.root != "":
		return resolveTargetDir(a.root)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	return findRepoRoot(cwd), nil
}

// loadConfig loads the project configuration with the CLI overrides.
func (a *app) loadConfig(root string) (*config.Config, error) {
	db := a.db
	if db != "" && a.backend != config.BackendPostgres && !filepath.IsAbs(db) {
		db = filepath.Join(root, db)
	}
	return config.Load(root, config.WithBackend(a.backend), config.WithDSN(db))
}

// openEngine opens the engine of the project at root. The storage
// directory is created when missing.
func (a *app) openEngine(root string) (*phpindex.Engine, *config.Config, error) {
	cfg, err := a.loadConfig(root)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Backend != config.BackendPostgres && cfg.Backend != config.BackendDummy {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating %s: %w", filepath.Dir(cfg.DSN), err)
		}
	}
	e, err := phpindex.Open(cfg, phpindex.WithLogger(a.logger("engine")))
	if err != nil {
		return nil, nil, fmt.Errorf("opening index: %w", err)
	}
	return e, cfg, nil
}

// resolveTargetDir returns the absolute path of an existing directory.
func resolveTargetDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}
