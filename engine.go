package phpindex

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/jward/phpindex/internal/builtins"
	"github.com/jward/phpindex/internal/config"
	"github.com/jward/phpindex/internal/logging"
	"github.com/jward/phpindex/internal/pathrules"
	"github.com/jward/phpindex/internal/store"
)

// State is the phase of the engine's current or last run.
type State int32

const (
	Idle State = iota
	Building
	Scanning
	Updating
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Building:
		return "building"
	case Scanning:
		return "scanning"
	case Updating:
		return "updating"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Callbacks observe a build or update. Any of them may be nil.
//
// Progress is called once per file processed with the number of files
// done so far and the total for the run. Error receives per-file lex and
// parse failures (*FileError), which do not stop the run, and the
// *StorageError that ends a failed run. Finished is only called when the
// run succeeds.
type Callbacks struct {
	Progress func(done, total int, path string)
	Error    func(err error)
	Finished func()
}

func (cb Callbacks) progress(done, total int, path string) {
	if cb.Progress != nil {
		cb.Progress(done, total, path)
	}
}

func (cb Callbacks) error(err error) {
	if cb.Error != nil {
		cb.Error(err)
	}
}

func (cb Callbacks) finished() {
	if cb.Finished != nil {
		cb.Finished()
	}
}

// Engine builds and incrementally updates the index of a project tree.
// Runs are serialized; queries may be served concurrently from Query and
// Completer.
type Engine struct {
	storage  store.Storage
	cfg      *config.Config
	rules    *pathrules.Rules
	builtins *builtins.Manifest
	logger   *slog.Logger

	run   sync.Mutex
	state atomic.Int32
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRules replaces the include/exclude rules read from the config's
// rules file.
func WithRules(r *pathrules.Rules) Option {
	return func(e *Engine) { e.rules = r }
}

// WithBuiltins replaces the built-in declarations seeded by Build.
func WithBuiltins(m *builtins.Manifest) Option {
	return func(e *Engine) { e.builtins = m }
}

// New creates an Engine writing to s. A nil cfg uses config.Defaults.
func New(s store.Storage, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Defaults("")
	}
	e := &Engine{
		storage: s,
		cfg:     cfg,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rules == nil {
		rules := pathrules.New()
		if cfg.RulesFile != "" {
			var err error
			if rules, err = pathrules.Load(cfg.RulesFile); err != nil {
				return nil, fmt.Errorf("phpindex: %w", err)
			}
		}
		e.rules = rules
	}
	if e.builtins == nil {
		var err error
		if cfg.Builtins != "" {
			e.builtins, err = builtins.Load(cfg.Builtins)
		} else {
			e.builtins, err = builtins.Default()
		}
		if err != nil {
			return nil, fmt.Errorf("phpindex: %w", err)
		}
	}
	return e, nil
}

// Open creates the storage back-end named by cfg and an Engine on top of
// it. Close releases the storage.
func Open(cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{logger: logging.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	s, err := OpenStorage(cfg, e.logger)
	if err != nil {
		return nil, err
	}
	eng, err := New(s, cfg, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	return eng, nil
}

// Close closes the storage.
func (e *Engine) Close() error {
	return e.storage.Close()
}

// Storage returns the underlying storage back-end.
func (e *Engine) Storage() store.Storage {
	return e.storage
}

// Rules returns the include/exclude rules applied by the walk.
func (e *Engine) Rules() *pathrules.Rules {
	return e.rules
}

// State reports the phase of the current or last run.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// Query returns a QueryBuilder over the engine's storage.
func (e *Engine) Query() *QueryBuilder {
	return NewQueryBuilder(e.storage)
}

// fail records a fatal run error and abandons the open batch.
func (e *Engine) fail(cb Callbacks, err error) error {
	e.setState(Failed)
	if rerr := e.storage.Rollback(context.Background()); rerr != nil {
		e.logger.Warn("rollback failed", "err", rerr)
	}
	e.logger.Error("run failed", "err", err)
	cb.error(err)
	return err
}

// Build empties the index, seeds the built-ins and indexes every eligible
// file under root.
func (e *Engine) Build(ctx context.Context, root string, cb Callbacks) error {
	e.run.Lock()
	defer e.run.Unlock()

	root, err := filepath.Abs(root)
	if err != nil {
		return e.fail(cb, fmt.Errorf("build: %w", err))
	}
	start := time.Now()
	e.setState(Building)
	e.logger.Info("build started", "root", root)

	if err := e.storage.Empty(ctx); err != nil {
		return e.fail(cb, &StorageError{Op: "empty", Err: err})
	}
	if err := e.storage.BeginBatch(ctx); err != nil {
		return e.fail(cb, &StorageError{Op: "begin batch", Err: err})
	}
	if err := e.builtins.Seed(ctx, e.storage); err != nil {
		return e.fail(cb, &StorageError{Op: "seed builtins", Path: store.BuiltinPath, Err: err})
	}

	paths, err := e.collect(root)
	if err != nil {
		return e.fail(cb, fmt.Errorf("build: %w", err))
	}
	items := make([]workItem, len(paths))
	for i, p := range paths {
		items[i] = workItem{path: p}
	}
	n, err := e.index(ctx, items, cb)
	if err != nil {
		return e.fail(cb, err)
	}
	if err := e.storage.Sync(ctx); err != nil {
		return e.fail(cb, &StorageError{Op: "sync", Err: err})
	}

	e.setState(Succeeded)
	e.logger.Info("build finished", "files", n, "duration", time.Since(start))
	cb.finished()
	return nil
}

// Update brings the index in line with root: files that were deleted or
// are now excluded are dropped, and files whose content hash changed are
// re-indexed. The mtime is only a pre-filter; a file is re-indexed when
// its hash differs from the stored one.
func (e *Engine) Update(ctx context.Context, root string, cb Callbacks) error {
	e.run.Lock()
	defer e.run.Unlock()

	root, err := filepath.Abs(root)
	if err != nil {
		return e.fail(cb, fmt.Errorf("update: %w", err))
	}
	start := time.Now()
	e.setState(Scanning)
	e.logger.Info("update started", "root", root)

	stored, err := e.storage.AllFiles(ctx)
	if err != nil {
		return e.fail(cb, &StorageError{Op: "list files", Err: err})
	}
	if err := e.storage.BeginBatch(ctx); err != nil {
		return e.fail(cb, &StorageError{Op: "begin batch", Err: err})
	}

	paths, err := e.collect(root)
	if err != nil {
		return e.fail(cb, fmt.Errorf("update: %w", err))
	}
	eligible := make(map[string]bool, len(paths))
	for _, p := range paths {
		eligible[p] = true
	}

	known := make(map[string]*store.File, len(stored))
	removed := 0
	for _, f := range stored {
		if eligible[f.Path] || !underRoot(root, f.Path) && e.stillExists(f.Path) {
			known[f.Path] = f
			continue
		}
		if err := e.storage.RemoveFile(ctx, f.Path); err != nil {
			return e.fail(cb, &StorageError{Op: "remove", Path: f.Path, Err: err})
		}
		e.logger.Debug("removed from index", "path", f.Path)
		removed++
	}

	items, touched, err := e.changed(ctx, paths, known)
	if err != nil {
		return e.fail(cb, fmt.Errorf("update: %w", err))
	}
	for path, mtime := range touched {
		if err := e.storage.TouchFile(ctx, path, mtime); err != nil {
			return e.fail(cb, &StorageError{Op: "touch", Path: path, Err: err})
		}
	}

	e.setState(Updating)
	n, err := e.index(ctx, items, cb)
	if err != nil {
		return e.fail(cb, err)
	}
	if err := e.storage.Sync(ctx); err != nil {
		return e.fail(cb, &StorageError{Op: "sync", Err: err})
	}

	e.setState(Succeeded)
	e.logger.Info("update finished", "files", n, "removed", removed, "duration", time.Since(start))
	cb.finished()
	return nil
}

func underRoot(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

// stillExists keeps files indexed from outside root untouched by an
// update of root, unless they are gone from disk.
func (e *Engine) stillExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// included reports whether the rules and config admit the file at path.
func (e *Engine) included(root, path string, gi *ignore.GitIgnore) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if gi != nil && gi.MatchesPath(rel) {
		return false
	}
	return e.rules.Included(rel)
}

// descend reports whether the walk enters directory path. An excluded
// directory is still entered when an include rule lies below it.
func (e *Engine) descend(root, path string, gi *ignore.GitIgnore) bool {
	if e.included(root, path, gi) {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if gi != nil && gi.MatchesPath(rel) {
		return false
	}
	return e.rules.IncludesBelow(rel)
}

func (e *Engine) hasSourceExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range e.cfg.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

func (e *Engine) skipDir(name string) bool {
	for _, d := range e.cfg.SkipDirs {
		if name == d {
			return true
		}
	}
	return false
}

func (e *Engine) gitignore(root string) *ignore.GitIgnore {
	if !e.cfg.Gitignore {
		return nil
	}
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

// collect walks root depth-first in lexical order and returns the
// absolute paths of the files to index.
func (e *Engine) collect(root string) ([]string, error) {
	gi := e.gitignore(root)
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			e.logger.Debug("skipping unreadable path", "path", path, "err", err)
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if e.skipDir(d.Name()) || !e.descend(root, path, gi) {
				e.logger.Debug("skipping directory", "path", path)
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !e.hasSourceExt(d.Name()) {
			return nil
		}
		if !e.included(root, path, gi) {
			e.logger.Debug("skipping excluded file", "path", path)
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return paths, nil
}

// Eligible reports whether path under root would be indexed.
func (e *Engine) Eligible(root, path string) bool {
	root, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	if !e.hasSourceExt(path) || !underRoot(root, path) {
		return false
	}
	rel, _ := filepath.Rel(root, filepath.Dir(path))
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if e.skipDir(seg) {
			return false
		}
	}
	return e.included(root, path, e.gitignore(root))
}
