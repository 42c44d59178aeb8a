// Package graphstore is a node/edge graph back-end of the storage
// contract. Declarations are nodes keyed by their fully qualified name;
// inheritance, membership and references are edges. All state is owned by
// one goroutine that serves requests in order, and the graph can be
// persisted as a YAML snapshot.
package graphstore

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/jward/phpindex/internal/logging"
	"github.com/jward/phpindex/internal/store"
)

// ErrClosed is returned by every call made after Close.
var ErrClosed = errors.New("graphstore: closed")

type request struct {
	fn   func(g *graph) error
	done chan error
}

// Store serves the storage contract from an in-memory graph.
type Store struct {
	path   string
	logger *slog.Logger

	reqs    chan request
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once

	// saved is the graph at BeginBatch; only the actor touches it.
	saved *snapshot

	store.Positions
}

var (
	_ store.Storage      = (*Store)(nil)
	_ store.FileReplacer = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open starts a graph store. When path is non-empty the snapshot there is
// loaded, and Sync and Close write it back.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:    path,
		logger:  logging.Default("graphstore"),
		reqs:    make(chan request),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	s.Positions = store.NewPositions(s)
	for _, opt := range opts {
		opt(s)
	}

	g := newGraph()
	if path != "" {
		var err error
		if g, err = loadSnapshot(path); err != nil {
			return nil, err
		}
		s.logger.Debug("snapshot loaded", "path", path, "files", len(g.files))
	}
	go s.loop(g)
	return s, nil
}

func (s *Store) loop(g *graph) {
	defer close(s.stopped)
	for {
		select {
		case req := <-s.reqs:
			req.done <- req.fn(g)
		case <-s.quit:
			return
		}
	}
}

// do runs fn on the actor goroutine and waits for it.
func (s *Store) do(ctx context.Context, fn func(g *graph) error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case s.reqs <- req:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	// Once accepted the request always completes.
	return <-req.done
}

// Close writes the snapshot, if any, and stops the actor.
func (s *Store) Close() error {
	err := ErrClosed
	s.once.Do(func() {
		err = s.do(context.Background(), s.persist)
		close(s.quit)
		<-s.stopped
	})
	return err
}

func (s *Store) persist(g *graph) error {
	if s.path == "" {
		return nil
	}
	if err := writeSnapshot(s.path, g); err != nil {
		return err
	}
	s.logger.Debug("snapshot written", "path", s.path, "files", len(g.files))
	return nil
}

// --- Batching ---

// BeginBatch remembers the graph so Rollback can return to it. Writes are
// applied immediately.
func (s *Store) BeginBatch(ctx context.Context) error {
	return s.do(ctx, func(g *graph) error {
		if s.saved == nil {
			s.saved = g.snapshot()
		}
		return nil
	})
}

// Sync writes the snapshot and ends the batch.
func (s *Store) Sync(ctx context.Context) error {
	return s.do(ctx, func(g *graph) error {
		s.saved = nil
		return s.persist(g)
	})
}

// Rollback restores the graph held when the batch began.
func (s *Store) Rollback(ctx context.Context) error {
	return s.do(ctx, func(g *graph) error {
		if s.saved == nil {
			return nil
		}
		*g = *s.saved.restore()
		s.saved = nil
		return nil
	})
}

// ReplaceFile applies a batch in one actor step, so readers never observe
// a partially written file.
func (s *Store) ReplaceFile(ctx context.Context, b *store.Batch) error {
	return s.do(ctx, func(g *graph) error {
		g.removeFile(b.File.Path)
		g.addFile(b.File)
		for _, c := range b.Classes {
			g.addClass(c)
		}
		for _, c := range b.ClassConstants {
			g.addClassConstant(c)
		}
		for _, m := range b.Methods {
			g.addMethod(m)
		}
		for _, m := range b.Members {
			g.addMember(m)
		}
		for _, f := range b.Functions {
			g.addFunction(f)
		}
		for _, c := range b.Constants {
			g.addConstant(c)
		}
		for _, u := range b.Uses {
			g.addUse(u)
		}
		return nil
	})
}

func (s *Store) TouchFile(ctx context.Context, path string, mtime int64) error {
	return s.do(ctx, func(g *graph) error {
		if f := g.files[path]; f != nil {
			touched := *f
			touched.Mtime = mtime
			g.files[path] = &touched
		}
		return nil
	})
}

func (s *Store) RemoveFile(ctx context.Context, path string) error {
	return s.do(ctx, func(g *graph) error {
		g.removeFile(path)
		return nil
	})
}

func (s *Store) Empty(ctx context.Context) error {
	return s.do(ctx, func(g *graph) error {
		*g = *newGraph()
		return nil
	})
}

// --- Writer ---

func (s *Store) AddFile(ctx context.Context, f *store.File) error {
	return s.do(ctx, func(g *graph) error { g.addFile(f); return nil })
}

func (s *Store) AddClass(ctx context.Context, c *store.Class) error {
	return s.do(ctx, func(g *graph) error { g.addClass(c); return nil })
}

func (s *Store) AddClassConstant(ctx context.Context, c *store.ClassConstant) error {
	return s.do(ctx, func(g *graph) error { g.addClassConstant(c); return nil })
}

func (s *Store) AddMethod(ctx context.Context, m *store.Method) error {
	return s.do(ctx, func(g *graph) error { g.addMethod(m); return nil })
}

func (s *Store) AddMember(ctx context.Context, m *store.Member) error {
	return s.do(ctx, func(g *graph) error { g.addMember(m); return nil })
}

func (s *Store) AddFunction(ctx context.Context, f *store.Function) error {
	return s.do(ctx, func(g *graph) error { g.addFunction(f); return nil })
}

func (s *Store) AddConstant(ctx context.Context, c *store.Constant) error {
	return s.do(ctx, func(g *graph) error { g.addConstant(c); return nil })
}

func (s *Store) AddUse(ctx context.Context, u *store.Use) error {
	return s.do(ctx, func(g *graph) error { g.addUse(u); return nil })
}

// --- Reader ---

func (s *Store) GetFile(ctx context.Context, path string) (*store.File, error) {
	var out *store.File
	err := s.do(ctx, func(g *graph) error {
		if f := g.files[path]; f != nil {
			c := *f
			out = &c
		}
		return nil
	})
	return out, err
}

func (s *Store) AllFiles(ctx context.Context) ([]*store.File, error) {
	out := []*store.File{}
	err := s.do(ctx, func(g *graph) error {
		for _, f := range g.files {
			c := *f
			out = append(out, &c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, err
}

// get copies the declaration of k out of the graph.
func get[T any](ctx context.Context, s *Store, k nodeKey) (*T, error) {
	var out *T
	err := s.do(ctx, func(g *graph) error {
		if d, ok := any(g.lookup(k)).(*T); ok {
			out = clone(d)
		}
		return nil
	})
	return out, err
}

// clone copies a record, slices included.
func clone[T any](d *T) *T {
	switch v := any(d).(type) {
	case *store.Class:
		return any(cloneClass(v)).(*T)
	case *store.Method:
		c := *v
		c.Args = append([]store.Argument(nil), v.Args...)
		return any(&c).(*T)
	case *store.Function:
		c := *v
		c.Args = append([]store.Argument(nil), v.Args...)
		return any(&c).(*T)
	}
	c := *d
	return &c
}

func (s *Store) GetClass(ctx context.Context, namespace, name string) (*store.Class, error) {
	return get[store.Class](ctx, s, nodeKey{store.KindClass, store.JoinName(namespace, name)})
}

func (s *Store) GetClassConstant(ctx context.Context, namespace, class, name string) (*store.ClassConstant, error) {
	return get[store.ClassConstant](ctx, s, nodeKey{store.KindClassConstant, memberKey(namespace, class, name)})
}

func (s *Store) GetMethod(ctx context.Context, namespace, class, name string) (*store.Method, error) {
	return get[store.Method](ctx, s, nodeKey{store.KindMethod, memberKey(namespace, class, name)})
}

func (s *Store) GetMember(ctx context.Context, namespace, class, name string) (*store.Member, error) {
	return get[store.Member](ctx, s, nodeKey{store.KindMember, memberKey(namespace, class, name)})
}

func (s *Store) GetFunction(ctx context.Context, namespace, name string) (*store.Function, error) {
	return get[store.Function](ctx, s, nodeKey{store.KindFunction, store.JoinName(namespace, name)})
}

func (s *Store) GetConstant(ctx context.Context, name string) (*store.Constant, error) {
	return get[store.Constant](ctx, s, nodeKey{store.KindConstant, name})
}

// --- Hierarchy ---

func (s *Store) ClassParent(ctx context.Context, namespace, name string) (string, error) {
	var parent string
	err := s.do(ctx, func(g *graph) error {
		if c := g.class(namespace, name); c != nil {
			parent = c.Parent
		}
		return nil
	})
	return parent, err
}

func (s *Store) ClassChildren(ctx context.Context, namespace, name string, withImplementors bool) ([]string, error) {
	var out []string
	err := s.do(ctx, func(g *graph) error {
		out = g.children(store.JoinName(namespace, name), withImplementors)
		return nil
	})
	return out, err
}

func (s *Store) ClassInterfaces(ctx context.Context, namespace, name string) ([]string, error) {
	out := []string{}
	err := s.do(ctx, func(g *graph) error {
		if c := g.class(namespace, name); c != nil {
			out = append(out, c.Interfaces...)
		}
		return nil
	})
	return out, err
}

func (s *Store) ClassTraits(ctx context.Context, namespace, name string) ([]string, error) {
	out := []string{}
	err := s.do(ctx, func(g *graph) error {
		if c := g.class(namespace, name); c != nil {
			out = append(out, c.Traits...)
		}
		return nil
	})
	return out, err
}

// membersOf copies the class-owned records of kind out of the graph.
func membersOf[T any](ctx context.Context, s *Store, kind store.Kind, namespace, class string) ([]*T, error) {
	out := []*T{}
	err := s.do(ctx, func(g *graph) error {
		for _, d := range g.members(kind, namespace, class) {
			if v, ok := any(d).(*T); ok {
				out = append(out, clone(v))
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) ClassMethods(ctx context.Context, namespace, name string) ([]*store.Method, error) {
	return membersOf[store.Method](ctx, s, store.KindMethod, namespace, name)
}

func (s *Store) ClassMembers(ctx context.Context, namespace, name string) ([]*store.Member, error) {
	return membersOf[store.Member](ctx, s, store.KindMember, namespace, name)
}

func (s *Store) ClassConstants(ctx context.Context, namespace, name string) ([]*store.ClassConstant, error) {
	return membersOf[store.ClassConstant](ctx, s, store.KindClassConstant, namespace, name)
}

// --- Bulk ---

func (s *Store) AllClassNames(ctx context.Context) ([]string, error) {
	var out []string
	err := s.do(ctx, func(g *graph) error {
		var names []string
		for k := range g.nodes {
			if k.kind == store.KindClass {
				names = append(names, k.key)
			}
		}
		out = sortedUnique(names)
		return nil
	})
	return out, err
}

func (s *Store) AllFunctions(ctx context.Context) ([]*store.Function, error) {
	out := []*store.Function{}
	err := s.do(ctx, func(g *graph) error {
		for _, d := range g.ofKind(store.KindFunction) {
			out = append(out, clone(d.(*store.Function)))
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out, err
}

func (s *Store) AllConstants(ctx context.Context) ([]*store.Constant, error) {
	out := []*store.Constant{}
	err := s.do(ctx, func(g *graph) error {
		for _, d := range g.ofKind(store.KindConstant) {
			out = append(out, clone(d.(*store.Constant)))
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

// --- Uses ---

func (s *Store) UsesOf(ctx context.Context, kind store.Kind, name string) ([]*store.Use, error) {
	var out []*store.Use
	err := s.do(ctx, func(g *graph) error {
		out = g.usesOf(kind, name)
		return nil
	})
	return out, err
}

func (s *Store) UsesByFile(ctx context.Context, path string) ([]*store.Use, error) {
	var out []*store.Use
	err := s.do(ctx, func(g *graph) error {
		out = g.usesByFile(path)
		return nil
	})
	return out, err
}

// --- Search ---

func (s *Store) Search(ctx context.Context, terms []string) ([]*store.SearchHit, error) {
	if !store.ValidTerms(terms) {
		return []*store.SearchHit{}, nil
	}
	var out []*store.SearchHit
	err := s.do(ctx, func(g *graph) error {
		out = g.search(terms)
		return nil
	})
	return out, err
}
