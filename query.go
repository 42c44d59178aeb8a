package phpindex

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jward/phpindex/internal/phpfile"
	"github.com/jward/phpindex/internal/store"
)

// QueryBuilder answers navigation and search queries against an index.
// Queries on a file take a parsed *phpfile.File so an editor can pass the
// current, possibly unsaved, buffer; its own declarations win over the
// index.
type QueryBuilder struct {
	storage store.Storage
}

// NewQueryBuilder returns a QueryBuilder reading from s.
func NewQueryBuilder(s store.Storage) *QueryBuilder {
	return &QueryBuilder{storage: s}
}

// Parse parses src as the file at path and binds it to the index.
func (q *QueryBuilder) Parse(path, src string) (*phpfile.File, error) {
	f, err := phpfile.Parse(path, src)
	if err != nil {
		return nil, err
	}
	return q.Bind(f), nil
}

// Open reads and parses the file at path and binds it to the index.
func (q *QueryBuilder) Open(ctx context.Context, path string) (*phpfile.File, error) {
	f, err := q.load(ctx, path)
	if err != nil {
		return nil, err
	}
	return q.Bind(f), nil
}

// Bind makes f resolve names it does not declare through the index.
func (q *QueryBuilder) Bind(f *phpfile.File) *phpfile.File {
	return f.WithLookup(q.storage, q.load)
}

func (q *QueryBuilder) load(_ context.Context, path string) (*phpfile.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return phpfile.Parse(path, string(data))
}

// DeclarationAt resolves the token at the 1-based position of f. A zero
// Declaration means nothing there names a declaration.
func (q *QueryBuilder) DeclarationAt(ctx context.Context, f *phpfile.File, line, col int) (Declaration, error) {
	d, err := q.Bind(f).DeclarationAt(ctx, line, col)
	if err != nil {
		return Declaration{}, fmt.Errorf("declaration at: %w", err)
	}
	return d, nil
}

// DeclaredPositionOf locates d, walking the class hierarchy for methods,
// members and class constants. It returns nil when d is unknown.
func (q *QueryBuilder) DeclaredPositionOf(ctx context.Context, f *phpfile.File, d Declaration) (*Position, error) {
	if d.IsZero() {
		return nil, nil
	}
	pos, err := q.Bind(f).DeclaredPositionOf(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("declared position: %w", err)
	}
	return pos, nil
}

// Definition is go-to-declaration: it resolves the token at the position
// and locates its declaration. It returns nil when either step finds
// nothing.
func (q *QueryBuilder) Definition(ctx context.Context, f *phpfile.File, line, col int) (*Position, error) {
	d, err := q.DeclarationAt(ctx, f, line, col)
	if err != nil || d.IsZero() {
		return nil, err
	}
	return q.DeclaredPositionOf(ctx, f, d)
}

// TypeAt infers the fully qualified class of the expression ending at the
// 1-based position, or "" when unknown.
func (q *QueryBuilder) TypeAt(ctx context.Context, f *phpfile.File, line, col int) (string, error) {
	bound := q.Bind(f)
	i := bound.TokenIndexAt(line, col)
	if i < 0 {
		return "", nil
	}
	t, err := bound.TypeAt(ctx, i)
	if err != nil {
		return "", fmt.Errorf("type at: %w", err)
	}
	return t, nil
}

// Search runs a full-text search. A term shorter than three characters
// yields no hits.
func (q *QueryBuilder) Search(ctx context.Context, terms []string) ([]*SearchHit, error) {
	hits, err := q.storage.Search(ctx, terms)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if hits == nil {
		hits = []*SearchHit{}
	}
	return hits, nil
}

// Usages returns every use-edge referencing d. Methods, members and class
// constants match by name only; use-edges do not record the receiver.
func (q *QueryBuilder) Usages(ctx context.Context, d Declaration) ([]*Use, error) {
	if d.IsZero() {
		return []*Use{}, nil
	}
	name := d.Name
	if d.Kind == store.KindMember && !strings.HasPrefix(name, "$") {
		name = "$" + name
	}
	uses, err := q.storage.UsesOf(ctx, d.Kind, name)
	if err != nil {
		return nil, fmt.Errorf("usages: %w", err)
	}
	return uses, nil
}

// FileUses returns the use-edges recorded for the file at path.
func (q *QueryBuilder) FileUses(ctx context.Context, path string) ([]*Use, error) {
	uses, err := q.storage.UsesByFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("file uses: %w", err)
	}
	return uses, nil
}

// IsBuilt reports whether the index holds at least one file.
func (q *QueryBuilder) IsBuilt(ctx context.Context) (bool, error) {
	files, err := q.storage.AllFiles(ctx)
	if err != nil {
		return false, fmt.Errorf("is built: %w", err)
	}
	return len(files) > 0, nil
}
