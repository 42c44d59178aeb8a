// Package phpfile is the per-file model: a lexed and block-parsed PHP
// source with declaration extraction, name resolution and type
// inference on top.
//
// A File on its own only knows its own declarations. Binding a Lookup
// (usually the index) with WithLookup lets inference and navigation cross
// file boundaries; the file's own declarations are always consulted first
// so an edited buffer wins over a stale index.
package phpfile

import (
	"context"

	"github.com/jward/phpindex/internal/lexer"
	"github.com/jward/phpindex/internal/parser"
	"github.com/jward/phpindex/internal/store"
)

// Lookup is the read side of the index used for cross-file resolution.
// Getters return nil when the record does not exist.
type Lookup interface {
	GetClass(ctx context.Context, namespace, name string) (*store.Class, error)
	GetClassConstant(ctx context.Context, namespace, class, name string) (*store.ClassConstant, error)
	GetMethod(ctx context.Context, namespace, class, name string) (*store.Method, error)
	GetMember(ctx context.Context, namespace, class, name string) (*store.Member, error)
	GetFunction(ctx context.Context, namespace, name string) (*store.Function, error)
	GetConstant(ctx context.Context, name string) (*store.Constant, error)
}

// Loader parses the file at path. Inference uses it to read the body of
// a routine declared elsewhere when the index has no return type for it.
type Loader func(ctx context.Context, path string) (*File, error)

// File is a parsed PHP source file.
type File struct {
	Path     string
	Source   string
	Tokens   []lexer.Token
	Comments []lexer.Comment

	parsed *parser.Result
	local  *localIndex

	lookup Lookup
	loader Loader
}

// Parse lexes and block-parses src. The returned error is a
// *lexer.LexError or a *parser.ParseError.
func Parse(path, src string) (*File, error) {
	tokens, comments, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(tokens, comments)
	if err != nil {
		return nil, err
	}
	f := &File{
		Path:     path,
		Source:   src,
		Tokens:   tokens,
		Comments: comments,
		parsed:   res,
	}
	f.local = newLocalIndex(f)
	return f, nil
}

// WithLookup returns a copy of f that resolves names it does not declare
// itself through lookup. loader may be nil.
func (f *File) WithLookup(lookup Lookup, loader Loader) *File {
	c := *f
	c.lookup = lookup
	c.loader = loader
	return &c
}

// Namespace returns the file's namespace, "" for the global namespace.
func (f *File) Namespace() string { return f.parsed.Namespace }

// UseAliases returns the alias map of the file's top-level use statements.
func (f *File) UseAliases() map[string]string { return f.parsed.UseAliases }

// Blocks returns the parsed blocks, sorted by Begin.
func (f *File) Blocks() []*parser.Block { return f.parsed.Blocks }

// Parsed returns the raw parser output.
func (f *File) Parsed() *parser.Result { return f.parsed }

// at returns the token at i or a zero token of kind -1.
func (f *File) at(i int) lexer.Token {
	if i < 0 || i >= len(f.Tokens) {
		return lexer.Token{Kind: -1}
	}
	return f.Tokens[i]
}

func (f *File) isOp(i int, ops ...string) bool {
	t := f.at(i)
	if t.Kind != lexer.Char && t.Kind != lexer.Operator {
		return false
	}
	for _, op := range ops {
		if t.Text == op {
			return true
		}
	}
	return false
}

func (f *File) isKeyword(i int, words ...string) bool {
	t := f.at(i)
	if t.Kind != lexer.Keyword {
		return false
	}
	for _, w := range words {
		if t.Is(w) {
			return true
		}
	}
	return false
}

// TokenIndexAt returns the index of the last token starting at or before
// the 1-based position, or -1 when the position precedes every token.
func (f *File) TokenIndexAt(line, col int) int {
	idx := -1
	for i, t := range f.Tokens {
		if t.Line > line || (t.Line == line && t.Col > col) {
			break
		}
		idx = i
	}
	return idx
}

// enclosingClass returns the class block containing idx, or nil.
func (f *File) enclosingClass(idx int) *parser.Block {
	return parser.EnclosingBlock(f.parsed.Blocks, idx, parser.ClassBlock)
}

// enclosingRoutine returns the innermost method or function (closures
// included) containing idx, or nil.
func (f *File) enclosingRoutine(idx int) *parser.Block {
	return parser.EnclosingBlock(f.parsed.Blocks, idx, parser.MethodBlock, parser.FunctionBlock)
}

// classFQN returns the fully qualified name of a class block, or "" for
// anonymous classes.
func (f *File) classFQN(b *parser.Block) string {
	if b == nil || b.Class == nil || b.Class.Name == "" {
		return ""
	}
	return store.JoinName(f.parsed.Namespace, b.Class.Name)
}
