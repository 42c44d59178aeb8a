package runtime

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"
)

// phpExtensions are the file extensions parse accepts.
var phpExtensions = map[string]bool{".php": true, ".phtml": true, ".inc": true}

// IsPHPFile reports whether path has a PHP source extension.
func IsPHPFile(path string) bool {
	return phpExtensions[strings.ToLower(filepath.Ext(path))]
}

// syntaxTrees holds the source of every tree a script parsed, keyed by
// the tree's root node, plus compiled queries keyed by pattern. Nodes do
// not expose their tree, so lookups walk a node up to its root.
type syntaxTrees struct {
	mu      sync.Mutex
	sources map[*sitter.Node][]byte
	queries map[string]*sitter.Query
}

func newSyntaxTrees() *syntaxTrees {
	return &syntaxTrees{
		sources: map[*sitter.Node][]byte{},
		queries: map[string]*sitter.Query{},
	}
}

func (st *syntaxTrees) parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(php.GetLanguage())
	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	st.sources[tree.RootNode()] = src
	st.mu.Unlock()
	return tree, nil
}

func rootOf(n *sitter.Node) *sitter.Node {
	for n.Parent() != nil {
		n = n.Parent()
	}
	return n
}

// source returns the text n was parsed from.
func (st *syntaxTrees) source(n *sitter.Node) ([]byte, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	src, ok := st.sources[rootOf(n)]
	return src, ok
}

// query compiles pattern once per runtime.
func (st *syntaxTrees) query(pattern string) (*sitter.Query, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if q, ok := st.queries[pattern]; ok {
		return q, nil
	}
	q, err := sitter.NewQuery([]byte(pattern), php.GetLanguage())
	if err != nil {
		return nil, err
	}
	st.queries[pattern] = q
	return q, nil
}

func nodeArg(fn string, arg object.Object) (*sitter.Node, *object.Error) {
	p, ok := arg.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected a node, got %s", fn, arg.Type())
	}
	n, ok := p.Interface().(*sitter.Node)
	if !ok || n == nil {
		return nil, object.Errorf("%s: expected a node, got %T", fn, p.Interface())
	}
	return n, nil
}

func proxyOf(fn string, v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		return object.Errorf("%s: %v", fn, err)
	}
	return p
}

// makeParseFn creates "parse", which reads a PHP file and returns its
// syntax tree.
//
// parse(path) → Tree
func (st *syntaxTrees) makeParseFn() *object.Builtin {
	return object.NewBuiltin("parse", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse", 1, len(args))
		}
		path, errObj := stringArg("parse", "path", args[0])
		if errObj != nil {
			return errObj
		}
		if !IsPHPFile(path) {
			return object.Errorf("parse: %s is not a PHP file", path)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return object.Errorf("parse: reading %s: %v", path, err)
		}
		tree, err := st.parse(ctx, src)
		if err != nil {
			return object.Errorf("parse: %s: %v", path, err)
		}
		return proxyOf("parse", tree)
	})
}

// parse_src(source) → Tree
func (st *syntaxTrees) makeParseSrcFn() *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse_src", 1, len(args))
		}
		src, errObj := stringArg("parse_src", "source", args[0])
		if errObj != nil {
			return errObj
		}
		tree, err := st.parse(ctx, []byte(src))
		if err != nil {
			return object.Errorf("parse_src: %v", err)
		}
		return proxyOf("parse_src", tree)
	})
}

// makeNodeTextFn creates "node_text". Scripts cannot hand the source
// bytes to Node.Content themselves.
//
// node_text(node) → string
func (st *syntaxTrees) makeNodeTextFn() *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		n, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		src, ok := st.source(n)
		if !ok {
			return object.Errorf("node_text: node does not belong to a parsed tree")
		}
		return object.NewString(n.Content(src))
	})
}

// makeNodeChildFn creates "node_child", ChildByFieldName returning nil
// rather than a proxied nil node.
//
// node_child(node, field) → Node or nil
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		n, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		field, errObj := stringArg("node_child", "field", args[1])
		if errObj != nil {
			return errObj
		}
		child := n.ChildByFieldName(field)
		if child == nil {
			return object.Nil
		}
		return proxyOf("node_child", child)
	})
}

// makeNodePosFn creates "node_pos", the 1-based span of a node in the
// same convention as index positions.
//
// node_pos(node) → map{line, col, end_line, end_col}
func makeNodePosFn() *object.Builtin {
	return object.NewBuiltin("node_pos", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_pos", 1, len(args))
		}
		n, errObj := nodeArg("node_pos", args[0])
		if errObj != nil {
			return errObj
		}
		start, end := n.StartPoint(), n.EndPoint()
		return object.NewMap(map[string]object.Object{
			"line":     object.NewInt(int64(start.Row) + 1),
			"col":      object.NewInt(int64(start.Column) + 1),
			"end_line": object.NewInt(int64(end.Row) + 1),
			"end_col":  object.NewInt(int64(end.Column) + 1),
		})
	})
}

// makeQueryFn creates "query", which runs a tree-sitter pattern below a
// node. Each match is a map from capture name to node.
//
// query(pattern, node) → []map
func (st *syntaxTrees) makeQueryFn() *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, errObj := stringArg("query", "pattern", args[0])
		if errObj != nil {
			return errObj
		}
		n, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}
		src, ok := st.source(n)
		if !ok {
			return object.Errorf("query: node does not belong to a parsed tree")
		}
		q, err := st.query(pattern)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, n)

		matches := []object.Object{}
		for {
			m, ok := cursor.NextMatch()
			if !ok {
				break
			}
			m = cursor.FilterPredicates(m, src)
			if len(m.Captures) == 0 {
				continue
			}
			captures := make(map[string]object.Object, len(m.Captures))
			for _, c := range m.Captures {
				captures[q.CaptureNameForId(c.Index)] = proxyOf("query", c.Node)
			}
			matches = append(matches, object.NewMap(captures))
		}
		return object.NewList(matches)
	})
}
