package graphstore

import (
	"slices"
	"sort"

	"github.com/jward/phpindex/internal/store"
)

// Edge labels. Declaration edges run from a record to the fully qualified
// name it points at; reference edges run from a use site to its target.
type label string

const (
	labelExtends    label = "extends"
	labelImplements label = "implements"
	labelUsesTrait  label = "uses-trait"
	labelMemberOf   label = "member-of"
	labelReferences label = "references"
)

// nodeKey identifies a declaration independently of the file declaring
// it. Several files may declare the same key.
type nodeKey struct {
	kind store.Kind
	key  string
}

type node struct {
	nodeKey
	file string
	decl store.Declaration
	out  []*edge
}

type edge struct {
	label label
	from  *node // nil for reference edges
	to    string
	use   *store.Use
}

// graph is the in-memory node/edge set. It is only touched by the actor
// goroutine.
type graph struct {
	files map[string]*store.File
	nodes map[nodeKey][]*node
	// owned lists the nodes of each file in insertion order.
	owned map[string][]*node
	// in indexes edges by label and target.
	in map[string][]*edge
	// refs holds the reference edges of each file.
	refs map[string][]*edge
}

func newGraph() *graph {
	return &graph{
		files: map[string]*store.File{},
		nodes: map[nodeKey][]*node{},
		owned: map[string][]*node{},
		in:    map[string][]*edge{},
		refs:  map[string][]*edge{},
	}
}

func inKey(l label, to string) string { return string(l) + "\x00" + to }

func memberKey(namespace, class, name string) string {
	return store.JoinName(namespace, class) + "::" + name
}

func refKey(kind store.Kind, name string) string { return string(kind) + "\x00" + name }

// --- Writes ---

func (g *graph) addFile(f *store.File) {
	c := *f
	g.files[f.Path] = &c
}

func (g *graph) addNode(k nodeKey, file string, d store.Declaration) *node {
	n := &node{nodeKey: k, file: file, decl: d}
	g.nodes[k] = append(g.nodes[k], n)
	g.owned[file] = append(g.owned[file], n)
	return n
}

func (g *graph) link(n *node, l label, to string) {
	if to == "" {
		return
	}
	e := &edge{label: l, from: n, to: to}
	n.out = append(n.out, e)
	g.in[inKey(l, to)] = append(g.in[inKey(l, to)], e)
}

func (g *graph) addClass(c *store.Class) {
	rec := cloneClass(c)
	n := g.addNode(nodeKey{store.KindClass, rec.FQN()}, rec.File, rec)
	g.link(n, labelExtends, rec.Parent)
	for _, i := range rec.Interfaces {
		g.link(n, labelImplements, i)
	}
	for _, t := range rec.Traits {
		g.link(n, labelUsesTrait, t)
	}
}

func (g *graph) addClassConstant(c *store.ClassConstant) {
	rec := *c
	n := g.addNode(nodeKey{store.KindClassConstant, memberKey(c.Namespace, c.Class, c.Name)}, c.File, &rec)
	g.link(n, labelMemberOf, store.JoinName(c.Namespace, c.Class))
}

func (g *graph) addMethod(m *store.Method) {
	rec := *m
	rec.Args = slices.Clone(m.Args)
	n := g.addNode(nodeKey{store.KindMethod, memberKey(m.Namespace, m.Class, m.Name)}, m.File, &rec)
	g.link(n, labelMemberOf, store.JoinName(m.Namespace, m.Class))
}

func (g *graph) addMember(m *store.Member) {
	rec := *m
	n := g.addNode(nodeKey{store.KindMember, memberKey(m.Namespace, m.Class, m.Name)}, m.File, &rec)
	g.link(n, labelMemberOf, store.JoinName(m.Namespace, m.Class))
}

func (g *graph) addFunction(f *store.Function) {
	rec := *f
	rec.Args = slices.Clone(f.Args)
	g.addNode(nodeKey{store.KindFunction, rec.FQN()}, f.File, &rec)
}

func (g *graph) addConstant(c *store.Constant) {
	rec := *c
	g.addNode(nodeKey{store.KindConstant, c.Name}, c.File, &rec)
}

func (g *graph) addUse(u *store.Use) {
	rec := *u
	e := &edge{label: labelReferences, to: refKey(u.Kind, u.Name), use: &rec}
	g.refs[u.File] = append(g.refs[u.File], e)
	g.in[inKey(labelReferences, e.to)] = append(g.in[inKey(labelReferences, e.to)], e)
}

func (g *graph) unlink(e *edge) {
	k := inKey(e.label, e.to)
	g.in[k] = slices.DeleteFunc(g.in[k], func(x *edge) bool { return x == e })
	if len(g.in[k]) == 0 {
		delete(g.in, k)
	}
}

// removeFile drops the file, its nodes with their edges and its reference
// edges.
func (g *graph) removeFile(path string) {
	delete(g.files, path)
	for _, n := range g.owned[path] {
		for _, e := range n.out {
			g.unlink(e)
		}
		g.nodes[n.nodeKey] = slices.DeleteFunc(g.nodes[n.nodeKey], func(x *node) bool { return x == n })
		if len(g.nodes[n.nodeKey]) == 0 {
			delete(g.nodes, n.nodeKey)
		}
	}
	delete(g.owned, path)
	for _, e := range g.refs[path] {
		g.unlink(e)
	}
	delete(g.refs, path)
}

// --- Reads ---

// lookup returns the declaration of k from the lexically first file,
// matching the SQL back-end's ORDER BY file.
func (g *graph) lookup(k nodeKey) store.Declaration {
	var best *node
	for _, n := range g.nodes[k] {
		if best == nil || n.file < best.file {
			best = n
		}
	}
	if best == nil {
		return nil
	}
	return best.decl
}

func (g *graph) class(namespace, name string) *store.Class {
	if d, ok := g.lookup(nodeKey{store.KindClass, store.JoinName(namespace, name)}).(*store.Class); ok {
		return d
	}
	return nil
}

// sources returns the nodes with an edge of label l into to.
func (g *graph) sources(l label, to string) []*node {
	var out []*node
	for _, e := range g.in[inKey(l, to)] {
		if e.from != nil {
			out = append(out, e.from)
		}
	}
	return out
}

// members returns the class-owned nodes of kind, ordered by position.
func (g *graph) members(kind store.Kind, namespace, class string) []store.Declaration {
	var out []store.Declaration
	for _, n := range g.sources(labelMemberOf, store.JoinName(namespace, class)) {
		if n.kind == kind {
			out = append(out, n.decl)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Position(), out[j].Position()
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Col < b.Col
	})
	return out
}

func (g *graph) children(fqn string, withImplementors bool) []string {
	var names []string
	for _, n := range g.sources(labelExtends, fqn) {
		names = append(names, n.key)
	}
	if withImplementors {
		for _, n := range g.sources(labelImplements, fqn) {
			names = append(names, n.key)
		}
	}
	return sortedUnique(names)
}

func (g *graph) ofKind(kind store.Kind) []store.Declaration {
	var out []store.Declaration
	for k, ns := range g.nodes {
		if k.kind != kind {
			continue
		}
		for _, n := range ns {
			out = append(out, n.decl)
		}
	}
	return out
}

func (g *graph) usesOf(kind store.Kind, name string) []*store.Use {
	out := []*store.Use{}
	for _, e := range g.in[inKey(labelReferences, refKey(kind, name))] {
		u := *e.use
		out = append(out, &u)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Col < b.Col
	})
	return out
}

func (g *graph) usesByFile(path string) []*store.Use {
	out := []*store.Use{}
	for _, e := range g.refs[path] {
		u := *e.use
		out = append(out, &u)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Col < out[j].Col
	})
	return out
}

// search mirrors the SQL back-end: terms must each match one of the
// searchable fields of a record.
func (g *graph) search(terms []string) []*store.SearchHit {
	hits := []*store.SearchHit{}
	for _, f := range g.files {
		if store.MatchTerms(terms, f.Path) {
			hits = append(hits, store.NewHit(store.KindFile, f.Path, store.Position{File: f.Path, Line: 1, Col: 1}))
		}
	}
	for _, ns := range g.nodes {
		for _, n := range ns {
			if h := hitFor(terms, n.decl); h != nil {
				hits = append(hits, h)
			}
		}
	}
	store.RankHits(hits)
	return hits
}

func hitFor(terms []string, d store.Declaration) *store.SearchHit {
	var title string
	var ok bool
	switch d := d.(type) {
	case *store.Class:
		ok = store.MatchTerms(terms, d.Namespace, d.Name)
		title = store.ClassTitle(d.Namespace, d.Name)
	case *store.ClassConstant:
		ok = store.MatchTerms(terms, d.Namespace, d.Class, d.Name)
		title = store.ClassConstantTitle(d.Namespace, d.Class, d.Name)
	case *store.Method:
		ok = store.MatchTerms(terms, d.Namespace, d.Class, d.Name)
		title = store.MethodTitle(d.Namespace, d.Class, d.Name)
	case *store.Member:
		ok = store.MatchTerms(terms, d.Namespace, d.Class, d.Name)
		title = store.MemberTitle(d.Namespace, d.Class, d.Name)
	case *store.Function:
		ok = store.MatchTerms(terms, d.Namespace, d.Name)
		title = store.FunctionTitle(d.Namespace, d.Name)
	case *store.Constant:
		ok = store.MatchTerms(terms, d.Name)
		title = d.Name
	}
	if !ok {
		return nil
	}
	return store.NewHit(d.DeclKind(), title, *d.Position())
}

func sortedUnique(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}

func cloneClass(c *store.Class) *store.Class {
	rec := *c
	rec.Interfaces = slices.Clone(c.Interfaces)
	rec.Traits = slices.Clone(c.Traits)
	return &rec
}
