package phpindex

import (
	"context"
	"fmt"
	"sort"

	"github.com/jward/phpindex/internal/phpfile"
	"github.com/jward/phpindex/internal/store"
)

// maxCallDepth caps the traversal depth of TransitiveCallers and
// TransitiveCallees.
const maxCallDepth = 100

// CallGraph is the transitive callers or callees of a function or method.
// Edges come from the recorded uses; a call counts only when the callee
// can be resolved at the call site.
type CallGraph struct {
	Root  Declaration
	Nodes []CallGraphNode // root first, then by depth
	Edges []CallGraphEdge
	Depth int // actual max depth reached (may be < maxDepth if graph is shallow)
}

// CallGraphNode is a routine in the call graph with its distance from the
// root.
type CallGraphNode struct {
	Declaration Declaration
	Position    *Position
	Depth       int // BFS depth from root (0 = root itself)
}

// CallGraphEdge is a single call site.
type CallGraphEdge struct {
	Caller Declaration
	Callee Declaration
	File   string
	Line   int
	Col    int
}

// HotspotResult is a function or method with its reference counts.
type HotspotResult struct {
	Declaration Declaration
	Position    *Position
	Uses        int
	Files       int // distinct files referencing it
}

// callGraph resolves call sites for one traversal. Parsed files and
// function names are loaded once.
type callGraph struct {
	q         *QueryBuilder
	files     map[string]*phpfile.File
	functions map[[2]string]string // (file, short name) -> FQN
}

func (q *QueryBuilder) newCallGraph(ctx context.Context) (*callGraph, error) {
	fns, err := q.storage.AllFunctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load functions: %w", err)
	}
	g := &callGraph{
		q:         q,
		files:     map[string]*phpfile.File{},
		functions: make(map[[2]string]string, len(fns)),
	}
	for _, fn := range fns {
		key := [2]string{fn.File, fn.Name}
		if _, ok := g.functions[key]; !ok {
			g.functions[key] = fn.FQN()
		}
	}
	return g, nil
}

// file returns the parsed, index-bound file at path. A file that no longer
// parses yields nil.
func (g *callGraph) file(ctx context.Context, path string) *phpfile.File {
	if f, ok := g.files[path]; ok {
		return f
	}
	f, err := g.q.Open(ctx, path)
	if err != nil {
		f = nil
	}
	g.files[path] = f
	return f
}

// resolve names the routine a call site at u refers to, at its declaring
// class.
func (g *callGraph) resolve(ctx context.Context, u *store.Use) (Declaration, error) {
	f := g.file(ctx, u.File)
	if f == nil {
		return Declaration{}, nil
	}
	d, err := f.DeclarationAt(ctx, u.Line, u.Col)
	if err != nil {
		return Declaration{}, err
	}
	if d.Kind != store.KindMethod && d.Kind != store.KindFunction {
		return Declaration{}, nil
	}
	return g.declaring(ctx, d)
}

// caller names the routine containing u, or a zero Declaration for code
// outside any routine.
func (g *callGraph) caller(u *store.Use) Declaration {
	switch {
	case u.Routine == "":
		return Declaration{}
	case u.Class != "":
		return Declaration{Kind: store.KindMethod, Name: u.Routine, Class: u.Class}
	}
	if fqn, ok := g.functions[[2]string{u.File, u.Routine}]; ok {
		return Declaration{Kind: store.KindFunction, Name: fqn}
	}
	return Declaration{Kind: store.KindFunction, Name: u.Routine}
}

// declaring moves a method declaration to the class of its chain that
// declares it, so calls through subclasses meet at one node.
func (g *callGraph) declaring(ctx context.Context, d Declaration) (Declaration, error) {
	if d.Kind != store.KindMethod {
		return d, nil
	}
	chain, err := g.q.Ancestors(ctx, d.Class)
	if err != nil {
		return Declaration{}, err
	}
	for _, c := range append([]string{d.Class}, chain...) {
		ns, name := store.SplitName(c)
		pos, err := g.q.storage.MethodPosition(ctx, ns, name, d.Name)
		if err != nil {
			return Declaration{}, err
		}
		if pos != nil {
			d.Class = c
			return d, nil
		}
	}
	return d, nil
}

// routinePosition locates a function or method declaration, or nil when the
// index does not hold it.
func (q *QueryBuilder) routinePosition(ctx context.Context, d Declaration) (*Position, error) {
	switch d.Kind {
	case store.KindFunction:
		ns, name := store.SplitName(d.Name)
		return q.storage.FunctionPosition(ctx, ns, name)
	case store.KindMethod:
		ns, class := store.SplitName(d.Class)
		return q.storage.MethodPosition(ctx, ns, class, d.Name)
	}
	return nil, nil
}

type bfsEntry struct {
	d     Declaration
	depth int
}

// walk runs a breadth-first traversal from root. next returns the edges
// leaving a node; the far end of each edge is far(edge).
func (q *QueryBuilder) walk(ctx context.Context, op string, root Declaration, maxDepth int,
	next func(Declaration) ([]CallGraphEdge, error), far func(CallGraphEdge) Declaration) (*CallGraph, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("%s: maxDepth must be non-negative, got %d", op, maxDepth)
	}
	if maxDepth > maxCallDepth {
		maxDepth = maxCallDepth
	}
	if root.Kind != store.KindFunction && root.Kind != store.KindMethod {
		return nil, fmt.Errorf("%s: %s is not a function or method", op, root.Kind)
	}

	pos, err := q.routinePosition(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pos == nil {
		return nil, nil
	}

	result := &CallGraph{
		Root:  root,
		Nodes: []CallGraphNode{{Declaration: root, Position: pos, Depth: 0}},
		Edges: []CallGraphEdge{},
	}

	visited := map[Declaration]int{root: 0}
	type edgeKey struct {
		caller, callee Declaration
		file           string
		line, col      int
	}
	edgeSeen := map[edgeKey]bool{}
	queue := []bfsEntry{{d: root, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		// Don't explore further if at maxDepth
		if current.depth >= maxDepth {
			continue
		}

		edges, err := next(current.d)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, e := range edges {
			k := edgeKey{e.Caller, e.Callee, e.File, e.Line, e.Col}
			if !edgeSeen[k] {
				edgeSeen[k] = true
				result.Edges = append(result.Edges, e)
			}
			other := far(e)
			if _, seen := visited[other]; seen {
				continue
			}
			depth := current.depth + 1
			visited[other] = depth
			if depth > result.Depth {
				result.Depth = depth
			}
			p, err := q.routinePosition(ctx, other)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			result.Nodes = append(result.Nodes, CallGraphNode{Declaration: other, Position: p, Depth: depth})
			queue = append(queue, bfsEntry{d: other, depth: depth})
		}
	}
	return result, nil
}

// TransitiveCallers returns all transitive callers of a function or
// method up to maxDepth. maxDepth of 0 returns only the root node (no
// traversal). Negative returns error. Capped at 100. Returns nil, nil if
// the index does not hold d. Calls from code outside any routine are left
// out, as are calls whose receiver cannot be inferred.
func (q *QueryBuilder) TransitiveCallers(ctx context.Context, d Declaration, maxDepth int) (*CallGraph, error) {
	g, err := q.newCallGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("transitive callers: %w", err)
	}
	if d, err = g.declaring(ctx, d); err != nil {
		return nil, fmt.Errorf("transitive callers: %w", err)
	}
	next := func(callee Declaration) ([]CallGraphEdge, error) {
		uses, err := q.storage.UsesOf(ctx, callee.Kind, callee.Name)
		if err != nil {
			return nil, err
		}
		// Function calls are recorded as spelled.
		if _, short := store.SplitName(callee.Name); callee.Kind == store.KindFunction && short != callee.Name {
			more, err := q.storage.UsesOf(ctx, callee.Kind, short)
			if err != nil {
				return nil, err
			}
			uses = append(uses, more...)
		}
		var out []CallGraphEdge
		for _, u := range uses {
			caller := g.caller(u)
			if caller.IsZero() {
				continue
			}
			got, err := g.resolve(ctx, u)
			if err != nil {
				return nil, err
			}
			if got == callee {
				out = append(out, CallGraphEdge{Caller: caller, Callee: callee, File: u.File, Line: u.Line, Col: u.Col})
			}
		}
		return out, nil
	}
	return q.walk(ctx, "transitive callers", d, maxDepth, next,
		func(e CallGraphEdge) Declaration { return e.Caller })
}

// TransitiveCallees returns all functions and methods transitively called
// from d up to maxDepth, with the same limits as TransitiveCallers.
func (q *QueryBuilder) TransitiveCallees(ctx context.Context, d Declaration, maxDepth int) (*CallGraph, error) {
	g, err := q.newCallGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("transitive callees: %w", err)
	}
	if d, err = g.declaring(ctx, d); err != nil {
		return nil, fmt.Errorf("transitive callees: %w", err)
	}
	next := func(caller Declaration) ([]CallGraphEdge, error) {
		pos, err := q.routinePosition(ctx, caller)
		if err != nil || pos == nil || pos.File == store.BuiltinPath {
			return nil, err
		}
		uses, err := q.storage.UsesByFile(ctx, pos.File)
		if err != nil {
			return nil, err
		}
		var out []CallGraphEdge
		for _, u := range uses {
			if u.Kind != store.KindMethod && u.Kind != store.KindFunction {
				continue
			}
			if g.caller(u) != caller {
				continue
			}
			callee, err := g.resolve(ctx, u)
			if err != nil {
				return nil, err
			}
			if callee.IsZero() {
				continue
			}
			out = append(out, CallGraphEdge{Caller: caller, Callee: callee, File: u.File, Line: u.Line, Col: u.Col})
		}
		return out, nil
	}
	return q.walk(ctx, "transitive callees", d, maxDepth, next,
		func(e CallGraphEdge) Declaration { return e.Callee })
}

// Hotspots returns the top-N most-referenced functions and methods,
// ordered by use count. Uses are counted by unqualified name, so methods
// and functions sharing a name share a count.
// topN of 0 returns empty list. Negative returns error.
func (q *QueryBuilder) Hotspots(ctx context.Context, topN int) ([]*HotspotResult, error) {
	if topN < 0 {
		return nil, fmt.Errorf("hotspots: topN must be non-negative, got %d", topN)
	}
	if topN == 0 {
		return []*HotspotResult{}, nil
	}

	type key struct {
		kind store.Kind
		name string
	}
	counts := map[key]int{}
	files := map[key]map[string]bool{}
	all, err := q.storage.AllFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("hotspots: load files: %w", err)
	}
	for _, f := range all {
		uses, err := q.storage.UsesByFile(ctx, f.Path)
		if err != nil {
			return nil, fmt.Errorf("hotspots: uses of %s: %w", f.Path, err)
		}
		for _, u := range uses {
			if u.Kind != store.KindMethod && u.Kind != store.KindFunction {
				continue
			}
			k := key{u.Kind, u.Name}
			if u.Kind == store.KindFunction {
				_, k.name = store.SplitName(u.Name)
			}
			counts[k]++
			if files[k] == nil {
				files[k] = map[string]bool{}
			}
			files[k][u.File] = true
		}
	}

	var items []*HotspotResult
	fns, err := q.storage.AllFunctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("hotspots: load functions: %w", err)
	}
	for _, fn := range fns {
		k := key{store.KindFunction, fn.Name}
		if counts[k] == 0 {
			continue
		}
		items = append(items, &HotspotResult{
			Declaration: Declaration{Kind: store.KindFunction, Name: fn.FQN()},
			Position:    fn.Position(),
			Uses:        counts[k],
			Files:       len(files[k]),
		})
	}

	classes, err := q.storage.AllClassNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("hotspots: load classes: %w", err)
	}
	for _, fqn := range classes {
		ns, name := store.SplitName(fqn)
		methods, err := q.storage.ClassMethods(ctx, ns, name)
		if err != nil {
			return nil, fmt.Errorf("hotspots: methods of %s: %w", fqn, err)
		}
		for _, m := range methods {
			k := key{store.KindMethod, m.Name}
			if counts[k] == 0 {
				continue
			}
			items = append(items, &HotspotResult{
				Declaration: Declaration{Kind: store.KindMethod, Name: m.Name, Class: fqn},
				Position:    m.Position(),
				Uses:        counts[k],
				Files:       len(files[k]),
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Uses != b.Uses {
			return a.Uses > b.Uses
		}
		if a.Declaration.Class != b.Declaration.Class {
			return a.Declaration.Class < b.Declaration.Class
		}
		return a.Declaration.Name < b.Declaration.Name
	})
	if len(items) > topN {
		items = items[:topN]
	}
	if items == nil {
		items = []*HotspotResult{}
	}
	return items, nil
}
