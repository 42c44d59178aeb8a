package phpfile

import (
	"context"
	"strings"

	"github.com/jward/phpindex/internal/lexer"
	"github.com/jward/phpindex/internal/parser"
	"github.com/jward/phpindex/internal/store"
)

// maxInferDepth bounds recursion through chains such as $a = $b; $b = $a;
const maxInferDepth = 32

// maxAncestors bounds inheritance walks.
const maxAncestors = 64

// TypeAt infers the fully qualified class of the expression ending at
// token i. It returns "" when the type is unknown; an error only reports
// a lookup failure.
func (f *File) TypeAt(ctx context.Context, i int) (string, error) {
	return f.typeAt(ctx, i, 0)
}

func (f *File) typeAt(ctx context.Context, i, depth int) (string, error) {
	if depth > maxInferDepth || i < 0 || i >= len(f.Tokens) {
		return "", nil
	}
	tok := f.Tokens[i]
	switch {
	case tok.Kind == lexer.Ident || f.isKeyword(i, "static"):
		return f.identType(ctx, i, depth)

	case tok.Kind == lexer.Variable:
		if f.isOp(i-1, "::") {
			cls, err := f.typeAt(ctx, i-2, depth+1)
			if err != nil || cls == "" {
				return "", err
			}
			return f.memberType(ctx, cls, tok.Text)
		}
		return f.variableType(ctx, i, depth)

	case f.isOp(i, ")"):
		open := parser.MatchingBracket(f.Tokens, i)
		if open < 0 {
			return "", nil
		}
		prev := f.at(open - 1)
		switch {
		case prev.Kind == lexer.Ident || f.isKeyword(open-1, "static"):
			return f.typeAt(ctx, open-1, depth+1)
		case prev.Kind == lexer.Variable || f.isOp(open-1, ")", "]"):
			// call of a closure or callable
			return "", nil
		}
		return f.typeAt(ctx, i-1, depth+1)
	}
	return "", nil
}

var classContextKeywords = []string{"new", "instanceof", "extends", "implements", "class", "interface", "trait", "insteadof"}

// identType infers the type of an identifier: a call, a property fetch or
// a class reference.
func (f *File) identType(ctx context.Context, i, depth int) (string, error) {
	name := f.Tokens[i].Text
	switch {
	case f.isOp(i+1, "(") && !f.isKeyword(i-1, "new"):
		if f.isOp(i-1, "->", "?->", "::") {
			cls, err := f.typeAt(ctx, i-2, depth+1)
			if err != nil || cls == "" {
				return "", err
			}
			return f.methodType(ctx, cls, name, depth)
		}
		return f.functionType(ctx, name, depth)

	case f.isOp(i-1, "->", "?->"):
		cls, err := f.typeAt(ctx, i-2, depth+1)
		if err != nil || cls == "" {
			return "", err
		}
		return f.memberType(ctx, cls, "$"+name)

	case f.isOp(i-1, "::"):
		// class constant
		return "", nil

	case f.isOp(i+1, "::", "->", "?->") || f.isKeyword(i-1, classContextKeywords...) ||
		f.at(i+1).Kind == lexer.Variable:
		return f.ResolveName(name, i), nil
	}
	return "", nil
}

// Ancestors returns class followed by its traits and ancestors, breadth
// first. A cycle or a missing class ends the walk.
func (f *File) Ancestors(ctx context.Context, class string) ([]string, error) {
	lookup := f.Lookup()
	out := []string{}
	seen := map[string]bool{}
	queue := []string{class}
	for len(queue) > 0 && len(out) < maxAncestors {
		c := queue[0]
		queue = queue[1:]
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)

		ns, name := store.SplitName(c)
		rec, err := lookup.GetClass(ctx, ns, name)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		queue = append(queue, rec.Traits...)
		queue = append(queue, rec.Parent)
	}
	return out, nil
}

// findMethod looks name up on class and its ancestors.
func (f *File) findMethod(ctx context.Context, class, name string) (*store.Method, error) {
	chain, err := f.Ancestors(ctx, class)
	if err != nil {
		return nil, err
	}
	lookup := f.Lookup()
	for _, c := range chain {
		ns, short := store.SplitName(c)
		m, err := lookup.GetMethod(ctx, ns, short, name)
		if err != nil || m != nil {
			return m, err
		}
	}
	return nil, nil
}

// findMember looks a property (with "$") up on class and its ancestors.
func (f *File) findMember(ctx context.Context, class, name string) (*store.Member, error) {
	chain, err := f.Ancestors(ctx, class)
	if err != nil {
		return nil, err
	}
	lookup := f.Lookup()
	for _, c := range chain {
		ns, short := store.SplitName(c)
		m, err := lookup.GetMember(ctx, ns, short, name)
		if err != nil || m != nil {
			return m, err
		}
	}
	return nil, nil
}

// findClassConstant looks a class constant up on class and its ancestors.
func (f *File) findClassConstant(ctx context.Context, class, name string) (*store.ClassConstant, error) {
	chain, err := f.Ancestors(ctx, class)
	if err != nil {
		return nil, err
	}
	lookup := f.Lookup()
	for _, c := range chain {
		ns, short := store.SplitName(c)
		cc, err := lookup.GetClassConstant(ctx, ns, short, name)
		if err != nil || cc != nil {
			return cc, err
		}
	}
	return nil, nil
}

// findFunction tries the namespace-qualified name first and falls back to
// the global function.
func (f *File) findFunction(ctx context.Context, name string) (*store.Function, error) {
	lookup := f.Lookup()
	qualified := strings.HasPrefix(name, `\`)
	ns, short := store.SplitName(name)
	if !qualified && !strings.Contains(name, `\`) {
		ns = f.parsed.Namespace
	}
	fn, err := lookup.GetFunction(ctx, ns, short)
	if err != nil || fn != nil || ns == "" || qualified || strings.Contains(name, `\`) {
		return fn, err
	}
	return lookup.GetFunction(ctx, "", short)
}

func (f *File) methodType(ctx context.Context, class, name string, depth int) (string, error) {
	m, err := f.findMethod(ctx, class, name)
	if err != nil || m == nil {
		return "", err
	}
	if m.ReturnType != "" {
		return m.ReturnType, nil
	}
	return f.bodyReturnType(ctx, m.File, store.JoinName(m.Namespace, m.Class), name, depth)
}

func (f *File) functionType(ctx context.Context, name string, depth int) (string, error) {
	fn, err := f.findFunction(ctx, name)
	if err != nil || fn == nil {
		return "", err
	}
	if fn.ReturnType != "" {
		return fn.ReturnType, nil
	}
	return f.bodyReturnType(ctx, fn.File, "", fn.Name, depth)
}

func (f *File) memberType(ctx context.Context, class, name string) (string, error) {
	m, err := f.findMember(ctx, class, name)
	if err != nil || m == nil {
		return "", err
	}
	return m.TypeHint, nil
}

// bodyReturnType infers a routine's type from its first return statement
// with a known type. The routine may live in another file, which is then
// read through the loader.
func (f *File) bodyReturnType(ctx context.Context, path, class, routine string, depth int) (string, error) {
	src := f
	if path != f.Path {
		if f.loader == nil || path == "" || path == store.BuiltinPath {
			return "", nil
		}
		other, err := f.loader(ctx, path)
		if err != nil || other == nil {
			// unreadable or unparsable: unknown
			return "", nil
		}
		src = other.WithLookup(f.lookup, f.loader)
	}
	b := src.routineBlock(class, routine)
	if b == nil {
		return "", nil
	}
	return src.returnExprType(ctx, b, depth+1)
}

// routineBlock finds the block of a named method (class set) or function.
func (f *File) routineBlock(class, name string) *parser.Block {
	for _, b := range f.parsed.Blocks {
		if b.Routine == nil || b.Routine.Name != name {
			continue
		}
		if class == "" && b.Kind == parser.FunctionBlock {
			return b
		}
		if class != "" && b.Kind == parser.MethodBlock && store.JoinName(f.parsed.Namespace, b.Routine.Class) == class {
			return b
		}
	}
	return nil
}

func (f *File) returnExprType(ctx context.Context, b *parser.Block, depth int) (string, error) {
	for j := b.Begin + 1; j < b.End; j++ {
		if !f.isKeyword(j, "return") || f.enclosingRoutine(j) != b {
			continue
		}
		end := f.statementEnd(j + 1)
		if end <= j+1 {
			continue
		}
		t, err := f.typeAt(ctx, end-1, depth+1)
		if err != nil || t != "" {
			return t, err
		}
	}
	return "", nil
}

// statementEnd returns the index of the ";" ending the statement that
// starts at from, ignoring nested brackets. It stops early at a closing
// bracket that was not opened within the statement.
func (f *File) statementEnd(from int) int {
	depth := 0
	for j := from; j < len(f.Tokens); j++ {
		switch {
		case f.isOp(j, "(", "[", "{"):
			depth++
		case f.isOp(j, ")", "]", "}"):
			if depth == 0 {
				return j
			}
			depth--
		case f.isOp(j, ";") && depth == 0:
			return j
		}
	}
	return len(f.Tokens)
}

// scopeRange returns the token range searched for a variable at idx: the
// enclosing routine from its keyword to its closing brace, or the whole
// file.
func (f *File) scopeRange(scope *parser.Block) (int, int) {
	if scope == nil {
		return 0, len(f.Tokens) - 1
	}
	lo := scope.Site
	if lo < 0 {
		lo = scope.Begin
	}
	return lo, scope.End
}

// inScope reports whether token j belongs directly to scope. Nested
// routines never do; at the top level class bodies and routine signatures
// are excluded as well.
func (f *File) inScope(j int, scope *parser.Block) bool {
	if f.enclosingRoutine(j) != scope {
		return false
	}
	if scope != nil {
		return true
	}
	if f.enclosingClass(j) != nil {
		return false
	}
	for _, b := range f.parsed.Blocks {
		if b.Routine != nil && j > b.Site && j < b.Begin {
			return false
		}
	}
	return true
}

// variableType resolves a variable by, in order: $this, an @var
// annotation in the scope, the nearest preceding assignment, and the
// routine's parameter type.
func (f *File) variableType(ctx context.Context, i, depth int) (string, error) {
	name := f.Tokens[i].Text
	if name == "$this" {
		if cls := f.classFQN(f.enclosingClass(i)); cls != "" {
			return cls, nil
		}
	}
	scope := f.enclosingRoutine(i)
	lo, hi := f.scopeRange(scope)

	if t := f.annotatedVarType(name, lo, hi); t != "" {
		return f.ResolveName(t, i), nil
	}

	for j := i; j >= lo; j-- {
		tok := f.Tokens[j]
		if tok.Kind != lexer.Variable || tok.Text != name || !f.isOp(j+1, "=") {
			continue
		}
		if !f.inScope(j, scope) {
			continue
		}
		end := f.statementEnd(j + 2)
		if j != i && end >= i {
			// i is inside this assignment's right-hand side
			continue
		}
		if end > j+2 {
			t, err := f.typeAt(ctx, end-1, depth+1)
			if err != nil || t != "" {
				return t, err
			}
		}
		break
	}

	if scope != nil && scope.Routine != nil {
		for _, a := range scope.Routine.Args {
			if a.Name == name {
				return f.ResolveName(a.TypeHint, i), nil
			}
		}
	}
	return "", nil
}

// annotatedVarType returns the type of the last "@var Type $name"
// annotation found in a comment within tokens [lo, hi].
func (f *File) annotatedVarType(name string, lo, hi int) string {
	first, last := f.at(lo).Line, f.at(hi).Line
	if hi >= len(f.Tokens) {
		last = f.at(len(f.Tokens) - 1).Line
	}
	t := ""
	for _, c := range f.Comments {
		if c.Line < first || c.Line > last {
			continue
		}
		if v := ParseAnnotations(c.Text).VarType(name); v != "" {
			t = v
		}
	}
	return t
}

// VariablesInScope lists the distinct variables visible at idx in first
// appearance order: the routine's parameters and locals, or the file's
// top-level variables outside any routine. "$this" is included inside
// class methods.
func (f *File) VariablesInScope(idx int) []string {
	scope := f.enclosingRoutine(idx)
	lo, hi := f.scopeRange(scope)
	seen := map[string]bool{}
	out := []string{}
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	if scope != nil && scope.Routine != nil {
		for _, a := range scope.Routine.Args {
			add(a.Name)
		}
	}
	if scope != nil && scope.Kind == parser.MethodBlock && scope.Routine != nil && !scope.Routine.Static {
		add("$this")
	}
	for j := lo; j <= hi && j < len(f.Tokens); j++ {
		if f.Tokens[j].Kind != lexer.Variable || f.isOp(j-1, "::") {
			continue
		}
		if !f.inScope(j, scope) {
			continue
		}
		add(f.Tokens[j].Text)
	}
	return out
}
