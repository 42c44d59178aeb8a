package phpfile

import (
	"context"
	"strings"

	"github.com/jward/phpindex/internal/lexer"
	"github.com/jward/phpindex/internal/store"
)

// Declaration names what a source token refers to. Class is the fully
// qualified receiver class for methods, members and class constants. Name
// is fully qualified for classes; members carry their "$".
type Declaration struct {
	Kind  store.Kind
	Name  string
	Class string
}

// IsZero reports whether nothing was resolved.
func (d Declaration) IsZero() bool { return d.Kind == "" }

// DeclarationAt resolves the token at the 1-based position.
func (f *File) DeclarationAt(ctx context.Context, line, col int) (Declaration, error) {
	return f.DeclarationAtIndex(ctx, f.TokenIndexAt(line, col))
}

// DeclarationAtIndex resolves token i from its syntactic context. A zero
// Declaration means the token names nothing resolvable.
func (f *File) DeclarationAtIndex(ctx context.Context, i int) (Declaration, error) {
	tok := f.at(i)
	switch tok.Kind {
	case lexer.Variable:
		if !f.isOp(i-1, "::") {
			return Declaration{}, nil
		}
		cls, err := f.typeAt(ctx, i-2, 0)
		if err != nil || cls == "" {
			return Declaration{}, err
		}
		return Declaration{Kind: store.KindMember, Name: tok.Text, Class: cls}, nil

	case lexer.Ident:
	default:
		return Declaration{}, nil
	}

	name := tok.Text
	if f.isOp(i-1, "->", "?->", "::") {
		cls, err := f.typeAt(ctx, i-2, 0)
		if err != nil || cls == "" {
			return Declaration{}, err
		}
		switch {
		case f.isOp(i+1, "("):
			return Declaration{Kind: store.KindMethod, Name: name, Class: cls}, nil
		case f.isOp(i-1, "::"):
			return Declaration{Kind: store.KindClassConstant, Name: name, Class: cls}, nil
		}
		return Declaration{Kind: store.KindMember, Name: "$" + name, Class: cls}, nil
	}

	if f.isKeyword(i-1, "function") {
		if cls := f.enclosingClass(i); cls != nil && f.enclosingRoutine(i) == nil {
			if fqn := f.classFQN(cls); fqn != "" {
				return Declaration{Kind: store.KindMethod, Name: name, Class: fqn}, nil
			}
		}
		return f.functionDeclaration(ctx, name)
	}

	if f.isKeyword(i-1, "use") && f.enclosingClass(i) == nil {
		return Declaration{Kind: store.KindClass, Name: strings.TrimPrefix(name, `\`)}, nil
	}

	if f.isKeyword(i-1, classContextKeywords...) || f.isKeyword(i-1, "use") ||
		f.isOp(i+1, "::", "->", "?->") || f.at(i+1).Kind == lexer.Variable ||
		(f.isOp(i-1, ":") && f.isOp(i-2, ")")) || (f.isOp(i-1, ",") && f.inClassHeader(i)) {
		if fqn := f.ResolveName(name, i); fqn != "" {
			return Declaration{Kind: store.KindClass, Name: fqn}, nil
		}
		return Declaration{}, nil
	}

	if f.isOp(i+1, "(") {
		return f.functionDeclaration(ctx, name)
	}
	if lower := strings.ToLower(name); lower == "true" || lower == "false" || lower == "null" {
		return Declaration{}, nil
	}
	return Declaration{Kind: store.KindConstant, Name: strings.TrimPrefix(name, `\`)}, nil
}

// inClassHeader reports whether i lies in an implements or extends list.
func (f *File) inClassHeader(i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch {
		case f.isKeyword(j, "implements", "extends"):
			return true
		case f.isOp(j, ","), f.at(j).Kind == lexer.Ident:
		default:
			return false
		}
	}
	return false
}

// functionDeclaration qualifies a function name with the namespace when
// such a function exists, and falls back to the global name otherwise.
func (f *File) functionDeclaration(ctx context.Context, name string) (Declaration, error) {
	fn, err := f.findFunction(ctx, name)
	if err != nil {
		return Declaration{}, err
	}
	if fn != nil {
		return Declaration{Kind: store.KindFunction, Name: fn.FQN()}, nil
	}
	return Declaration{Kind: store.KindFunction, Name: strings.TrimPrefix(name, `\`)}, nil
}

// DeclaredPositionOf locates where d is declared. Methods, members and
// class constants are searched on the class, then its traits and
// ancestors. It returns nil when the declaration is unknown.
func (f *File) DeclaredPositionOf(ctx context.Context, d Declaration) (*store.Position, error) {
	lookup := f.Lookup()
	switch d.Kind {
	case store.KindClass:
		ns, name := store.SplitName(d.Name)
		c, err := lookup.GetClass(ctx, ns, name)
		if err != nil || c == nil {
			return nil, err
		}
		return c.Position(), nil

	case store.KindMethod:
		m, err := f.findMethod(ctx, d.Class, d.Name)
		if err != nil || m == nil {
			return nil, err
		}
		return m.Position(), nil

	case store.KindMember:
		name := d.Name
		if !strings.HasPrefix(name, "$") {
			name = "$" + name
		}
		m, err := f.findMember(ctx, d.Class, name)
		if err != nil || m == nil {
			return nil, err
		}
		return m.Position(), nil

	case store.KindClassConstant:
		c, err := f.findClassConstant(ctx, d.Class, d.Name)
		if err != nil || c == nil {
			return nil, err
		}
		return c.Position(), nil

	case store.KindFunction:
		name := d.Name
		if !strings.Contains(name, `\`) {
			// an unqualified name is global, not relative to this file
			name = `\` + name
		}
		fn, err := f.findFunction(ctx, name)
		if err != nil || fn == nil {
			return nil, err
		}
		return fn.Position(), nil

	case store.KindConstant:
		c, err := lookup.GetConstant(ctx, d.Name)
		if err != nil {
			return nil, err
		}
		if c == nil && strings.Contains(d.Name, `\`) {
			_, short := store.SplitName(d.Name)
			c, err = lookup.GetConstant(ctx, short)
			if err != nil {
				return nil, err
			}
		}
		if c == nil {
			return nil, nil
		}
		return c.Position(), nil
	}
	return nil, nil
}
