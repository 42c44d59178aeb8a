package phpfile

import (
	"context"
	"strings"

	"github.com/jward/phpindex/internal/lexer"
	"github.com/jward/phpindex/internal/parser"
	"github.com/jward/phpindex/internal/store"
)

// Declarations returns the records the file declares: classes, class
// constants, methods, members, functions and constants, each group in
// source order. Anonymous classes and closures are not declarations.
func (f *File) Declarations() []store.Declaration {
	var (
		classes   []store.Declaration
		consts    []store.Declaration
		methods   []store.Declaration
		members   []store.Declaration
		functions []store.Declaration
	)
	ns := f.parsed.Namespace

	for _, b := range f.parsed.Blocks {
		switch {
		case b.Kind == parser.ClassBlock && b.Class != nil && b.Class.Name != "":
			ci := b.Class
			classes = append(classes, f.classRecord(b))
			for _, c := range ci.Constants {
				tok := f.at(c.Index)
				consts = append(consts, &store.ClassConstant{
					File: f.Path, Namespace: ns, Class: ci.Name, Name: c.Name,
					DocComment: c.DocComment, Line: tok.Line, Col: tok.Col,
				})
			}
			for _, m := range ci.Members {
				tok := f.at(m.Index)
				members = append(members, &store.Member{
					File: f.Path, Namespace: ns, Class: ci.Name, Name: m.Name,
					Visibility: m.Visibility, Static: m.Static,
					TypeHint:   f.memberDeclaredType(m),
					DocComment: m.DocComment, Line: tok.Line, Col: tok.Col,
				})
			}

		case b.Kind == parser.MethodBlock && b.Routine != nil && b.Routine.Name != "" && b.Routine.Class != "":
			r := b.Routine
			tok := f.at(r.NameIndex)
			methods = append(methods, &store.Method{
				File: f.Path, Namespace: ns, Class: r.Class, Name: r.Name,
				Visibility: r.Visibility, Static: r.Static, Abstract: r.Abstract, Final: r.Final,
				DocComment: r.DocComment, Args: convertArgs(r.Args),
				ReturnType: f.routineDeclaredType(b),
				Line:       tok.Line, Col: tok.Col,
			})

		case b.Kind == parser.FunctionBlock && b.Routine != nil && b.Routine.Name != "":
			r := b.Routine
			tok := f.at(r.NameIndex)
			functions = append(functions, &store.Function{
				File: f.Path, Namespace: ns, Name: r.Name,
				DocComment: r.DocComment, Args: convertArgs(r.Args),
				ReturnType: f.routineDeclaredType(b),
				Line:       tok.Line, Col: tok.Col,
			})
		}
	}

	out := make([]store.Declaration, 0, len(classes)+len(consts)+len(methods)+len(members)+len(functions)+len(f.parsed.Constants))
	out = append(out, classes...)
	out = append(out, consts...)
	out = append(out, methods...)
	out = append(out, members...)
	out = append(out, functions...)
	for _, c := range f.parsed.Constants {
		tok := f.at(c.TokenIndex)
		rec := &store.Constant{File: f.Path, Name: c.Name, Line: tok.Line, Col: tok.Col}
		stmt := c.TokenIndex - 2 // define ( 'NAME'
		if tok.Kind == lexer.Ident {
			// const statement; define() names are global
			rec.Namespace = ns
			stmt = c.TokenIndex - 1
		}
		if lc := parser.LeadingComment(f.Comments, stmt); lc != nil && lc.Kind == lexer.DocComment {
			rec.DocComment = lc.Text
		}
		out = append(out, rec)
	}
	return out
}

func (f *File) classRecord(b *parser.Block) *store.Class {
	ci := b.Class
	tok := f.at(ci.NameIndex)
	c := &store.Class{
		File:       f.Path,
		Namespace:  f.parsed.Namespace,
		Name:       ci.Name,
		Type:       ci.Type,
		Parent:     f.qualify(ci.Parent),
		Abstract:   ci.Abstract,
		Final:      ci.Final,
		DocComment: ci.DocComment,
		Line:       tok.Line,
		Col:        tok.Col,
	}
	for _, name := range ci.Interfaces {
		c.Interfaces = append(c.Interfaces, f.qualify(name))
	}
	for _, name := range ci.Traits {
		c.Traits = append(c.Traits, f.qualify(name))
	}
	return c
}

// memberDeclaredType resolves a property's @var annotation, or its
// declared type when there is none.
func (f *File) memberDeclaredType(m parser.Member) string {
	t := ParseAnnotations(m.DocComment).First("var")
	if t == "" || strings.HasPrefix(t, "$") {
		t = m.TypeHint
	}
	return f.ResolveName(t, m.Index)
}

// routineDeclaredType resolves the @return annotation of a routine, or
// its declared return type when there is none.
func (f *File) routineDeclaredType(b *parser.Block) string {
	r := b.Routine
	t := ParseAnnotations(r.DocComment).First("return")
	if t == "" {
		t = r.ReturnType
	}
	return f.ResolveName(t, r.NameIndex)
}

func convertArgs(args []parser.Argument) []store.Argument {
	if len(args) == 0 {
		return nil
	}
	out := make([]store.Argument, len(args))
	for i, a := range args {
		out[i] = store.Argument{TypeHint: a.TypeHint, Name: a.Name, Default: a.Default, HasDefault: a.HasDefault}
	}
	return out
}

// Uses returns the file's use-edges in source order. Class references are
// fully qualified; function and constant names keep their spelling minus
// a leading backslash.
func (f *File) Uses() []*store.Use {
	out := make([]*store.Use, 0, len(f.parsed.Uses))
	for _, u := range f.parsed.Uses {
		name := strings.TrimPrefix(u.Name, `\`)
		kind := store.Kind(u.Kind)
		switch u.Kind {
		case parser.UseClass:
			if f.isKeyword(u.TokenIndex-1, "use") && f.enclosingClass(u.TokenIndex) == nil {
				// use statement: already fully qualified
				break
			}
			name = f.ResolveName(u.Name, u.TokenIndex)
		case parser.UseMember:
			if f.isOp(u.TokenIndex-1, "::") {
				kind = store.KindClassConstant
			} else {
				name = "$" + name
			}
		}
		if name == "" {
			continue
		}
		use := &store.Use{
			File: f.Path, Line: u.Line, Col: u.Col, Name: name, Kind: kind,
			Class: f.classFQN(f.enclosingClass(u.TokenIndex)),
		}
		if r := f.routineOf(u.TokenIndex); r != nil {
			use.Routine = r.Routine.Name
		}
		out = append(out, use)
	}
	return out
}

// routineOf returns the innermost routine whose signature or body holds
// idx. The routine's own name is not part of it.
func (f *File) routineOf(idx int) *parser.Block {
	var inner *parser.Block
	lower := -1
	for _, b := range f.parsed.Blocks {
		if b.Routine == nil {
			continue
		}
		lo := b.Routine.NameIndex
		if lo < 0 {
			lo = b.Site
		}
		if idx > lo && idx < b.End && lo > lower {
			inner, lower = b, lo
		}
	}
	return inner
}

// Extract writes the file record, its declarations and use-edges to w.
func (f *File) Extract(ctx context.Context, w store.Writer, mtime int64, hash string) error {
	err := w.AddFile(ctx, &store.File{Path: f.Path, Namespace: f.parsed.Namespace, Mtime: mtime, Hash: hash})
	if err != nil {
		return err
	}
	for _, d := range f.Declarations() {
		if err := store.Insert(ctx, w, d); err != nil {
			return err
		}
	}
	for _, u := range f.Uses() {
		if err := w.AddUse(ctx, u); err != nil {
			return err
		}
	}
	return nil
}
