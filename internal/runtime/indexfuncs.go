package runtime

import (
	"context"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/phpindex/internal/store"
)

// Index host functions. Class arguments are fully qualified names; a
// leading backslash is accepted. Missing records come back as nil.

func makeFilesFn(s store.Storage) *object.Builtin {
	return object.NewBuiltin("files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("files", 0, len(args))
		}
		files, err := s.AllFiles(ctx)
		if err != nil {
			return object.Errorf("files: %v", err)
		}
		return listOf(files, fileToMap)
	})
}

func makeClassFn(s store.Storage) *object.Builtin {
	return object.NewBuiltin("class", func(ctx context.Context, args ...object.Object) object.Object {
		ns, name, errObj := classArg("class", args, 1)
		if errObj != nil {
			return errObj
		}
		c, err := s.GetClass(ctx, ns, name)
		if err != nil {
			return object.Errorf("class: %v", err)
		}
		if c == nil {
			return object.Nil
		}
		return declToMap(c)
	})
}

func makeClassParentFn(s store.Storage) *object.Builtin {
	return object.NewBuiltin("class_parent", func(ctx context.Context, args ...object.Object) object.Object {
		ns, name, errObj := classArg("class_parent", args, 1)
		if errObj != nil {
			return errObj
		}
		parent, err := s.ClassParent(ctx, ns, name)
		if err != nil {
			return object.Errorf("class_parent: %v", err)
		}
		if parent == "" {
			return object.Nil
		}
		return object.NewString(parent)
	})
}

// class_children(fqn[, with_implementors]) → []string
func makeClassChildrenFn(s store.Storage) *object.Builtin {
	return object.NewBuiltin("class_children", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.NewArgsRangeError("class_children", 1, 2, len(args))
		}
		ns, name, errObj := classArg("class_children", args[:1], 1)
		if errObj != nil {
			return errObj
		}
		withImplementors := false
		if len(args) == 2 {
			b, ok := args[1].(*object.Bool)
			if !ok {
				return object.Errorf("class_children: with_implementors must be a bool, got %s", args[1].Type())
			}
			withImplementors = b.Value()
		}
		children, err := s.ClassChildren(ctx, ns, name, withImplementors)
		if err != nil {
			return object.Errorf("class_children: %v", err)
		}
		return stringList(children)
	})
}

func makeClassNamesFn(fn string, get func(ctx context.Context, namespace, name string) ([]string, error)) *object.Builtin {
	return object.NewBuiltin(fn, func(ctx context.Context, args ...object.Object) object.Object {
		ns, name, errObj := classArg(fn, args, 1)
		if errObj != nil {
			return errObj
		}
		names, err := get(ctx, ns, name)
		if err != nil {
			return object.Errorf("%s: %v", fn, err)
		}
		return stringList(names)
	})
}

func makeClassMethodsFn(s store.Storage) *object.Builtin {
	return object.NewBuiltin("class_methods", func(ctx context.Context, args ...object.Object) object.Object {
		ns, name, errObj := classArg("class_methods", args, 1)
		if errObj != nil {
			return errObj
		}
		methods, err := s.ClassMethods(ctx, ns, name)
		if err != nil {
			return object.Errorf("class_methods: %v", err)
		}
		return listOf(methods, declToMap)
	})
}

func makeClassMembersFn(s store.Storage) *object.Builtin {
	return object.NewBuiltin("class_members", func(ctx context.Context, args ...object.Object) object.Object {
		ns, name, errObj := classArg("class_members", args, 1)
		if errObj != nil {
			return errObj
		}
		members, err := s.ClassMembers(ctx, ns, name)
		if err != nil {
			return object.Errorf("class_members: %v", err)
		}
		return listOf(members, declToMap)
	})
}

func makeClassConstantsFn(s store.Storage) *object.Builtin {
	return object.NewBuiltin("class_constants", func(ctx context.Context, args ...object.Object) object.Object {
		ns, name, errObj := classArg("class_constants", args, 1)
		if errObj != nil {
			return errObj
		}
		consts, err := s.ClassConstants(ctx, ns, name)
		if err != nil {
			return object.Errorf("class_constants: %v", err)
		}
		return listOf(consts, declToMap)
	})
}

func makeClassesFn(s store.Storage) *object.Builtin {
	return object.NewBuiltin("classes", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("classes", 0, len(args))
		}
		names, err := s.AllClassNames(ctx)
		if err != nil {
			return object.Errorf("classes: %v", err)
		}
		return stringList(names)
	})
}

func makeFunctionsFn(s store.Storage) *object.Builtin {
	return object.NewBuiltin("functions", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("functions", 0, len(args))
		}
		fns, err := s.AllFunctions(ctx)
		if err != nil {
			return object.Errorf("functions: %v", err)
		}
		return listOf(fns, declToMap)
	})
}

func makeConstantsFn(s store.Storage) *object.Builtin {
	return object.NewBuiltin("constants", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("constants", 0, len(args))
		}
		consts, err := s.AllConstants(ctx)
		if err != nil {
			return object.Errorf("constants: %v", err)
		}
		return listOf(consts, declToMap)
	})
}

// uses_of(kind, name) → []map. Member names carry their "$".
func makeUsesOfFn(s store.Storage) *object.Builtin {
	return object.NewBuiltin("uses_of", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("uses_of", 2, len(args))
		}
		kind, errObj := stringArg("uses_of", "kind", args[0])
		if errObj != nil {
			return errObj
		}
		name, errObj := stringArg("uses_of", "name", args[1])
		if errObj != nil {
			return errObj
		}
		uses, err := s.UsesOf(ctx, store.Kind(kind), strings.TrimPrefix(name, `\`))
		if err != nil {
			return object.Errorf("uses_of: %v", err)
		}
		return listOf(uses, useToMap)
	})
}

func makeUsesByFileFn(s store.Storage) *object.Builtin {
	return object.NewBuiltin("uses_by_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("uses_by_file", 1, len(args))
		}
		path, errObj := stringArg("uses_by_file", "path", args[0])
		if errObj != nil {
			return errObj
		}
		uses, err := s.UsesByFile(ctx, path)
		if err != nil {
			return object.Errorf("uses_by_file: %v", err)
		}
		return listOf(uses, useToMap)
	})
}

// search(text) → []map, best match first.
func makeSearchFn(s store.Storage) *object.Builtin {
	return object.NewBuiltin("search", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("search", 1, len(args))
		}
		text, errObj := stringArg("search", "text", args[0])
		if errObj != nil {
			return errObj
		}
		terms := strings.Fields(text)
		if !store.ValidTerms(terms) {
			return object.NewList([]object.Object{})
		}
		hits, err := s.Search(ctx, terms)
		if err != nil {
			return object.Errorf("search: %v", err)
		}
		return listOf(hits, hitToMap)
	})
}

// --- argument helpers ---

func stringArg(fn, what string, arg object.Object) (string, *object.Error) {
	str, ok := arg.(*object.String)
	if !ok {
		return "", object.Errorf("%s: %s must be a string, got %s", fn, what, arg.Type())
	}
	return str.Value(), nil
}

func classArg(fn string, args []object.Object, want int) (namespace, name string, errObj *object.Error) {
	if len(args) != want {
		return "", "", object.NewArgsError(fn, want, len(args))
	}
	fqn, errObj := stringArg(fn, "class", args[0])
	if errObj != nil {
		return "", "", errObj
	}
	namespace, name = store.SplitName(fqn)
	return namespace, name, nil
}

// --- record conversion ---

func listOf[T any](items []T, conv func(T) object.Object) object.Object {
	out := make([]object.Object, 0, len(items))
	for _, it := range items {
		out = append(out, conv(it))
	}
	return object.NewList(out)
}

func stringList(items []string) object.Object {
	return listOf(items, func(s string) object.Object { return object.NewString(s) })
}

func located(kind store.Kind, file string, line, col int) map[string]object.Object {
	return map[string]object.Object{
		"kind": object.NewString(string(kind)),
		"file": object.NewString(file),
		"line": object.NewInt(int64(line)),
		"col":  object.NewInt(int64(col)),
	}
}

func argsToList(args []store.Argument) object.Object {
	return listOf(args, func(a store.Argument) object.Object {
		return object.NewMap(map[string]object.Object{
			"name":        object.NewString(a.Name),
			"type":        object.NewString(a.TypeHint),
			"default":     object.NewString(a.Default),
			"has_default": object.NewBool(a.HasDefault),
		})
	})
}

// declToMap converts any declaration record. Every map has kind, file,
// line, col and name.
func declToMap[D store.Declaration](decl D) object.Object {
	var m map[string]object.Object
	switch d := any(decl).(type) {
	case *store.Class:
		m = located(store.KindClass, d.File, d.Line, d.Col)
		m["namespace"] = object.NewString(d.Namespace)
		m["name"] = object.NewString(d.Name)
		m["fqn"] = object.NewString(d.FQN())
		m["type"] = object.NewString(d.Type)
		m["parent"] = object.NewString(d.Parent)
		m["interfaces"] = stringList(d.Interfaces)
		m["traits"] = stringList(d.Traits)
		m["abstract"] = object.NewBool(d.Abstract)
		m["final"] = object.NewBool(d.Final)
		m["doc"] = object.NewString(d.DocComment)
	case *store.ClassConstant:
		m = located(store.KindClassConstant, d.File, d.Line, d.Col)
		m["namespace"] = object.NewString(d.Namespace)
		m["class"] = object.NewString(d.Class)
		m["name"] = object.NewString(d.Name)
		m["doc"] = object.NewString(d.DocComment)
	case *store.Method:
		m = located(store.KindMethod, d.File, d.Line, d.Col)
		m["namespace"] = object.NewString(d.Namespace)
		m["class"] = object.NewString(d.Class)
		m["name"] = object.NewString(d.Name)
		m["visibility"] = object.NewString(d.Visibility)
		m["static"] = object.NewBool(d.Static)
		m["abstract"] = object.NewBool(d.Abstract)
		m["final"] = object.NewBool(d.Final)
		m["args"] = argsToList(d.Args)
		m["return_type"] = object.NewString(d.ReturnType)
		m["doc"] = object.NewString(d.DocComment)
	case *store.Member:
		m = located(store.KindMember, d.File, d.Line, d.Col)
		m["namespace"] = object.NewString(d.Namespace)
		m["class"] = object.NewString(d.Class)
		m["name"] = object.NewString(d.Name)
		m["visibility"] = object.NewString(d.Visibility)
		m["static"] = object.NewBool(d.Static)
		m["type"] = object.NewString(d.TypeHint)
		m["doc"] = object.NewString(d.DocComment)
	case *store.Function:
		m = located(store.KindFunction, d.File, d.Line, d.Col)
		m["namespace"] = object.NewString(d.Namespace)
		m["name"] = object.NewString(d.Name)
		m["fqn"] = object.NewString(d.FQN())
		m["args"] = argsToList(d.Args)
		m["return_type"] = object.NewString(d.ReturnType)
		m["doc"] = object.NewString(d.DocComment)
	case *store.Constant:
		m = located(store.KindConstant, d.File, d.Line, d.Col)
		m["namespace"] = object.NewString(d.Namespace)
		m["name"] = object.NewString(d.Name)
		m["doc"] = object.NewString(d.DocComment)
	default:
		return object.Nil
	}
	return object.NewMap(m)
}

func fileToMap(f *store.File) object.Object {
	return object.NewMap(map[string]object.Object{
		"path":      object.NewString(f.Path),
		"namespace": object.NewString(f.Namespace),
		"mtime":     object.NewInt(f.Mtime),
		"hash":      object.NewString(f.Hash),
	})
}

func useToMap(u *store.Use) object.Object {
	m := located(u.Kind, u.File, u.Line, u.Col)
	m["name"] = object.NewString(u.Name)
	m["class"] = object.NewString(u.Class)
	m["routine"] = object.NewString(u.Routine)
	return object.NewMap(m)
}

func hitToMap(h *store.SearchHit) object.Object {
	m := located(h.Kind, h.File, h.Line, h.Col)
	m["title"] = object.NewString(h.Title)
	m["score"] = object.NewInt(int64(h.Score))
	return object.NewMap(m)
}
