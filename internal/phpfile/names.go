package phpfile

import (
	"strings"

	"github.com/jward/phpindex/internal/store"
)

// scalarTypes never name a class.
var scalarTypes = map[string]bool{
	"void": true, "bool": true, "boolean": true, "int": true, "integer": true,
	"float": true, "double": true, "string": true, "array": true, "mixed": true,
	"null": true, "false": true, "true": true, "callable": true, "iterable": true,
	"object": true, "resource": true, "never": true,
}

// IsScalarType reports whether name is a built-in non-class type.
func IsScalarType(name string) bool {
	return scalarTypes[strings.ToLower(strings.TrimPrefix(name, `\`))]
}

// cleanType reduces a type expression to a single class candidate:
// nullable markers are dropped, the first non-null union member is kept
// and array shapes such as Foo[] yield "".
func cleanType(t string) string {
	t = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "?"))
	if strings.ContainsAny(t, "|&") {
		parts := strings.FieldsFunc(t, func(r rune) bool { return r == '|' || r == '&' })
		t = ""
		for _, p := range parts {
			p = strings.TrimSpace(strings.Trim(p, "()"))
			if p != "" && !strings.EqualFold(p, "null") {
				t = p
				break
			}
		}
	}
	if strings.HasSuffix(t, "[]") || strings.ContainsAny(t, "<{( ") {
		return ""
	}
	return t
}

// qualify expands name through the use-alias map and the namespace. It
// does not handle self, static or parent.
func (f *File) qualify(name string) string {
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, `\`) {
		return strings.TrimPrefix(name, `\`)
	}
	first, rest, qualified := strings.Cut(name, `\`)
	if target, ok := f.parsed.UseAliases[first]; ok {
		if qualified {
			return target + `\` + rest
		}
		return target
	}
	if strings.EqualFold(first, "namespace") && qualified {
		return store.JoinName(f.parsed.Namespace, rest)
	}
	return store.JoinName(f.parsed.Namespace, name)
}

// ResolveName resolves a class name written at token index idx to its
// fully qualified form: self and static become the enclosing class,
// parent its declared parent, and other names go through the use-alias
// map and the namespace. Scalar types and unresolvable names yield "".
func (f *File) ResolveName(name string, idx int) string {
	name = cleanType(name)
	if name == "" || IsScalarType(name) {
		return ""
	}
	switch strings.ToLower(name) {
	case "self", "static", "$this":
		return f.classFQN(f.enclosingClass(idx))
	case "parent":
		cls := f.enclosingClass(idx)
		if cls == nil || cls.Class == nil {
			return ""
		}
		return f.qualify(cls.Class.Parent)
	}
	return f.qualify(name)
}
