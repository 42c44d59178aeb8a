package store

import "strings"

// SplitName splits a qualified name into namespace and short name. A
// leading backslash is ignored.
func SplitName(fqn string) (namespace, name string) {
	fqn = strings.TrimPrefix(fqn, `\`)
	if i := strings.LastIndex(fqn, `\`); i >= 0 {
		return fqn[:i], fqn[i+1:]
	}
	return "", fqn
}

// JoinName qualifies name with namespace.
func JoinName(namespace, name string) string {
	namespace = strings.Trim(namespace, `\`)
	if namespace == "" {
		return name
	}
	return namespace + `\` + name
}
