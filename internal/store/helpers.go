package store

import (
	"encoding/json"
	"sort"
	"strings"
)

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// marshalArgs converts an argument list to JSON text for storage.
func marshalArgs(args []Argument) string {
	if len(args) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(args)
	return string(b)
}

// unmarshalArgs converts JSON text back to an argument list.
func unmarshalArgs(s string) []Argument {
	if s == "" || s == "null" || s == "[]" {
		return nil
	}
	var args []Argument
	_ = json.Unmarshal([]byte(s), &args)
	return args
}

// likePattern builds a case-insensitive LIKE pattern matching term
// anywhere, escaping LIKE metacharacters with a backslash.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(term)) + "%"
}

func sortedUnique(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
