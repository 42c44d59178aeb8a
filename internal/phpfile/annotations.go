package phpfile

import (
	"regexp"
	"strings"
)

var annotationPattern = regexp.MustCompile(`@([\\a-zA-Z_-]+)((?:[$ \ta-zA-Z0-9?\\_|-]+)*)`)

// Annotations maps a doc-comment tag (without "@") to the word lists of
// each occurrence, in source order.
type Annotations map[string][][]string

// ParseAnnotations extracts the @tags of a comment. For @var the
// "$name Type" spelling is normalized to "Type $name".
func ParseAnnotations(comment string) Annotations {
	out := Annotations{}
	for _, m := range annotationPattern.FindAllStringSubmatch(comment, -1) {
		tag := m[1]
		words := strings.Fields(m[2])
		if tag == "var" && len(words) >= 2 && strings.HasPrefix(words[0], "$") {
			words[0], words[1] = words[1], words[0]
		}
		out[tag] = append(out[tag], words)
	}
	return out
}

// First returns the first word of the first occurrence of tag.
func (a Annotations) First(tag string) string {
	for _, words := range a[tag] {
		if len(words) > 0 {
			return words[0]
		}
	}
	return ""
}

// VarType returns the type of the @var annotation naming variable, or of
// an unnamed @var when variable is "". The last matching annotation wins.
func (a Annotations) VarType(variable string) string {
	t := ""
	for _, words := range a["var"] {
		switch {
		case len(words) >= 2 && words[1] == variable:
			t = words[0]
		case len(words) == 1 && variable == "":
			t = words[0]
		}
	}
	return t
}
