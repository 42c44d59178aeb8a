package phpfile

import (
	"strings"
	"unicode/utf8"

	"github.com/jward/phpindex/internal/lexer"
	"github.com/jward/phpindex/internal/store"
)

// AddUseStatement returns the source with "use fqcn;" inserted after the
// last top-level use statement, or after the namespace declaration, or
// after the opening tag. ok is false when the class is already imported
// or lives in the file's namespace, in which case src is returned as is.
func (f *File) AddUseStatement(fqcn string) (src string, ok bool) {
	fqcn = strings.TrimPrefix(fqcn, `\`)
	ns, short := store.SplitName(fqcn)
	if ns == f.parsed.Namespace {
		return f.Source, false
	}
	for _, target := range f.parsed.UseAliases {
		if target == fqcn {
			return f.Source, false
		}
	}

	if _, taken := f.parsed.UseAliases[short]; taken {
		return f.Source, false
	}

	anchor := f.parsed.UseInsertionIndex
	if anchor < 0 {
		for i, t := range f.Tokens {
			if t.Kind == lexer.OpenTag {
				anchor = i
				break
			}
		}
	}
	stmt := "use " + fqcn + ";"
	if anchor < 0 {
		return "<?php " + stmt + " ?>" + f.Source, true
	}
	offset := f.offsetAfter(anchor)
	return f.Source[:offset] + "\n" + stmt + f.Source[offset:], true
}

// offsetAfter returns the byte offset just past token i.
func (f *File) offsetAfter(i int) int {
	t := f.Tokens[i]
	lineStart := 0
	for line := 1; line < t.Line; line++ {
		nl := strings.IndexByte(f.Source[lineStart:], '\n')
		if nl < 0 {
			return len(f.Source)
		}
		lineStart += nl + 1
	}
	// columns count runes
	off := lineStart
	for col := 1; col < t.Col && off < len(f.Source); col++ {
		_, size := utf8.DecodeRuneInString(f.Source[off:])
		off += size
	}
	return off + len(t.Text)
}
