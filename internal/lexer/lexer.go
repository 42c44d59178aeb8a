// Package lexer turns PHP source text into a flat token sequence.
//
// There is no syntax tree: the ordered token slice is the single source of
// truth for the block parser and the file model. Whitespace is dropped and
// comments are reported both in the token stream position order (via
// Comment.Next) and on a side channel, unless WithTrivia is set, in which
// case whitespace and comments stay in the token stream and concatenating
// every token text reproduces the input exactly.
package lexer

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// LexError is returned when no token definition can consume the input at
// the current position.
type LexError struct {
	Snippet string
	Line    int
	Col     int
}

func (e *LexError) Error() string {
	return fmt.Sprintf("cannot lex code at line %d column %d (code: %q)", e.Line, e.Col, e.Snippet)
}

// Option configures Tokenize.
type Option func(*lexer)

// WithTrivia keeps whitespace and comment tokens in the token stream.
func WithTrivia() Option {
	return func(l *lexer) { l.trivia = true }
}

// operators is ordered longest first so the first hit is the longest match.
var operators = []string{
	"<<=", ">>=", "**=", "...", "<=>", "??=", "!==", "===", "?->",
	"->", "=>", "::", "++", "--", "&&", "||", "??", "<<", ">>", "**",
	"<=", ">=", "!=", "<>", "==", "+=", "-=", "*=", "/=", ".=", "%=",
	"&=", "|=", "^=",
}

var casts = []string{
	"(int)", "(integer)", "(bool)", "(boolean)", "(float)", "(double)",
	"(real)", "(string)", "(array)", "(object)", "(unset)", "(binary)",
}

type lexer struct {
	src      string
	pos      int
	line     int
	col      int
	inPHP    bool
	trivia   bool
	tokens   []Token
	comments []Comment
}

// Tokenize lexes src. Everything outside an opening tag becomes a single
// InlineHTML token per span.
func Tokenize(src string, opts ...Option) ([]Token, []Comment, error) {
	l := &lexer{src: src, line: 1, col: 1}
	for _, opt := range opts {
		opt(l)
	}
	for l.pos < len(l.src) {
		if !l.inPHP {
			l.lexInline()
			continue
		}
		if err := l.lexPHP(); err != nil {
			return nil, nil, err
		}
	}
	return l.tokens, l.comments, nil
}

func (l *lexer) rest() string { return l.src[l.pos:] }

// emit appends a token of kind for the next n bytes and advances the
// cursor and position counters.
func (l *lexer) emit(kind Kind, n int) {
	text := l.src[l.pos : l.pos+n]
	tok := Token{Kind: kind, Text: text, Line: l.line, Col: l.col}
	switch {
	case kind == Whitespace:
		if l.trivia {
			l.tokens = append(l.tokens, tok)
		}
	case tok.IsComment():
		l.comments = append(l.comments, Comment{Token: tok, Next: len(l.tokens)})
		if l.trivia {
			l.comments[len(l.comments)-1].Next++
			l.tokens = append(l.tokens, tok)
		}
	default:
		l.tokens = append(l.tokens, tok)
	}
	l.advance(text)
}

func (l *lexer) advance(text string) {
	l.pos += len(text)
	if nl := strings.LastIndexByte(text, '\n'); nl >= 0 {
		l.line += strings.Count(text, "\n")
		l.col = utf8.RuneCountInString(text[nl+1:]) + 1
		return
	}
	l.col += utf8.RuneCountInString(text)
}

func (l *lexer) fail() error {
	snippet := l.rest()
	if len(snippet) > 10 {
		snippet = snippet[:10]
	}
	return &LexError{Snippet: snippet, Line: l.line, Col: l.col}
}

func (l *lexer) lexInline() {
	rest := l.rest()
	idx := strings.Index(rest, "<?")
	if idx < 0 {
		l.emit(InlineHTML, len(rest))
		return
	}
	if idx > 0 {
		l.emit(InlineHTML, idx)
		return
	}
	rest = rest[2:]
	switch {
	case len(rest) >= 3 && strings.EqualFold(rest[:3], "php"):
		l.emit(OpenTag, 5)
	case strings.HasPrefix(rest, "="):
		l.emit(OpenTag, 3)
	default:
		l.emit(OpenTag, 2)
	}
	l.inPHP = true
}

func (l *lexer) lexPHP() error {
	rest := l.rest()
	c := rest[0]

	switch {
	case isSpace(c):
		n := 1
		for n < len(rest) && isSpace(rest[n]) {
			n++
		}
		l.emit(Whitespace, n)
		return nil

	case strings.HasPrefix(rest, "?>"):
		l.emit(CloseTag, 2)
		l.inPHP = false
		return nil

	case strings.HasPrefix(rest, "/**") && !strings.HasPrefix(rest, "/**/"):
		end := strings.Index(rest[3:], "*/")
		if end < 0 {
			return l.fail()
		}
		l.emit(DocComment, end+5)
		return nil

	case strings.HasPrefix(rest, "/*"):
		end := strings.Index(rest[2:], "*/")
		if end < 0 {
			return l.fail()
		}
		l.emit(LineComment, end+4)
		return nil

	case strings.HasPrefix(rest, "//") || (c == '#' && !strings.HasPrefix(rest, "#[")):
		l.emit(LineComment, lineCommentLen(rest))
		return nil

	case c == '\'' || c == '"':
		n := quotedLen(rest, c)
		if n < 0 {
			return l.fail()
		}
		l.emit(ConstantString, n)
		return nil

	case c == '`':
		n := quotedLen(rest, c)
		if n < 0 {
			return l.fail()
		}
		l.emit(ExecuteString, n)
		return nil

	case strings.HasPrefix(rest, "<<<"):
		n := heredocLen(rest)
		if n < 0 {
			return l.fail()
		}
		l.emit(Heredoc, n)
		return nil

	case isDigit(c) || (c == '.' && len(rest) > 1 && isDigit(rest[1])):
		l.emit(Number, numberLen(rest))
		return nil

	case c == '$' && variableLen(rest) > 0:
		l.emit(Variable, variableLen(rest))
		return nil

	case isIdentStart(c) || (c == '\\' && len(rest) > 1 && isIdentStart(rest[1])):
		n := identLen(rest)
		word := rest[:n]
		if !strings.Contains(word, "\\") && IsKeyword(word) && !l.afterMemberOperator() {
			l.emit(Keyword, n)
		} else {
			l.emit(Ident, n)
		}
		return nil

	case c == '(':
		for _, cast := range casts {
			if len(rest) >= len(cast) && strings.EqualFold(rest[:len(cast)], cast) {
				l.emit(Cast, len(cast))
				return nil
			}
		}
	}

	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			l.emit(Operator, len(op))
			return nil
		}
	}

	_, size := utf8.DecodeRuneInString(rest)
	l.emit(Char, size)
	return nil
}

// afterMemberOperator reports whether the previous code token forces the
// next word to be read as a name rather than a keyword, as in $a->list()
// or function list().
func (l *lexer) afterMemberOperator() bool {
	for i := len(l.tokens) - 1; i >= 0; i-- {
		t := l.tokens[i]
		if t.Kind == Whitespace || t.IsComment() {
			continue
		}
		switch t.Text {
		case "->", "?->", "::":
			return true
		}
		return t.Kind == Keyword && (t.Is("function") || t.Is("const"))
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x7f
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }

func identLen(s string) int {
	n := 0
	for n < len(s) && (isIdentChar(s[n]) || (s[n] == '\\' && n+1 < len(s) && isIdentStart(s[n+1]))) {
		n++
	}
	return n
}

func variableLen(s string) int {
	n := 0
	for n < len(s) && s[n] == '$' {
		n++
	}
	if n >= len(s) || !isIdentStart(s[n]) {
		return 0
	}
	for n < len(s) && isIdentChar(s[n]) {
		n++
	}
	return n
}

func numberLen(s string) int {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X' || s[1] == 'b' || s[1] == 'B') {
		n := 2
		for n < len(s) && (isHex(s[n]) || s[n] == '_') {
			n++
		}
		return n
	}
	n := 0
	for n < len(s) && (isDigit(s[n]) || s[n] == '_') {
		n++
	}
	if n < len(s) && s[n] == '.' && n+1 < len(s) && isDigit(s[n+1]) {
		n++
		for n < len(s) && isDigit(s[n]) {
			n++
		}
	}
	if n < len(s) && (s[n] == 'e' || s[n] == 'E') {
		m := n + 1
		if m < len(s) && (s[m] == '+' || s[m] == '-') {
			m++
		}
		if m < len(s) && isDigit(s[m]) {
			for m < len(s) && isDigit(s[m]) {
				m++
			}
			n = m
		}
	}
	return n
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// lineCommentLen stops before the newline or a closing tag.
func lineCommentLen(s string) int {
	n := 0
	for n < len(s) && s[n] != '\n' {
		if strings.HasPrefix(s[n:], "?>") {
			break
		}
		n++
	}
	return n
}

// quotedLen returns the length of the quoted literal at the start of s,
// honoring backslash escapes, or -1 if it is unterminated.
func quotedLen(s string, quote byte) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		}
	}
	return -1
}

// heredocLen matches <<<LABEL, <<<"LABEL" and <<<'LABEL' up to and
// including the closing label.
func heredocLen(s string) int {
	i := 3
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	quoted := i < len(s) && (s[i] == '"' || s[i] == '\'')
	if quoted {
		i++
	}
	start := i
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	label := s[start:i]
	if label == "" {
		return -1
	}
	if quoted {
		i++
	}
	nl := strings.IndexByte(s[i:], '\n')
	if nl < 0 {
		return -1
	}
	i += nl
	for {
		idx := strings.Index(s[i:], "\n")
		if idx < 0 {
			return -1
		}
		j := i + idx + 1
		k := j
		for k < len(s) && (s[k] == ' ' || s[k] == '\t') {
			k++
		}
		if strings.HasPrefix(s[k:], label) {
			end := k + len(label)
			if end >= len(s) || !isIdentChar(s[end]) {
				return end
			}
		}
		i = j
	}
}
