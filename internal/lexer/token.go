package lexer

import "strings"

// Kind classifies a token.
type Kind int

const (
	InlineHTML Kind = iota
	OpenTag
	CloseTag
	Whitespace
	LineComment
	DocComment
	ConstantString // '...' and "..."
	ExecuteString  // `...`
	Heredoc
	Number
	Variable
	Keyword
	Cast
	Operator
	Char
	Ident
)

var kindNames = [...]string{
	InlineHTML:     "T_INLINE_HTML",
	OpenTag:        "T_OPEN_TAG",
	CloseTag:       "T_CLOSE_TAG",
	Whitespace:     "T_WHITESPACE",
	LineComment:    "T_COMMENT",
	DocComment:     "T_DOC_COMMENT",
	ConstantString: "T_CONSTANT_ENCAPSED_STRING",
	ExecuteString:  "T_EXECUTE_STRING",
	Heredoc:        "T_HEREDOC",
	Number:         "T_NUMBER",
	Variable:       "T_VARIABLE",
	Keyword:        "T_KEYWORD",
	Cast:           "T_CAST",
	Operator:       "T_OPERATOR",
	Char:           "T_SINGLE_CHAR",
	Ident:          "T_STRING",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "T_UNKNOWN"
}

// Token is one lexical unit. Line and Col are 1-based and point at the
// first character of Text.
type Token struct {
	Kind Kind
	Text string
	Line int
	Col  int
}

// Lower returns the token text in lower case. Keywords compare on this form.
func (t Token) Lower() string {
	return strings.ToLower(t.Text)
}

// Is reports whether the token text equals s. Keywords match
// case-insensitively.
func (t Token) Is(s string) bool {
	if t.Kind == Keyword {
		return strings.EqualFold(t.Text, s)
	}
	return t.Text == s
}

// IsComment reports whether the token is a line, block or doc comment.
func (t Token) IsComment() bool {
	return t.Kind == LineComment || t.Kind == DocComment
}

// Comment is a comment token kept on the side channel. Next is the index
// of the first code token that follows the comment in the token stream.
type Comment struct {
	Token
	Next int
}

// Keywords is the reserved word set. Matching is case-insensitive and a
// keyword never matches as the prefix of a longer identifier.
var Keywords = map[string]bool{}

func init() {
	for _, kw := range []string{
		"abstract", "and", "array", "as", "break", "callable", "case",
		"catch", "class", "clone", "const", "continue", "declare",
		"default", "do", "echo", "else", "elseif", "empty", "enddeclare",
		"endfor", "endforeach", "endif", "endswitch", "endwhile", "eval",
		"extends", "final", "finally", "for", "foreach", "function",
		"global", "goto", "if", "implements", "include", "include_once",
		"instanceof", "insteadof", "interface", "isset", "list",
		"namespace", "new", "or", "print", "private", "protected",
		"public", "require", "require_once", "return", "static", "switch",
		"throw", "trait", "try", "unset", "use", "var", "while", "xor",
	} {
		Keywords[kw] = true
	}
}

// IsKeyword reports whether word is a reserved word.
func IsKeyword(word string) bool {
	return Keywords[strings.ToLower(word)]
}
