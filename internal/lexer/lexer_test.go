package lexer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

func tokenize(t *testing.T, src string) ([]Token, []Comment) {
	t.Helper()
	tokens, comments, err := Tokenize(src)
	require.NoError(t, err)
	return tokens, comments
}

// =============================================================================
// Inline HTML & tags
// =============================================================================

func TestTokenize_InlineHTMLOnly(t *testing.T) {
	t.Parallel()
	tokens, _ := tokenize(t, "<html>\n<body></body>\n")
	require.Len(t, tokens, 1)
	assert.Equal(t, InlineHTML, tokens[0].Kind)
}

func TestTokenize_OpenAndCloseTags(t *testing.T) {
	t.Parallel()
	tokens, _ := tokenize(t, "<p><?php echo 1; ?></p>")
	assert.Equal(t, []string{"<p>", "<?php", "echo", "1", ";", "?>", "</p>"}, texts(tokens))
	assert.Equal(t, OpenTag, tokens[1].Kind)
	assert.Equal(t, CloseTag, tokens[5].Kind)
	assert.Equal(t, InlineHTML, tokens[6].Kind)
}

// =============================================================================
// Keywords & identifiers
// =============================================================================

func TestTokenize_KeywordsCaseInsensitive(t *testing.T) {
	t.Parallel()
	tokens, _ := tokenize(t, "<?php CLASS Foo EXTENDS Bar {}")
	assert.Equal(t, Keyword, tokens[1].Kind)
	assert.True(t, tokens[1].Is("class"))
	assert.Equal(t, "CLASS", tokens[1].Text)
	assert.Equal(t, Ident, tokens[2].Kind)
	assert.Equal(t, Keyword, tokens[3].Kind)
}

func TestTokenize_KeywordPrefixIsIdentifier(t *testing.T) {
	t.Parallel()
	tokens, _ := tokenize(t, "<?php classic(); newer; use_this;")
	assert.Equal(t, Ident, tokens[1].Kind)
	assert.Equal(t, "classic", tokens[1].Text)
	assert.Equal(t, Ident, tokens[5].Kind)
	assert.Equal(t, Ident, tokens[7].Kind)
}

func TestTokenize_MemberNamedLikeKeyword(t *testing.T) {
	t.Parallel()
	tokens, _ := tokenize(t, "<?php $a->list(); Foo::class; function print() {}")
	assert.Equal(t, Ident, tokens[3].Kind, "after ->")
	assert.Equal(t, Ident, tokens[9].Kind, "after ::")
	assert.Equal(t, "class", tokens[9].Text)
	assert.Equal(t, Ident, tokens[12].Kind, "after function")
}

func TestTokenize_QualifiedNames(t *testing.T) {
	t.Parallel()
	tokens, _ := tokenize(t, `<?php new \App\Models\User(); use App\Foo;`)
	assert.Equal(t, `\App\Models\User`, tokens[2].Text)
	assert.Equal(t, Ident, tokens[2].Kind)
	assert.Equal(t, `App\Foo`, tokens[7].Text)
}

func TestTokenize_Variables(t *testing.T) {
	t.Parallel()
	tokens, _ := tokenize(t, `<?php $foo = $$bar; $_GET;`)
	assert.Equal(t, Variable, tokens[1].Kind)
	assert.Equal(t, "$$bar", tokens[3].Text)
	assert.Equal(t, Variable, tokens[3].Kind)
	assert.Equal(t, "$_GET", tokens[5].Text)
}

// =============================================================================
// Literals, operators & comments
// =============================================================================

func TestTokenize_Strings(t *testing.T) {
	t.Parallel()
	tokens, _ := tokenize(t, `<?php 'it\'s'; "a \"b\" c"; `+"`ls`;")
	assert.Equal(t, `'it\'s'`, tokens[1].Text)
	assert.Equal(t, ConstantString, tokens[1].Kind)
	assert.Equal(t, `"a \"b\" c"`, tokens[3].Text)
	assert.Equal(t, ExecuteString, tokens[5].Kind)
}

func TestTokenize_Heredoc(t *testing.T) {
	t.Parallel()
	src := "<?php $x = <<<EOT\nline one\nEOTX still\nEOT;\n$y = 1;"
	tokens, _ := tokenize(t, src)
	require.GreaterOrEqual(t, len(tokens), 5)
	assert.Equal(t, Heredoc, tokens[3].Kind)
	assert.Equal(t, "<<<EOT\nline one\nEOTX still\nEOT", tokens[3].Text)
	assert.Equal(t, ";", tokens[4].Text)
	assert.Equal(t, 5, tokens[5].Line)
}

func TestTokenize_MultiCharOperatorsLongestMatch(t *testing.T) {
	t.Parallel()
	tokens, _ := tokenize(t, "<?php $a !== $b; $c->d; E::f; $g ??= 1; $h <=> $i;")
	got := texts(tokens)
	assert.Contains(t, got, "!==")
	assert.Contains(t, got, "->")
	assert.Contains(t, got, "::")
	assert.Contains(t, got, "??=")
	assert.Contains(t, got, "<=>")
}

func TestTokenize_Casts(t *testing.T) {
	t.Parallel()
	tokens, _ := tokenize(t, "<?php $a = (int) $b; f(string $s);")
	assert.Equal(t, Cast, tokens[3].Kind)
	assert.Equal(t, "(", tokens[7].Text)
	assert.Equal(t, Ident, tokens[8].Kind)
}

func TestTokenize_CommentsSideChannel(t *testing.T) {
	t.Parallel()
	src := "<?php\n/** doc */\nclass A {} // tail\n# hash\n/* block */ $x;"
	tokens, comments := tokenize(t, src)
	for _, tok := range tokens {
		assert.False(t, tok.IsComment(), "comments stay off the token stream")
	}
	require.Len(t, comments, 4)
	assert.Equal(t, DocComment, comments[0].Kind)
	assert.Equal(t, 1, comments[0].Next, "doc comment precedes class keyword")
	assert.True(t, tokens[comments[0].Next].Is("class"))
	assert.Equal(t, "// tail", comments[1].Text)
	assert.Equal(t, LineComment, comments[3].Kind)
	assert.Equal(t, "$x", tokens[comments[3].Next].Text)
}

func TestTokenize_LineCommentStopsAtCloseTag(t *testing.T) {
	t.Parallel()
	tokens, comments := tokenize(t, "<?php // note ?>html")
	require.Len(t, comments, 1)
	assert.Equal(t, "// note ", comments[0].Text)
	assert.Equal(t, CloseTag, tokens[1].Kind)
	assert.Equal(t, "html", tokens[2].Text)
}

// =============================================================================
// Positions
// =============================================================================

func TestTokenize_Positions(t *testing.T) {
	t.Parallel()
	src := "<?php\nclass Foo {\n  public $bar;\n}"
	tokens, _ := tokenize(t, src)
	byText := map[string]Token{}
	for _, tok := range tokens {
		byText[tok.Text] = tok
	}
	assert.Equal(t, 2, byText["class"].Line)
	assert.Equal(t, 1, byText["class"].Col)
	assert.Equal(t, 7, byText["Foo"].Col)
	assert.Equal(t, 3, byText["$bar"].Line)
	assert.Equal(t, 10, byText["$bar"].Col)
	assert.Equal(t, 4, byText["}"].Line)
}

func TestTokenize_PositionsAfterMultilineToken(t *testing.T) {
	t.Parallel()
	tokens, _ := tokenize(t, "<?php $s = 'a\nbc'; $t;")
	last := tokens[len(tokens)-2]
	assert.Equal(t, "$t", last.Text)
	assert.Equal(t, 2, last.Line)
	assert.Equal(t, 6, last.Col)
}

// =============================================================================
// Errors & round trip
// =============================================================================

func TestTokenize_UnterminatedStringIsLexError(t *testing.T) {
	t.Parallel()
	_, _, err := Tokenize("<?php\n$a = 'oops;")
	require.Error(t, err)
	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, 2, lexErr.Line)
	assert.Equal(t, 6, lexErr.Col)
	assert.Equal(t, "'oops;", lexErr.Snippet)
}

func TestTokenize_UnterminatedBlockComment(t *testing.T) {
	t.Parallel()
	_, _, err := Tokenize("<?php /* never closed")
	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, 7, lexErr.Col)
}

func TestTokenize_RoundTripWithTrivia(t *testing.T) {
	t.Parallel()
	srcs := []string{
		"<?php\nnamespace App;\n\nuse Foo\\Bar as Baz;\n\n/** @var int */\nclass A extends B implements C, D {\n\tconst X = 1; // one\n\tpublic function f(array $a = array(1, 2)) { return $a ?? null; }\n}\n?>\n<b>html</b>",
		"no php here",
		"<?= $x ?>tail",
		"<?php $h = <<<'X'\nraw $text\nX;\n# done\n",
	}
	for _, src := range srcs {
		tokens, _, err := Tokenize(src, WithTrivia())
		require.NoError(t, err)
		var sb strings.Builder
		for _, tok := range tokens {
			sb.WriteString(tok.Text)
		}
		assert.Equal(t, src, sb.String())
	}
}

func TestTokenize_TriviaCommentNext(t *testing.T) {
	t.Parallel()
	tokens, comments, err := Tokenize("<?php /** d */ function f() {}", WithTrivia())
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, " ", tokens[comments[0].Next].Text)
}

func TestKind_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "T_STRING", Ident.String())
	assert.Equal(t, "T_VARIABLE", Variable.String())
	assert.Equal(t, "T_COMMENT", LineComment.String())
	assert.Equal(t, "T_UNKNOWN", Kind(999).String())
}
