package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/phpindex/internal/lexer"
)

func parse(t *testing.T, src string) (*Result, []lexer.Token) {
	t.Helper()
	tokens, comments, err := lexer.Tokenize(src)
	require.NoError(t, err)
	res, err := Parse(tokens, comments)
	require.NoError(t, err)
	return res, tokens
}

func classByName(t *testing.T, res *Result, name string) *ClassInfo {
	t.Helper()
	for _, b := range res.Classes() {
		if b.Class.Name == name {
			return b.Class
		}
	}
	t.Fatalf("class %s not found", name)
	return nil
}

func routineByName(t *testing.T, blocks []*Block, name string) *Block {
	t.Helper()
	for _, b := range blocks {
		if b.Routine != nil && b.Routine.Name == name {
			return b
		}
	}
	t.Fatalf("routine %s not found", name)
	return nil
}

const animalSource = `<?php
namespace App;

use App\Models\User as U;
use Psr\Log\LoggerInterface;

/**
 * Base animal.
 */
abstract class Animal implements Named, \Countable {
    const LEGS = 4, EYES = 2;

    /** @var LoggerInterface */
    protected $logger;
    public static $count = 0;
    private ?U $owner;

    public function speak() {}

    abstract protected function kind();

    /** @return Dog */
    final public static function create(U $owner, $name = "rex", array $tags = array(1, 2)) {
        $local = new Dog();
        static $cache;
        return $local;
    }
}

final class Dog extends Animal {
    use Loud, Friendly;

    public function speak() {
        $x = new Dog();
        $x->speak();
        return parent::kind();
    }
}

function helper(int $n): ?Dog {
    $f = function ($a) use ($n) { return $a; };
    return null;
}

define('APP_VERSION', '1.0');
const DEBUG = true;
`

// =============================================================================
// File-level structure
// =============================================================================

func TestParse_NamespaceAndUseAliases(t *testing.T) {
	t.Parallel()
	res, tokens := parse(t, animalSource)

	assert.Equal(t, "App", res.Namespace)
	assert.Equal(t, map[string]string{
		"U":               `App\Models\User`,
		"LoggerInterface": `Psr\Log\LoggerInterface`,
	}, res.UseAliases)
	require.Positive(t, res.UseInsertionIndex)
	assert.Equal(t, ";", tokens[res.UseInsertionIndex].Text)
	assert.Equal(t, 5, tokens[res.UseInsertionIndex].Line)
}

func TestParse_GroupUse(t *testing.T) {
	t.Parallel()
	res, _ := parse(t, `<?php use Acme\{Foo, Bar as Baz}; use function strlen;`)
	assert.Equal(t, `Acme\Foo`, res.UseAliases["Foo"])
	assert.Equal(t, `Acme\Bar`, res.UseAliases["Baz"])
	assert.NotContains(t, res.UseAliases, "strlen")
}

func TestParse_UseFunctionAndConstDeclareNothing(t *testing.T) {
	t.Parallel()
	res, _ := parse(t, "<?php\nnamespace App;\nuse function Lib\\helper;\nuse const Lib\\LIMIT;\nfunction real() {}\n")

	var names []string
	for _, b := range res.Functions() {
		names = append(names, b.Routine.Name)
	}
	assert.Equal(t, []string{"real"}, names)
	for _, b := range res.Blocks {
		if b.Begin == b.End {
			assert.Equal(t, Plain, b.Kind, "statement block at token %d", b.Begin)
		}
	}
	assert.Empty(t, res.Constants)
}

func TestParse_NoNamespace(t *testing.T) {
	t.Parallel()
	res, _ := parse(t, "<?php function f() {}")
	assert.Equal(t, "", res.Namespace)
	assert.Equal(t, -1, res.UseInsertionIndex)
}

func TestParse_TopLevelConstants(t *testing.T) {
	t.Parallel()
	res, _ := parse(t, animalSource)
	var names []string
	for _, c := range res.Constants {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"APP_VERSION", "DEBUG"}, names)
}

// =============================================================================
// Classes
// =============================================================================

func TestParse_ClassDeclarations(t *testing.T) {
	t.Parallel()
	res, _ := parse(t, animalSource)
	require.Len(t, res.Classes(), 2)

	animal := classByName(t, res, "Animal")
	assert.Equal(t, "class", animal.Type)
	assert.True(t, animal.Abstract)
	assert.False(t, animal.Final)
	assert.Equal(t, "", animal.Parent)
	assert.Equal(t, []string{"Named", `\Countable`}, animal.Interfaces)
	assert.Contains(t, animal.DocComment, "Base animal.")

	dog := classByName(t, res, "Dog")
	assert.True(t, dog.Final)
	assert.Equal(t, "Animal", dog.Parent)
	assert.Equal(t, []string{"Loud", "Friendly"}, dog.Traits)
}

func TestParse_ClassMembers(t *testing.T) {
	t.Parallel()
	res, _ := parse(t, animalSource)
	animal := classByName(t, res, "Animal")

	require.Len(t, animal.Members, 3, "locals and parameters are never members")
	assert.Equal(t, "$logger", animal.Members[0].Name)
	assert.Equal(t, "protected", animal.Members[0].Visibility)
	assert.Contains(t, animal.Members[0].DocComment, "@var LoggerInterface")
	assert.Equal(t, "$count", animal.Members[1].Name)
	assert.True(t, animal.Members[1].Static)
	assert.Equal(t, "$owner", animal.Members[2].Name)
	assert.Equal(t, "private", animal.Members[2].Visibility)
	assert.Equal(t, "?U", animal.Members[2].TypeHint)
}

func TestParse_ClassConstants(t *testing.T) {
	t.Parallel()
	res, _ := parse(t, animalSource)
	animal := classByName(t, res, "Animal")
	require.Len(t, animal.Constants, 2)
	assert.Equal(t, "LEGS", animal.Constants[0].Name)
	assert.Equal(t, "EYES", animal.Constants[1].Name)
}

func TestParse_InterfaceAndTrait(t *testing.T) {
	t.Parallel()
	res, _ := parse(t, `<?php
interface Shape extends Drawable, Sized { public function area(); }
trait Loud { public function shout() { return 1; } }
`)
	shape := classByName(t, res, "Shape")
	assert.Equal(t, "interface", shape.Type)
	assert.Equal(t, "Drawable", shape.Parent)
	assert.Equal(t, []string{"Sized"}, shape.Interfaces)

	area := routineByName(t, res.Blocks, "area")
	assert.Equal(t, MethodBlock, area.Kind)
	assert.Equal(t, area.Begin, area.End, "bodiless method is a zero-width block")
	assert.Equal(t, "Shape", area.Routine.Class)

	loud := classByName(t, res, "Loud")
	assert.Equal(t, "trait", loud.Type)
}

func TestParse_AnonymousClass(t *testing.T) {
	t.Parallel()
	res, _ := parse(t, `<?php $o = new class(1) extends Base { public function run() {} };`)
	require.Len(t, res.Classes(), 1)
	anon := res.Classes()[0].Class
	assert.Equal(t, "", anon.Name)
	assert.Equal(t, "Base", anon.Parent)
	assert.Equal(t, MethodBlock, routineByName(t, res.Blocks, "run").Kind)
}

// =============================================================================
// Routines
// =============================================================================

func TestParse_MethodModifiers(t *testing.T) {
	t.Parallel()
	res, _ := parse(t, animalSource)

	speak := routineByName(t, res.Methods(), "speak")
	assert.Equal(t, "public", speak.Routine.Visibility)
	assert.False(t, speak.Routine.Static)

	kind := routineByName(t, res.Methods(), "kind")
	assert.Equal(t, "protected", kind.Routine.Visibility)
	assert.True(t, kind.Routine.Abstract)
	assert.Equal(t, kind.Begin, kind.End)

	create := routineByName(t, res.Methods(), "create")
	assert.Equal(t, []string{"final", "public", "static"}, create.Routine.Modifiers)
	assert.True(t, create.Routine.Static)
	assert.True(t, create.Routine.Final)
	assert.Equal(t, "Animal", create.Routine.Class)
	assert.Contains(t, create.Routine.DocComment, "@return Dog")
}

func TestParse_Arguments(t *testing.T) {
	t.Parallel()
	res, _ := parse(t, animalSource)
	create := routineByName(t, res.Methods(), "create")

	require.Len(t, create.Routine.Args, 3)
	assert.Equal(t, Argument{TypeHint: "U", Name: "$owner"}, create.Routine.Args[0])
	assert.Equal(t, Argument{Name: "$name", Default: `"rex"`, HasDefault: true}, create.Routine.Args[1])
	assert.Equal(t, Argument{TypeHint: "array", Name: "$tags", Default: "array(1,2)", HasDefault: true}, create.Routine.Args[2])
}

func TestParse_FunctionsAndClosures(t *testing.T) {
	t.Parallel()
	res, _ := parse(t, animalSource)

	helper := routineByName(t, res.Functions(), "helper")
	assert.Equal(t, FunctionBlock, helper.Kind)
	assert.Equal(t, "?Dog", helper.Routine.ReturnType)
	assert.Equal(t, []Argument{{TypeHint: "int", Name: "$n"}}, helper.Routine.Args)

	var closures int
	for _, b := range res.Functions() {
		if b.Routine.Name == "" {
			closures++
			assert.Equal(t, []Argument{{Name: "$a"}}, b.Routine.Args)
		}
	}
	assert.Equal(t, 1, closures)
}

func TestParse_MethodNestingInvariant(t *testing.T) {
	t.Parallel()
	res, _ := parse(t, animalSource)
	for _, m := range res.Methods() {
		cls := EnclosingBlock(res.Blocks, m.Begin, ClassBlock)
		require.NotNil(t, cls)
		assert.LessOrEqual(t, cls.Begin, m.Begin)
		assert.GreaterOrEqual(t, cls.End, m.End)
		assert.Equal(t, cls.Class.Name, m.Routine.Class)
	}
}

// =============================================================================
// Uses
// =============================================================================

func TestParse_UsesAttachedToInnermostBlock(t *testing.T) {
	t.Parallel()
	res, _ := parse(t, animalSource)

	var dogSpeak *Block
	for _, b := range res.Methods() {
		if b.Routine.Name == "speak" && b.Routine.Class == "Dog" {
			dogSpeak = b
		}
	}
	require.NotNil(t, dogSpeak)

	got := map[string]UseKind{}
	for _, u := range dogSpeak.Uses {
		got[u.Name] = u.Kind
	}
	assert.Equal(t, UseClass, got["Dog"])
	assert.Equal(t, UseMethod, got["speak"])
	assert.Equal(t, UseMethod, got["kind"])
	assert.NotContains(t, got, "true")
}

func TestParse_SignatureTypesAttachToRoutine(t *testing.T) {
	t.Parallel()
	res, _ := parse(t, "<?php\nclass C\n{\n    public function m(Foo $f): Bar\n    {\n    }\n}\n")

	m := routineByName(t, res.Methods(), "m")
	var names []string
	for _, u := range m.Uses {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"Foo", "Bar"}, names)
}

func TestParse_UseKinds(t *testing.T) {
	t.Parallel()
	res, _ := parse(t, `<?php
function run(Logger $l) {
    $l->level;
    strlen("x");
    Config::load();
    echo PHP_EOL;
    if ($l instanceof Handler) {}
}`)
	got := map[string]UseKind{}
	for _, u := range res.Uses {
		got[u.Name] = u.Kind
	}
	assert.Equal(t, UseClass, got["Logger"])
	assert.Equal(t, UseMember, got["level"])
	assert.Equal(t, UseFunction, got["strlen"])
	assert.Equal(t, UseClass, got["Config"])
	assert.Equal(t, UseMethod, got["load"])
	assert.Equal(t, UseConstant, got["PHP_EOL"])
	assert.Equal(t, UseClass, got["Handler"])
	assert.NotContains(t, got, "run", "declared names are not uses")
}

// =============================================================================
// Errors & traversal
// =============================================================================

func TestParse_UnmatchedClosingBrace(t *testing.T) {
	t.Parallel()
	tokens, comments, err := lexer.Tokenize("<?php\nfunction f() {}\n}")
	require.NoError(t, err)
	_, err = Parse(tokens, comments)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Line)
	assert.Equal(t, 1, perr.Col)
}

func TestParse_UnclosedBlockRunsToEOF(t *testing.T) {
	t.Parallel()
	res, tokens := parse(t, "<?php class A { public function f() { $x = 1;")
	require.Len(t, res.Classes(), 1)
	assert.Equal(t, len(tokens), res.Classes()[0].End)
	assert.Equal(t, MethodBlock, routineByName(t, res.Blocks, "f").Kind)
}

func TestMatchingBracket(t *testing.T) {
	t.Parallel()
	tokens, _, err := lexer.Tokenize("<?php f(a(b), [c]);")
	require.NoError(t, err)
	// tokens: <?php f ( a ( b ) , [ c ] ) ;
	assert.Equal(t, 11, MatchingBracket(tokens, 2))
	assert.Equal(t, 2, MatchingBracket(tokens, 11))
	assert.Equal(t, 6, MatchingBracket(tokens, 4))
	assert.Equal(t, 10, MatchingBracket(tokens, 8))
	assert.Equal(t, -1, MatchingBracket(tokens, 1))
}

func TestLeadingComment(t *testing.T) {
	t.Parallel()
	tokens, comments, err := lexer.Tokenize("<?php /** a */ // b\nfunction f() {} $x;")
	require.NoError(t, err)
	c := LeadingComment(comments, 1)
	require.NotNil(t, c)
	assert.Equal(t, "// b", c.Text)
	assert.Nil(t, LeadingComment(comments, len(tokens)-1))
}

func TestEnclosingBlock(t *testing.T) {
	t.Parallel()
	res, tokens := parse(t, "<?php class A { function m() { if (1) { $x; } } }")
	var x int
	for i, tok := range tokens {
		if tok.Text == "$x" {
			x = i
		}
	}
	assert.Equal(t, Plain, EnclosingBlock(res.Blocks, x).Kind)
	assert.Equal(t, MethodBlock, EnclosingBlock(res.Blocks, x, MethodBlock, FunctionBlock).Kind)
	assert.Equal(t, "A", EnclosingBlock(res.Blocks, x, ClassBlock).Class.Name)
	assert.Nil(t, EnclosingBlock(res.Blocks, 0))
}
