package phpindex

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/phpindex/internal/store"
)

// Golden test format.
type goldenFile struct {
	Definitions     []goldenDef      `json:"definitions,omitempty"`
	References      []goldenRef      `json:"references,omitempty"`
	Implementations []goldenImpl     `json:"implementations,omitempty"`
	Subclasses      []goldenSubclass `json:"subclasses,omitempty"`
	Types           []goldenType     `json:"types,omitempty"`
}

// goldenDef names a declaration: the fully qualified name for classes and
// functions, "Class::name" for class members.
type goldenDef struct {
	Name string     `json:"name"`
	Kind store.Kind `json:"kind"`
	File string     `json:"file"`
	Line int        `json:"line"`
}

type goldenRef struct {
	From goldenLoc    `json:"from"`
	To   goldenTarget `json:"to"`
}

type goldenLoc struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

type goldenTarget struct {
	Name string `json:"name"`
	File string `json:"file"`
	Line int    `json:"line"`
}

type goldenImpl struct {
	Type      string `json:"type"`
	Interface string `json:"interface"`
}

type goldenSubclass struct {
	Parent   string   `json:"parent"`
	Children []string `json:"children"`
}

type goldenType struct {
	At   goldenLoc `json:"at"`
	Want string    `json:"want"`
}

// TestGolden indexes every testdata/php/{level}/src tree and checks it
// against the level's golden.json.
func TestGolden(t *testing.T) {
	root := filepath.Join("testdata", "php")
	levels, err := os.ReadDir(root)
	if err != nil {
		t.Skip("no testdata directory found")
	}

	for _, level := range levels {
		if !level.IsDir() {
			continue
		}
		testDir := filepath.Join(root, level.Name())
		goldenPath := filepath.Join(testDir, "golden.json")
		srcDir := filepath.Join(testDir, "src")
		if _, err := os.Stat(goldenPath); err != nil {
			continue
		}
		t.Run(level.Name(), func(t *testing.T) {
			runGoldenTest(t, srcDir, goldenPath)
		})
	}
}

func runGoldenTest(t *testing.T, srcDir, goldenPath string) {
	t.Helper()
	ctx := context.Background()

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	var golden goldenFile
	require.NoError(t, json.Unmarshal(data, &golden))

	srcDir, err = filepath.Abs(srcDir)
	require.NoError(t, err)
	e := newTestEngine(t)
	rec := &recorder{}
	require.NoError(t, e.Build(ctx, srcDir, rec.callbacks()))
	require.Empty(t, rec.errs)

	if len(golden.Definitions) > 0 {
		t.Run("definitions", func(t *testing.T) {
			verifyDefinitions(t, e, golden.Definitions)
		})
	}
	if len(golden.References) > 0 {
		t.Run("references", func(t *testing.T) {
			verifyReferences(t, e, srcDir, golden.References)
		})
	}
	if len(golden.Implementations) > 0 {
		t.Run("implementations", func(t *testing.T) {
			verifyImplementations(t, e, golden.Implementations)
		})
	}
	if len(golden.Subclasses) > 0 {
		t.Run("subclasses", func(t *testing.T) {
			verifySubclasses(t, e, golden.Subclasses)
		})
	}
	if len(golden.Types) > 0 {
		t.Run("types", func(t *testing.T) {
			verifyTypes(t, e, srcDir, golden.Types)
		})
	}
}

func lookupDefinition(ctx context.Context, s store.Storage, d goldenDef) (*store.Position, error) {
	owner, member, isMember := strings.Cut(d.Name, "::")
	ns, name := store.SplitName(owner)
	var decl store.Declaration
	var err error
	switch {
	case d.Kind == store.KindClass:
		decl, err = nilDecl(s.GetClass(ctx, ns, name))
	case d.Kind == store.KindFunction:
		decl, err = nilDecl(s.GetFunction(ctx, ns, name))
	case d.Kind == store.KindConstant:
		decl, err = nilDecl(s.GetConstant(ctx, d.Name))
	case !isMember:
	case d.Kind == store.KindMethod:
		decl, err = nilDecl(s.GetMethod(ctx, ns, name, member))
	case d.Kind == store.KindMember:
		decl, err = nilDecl(s.GetMember(ctx, ns, name, member))
	case d.Kind == store.KindClassConstant:
		decl, err = nilDecl(s.GetClassConstant(ctx, ns, name, member))
	}
	if err != nil || decl == nil {
		return nil, err
	}
	return decl.Position(), nil
}

// nilDecl keeps a missing record from becoming a typed nil Declaration.
func nilDecl[D interface {
	comparable
	store.Declaration
}](d D, err error) (store.Declaration, error) {
	var zero D
	if err != nil || d == zero {
		return nil, err
	}
	return d, nil
}

func verifyDefinitions(t *testing.T, e *Engine, expected []goldenDef) {
	t.Helper()
	for _, exp := range expected {
		pos, err := lookupDefinition(context.Background(), e.Storage(), exp)
		require.NoError(t, err)
		if !assert.NotNil(t, pos, "missing definition: %+v", exp) {
			continue
		}
		assert.Equal(t, exp.File, filepath.Base(pos.File), "file of %s", exp.Name)
		assert.Equal(t, exp.Line, pos.Line, "line of %s", exp.Name)
	}
}

func verifyReferences(t *testing.T, e *Engine, srcDir string, expected []goldenRef) {
	t.Helper()
	ctx := context.Background()
	q := e.Query()
	for _, exp := range expected {
		f, err := q.Open(ctx, filepath.Join(srcDir, exp.From.File))
		require.NoError(t, err)

		d, err := q.DeclarationAt(ctx, f, exp.From.Line, exp.From.Col)
		require.NoError(t, err)
		assert.Equal(t, exp.To.Name, d.Name, "declaration at %s:%d:%d", exp.From.File, exp.From.Line, exp.From.Col)

		pos, err := q.DeclaredPositionOf(ctx, f, d)
		require.NoError(t, err)
		if !assert.NotNil(t, pos, "reference from %s:%d:%d should resolve to %s in %s:%d",
			exp.From.File, exp.From.Line, exp.From.Col, exp.To.Name, exp.To.File, exp.To.Line) {
			continue
		}
		assert.Equal(t, exp.To.File, filepath.Base(pos.File))
		assert.Equal(t, exp.To.Line, pos.Line)
	}
}

func verifyImplementations(t *testing.T, e *Engine, expected []goldenImpl) {
	t.Helper()
	for _, exp := range expected {
		ns, name := store.SplitName(exp.Interface)
		children, err := e.Storage().ClassChildren(context.Background(), ns, name, true)
		require.NoError(t, err)
		assert.Contains(t, children, exp.Type, "missing implementation: %s implements %s", exp.Type, exp.Interface)
	}
}

func verifySubclasses(t *testing.T, e *Engine, expected []goldenSubclass) {
	t.Helper()
	for _, exp := range expected {
		got, err := e.Query().Subclasses(context.Background(), exp.Parent, false)
		require.NoError(t, err)
		assert.ElementsMatch(t, exp.Children, got, "subclasses of %s", exp.Parent)
	}
}

func verifyTypes(t *testing.T, e *Engine, srcDir string, expected []goldenType) {
	t.Helper()
	ctx := context.Background()
	q := e.Query()
	for _, exp := range expected {
		f, err := q.Open(ctx, filepath.Join(srcDir, exp.At.File))
		require.NoError(t, err)
		got, err := q.TypeAt(ctx, f, exp.At.Line, exp.At.Col)
		require.NoError(t, err)
		assert.Equal(t, exp.Want, got, "type at %s:%d:%d", exp.At.File, exp.At.Line, exp.At.Col)
	}
}
