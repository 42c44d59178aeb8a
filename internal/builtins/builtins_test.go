package builtins_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/phpindex/internal/builtins"
	"github.com/jward/phpindex/internal/graphstore"
	"github.com/jward/phpindex/internal/logging"
	"github.com/jward/phpindex/internal/store"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	m, err := builtins.Default()
	require.NoError(t, err)
	assert.NotEmpty(t, m.Functions)
	assert.NotEmpty(t, m.Classes)
	assert.NotEmpty(t, m.Constants)

	names := map[string]bool{}
	for _, c := range m.Classes {
		assert.False(t, names[c.Name], "duplicate class %s", c.Name)
		names[c.Name] = true
		if c.Type != "" {
			assert.Contains(t, []string{"class", "interface", "trait"}, c.Type, c.Name)
		}
	}
	for _, c := range m.Classes {
		if c.Parent != "" {
			assert.True(t, names[c.Parent], "%s extends unknown %s", c.Name, c.Parent)
		}
		for _, i := range c.Interfaces {
			assert.True(t, names[i], "%s implements unknown %s", c.Name, i)
		}
	}
}

func TestSeed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, err := builtins.Parse([]byte(`
functions:
  - name: strlen
    doc: Returns the length of the given string.
    args: [{name: $string, type: string}]
classes:
  - name: Exception
    interfaces: [Throwable]
    methods:
      - name: __construct
        args: [{name: $message, type: string, default: '""'}]
      - {name: getMessage, final: true}
    members:
      - {name: $code, visibility: protected}
    constants:
      - {name: VERSION}
  - name: Throwable
    type: interface
constants:
  - {name: PHP_EOL}
`))
	require.NoError(t, err)
	assert.Equal(t, 8, m.Len())

	b := store.NewBatch()
	require.NoError(t, m.Seed(ctx, b))
	assert.Nil(t, b.File, "built-ins have no file record")
	assert.Equal(t, m.Len(), b.Len())

	require.Len(t, b.Functions, 1)
	fn := b.Functions[0]
	assert.Equal(t, store.BuiltinPath, fn.File)
	assert.Equal(t, "", fn.Namespace)
	assert.Equal(t, 0, fn.Line)
	assert.Equal(t, 0, fn.Col)
	assert.Equal(t, []store.Argument{{TypeHint: "string", Name: "$string"}}, fn.Args)

	require.Len(t, b.Classes, 2)
	assert.Equal(t, "class", b.Classes[0].Type)
	assert.Equal(t, "interface", b.Classes[1].Type)
	assert.Equal(t, []string{"Throwable"}, b.Classes[0].Interfaces)

	require.Len(t, b.Methods, 2)
	ctor := b.Methods[0]
	assert.Equal(t, "Exception", ctor.Class)
	assert.Equal(t, "public", ctor.Visibility)
	assert.Equal(t, []store.Argument{{TypeHint: "string", Name: "$message", Default: `""`, HasDefault: true}}, ctor.Args)
	assert.True(t, b.Methods[1].Final)

	require.Len(t, b.Members, 1)
	assert.Equal(t, "protected", b.Members[0].Visibility)
	require.Len(t, b.ClassConstants, 1)
	assert.Equal(t, "VERSION", b.ClassConstants[0].Name)
	require.Len(t, b.Constants, 1)
	assert.Equal(t, "PHP_EOL", b.Constants[0].Name)
}

func TestSeed_Resolvable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, err := graphstore.Open("", graphstore.WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer s.Close()

	m, err := builtins.Default()
	require.NoError(t, err)
	require.NoError(t, m.Seed(ctx, s))

	pos, err := s.ClassPosition(ctx, "", "Exception")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, store.Position{File: store.BuiltinPath}, *pos)

	parent, err := s.ClassParent(ctx, "", "RuntimeException")
	require.NoError(t, err)
	assert.Equal(t, "Exception", parent)

	ret, err := s.GetMethod(ctx, "", "PDO", "prepare")
	require.NoError(t, err)
	require.NotNil(t, ret)
	assert.Equal(t, "PDOStatement", ret.ReturnType)

	files, err := s.AllFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	file := filepath.Join(dir, "builtins.yaml")
	require.NoError(t, os.WriteFile(file, []byte("constants:\n  - {name: MY_EXT_VERSION}\n"), 0o644))

	m, err := builtins.Load(file)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	_, err = builtins.Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = builtins.Parse([]byte("classes:\n  - {doc: nameless}\n"))
	assert.ErrorContains(t, err, "has no name")
}
