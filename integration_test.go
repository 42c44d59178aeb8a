package phpindex

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/phpindex/internal/config"
	"github.com/jward/phpindex/internal/logging"
	"github.com/jward/phpindex/internal/store"
)

// zoo is a small project shared by the root tests, keyed by path relative
// to the project root.
var zoo = map[string]string{
	"src/Animal.php": `<?php
namespace App;

abstract class Animal
{
    const LEGS = 4;
    public static $count = 0;
    protected $name;

    public function __construct($name)
    {
        $this->name = $name;
    }

    public function speak()
    {
        return "...";
    }

    public static function create($name)
    {
        return new static($name);
    }
}
`,
	"src/Dog.php": `<?php
namespace App;

use App\Toys\Bone;

class Dog extends Animal implements Pet
{
    use Wags;

    /** @var Bone */
    public $bone;

    public function speak()
    {
        return "Woof";
    }

    public function fetch(): Bone
    {
        return $this->bone;
    }
}
`,
	"src/Pet.php": `<?php
namespace App;

interface Pet
{
    public function speak();
}
`,
	"src/Wags.php": `<?php
namespace App;

trait Wags
{
    public function wag()
    {
    }
}
`,
	"src/Toys/Bone.php": `<?php
namespace App\Toys;

class Bone
{
    public function chew()
    {
    }
}
`,
	"main.php": `<?php
use App\Dog;

$dog = new Dog("rex");
$dog->speak();
$dog->fetch()->chew();
$dog->wag();
echo Dog::LEGS;
`,
}

// writePHP writes src to rel under root and returns the absolute path.
func writePHP(t testing.TB, root, rel, src string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

// writeZoo writes the zoo project into a fresh directory.
func writeZoo(t testing.TB) string {
	t.Helper()
	root := t.TempDir()
	for rel, src := range zoo {
		writePHP(t, root, rel, src)
	}
	return root
}

// posOf returns the 1-based line and column of the nth occurrence of
// needle in src.
func posOf(t testing.TB, src, needle string, nth int) (int, int) {
	t.Helper()
	off := -1
	for n, from := 0, 0; n <= nth; n++ {
		i := strings.Index(src[from:], needle)
		require.GreaterOrEqual(t, i, 0, "occurrence %d of %q not found", n, needle)
		off = from + i
		from = off + 1
	}
	return strings.Count(src[:off], "\n") + 1, off - strings.LastIndex(src[:off], "\n")
}

// newTestEngine returns an engine over a fresh SQLite index.
func newTestEngine(t testing.TB, opts ...Option) *Engine {
	t.Helper()
	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	e, err := New(s, config.Defaults(""), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

// buildZoo writes and indexes the zoo project.
func buildZoo(t testing.TB, e *Engine) string {
	t.Helper()
	root := writeZoo(t)
	require.NoError(t, e.Build(context.Background(), root, Callbacks{}))
	return root
}

// TestBackends runs the same navigation scenario against every embedded
// back-end.
func TestBackends(t *testing.T) {
	backends := []string{config.BackendSQLite, config.BackendSQLitePure, config.BackendGraph}
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			root := writeZoo(t)
			cfg, err := config.Load(root, config.WithBackend(backend))
			require.NoError(t, err)

			e, err := Open(cfg)
			require.NoError(t, err)
			defer e.Close()
			require.NoError(t, e.Build(ctx, root, Callbacks{}))

			q := e.Query()
			built, err := q.IsBuilt(ctx)
			require.NoError(t, err)
			assert.True(t, built)

			main, err := q.Open(ctx, filepath.Join(root, "main.php"))
			require.NoError(t, err)
			line, col := posOf(t, zoo["main.php"], "speak", 0)
			pos, err := q.Definition(ctx, main, line, col)
			require.NoError(t, err)
			require.NotNil(t, pos)

			wantLine, wantCol := posOf(t, zoo["src/Dog.php"], "speak", 0)
			assert.Equal(t, filepath.Join(root, "src", "Dog.php"), pos.File)
			assert.Equal(t, wantLine, pos.Line)
			assert.Equal(t, wantCol, pos.Col)

			h, err := q.ClassHierarchy(ctx, `App\Dog`)
			require.NoError(t, err)
			require.NotNil(t, h)
			assert.Equal(t, `App\Animal`, h.Parent)
		})
	}
}

func TestBackends_GraphSnapshotSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	root := writeZoo(t)
	cfg, err := config.Load(root, config.WithBackend(config.BackendGraph))
	require.NoError(t, err)

	e, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, e.Build(ctx, root, Callbacks{}))
	require.NoError(t, e.Close())

	e, err = Open(cfg)
	require.NoError(t, err)
	defer e.Close()
	c, err := e.Storage().GetClass(ctx, `App\Toys`, "Bone")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, filepath.Join(root, "src", "Toys", "Bone.php"), c.File)
}

func TestOpenStorage_Dummy(t *testing.T) {
	cfg := config.Defaults(t.TempDir())
	cfg.Backend = config.BackendDummy
	s, err := OpenStorage(cfg, logging.Discard())
	require.NoError(t, err)
	defer s.Close()

	e, err := New(s, cfg)
	require.NoError(t, err)
	root := writeZoo(t)
	require.NoError(t, e.Build(context.Background(), root, Callbacks{}))

	files, err := s.AllFiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestOpenStorage_UnknownBackend(t *testing.T) {
	cfg := config.Defaults(t.TempDir())
	cfg.Backend = "mongo"
	s, err := OpenStorage(cfg, logging.Discard())
	require.Error(t, err)
	assert.Nil(t, s)
}
