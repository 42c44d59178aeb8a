package phpindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/phpindex/internal/config"
	"github.com/jward/phpindex/internal/parser"
	"github.com/jward/phpindex/internal/pathrules"
	"github.com/jward/phpindex/internal/store"
)

// recorder collects callback invocations.
type recorder struct {
	mu       sync.Mutex
	paths    []string
	totals   []int
	errs     []error
	finished int
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		Progress: func(done, total int, path string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.paths = append(r.paths, path)
			r.totals = append(r.totals, total)
		},
		Error: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
		Finished: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.finished++
		},
	}
}

func storedPaths(t *testing.T, s store.Storage) []string {
	t.Helper()
	files, err := s.AllFiles(context.Background())
	require.NoError(t, err)
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "scanning", Scanning.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestNew_DefaultsAndState(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, Idle, e.State())
	require.NotNil(t, e.Rules())
	require.NotNil(t, e.Query())
	require.NotNil(t, e.Completer())
}

func TestNew_LoadsRulesFile(t *testing.T) {
	dir := t.TempDir()
	rulesFile := filepath.Join(dir, "rules.csv")
	require.NoError(t, pathrules.New(pathrules.Rule{Path: "vendor", Exclude: true}).Save(rulesFile))

	cfg := config.Defaults(dir)
	cfg.RulesFile = rulesFile
	e, err := New(store.NewDummy(), cfg)
	require.NoError(t, err)
	assert.False(t, e.Rules().Included("vendor/lib.php"))
}

func TestNew_BadBuiltinsManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "builtins.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classes: [{doc: nameless}]\n"), 0o644))
	cfg := config.Defaults("")
	cfg.Builtins = path
	_, err := New(store.NewDummy(), cfg)
	require.Error(t, err)
}

func TestBuild_IndexesTree(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	root := writeZoo(t)
	rec := &recorder{}

	require.NoError(t, e.Build(ctx, root, rec.callbacks()))
	assert.Equal(t, Succeeded, e.State())
	assert.Equal(t, 1, rec.finished)
	assert.Empty(t, rec.errs)
	require.Len(t, rec.paths, len(zoo))
	for _, total := range rec.totals {
		assert.Equal(t, len(zoo), total)
	}

	assert.ElementsMatch(t, []string{
		filepath.Join(root, "main.php"),
		filepath.Join(root, "src", "Animal.php"),
		filepath.Join(root, "src", "Dog.php"),
		filepath.Join(root, "src", "Pet.php"),
		filepath.Join(root, "src", "Wags.php"),
		filepath.Join(root, "src", "Toys", "Bone.php"),
	}, storedPaths(t, e.Storage()))

	dog, err := e.Storage().GetClass(ctx, "App", "Dog")
	require.NoError(t, err)
	require.NotNil(t, dog)
	assert.Equal(t, `App\Animal`, dog.Parent)
	assert.Equal(t, []string{`App\Pet`}, dog.Interfaces)
	assert.Equal(t, []string{`App\Wags`}, dog.Traits)

	fetch, err := e.Storage().GetMethod(ctx, "App", "Dog", "fetch")
	require.NoError(t, err)
	require.NotNil(t, fetch)
	assert.Equal(t, `App\Toys\Bone`, fetch.ReturnType)
}

func TestBuild_SeedsBuiltins(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	buildZoo(t, e)

	exc, err := e.Storage().GetClass(ctx, "", "Exception")
	require.NoError(t, err)
	require.NotNil(t, exc)
	assert.Equal(t, store.BuiltinPath, exc.File)

	fn, err := e.Storage().GetFunction(ctx, "", "strlen")
	require.NoError(t, err)
	require.NotNil(t, fn)

	assert.NotContains(t, storedPaths(t, e.Storage()), store.BuiltinPath)
}

func TestBuild_Idempotent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	root := buildZoo(t, e)

	first, err := e.Storage().AllClassNames(ctx)
	require.NoError(t, err)
	require.NoError(t, e.Build(ctx, root, Callbacks{}))
	second, err := e.Storage().AllClassNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	methods, err := e.Storage().ClassMethods(ctx, "App", "Dog")
	require.NoError(t, err)
	assert.Len(t, methods, 2)
}

func TestBuild_SkipsNonSourceAndSkipDirs(t *testing.T) {
	e := newTestEngine(t)
	root := t.TempDir()
	keep := writePHP(t, root, "lib/Keep.php", "<?php class Keep {}\n")
	writePHP(t, root, "README.txt", "class NotPHP {}\n")
	writePHP(t, root, "node_modules/pkg/Skip.php", "<?php class SkipA {}\n")
	writePHP(t, root, ".git/hooks/Skip.php", "<?php class SkipB {}\n")

	require.NoError(t, e.Build(context.Background(), root, Callbacks{}))
	assert.Equal(t, []string{keep}, storedPaths(t, e.Storage()))
}

func TestBuild_HonoursRules(t *testing.T) {
	rules := pathrules.New(
		pathrules.Rule{Path: "vendor", Exclude: true},
		pathrules.Rule{Path: "vendor/acme", Exclude: false},
	)
	e := newTestEngine(t, WithRules(rules))
	root := t.TempDir()
	app := writePHP(t, root, "app/App.php", "<?php class App {}\n")
	writePHP(t, root, "vendor/other/Other.php", "<?php class Other {}\n")
	acme := writePHP(t, root, "vendor/acme/Acme.php", "<?php class Acme {}\n")

	require.NoError(t, e.Build(context.Background(), root, Callbacks{}))
	assert.ElementsMatch(t, []string{app, acme}, storedPaths(t, e.Storage()))
}

func TestBuild_IncludeRuleBelowExcludedDirectory(t *testing.T) {
	rules := pathrules.New(
		pathrules.Rule{Path: "vendor", Exclude: true},
		pathrules.Rule{Path: "vendor/acme/lib", Exclude: false},
	)
	e := newTestEngine(t, WithRules(rules))
	root := t.TempDir()
	writePHP(t, root, "vendor/acme/Skipped.php", "<?php class Skipped {}\n")
	lib := writePHP(t, root, "vendor/acme/lib/Client.php", "<?php class Client {}\n")

	require.NoError(t, e.Build(context.Background(), root, Callbacks{}))
	assert.Equal(t, []string{lib}, storedPaths(t, e.Storage()))
	assert.True(t, e.Eligible(root, lib))
}

func TestBuild_HonoursGitignore(t *testing.T) {
	e := newTestEngine(t)
	root := t.TempDir()
	app := writePHP(t, root, "app/App.php", "<?php class App {}\n")
	writePHP(t, root, "generated/Proxy.php", "<?php class Proxy {}\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("generated\n"), 0o644))

	require.NoError(t, e.Build(context.Background(), root, Callbacks{}))
	assert.Equal(t, []string{app}, storedPaths(t, e.Storage()))
}

func TestBuild_ParseErrorSkipsFile(t *testing.T) {
	e := newTestEngine(t)
	root := t.TempDir()
	good := writePHP(t, root, "Good.php", "<?php class Good {}\n")
	bad := writePHP(t, root, "Bad.php", "<?php\n}\n")
	rec := &recorder{}

	require.NoError(t, e.Build(context.Background(), root, rec.callbacks()))
	assert.Equal(t, Succeeded, e.State())
	assert.Equal(t, 1, rec.finished)
	assert.Len(t, rec.paths, 2)
	require.Len(t, rec.errs, 1)

	var fileErr *FileError
	require.ErrorAs(t, rec.errs[0], &fileErr)
	assert.Equal(t, bad, fileErr.Path)
	var parseErr *parser.ParseError
	assert.ErrorAs(t, rec.errs[0], &parseErr)

	assert.Equal(t, []string{good}, storedPaths(t, e.Storage()))
}

// failingStorage fails to write a method named "boom".
type failingStorage struct {
	store.Storage
}

func (s failingStorage) AddMethod(ctx context.Context, m *store.Method) error {
	if m.Name == "boom" {
		return errors.New("disk full")
	}
	return s.Storage.AddMethod(ctx, m)
}

func TestBuild_StorageErrorAbortsRun(t *testing.T) {
	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	e, err := New(failingStorage{s}, config.Defaults(""))
	require.NoError(t, err)
	defer e.Close()

	root := t.TempDir()
	writePHP(t, root, "Bomb.php", "<?php class Bomb { function boom() {} }\n")
	rec := &recorder{}

	err = e.Build(context.Background(), root, rec.callbacks())
	require.Error(t, err)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "commit", storageErr.Op)
	assert.Equal(t, filepath.Join(root, "Bomb.php"), storageErr.Path)
	assert.Equal(t, Failed, e.State())
	assert.Zero(t, rec.finished)
	require.Len(t, rec.errs, 1)
	assert.Same(t, err, rec.errs[0])
}

func TestBuild_FailedRunLeavesNoOpenBatch(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	e, err := New(failingStorage{s}, config.Defaults(""))
	require.NoError(t, err)
	defer e.Close()

	root := t.TempDir()
	writePHP(t, root, "Bomb.php", "<?php class Bomb { function boom() {} }\n")
	require.Error(t, e.Build(ctx, root, Callbacks{}))

	// A later sync must not publish the failed run's writes.
	require.NoError(t, s.Sync(ctx))
	assert.Empty(t, storedPaths(t, s))
	c, err := s.GetClass(ctx, "", "Bomb")
	require.NoError(t, err)
	assert.Nil(t, c)

	// The next run opens its own batch.
	require.NoError(t, os.WriteFile(filepath.Join(root, "Bomb.php"), []byte("<?php class Bomb {}\n"), 0o644))
	require.NoError(t, e.Build(ctx, root, Callbacks{}))
	assert.Equal(t, []string{filepath.Join(root, "Bomb.php")}, storedPaths(t, s))
}

func TestUpdate_SkipsUntouchedAndTouchedUnchangedFiles(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	root := buildZoo(t, e)

	// mtime moved, content did not
	dog := filepath.Join(root, "src", "Dog.php")
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(dog, later, later))

	rec := &recorder{}
	require.NoError(t, e.Update(ctx, root, rec.callbacks()))
	assert.Empty(t, rec.paths)
	assert.Equal(t, 1, rec.finished)
	assert.Equal(t, Succeeded, e.State())

	// the new mtime is stored, so the next update skips the hash
	f, err := e.Storage().GetFile(ctx, dog)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, later.Unix(), f.Mtime)
	items, touched, err := e.changed(ctx, []string{dog}, map[string]*store.File{dog: f})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, touched)
}

func TestUpdate_ReindexesChangedFile(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	root := buildZoo(t, e)

	path := writePHP(t, root, "src/Toys/Bone.php", `<?php
namespace App\Toys;

class Bone
{
    public function bury()
    {
    }
}
`)
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	rec := &recorder{}
	require.NoError(t, e.Update(ctx, root, rec.callbacks()))
	assert.Equal(t, []string{path}, rec.paths)

	methods, err := e.Storage().ClassMethods(ctx, `App\Toys`, "Bone")
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, "bury", methods[0].Name)

	stored, err := e.Storage().GetFile(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, later.Unix(), stored.Mtime)
}

func TestUpdate_AddsAndRemovesFiles(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	root := buildZoo(t, e)

	require.NoError(t, os.Remove(filepath.Join(root, "src", "Wags.php")))
	cat := writePHP(t, root, "src/Cat.php", "<?php\nnamespace App;\n\nclass Cat extends Animal {}\n")

	rec := &recorder{}
	require.NoError(t, e.Update(ctx, root, rec.callbacks()))
	assert.Equal(t, []string{cat}, rec.paths)

	wags, err := e.Storage().GetClass(ctx, "App", "Wags")
	require.NoError(t, err)
	assert.Nil(t, wags)
	catClass, err := e.Storage().GetClass(ctx, "App", "Cat")
	require.NoError(t, err)
	require.NotNil(t, catClass)

	children, err := e.Storage().ClassChildren(ctx, "App", "Animal", false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{`App\Cat`, `App\Dog`}, children)
}

func TestUpdate_DropsNewlyExcludedFiles(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	root := buildZoo(t, e)

	e.Rules().Add("src/Toys", true)
	require.NoError(t, e.Update(ctx, root, Callbacks{}))

	assert.NotContains(t, storedPaths(t, e.Storage()), filepath.Join(root, "src", "Toys", "Bone.php"))
	bone, err := e.Storage().GetClass(ctx, `App\Toys`, "Bone")
	require.NoError(t, err)
	assert.Nil(t, bone)

	exc, err := e.Storage().GetClass(ctx, "", "Exception")
	require.NoError(t, err)
	assert.NotNil(t, exc, "built-ins survive updates")
}

func TestUpdate_KeepsFilesIndexedFromOtherRoots(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	root := buildZoo(t, e)

	other := t.TempDir()
	lib := writePHP(t, other, "Lib.php", "<?php class Lib {}\n")
	require.NoError(t, e.Update(ctx, other, Callbacks{}))
	require.NoError(t, e.Update(ctx, root, Callbacks{}))

	assert.Contains(t, storedPaths(t, e.Storage()), lib)
}

func TestUpdate_RetriesFileThatFailedToParse(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	root := t.TempDir()
	path := writePHP(t, root, "Flaky.php", "<?php\n}\n")

	rec := &recorder{}
	require.NoError(t, e.Build(ctx, root, rec.callbacks()))
	require.Len(t, rec.errs, 1)

	writePHP(t, root, "Flaky.php", "<?php class Flaky {}\n")
	rec = &recorder{}
	require.NoError(t, e.Update(ctx, root, rec.callbacks()))
	assert.Equal(t, []string{path}, rec.paths)
	assert.Empty(t, rec.errs)
}

func TestEligible(t *testing.T) {
	e := newTestEngine(t, WithRules(pathrules.New(pathrules.Rule{Path: "vendor", Exclude: true})))
	root := t.TempDir()

	tests := []struct {
		path string
		want bool
	}{
		{"src/A.php", true},
		{"src/A.PHP", true},
		{"src/notes.txt", false},
		{"vendor/B.php", false},
		{"node_modules/C.php", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Eligible(root, filepath.Join(root, filepath.FromSlash(tt.path))))
		})
	}
	assert.False(t, e.Eligible(root, "/elsewhere/D.php"))
}

func TestBuild_SerialMatchesParallel(t *testing.T) {
	ctx := context.Background()
	root := writeZoo(t)

	parallel := newTestEngine(t)
	require.NoError(t, parallel.Build(ctx, root, Callbacks{}))

	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "serial.db"))
	require.NoError(t, err)
	cfg := config.Defaults("")
	cfg.Parallel = false
	serial, err := New(s, cfg)
	require.NoError(t, err)
	defer serial.Close()
	require.NoError(t, serial.Build(ctx, root, Callbacks{}))

	for _, fqn := range []string{`App\Dog`, `App\Animal`, `App\Toys\Bone`} {
		ns, name := store.SplitName(fqn)
		a, err := parallel.Storage().ClassMethods(ctx, ns, name)
		require.NoError(t, err)
		b, err := serial.Storage().ClassMethods(ctx, ns, name)
		require.NoError(t, err)
		assert.Equal(t, a, b, fqn)
	}
}
