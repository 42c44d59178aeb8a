// Package storetest holds the behavioral checks every store.Storage
// back-end must pass.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/phpindex/internal/store"
)

// Factory returns an empty storage for one subtest.
type Factory func(t *testing.T) store.Storage

// Seed writes a two-file fixture through a batch:
//
//	/src/Animal.php  App\Animal (abstract, implements App\Named, uses App\Loud)
//	/src/Dog.php     App\Dog extends App\Animal, function App\helper, const APP_VERSION
func Seed(t *testing.T, s store.Storage) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.BeginBatch(ctx))

	animal := store.NewBatch()
	w := []func() error{
		func() error {
			return animal.AddFile(ctx, &store.File{Path: "/src/Animal.php", Namespace: "App", Mtime: 100, Hash: "aaa"})
		},
		func() error {
			return animal.AddClass(ctx, &store.Class{
				File: "/src/Animal.php", Namespace: "App", Name: "Animal", Type: "class",
				Interfaces: []string{`App\Named`, "Countable"}, Traits: []string{`App\Loud`},
				Abstract: true, DocComment: "/** An animal. */", Line: 3, Col: 16,
			})
		},
		func() error {
			return animal.AddClassConstant(ctx, &store.ClassConstant{
				File: "/src/Animal.php", Namespace: "App", Class: "Animal", Name: "LEGS", Line: 4, Col: 11,
			})
		},
		func() error {
			return animal.AddMethod(ctx, &store.Method{
				File: "/src/Animal.php", Namespace: "App", Class: "Animal", Name: "speak",
				Visibility: "public", Line: 6, Col: 21,
			})
		},
		func() error {
			return animal.AddMember(ctx, &store.Member{
				File: "/src/Animal.php", Namespace: "App", Class: "Animal", Name: "$owner",
				Visibility: "protected", TypeHint: `App\Models\User`, Line: 5, Col: 15,
			})
		},
		func() error {
			return animal.AddUse(ctx, &store.Use{
				File: "/src/Animal.php", Line: 3, Col: 40, Name: `App\Named`, Kind: store.KindClass, Class: `App\Animal`,
			})
		},
	}
	for _, fn := range w {
		require.NoError(t, fn())
	}
	require.NoError(t, animal.Commit(ctx, s))

	dog := store.NewBatch()
	w = []func() error{
		func() error {
			return dog.AddFile(ctx, &store.File{Path: "/src/Dog.php", Namespace: "App", Mtime: 200, Hash: "bbb"})
		},
		func() error {
			return dog.AddClass(ctx, &store.Class{
				File: "/src/Dog.php", Namespace: "App", Name: "Dog", Type: "class", Parent: `App\Animal`,
				Final: true, Line: 3, Col: 13,
			})
		},
		func() error {
			return dog.AddMethod(ctx, &store.Method{
				File: "/src/Dog.php", Namespace: "App", Class: "Dog", Name: "speak", Visibility: "public",
				Args: []store.Argument{
					{TypeHint: "int", Name: "$times", Default: "1", HasDefault: true},
					{Name: "$loud"},
				},
				ReturnType: `App\Dog`, Line: 4, Col: 21,
			})
		},
		func() error {
			return dog.AddMethod(ctx, &store.Method{
				File: "/src/Dog.php", Namespace: "App", Class: "Dog", Name: "create", Visibility: "public",
				Static: true, Line: 8, Col: 28,
			})
		},
		func() error {
			return dog.AddFunction(ctx, &store.Function{
				File: "/src/Dog.php", Namespace: "App", Name: "helper",
				Args: []store.Argument{{TypeHint: "int", Name: "$n"}}, ReturnType: `App\Dog`, Line: 12, Col: 10,
			})
		},
		func() error {
			return dog.AddConstant(ctx, &store.Constant{File: "/src/Dog.php", Name: "APP_VERSION", Line: 14, Col: 8})
		},
		func() error {
			return dog.AddUse(ctx, &store.Use{
				File: "/src/Dog.php", Line: 5, Col: 14, Name: "speak", Kind: store.KindMethod,
				Class: `App\Dog`, Routine: "speak",
			})
		},
		func() error {
			return dog.AddUse(ctx, &store.Use{
				File: "/src/Dog.php", Line: 3, Col: 25, Name: `App\Animal`, Kind: store.KindClass, Class: `App\Dog`,
			})
		},
	}
	for _, fn := range w {
		require.NoError(t, fn())
	}
	require.NoError(t, dog.Commit(ctx, s))

	require.NoError(t, s.Sync(ctx))
}

// Run exercises the full contract against storages built by newStorage.
func Run(t *testing.T, newStorage Factory) {
	ctx := context.Background()

	t.Run("Files", func(t *testing.T) {
		s := newStorage(t)
		Seed(t, s)

		f, err := s.GetFile(ctx, "/src/Dog.php")
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, "App", f.Namespace)
		assert.Equal(t, int64(200), f.Mtime)
		assert.Equal(t, "bbb", f.Hash)

		missing, err := s.GetFile(ctx, "/src/Cat.php")
		require.NoError(t, err)
		assert.Nil(t, missing)

		all, err := s.AllFiles(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "/src/Animal.php", all[0].Path)
		assert.Equal(t, "/src/Dog.php", all[1].Path)
	})

	t.Run("Classes", func(t *testing.T) {
		s := newStorage(t)
		Seed(t, s)

		c, err := s.GetClass(ctx, "App", "Animal")
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, "class", c.Type)
		assert.True(t, c.Abstract)
		assert.False(t, c.Final)
		assert.Equal(t, []string{`App\Named`, "Countable"}, c.Interfaces)
		assert.Equal(t, []string{`App\Loud`}, c.Traits)
		assert.Equal(t, "/** An animal. */", c.DocComment)

		missing, err := s.GetClass(ctx, "Other", "Animal")
		require.NoError(t, err)
		assert.Nil(t, missing)

		pos, err := s.ClassPosition(ctx, "App", "Dog")
		require.NoError(t, err)
		assert.Equal(t, &store.Position{File: "/src/Dog.php", Line: 3, Col: 13}, pos)

		pos, err = s.ClassPosition(ctx, "App", "Cat")
		require.NoError(t, err)
		assert.Nil(t, pos)

		names, err := s.AllClassNames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{`App\Animal`, `App\Dog`}, names)
	})

	t.Run("Hierarchy", func(t *testing.T) {
		s := newStorage(t)
		Seed(t, s)

		parent, err := s.ClassParent(ctx, "App", "Dog")
		require.NoError(t, err)
		assert.Equal(t, `App\Animal`, parent)

		parent, err = s.ClassParent(ctx, "App", "Animal")
		require.NoError(t, err)
		assert.Empty(t, parent)

		children, err := s.ClassChildren(ctx, "App", "Animal", false)
		require.NoError(t, err)
		assert.Equal(t, []string{`App\Dog`}, children)

		implementors, err := s.ClassChildren(ctx, "App", "Named", false)
		require.NoError(t, err)
		assert.Empty(t, implementors)

		implementors, err = s.ClassChildren(ctx, "App", "Named", true)
		require.NoError(t, err)
		assert.Equal(t, []string{`App\Animal`}, implementors)

		ifaces, err := s.ClassInterfaces(ctx, "App", "Animal")
		require.NoError(t, err)
		assert.Equal(t, []string{`App\Named`, "Countable"}, ifaces)

		traits, err := s.ClassTraits(ctx, "App", "Animal")
		require.NoError(t, err)
		assert.Equal(t, []string{`App\Loud`}, traits)

		none, err := s.ClassTraits(ctx, "App", "Dog")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("ClassMembers", func(t *testing.T) {
		s := newStorage(t)
		Seed(t, s)

		m, err := s.GetMethod(ctx, "App", "Dog", "speak")
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, `App\Dog`, m.ReturnType)
		require.Len(t, m.Args, 2)
		assert.Equal(t, store.Argument{TypeHint: "int", Name: "$times", Default: "1", HasDefault: true}, m.Args[0])
		assert.Equal(t, "$loud", m.Args[1].Name)

		methods, err := s.ClassMethods(ctx, "App", "Dog")
		require.NoError(t, err)
		require.Len(t, methods, 2)
		assert.Equal(t, "speak", methods[0].Name)
		assert.Equal(t, "create", methods[1].Name)
		assert.True(t, methods[1].Static)

		pos, err := s.MethodPosition(ctx, "App", "Animal", "speak")
		require.NoError(t, err)
		assert.Equal(t, &store.Position{File: "/src/Animal.php", Line: 6, Col: 21}, pos)

		pos, err = s.MethodPosition(ctx, "App", "Animal", "create")
		require.NoError(t, err)
		assert.Nil(t, pos)

		member, err := s.GetMember(ctx, "App", "Animal", "$owner")
		require.NoError(t, err)
		require.NotNil(t, member)
		assert.Equal(t, `App\Models\User`, member.TypeHint)
		assert.Equal(t, "protected", member.Visibility)

		members, err := s.ClassMembers(ctx, "App", "Animal")
		require.NoError(t, err)
		assert.Len(t, members, 1)

		pos, err = s.MemberPosition(ctx, "App", "Animal", "$owner")
		require.NoError(t, err)
		assert.Equal(t, 5, pos.Line)

		cc, err := s.GetClassConstant(ctx, "App", "Animal", "LEGS")
		require.NoError(t, err)
		require.NotNil(t, cc)
		consts, err := s.ClassConstants(ctx, "App", "Animal")
		require.NoError(t, err)
		assert.Len(t, consts, 1)

		pos, err = s.ClassConstantPosition(ctx, "App", "Animal", "LEGS")
		require.NoError(t, err)
		assert.Equal(t, &store.Position{File: "/src/Animal.php", Line: 4, Col: 11}, pos)
	})

	t.Run("FunctionsAndConstants", func(t *testing.T) {
		s := newStorage(t)
		Seed(t, s)

		f, err := s.GetFunction(ctx, "App", "helper")
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, `App\helper`, f.FQN())
		assert.Equal(t, []store.Argument{{TypeHint: "int", Name: "$n"}}, f.Args)

		pos, err := s.FunctionPosition(ctx, "", "helper")
		require.NoError(t, err)
		assert.Nil(t, pos)

		fs, err := s.AllFunctions(ctx)
		require.NoError(t, err)
		assert.Len(t, fs, 1)

		c, err := s.GetConstant(ctx, "APP_VERSION")
		require.NoError(t, err)
		require.NotNil(t, c)
		pos, err = s.ConstantPosition(ctx, "APP_VERSION")
		require.NoError(t, err)
		assert.Equal(t, &store.Position{File: "/src/Dog.php", Line: 14, Col: 8}, pos)

		cs, err := s.AllConstants(ctx)
		require.NoError(t, err)
		assert.Len(t, cs, 1)
	})

	t.Run("Uses", func(t *testing.T) {
		s := newStorage(t)
		Seed(t, s)

		uses, err := s.UsesOf(ctx, store.KindMethod, "speak")
		require.NoError(t, err)
		require.Len(t, uses, 1)
		assert.Equal(t, &store.Use{
			File: "/src/Dog.php", Line: 5, Col: 14, Name: "speak", Kind: store.KindMethod,
			Class: `App\Dog`, Routine: "speak",
		}, uses[0])

		byFile, err := s.UsesByFile(ctx, "/src/Dog.php")
		require.NoError(t, err)
		require.Len(t, byFile, 2)
		assert.Equal(t, 3, byFile[0].Line)
		assert.Equal(t, 5, byFile[1].Line)

		none, err := s.UsesOf(ctx, store.KindFunction, "speak")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("RemoveFileCascades", func(t *testing.T) {
		s := newStorage(t)
		Seed(t, s)

		require.NoError(t, s.RemoveFile(ctx, "/src/Animal.php"))

		f, err := s.GetFile(ctx, "/src/Animal.php")
		require.NoError(t, err)
		assert.Nil(t, f)
		pos, err := s.ClassPosition(ctx, "App", "Animal")
		require.NoError(t, err)
		assert.Nil(t, pos)
		m, err := s.GetMethod(ctx, "App", "Animal", "speak")
		require.NoError(t, err)
		assert.Nil(t, m)
		member, err := s.GetMember(ctx, "App", "Animal", "$owner")
		require.NoError(t, err)
		assert.Nil(t, member)
		cc, err := s.GetClassConstant(ctx, "App", "Animal", "LEGS")
		require.NoError(t, err)
		assert.Nil(t, cc)
		implementors, err := s.ClassChildren(ctx, "App", "Named", true)
		require.NoError(t, err)
		assert.Empty(t, implementors)
		uses, err := s.UsesByFile(ctx, "/src/Animal.php")
		require.NoError(t, err)
		assert.Empty(t, uses)

		// Records of other files survive.
		dog, err := s.GetClass(ctx, "App", "Dog")
		require.NoError(t, err)
		require.NotNil(t, dog)
		assert.Equal(t, `App\Animal`, dog.Parent)
	})

	t.Run("BatchCommitReplacesFile", func(t *testing.T) {
		s := newStorage(t)
		Seed(t, s)

		b := store.NewBatch()
		require.NoError(t, b.AddFile(ctx, &store.File{Path: "/src/Dog.php", Namespace: "App", Mtime: 300, Hash: "ccc"}))
		require.NoError(t, b.AddClass(ctx, &store.Class{File: "/src/Dog.php", Namespace: "App", Name: "Puppy", Type: "class", Line: 2, Col: 7}))
		require.NoError(t, s.BeginBatch(ctx))
		require.NoError(t, b.Commit(ctx, s))
		require.NoError(t, s.Sync(ctx))

		f, err := s.GetFile(ctx, "/src/Dog.php")
		require.NoError(t, err)
		assert.Equal(t, "ccc", f.Hash)
		dog, err := s.GetClass(ctx, "App", "Dog")
		require.NoError(t, err)
		assert.Nil(t, dog)
		puppy, err := s.GetClass(ctx, "App", "Puppy")
		require.NoError(t, err)
		assert.NotNil(t, puppy)
		fs, err := s.AllFunctions(ctx)
		require.NoError(t, err)
		assert.Empty(t, fs)
	})

	t.Run("TouchFile", func(t *testing.T) {
		s := newStorage(t)
		Seed(t, s)

		require.NoError(t, s.TouchFile(ctx, "/src/Dog.php", 999))
		f, err := s.GetFile(ctx, "/src/Dog.php")
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, int64(999), f.Mtime)
		assert.Equal(t, "bbb", f.Hash)
		dog, err := s.GetClass(ctx, "App", "Dog")
		require.NoError(t, err)
		assert.NotNil(t, dog, "touching keeps the file's records")

		require.NoError(t, s.TouchFile(ctx, "/src/Cat.php", 1))
		missing, err := s.GetFile(ctx, "/src/Cat.php")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("RollbackDiscardsOpenBatch", func(t *testing.T) {
		s := newStorage(t)
		Seed(t, s)

		puppy := func() *store.Batch {
			b := store.NewBatch()
			require.NoError(t, b.AddFile(ctx, &store.File{Path: "/src/Dog.php", Namespace: "App", Mtime: 300, Hash: "ccc"}))
			require.NoError(t, b.AddClass(ctx, &store.Class{File: "/src/Dog.php", Namespace: "App", Name: "Puppy", Type: "class", Line: 2, Col: 7}))
			return b
		}
		require.NoError(t, s.BeginBatch(ctx))
		require.NoError(t, puppy().Commit(ctx, s))
		require.NoError(t, s.Rollback(ctx))
		require.NoError(t, s.Sync(ctx))

		f, err := s.GetFile(ctx, "/src/Dog.php")
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, "bbb", f.Hash)
		dog, err := s.GetClass(ctx, "App", "Dog")
		require.NoError(t, err)
		assert.NotNil(t, dog)
		p, err := s.GetClass(ctx, "App", "Puppy")
		require.NoError(t, err)
		assert.Nil(t, p)

		// A later batch starts fresh and commits.
		require.NoError(t, s.BeginBatch(ctx))
		require.NoError(t, puppy().Commit(ctx, s))
		require.NoError(t, s.Sync(ctx))
		p, err = s.GetClass(ctx, "App", "Puppy")
		require.NoError(t, err)
		assert.NotNil(t, p)

		require.NoError(t, s.Rollback(ctx), "rollback without a batch is a no-op")
	})

	t.Run("Empty", func(t *testing.T) {
		s := newStorage(t)
		Seed(t, s)

		require.NoError(t, s.Empty(ctx))

		files, err := s.AllFiles(ctx)
		require.NoError(t, err)
		assert.Empty(t, files)
		names, err := s.AllClassNames(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)

		// Still writable afterwards.
		require.NoError(t, s.AddFile(ctx, &store.File{Path: "/x.php", Mtime: 1, Hash: "h"}))
		f, err := s.GetFile(ctx, "/x.php")
		require.NoError(t, err)
		assert.NotNil(t, f)
	})

	t.Run("Search", func(t *testing.T) {
		s := newStorage(t)
		Seed(t, s)

		hits, err := s.Search(ctx, []string{"spea"})
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, `App\Dog->speak()`, hits[0].Title)
		assert.Equal(t, `App\Animal->speak()`, hits[1].Title)
		for _, h := range hits {
			assert.Equal(t, store.KindMethod, h.Kind)
		}
		assert.Equal(t, 300-len(`App\Dog->speak()`), hits[0].Score)

		// Terms are conjunctive and case-insensitive.
		hits, err = s.Search(ctx, []string{"ANIMAL", "spe"})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "/src/Animal.php", hits[0].File)

		// Classes outrank files.
		hits, err = s.Search(ctx, []string{"dog"})
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, store.KindClass, hits[0].Kind)
		assert.Equal(t, `App\Dog`, hits[0].Title)

		hits, err = s.Search(ctx, []string{"dog", "sp"})
		require.NoError(t, err)
		assert.Empty(t, hits)

		hits, err = s.Search(ctx, []string{"owner"})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, `App\Animal->$owner`, hits[0].Title)

		hits, err = s.Search(ctx, []string{"legs"})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, `App\Animal::LEGS`, hits[0].Title)

		hits, err = s.Search(ctx, []string{"helper"})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, `App\helper()`, hits[0].Title)
	})
}
