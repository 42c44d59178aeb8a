package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/phpindex/internal/logging"
	"github.com/jward/phpindex/internal/store"
	"github.com/jward/phpindex/internal/store/storetest"
)

func newTestStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	opts = append([]store.Option{store.WithLogger(logging.Discard())}, opts...)
	s, err := store.NewStore(dbPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// =============================================================================
// Contract
// =============================================================================

func TestSQLite_Contract(t *testing.T) {
	t.Parallel()
	storetest.Run(t, func(t *testing.T) store.Storage { return newTestStore(t) })
}

func TestSQLitePure_Contract(t *testing.T) {
	t.Parallel()
	storetest.Run(t, func(t *testing.T) store.Storage {
		s, err := store.Open(store.DriverSQLitePure, filepath.Join(t.TempDir(), "pure.db"),
			store.WithLogger(logging.Discard()))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

// TestPostgres_Contract runs against the database named by
// PHPINDEX_TEST_POSTGRES_DSN. Subtests share that database and start from
// an emptied schema.
func TestPostgres_Contract(t *testing.T) {
	dsn := os.Getenv("PHPINDEX_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PHPINDEX_TEST_POSTGRES_DSN not set")
	}
	storetest.Run(t, func(t *testing.T) store.Storage {
		s, err := store.Open(store.DriverPostgres, dsn, store.WithLogger(logging.Discard()))
		require.NoError(t, err)
		require.NoError(t, s.Empty(context.Background()))
		t.Cleanup(func() { s.Close() })
		return s
	})
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	expectedTables := []string{
		"files", "classes", "class_interfaces", "class_traits", "class_constants",
		"methods", "members", "functions", "constants", "uses",
	}
	for _, table := range expectedTables {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}

	var idx string
	err := s.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND tbl_name='classes' AND name='idx_classes_namespace_name'",
	).Scan(&idx)
	require.NoError(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestOpen_RecreatesMissingTables(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "partial.db")

	s, err := store.NewStore(dbPath, store.WithLogger(logging.Discard()))
	require.NoError(t, err)
	require.NoError(t, s.AddFile(ctx, &store.File{Path: "/keep.php", Mtime: 1, Hash: "h"}))
	_, err = s.DB().Exec("DROP TABLE uses")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = store.NewStore(dbPath, store.WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer s.Close()

	uses, err := s.UsesByFile(ctx, "/keep.php")
	require.NoError(t, err)
	assert.Empty(t, uses)
	f, err := s.GetFile(ctx, "/keep.php")
	require.NoError(t, err)
	assert.NotNil(t, f, "existing tables are left alone")
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := store.Open("mysql", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

// =============================================================================
// Batching
// =============================================================================

func TestBatch_ReadersSeeCommittedStateOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.BeginBatch(ctx))
	require.NoError(t, s.AddFile(ctx, &store.File{Path: "/a.php", Mtime: 1, Hash: "h"}))

	f, err := s.GetFile(ctx, "/a.php")
	require.NoError(t, err)
	assert.Nil(t, f, "uncommitted file must not be visible")

	require.NoError(t, s.Sync(ctx))
	f, err = s.GetFile(ctx, "/a.php")
	require.NoError(t, err)
	assert.NotNil(t, f)
}

func TestBatch_CommitsOnFileBoundaryAfterBatchSize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, store.WithBatchSize(2))

	require.NoError(t, s.BeginBatch(ctx))
	require.NoError(t, s.AddFile(ctx, &store.File{Path: "/a.php", Mtime: 1, Hash: "h"}))
	require.NoError(t, s.AddClass(ctx, &store.Class{File: "/a.php", Name: "A", Type: "class"}))
	require.NoError(t, s.AddClass(ctx, &store.Class{File: "/a.php", Name: "B", Type: "class"}))

	// Three inserts pending, but no file boundary yet.
	c, err := s.GetClass(ctx, "", "A")
	require.NoError(t, err)
	assert.Nil(t, c)

	// The next file record flushes the previous file as a whole.
	require.NoError(t, s.AddFile(ctx, &store.File{Path: "/b.php", Mtime: 1, Hash: "h"}))
	c, err = s.GetClass(ctx, "", "B")
	require.NoError(t, err)
	assert.NotNil(t, c)
	f, err := s.GetFile(ctx, "/b.php")
	require.NoError(t, err)
	assert.Nil(t, f)

	require.NoError(t, s.Sync(ctx))
	f, err = s.GetFile(ctx, "/b.php")
	require.NoError(t, err)
	assert.NotNil(t, f)
}

// peekingStore checks committed state while a batch is being written.
type peekingStore struct {
	*store.Store
	peek func()
}

func (p *peekingStore) AddClass(ctx context.Context, c *store.Class) error {
	if p.peek != nil {
		p.peek()
	}
	return p.Store.AddClass(ctx, c)
}

func fileBatch(path string, classes ...string) *store.Batch {
	b := store.NewBatch()
	ctx := context.Background()
	_ = b.AddFile(ctx, &store.File{Path: path, Mtime: 1, Hash: "h"})
	for _, name := range classes {
		_ = b.AddClass(ctx, &store.Class{File: path, Namespace: "App", Name: name, Type: "class"})
	}
	return b
}

func TestBatch_ReplacedFileNeverSeenEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, store.WithBatchSize(2))

	require.NoError(t, s.BeginBatch(ctx))
	require.NoError(t, fileBatch("/a.php", "A").Commit(ctx, s))
	require.NoError(t, s.Sync(ctx))

	require.NoError(t, s.BeginBatch(ctx))
	require.NoError(t, fileBatch("/b.php", "B", "C").Commit(ctx, s))

	// Three inserts are pending, so replacing a.php starts with a commit.
	var seen []*store.Class
	ps := &peekingStore{Store: s, peek: func() {
		c, err := s.GetClass(ctx, "App", "A")
		require.NoError(t, err)
		seen = append(seen, c)
	}}
	require.NoError(t, fileBatch("/a.php", "A").Commit(ctx, ps))

	require.Len(t, seen, 1)
	assert.NotNil(t, seen[0], "a.php must stay visible until its replacement commits")
	b, err := s.GetClass(ctx, "App", "B")
	require.NoError(t, err)
	assert.NotNil(t, b, "b.php committed on the file boundary")

	require.NoError(t, s.Sync(ctx))
	a, err := s.GetClass(ctx, "App", "A")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "/a.php", a.File)
}

func TestBatch_CommitWithoutFileRecord(t *testing.T) {
	t.Parallel()
	b := store.NewBatch()
	require.NoError(t, b.AddClass(context.Background(), &store.Class{Name: "A"}))
	err := b.Commit(context.Background(), store.NewDummy())
	require.Error(t, err)
	assert.Equal(t, 1, b.Len())
}

func TestSync_WithoutBatchIsNoop(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Sync(context.Background()))
}

// =============================================================================
// Search
// =============================================================================

func TestSearch_EscapesLikeMetacharacters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.AddFile(ctx, &store.File{Path: "/src/my_file.php", Mtime: 1, Hash: "h"}))
	require.NoError(t, s.AddFile(ctx, &store.File{Path: "/src/myXfile.php", Mtime: 1, Hash: "h"}))

	hits, err := s.Search(ctx, []string{"my_f"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "/src/my_file.php", hits[0].Title)

	hits, err = s.Search(ctx, []string{"100%"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_ShortTermRejectsQuery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	storetest.Seed(t, s)

	hits, err := s.Search(ctx, []string{"speak", "do"})
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)

	hits, err = s.Search(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
