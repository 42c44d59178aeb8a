package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/jward/phpindex/internal/logging"
)

// Supported database/sql drivers.
const (
	DriverSQLite     = "sqlite3"  // mattn/go-sqlite3, cgo
	DriverSQLitePure = "sqlite"   // modernc.org/sqlite, pure Go
	DriverPostgres   = "postgres" // lib/pq
)

// DefaultBatchSize is the number of inserts after which an open batch is
// committed.
const DefaultBatchSize = 3000

// Store is the SQL back-end of the storage contract. Every statement runs
// under a mutex and materializes its rows before releasing it, so one
// Store can be written by the indexer while serving interactive reads.
type Store struct {
	db        *sql.DB
	driver    string
	batchSize int
	logger    *slog.Logger

	mu      sync.Mutex
	tx      *sql.Tx
	pending int

	Positions
}

// Option configures a Store.
type Option func(*Store)

// WithBatchSize sets the insert count between intermediate commits.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string, opts ...Option) (*Store, error) {
	return Open(DriverSQLite, dbPath, opts...)
}

// Open connects to the database and makes sure the schema exists. For the
// SQLite drivers dsn is a file path.
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	var source string
	switch driver {
	case DriverSQLite:
		source = dsn + "?_journal_mode=WAL&_busy_timeout=30000"
	case DriverSQLitePure:
		source = "file:" + dsn + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)"
	case DriverPostgres:
		source = dsn
	default:
		return nil, fmt.Errorf("open database: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{
		db:        db,
		driver:    driver,
		batchSize: DefaultBatchSize,
		logger:    logging.Default("store"),
	}
	s.Positions = Positions{s}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close rolls back any open batch and closes the connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string {
	return s.driver
}

var tableNames = []string{
	"files", "classes", "class_interfaces", "class_traits", "class_constants",
	"methods", "members", "functions", "constants", "uses",
}

// Migrate counts the index tables and recreates the missing ones when the
// count is off. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	n, err := s.tableCount(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if n == len(tableNames) {
		return nil
	}
	if n > 0 {
		s.logger.Warn("index schema incomplete, recreating missing tables", "found", n, "want", len(tableNames))
	}
	if _, err := s.exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) tableCount(ctx context.Context) (int, error) {
	q := "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN (" + placeholderList(len(tableNames)) + ")"
	if s.driver == DriverPostgres {
		q = "SELECT count(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name IN (" + placeholderList(len(tableNames)) + ")"
	}
	args := make([]any, len(tableNames))
	for i, t := range tableNames {
		args[i] = t
	}
	var n int
	err := s.queryRows(ctx, q, args, func(rows *sql.Rows) error {
		return rows.Scan(&n)
	})
	return n, err
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  path         TEXT NOT NULL PRIMARY KEY,
  namespace    TEXT NOT NULL,
  mtime        BIGINT NOT NULL,
  hash         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS classes (
  file         TEXT NOT NULL,
  namespace    TEXT NOT NULL,
  name         TEXT NOT NULL,
  class_type   TEXT NOT NULL,
  parent       TEXT NOT NULL,
  is_abstract  INTEGER NOT NULL,
  is_final     INTEGER NOT NULL,
  doc          TEXT NOT NULL,
  line         INTEGER NOT NULL,
  col          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS class_interfaces (
  file         TEXT NOT NULL,
  namespace    TEXT NOT NULL,
  class        TEXT NOT NULL,
  interface    TEXT NOT NULL,
  ordinal      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS class_traits (
  file         TEXT NOT NULL,
  namespace    TEXT NOT NULL,
  class        TEXT NOT NULL,
  trait        TEXT NOT NULL,
  ordinal      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS class_constants (
  file         TEXT NOT NULL,
  namespace    TEXT NOT NULL,
  class        TEXT NOT NULL,
  name         TEXT NOT NULL,
  doc          TEXT NOT NULL,
  line         INTEGER NOT NULL,
  col          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS methods (
  file         TEXT NOT NULL,
  namespace    TEXT NOT NULL,
  class        TEXT NOT NULL,
  name         TEXT NOT NULL,
  visibility   TEXT NOT NULL,
  is_static    INTEGER NOT NULL,
  is_abstract  INTEGER NOT NULL,
  is_final     INTEGER NOT NULL,
  doc          TEXT NOT NULL,
  args         TEXT NOT NULL,
  return_type  TEXT NOT NULL,
  line         INTEGER NOT NULL,
  col          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS members (
  file         TEXT NOT NULL,
  namespace    TEXT NOT NULL,
  class        TEXT NOT NULL,
  name         TEXT NOT NULL,
  visibility   TEXT NOT NULL,
  is_static    INTEGER NOT NULL,
  type_hint    TEXT NOT NULL,
  doc          TEXT NOT NULL,
  line         INTEGER NOT NULL,
  col          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS functions (
  file         TEXT NOT NULL,
  namespace    TEXT NOT NULL,
  name         TEXT NOT NULL,
  doc          TEXT NOT NULL,
  args         TEXT NOT NULL,
  return_type  TEXT NOT NULL,
  line         INTEGER NOT NULL,
  col          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS constants (
  file         TEXT NOT NULL,
  namespace    TEXT NOT NULL,
  name         TEXT NOT NULL,
  doc          TEXT NOT NULL,
  line         INTEGER NOT NULL,
  col          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS uses (
  file         TEXT NOT NULL,
  line         INTEGER NOT NULL,
  col          INTEGER NOT NULL,
  name         TEXT NOT NULL,
  kind         TEXT NOT NULL,
  class        TEXT NOT NULL,
  routine      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_classes_namespace_name ON classes(namespace, name);
CREATE INDEX IF NOT EXISTS idx_classes_parent ON classes(parent);
CREATE INDEX IF NOT EXISTS idx_classes_file ON classes(file);
CREATE INDEX IF NOT EXISTS idx_class_interfaces_class ON class_interfaces(namespace, class);
CREATE INDEX IF NOT EXISTS idx_class_interfaces_interface ON class_interfaces(interface);
CREATE INDEX IF NOT EXISTS idx_class_traits_class ON class_traits(namespace, class);
CREATE INDEX IF NOT EXISTS idx_class_constants_class ON class_constants(namespace, class, name);
CREATE INDEX IF NOT EXISTS idx_methods_class ON methods(namespace, class, name);
CREATE INDEX IF NOT EXISTS idx_members_class ON members(namespace, class, name);
CREATE INDEX IF NOT EXISTS idx_functions_name ON functions(namespace, name);
CREATE INDEX IF NOT EXISTS idx_constants_name ON constants(name);
CREATE INDEX IF NOT EXISTS idx_uses_kind_name ON uses(kind, name);
CREATE INDEX IF NOT EXISTS idx_uses_file ON uses(file);
`

// rebind rewrites "?" placeholders to "$N" for Postgres.
func (s *Store) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, ch := range q {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// exec runs a statement inside the open batch, if any.
func (s *Store) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execLocked(ctx, q, args...)
}

func (s *Store) execLocked(ctx context.Context, q string, args ...any) (sql.Result, error) {
	q = s.rebind(q)
	if s.tx != nil {
		return s.tx.ExecContext(ctx, q, args...)
	}
	return s.db.ExecContext(ctx, q, args...)
}

// queryRows runs q against committed state and calls scan for each row.
// All rows are consumed before the lock is released.
func (s *Store) queryRows(ctx context.Context, q string, args []any, scan func(*sql.Rows) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// BeginBatch opens a write transaction. Calling it with a batch already
// open is a no-op.
func (s *Store) BeginBatch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	s.tx = tx
	s.pending = 0
	return nil
}

// Sync commits the open batch.
func (s *Store) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	s.pending = 0
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

func (s *Store) TouchFile(ctx context.Context, path string, mtime int64) error {
	if _, err := s.exec(ctx, "UPDATE files SET mtime = ? WHERE path = ?", mtime, path); err != nil {
		return fmt.Errorf("touch file %s: %w", path, err)
	}
	return nil
}

// Rollback abandons the open batch. Inserts already committed on a file
// boundary stay.
func (s *Store) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	s.pending = 0
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// checkpoint commits and reopens the batch once batchSize inserts are
// pending. Called before a file is removed or added so commits fall on
// file boundaries.
func (s *Store) checkpoint(ctx context.Context) error {
	if s.tx == nil || s.pending < s.batchSize {
		return nil
	}
	if err := s.tx.Commit(); err != nil {
		s.tx = nil
		return fmt.Errorf("commit batch: %w", err)
	}
	s.logger.Debug("batch committed", "inserts", s.pending)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.tx = nil
		return fmt.Errorf("begin batch: %w", err)
	}
	s.tx = tx
	s.pending = 0
	return nil
}

// insert executes an INSERT and counts it against the batch.
func (s *Store) insert(ctx context.Context, q string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.execLocked(ctx, q, args...); err != nil {
		return err
	}
	s.pending++
	return nil
}

// Empty drops and recreates every table.
func (s *Store) Empty(ctx context.Context) error {
	var b strings.Builder
	for _, t := range tableNames {
		fmt.Fprintf(&b, "DROP TABLE IF EXISTS %s;\n", t)
	}
	b.WriteString(schemaDDL)
	if _, err := s.exec(ctx, b.String()); err != nil {
		return fmt.Errorf("empty: %w", err)
	}
	return nil
}

// RemoveFile deletes every record owned by path.
func (s *Store) RemoveFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A replaced file is removed and re-inserted in the same transaction.
	if err := s.checkpoint(ctx); err != nil {
		return err
	}
	if _, err := s.execLocked(ctx, "DELETE FROM files WHERE path = ?", path); err != nil {
		return fmt.Errorf("remove file %s: %w", path, err)
	}
	for _, t := range tableNames[1:] {
		if _, err := s.execLocked(ctx, "DELETE FROM "+t+" WHERE file = ?", path); err != nil {
			return fmt.Errorf("remove file %s: %s: %w", path, t, err)
		}
	}
	return nil
}
