package store

import "context"

// Writer receives the records of an indexing pass.
type Writer interface {
	AddFile(ctx context.Context, f *File) error
	AddClass(ctx context.Context, c *Class) error
	AddClassConstant(ctx context.Context, c *ClassConstant) error
	AddMethod(ctx context.Context, m *Method) error
	AddMember(ctx context.Context, m *Member) error
	AddFunction(ctx context.Context, f *Function) error
	AddConstant(ctx context.Context, c *Constant) error
	AddUse(ctx context.Context, u *Use) error
}

// Reader answers lookups against the index. Getters and position lookups
// return nil with a nil error when the record does not exist.
type Reader interface {
	GetFile(ctx context.Context, path string) (*File, error)
	AllFiles(ctx context.Context) ([]*File, error)

	GetClass(ctx context.Context, namespace, name string) (*Class, error)
	GetClassConstant(ctx context.Context, namespace, class, name string) (*ClassConstant, error)
	GetMethod(ctx context.Context, namespace, class, name string) (*Method, error)
	GetMember(ctx context.Context, namespace, class, name string) (*Member, error)
	GetFunction(ctx context.Context, namespace, name string) (*Function, error)
	GetConstant(ctx context.Context, name string) (*Constant, error)

	ClassPosition(ctx context.Context, namespace, name string) (*Position, error)
	ClassConstantPosition(ctx context.Context, namespace, class, name string) (*Position, error)
	MethodPosition(ctx context.Context, namespace, class, name string) (*Position, error)
	MemberPosition(ctx context.Context, namespace, class, name string) (*Position, error)
	FunctionPosition(ctx context.Context, namespace, name string) (*Position, error)
	ConstantPosition(ctx context.Context, name string) (*Position, error)

	// ClassParent returns the fully qualified parent name, or "".
	ClassParent(ctx context.Context, namespace, name string) (string, error)
	// ClassChildren returns the fully qualified names of the classes
	// extending the class, plus its implementors when withImplementors is
	// set. The result is sorted.
	ClassChildren(ctx context.Context, namespace, name string, withImplementors bool) ([]string, error)
	ClassInterfaces(ctx context.Context, namespace, name string) ([]string, error)
	ClassTraits(ctx context.Context, namespace, name string) ([]string, error)
	ClassMethods(ctx context.Context, namespace, name string) ([]*Method, error)
	ClassMembers(ctx context.Context, namespace, name string) ([]*Member, error)
	ClassConstants(ctx context.Context, namespace, name string) ([]*ClassConstant, error)

	AllClassNames(ctx context.Context) ([]string, error)
	AllFunctions(ctx context.Context) ([]*Function, error)
	AllConstants(ctx context.Context) ([]*Constant, error)

	UsesOf(ctx context.Context, kind Kind, name string) ([]*Use, error)
	UsesByFile(ctx context.Context, path string) ([]*Use, error)

	// Search runs a conjunctive full-text search over every record kind.
	// Any term shorter than MinTermLength rejects the query.
	Search(ctx context.Context, terms []string) ([]*SearchHit, error)
}

// Storage is the persistence contract implemented by every index back-end.
type Storage interface {
	Reader
	Writer

	// RemoveFile deletes the file and every record and use-edge it owns.
	RemoveFile(ctx context.Context, path string) error
	// TouchFile sets the stored mtime of an indexed file.
	TouchFile(ctx context.Context, path string, mtime int64) error
	// Empty drops every record.
	Empty(ctx context.Context) error
	// BeginBatch and Sync bracket a bulk write. Rollback discards the
	// writes of the open batch that have not been committed yet.
	BeginBatch(ctx context.Context) error
	Sync(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close() error
}

// Compile-time checks.
var (
	_ Storage = (*Store)(nil)
	_ Storage = (*Dummy)(nil)
	_ Writer  = (*Batch)(nil)
)

// Insert dispatches d to the matching Add method of w.
func Insert(ctx context.Context, w Writer, d Declaration) error {
	switch d := d.(type) {
	case *Class:
		return w.AddClass(ctx, d)
	case *ClassConstant:
		return w.AddClassConstant(ctx, d)
	case *Method:
		return w.AddMethod(ctx, d)
	case *Member:
		return w.AddMember(ctx, d)
	case *Function:
		return w.AddFunction(ctx, d)
	case *Constant:
		return w.AddConstant(ctx, d)
	}
	return nil
}
