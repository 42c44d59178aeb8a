package store

// Declaration records. Every record is owned by the file it was extracted
// from and is replaced wholesale when that file is re-indexed. Namespaces
// and fully qualified names never carry a leading backslash.

// BuiltinPath is the file path under which the runtime's built-in
// functions, classes and constants are stored.
const BuiltinPath = "INTERNAL"

// Kind identifies a record kind.
type Kind string

const (
	KindFile          Kind = "file"
	KindClass         Kind = "class"
	KindClassConstant Kind = "class-constant"
	KindMethod        Kind = "method"
	KindMember        Kind = "member"
	KindFunction      Kind = "function"
	KindConstant      Kind = "constant"
)

// Declaration is implemented by the record types extracted from a file:
// *Class, *ClassConstant, *Method, *Member, *Function and *Constant.
type Declaration interface {
	DeclKind() Kind
	Position() *Position
	declaration()
}

type File struct {
	Path      string
	Namespace string
	Mtime     int64 // Unix seconds
	Hash      string
}

type Class struct {
	File       string
	Namespace  string
	Name       string
	Type       string // class, interface or trait
	Parent     string // fully qualified
	Interfaces []string
	Traits     []string
	Abstract   bool
	Final      bool
	DocComment string
	Line       int
	Col        int
}

// FQN returns the fully qualified class name.
func (c *Class) FQN() string { return JoinName(c.Namespace, c.Name) }

type ClassConstant struct {
	File       string
	Namespace  string
	Class      string
	Name       string
	DocComment string
	Line       int
	Col        int
}

// Argument is one parameter of a method or function.
type Argument struct {
	TypeHint   string `json:"type,omitempty"`
	Name       string `json:"name"`
	Default    string `json:"default,omitempty"`
	HasDefault bool   `json:"has_default,omitempty"`
}

type Method struct {
	File       string
	Namespace  string
	Class      string
	Name       string
	Visibility string
	Static     bool
	Abstract   bool
	Final      bool
	DocComment string
	Args       []Argument
	// ReturnType is the fully qualified class name taken from the @return
	// annotation or the declared return type. Empty when unknown or scalar.
	ReturnType string
	Line       int
	Col        int
}

type Member struct {
	File       string
	Namespace  string
	Class      string
	Name       string // with the leading "$"
	Visibility string
	Static     bool
	// TypeHint is the fully qualified class name from @var or the declared
	// property type.
	TypeHint   string
	DocComment string
	Line       int
	Col        int
}

type Function struct {
	File       string
	Namespace  string
	Name       string
	DocComment string
	Args       []Argument
	ReturnType string
	Line       int
	Col        int
}

// FQN returns the fully qualified function name.
func (f *Function) FQN() string { return JoinName(f.Namespace, f.Name) }

type Constant struct {
	File       string
	Namespace  string
	Name       string
	DocComment string
	Line       int
	Col        int
}

// Use is a reference from a source location to a named declaration.
// Class and Routine name the declaration containing the reference.
type Use struct {
	File    string
	Line    int
	Col     int
	Name    string
	Kind    Kind
	Class   string
	Routine string
}

// Position locates a declaration.
type Position struct {
	File string
	Line int
	Col  int
}

// SearchHit is one full-text search result.
type SearchHit struct {
	File  string
	Line  int
	Col   int
	Kind  Kind
	Title string
	Score int
}

func (*Class) DeclKind() Kind         { return KindClass }
func (*ClassConstant) DeclKind() Kind { return KindClassConstant }
func (*Method) DeclKind() Kind        { return KindMethod }
func (*Member) DeclKind() Kind        { return KindMember }
func (*Function) DeclKind() Kind      { return KindFunction }
func (*Constant) DeclKind() Kind      { return KindConstant }

func (c *Class) Position() *Position         { return &Position{File: c.File, Line: c.Line, Col: c.Col} }
func (c *ClassConstant) Position() *Position { return &Position{File: c.File, Line: c.Line, Col: c.Col} }
func (m *Method) Position() *Position        { return &Position{File: m.File, Line: m.Line, Col: m.Col} }
func (m *Member) Position() *Position        { return &Position{File: m.File, Line: m.Line, Col: m.Col} }
func (f *Function) Position() *Position      { return &Position{File: f.File, Line: f.Line, Col: f.Col} }
func (c *Constant) Position() *Position      { return &Position{File: c.File, Line: c.Line, Col: c.Col} }

func (*Class) declaration()         {}
func (*ClassConstant) declaration() {}
func (*Method) declaration()        {}
func (*Member) declaration()        {}
func (*Function) declaration()      {}
func (*Constant) declaration()      {}
