package parser

// BlockKind classifies a block.
type BlockKind int

const (
	Plain BlockKind = iota
	ClassBlock
	MethodBlock
	FunctionBlock
)

func (k BlockKind) String() string {
	switch k {
	case ClassBlock:
		return "class"
	case MethodBlock:
		return "method"
	case FunctionBlock:
		return "function"
	}
	return "plain"
}

// UseKind is the kind of declaration a use-edge points at.
type UseKind string

const (
	UseMethod   UseKind = "method"
	UseMember   UseKind = "member"
	UseFunction UseKind = "function"
	UseClass    UseKind = "class"
	UseConstant UseKind = "constant"
)

// Use is a reference from a code location to a named declaration.
// Name is the raw source spelling; class names are not yet resolved
// against the namespace or use-aliases.
type Use struct {
	TokenIndex int
	Line       int
	Col        int
	Name       string
	Kind       UseKind
}

// Argument is one routine parameter.
type Argument struct {
	TypeHint   string
	Name       string
	Default    string
	HasDefault bool
}

// ClassInfo holds the declaration data of a class, interface or trait block.
type ClassInfo struct {
	Name       string
	NameIndex  int
	Type       string // class, interface or trait
	Parent     string
	Interfaces []string
	Traits     []string
	Abstract   bool
	Final      bool
	DocComment string
	Members    []Member
	Constants  []ClassConstant
}

// Member is a class property declared with a member modifier.
type Member struct {
	Index      int
	Name       string // with the leading "$"
	TypeHint   string
	Visibility string
	Static     bool
	DocComment string
}

// ClassConstant is a const declared directly in a class body.
type ClassConstant struct {
	Index      int
	Name       string
	DocComment string
}

// RoutineInfo holds the declaration data of a method or function block.
// Class is empty for free functions. Name is empty for closures.
type RoutineInfo struct {
	Name       string
	NameIndex  int
	Class      string
	Modifiers  []string
	Visibility string
	Static     bool
	Abstract   bool
	Final      bool
	DocComment string
	Args       []Argument
	ReturnType string
}

// Block is a token range [Begin, End]. Brace blocks begin at "{" and end
// at the matching "}". Statements terminated by ";" produce zero-width
// blocks so bodiless abstract methods can be classified like any other.
type Block struct {
	Begin   int
	End     int
	Kind    BlockKind
	Site    int // token index of the class/function keyword; -1 for plain blocks
	Class   *ClassInfo
	Routine *RoutineInfo
	Uses    []Use
}

// Contains reports whether token index idx lies strictly inside the block.
func (b *Block) Contains(idx int) bool {
	return idx > b.Begin && idx < b.End
}

// ConstantSite is a global constant introduced by define() or a top-level
// const statement.
type ConstantSite struct {
	Name       string
	TokenIndex int
}

// Result is the output of Parse.
type Result struct {
	Blocks []*Block
	// Namespace is the first declared namespace, without a leading
	// backslash. Empty for the global namespace.
	Namespace string
	// UseAliases maps an alias to its fully qualified name (no leading
	// backslash).
	UseAliases map[string]string
	// UseInsertionIndex is the token after which a new use statement
	// belongs, or -1 when the file has neither namespace nor use lines.
	UseInsertionIndex int
	Constants         []ConstantSite
	// Uses lists every use-edge in the file, including those outside any
	// block. Each also appears on its innermost block.
	Uses []Use
}

// Classes returns the class blocks in source order.
func (r *Result) Classes() []*Block { return r.byKind(ClassBlock) }

// Methods returns the method blocks in source order.
func (r *Result) Methods() []*Block { return r.byKind(MethodBlock) }

// Functions returns the free function blocks in source order, closures
// included.
func (r *Result) Functions() []*Block { return r.byKind(FunctionBlock) }

func (r *Result) byKind(kind BlockKind) []*Block {
	var out []*Block
	for _, b := range r.Blocks {
		if b.Kind == kind {
			out = append(out, b)
		}
	}
	return out
}
