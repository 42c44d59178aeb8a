package store

import "context"

// Dummy is a no-op back-end. Writes are discarded and every lookup
// reports absence with the same shapes as the real back-ends.
type Dummy struct {
	Positions
}

// NewDummy returns a no-op back-end.
func NewDummy() *Dummy {
	d := &Dummy{}
	d.Positions = Positions{d}
	return d
}

func (*Dummy) AddFile(context.Context, *File) error                   { return nil }
func (*Dummy) AddClass(context.Context, *Class) error                 { return nil }
func (*Dummy) AddClassConstant(context.Context, *ClassConstant) error { return nil }
func (*Dummy) AddMethod(context.Context, *Method) error               { return nil }
func (*Dummy) AddMember(context.Context, *Member) error               { return nil }
func (*Dummy) AddFunction(context.Context, *Function) error           { return nil }
func (*Dummy) AddConstant(context.Context, *Constant) error           { return nil }
func (*Dummy) AddUse(context.Context, *Use) error                     { return nil }

func (*Dummy) RemoveFile(context.Context, string) error        { return nil }
func (*Dummy) TouchFile(context.Context, string, int64) error { return nil }
func (*Dummy) Empty(context.Context) error                    { return nil }
func (*Dummy) BeginBatch(context.Context) error               { return nil }
func (*Dummy) Sync(context.Context) error                     { return nil }
func (*Dummy) Rollback(context.Context) error                 { return nil }
func (*Dummy) Close() error                                   { return nil }

func (*Dummy) GetFile(context.Context, string) (*File, error) { return nil, nil }
func (*Dummy) AllFiles(context.Context) ([]*File, error)      { return []*File{}, nil }

func (*Dummy) GetClass(context.Context, string, string) (*Class, error) { return nil, nil }
func (*Dummy) GetClassConstant(context.Context, string, string, string) (*ClassConstant, error) {
	return nil, nil
}
func (*Dummy) GetMethod(context.Context, string, string, string) (*Method, error) { return nil, nil }
func (*Dummy) GetMember(context.Context, string, string, string) (*Member, error) { return nil, nil }
func (*Dummy) GetFunction(context.Context, string, string) (*Function, error)     { return nil, nil }
func (*Dummy) GetConstant(context.Context, string) (*Constant, error)             { return nil, nil }

func (*Dummy) ClassParent(context.Context, string, string) (string, error) { return "", nil }
func (*Dummy) ClassChildren(context.Context, string, string, bool) ([]string, error) {
	return []string{}, nil
}
func (*Dummy) ClassInterfaces(context.Context, string, string) ([]string, error) {
	return []string{}, nil
}
func (*Dummy) ClassTraits(context.Context, string, string) ([]string, error) {
	return []string{}, nil
}
func (*Dummy) ClassMethods(context.Context, string, string) ([]*Method, error) {
	return []*Method{}, nil
}
func (*Dummy) ClassMembers(context.Context, string, string) ([]*Member, error) {
	return []*Member{}, nil
}
func (*Dummy) ClassConstants(context.Context, string, string) ([]*ClassConstant, error) {
	return []*ClassConstant{}, nil
}

func (*Dummy) AllClassNames(context.Context) ([]string, error)     { return []string{}, nil }
func (*Dummy) AllFunctions(context.Context) ([]*Function, error)   { return []*Function{}, nil }
func (*Dummy) AllConstants(context.Context) ([]*Constant, error)   { return []*Constant{}, nil }
func (*Dummy) UsesOf(context.Context, Kind, string) ([]*Use, error) { return []*Use{}, nil }
func (*Dummy) UsesByFile(context.Context, string) ([]*Use, error)  { return []*Use{}, nil }
func (*Dummy) Search(context.Context, []string) ([]*SearchHit, error) {
	return []*SearchHit{}, nil
}
