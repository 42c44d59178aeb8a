package phpfile

import (
	"context"

	"github.com/jward/phpindex/internal/store"
)

// localIndex serves the file's own declarations through the Lookup
// interface.
type localIndex struct {
	classes   map[string]*store.Class
	consts    map[string]*store.ClassConstant
	methods   map[string]*store.Method
	members   map[string]*store.Member
	functions map[string]*store.Function
	constants map[string]*store.Constant
}

var _ Lookup = (*localIndex)(nil)

func memberKey(namespace, class, name string) string {
	return store.JoinName(namespace, class) + "\x00" + name
}

func newLocalIndex(f *File) *localIndex {
	l := &localIndex{
		classes:   map[string]*store.Class{},
		consts:    map[string]*store.ClassConstant{},
		methods:   map[string]*store.Method{},
		members:   map[string]*store.Member{},
		functions: map[string]*store.Function{},
		constants: map[string]*store.Constant{},
	}
	// The first declaration of a name wins, matching the back-ends.
	for _, d := range f.Declarations() {
		switch d := d.(type) {
		case *store.Class:
			if _, ok := l.classes[d.FQN()]; !ok {
				l.classes[d.FQN()] = d
			}
		case *store.ClassConstant:
			if k := memberKey(d.Namespace, d.Class, d.Name); l.consts[k] == nil {
				l.consts[k] = d
			}
		case *store.Method:
			if k := memberKey(d.Namespace, d.Class, d.Name); l.methods[k] == nil {
				l.methods[k] = d
			}
		case *store.Member:
			if k := memberKey(d.Namespace, d.Class, d.Name); l.members[k] == nil {
				l.members[k] = d
			}
		case *store.Function:
			if l.functions[d.FQN()] == nil {
				l.functions[d.FQN()] = d
			}
		case *store.Constant:
			if l.constants[d.Name] == nil {
				l.constants[d.Name] = d
			}
		}
	}
	return l
}

func (l *localIndex) GetClass(_ context.Context, namespace, name string) (*store.Class, error) {
	return l.classes[store.JoinName(namespace, name)], nil
}

func (l *localIndex) GetClassConstant(_ context.Context, namespace, class, name string) (*store.ClassConstant, error) {
	return l.consts[memberKey(namespace, class, name)], nil
}

func (l *localIndex) GetMethod(_ context.Context, namespace, class, name string) (*store.Method, error) {
	return l.methods[memberKey(namespace, class, name)], nil
}

func (l *localIndex) GetMember(_ context.Context, namespace, class, name string) (*store.Member, error) {
	return l.members[memberKey(namespace, class, name)], nil
}

func (l *localIndex) GetFunction(_ context.Context, namespace, name string) (*store.Function, error) {
	return l.functions[store.JoinName(namespace, name)], nil
}

func (l *localIndex) GetConstant(_ context.Context, name string) (*store.Constant, error) {
	return l.constants[name], nil
}

// chain consults the file's own declarations before the bound lookup.
type chain struct {
	local  *localIndex
	remote Lookup
}

// Lookup returns the resolver used by inference: the file's own
// declarations, then the bound lookup if any.
func (f *File) Lookup() Lookup {
	return chain{local: f.local, remote: f.lookup}
}

func (c chain) GetClass(ctx context.Context, namespace, name string) (*store.Class, error) {
	if v, _ := c.local.GetClass(ctx, namespace, name); v != nil || c.remote == nil {
		return v, nil
	}
	return c.remote.GetClass(ctx, namespace, name)
}

func (c chain) GetClassConstant(ctx context.Context, namespace, class, name string) (*store.ClassConstant, error) {
	if v, _ := c.local.GetClassConstant(ctx, namespace, class, name); v != nil || c.remote == nil {
		return v, nil
	}
	return c.remote.GetClassConstant(ctx, namespace, class, name)
}

func (c chain) GetMethod(ctx context.Context, namespace, class, name string) (*store.Method, error) {
	if v, _ := c.local.GetMethod(ctx, namespace, class, name); v != nil || c.remote == nil {
		return v, nil
	}
	return c.remote.GetMethod(ctx, namespace, class, name)
}

func (c chain) GetMember(ctx context.Context, namespace, class, name string) (*store.Member, error) {
	if v, _ := c.local.GetMember(ctx, namespace, class, name); v != nil || c.remote == nil {
		return v, nil
	}
	return c.remote.GetMember(ctx, namespace, class, name)
}

func (c chain) GetFunction(ctx context.Context, namespace, name string) (*store.Function, error) {
	if v, _ := c.local.GetFunction(ctx, namespace, name); v != nil || c.remote == nil {
		return v, nil
	}
	return c.remote.GetFunction(ctx, namespace, name)
}

func (c chain) GetConstant(ctx context.Context, name string) (*store.Constant, error) {
	if v, _ := c.local.GetConstant(ctx, name); v != nil || c.remote == nil {
		return v, nil
	}
	return c.remote.GetConstant(ctx, name)
}
