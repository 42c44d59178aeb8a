package phpindex

import (
	"context"
	"fmt"

	"github.com/jward/phpindex/internal/store"
)

// Hierarchy is the inheritance view of one class, interface or trait.
// Names are fully qualified.
type Hierarchy struct {
	Class        *Class
	Parent       string
	Ancestors    []string // parent chain, nearest first; stops at a cycle or unknown class
	Interfaces   []string
	Traits       []string
	Children     []string // direct subclasses
	Implementors []string // classes implementing an interface
	Methods      []*Method
	Members      []*Member
	Constants    []*ClassConstant
}

// ClassHierarchy returns the hierarchy of the class named fqn, or nil when
// the index does not know it.
func (q *QueryBuilder) ClassHierarchy(ctx context.Context, fqn string) (*Hierarchy, error) {
	ns, name := store.SplitName(fqn)
	c, err := q.storage.GetClass(ctx, ns, name)
	if err != nil {
		return nil, fmt.Errorf("class hierarchy: %w", err)
	}
	if c == nil {
		return nil, nil
	}
	h := &Hierarchy{Class: c, Parent: c.Parent}

	if h.Ancestors, err = q.Ancestors(ctx, fqn); err != nil {
		return nil, err
	}
	if h.Interfaces, err = q.storage.ClassInterfaces(ctx, ns, name); err != nil {
		return nil, fmt.Errorf("class hierarchy: interfaces: %w", err)
	}
	if h.Traits, err = q.storage.ClassTraits(ctx, ns, name); err != nil {
		return nil, fmt.Errorf("class hierarchy: traits: %w", err)
	}
	if h.Children, err = q.storage.ClassChildren(ctx, ns, name, false); err != nil {
		return nil, fmt.Errorf("class hierarchy: children: %w", err)
	}
	all, err := q.storage.ClassChildren(ctx, ns, name, true)
	if err != nil {
		return nil, fmt.Errorf("class hierarchy: implementors: %w", err)
	}
	h.Implementors = difference(all, h.Children)

	if h.Methods, err = q.storage.ClassMethods(ctx, ns, name); err != nil {
		return nil, fmt.Errorf("class hierarchy: methods: %w", err)
	}
	if h.Members, err = q.storage.ClassMembers(ctx, ns, name); err != nil {
		return nil, fmt.Errorf("class hierarchy: members: %w", err)
	}
	if h.Constants, err = q.storage.ClassConstants(ctx, ns, name); err != nil {
		return nil, fmt.Errorf("class hierarchy: constants: %w", err)
	}
	return h, nil
}

// Ancestors returns the parent chain of fqn, nearest first.
func (q *QueryBuilder) Ancestors(ctx context.Context, fqn string) ([]string, error) {
	out := []string{}
	seen := map[string]bool{fqn: true}
	cur := fqn
	for {
		ns, name := store.SplitName(cur)
		parent, err := q.storage.ClassParent(ctx, ns, name)
		if err != nil {
			return nil, fmt.Errorf("ancestors of %s: %w", fqn, err)
		}
		if parent == "" || seen[parent] {
			return out, nil
		}
		seen[parent] = true
		out = append(out, parent)
		cur = parent
	}
}

// Subclasses returns every class below fqn, breadth first. With
// implementors set, classes implementing fqn and their subclasses are
// included.
func (q *QueryBuilder) Subclasses(ctx context.Context, fqn string, implementors bool) ([]string, error) {
	out := []string{}
	seen := map[string]bool{fqn: true}
	queue := []string{fqn}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		ns, name := store.SplitName(cur)
		children, err := q.storage.ClassChildren(ctx, ns, name, implementors)
		if err != nil {
			return nil, fmt.Errorf("subclasses of %s: %w", fqn, err)
		}
		for _, c := range children {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
				queue = append(queue, c)
			}
		}
	}
	return out, nil
}

func difference(a, b []string) []string {
	drop := make(map[string]bool, len(b))
	for _, s := range b {
		drop[s] = true
	}
	out := []string{}
	for _, s := range a {
		if !drop[s] {
			out = append(out, s)
		}
	}
	return out
}
