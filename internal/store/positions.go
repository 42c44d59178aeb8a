package store

import "context"

// getters is the part of Reader that position lookups derive from.
type getters interface {
	GetClass(ctx context.Context, namespace, name string) (*Class, error)
	GetClassConstant(ctx context.Context, namespace, class, name string) (*ClassConstant, error)
	GetMethod(ctx context.Context, namespace, class, name string) (*Method, error)
	GetMember(ctx context.Context, namespace, class, name string) (*Member, error)
	GetFunction(ctx context.Context, namespace, name string) (*Function, error)
	GetConstant(ctx context.Context, name string) (*Constant, error)
}

// Positions implements the position lookups of Reader on top of its
// getters. Back-ends embed it.
type Positions struct {
	g getters
}

// NewPositions returns position lookups backed by g.
func NewPositions(g getters) Positions {
	return Positions{g: g}
}

func (p Positions) ClassPosition(ctx context.Context, namespace, name string) (*Position, error) {
	c, err := p.g.GetClass(ctx, namespace, name)
	if err != nil || c == nil {
		return nil, err
	}
	return c.Position(), nil
}

func (p Positions) ClassConstantPosition(ctx context.Context, namespace, class, name string) (*Position, error) {
	c, err := p.g.GetClassConstant(ctx, namespace, class, name)
	if err != nil || c == nil {
		return nil, err
	}
	return c.Position(), nil
}

func (p Positions) MethodPosition(ctx context.Context, namespace, class, name string) (*Position, error) {
	m, err := p.g.GetMethod(ctx, namespace, class, name)
	if err != nil || m == nil {
		return nil, err
	}
	return m.Position(), nil
}

func (p Positions) MemberPosition(ctx context.Context, namespace, class, name string) (*Position, error) {
	m, err := p.g.GetMember(ctx, namespace, class, name)
	if err != nil || m == nil {
		return nil, err
	}
	return m.Position(), nil
}

func (p Positions) FunctionPosition(ctx context.Context, namespace, name string) (*Position, error) {
	f, err := p.g.GetFunction(ctx, namespace, name)
	if err != nil || f == nil {
		return nil, err
	}
	return f.Position(), nil
}

func (p Positions) ConstantPosition(ctx context.Context, name string) (*Position, error) {
	c, err := p.g.GetConstant(ctx, name)
	if err != nil || c == nil {
		return nil, err
	}
	return c.Position(), nil
}
