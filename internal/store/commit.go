package store

import (
	"context"
	"fmt"
)

// AddFile inserts a file record. Inside a batch it first commits the
// pending inserts once the batch size is reached.
func (s *Store) AddFile(ctx context.Context, f *File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkpoint(ctx); err != nil {
		return err
	}
	_, err := s.execLocked(ctx,
		"INSERT INTO files (path, namespace, mtime, hash) VALUES (?, ?, ?, ?)",
		f.Path, f.Namespace, f.Mtime, f.Hash,
	)
	if err != nil {
		return fmt.Errorf("add file %s: %w", f.Path, err)
	}
	s.pending++
	return nil
}

func (s *Store) AddClass(ctx context.Context, c *Class) error {
	err := s.insert(ctx,
		`INSERT INTO classes (file, namespace, name, class_type, parent, is_abstract, is_final, doc, line, col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.File, c.Namespace, c.Name, c.Type, c.Parent, boolInt(c.Abstract), boolInt(c.Final), c.DocComment, c.Line, c.Col,
	)
	if err != nil {
		return fmt.Errorf("add class %s: %w", c.FQN(), err)
	}
	for i, iface := range c.Interfaces {
		err := s.insert(ctx,
			"INSERT INTO class_interfaces (file, namespace, class, interface, ordinal) VALUES (?, ?, ?, ?, ?)",
			c.File, c.Namespace, c.Name, iface, i,
		)
		if err != nil {
			return fmt.Errorf("add class %s: interface %s: %w", c.FQN(), iface, err)
		}
	}
	for i, trait := range c.Traits {
		err := s.insert(ctx,
			"INSERT INTO class_traits (file, namespace, class, trait, ordinal) VALUES (?, ?, ?, ?, ?)",
			c.File, c.Namespace, c.Name, trait, i,
		)
		if err != nil {
			return fmt.Errorf("add class %s: trait %s: %w", c.FQN(), trait, err)
		}
	}
	return nil
}

func (s *Store) AddClassConstant(ctx context.Context, c *ClassConstant) error {
	err := s.insert(ctx,
		"INSERT INTO class_constants (file, namespace, class, name, doc, line, col) VALUES (?, ?, ?, ?, ?, ?, ?)",
		c.File, c.Namespace, c.Class, c.Name, c.DocComment, c.Line, c.Col,
	)
	if err != nil {
		return fmt.Errorf("add class constant %s: %w", c.Name, err)
	}
	return nil
}

func (s *Store) AddMethod(ctx context.Context, m *Method) error {
	err := s.insert(ctx,
		`INSERT INTO methods (file, namespace, class, name, visibility, is_static, is_abstract, is_final, doc, args, return_type, line, col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.File, m.Namespace, m.Class, m.Name, m.Visibility, boolInt(m.Static), boolInt(m.Abstract), boolInt(m.Final),
		m.DocComment, marshalArgs(m.Args), m.ReturnType, m.Line, m.Col,
	)
	if err != nil {
		return fmt.Errorf("add method %s: %w", m.Name, err)
	}
	return nil
}

func (s *Store) AddMember(ctx context.Context, m *Member) error {
	err := s.insert(ctx,
		`INSERT INTO members (file, namespace, class, name, visibility, is_static, type_hint, doc, line, col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.File, m.Namespace, m.Class, m.Name, m.Visibility, boolInt(m.Static), m.TypeHint, m.DocComment, m.Line, m.Col,
	)
	if err != nil {
		return fmt.Errorf("add member %s: %w", m.Name, err)
	}
	return nil
}

func (s *Store) AddFunction(ctx context.Context, f *Function) error {
	err := s.insert(ctx,
		`INSERT INTO functions (file, namespace, name, doc, args, return_type, line, col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.File, f.Namespace, f.Name, f.DocComment, marshalArgs(f.Args), f.ReturnType, f.Line, f.Col,
	)
	if err != nil {
		return fmt.Errorf("add function %s: %w", f.Name, err)
	}
	return nil
}

func (s *Store) AddConstant(ctx context.Context, c *Constant) error {
	err := s.insert(ctx,
		"INSERT INTO constants (file, namespace, name, doc, line, col) VALUES (?, ?, ?, ?, ?, ?)",
		c.File, c.Namespace, c.Name, c.DocComment, c.Line, c.Col,
	)
	if err != nil {
		return fmt.Errorf("add constant %s: %w", c.Name, err)
	}
	return nil
}

func (s *Store) AddUse(ctx context.Context, u *Use) error {
	err := s.insert(ctx,
		"INSERT INTO uses (file, line, col, name, kind, class, routine) VALUES (?, ?, ?, ?, ?, ?, ?)",
		u.File, u.Line, u.Col, u.Name, string(u.Kind), u.Class, u.Routine,
	)
	if err != nil {
		return fmt.Errorf("add use %s: %w", u.Name, err)
	}
	return nil
}
