package store

import (
	"context"
	"database/sql"
	"fmt"
)

type scanner interface{ Scan(...any) error }

// --- Files ---

func (s *Store) GetFile(ctx context.Context, path string) (*File, error) {
	var out *File
	err := s.queryRows(ctx,
		"SELECT path, namespace, mtime, hash FROM files WHERE path = ?", []any{path},
		func(rows *sql.Rows) error {
			f := &File{}
			if err := rows.Scan(&f.Path, &f.Namespace, &f.Mtime, &f.Hash); err != nil {
				return err
			}
			out = f
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", path, err)
	}
	return out, nil
}

func (s *Store) AllFiles(ctx context.Context) ([]*File, error) {
	out := []*File{}
	err := s.queryRows(ctx, "SELECT path, namespace, mtime, hash FROM files ORDER BY path", nil,
		func(rows *sql.Rows) error {
			f := &File{}
			if err := rows.Scan(&f.Path, &f.Namespace, &f.Mtime, &f.Hash); err != nil {
				return err
			}
			out = append(out, f)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("all files: %w", err)
	}
	return out, nil
}

// --- Classes ---

const classColumns = "file, namespace, name, class_type, parent, is_abstract, is_final, doc, line, col"

func scanClass(sc scanner) (*Class, error) {
	c := &Class{}
	var abstract, final int
	if err := sc.Scan(&c.File, &c.Namespace, &c.Name, &c.Type, &c.Parent, &abstract, &final, &c.DocComment, &c.Line, &c.Col); err != nil {
		return nil, err
	}
	c.Abstract = abstract != 0
	c.Final = final != 0
	return c, nil
}

func (s *Store) GetClass(ctx context.Context, namespace, name string) (*Class, error) {
	var out *Class
	err := s.queryRows(ctx,
		"SELECT "+classColumns+" FROM classes WHERE namespace = ? AND name = ? ORDER BY file LIMIT 1",
		[]any{namespace, name},
		func(rows *sql.Rows) error {
			c, err := scanClass(rows)
			out = c
			return err
		})
	if err != nil {
		return nil, fmt.Errorf("get class %s: %w", JoinName(namespace, name), err)
	}
	if out == nil {
		return nil, nil
	}
	if out.Interfaces, err = s.ClassInterfaces(ctx, namespace, name); err != nil {
		return nil, err
	}
	if out.Traits, err = s.ClassTraits(ctx, namespace, name); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Class members ---

const classConstantColumns = "file, namespace, class, name, doc, line, col"

func scanClassConstant(sc scanner) (*ClassConstant, error) {
	c := &ClassConstant{}
	err := sc.Scan(&c.File, &c.Namespace, &c.Class, &c.Name, &c.DocComment, &c.Line, &c.Col)
	return c, err
}

func (s *Store) queryClassConstants(ctx context.Context, q string, args ...any) ([]*ClassConstant, error) {
	out := []*ClassConstant{}
	err := s.queryRows(ctx, q, args, func(rows *sql.Rows) error {
		c, err := scanClassConstant(rows)
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

func (s *Store) GetClassConstant(ctx context.Context, namespace, class, name string) (*ClassConstant, error) {
	cs, err := s.queryClassConstants(ctx,
		"SELECT "+classConstantColumns+" FROM class_constants WHERE namespace = ? AND class = ? AND name = ? ORDER BY file LIMIT 1",
		namespace, class, name)
	if err != nil {
		return nil, fmt.Errorf("get class constant %s::%s: %w", class, name, err)
	}
	if len(cs) == 0 {
		return nil, nil
	}
	return cs[0], nil
}

func (s *Store) ClassConstants(ctx context.Context, namespace, name string) ([]*ClassConstant, error) {
	cs, err := s.queryClassConstants(ctx,
		"SELECT "+classConstantColumns+" FROM class_constants WHERE namespace = ? AND class = ? ORDER BY line, col",
		namespace, name)
	if err != nil {
		return nil, fmt.Errorf("class constants %s: %w", JoinName(namespace, name), err)
	}
	return cs, nil
}

const methodColumns = "file, namespace, class, name, visibility, is_static, is_abstract, is_final, doc, args, return_type, line, col"

func scanMethod(sc scanner) (*Method, error) {
	m := &Method{}
	var static, abstract, final int
	var args string
	if err := sc.Scan(&m.File, &m.Namespace, &m.Class, &m.Name, &m.Visibility, &static, &abstract, &final,
		&m.DocComment, &args, &m.ReturnType, &m.Line, &m.Col); err != nil {
		return nil, err
	}
	m.Static = static != 0
	m.Abstract = abstract != 0
	m.Final = final != 0
	m.Args = unmarshalArgs(args)
	return m, nil
}

func (s *Store) queryMethods(ctx context.Context, q string, args ...any) ([]*Method, error) {
	out := []*Method{}
	err := s.queryRows(ctx, q, args, func(rows *sql.Rows) error {
		m, err := scanMethod(rows)
		if err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

func (s *Store) GetMethod(ctx context.Context, namespace, class, name string) (*Method, error) {
	ms, err := s.queryMethods(ctx,
		"SELECT "+methodColumns+" FROM methods WHERE namespace = ? AND class = ? AND name = ? ORDER BY file LIMIT 1",
		namespace, class, name)
	if err != nil {
		return nil, fmt.Errorf("get method %s->%s: %w", class, name, err)
	}
	if len(ms) == 0 {
		return nil, nil
	}
	return ms[0], nil
}

func (s *Store) ClassMethods(ctx context.Context, namespace, name string) ([]*Method, error) {
	ms, err := s.queryMethods(ctx,
		"SELECT "+methodColumns+" FROM methods WHERE namespace = ? AND class = ? ORDER BY line, col",
		namespace, name)
	if err != nil {
		return nil, fmt.Errorf("class methods %s: %w", JoinName(namespace, name), err)
	}
	return ms, nil
}

const memberColumns = "file, namespace, class, name, visibility, is_static, type_hint, doc, line, col"

func scanMember(sc scanner) (*Member, error) {
	m := &Member{}
	var static int
	if err := sc.Scan(&m.File, &m.Namespace, &m.Class, &m.Name, &m.Visibility, &static, &m.TypeHint,
		&m.DocComment, &m.Line, &m.Col); err != nil {
		return nil, err
	}
	m.Static = static != 0
	return m, nil
}

func (s *Store) queryMembers(ctx context.Context, q string, args ...any) ([]*Member, error) {
	out := []*Member{}
	err := s.queryRows(ctx, q, args, func(rows *sql.Rows) error {
		m, err := scanMember(rows)
		if err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

// GetMember looks up a property. name carries the leading "$".
func (s *Store) GetMember(ctx context.Context, namespace, class, name string) (*Member, error) {
	ms, err := s.queryMembers(ctx,
		"SELECT "+memberColumns+" FROM members WHERE namespace = ? AND class = ? AND name = ? ORDER BY file LIMIT 1",
		namespace, class, name)
	if err != nil {
		return nil, fmt.Errorf("get member %s->%s: %w", class, name, err)
	}
	if len(ms) == 0 {
		return nil, nil
	}
	return ms[0], nil
}

func (s *Store) ClassMembers(ctx context.Context, namespace, name string) ([]*Member, error) {
	ms, err := s.queryMembers(ctx,
		"SELECT "+memberColumns+" FROM members WHERE namespace = ? AND class = ? ORDER BY line, col",
		namespace, name)
	if err != nil {
		return nil, fmt.Errorf("class members %s: %w", JoinName(namespace, name), err)
	}
	return ms, nil
}

// --- Functions and constants ---

const functionColumns = "file, namespace, name, doc, args, return_type, line, col"

func (s *Store) queryFunctions(ctx context.Context, q string, args ...any) ([]*Function, error) {
	out := []*Function{}
	err := s.queryRows(ctx, q, args, func(rows *sql.Rows) error {
		f := &Function{}
		var fargs string
		if err := rows.Scan(&f.File, &f.Namespace, &f.Name, &f.DocComment, &fargs, &f.ReturnType, &f.Line, &f.Col); err != nil {
			return err
		}
		f.Args = unmarshalArgs(fargs)
		out = append(out, f)
		return nil
	})
	return out, err
}

func (s *Store) GetFunction(ctx context.Context, namespace, name string) (*Function, error) {
	fs, err := s.queryFunctions(ctx,
		"SELECT "+functionColumns+" FROM functions WHERE namespace = ? AND name = ? ORDER BY file LIMIT 1",
		namespace, name)
	if err != nil {
		return nil, fmt.Errorf("get function %s: %w", JoinName(namespace, name), err)
	}
	if len(fs) == 0 {
		return nil, nil
	}
	return fs[0], nil
}

func (s *Store) AllFunctions(ctx context.Context) ([]*Function, error) {
	fs, err := s.queryFunctions(ctx, "SELECT "+functionColumns+" FROM functions ORDER BY namespace, name")
	if err != nil {
		return nil, fmt.Errorf("all functions: %w", err)
	}
	return fs, nil
}

const constantColumns = "file, namespace, name, doc, line, col"

func (s *Store) queryConstants(ctx context.Context, q string, args ...any) ([]*Constant, error) {
	out := []*Constant{}
	err := s.queryRows(ctx, q, args, func(rows *sql.Rows) error {
		c := &Constant{}
		if err := rows.Scan(&c.File, &c.Namespace, &c.Name, &c.DocComment, &c.Line, &c.Col); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

func (s *Store) GetConstant(ctx context.Context, name string) (*Constant, error) {
	cs, err := s.queryConstants(ctx,
		"SELECT "+constantColumns+" FROM constants WHERE name = ? ORDER BY file LIMIT 1", name)
	if err != nil {
		return nil, fmt.Errorf("get constant %s: %w", name, err)
	}
	if len(cs) == 0 {
		return nil, nil
	}
	return cs[0], nil
}

func (s *Store) AllConstants(ctx context.Context) ([]*Constant, error) {
	cs, err := s.queryConstants(ctx, "SELECT "+constantColumns+" FROM constants ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("all constants: %w", err)
	}
	return cs, nil
}
