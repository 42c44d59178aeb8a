package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// --- Hierarchy ---

func (s *Store) ClassParent(ctx context.Context, namespace, name string) (string, error) {
	var parent string
	err := s.queryRows(ctx,
		"SELECT parent FROM classes WHERE namespace = ? AND name = ? ORDER BY file LIMIT 1",
		[]any{namespace, name},
		func(rows *sql.Rows) error { return rows.Scan(&parent) })
	if err != nil {
		return "", fmt.Errorf("class parent %s: %w", JoinName(namespace, name), err)
	}
	return parent, nil
}

func (s *Store) ClassChildren(ctx context.Context, namespace, name string, withImplementors bool) ([]string, error) {
	fqn := JoinName(namespace, name)
	q := "SELECT namespace, name FROM classes WHERE parent = ?"
	args := []any{fqn}
	if withImplementors {
		q += " UNION SELECT namespace, class FROM class_interfaces WHERE interface = ?"
		args = append(args, fqn)
	}
	var names []string
	err := s.queryRows(ctx, q, args, func(rows *sql.Rows) error {
		var ns, n string
		if err := rows.Scan(&ns, &n); err != nil {
			return err
		}
		names = append(names, JoinName(ns, n))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("class children %s: %w", fqn, err)
	}
	return sortedUnique(names), nil
}

func (s *Store) orderedNames(ctx context.Context, q string, args ...any) ([]string, error) {
	out := []string{}
	err := s.queryRows(ctx, q, args, func(rows *sql.Rows) error {
		var n string
		if err := rows.Scan(&n); err != nil {
			return err
		}
		out = append(out, n)
		return nil
	})
	return out, err
}

func (s *Store) ClassInterfaces(ctx context.Context, namespace, name string) ([]string, error) {
	out, err := s.orderedNames(ctx,
		"SELECT interface FROM class_interfaces WHERE namespace = ? AND class = ? ORDER BY ordinal",
		namespace, name)
	if err != nil {
		return nil, fmt.Errorf("class interfaces %s: %w", JoinName(namespace, name), err)
	}
	return out, nil
}

func (s *Store) ClassTraits(ctx context.Context, namespace, name string) ([]string, error) {
	out, err := s.orderedNames(ctx,
		"SELECT trait FROM class_traits WHERE namespace = ? AND class = ? ORDER BY ordinal",
		namespace, name)
	if err != nil {
		return nil, fmt.Errorf("class traits %s: %w", JoinName(namespace, name), err)
	}
	return out, nil
}

func (s *Store) AllClassNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.queryRows(ctx, "SELECT namespace, name FROM classes", nil, func(rows *sql.Rows) error {
		var ns, n string
		if err := rows.Scan(&ns, &n); err != nil {
			return err
		}
		names = append(names, JoinName(ns, n))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("all class names: %w", err)
	}
	return sortedUnique(names), nil
}

// --- Uses ---

func (s *Store) queryUses(ctx context.Context, q string, args ...any) ([]*Use, error) {
	out := []*Use{}
	err := s.queryRows(ctx, q, args, func(rows *sql.Rows) error {
		u := &Use{}
		var kind string
		if err := rows.Scan(&u.File, &u.Line, &u.Col, &u.Name, &kind, &u.Class, &u.Routine); err != nil {
			return err
		}
		u.Kind = Kind(kind)
		out = append(out, u)
		return nil
	})
	return out, err
}

func (s *Store) UsesOf(ctx context.Context, kind Kind, name string) ([]*Use, error) {
	us, err := s.queryUses(ctx,
		"SELECT file, line, col, name, kind, class, routine FROM uses WHERE kind = ? AND name = ? ORDER BY file, line, col",
		string(kind), name)
	if err != nil {
		return nil, fmt.Errorf("uses of %s %s: %w", kind, name, err)
	}
	return us, nil
}

func (s *Store) UsesByFile(ctx context.Context, path string) ([]*Use, error) {
	us, err := s.queryUses(ctx,
		"SELECT file, line, col, name, kind, class, routine FROM uses WHERE file = ? ORDER BY line, col",
		path)
	if err != nil {
		return nil, fmt.Errorf("uses by file %s: %w", path, err)
	}
	return us, nil
}

// --- Full-text search ---

// searchQuery describes the per-kind search statement. columns are the
// searchable text columns; title renders a hit from the selected row.
type searchQuery struct {
	kind    Kind
	table   string
	columns []string
	// selected columns, after file, line and col
	selected []string
	title    func(vals []string) string
}

var searchQueries = []searchQuery{
	{KindFile, "files", []string{"path"}, []string{"path"},
		func(v []string) string { return v[0] }},
	{KindClass, "classes", []string{"namespace", "name"}, []string{"namespace", "name"},
		func(v []string) string { return ClassTitle(v[0], v[1]) }},
	{KindClassConstant, "class_constants", []string{"namespace", "class", "name"}, []string{"namespace", "class", "name"},
		func(v []string) string { return ClassConstantTitle(v[0], v[1], v[2]) }},
	{KindMethod, "methods", []string{"namespace", "class", "name"}, []string{"namespace", "class", "name"},
		func(v []string) string { return MethodTitle(v[0], v[1], v[2]) }},
	{KindMember, "members", []string{"namespace", "class", "name"}, []string{"namespace", "class", "name"},
		func(v []string) string { return MemberTitle(v[0], v[1], v[2]) }},
	{KindFunction, "functions", []string{"namespace", "name"}, []string{"namespace", "name"},
		func(v []string) string { return FunctionTitle(v[0], v[1]) }},
	{KindConstant, "constants", []string{"name"}, []string{"name"},
		func(v []string) string { return v[0] }},
}

// build renders the conjunctive query: every term must match one of the
// columns.
func (q searchQuery) build(terms []string) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if q.kind == KindFile {
		b.WriteString("path, 1, 1")
	} else {
		b.WriteString("file, line, col")
	}
	for _, c := range q.selected {
		b.WriteString(", ")
		b.WriteString(c)
	}
	b.WriteString(" FROM ")
	b.WriteString(q.table)
	b.WriteString(" WHERE ")

	var args []any
	for i, t := range terms {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString("(")
		for j, c := range q.columns {
			if j > 0 {
				b.WriteString(" OR ")
			}
			fmt.Fprintf(&b, `lower(%s) LIKE ? ESCAPE '\'`, c)
			args = append(args, likePattern(t))
		}
		b.WriteString(")")
	}
	return b.String(), args
}

func (s *Store) Search(ctx context.Context, terms []string) ([]*SearchHit, error) {
	hits := []*SearchHit{}
	if !ValidTerms(terms) {
		return hits, nil
	}
	for _, sq := range searchQueries {
		q, args := sq.build(terms)
		err := s.queryRows(ctx, q, args, func(rows *sql.Rows) error {
			var pos Position
			vals := make([]string, len(sq.selected))
			dest := []any{&pos.File, &pos.Line, &pos.Col}
			for i := range vals {
				dest = append(dest, &vals[i])
			}
			if err := rows.Scan(dest...); err != nil {
				return err
			}
			hits = append(hits, NewHit(sq.kind, sq.title(vals), pos))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", sq.table, err)
		}
	}
	RankHits(hits)
	return hits, nil
}
