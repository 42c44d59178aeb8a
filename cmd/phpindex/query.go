package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/phpindex"
	"github.com/jward/phpindex/internal/lexer"
	"github.com/jward/phpindex/internal/phpfile"
	"github.com/jward/phpindex/internal/store"
)

func newQueryCmd(a *app) *cobra.Command {
	var (
		stdin bool
		depth int
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the index",
		Long:  "Run queries against an indexed project. Line and column numbers are 1-based.",
	}
	cmd.PersistentFlags().BoolVar(&stdin, "stdin", false, "read the file's current contents from standard input")
	cmd.PersistentFlags().IntVar(&depth, "depth", 1, "traversal depth for callers and callees (max 100)")

	positional := func(use, short string, run func(ctx context.Context, q *phpindex.QueryBuilder, f *phpfile.File, line, col int) (CLIResult, error)) *cobra.Command {
		name := strings.Fields(use)[0]
		command := "query " + name
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := commandContext(cmd)
				e, err := a.openIndex()
				if err != nil {
					return a.outputError(command, err)
				}
				defer e.Close()

				q := e.Query()
				f, line, col, err := a.openPosition(ctx, q, cmd, stdin, args)
				if err != nil {
					return a.outputError(command, err)
				}
				res, err := run(ctx, q, f, line, col)
				if err != nil {
					return a.outputError(command, err)
				}
				res.Command = command
				return a.outputResult(res)
			},
		}
	}

	cmd.AddCommand(
		positional("definition <file> <line> <col>", "Find where the name at a position is declared",
			func(ctx context.Context, q *phpindex.QueryBuilder, f *phpfile.File, line, col int) (CLIResult, error) {
				pos, err := q.Definition(ctx, f, line, col)
				if err != nil || pos == nil {
					return CLIResult{}, err
				}
				return single(positionToCLI(pos)), nil
			}),
		positional("declaration <file> <line> <col>", "Name the declaration referred to at a position",
			func(ctx context.Context, q *phpindex.QueryBuilder, f *phpfile.File, line, col int) (CLIResult, error) {
				d, err := q.DeclarationAt(ctx, f, line, col)
				if err != nil || d.IsZero() {
					return CLIResult{}, err
				}
				return single(declarationToCLI(d)), nil
			}),
		positional("type <file> <line> <col>", "Infer the class of the expression ending at a position",
			func(ctx context.Context, q *phpindex.QueryBuilder, f *phpfile.File, line, col int) (CLIResult, error) {
				t, err := q.TypeAt(ctx, f, line, col)
				if err != nil || t == "" {
					return CLIResult{}, err
				}
				return single(t), nil
			}),
		positional("usages <file> <line> <col>", "List every use of the declaration at a position",
			func(ctx context.Context, q *phpindex.QueryBuilder, f *phpfile.File, line, col int) (CLIResult, error) {
				d, err := q.DeclarationAt(ctx, f, line, col)
				if err != nil {
					return CLIResult{}, err
				}
				uses, err := q.Usages(ctx, d)
				if err != nil {
					return CLIResult{}, err
				}
				return many(usesToCLI(uses)), nil
			}),
		positional("callers <file> <line> <col>", "List the transitive callers of the routine at a position",
			func(ctx context.Context, q *phpindex.QueryBuilder, f *phpfile.File, line, col int) (CLIResult, error) {
				d, err := q.DeclarationAt(ctx, f, line, col)
				if err != nil || d.IsZero() {
					return CLIResult{}, err
				}
				g, err := q.TransitiveCallers(ctx, d, depth)
				if err != nil || g == nil {
					return CLIResult{}, err
				}
				return single(callGraphToCLI(g)), nil
			}),
		positional("callees <file> <line> <col>", "List the routines transitively called from the routine at a position",
			func(ctx context.Context, q *phpindex.QueryBuilder, f *phpfile.File, line, col int) (CLIResult, error) {
				d, err := q.DeclarationAt(ctx, f, line, col)
				if err != nil || d.IsZero() {
					return CLIResult{}, err
				}
				g, err := q.TransitiveCallees(ctx, d, depth)
				if err != nil || g == nil {
					return CLIResult{}, err
				}
				return single(callGraphToCLI(g)), nil
			}),
		newHotspotsCmd(a),
		newHierarchyCmd(a),
		newClassListCmd(a, "ancestors <class>", "List the parent chain of a class, nearest first",
			func(ctx context.Context, q *phpindex.QueryBuilder, fqn string) ([]string, error) {
				return q.Ancestors(ctx, fqn)
			}),
		newSubclassesCmd(a),
		newFileUsesCmd(a),
		newIsBuiltCmd(a),
	)
	return cmd
}

func newHotspotsCmd(a *app) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "hotspots",
		Short: "List the most referenced functions and methods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openIndex()
			if err != nil {
				return a.outputError("query hotspots", err)
			}
			defer e.Close()

			hot, err := e.Query().Hotspots(commandContext(cmd), top)
			if err != nil {
				return a.outputError("query hotspots", err)
			}
			res := many(hotspotsToCLI(hot))
			res.Command = "query hotspots"
			return a.outputResult(res)
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of results")
	return cmd
}

func newHierarchyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hierarchy <class>",
		Short: "Show the parents, interfaces, traits, children and members of a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openIndex()
			if err != nil {
				return a.outputError("query hierarchy", err)
			}
			defer e.Close()

			h, err := e.Query().ClassHierarchy(commandContext(cmd), args[0])
			if err != nil {
				return a.outputError("query hierarchy", err)
			}
			res := CLIResult{Command: "query hierarchy"}
			if h != nil {
				res = single(hierarchyToCLI(h))
				res.Command = "query hierarchy"
			}
			return a.outputResult(res)
		},
	}
}

func newSubclassesCmd(a *app) *cobra.Command {
	var implementors bool
	cmd := newClassListCmd(a, "subclasses <class>", "List every class descending from a class",
		func(ctx context.Context, q *phpindex.QueryBuilder, fqn string) ([]string, error) {
			return q.Subclasses(ctx, fqn, implementors)
		})
	cmd.Flags().BoolVar(&implementors, "implementors", false, "include classes implementing an interface")
	return cmd
}

// newClassListCmd builds a command answering a list of class names for
// one class argument.
func newClassListCmd(a *app, use, short string, run func(ctx context.Context, q *phpindex.QueryBuilder, fqn string) ([]string, error)) *cobra.Command {
	command := "query " + strings.Fields(use)[0]
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openIndex()
			if err != nil {
				return a.outputError(command, err)
			}
			defer e.Close()

			names, err := run(commandContext(cmd), e.Query(), args[0])
			if err != nil {
				return a.outputError(command, err)
			}
			if names == nil {
				names = []string{}
			}
			res := many(names)
			res.Command = command
			return a.outputResult(res)
		},
	}
}

func newFileUsesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "file-uses <file>",
		Short: "List the references recorded for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openIndex()
			if err != nil {
				return a.outputError("query file-uses", err)
			}
			defer e.Close()

			file, err := resolveFilePath(args[0])
			if err != nil {
				return a.outputError("query file-uses", err)
			}
			uses, err := e.Query().FileUses(commandContext(cmd), file)
			if err != nil {
				return a.outputError("query file-uses", err)
			}
			res := many(usesToCLI(uses))
			res.Command = "query file-uses"
			return a.outputResult(res)
		},
	}
}

func newIsBuiltCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "is-built",
		Short: "Report whether the index holds a completed build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openIndex()
			if err != nil {
				return a.outputError("query is-built", err)
			}
			defer e.Close()

			built, err := e.Query().IsBuilt(commandContext(cmd))
			if err != nil {
				return a.outputError("query is-built", err)
			}
			res := single(built)
			res.Command = "query is-built"
			return a.outputResult(res)
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>...",
		Short: "Full-text search over declaration names",
		Long:  "Every term must match the record's namespace, class or name. Terms shorter than three characters reject the whole query.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openIndex()
			if err != nil {
				return a.outputError("search", err)
			}
			defer e.Close()

			hits, err := e.Query().Search(commandContext(cmd), args)
			if err != nil {
				return a.outputError("search", err)
			}
			res := many(hitsToCLI(hits))
			res.Command = "search"
			return a.outputResult(res)
		},
	}
}

func newCompleteCmd(a *app) *cobra.Command {
	var stdin bool
	cmd := &cobra.Command{
		Use:   "complete <file> <line> <col>",
		Short: "List completion candidates for the cursor position",
		Long:  "The cursor sits between characters: col is the column the next typed character would take. Line and column are 1-based.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := a.openIndex()
			if err != nil {
				return a.outputError("complete", err)
			}
			defer e.Close()

			f, line, col, err := a.openPosition(ctx, e.Query(), cmd, stdin, args)
			if err != nil {
				return a.outputError("complete", err)
			}
			idx, partial := cursorToken(f, line, col)
			res, err := e.Completer().Complete(ctx, f, idx, partial)
			if err != nil {
				return a.outputError("complete", err)
			}
			out := single(completionToCLI(res, partial))
			out.Command = "complete"
			return a.outputResult(out)
		},
	}
	cmd.Flags().BoolVar(&stdin, "stdin", false, "read the file's current contents from standard input")
	return cmd
}

// cursorToken returns the token the cursor follows and the part of it
// already typed. Only words and variables count as typed text.
func cursorToken(f *phpfile.File, line, col int) (int, string) {
	idx := f.TokenIndexAt(line, col-1)
	if idx < 0 {
		return idx, ""
	}
	t := f.Tokens[idx]
	if t.Kind != lexer.Ident && t.Kind != lexer.Variable && t.Kind != lexer.Keyword {
		return idx, ""
	}
	n := col - t.Col
	if t.Line != line || n <= 0 || n > len(t.Text) {
		return idx, ""
	}
	return idx, t.Text[:n]
}

// --- Helpers ---

// openIndex opens the engine of the project the working directory (or
// --root) belongs to.
func (a *app) openIndex() (*phpindex.Engine, error) {
	root, err := a.projectRoot(nil)
	if err != nil {
		return nil, err
	}
	e, _, err := a.openEngine(root)
	return e, err
}

// openPosition parses the file named by args[0], from disk or standard
// input, and the 1-based line and column in args[1:3].
func (a *app) openPosition(ctx context.Context, q *phpindex.QueryBuilder, cmd *cobra.Command, stdin bool, args []string) (*phpfile.File, int, int, error) {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return nil, 0, 0, err
	}
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return nil, 0, 0, err
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return nil, 0, 0, err
	}

	var f *phpfile.File
	if stdin {
		var src []byte
		if src, err = io.ReadAll(cmd.InOrStdin()); err != nil {
			return nil, 0, 0, fmt.Errorf("reading stdin: %w", err)
		}
		f, err = q.Parse(file, string(src))
	} else {
		f, err = q.Open(ctx, file)
	}
	if err != nil {
		return nil, 0, 0, err
	}
	return f, line, col, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a 1-based positional argument.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", name, value)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid %s %q: must be at least 1", name, value)
	}
	return n, nil
}

func single(v any) CLIResult {
	one := 1
	return CLIResult{Results: v, TotalCount: &one}
}

func many[T any](items []T) CLIResult {
	n := len(items)
	return CLIResult{Results: items, TotalCount: &n}
}

// --- Conversions ---

func positionToCLI(p *store.Position) CLILocation {
	return CLILocation{File: p.File, Line: p.Line, Col: p.Col}
}

func declarationToCLI(d phpindex.Declaration) CLIDeclaration {
	return CLIDeclaration{Kind: string(d.Kind), Name: d.Name, Class: d.Class}
}

func usesToCLI(uses []*store.Use) []CLIUse {
	out := make([]CLIUse, 0, len(uses))
	for _, u := range uses {
		out = append(out, CLIUse{
			File: u.File, Line: u.Line, Col: u.Col,
			Kind: string(u.Kind), Name: u.Name, Class: u.Class, Routine: u.Routine,
		})
	}
	return out
}

func hitsToCLI(hits []*store.SearchHit) []CLISearchHit {
	out := make([]CLISearchHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, CLISearchHit{
			File: h.File, Line: h.Line, Col: h.Col,
			Kind: string(h.Kind), Title: h.Title, Score: h.Score,
		})
	}
	return out
}

func hierarchyToCLI(h *phpindex.Hierarchy) CLIHierarchy {
	c := h.Class
	out := CLIHierarchy{
		Class:        c.FQN(),
		Type:         c.Type,
		Abstract:     c.Abstract,
		Final:        c.Final,
		Location:     CLILocation{File: c.File, Line: c.Line, Col: c.Col},
		Parent:       h.Parent,
		Ancestors:    nonNil(h.Ancestors),
		Interfaces:   nonNil(h.Interfaces),
		Traits:       nonNil(h.Traits),
		Children:     nonNil(h.Children),
		Implementors: nonNil(h.Implementors),
		Methods:      []CLIMember{},
		Members:      []CLIMember{},
		Constants:    []CLIMember{},
	}
	for _, m := range h.Methods {
		out.Methods = append(out.Methods, CLIMember{
			Name: m.Name, Visibility: m.Visibility, Static: m.Static,
			Type: m.ReturnType, Line: m.Line, Col: m.Col,
		})
	}
	for _, m := range h.Members {
		out.Members = append(out.Members, CLIMember{
			Name: m.Name, Visibility: m.Visibility, Static: m.Static,
			Type: m.TypeHint, Line: m.Line, Col: m.Col,
		})
	}
	for _, k := range h.Constants {
		out.Constants = append(out.Constants, CLIMember{Name: k.Name, Line: k.Line, Col: k.Col})
	}
	return out
}

func callGraphToCLI(g *phpindex.CallGraph) CLICallGraph {
	out := CLICallGraph{
		Root:  declarationToCLI(g.Root),
		Depth: g.Depth,
		Nodes: make([]CLICallNode, 0, len(g.Nodes)),
		Edges: make([]CLICallEdge, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		node := CLICallNode{Declaration: declarationToCLI(n.Declaration), Depth: n.Depth}
		if n.Position != nil {
			loc := positionToCLI(n.Position)
			node.Location = &loc
		}
		out.Nodes = append(out.Nodes, node)
	}
	for _, e := range g.Edges {
		out.Edges = append(out.Edges, CLICallEdge{
			Caller: declarationToCLI(e.Caller),
			Callee: declarationToCLI(e.Callee),
			File:   e.File, Line: e.Line, Col: e.Col,
		})
	}
	return out
}

func hotspotsToCLI(hot []*phpindex.HotspotResult) []CLIHotspot {
	out := make([]CLIHotspot, 0, len(hot))
	for _, h := range hot {
		out = append(out, CLIHotspot{
			Declaration: declarationToCLI(h.Declaration),
			Location:    positionToCLI(h.Position),
			Uses:        h.Uses,
			Files:       h.Files,
		})
	}
	return out
}

func completionToCLI(res phpindex.CompletionResult, partial string) CLICompletion {
	out := CLICompletion{
		Partial:    partial,
		Receiver:   res.Receiver,
		Truncated:  res.Truncated,
		Candidates: make([]CLICandidate, 0, len(res.Candidates)),
	}
	for _, c := range res.Candidates {
		out.Candidates = append(out.Candidates, CLICandidate{Word: c.Word, Kind: string(c.Kind), Extra: c.Extra})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
