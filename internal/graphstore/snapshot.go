package graphstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/jward/phpindex/internal/store"
)

const snapshotVersion = 1

// snapshot is the YAML form of the graph. Edges are not stored; they are
// rebuilt from the records on load.
type snapshot struct {
	Version        int                    `yaml:"version"`
	Files          []*store.File          `yaml:"files"`
	Classes        []*store.Class         `yaml:"classes,omitempty"`
	ClassConstants []*store.ClassConstant `yaml:"class_constants,omitempty"`
	Methods        []*store.Method        `yaml:"methods,omitempty"`
	Members        []*store.Member        `yaml:"members,omitempty"`
	Functions      []*store.Function      `yaml:"functions,omitempty"`
	Constants      []*store.Constant      `yaml:"constants,omitempty"`
	Uses           []*store.Use           `yaml:"uses,omitempty"`
}

// snapshot captures the graph ordered by file path, then insertion order.
func (g *graph) snapshot() *snapshot {
	s := &snapshot{Version: snapshotVersion, Files: []*store.File{}}
	paths := make([]string, 0, len(g.owned)+len(g.files))
	seen := map[string]bool{}
	for p := range g.files {
		paths = append(paths, p)
		seen[p] = true
	}
	for p := range g.owned {
		if !seen[p] {
			paths = append(paths, p)
			seen[p] = true
		}
	}
	for p := range g.refs {
		if !seen[p] {
			paths = append(paths, p)
			seen[p] = true
		}
	}
	sort.Strings(paths)

	for _, p := range paths {
		if f := g.files[p]; f != nil {
			s.Files = append(s.Files, f)
		}
		for _, n := range g.owned[p] {
			switch d := n.decl.(type) {
			case *store.Class:
				s.Classes = append(s.Classes, d)
			case *store.ClassConstant:
				s.ClassConstants = append(s.ClassConstants, d)
			case *store.Method:
				s.Methods = append(s.Methods, d)
			case *store.Member:
				s.Members = append(s.Members, d)
			case *store.Function:
				s.Functions = append(s.Functions, d)
			case *store.Constant:
				s.Constants = append(s.Constants, d)
			}
		}
		for _, e := range g.refs[p] {
			s.Uses = append(s.Uses, e.use)
		}
	}
	return s
}

// restore rebuilds a graph from a snapshot.
func (s *snapshot) restore() *graph {
	g := newGraph()
	for _, f := range s.Files {
		g.addFile(f)
	}
	for _, c := range s.Classes {
		g.addClass(c)
	}
	for _, c := range s.ClassConstants {
		g.addClassConstant(c)
	}
	for _, m := range s.Methods {
		g.addMethod(m)
	}
	for _, m := range s.Members {
		g.addMember(m)
	}
	for _, f := range s.Functions {
		g.addFunction(f)
	}
	for _, c := range s.Constants {
		g.addConstant(c)
	}
	for _, u := range s.Uses {
		g.addUse(u)
	}
	return g
}

// loadSnapshot reads the graph at path. A missing file yields an empty
// graph.
func loadSnapshot(path string) (*graph, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return newGraph(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var s snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot %s: unsupported version %d", path, s.Version)
	}
	return s.restore(), nil
}

// writeSnapshot writes the graph to a temporary file renamed over path.
func writeSnapshot(path string, g *graph) error {
	data, err := yaml.Marshal(g.snapshot())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
