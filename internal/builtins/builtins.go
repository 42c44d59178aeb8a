// Package builtins holds the declarations the PHP runtime provides without
// source: core functions, classes, interfaces and constants. A full build
// seeds them under store.BuiltinPath so they resolve and complete like
// project code.
package builtins

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jward/phpindex/internal/store"
)

//go:embed manifest.yaml
var defaultManifest []byte

// Manifest lists built-in declarations. Built-ins live in the global
// namespace.
type Manifest struct {
	Functions []Function `yaml:"functions"`
	Classes   []Class    `yaml:"classes"`
	Constants []Constant `yaml:"constants"`
}

type Arg struct {
	Name    string  `yaml:"name"`
	Type    string  `yaml:"type,omitempty"`
	Default *string `yaml:"default,omitempty"`
}

type Function struct {
	Name   string `yaml:"name"`
	Doc    string `yaml:"doc,omitempty"`
	Args   []Arg  `yaml:"args,omitempty"`
	Return string `yaml:"return,omitempty"`
}

type Method struct {
	Name       string `yaml:"name"`
	Doc        string `yaml:"doc,omitempty"`
	Visibility string `yaml:"visibility,omitempty"`
	Static     bool   `yaml:"static,omitempty"`
	Abstract   bool   `yaml:"abstract,omitempty"`
	Final      bool   `yaml:"final,omitempty"`
	Args       []Arg  `yaml:"args,omitempty"`
	Return     string `yaml:"return,omitempty"`
}

type Member struct {
	Name       string `yaml:"name"`
	Doc        string `yaml:"doc,omitempty"`
	Visibility string `yaml:"visibility,omitempty"`
	Static     bool   `yaml:"static,omitempty"`
	Type       string `yaml:"type,omitempty"`
}

type Constant struct {
	Name string `yaml:"name"`
	Doc  string `yaml:"doc,omitempty"`
}

type Class struct {
	Name       string     `yaml:"name"`
	Type       string     `yaml:"type,omitempty"` // class when empty
	Parent     string     `yaml:"parent,omitempty"`
	Interfaces []string   `yaml:"interfaces,omitempty"`
	Abstract   bool       `yaml:"abstract,omitempty"`
	Final      bool       `yaml:"final,omitempty"`
	Doc        string     `yaml:"doc,omitempty"`
	Methods    []Method   `yaml:"methods,omitempty"`
	Members    []Member   `yaml:"members,omitempty"`
	Constants  []Constant `yaml:"constants,omitempty"`
}

// Default returns the manifest compiled into the binary.
func Default() (*Manifest, error) {
	return Parse(defaultManifest)
}

// Load reads a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read builtins manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse builtins manifest: %w", err)
	}
	for i, c := range m.Classes {
		if c.Name == "" {
			return nil, fmt.Errorf("parse builtins manifest: class %d has no name", i)
		}
	}
	return &m, nil
}

// Len returns the number of declarations Seed writes.
func (m *Manifest) Len() int {
	n := len(m.Functions) + len(m.Constants)
	for _, c := range m.Classes {
		n += 1 + len(c.Methods) + len(c.Members) + len(c.Constants)
	}
	return n
}

func convertArgs(args []Arg) []store.Argument {
	out := make([]store.Argument, len(args))
	for i, a := range args {
		out[i] = store.Argument{TypeHint: a.Type, Name: a.Name}
		if a.Default != nil {
			out[i].Default = *a.Default
			out[i].HasDefault = true
		}
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Seed writes every declaration of the manifest to w under
// store.BuiltinPath at line 0, column 0. No file record is written, so
// an update never sees the built-ins as a deleted file.
func (m *Manifest) Seed(ctx context.Context, w store.Writer) error {
	const path = store.BuiltinPath
	for _, f := range m.Functions {
		err := w.AddFunction(ctx, &store.Function{
			File: path, Name: f.Name, DocComment: f.Doc,
			Args: convertArgs(f.Args), ReturnType: f.Return,
		})
		if err != nil {
			return fmt.Errorf("seed function %s: %w", f.Name, err)
		}
	}
	for _, c := range m.Classes {
		err := w.AddClass(ctx, &store.Class{
			File: path, Name: c.Name, Type: orDefault(c.Type, "class"),
			Parent: c.Parent, Interfaces: c.Interfaces,
			Abstract: c.Abstract, Final: c.Final, DocComment: c.Doc,
		})
		if err != nil {
			return fmt.Errorf("seed class %s: %w", c.Name, err)
		}
		for _, k := range c.Constants {
			err := w.AddClassConstant(ctx, &store.ClassConstant{
				File: path, Class: c.Name, Name: k.Name, DocComment: k.Doc,
			})
			if err != nil {
				return fmt.Errorf("seed class constant %s::%s: %w", c.Name, k.Name, err)
			}
		}
		for _, mt := range c.Methods {
			err := w.AddMethod(ctx, &store.Method{
				File: path, Class: c.Name, Name: mt.Name,
				Visibility: orDefault(mt.Visibility, "public"),
				Static:     mt.Static, Abstract: mt.Abstract, Final: mt.Final,
				DocComment: mt.Doc, Args: convertArgs(mt.Args), ReturnType: mt.Return,
			})
			if err != nil {
				return fmt.Errorf("seed method %s::%s: %w", c.Name, mt.Name, err)
			}
		}
		for _, mb := range c.Members {
			err := w.AddMember(ctx, &store.Member{
				File: path, Class: c.Name, Name: mb.Name,
				Visibility: orDefault(mb.Visibility, "public"),
				Static:     mb.Static, TypeHint: mb.Type, DocComment: mb.Doc,
			})
			if err != nil {
				return fmt.Errorf("seed member %s::%s: %w", c.Name, mb.Name, err)
			}
		}
	}
	for _, k := range m.Constants {
		if err := w.AddConstant(ctx, &store.Constant{File: path, Name: k.Name, DocComment: k.Doc}); err != nil {
			return fmt.Errorf("seed constant %s: %w", k.Name, err)
		}
	}
	return nil
}
