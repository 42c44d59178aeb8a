// Package pathrules decides which files of a project are indexed. A rule
// set is an ordered list of include and exclude paths; the rule with the
// longest path that prefixes a file wins, and files no rule covers are
// included.
package pathrules

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	include = "include"
	exclude = "exclude"
)

// Rule includes or excludes a path and everything below it. Paths are
// slash separated and relative to the project root.
type Rule struct {
	Path    string
	Exclude bool
}

// Rules is an ordered rule set.
type Rules struct {
	rules []Rule
}

// New returns a rule set holding rules in order.
func New(rules ...Rule) *Rules {
	r := &Rules{}
	for _, rule := range rules {
		r.Add(rule.Path, rule.Exclude)
	}
	return r
}

// Normalize cleans p into the form rules are stored and matched in.
func Normalize(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// List returns a copy of the rules in order.
func (r *Rules) List() []Rule {
	return append([]Rule{}, r.rules...)
}

// Add appends a rule, or updates the rule already holding p.
func (r *Rules) Add(p string, isExclude bool) {
	p = Normalize(p)
	for i := range r.rules {
		if r.rules[i].Path == p {
			r.rules[i].Exclude = isExclude
			return
		}
	}
	r.rules = append(r.rules, Rule{Path: p, Exclude: isExclude})
}

// Remove deletes the rule for p and reports whether one existed.
func (r *Rules) Remove(p string) bool {
	p = Normalize(p)
	for i, rule := range r.rules {
		if rule.Path == p {
			r.rules = append(r.rules[:i], r.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Toggle flips the rule for p between include and exclude. It reports
// false when there is no such rule.
func (r *Rules) Toggle(p string) bool {
	p = Normalize(p)
	for i := range r.rules {
		if r.rules[i].Path == p {
			r.rules[i].Exclude = !r.rules[i].Exclude
			return true
		}
	}
	return false
}

// covers reports whether rule path prefix covers p on a segment boundary.
func covers(prefix, p string) bool {
	return prefix == "" || p == prefix || strings.HasPrefix(p, prefix+"/")
}

// Included reports whether p is indexed. The covering rule with the
// longest path decides; when two rules have the same path length the later
// one wins.
func (r *Rules) Included(p string) bool {
	p = Normalize(p)
	best := -1
	included := true
	for _, rule := range r.rules {
		if !covers(rule.Path, p) || len(rule.Path) < best {
			continue
		}
		best = len(rule.Path)
		included = !rule.Exclude
	}
	return included
}

// IncludesBelow reports whether an include rule lies strictly below
// directory p, so an excluded directory still has to be walked.
func (r *Rules) IncludesBelow(p string) bool {
	p = Normalize(p)
	for _, rule := range r.rules {
		if !rule.Exclude && rule.Path != p && covers(p, rule.Path) {
			return true
		}
	}
	return false
}

// Read parses "path,include|exclude" records.
func Read(rd io.Reader) (*Rules, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true
	r := &Rules{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return r, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read rules: %w", err)
		}
		switch strings.ToLower(rec[1]) {
		case include:
			r.Add(rec[0], false)
		case exclude:
			r.Add(rec[0], true)
		default:
			line, _ := cr.FieldPos(1)
			return nil, fmt.Errorf("read rules: line %d: unknown rule type %q", line, rec[1])
		}
	}
}

// Write emits the rules as CSV.
func (r *Rules) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	for _, rule := range r.rules {
		kind := include
		if rule.Exclude {
			kind = exclude
		}
		if err := cw.Write([]string{rule.Path, kind}); err != nil {
			return fmt.Errorf("write rules: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Load reads the rules file at file. A missing file is an empty rule set.
func Load(file string) (*Rules, error) {
	f, err := os.Open(file)
	if errors.Is(err, fs.ErrNotExist) {
		return &Rules{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Save writes the rules file, creating its directory.
func (r *Rules) Save(file string) error {
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("save rules: %w", err)
	}
	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("save rules: %w", err)
	}
	if err := r.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
