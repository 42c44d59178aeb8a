package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/phpindex/internal/pathrules"
)

func newRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage the include/exclude path rules",
		Long:  "Paths are relative to the project root. The longest rule covering a path decides whether it is indexed; paths no rule covers are included. Run update afterwards to apply changes.",
	}

	var exclude bool
	add := &cobra.Command{
		Use:   "add <path>",
		Short: "Add or change the rule for a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editRules("rules add", args[0], func(r *pathrules.Rules, p string) error {
				r.Add(p, exclude)
				return nil
			})
		},
	}
	add.Flags().BoolVar(&exclude, "exclude", false, "exclude the path instead of including it")

	remove := &cobra.Command{
		Use:   "remove <path>",
		Short: "Delete the rule for a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editRules("rules remove", args[0], func(r *pathrules.Rules, p string) error {
				if !r.Remove(p) {
					return fmt.Errorf("no rule for %q", p)
				}
				return nil
			})
		},
	}

	toggle := &cobra.Command{
		Use:   "toggle <path>",
		Short: "Flip the rule for a path between include and exclude",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editRules("rules toggle", args[0], func(r *pathrules.Rules, p string) error {
				if !r.Toggle(p) {
					return fmt.Errorf("no rule for %q", p)
				}
				return nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the rules in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, rules, err := a.loadRules()
			if err != nil {
				return a.outputError("rules list", err)
			}
			return a.outputResult(CLIResult{Command: "rules list", Results: rulesToCLI(rules)})
		},
	}

	cmd.AddCommand(add, remove, toggle, list)
	return cmd
}

// loadRules reads the rules file named by the project config.
func (a *app) loadRules() (string, *pathrules.Rules, error) {
	root, err := a.projectRoot(nil)
	if err != nil {
		return "", nil, err
	}
	cfg, err := a.loadConfig(root)
	if err != nil {
		return "", nil, err
	}
	rules, err := pathrules.Load(cfg.RulesFile)
	if err != nil {
		return "", nil, err
	}
	return cfg.RulesFile, rules, nil
}

// editRules applies edit to the rule for p and saves the rules file.
func (a *app) editRules(command, p string, edit func(*pathrules.Rules, string) error) error {
	file, rules, err := a.loadRules()
	if err != nil {
		return a.outputError(command, err)
	}
	root, err := a.projectRoot(nil)
	if err != nil {
		return a.outputError(command, err)
	}
	rel, err := rootRelative(root, p)
	if err != nil {
		return a.outputError(command, err)
	}
	if err := edit(rules, rel); err != nil {
		return a.outputError(command, err)
	}
	if err := rules.Save(file); err != nil {
		return a.outputError(command, err)
	}
	return a.outputResult(CLIResult{Command: command, Results: rulesToCLI(rules)})
}

// rootRelative turns an absolute path under root into a root-relative
// one. Relative paths are taken as root-relative already.
func rootRelative(root, p string) (string, error) {
	if !filepath.IsAbs(p) {
		return pathrules.Normalize(p), nil
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the project root %s", p, root)
	}
	return pathrules.Normalize(rel), nil
}

func rulesToCLI(r *pathrules.Rules) []CLIRule {
	out := []CLIRule{}
	for _, rule := range r.List() {
		out = append(out, CLIRule{Path: rule.Path, Exclude: rule.Exclude})
	}
	return out
}
