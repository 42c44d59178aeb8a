package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// outputResult writes a result in the selected format.
func (a *app) outputResult(result CLIResult) error {
	if a.format == "text" {
		return outputResultText(a.out, result)
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func (a *app) outputError(command string, err error) error {
	a.errorHandled = true
	if a.format == "text" {
		fmt.Fprintf(a.errOut, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// formatLocationsText formats locations as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.Line, loc.Col)
	}
}

func formatUsesText(w io.Writer, uses []CLIUse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAME\tCLASS\tROUTINE\tLOCATION")
	for _, u := range uses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s:%d:%d\n",
			u.Kind, u.Name, u.Class, u.Routine, u.File, u.Line, u.Col)
	}
	tw.Flush()
}

func formatSearchText(w io.Writer, hits []CLISearchHit) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tKIND\tTITLE\tLOCATION")
	for _, h := range hits {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s:%d:%d\n", h.Score, h.Kind, h.Title, h.File, h.Line, h.Col)
	}
	tw.Flush()
}

// formatHierarchyText formats a class hierarchy as readable text.
func formatHierarchyText(w io.Writer, h CLIHierarchy) {
	fmt.Fprintf(w, "%s %s\n", h.Type, h.Class)
	fmt.Fprintf(w, "Location: %s:%d:%d\n", h.Location.File, h.Location.Line, h.Location.Col)
	if len(h.Ancestors) > 0 {
		fmt.Fprintf(w, "Extends: %s\n", strings.Join(h.Ancestors, " < "))
	} else if h.Parent != "" {
		fmt.Fprintf(w, "Extends: %s\n", h.Parent)
	}
	printList(w, "Implements", h.Interfaces)
	printList(w, "Uses", h.Traits)
	printList(w, "Children", h.Children)
	printList(w, "Implementors", h.Implementors)

	if len(h.Methods)+len(h.Members)+len(h.Constants) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  KIND\tNAME\tVISIBILITY\tTYPE\tLINE")
	for _, k := range h.Constants {
		fmt.Fprintf(tw, "  const\t%s\t\t\t%d\n", k.Name, k.Line)
	}
	for _, m := range h.Members {
		fmt.Fprintf(tw, "  property\t%s\t%s\t%s\t%d\n", m.Name, modifiers(m), m.Type, m.Line)
	}
	for _, m := range h.Methods {
		fmt.Fprintf(tw, "  method\t%s()\t%s\t%s\t%d\n", m.Name, modifiers(m), m.Type, m.Line)
	}
	tw.Flush()
}

func modifiers(m CLIMember) string {
	if m.Static {
		return m.Visibility + " static"
	}
	return m.Visibility
}

func printList(w io.Writer, label string, items []string) {
	if len(items) > 0 {
		fmt.Fprintf(w, "%s: %s\n", label, strings.Join(items, ", "))
	}
}

func declName(d CLIDeclaration) string {
	switch {
	case d.Kind == "method":
		return d.Class + "->" + d.Name + "()"
	case d.Kind == "function":
		return d.Name + "()"
	case d.Class != "":
		return d.Class + "::" + d.Name
	}
	return d.Name
}

// formatCallGraphText formats call edges as aligned columns.
func formatCallGraphText(w io.Writer, g CLICallGraph) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CALLER\tCALLEE\tFILE\tLINE\tCOL")
	for _, e := range g.Edges {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
			declName(e.Caller), declName(e.Callee), e.File, e.Line, e.Col)
	}
	tw.Flush()
}

func formatHotspotsText(w io.Writer, hot []CLIHotspot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USES\tFILES\tNAME\tLOCATION")
	for _, h := range hot {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s:%d:%d\n",
			h.Uses, h.Files, declName(h.Declaration), h.Location.File, h.Location.Line, h.Location.Col)
	}
	tw.Flush()
}

func formatCompletionText(w io.Writer, c CLICompletion) {
	if c.Receiver != "" {
		fmt.Fprintf(w, "# %s\n", c.Receiver)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, cand := range c.Candidates {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", cand.Word, cand.Kind, cand.Extra)
	}
	tw.Flush()
	if c.Truncated {
		fmt.Fprintf(w, "\n(truncated at %d candidates)\n", len(c.Candidates))
	}
}

func formatRulesText(w io.Writer, rules []CLIRule) {
	for _, r := range rules {
		sign := "+"
		if r.Exclude {
			sign = "-"
		}
		fmt.Fprintf(w, "%s %s\n", sign, r.Path)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLILocation:
		formatLocationsText(w, []CLILocation{v})
	case CLIDeclaration:
		if v.Class != "" {
			fmt.Fprintf(w, "%s %s %s\n", v.Kind, v.Class, v.Name)
		} else {
			fmt.Fprintf(w, "%s %s\n", v.Kind, v.Name)
		}
	case []CLIUse:
		formatUsesText(w, v)
	case []CLISearchHit:
		formatSearchText(w, v)
	case CLIHierarchy:
		formatHierarchyText(w, v)
	case CLICompletion:
		formatCompletionText(w, v)
	case CLICallGraph:
		formatCallGraphText(w, v)
	case []CLIHotspot:
		formatHotspotsText(w, v)
	case []CLIRule:
		formatRulesText(w, v)
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
	case string:
		fmt.Fprintln(w, v)
	case bool:
		fmt.Fprintln(w, v)
	case nil:
		// No output for nil results (e.g., definition with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
