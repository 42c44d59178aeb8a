package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLILocation is a 1-based source position.
type CLILocation struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

// CLIDeclaration names a resolved declaration.
type CLIDeclaration struct {
	Kind  string `json:"kind"`
	Name  string `json:"name"`
	Class string `json:"class,omitempty"`
}

// CLIUse is one recorded reference.
type CLIUse struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Class   string `json:"class,omitempty"`
	Routine string `json:"routine,omitempty"`
}

type CLISearchHit struct {
	File  string `json:"file"`
	Line  int    `json:"line"`
	Col   int    `json:"col"`
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Score int    `json:"score"`
}

// CLICallNode is a routine in a call graph.
type CLICallNode struct {
	Declaration CLIDeclaration `json:"declaration"`
	Location    *CLILocation   `json:"location,omitempty"`
	Depth       int            `json:"depth"`
}

// CLICallEdge is one call site.
type CLICallEdge struct {
	Caller CLIDeclaration `json:"caller"`
	Callee CLIDeclaration `json:"callee"`
	File   string         `json:"file"`
	Line   int            `json:"line"`
	Col    int            `json:"col"`
}

type CLICallGraph struct {
	Root  CLIDeclaration `json:"root"`
	Depth int            `json:"depth"`
	Nodes []CLICallNode  `json:"nodes"`
	Edges []CLICallEdge  `json:"edges"`
}

type CLIHotspot struct {
	Declaration CLIDeclaration `json:"declaration"`
	Location    CLILocation    `json:"location"`
	Uses        int            `json:"uses"`
	Files       int            `json:"files"`
}

// CLIMember is a method, property or constant inside a hierarchy.
type CLIMember struct {
	Name       string `json:"name"`
	Visibility string `json:"visibility,omitempty"`
	Static     bool   `json:"static,omitempty"`
	Type       string `json:"type,omitempty"`
	Line       int    `json:"line"`
	Col        int    `json:"col"`
}

// CLIHierarchy is the inheritance view of one class.
type CLIHierarchy struct {
	Class        string      `json:"class"`
	Type         string      `json:"type"`
	Abstract     bool        `json:"abstract,omitempty"`
	Final        bool        `json:"final,omitempty"`
	Location     CLILocation `json:"location"`
	Parent       string      `json:"parent,omitempty"`
	Ancestors    []string    `json:"ancestors"`
	Interfaces   []string    `json:"interfaces"`
	Traits       []string    `json:"traits"`
	Children     []string    `json:"children"`
	Implementors []string    `json:"implementors"`
	Methods      []CLIMember `json:"methods"`
	Members      []CLIMember `json:"members"`
	Constants    []CLIMember `json:"constants"`
}

type CLICandidate struct {
	Word  string `json:"word"`
	Kind  string `json:"kind"`
	Extra string `json:"extra,omitempty"`
}

// CLICompletion is a completion list for one cursor position.
type CLICompletion struct {
	Partial    string         `json:"partial"`
	Receiver   string         `json:"receiver,omitempty"`
	Truncated  bool           `json:"truncated,omitempty"`
	Candidates []CLICandidate `json:"candidates"`
}

// CLIRule is one include/exclude path rule.
type CLIRule struct {
	Path    string `json:"path"`
	Exclude bool   `json:"exclude"`
}
