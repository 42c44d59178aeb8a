package phpindex

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jward/phpindex/internal/lexer"
	"github.com/jward/phpindex/internal/phpfile"
	"github.com/jward/phpindex/internal/store"
)

// MaxCandidates caps a completion list. Longer lists are cut and left
// unsorted.
const MaxCandidates = 10000

// KindVariable tags variable candidates.
const KindVariable Kind = "variable"

// Superglobals are offered wherever a variable is being typed.
var Superglobals = []string{
	"$_REQUEST", "$_GET", "$_POST", "$_COOKIE", "$_SESSION",
	"$_SERVER", "$GLOBALS", "$_FILES", "$_ENV",
}

// Candidate is one completion proposal. Extra is the receiver class for
// class members, the fully qualified name for classes and the namespace
// for functions.
type Candidate struct {
	Word  string
	Kind  Kind
	Extra string
}

// CompletionResult is a candidate list. Truncated is set when the list hit
// MaxCandidates.
type CompletionResult struct {
	Candidates []Candidate
	// Receiver is the inferred class after "->" or "::", if any.
	Receiver  string
	Truncated bool
}

// Completer produces completion candidates from a file and the index.
type Completer struct {
	q *QueryBuilder
}

// NewCompleter returns a Completer reading from s.
func NewCompleter(s store.Storage) *Completer {
	return &Completer{q: NewQueryBuilder(s)}
}

// Completer returns a Completer over the engine's storage.
func (e *Engine) Completer() *Completer {
	return NewCompleter(e.storage)
}

// candidates collects unique proposals matching a prefix. With byWord
// set, a word is proposed once per kind whatever its Extra, so the nearest
// declaration of an overridden member wins.
type candidates struct {
	prefix string
	byWord bool
	seen   map[Candidate]bool
	list   []Candidate
}

func (c *candidates) add(word string, kind Kind, extra string) {
	if !strings.HasPrefix(word, c.prefix) {
		return
	}
	cand := Candidate{Word: word, Kind: kind, Extra: extra}
	key := cand
	if c.byWord {
		key.Extra = ""
	}
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.list = append(c.list, cand)
}

// Complete lists the candidates for the cursor at tokenIndex of f, where
// partial is the part of the word already typed. The context decides the
// candidates:
//
//	"X::" static methods, static members and constants of X's class chain
//	"X->" instance methods and members of X's class, traits and ancestors
//	"$"   superglobals and variables in scope
//	else  classes, functions and constants
func (c *Completer) Complete(ctx context.Context, f *phpfile.File, tokenIndex int, partial string) (CompletionResult, error) {
	bound := c.q.Bind(f)
	res := CompletionResult{}
	cands := &candidates{prefix: partial, seen: map[Candidate]bool{}}

	op, recv := operatorBefore(bound, tokenIndex)
	var err error
	switch {
	case op != "":
		cands.byWord = true
		res.Receiver, err = bound.TypeAt(ctx, recv)
		if err == nil && res.Receiver != "" {
			err = c.members(ctx, bound, res.Receiver, op, isKeywordReceiver(bound, recv), cands)
		}
	case strings.HasPrefix(partial, "$") || tokenKind(bound, tokenIndex) == lexer.Variable:
		for _, v := range Superglobals {
			cands.add(v, KindVariable, "")
		}
		for _, v := range bound.VariablesInScope(tokenIndex) {
			if v != partial {
				cands.add(v, KindVariable, "")
			}
		}
	default:
		err = c.globals(ctx, bound, cands)
	}
	if err != nil {
		return CompletionResult{}, fmt.Errorf("complete: %w", err)
	}

	res.Candidates = cands.list
	if len(res.Candidates) >= MaxCandidates {
		res.Candidates = res.Candidates[:MaxCandidates]
		res.Truncated = true
		return res, nil
	}
	sort.SliceStable(res.Candidates, func(i, j int) bool {
		return sortKey(res.Candidates[i]) < sortKey(res.Candidates[j])
	})
	if res.Candidates == nil {
		res.Candidates = []Candidate{}
	}
	return res, nil
}

func tokenKind(f *phpfile.File, i int) lexer.Kind {
	if i < 0 || i >= len(f.Tokens) {
		return -1
	}
	return f.Tokens[i].Kind
}

func isOperator(f *phpfile.File, i int, ops ...string) bool {
	k := tokenKind(f, i)
	if k != lexer.Operator && k != lexer.Char {
		return false
	}
	for _, op := range ops {
		if f.Tokens[i].Text == op {
			return true
		}
	}
	return false
}

// operatorBefore finds a member operator at i, or just before the word
// being typed at i. It returns the operator and the index of the token
// ending the receiver expression.
func operatorBefore(f *phpfile.File, i int) (string, int) {
	ops := []string{"->", "?->", "::"}
	if isOperator(f, i, ops...) {
		return f.Tokens[i].Text, i - 1
	}
	k := tokenKind(f, i)
	if (k == lexer.Ident || k == lexer.Variable || k == lexer.Keyword) && isOperator(f, i-1, ops...) {
		return f.Tokens[i-1].Text, i - 2
	}
	return "", -1
}

// isKeywordReceiver reports whether the receiver is self, static or
// parent, where "::" also reaches instance methods.
func isKeywordReceiver(f *phpfile.File, i int) bool {
	if i < 0 || i >= len(f.Tokens) {
		return false
	}
	switch strings.ToLower(f.Tokens[i].Text) {
	case "self", "static", "parent":
		return true
	}
	return false
}

// members adds the members of class and its traits and ancestors. The
// index is consulted for every class of the chain, then the file's own
// declarations so unsaved edits show up.
func (c *Completer) members(ctx context.Context, f *phpfile.File, class, op string, keywordReceiver bool, cands *candidates) error {
	chain, err := f.Ancestors(ctx, class)
	if err != nil {
		return err
	}
	static := op == "::"

	addMethod := func(m *store.Method, owner string) {
		if m.Static == static || (static && keywordReceiver) {
			cands.add(m.Name, store.KindMethod, owner)
		}
	}
	addMember := func(m *store.Member, owner string) {
		if m.Static != static {
			return
		}
		name := m.Name
		if !static {
			name = strings.TrimPrefix(name, "$")
		}
		cands.add(name, store.KindMember, owner)
	}
	addConstant := func(k *store.ClassConstant, owner string) {
		if static {
			cands.add(k.Name, store.KindClassConstant, owner)
		}
	}

	inChain := make(map[string]bool, len(chain))
	for _, owner := range chain {
		inChain[owner] = true
		ns, name := store.SplitName(owner)
		methods, err := c.q.storage.ClassMethods(ctx, ns, name)
		if err != nil {
			return err
		}
		for _, m := range methods {
			addMethod(m, owner)
		}
		members, err := c.q.storage.ClassMembers(ctx, ns, name)
		if err != nil {
			return err
		}
		for _, m := range members {
			addMember(m, owner)
		}
		consts, err := c.q.storage.ClassConstants(ctx, ns, name)
		if err != nil {
			return err
		}
		for _, k := range consts {
			addConstant(k, owner)
		}
	}

	for _, d := range f.Declarations() {
		switch d := d.(type) {
		case *store.Method:
			if owner := store.JoinName(d.Namespace, d.Class); inChain[owner] {
				addMethod(d, owner)
			}
		case *store.Member:
			if owner := store.JoinName(d.Namespace, d.Class); inChain[owner] {
				addMember(d, owner)
			}
		case *store.ClassConstant:
			if owner := store.JoinName(d.Namespace, d.Class); inChain[owner] {
				addConstant(d, owner)
			}
		}
	}
	return nil
}

// globals adds every class, function and constant of the index and of f.
func (c *Completer) globals(ctx context.Context, f *phpfile.File, cands *candidates) error {
	classes, err := c.q.storage.AllClassNames(ctx)
	if err != nil {
		return err
	}
	for _, fqn := range classes {
		_, short := store.SplitName(fqn)
		cands.add(short, store.KindClass, fqn)
	}
	functions, err := c.q.storage.AllFunctions(ctx)
	if err != nil {
		return err
	}
	for _, fn := range functions {
		cands.add(fn.Name, store.KindFunction, fn.Namespace)
	}
	constants, err := c.q.storage.AllConstants(ctx)
	if err != nil {
		return err
	}
	for _, k := range constants {
		cands.add(k.Name, store.KindConstant, "")
	}

	for _, d := range f.Declarations() {
		switch d := d.(type) {
		case *store.Class:
			cands.add(d.Name, store.KindClass, d.FQN())
		case *store.Function:
			cands.add(d.Name, store.KindFunction, d.Namespace)
		case *store.Constant:
			cands.add(d.Name, store.KindConstant, "")
		}
	}
	return nil
}

// sortKey orders shorter words first, then alphabetically. Classes are
// further ordered by namespace.
func sortKey(c Candidate) string {
	key := fmt.Sprintf("%04d%s", len(c.Word), c.Word)
	if c.Kind == store.KindClass {
		ns, _ := store.SplitName(c.Extra)
		key += fmt.Sprintf("%04d%s", len(ns), ns)
	}
	return key
}
