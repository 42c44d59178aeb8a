// Package parser recovers the block structure and declarations of a PHP
// token stream without building a syntax tree.
//
// Parse runs a single left-to-right pass collecting brace blocks and
// declaration sites, then enriches the sorted blocks in dependency order:
// classes first, then functions and methods (which need to know their
// enclosing class), then method modifiers, and finally use-edges.
package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jward/phpindex/internal/lexer"
)

// ParseError reports a structural inconsistency such as an unmatched
// closing brace.
type ParseError struct {
	Msg        string
	TokenIndex int
	Line       int
	Col        int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at line %d column %d (token #%d)", e.Msg, e.Line, e.Col, e.TokenIndex)
}

type parser struct {
	tokens   []lexer.Token
	comments []lexer.Comment
	blocks   []*Block
	res      *Result

	classSites    []int
	functionSites []int
	constSites    []int
	variables     []int
	innerUses     []int // "use" keywords at depth > 0
	uses          []Use
}

// Parse builds the block list and file-level declarations for tokens.
func Parse(tokens []lexer.Token, comments []lexer.Comment) (*Result, error) {
	p := &parser{
		tokens:   tokens,
		comments: comments,
		res: &Result{
			UseAliases:        map[string]string{},
			UseInsertionIndex: -1,
		},
	}
	if err := p.scan(); err != nil {
		return nil, err
	}
	sort.Slice(p.blocks, func(i, j int) bool { return p.blocks[i].Begin < p.blocks[j].Begin })

	p.assignClasses()
	p.assignRoutines()
	members := p.memberIndices()
	p.enrichClasses(members)
	p.enrichRoutines()
	p.enrichMethods()
	p.assignUses()
	p.collectConstants()

	p.res.Blocks = p.blocks
	return p.res, nil
}

// at returns the token at i or a zero token when i is out of range.
func (p *parser) at(i int) lexer.Token {
	if i < 0 || i >= len(p.tokens) {
		return lexer.Token{Kind: -1}
	}
	return p.tokens[i]
}

func (p *parser) isKeyword(i int, words ...string) bool {
	t := p.at(i)
	if t.Kind != lexer.Keyword {
		return false
	}
	for _, w := range words {
		if t.Is(w) {
			return true
		}
	}
	return false
}

func (p *parser) isChar(i int, chars ...string) bool {
	t := p.at(i)
	if t.Kind != lexer.Char && t.Kind != lexer.Operator {
		return false
	}
	for _, c := range chars {
		if t.Text == c {
			return true
		}
	}
	return false
}

func (p *parser) scan() error {
	var stack []int
	namespaceSeen := false

	for i, tok := range p.tokens {
		switch {
		case p.isKeyword(i, "namespace") && p.at(i+1).Kind == lexer.Ident:
			if !namespaceSeen {
				namespaceSeen = true
				p.res.Namespace = strings.TrimPrefix(p.at(i+1).Text, `\`)
				if p.isChar(i+2, ";") {
					p.res.UseInsertionIndex = i + 2
				}
			}

		case p.isKeyword(i, "use"):
			if len(stack) == 0 {
				if end := p.useStatement(i); end > 0 {
					p.res.UseInsertionIndex = end
				}
			} else {
				p.innerUses = append(p.innerUses, i)
			}

		case p.isKeyword(i, "class", "interface", "trait"):
			p.classSites = append(p.classSites, i)

		case p.isKeyword(i, "function", "const") && p.isKeyword(i-1, "use"):
			// use function / use const imports declare nothing

		case p.isKeyword(i, "function"):
			p.functionSites = append(p.functionSites, i)

		case p.isKeyword(i, "const"):
			p.constSites = append(p.constSites, i)

		case tok.Kind == lexer.Variable:
			p.variables = append(p.variables, i)

		case tok.Kind == lexer.Char && tok.Text == ";":
			if len(p.classSites)+len(p.functionSites) > 0 {
				p.blocks = append(p.blocks, &Block{Begin: i, End: i, Site: -1})
			}

		case tok.Kind == lexer.Char && tok.Text == "{":
			stack = append(stack, i)

		case tok.Kind == lexer.Char && tok.Text == "}":
			if len(stack) == 0 {
				return &ParseError{Msg: "unmatched '}'", TokenIndex: i, Line: tok.Line, Col: tok.Col}
			}
			begin := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			p.blocks = append(p.blocks, &Block{Begin: begin, End: i, Site: -1})

		case tok.Kind == lexer.Ident:
			if u, ok := p.classifyUse(i); ok {
				p.uses = append(p.uses, u)
			}
		}
	}

	// Unclosed blocks run to the end of the file so half-typed buffers
	// still yield their declarations.
	for len(stack) > 0 {
		begin := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		p.blocks = append(p.blocks, &Block{Begin: begin, End: len(p.tokens), Site: -1})
	}
	return nil
}

// useStatement records the aliases of a top-level use statement starting
// at keyword index i and returns the index of its terminating ";".
func (p *parser) useStatement(i int) int {
	j := i + 1
	if p.isKeyword(j, "function", "const") {
		for j < len(p.tokens) && !p.isChar(j, ";") {
			j++
		}
		return j
	}
	for j < len(p.tokens) {
		name := p.at(j)
		if name.Kind != lexer.Ident {
			return -1
		}
		fqn := strings.TrimPrefix(name.Text, `\`)
		j++
		if p.isChar(j, `\`) && p.isChar(j+1, "{") {
			// Group use: use Prefix\{A, B as C};
			j += 2
			for p.at(j).Kind == lexer.Ident {
				member := p.at(j).Text
				alias := lastSegment(member)
				j++
				if p.isKeyword(j, "as") && p.at(j+1).Kind == lexer.Ident {
					alias = p.at(j + 1).Text
					j += 2
				}
				p.res.UseAliases[alias] = fqn + `\` + member
				if !p.isChar(j, ",") {
					break
				}
				j++
			}
			if p.isChar(j, "}") {
				j++
			}
		} else {
			alias := lastSegment(fqn)
			if p.isKeyword(j, "as") && p.at(j+1).Kind == lexer.Ident {
				alias = p.at(j + 1).Text
				j += 2
			}
			p.res.UseAliases[alias] = fqn
		}
		if p.isChar(j, ";") {
			return j
		}
		if !p.isChar(j, ",") {
			return -1
		}
		j++
	}
	return -1
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, `\`); i >= 0 {
		return name[i+1:]
	}
	return name
}

var (
	literalNames   = map[string]bool{"true": true, "false": true, "null": true}
	typePrefixes   = []string{"use", "extends", "implements", "new", "instanceof", "insteadof"}
	declKeywords   = []string{"class", "interface", "trait", "function", "const", "namespace"}
	memberOperator = []string{"->", "?->", "::"}
)

// classifyUse decides whether identifier i references a declaration and of
// which kind, using one token of lookbehind and lookahead.
func (p *parser) classifyUse(i int) (Use, bool) {
	tok := p.tokens[i]
	if literalNames[strings.ToLower(tok.Text)] || p.isKeyword(i-1, declKeywords...) {
		return Use{}, false
	}
	if p.isKeyword(i-1, "as") || (p.isChar(i-1, "&") && p.isKeyword(i-2, "function")) {
		return Use{}, false
	}
	onClass := p.isChar(i-1, memberOperator...)
	routine := p.isChar(i+1, "(")
	isType := p.at(i+1).Kind == lexer.Variable ||
		p.isKeyword(i-1, typePrefixes...) ||
		p.isChar(i+1, "::") ||
		(p.isChar(i-1, ":") && p.isChar(i-2, ")"))

	var kind UseKind
	switch {
	case onClass && tok.Text == "class":
		return Use{}, false
	case onClass && routine:
		kind = UseMethod
	case onClass:
		kind = UseMember
	case routine && !p.isKeyword(i-1, "new"):
		kind = UseFunction
	case isType || routine:
		kind = UseClass
	default:
		kind = UseConstant
	}
	return Use{TokenIndex: i, Line: tok.Line, Col: tok.Col, Name: tok.Text, Kind: kind}, true
}
