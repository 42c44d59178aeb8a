package parser

import "github.com/jward/phpindex/internal/lexer"

// EnclosingBlock returns the innermost block strictly containing token
// index idx, restricted to the given kinds when any are passed. Blocks
// must be sorted by Begin.
func EnclosingBlock(blocks []*Block, idx int, kinds ...BlockKind) *Block {
	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		if b.Begin >= idx || !b.Contains(idx) {
			continue
		}
		if len(kinds) == 0 {
			return b
		}
		for _, k := range kinds {
			if b.Kind == k {
				return b
			}
		}
	}
	return nil
}

// LeadingComment returns the comment directly preceding token index idx,
// or nil. When several comments precede the token the closest one wins.
func LeadingComment(comments []lexer.Comment, idx int) *lexer.Comment {
	for i := len(comments) - 1; i >= 0; i-- {
		if comments[i].Next == idx {
			return &comments[i]
		}
		if comments[i].Next < idx {
			break
		}
	}
	return nil
}

var brackets = map[string]string{
	"(": ")", "[": "]", "{": "}",
	")": "(", "]": "[", "}": "{",
}

// MatchingBracket returns the index of the bracket matching the one at
// idx, scanning forward from openers and backward from closers. It
// returns -1 if idx is not a bracket or the match is missing.
func MatchingBracket(tokens []lexer.Token, idx int) int {
	if idx < 0 || idx >= len(tokens) {
		return -1
	}
	open := tokens[idx].Text
	closer, ok := brackets[open]
	if !ok || tokens[idx].Kind != lexer.Char {
		return -1
	}
	step := 1
	if open == ")" || open == "]" || open == "}" {
		step = -1
	}
	depth := 0
	for i := idx; i >= 0 && i < len(tokens); i += step {
		if tokens[i].Kind != lexer.Char {
			continue
		}
		switch tokens[i].Text {
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
