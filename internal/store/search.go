package store

import (
	"sort"
	"strings"
)

// MinTermLength is the shortest accepted search term.
const MinTermLength = 3

var kindPriority = map[Kind]int{
	KindFile:          100,
	KindClass:         400,
	KindClassConstant: 300,
	KindMethod:        300,
	KindMember:        300,
	KindFunction:      300,
	KindConstant:      300,
}

// kindOrder breaks score ties.
var kindOrder = map[Kind]int{
	KindFile:          0,
	KindClass:         1,
	KindClassConstant: 2,
	KindMethod:        3,
	KindMember:        4,
	KindFunction:      5,
	KindConstant:      6,
}

// ValidTerms reports whether every term is long enough and at least one
// term is given.
func ValidTerms(terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	for _, t := range terms {
		if len([]rune(t)) < MinTermLength {
			return false
		}
	}
	return true
}

// Score ranks a hit: the kind priority minus the title length.
func Score(kind Kind, title string) int {
	return kindPriority[kind] - len(title)
}

// Titles rendered for search hits.

func ClassTitle(namespace, class string) string { return JoinName(namespace, class) }

func ClassConstantTitle(namespace, class, name string) string {
	return JoinName(namespace, class) + "::" + name
}

func MethodTitle(namespace, class, name string) string {
	return JoinName(namespace, class) + "->" + name + "()"
}

func MemberTitle(namespace, class, name string) string {
	return JoinName(namespace, class) + "->" + name
}

func FunctionTitle(namespace, name string) string { return JoinName(namespace, name) + "()" }

// NewHit builds a scored hit.
func NewHit(kind Kind, title string, pos Position) *SearchHit {
	return &SearchHit{
		File:  pos.File,
		Line:  pos.Line,
		Col:   pos.Col,
		Kind:  kind,
		Title: title,
		Score: Score(kind, title),
	}
}

// RankHits sorts hits by score, then kind order, then title.
func RankHits(hits []*SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if kindOrder[a.Kind] != kindOrder[b.Kind] {
			return kindOrder[a.Kind] < kindOrder[b.Kind]
		}
		return a.Title < b.Title
	})
}

// MatchTerms reports whether every term occurs, case-insensitively, in at
// least one of the fields. Back-ends without a query language use it to
// mirror the SQL LIKE semantics.
func MatchTerms(terms []string, fields ...string) bool {
	for _, t := range terms {
		t = strings.ToLower(t)
		found := false
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
