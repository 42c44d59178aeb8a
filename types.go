package phpindex

import (
	"github.com/jward/phpindex/internal/phpfile"
	"github.com/jward/phpindex/internal/store"
)

// Public aliases for the internal types that appear in the Engine,
// QueryBuilder and Completer APIs.

type Declaration = phpfile.Declaration
type Position = store.Position
type SearchHit = store.SearchHit
type Use = store.Use
type Kind = store.Kind
type Class = store.Class
type Method = store.Method
type Member = store.Member
type ClassConstant = store.ClassConstant
type Function = store.Function
type Constant = store.Constant
