package runtime

import (
	"context"

	"github.com/risor-io/risor/object"

	"github.com/jward/phpindex/internal/lexer"
	"github.com/jward/phpindex/internal/phpfile"
	"github.com/jward/phpindex/internal/store"
)

// makeTokenizeFn creates "tokenize", the indexer's own lexer exposed to
// scripts. With trivia set, whitespace and comments stay in the stream.
//
// tokenize(source[, trivia]) → []map{kind, text, line, col}
func makeTokenizeFn() *object.Builtin {
	return object.NewBuiltin("tokenize", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.NewArgsRangeError("tokenize", 1, 2, len(args))
		}
		src, errObj := stringArg("tokenize", "source", args[0])
		if errObj != nil {
			return errObj
		}
		var opts []lexer.Option
		if len(args) == 2 {
			b, ok := args[1].(*object.Bool)
			if !ok {
				return object.Errorf("tokenize: trivia must be a bool, got %s", args[1].Type())
			}
			if b.Value() {
				opts = append(opts, lexer.WithTrivia())
			}
		}
		tokens, _, err := lexer.Tokenize(src, opts...)
		if err != nil {
			return object.Errorf("tokenize: %v", err)
		}
		return listOf(tokens, func(t lexer.Token) object.Object {
			return object.NewMap(map[string]object.Object{
				"kind": object.NewString(t.Kind.String()),
				"text": object.NewString(t.Text),
				"line": object.NewInt(int64(t.Line)),
				"col":  object.NewInt(int64(t.Col)),
			})
		})
	})
}

// makeDeclarationsFn creates "declarations", which extracts the records a
// build would store for one source file without touching the index.
//
// declarations(source[, path]) → []map
func makeDeclarationsFn() *object.Builtin {
	return object.NewBuiltin("declarations", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.NewArgsRangeError("declarations", 1, 2, len(args))
		}
		src, errObj := stringArg("declarations", "source", args[0])
		if errObj != nil {
			return errObj
		}
		path := "<inline>"
		if len(args) == 2 {
			if path, errObj = stringArg("declarations", "path", args[1]); errObj != nil {
				return errObj
			}
		}
		f, err := phpfile.Parse(path, src)
		if err != nil {
			return object.Errorf("declarations: %v", err)
		}
		return listOf(f.Declarations(), declToMap[store.Declaration])
	})
}
