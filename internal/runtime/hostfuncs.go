package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/risor-io/risor/object"
)

// makeEmitFn creates "emit", which writes one line of script output.
//
// emit(value)
func makeEmitFn(w io.Writer) *object.Builtin {
	return object.NewBuiltin("emit", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("emit", 1, len(args))
		}
		line := args[0].Inspect()
		if s, ok := args[0].(*object.String); ok {
			line = s.Value()
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return object.Errorf("emit: %v", err)
		}
		return object.Nil
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}
