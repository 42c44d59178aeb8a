package phpindex

import "fmt"

// StorageError is a storage back-end failure. It aborts the build or
// update in progress.
type StorageError struct {
	Op   string
	Path string // file being written, if any
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// FileError is a failure to read, lex or parse one file. The file is
// skipped and the run continues. Err is a *lexer.LexError or
// *parser.ParseError for source problems.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
