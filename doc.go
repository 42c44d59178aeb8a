// Package phpindex indexes PHP source trees and answers navigation,
// completion and search queries over the index.
//
// # Pipeline
//
// An index is built in two steps:
//
//  1. Walk: collect the files under a root that carry a source extension
//     and are admitted by the include/exclude rules and .gitignore.
//  2. Extract: lex and block-parse each file in parallel, infer the types
//     it declares, and write its classes, methods, members, constants,
//     functions and use-edges to the storage back-end in one batch per
//     file.
//
// Built-in declarations (stdClass, Exception, strlen, ...) are seeded on
// every full build under the path "INTERNAL".
//
// # Usage
//
//	cfg, err := config.Load("path/to/project")
//	if err != nil { ... }
//	e, err := phpindex.Open(cfg)
//	if err != nil { ... }
//	defer e.Close()
//
//	err = e.Build(ctx, cfg.Root, phpindex.Callbacks{})
//
//	q := e.Query()
//	f, err := q.Open(ctx, "path/to/project/src/Dog.php")
//	pos, err := q.Definition(ctx, f, 12, 17)
//
// # Queries
//
// The [QueryBuilder] returned by [Engine.Query] resolves declarations,
// locates them, infers expression types, lists usages, walks class
// hierarchies and runs full-text search. The [Completer] returned by
// [Engine.Completer] proposes candidates for the cursor position.
//
// # Incremental updates
//
// [Engine.Update] removes deleted and newly excluded files and re-indexes
// files whose content hash changed. [Engine.Watch] runs Update whenever
// the tree changes.
//
// # Storage
//
// The index lives behind the store.Storage contract. SQLite (cgo or pure
// Go), PostgreSQL, an in-memory graph persisted as YAML, and a dummy
// back-end that stores nothing are available; see [OpenStorage].
package phpindex
