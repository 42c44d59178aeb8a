package phpindex

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/jward/phpindex/internal/phpfile"
	"github.com/jward/phpindex/internal/store"
)

// chunkSize bounds the number of parsed files held in memory before their
// batches are committed.
const chunkSize = 256

// workItem is one file scheduled for indexing.
type workItem struct {
	path string
}

// parsedFile is the outcome of parsing one work item.
type parsedFile struct {
	path  string
	batch *store.Batch
	err   error
}

func (e *Engine) workers(n int) int {
	if !e.cfg.Parallel {
		return 1
	}
	return max(1, min(runtime.NumCPU(), n))
}

// index parses items with a worker pool and commits the resulting batches
// one at a time in item order:
//
//	Phase A (parallel): read, hash and parse each file into its own Batch.
//	Phase B (serial):   commit each Batch, replacing the file's records.
//
// Lex and parse failures are reported per file and skipped. A commit
// failure stops the run with a *StorageError. It returns the number of
// files processed.
func (e *Engine) index(ctx context.Context, items []workItem, cb Callbacks) (int, error) {
	total := len(items)
	done := 0
	for start := 0; start < total; start += chunkSize {
		chunk := items[start:min(start+chunkSize, total)]

		// ---- Phase A: parallel parse ----
		results := make([]parsedFile, len(chunk))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers(len(chunk)))
		for i, item := range chunk {
			g.Go(func() error {
				results[i] = e.parseFile(gctx, item)
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return done, err
		}

		// ---- Phase B: serial commit ----
		for _, r := range results {
			done++
			if r.err != nil {
				e.logger.Warn("skipping file", "path", r.path, "err", r.err)
				cb.error(r.err)
				cb.progress(done, total, r.path)
				continue
			}
			if err := r.batch.Commit(ctx, e.storage); err != nil {
				return done, &StorageError{Op: "commit", Path: r.path, Err: err}
			}
			cb.progress(done, total, r.path)
		}
	}
	return done, nil
}

// parseFile reads and parses one file into a fresh Batch.
func (e *Engine) parseFile(ctx context.Context, item workItem) parsedFile {
	res := parsedFile{path: item.path}
	info, err := os.Stat(item.path)
	if err != nil {
		res.err = &FileError{Path: item.path, Err: err}
		return res
	}
	data, err := os.ReadFile(item.path)
	if err != nil {
		res.err = &FileError{Path: item.path, Err: err}
		return res
	}
	f, err := phpfile.Parse(item.path, string(data))
	if err != nil {
		res.err = &FileError{Path: item.path, Err: err}
		return res
	}
	b := store.NewBatch()
	if err := f.Extract(ctx, b, info.ModTime().Unix(), store.ContentHash(data)); err != nil {
		res.err = &FileError{Path: item.path, Err: fmt.Errorf("extract: %w", err)}
		return res
	}
	res.batch = b
	return res
}

// changed is the dry pre-pass of an update. A file is scheduled when it is
// new or when its mtime moved and its content hash no longer matches the
// stored one. Files whose mtime moved but whose content did not are
// returned in touched with their new mtime. Hashes are computed in
// parallel.
func (e *Engine) changed(ctx context.Context, paths []string, known map[string]*store.File) (items []workItem, touched map[string]int64, err error) {
	type check struct {
		path   string
		stored *store.File
		mtime  int64
		hash   string
		err    error
	}
	var checks []*check
	touched = map[string]int64{}
	for _, p := range paths {
		stored := known[p]
		if stored == nil {
			items = append(items, workItem{path: p})
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			e.logger.Debug("stat failed", "path", p, "err", err)
			continue
		}
		if info.ModTime().Unix() == stored.Mtime {
			continue
		}
		checks = append(checks, &check{path: p, stored: stored, mtime: info.ModTime().Unix()})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers(len(checks)))
	for _, c := range checks {
		g.Go(func() error {
			c.hash, c.err = store.FileHash(c.path)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for _, c := range checks {
		switch {
		case c.err != nil:
			e.logger.Debug("hash failed", "path", c.path, "err", c.err)
		case c.hash != c.stored.Hash:
			items = append(items, workItem{path: c.path})
		default:
			e.logger.Debug("mtime changed, content unchanged", "path", c.path)
			touched[c.path] = c.mtime
		}
	}
	// keep walk order
	order := make(map[string]int, len(paths))
	for i, p := range paths {
		order[p] = i
	}
	slices.SortFunc(items, func(a, b workItem) int { return order[a.path] - order[b.path] })
	return items, touched, nil
}
