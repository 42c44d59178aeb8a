package phpindex

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period Watch waits for after the last
// relevant change before running an update.
const DefaultDebounce = 300 * time.Millisecond

// Watch runs Update on root whenever source files under it change, until
// ctx is cancelled. Bursts of events are coalesced: an update starts once
// no relevant event arrived for debounce. Directories created while
// watching are picked up. Update errors go to cb.Error and do not stop the
// watch.
func (e *Engine) Watch(ctx context.Context, root string, cb Callbacks, debounce time.Duration) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	if err := e.watchTree(w, root, root); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	e.logger.Info("watching", "root", root, "debounce", debounce)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !e.relevant(w, root, ev) {
				continue
			}
			e.logger.Debug("change", "path", ev.Name, "op", ev.Op.String())
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)
			pending = true
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("watch error", "err", err)
			cb.error(err)
		case <-timer.C:
			pending = false
			if err := e.Update(ctx, root, cb); err != nil {
				e.logger.Warn("update after change failed", "err", err)
			}
		}
	}
}

// relevant reports whether ev should trigger an update. A created
// directory is added to the watch and counts as a change, since files may
// have landed in it before it was watched.
func (e *Engine) relevant(w *fsnotify.Watcher, root string, ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if e.skipDir(info.Name()) {
				return false
			}
			if err := e.watchTree(w, root, ev.Name); err != nil {
				e.logger.Warn("cannot watch directory", "path", ev.Name, "err", err)
			}
			return true
		}
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		// the path is gone, so a removed directory cannot be told apart
		// from a file
		return e.hasSourceExt(ev.Name) || filepath.Ext(ev.Name) == ""
	}
	return e.Eligible(root, ev.Name)
}

// watchTree adds dir and every directory below it that the walk would
// descend into.
func (e *Engine) watchTree(w *fsnotify.Watcher, root, dir string) error {
	gi := e.gitignore(root)
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (e.skipDir(d.Name()) || !e.descend(root, path, gi)) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("add %s: %w", path, err)
		}
		return nil
	})
}
