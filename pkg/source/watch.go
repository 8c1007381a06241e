package source

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch loads the definition file at path, passes the result to fn and calls
// fn again every time the file is written or replaced. It blocks until ctx is
// done or the watcher fails. Decode errors are passed to fn and do not stop
// the watch.
//
// The parent directory is watched so that editors replacing the file through
// a rename are noticed.
func Watch(ctx context.Context, path string, fn func(*Definitions, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	fn(LoadFile(abs))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			// a rename onto path shows up as Create
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fn(LoadFile(abs))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
