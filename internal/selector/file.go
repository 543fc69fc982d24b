package selector

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileSource is a Pool backed by a file that can be reloaded when it changes.
type FileSource struct {
	*Pool
	path string
	opts LoadOptions
}

// NewFileSource loads path into a new pool.
func NewFileSource(path string, opts LoadOptions, seed int64) (*FileSource, error) {
	values, err := Load(path, opts)
	if err != nil {
		return nil, err
	}
	return &FileSource{
		Pool: NewPool(values, seed),
		path: path,
		opts: opts,
	}, nil
}

// Path returns the backing file path.
func (f *FileSource) Path() string {
	return f.path
}

// ErrEmptyReload is returned when a reload finds no values while the pool
// still holds some. Writers that truncate before rewriting hit this window.
var ErrEmptyReload = errors.New("reloaded file has no values")

// Reload re-reads the backing file. On error, including ErrEmptyReload, the
// previous values are kept.
func (f *FileSource) Reload() error {
	values, err := Load(f.path, f.opts)
	if err != nil {
		return err
	}
	if len(values) == 0 && f.Len() > 0 {
		return fmt.Errorf("%s: %w", f.path, ErrEmptyReload)
	}
	f.Replace(values)
	return nil
}

// Watch reloads the source whenever its file is written or replaced, until
// ctx is done. The parent directory is watched so editors that rename over
// the file are picked up.
func (f *FileSource) Watch(ctx context.Context, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", f.path, err)
	}

	target := filepath.Clean(f.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := f.Reload(); err != nil {
					log.Warn("selector reload failed", zap.String("path", f.path), zap.Error(err))
					continue
				}
				log.Debug("selector reloaded", zap.String("path", f.path), zap.Int("values", f.Len()))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("selector watcher error", zap.String("path", f.path), zap.Error(err))
			}
		}
	}()
	return nil
}
