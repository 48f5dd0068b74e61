package usage

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Source hands out immutable price table snapshots and can hot-reload them
// when the backing file changes. Callers price a whole turn against one
// snapshot; a concurrent reload only affects later turns.
type Source struct {
	path string

	mu    sync.RWMutex
	table Table
}

func NewSource(path string) (*Source, error) {
	table, err := LoadTable(path)
	if err != nil {
		return nil, err
	}
	return &Source{path: path, table: table}, nil
}

// Table returns the current snapshot.
func (s *Source) Table() Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// Lookup resolves the price entry for a model in the current snapshot.
func (s *Source) Lookup(model string) (Price, bool) {
	p, ok := s.Table()[model]
	return p, ok
}

// Reload re-reads the backing file and swaps the snapshot. A parse failure
// keeps the previous snapshot in place.
func (s *Source) Reload() error {
	table, err := LoadTable(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.table = table
	s.mu.Unlock()
	return nil
}

// Watch blocks until ctx is done, reloading on writes to the price file.
// Events are debounced; editors tend to emit bursts of writes per save.
func (s *Source) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: many editors replace the file on save, which
	// drops a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return err
	}

	var timer *time.Timer
	const debounce = 200 * time.Millisecond
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			_ = s.Reload()
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}
