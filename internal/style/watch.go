package style

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloadable is a Source backed by a presets file. Each successful reload
// installs fresh pointers, so views holding the old solo preset see a
// change on their next tick.
type Reloadable struct {
	path    string
	current atomic.Pointer[Presets]

	// OnReload, if set, is called after every successful reload.
	OnReload func(Presets)
}

// NewReloadable loads path and returns a source serving its presets.
func NewReloadable(path string) (*Reloadable, error) {
	p, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	r := &Reloadable{path: path}
	r.current.Store(&p)
	return r, nil
}

func (r *Reloadable) All() *StylePreset  { return r.current.Load().All }
func (r *Reloadable) Solo() *StylePreset { return r.current.Load().Solo }

// Presets returns the presets currently served.
func (r *Reloadable) Presets() Presets { return *r.current.Load() }

// Reload re-reads the presets file. On error the previous presets stay.
func (r *Reloadable) Reload() error {
	p, err := LoadFile(r.path)
	if err != nil {
		return err
	}
	r.current.Store(&p)
	if r.OnReload != nil {
		r.OnReload(p)
	}
	return nil
}

// Watch reloads the presets file whenever it is written or replaced, until
// ctx is cancelled. The parent directory is watched so editors that save
// by rename are handled.
func (r *Reloadable) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(r.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	target := filepath.Clean(r.path)

	// Editors often emit several events per save.
	const debounce = 50 * time.Millisecond
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				pending = time.After(debounce)
			}
		case <-pending:
			pending = nil
			if err := r.Reload(); err != nil {
				log.Printf("[style] reload of %s failed, keeping previous presets: %v", r.path, err)
				continue
			}
			log.Printf("[style] reloaded presets from %s", r.path)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("[style] watcher error: %v", err)
		}
	}
}
