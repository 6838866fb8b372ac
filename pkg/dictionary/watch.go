package dictionary

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const defaultSettle = 250 * time.Millisecond

// Watcher calls back whenever a dictionary file changes on disk.
//
// The parent directory is watched rather than the file, since editors and
// sync tools often replace a file by renaming a new one over it. Bursts of
// events are folded into one callback once the file has been quiet for the
// settle period.
type Watcher struct {
	path     string
	settle   time.Duration
	watcher  *fsnotify.Watcher
	onChange func(path string)
}

// NewWatcher creates a watcher for path. Call Run to start delivering events.
func NewWatcher(path string, onChange func(path string)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:     abs,
		settle:   defaultSettle,
		watcher:  fw,
		onChange: onChange,
	}, nil
}

// SetSettle changes how long the file must stay quiet before a callback.
func (w *Watcher) SetSettle(d time.Duration) {
	w.settle = d
}

// Run delivers change callbacks until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			log.Debugf("Dictionary event: %s", event)
			if timer == nil {
				timer = time.NewTimer(w.settle)
			} else {
				timer.Reset(w.settle)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.onChange(w.path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("Dictionary watcher error: %v", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
