package session

import (
	"context"

	"github.com/bastiangx/imeserve/pkg/dictionary"
	"github.com/charmbracelet/log"
)

// WatchReload reloads the engine every time the dictionary at path changes,
// until ctx is done.
func (r *Registry) WatchReload(ctx context.Context, path string) error {
	w, err := dictionary.NewWatcher(path, func(changed string) {
		if err := r.Reload(); err != nil {
			log.Errorf("Keeping previous code table: %v", err)
			return
		}
		log.Infof("Reloaded code table from %s", changed)
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
