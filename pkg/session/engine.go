// Package session owns the live input contexts of a process.
//
// A Registry holds the active engine and every context started from it,
// keyed by a string chosen by the client. It assigns context ids from its own
// counter, serializes calls on one context, and lets contexts on different
// keys run in parallel.
package session

import (
	"fmt"

	"github.com/bastiangx/imeserve/pkg/codetable"
	"github.com/bastiangx/imeserve/pkg/dictionary"
	"github.com/bastiangx/imeserve/pkg/engine"
)

// Options configures how engines are opened and results are returned.
type Options struct {
	// MaxCandidates truncates candidate lists. Zero means unlimited.
	MaxCandidates int
	// CacheSize bounds the ranked candidate cache of each table.
	CacheSize int
	// Dictionary controls dictionary decoding.
	Dictionary dictionary.Options
	// Resolve maps a configured table name to a file path. Nil keeps the
	// name as is.
	Resolve func(name string) string
}

// DefaultOptions returns unlimited candidates with the default cache.
func DefaultOptions() Options {
	return Options{
		CacheSize:  codetable.DefaultCacheSize,
		Dictionary: dictionary.DefaultOptions(),
	}
}

// OpenEngine builds the engine variant named by cfg.
func OpenEngine(cfg engine.Configuration, opts Options) (engine.Engine, error) {
	switch cfg.Kind {
	case engine.KindCodeTable:
		path := cfg.CodeTable
		if opts.Resolve != nil {
			path = opts.Resolve(path)
		}
		return codetable.Load(path, codetable.Options{
			PerfectOnly: cfg.PerfectOnly,
			CacheSize:   opts.CacheSize,
			Dictionary:  opts.Dictionary,
		})
	default:
		return nil, fmt.Errorf("%w: %s", engine.ErrUnsupportedEngine, cfg.Kind)
	}
}

// Lookuper is implemented by engines that map texts back to codes.
type Lookuper interface {
	Lookup(prefix string, limit int) []codetable.LookupResult
}

// sized is implemented by engines that know their entry count.
type sized interface {
	Len() int
}
