package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bastiangx/imeserve/internal/metrics"
	"github.com/bastiangx/imeserve/pkg/codetable"
	"github.com/bastiangx/imeserve/pkg/engine"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

var (
	// ErrUnknownContext is returned for a key with no live context.
	ErrUnknownContext = errors.New("unknown input context")
	// ErrNotInitialized is returned before any engine is installed.
	ErrNotInitialized = errors.New("engine not initialized")
	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("engine already initialized")
	// ErrCandidateIndex is returned by Confirm for an index outside the
	// current candidate list.
	ErrCandidateIndex = errors.New("candidate index out of range")
	// ErrNoLookup is returned when the active engine has no reverse lookup.
	ErrNoLookup = errors.New("engine does not support lookup")
)

// Result is the outcome of one edit on a context.
type Result struct {
	// Cancel is set when the edit emptied the input. The context is gone.
	Cancel     bool
	Codes      string
	Candidates []engine.Candidate
}

// slot serializes the edits of one context. closed is set under mu when the
// context is torn down, so an edit that was waiting on mu sees it is gone.
type slot struct {
	mu     sync.Mutex
	ctx    engine.InputContext
	last   []engine.Candidate
	closed bool
}

// Registry dispatches edits to live input contexts.
type Registry struct {
	mu       sync.RWMutex
	engine   engine.Engine
	config   engine.Configuration
	contexts map[string]*slot

	nextID atomic.Uint64
	opts   Options
}

// NewRegistry returns an empty registry with no engine.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		contexts: make(map[string]*slot),
		opts:     opts,
	}
}

// Initialize opens the engine described by cfg and installs it. It fails
// when an engine is already installed.
func (r *Registry) Initialize(cfg engine.Configuration) error {
	r.mu.RLock()
	installed := r.engine != nil
	r.mu.RUnlock()
	if installed {
		return ErrAlreadyInitialized
	}

	eng, err := OpenEngine(cfg, r.opts)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine != nil {
		return ErrAlreadyInitialized
	}
	r.install(eng, cfg)
	return nil
}

// Swap installs eng in place of the current engine and returns the previous
// one. Live contexts keep the engine they were started from.
func (r *Registry) Swap(eng engine.Engine, cfg engine.Configuration) engine.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.engine
	r.install(eng, cfg)
	return prev
}

func (r *Registry) install(eng engine.Engine, cfg engine.Configuration) {
	r.engine = eng
	r.config = cfg
	if s, ok := eng.(sized); ok {
		metrics.DictionaryEntries.Set(float64(s.Len()))
	}
	log.Debugf("Installed %s engine (%s)", eng.Kind(), cfg.CodeTable)
}

// Reload reopens the installed configuration and swaps the result in. On
// failure the current engine stays active.
func (r *Registry) Reload() error {
	r.mu.RLock()
	cfg, installed := r.config, r.engine != nil
	r.mu.RUnlock()
	if !installed {
		return ErrNotInitialized
	}

	eng, err := OpenEngine(cfg, r.opts)
	if err != nil {
		metrics.DictionaryReloads.WithLabelValues("error").Inc()
		return fmt.Errorf("reload %s: %w", cfg.CodeTable, err)
	}
	r.Swap(eng, cfg)
	metrics.DictionaryReloads.WithLabelValues("ok").Inc()
	return nil
}

// Engine returns the installed engine.
func (r *Registry) Engine() (engine.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.engine == nil {
		return nil, ErrNotInitialized
	}
	return r.engine, nil
}

// Configuration returns the configuration of the installed engine.
func (r *Registry) Configuration() engine.Configuration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// Start begins a new context under key, replacing any context already
// there. An empty key gets a random one. It returns the key and the id
// assigned to the context.
func (r *Registry) Start(key string) (string, engine.ContextID, error) {
	if key == "" {
		key = uuid.NewString()
	}

	r.mu.Lock()
	if r.engine == nil {
		r.mu.Unlock()
		return "", 0, ErrNotInitialized
	}
	id := engine.ContextID(r.nextID.Add(1))
	prev, replaced := r.contexts[key]
	if !replaced {
		metrics.ActiveContexts.Inc()
	}
	r.contexts[key] = &slot{ctx: r.engine.StartContext(id)}
	r.mu.Unlock()

	if replaced {
		prev.mu.Lock()
		prev.closed = true
		prev.mu.Unlock()
	}
	log.Debug("context started", "key", key, "id", id)
	return key, id, nil
}

// Feed sends ch to the context under key.
func (r *Registry) Feed(key string, ch rune) (Result, error) {
	s, err := r.acquire(key)
	if err != nil {
		return Result{}, err
	}
	defer s.mu.Unlock()

	candidates, codes := s.ctx.Feed(ch)
	s.last = r.truncate(candidates)
	return Result{Codes: codes, Candidates: s.last}, nil
}

// Backspace removes the last code of the context under key. When that
// empties the input the context is removed and Result.Cancel is set.
func (r *Registry) Backspace(key string) (Result, error) {
	s, err := r.acquire(key)
	if err != nil {
		return Result{}, err
	}
	defer s.mu.Unlock()

	res := s.ctx.Backspace()
	if res.Cancel {
		r.teardown(key, s)
		return Result{Cancel: true}, nil
	}
	s.last = r.truncate(res.Candidates)
	return Result{Codes: res.Codes, Candidates: s.last}, nil
}

// Cancel drops the context under key.
func (r *Registry) Cancel(key string) error {
	s, err := r.acquire(key)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	r.teardown(key, s)
	return nil
}

// Confirm commits the 1-based index into the latest candidate list and
// drops the context. With no candidates the typed codes are committed as
// they are. An index outside a non-empty list leaves the context alive.
func (r *Registry) Confirm(key string, index int) (string, error) {
	s, err := r.acquire(key)
	if err != nil {
		return "", err
	}
	defer s.mu.Unlock()

	var text string
	switch {
	case len(s.last) == 0:
		text = s.ctx.Codes()
	case index < 1 || index > len(s.last):
		return "", fmt.Errorf("%w: %d not in 1..%d", ErrCandidateIndex, index, len(s.last))
	default:
		text = s.last[index-1].Text
	}
	r.teardown(key, s)
	return text, nil
}

// Codes returns what has been typed in the context under key.
func (r *Registry) Codes(key string) (string, error) {
	s, err := r.acquire(key)
	if err != nil {
		return "", err
	}
	defer s.mu.Unlock()
	return s.ctx.Codes(), nil
}

// Keycodes returns the code units of the installed engine as one string.
func (r *Registry) Keycodes() (string, error) {
	eng, err := r.Engine()
	if err != nil {
		return "", err
	}
	return string(eng.Keycodes()), nil
}

// Lookup searches the installed engine's texts by prefix.
func (r *Registry) Lookup(prefix string, limit int) ([]codetable.LookupResult, error) {
	eng, err := r.Engine()
	if err != nil {
		return nil, err
	}
	l, ok := eng.(Lookuper)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoLookup, eng.Kind())
	}
	return l.Lookup(prefix, limit), nil
}

// Len returns the number of live contexts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contexts)
}

// acquire returns the slot under key with its lock held. The caller unlocks.
func (r *Registry) acquire(key string) (*slot, error) {
	r.mu.RLock()
	s, ok := r.contexts[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownContext, key)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownContext, key)
	}
	return s, nil
}

// teardown marks s closed and deletes key while it still maps to s, so a
// context restarted under the same key is left alone. s.mu must be held.
func (r *Registry) teardown(key string, s *slot) {
	s.closed = true

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.contexts[key] == s {
		delete(r.contexts, key)
		metrics.ActiveContexts.Dec()
		log.Debug("context closed", "key", key)
	}
}

func (r *Registry) truncate(candidates []engine.Candidate) []engine.Candidate {
	if r.opts.MaxCandidates > 0 && len(candidates) > r.opts.MaxCandidates {
		return candidates[:r.opts.MaxCandidates:r.opts.MaxCandidates]
	}
	return candidates
}
