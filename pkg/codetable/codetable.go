// Package codetable implements the code table engine: a persistent trie keyed
// by code units, with every dictionary text attached to the node its code
// sequence reaches.
package codetable

import (
	"errors"
	"fmt"
	"slices"

	"github.com/bastiangx/imeserve/pkg/dictionary"
	"github.com/bastiangx/imeserve/pkg/engine"
	"github.com/bastiangx/imeserve/pkg/trie"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// ErrEmptyCode is returned when an entry has no code sequence.
var ErrEmptyCode = errors.New("empty code sequence")

// ResultValue is the payload stored at a trie node.
type ResultValue struct {
	Text     string
	Priority uint32
}

// Node is a code table position.
type Node = trie.Node[rune, ResultValue]

// Options tunes a code table.
type Options struct {
	// PerfectOnly drops prefix matches from every candidate list.
	PerfectOnly bool
	// CacheSize bounds the ranked candidate cache. Zero disables it.
	CacheSize int
	// Dictionary controls how Load reads the source file.
	Dictionary dictionary.Options
}

// DefaultOptions returns options with caching on and the default dictionary
// format.
func DefaultOptions() Options {
	return Options{
		CacheSize:  DefaultCacheSize,
		Dictionary: dictionary.DefaultOptions(),
	}
}

// CodeTable is an immutable, fully linked code table. It is safe for
// concurrent use; contexts started from it are not.
type CodeTable struct {
	table       trie.Trie[rune, ResultValue]
	keycodes    []rune
	reverse     *patricia.Trie
	entries     int
	perfectOnly bool
	ranker      *Ranker
	source      string
}

var _ engine.Engine = (*CodeTable)(nil)

// Load reads a dictionary file and builds a table from it.
func Load(path string, opts Options) (*CodeTable, error) {
	entries, err := dictionary.ReadFile(path, opts.Dictionary)
	if err != nil {
		return nil, err
	}
	t, err := New(entries, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.source = path
	log.Debugf("Loaded code table %s: %d entries, %d keycodes", path, t.entries, len(t.keycodes))
	return t, nil
}

// New builds a table from entries in order. Texts sharing a code keep their
// relative order, which is the tie break between equal priorities.
func New(entries []dictionary.Entry, opts Options) (*CodeTable, error) {
	ranker, err := NewRanker(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("candidate cache: %w", err)
	}

	table := trie.New[rune, ResultValue]()
	reverse := patricia.NewTrie()
	seen := make(map[rune]struct{})

	for i, e := range entries {
		code := []rune(e.Code)
		if len(code) == 0 {
			return nil, fmt.Errorf("entry %d (%q): %w", i+1, e.Text, ErrEmptyCode)
		}
		table = table.Insert(code, ResultValue{Text: e.Text, Priority: e.Priority})
		for _, r := range code {
			seen[r] = struct{}{}
		}
		addReverse(reverse, e)
	}
	table.Maintain()

	keycodes := make([]rune, 0, len(seen))
	for r := range seen {
		keycodes = append(keycodes, r)
	}
	slices.Sort(keycodes)

	return &CodeTable{
		table:       table,
		keycodes:    keycodes,
		reverse:     reverse,
		entries:     len(entries),
		perfectOnly: opts.PerfectOnly,
		ranker:      ranker,
	}, nil
}

// Kind reports KindCodeTable.
func (t *CodeTable) Kind() engine.Kind {
	return engine.KindCodeTable
}

// StartContext returns a context positioned at the root.
func (t *CodeTable) StartContext(id engine.ContextID) engine.InputContext {
	return t.NewContext(id)
}

// NewContext is StartContext returning the concrete type.
func (t *CodeTable) NewContext(id engine.ContextID) *Context {
	return newContext(id, t.table.Root(), t.ranker, t.perfectOnly)
}

// Keycodes returns every distinct code unit used by the table, sorted.
func (t *CodeTable) Keycodes() []rune {
	return slices.Clone(t.keycodes)
}

// Root returns the root position.
func (t *CodeTable) Root() *Node {
	return t.table.Root()
}

// Get returns the position reached by code, if any.
func (t *CodeTable) Get(code string) (*Node, bool) {
	return t.table.Get([]rune(code))
}

// Len returns the number of entries the table was built from.
func (t *CodeTable) Len() int {
	return t.entries
}

// Source returns the file the table was loaded from, or "" when it was built
// in memory.
func (t *CodeTable) Source() string {
	return t.source
}

// PerfectOnly reports whether prefix matches are dropped.
func (t *CodeTable) PerfectOnly() bool {
	return t.perfectOnly
}

// Ranker returns the table's candidate ranker.
func (t *CodeTable) Ranker() *Ranker {
	return t.ranker
}
