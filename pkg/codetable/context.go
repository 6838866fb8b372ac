package codetable

import (
	"github.com/bastiangx/imeserve/internal/metrics"
	"github.com/bastiangx/imeserve/pkg/engine"
	"github.com/charmbracelet/log"
)

// Context walks a code table one typed code at a time.
//
// While the typed codes follow a path in the table the context is matching
// and current is the node for the whole input. Once a code has no child, the
// context overflows: current stays at the last matching node and overflow
// counts the codes typed past it, so backspace can undo them one by one.
type Context struct {
	id          engine.ContextID
	root        *Node
	current     *Node
	input       []rune
	overflow    int
	ranker      *Ranker
	perfectOnly bool
}

var _ engine.InputContext = (*Context)(nil)

func newContext(id engine.ContextID, root *Node, ranker *Ranker, perfectOnly bool) *Context {
	return &Context{
		id:          id,
		root:        root,
		current:     root,
		ranker:      ranker,
		perfectOnly: perfectOnly,
	}
}

// ID returns the identifier assigned when the context was started.
func (c *Context) ID() engine.ContextID {
	return c.id
}

// Codes returns everything typed so far, unmatched codes included.
func (c *Context) Codes() string {
	return string(c.input)
}

// Overflow returns how many trailing codes have no match.
func (c *Context) Overflow() int {
	return c.overflow
}

// Position returns the last matching node.
func (c *Context) Position() *Node {
	return c.current
}

// Feed appends ch and returns the ranked candidates for the new input. An
// overflowed context returns no candidates.
func (c *Context) Feed(ch rune) ([]engine.Candidate, string) {
	c.input = append(c.input, ch)
	metrics.Feeds.Inc()

	if c.overflow > 0 {
		c.overflow++
	} else if child, ok := c.current.Child(ch); ok {
		c.current = child
	} else {
		c.overflow = 1
		metrics.Overflows.Inc()
	}

	log.Debug("feed", "ctx", c.id, "ch", string(ch), "input", c.Codes(), "overflow", c.overflow)

	if c.overflow > 0 {
		return nil, c.Codes()
	}
	return c.candidates(), c.Codes()
}

// Backspace removes the last typed code.
//
// Removing the last code cancels the context. Removing an unmatched code
// only shrinks the overflow; the code that ends the overflow leaves the
// position where it is, because that position already matches the remaining
// input. Every other backspace moves up to the parent.
func (c *Context) Backspace() engine.BackspaceResult {
	if len(c.input) > 0 {
		c.input = c.input[:len(c.input)-1]
	}
	if len(c.input) == 0 {
		c.reset()
		metrics.Backspaces.WithLabelValues("cancel").Inc()
		log.Debug("backspace", "ctx", c.id, "result", "cancel")
		return engine.Canceled()
	}

	cleared := false
	if c.overflow > 0 {
		c.overflow--
		if c.overflow > 0 {
			metrics.Backspaces.WithLabelValues("overflow").Inc()
			log.Debug("backspace", "ctx", c.id, "input", c.Codes(), "overflow", c.overflow)
			return engine.BackspaceResult{Codes: c.Codes()}
		}
		cleared = true
	}

	if !cleared {
		parent := c.current.Parent()
		if parent == nil {
			metrics.Backspaces.WithLabelValues("root").Inc()
			log.Warn("backspace without parent link", "ctx", c.id, "input", c.Codes())
			return engine.BackspaceResult{Codes: c.Codes()}
		}
		c.current = parent
	}

	metrics.Backspaces.WithLabelValues("candidates").Inc()
	log.Debug("backspace", "ctx", c.id, "input", c.Codes(), "overflow", c.overflow)
	return engine.BackspaceResult{Candidates: c.candidates(), Codes: c.Codes()}
}

func (c *Context) reset() {
	c.input = c.input[:0]
	c.current = c.root
	c.overflow = 0
}

func (c *Context) candidates() []engine.Candidate {
	ranked := c.ranker.Rank(c.current, c.input)
	if c.perfectOnly {
		return engine.PerfectOnly(ranked)
	}
	return ranked
}
