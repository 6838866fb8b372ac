/*
Package engine defines what every input method engine exposes to the session
layer, and the values that flow out of an input context.

The set of engines is closed. Each engine reports its Kind, and code that
needs to build an engine from a Configuration switches over the known kinds
instead of looking implementations up at runtime.

# Input contexts

An InputContext is the per-session cursor an engine hands out. It is fed one
code unit at a time and answers with ranked candidates plus the typed codes
to echo back:

	ctx := eng.StartContext(id)
	candidates, codes := ctx.Feed('a')
	res := ctx.Backspace()
	if res.Cancel {
		// nothing left to edit
	}

Contexts are not safe for concurrent use. Different contexts share only
read-only engine data and may run in parallel.
*/
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedEngine is returned when a Configuration names an engine kind
// this build cannot construct.
var ErrUnsupportedEngine = errors.New("unsupported engine")

// Kind tags an engine implementation.
type Kind int

const (
	KindUnknown Kind = iota
	KindCodeTable
)

func (k Kind) String() string {
	switch k {
	case KindCodeTable:
		return "codetable"
	default:
		return "unknown"
	}
}

// ParseKind maps a configuration name onto a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "codetable", "code_table", "":
		return KindCodeTable, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnsupportedEngine, name)
	}
}

// ContextID identifies an input context within one process.
type ContextID uint64

// Engine is the capability set shared by every engine kind.
type Engine interface {
	// Kind reports which implementation this is.
	Kind() Kind
	// StartContext returns a fresh input context positioned at the start.
	StartContext(id ContextID) InputContext
	// Keycodes returns every code unit the engine can consume, sorted.
	Keycodes() []rune
}

// InputContext is the per-session state machine.
type InputContext interface {
	ID() ContextID
	// Feed appends ch to the typed codes and returns the ranked candidates
	// together with the typed codes.
	Feed(ch rune) ([]Candidate, string)
	// Backspace removes the last typed code.
	Backspace() BackspaceResult
	// Codes returns the typed codes joined as one string.
	Codes() string
}

// BackspaceResult is either a cancel, when nothing is left to edit, or a
// fresh candidate list.
type BackspaceResult struct {
	Cancel     bool
	Candidates []Candidate
	Codes      string
}

// Canceled is the result returned once the typed sequence is empty.
func Canceled() BackspaceResult {
	return BackspaceResult{Cancel: true}
}

// Configuration selects and parameterizes an engine.
type Configuration struct {
	Kind        Kind
	CodeTable   string
	PerfectOnly bool
}
