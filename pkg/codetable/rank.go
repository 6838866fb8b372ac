package codetable

import (
	"cmp"
	"slices"

	"github.com/bastiangx/imeserve/pkg/engine"
)

// flattenItem is one value found below the ranked position.
type flattenItem struct {
	text     string
	depth    int
	codes    []rune
	priority uint32
}

// Rank returns every value attached at or below n as ranked candidates.
//
// Shallower values come first, since they need fewer extra codes. Values at
// the same depth are ordered by descending priority, and equal priorities
// keep dictionary order. Nothing is suggested before any code is typed, so
// an empty input yields no candidates.
func Rank(n *Node, input []rune) []engine.Candidate {
	if len(input) == 0 || n == nil {
		return nil
	}
	return rank(n)
}

func rank(n *Node) []engine.Candidate {
	items := flatten(n)
	slices.SortStableFunc(items, func(a, b flattenItem) int {
		if c := cmp.Compare(a.depth, b.depth); c != 0 {
			return c
		}
		return cmp.Compare(b.priority, a.priority)
	})

	out := make([]engine.Candidate, len(items))
	for i, item := range items {
		out[i] = engine.NewCandidate(item.text, item.codes)
	}
	return out
}

func flatten(n *Node) []flattenItem {
	var items []flattenItem
	n.Walk(func(path []rune, cur *Node) bool {
		for _, v := range cur.Values() {
			items = append(items, flattenItem{
				text:     v.Text,
				depth:    len(path),
				codes:    path,
				priority: v.Priority,
			})
		}
		return true
	})
	return items
}
