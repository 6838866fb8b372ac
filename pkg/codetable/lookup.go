package codetable

import (
	"cmp"
	"slices"

	"github.com/bastiangx/imeserve/pkg/dictionary"
	"github.com/tchap/go-patricia/v2/patricia"
)

// LookupResult is one text to code mapping found by Lookup.
type LookupResult struct {
	Text     string `msgpack:"text"`
	Code     string `msgpack:"codes"`
	Priority uint32 `msgpack:"priority"`
}

type reverseCode struct {
	code     string
	priority uint32
}

func addReverse(idx *patricia.Trie, e dictionary.Entry) {
	key := patricia.Prefix(e.Text)
	rc := reverseCode{code: e.Code, priority: e.Priority}
	if item := idx.Get(key); item != nil {
		idx.Set(key, append(item.([]reverseCode), rc))
		return
	}
	idx.Insert(key, []reverseCode{rc})
}

// Lookup returns the codes of every text starting with prefix. Results are
// sorted by text, then by descending priority. A limit of zero or less
// returns everything.
func (t *CodeTable) Lookup(prefix string, limit int) []LookupResult {
	var out []LookupResult
	visit := func(key patricia.Prefix, item patricia.Item) error {
		for _, rc := range item.([]reverseCode) {
			out = append(out, LookupResult{Text: string(key), Code: rc.code, Priority: rc.priority})
		}
		return nil
	}
	if prefix == "" {
		_ = t.reverse.Visit(visit)
	} else {
		_ = t.reverse.VisitSubtree(patricia.Prefix(prefix), visit)
	}

	slices.SortStableFunc(out, func(a, b LookupResult) int {
		if c := cmp.Compare(a.Text, b.Text); c != 0 {
			return c
		}
		return cmp.Compare(b.Priority, a.Priority)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
