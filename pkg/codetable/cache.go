package codetable

import (
	"time"

	"github.com/bastiangx/imeserve/internal/metrics"
	"github.com/bastiangx/imeserve/pkg/engine"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of ranked positions kept per table.
const DefaultCacheSize = 4096

// Ranker ranks subtrees and remembers the result per node. Nodes of a
// finished table never change, so a node pointer is a complete cache key.
//
// Cached slices are shared by every context that reaches the same node and
// must not be modified.
type Ranker struct {
	cache *lru.Cache[*Node, []engine.Candidate]
}

// NewRanker returns a ranker caching up to size positions. A size of zero
// or less disables caching.
func NewRanker(size int) (*Ranker, error) {
	if size <= 0 {
		return &Ranker{}, nil
	}
	cache, err := lru.New[*Node, []engine.Candidate](size)
	if err != nil {
		return nil, err
	}
	return &Ranker{cache: cache}, nil
}

// Rank is the cached form of the package level Rank.
func (r *Ranker) Rank(n *Node, input []rune) []engine.Candidate {
	if len(input) == 0 || n == nil {
		return nil
	}
	if r == nil || r.cache == nil {
		return r.timed(n)
	}
	if cached, ok := r.cache.Get(n); ok {
		metrics.CandidateCache.WithLabelValues("hit").Inc()
		return cached
	}
	metrics.CandidateCache.WithLabelValues("miss").Inc()
	ranked := r.timed(n)
	r.cache.Add(n, ranked)
	return ranked
}

// Len returns the number of cached positions.
func (r *Ranker) Len() int {
	if r == nil || r.cache == nil {
		return 0
	}
	return r.cache.Len()
}

// Purge drops every cached position.
func (r *Ranker) Purge() {
	if r != nil && r.cache != nil {
		r.cache.Purge()
	}
}

func (r *Ranker) timed(n *Node) []engine.Candidate {
	start := time.Now()
	ranked := rank(n)
	metrics.RankDuration.Observe(time.Since(start).Seconds())
	return ranked
}
