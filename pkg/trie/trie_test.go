package trie

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runes(s string) []rune { return []rune(s) }

func build(t *testing.T, words ...string) Trie[rune, string] {
	t.Helper()
	tr := New[rune, string]()
	for _, w := range words {
		tr = tr.Insert(runes(w), w)
	}
	return tr
}

func TestNewTrie(t *testing.T) {
	tr := New[rune, int]()
	root := tr.Root()
	require.NotNil(t, root)
	assert.Zero(t, root.Len())
	assert.Empty(t, root.Values())
	assert.Nil(t, root.Parent())
}

func TestInsertAndGet(t *testing.T) {
	tr := build(t, "aad", "ab", "b")

	n, ok := tr.Get(runes("aad"))
	require.True(t, ok)
	assert.Equal(t, []string{"aad"}, n.Values())
	assert.Equal(t, 'd', n.Key())

	n, ok = tr.Get(runes("aa"))
	require.True(t, ok)
	assert.Empty(t, n.Values())

	_, ok = tr.Get(runes("abc"))
	assert.False(t, ok)

	root, ok := tr.Get(nil)
	require.True(t, ok)
	assert.Same(t, tr.Root(), root)
}

func TestInsertSameCodeKeepsOrder(t *testing.T) {
	tr := New[rune, string]()
	for _, v := range []string{"1", "2", "啊"} {
		tr = tr.Insert(runes("aad"), v)
	}
	n, ok := tr.Get(runes("aad"))
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2", "啊"}, n.Values())
}

func TestInsertSharesUntouchedSubtrees(t *testing.T) {
	old := build(t, "abc", "abd", "xyz", "xq")
	next := old.Insert(runes("abe"), "abe")

	assert.NotSame(t, old.Root(), next.Root())

	// off-path subtrees are the same pointers
	oldX, _ := old.Get(runes("x"))
	newX, _ := next.Get(runes("x"))
	assert.Same(t, oldX, newX)

	oldABC, _ := old.Get(runes("abc"))
	newABC, _ := next.Get(runes("abc"))
	assert.Same(t, oldABC, newABC)

	oldABD, _ := old.Get(runes("abd"))
	newABD, _ := next.Get(runes("abd"))
	assert.Same(t, oldABD, newABD)

	// on-path nodes are fresh copies
	for _, p := range []string{"a", "ab"} {
		o, _ := old.Get(runes(p))
		n, _ := next.Get(runes(p))
		assert.NotSame(t, o, n, "node %q should have been copied", p)
	}
}

func TestOldSnapshotIsStable(t *testing.T) {
	old := build(t, "ab")
	oldNodes, oldValues := old.Size()

	next := old.Insert(runes("ab"), "second")
	next = next.Insert(runes("abc"), "abc")
	next = next.Insert(runes("z"), "z")

	n, ok := old.Get(runes("ab"))
	require.True(t, ok)
	assert.Equal(t, []string{"ab"}, n.Values())
	assert.Zero(t, n.Len())
	_, ok = old.Get(runes("z"))
	assert.False(t, ok)

	nodes, values := old.Size()
	assert.Equal(t, oldNodes, nodes)
	assert.Equal(t, oldValues, values)

	n, ok = next.Get(runes("ab"))
	require.True(t, ok)
	assert.Equal(t, []string{"ab", "second"}, n.Values())
}

func TestValueListIsCopiedOnWrite(t *testing.T) {
	tr := New[rune, string]()
	tr = tr.Insert(runes("a"), "1")
	tr = tr.Insert(runes("a"), "2")
	base := tr

	left := base.Insert(runes("a"), "left")
	right := base.Insert(runes("a"), "right")

	l, _ := left.Get(runes("a"))
	r, _ := right.Get(runes("a"))
	b, _ := base.Get(runes("a"))
	assert.Equal(t, []string{"1", "2", "left"}, l.Values())
	assert.Equal(t, []string{"1", "2", "right"}, r.Values())
	assert.Equal(t, []string{"1", "2"}, b.Values())
}

func TestInsertOnZeroTrie(t *testing.T) {
	var tr Trie[rune, string]
	assert.Nil(t, tr.Root())
	tr = tr.Insert(runes("a"), "a")
	n, ok := tr.Get(runes("a"))
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, n.Values())
}

func TestParentsUnsetBeforeMaintain(t *testing.T) {
	tr := build(t, "abc")
	n, _ := tr.Get(runes("abc"))
	assert.Nil(t, n.Parent())
}

func TestMaintainLinksEveryNode(t *testing.T) {
	words := []string{"a", "aa", "aad", "aae", "ab", "b", "bcd", "bce", "xyz"}
	tr := build(t, words...)
	tr.Maintain()

	assert.Nil(t, tr.Root().Parent())

	visited := 0
	tr.Root().Walk(func(path []rune, n *Node[rune, string]) bool {
		visited++
		if len(path) == 0 {
			return true
		}
		p := n.Parent()
		require.NotNil(t, p, "node %q has no parent", string(path))
		back, ok := p.Child(path[len(path)-1])
		require.True(t, ok)
		assert.Same(t, n, back, "parent of %q does not lead back", string(path))
		return true
	})
	nodes, _ := tr.Size()
	assert.Equal(t, nodes, visited)
}

// assertLinked checks that every node below the root leads back to itself
// through its parent.
func assertLinked(t *testing.T, tr Trie[rune, string]) {
	t.Helper()
	tr.Root().Walk(func(path []rune, n *Node[rune, string]) bool {
		if len(path) == 0 {
			assert.Nil(t, n.Parent())
			return true
		}
		p := n.Parent()
		require.NotNil(t, p, "node %q has no parent", string(path))
		back, ok := p.Child(path[len(path)-1])
		require.True(t, ok)
		assert.Same(t, n, back, "parent of %q does not lead back", string(path))
		return true
	})
}

func TestMaintainKeepsOlderVersionLinks(t *testing.T) {
	old := build(t, "ab", "x")
	old.Maintain()
	oldA, _ := old.Get(runes("a"))
	oldB, _ := old.Get(runes("ab"))
	oldX, _ := old.Get(runes("x"))

	next := old.Insert(runes("ac"), "ac")
	next.Maintain()

	assert.Same(t, oldA, oldB.Parent())
	assert.Same(t, old.Root(), oldA.Parent())
	assert.Same(t, old.Root(), oldX.Parent())
	assert.Equal(t, 1, oldA.Len())
	assertLinked(t, old)
	assertLinked(t, next)

	b, _ := next.Get(runes("ab"))
	assert.NotSame(t, oldB, b)
	assert.Equal(t, []string{"ab"}, b.Values())
	a, _ := next.Get(runes("a"))
	assert.Equal(t, []rune{'b', 'c'}, a.Keys())
}

func TestMaintainFreshBuildCopiesNothing(t *testing.T) {
	tr := build(t, "ab", "ac", "b")
	root := tr.Root()
	ab, _ := tr.Get(runes("ab"))

	tr.Maintain()
	assert.Same(t, root, tr.Root())
	got, _ := tr.Get(runes("ab"))
	assert.Same(t, ab, got)

	// a second pass over the same version is a no-op
	tr.Maintain()
	assert.Same(t, root, tr.Root())
	assertLinked(t, tr)
}

func TestMaintainCopyOfTrieKeepsVersion(t *testing.T) {
	old := build(t, "ab")
	old.Maintain()
	next := old.Insert(runes("ac"), "ac")
	before := next
	next.Maintain()

	a, _ := before.Get(runes("a"))
	assert.Nil(t, a.Parent())
	assertLinked(t, next)
}

func TestWalkBreadthFirstSorted(t *testing.T) {
	tr := build(t, "ba", "a", "ab", "c")
	var got []string
	tr.Root().Walk(func(path []rune, _ *Node[rune, string]) bool {
		got = append(got, string(path))
		return true
	})
	assert.Equal(t, []string{"", "a", "b", "c", "ab", "ba"}, got)
}

func TestWalkStops(t *testing.T) {
	tr := build(t, "a", "b", "c")
	count := 0
	tr.Root().Walk(func(_ []rune, _ *Node[rune, string]) bool {
		count++
		return count < 2
	})
	assert.Equal(t, 2, count)
}

func TestWalkPathsAreIndependent(t *testing.T) {
	tr := build(t, "abc", "abd", "abe")
	var paths [][]rune
	tr.Root().Walk(func(path []rune, _ *Node[rune, string]) bool {
		paths = append(paths, path)
		return true
	})
	var got []string
	for _, p := range paths {
		got = append(got, string(p))
	}
	assert.Equal(t, []string{"", "a", "ab", "abc", "abd", "abe"}, got)
}

func TestSize(t *testing.T) {
	tr := New[rune, int]()
	for i := 0; i < 10; i++ {
		tr = tr.Insert(runes(fmt.Sprintf("k%d", i)), i)
	}
	tr = tr.Insert(runes("k1"), 100)
	nodes, values := tr.Size()
	assert.Equal(t, 12, nodes)
	assert.Equal(t, 11, values)
}

func BenchmarkInsert(b *testing.B) {
	codes := make([][]rune, 1000)
	for i := range codes {
		codes[i] = runes(fmt.Sprintf("%04x", i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr := New[rune, int]()
		for j, c := range codes {
			tr = tr.Insert(c, j)
		}
		tr.Maintain()
	}
}
