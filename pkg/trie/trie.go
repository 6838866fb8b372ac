package trie

import "cmp"

// Trie is a value holding the root of one version of the tree. Copying a
// Trie is cheap and both copies see the same version.
type Trie[K cmp.Ordered, V any] struct {
	root *Node[K, V]
}

// New returns a trie holding one empty root node.
func New[K cmp.Ordered, V any]() Trie[K, V] {
	var zero K
	return Trie[K, V]{root: newNode[K, V](zero)}
}

// Root returns the root node of this version.
func (t Trie[K, V]) Root() *Node[K, V] {
	return t.root
}

// Insert returns a new version with v appended under pattern. Only the nodes
// along pattern are allocated; every other subtree is shared with t, and t
// itself is left unchanged.
func (t Trie[K, V]) Insert(pattern []K, v V) Trie[K, V] {
	root := t.root
	if root == nil {
		var zero K
		root = newNode[K, V](zero)
	}
	return Trie[K, V]{root: root.update(pattern, v)}
}

// Get returns the node reached by pattern.
func (t Trie[K, V]) Get(pattern []K) (*Node[K, V], bool) {
	cur := t.root
	if cur == nil {
		return nil, false
	}
	for _, k := range pattern {
		next, ok := cur.Child(k)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Maintain sets the parent link of every node reachable from the root. It
// must run after the last Insert and before the trie is shared with readers.
// A node already linked under another version is copied, together with the
// path above it, so versions maintained earlier keep their links. Maintain
// may replace the root; copies of t taken before the call still hold the
// previous version.
func (t *Trie[K, V]) Maintain() {
	if t.root == nil {
		return
	}
	linked := make(map[*Node[K, V]]bool)
	t.root.markLinked(nil, linked)
	t.root = t.root.link(nil, linked)
}

// Size returns the number of nodes and the number of values in the trie.
func (t Trie[K, V]) Size() (nodes, values int) {
	if t.root == nil {
		return 0, 0
	}
	t.root.Walk(func(_ []K, n *Node[K, V]) bool {
		nodes++
		values += len(n.values)
		return true
	})
	return nodes, values
}
