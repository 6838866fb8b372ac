// Package trie provides a persistent prefix tree keyed by code sequences.
//
// Nodes are never modified once they are reachable from a trie value. An
// insert copies the nodes on the inserted path and shares every other subtree
// with the previous version, so older versions stay valid for readers that
// still hold them.
//
// Parent links are the single exception: they cannot be known while the tree
// is still being rewritten, so they are filled in by one Maintain pass after
// the last insert.
package trie

import (
	"cmp"
	"slices"
)

// Node is one position in the tree. A node carries the values whose code
// ends exactly here, in insertion order.
type Node[K cmp.Ordered, V any] struct {
	key      K
	children map[K]*Node[K, V]
	values   []V
	parent   *Node[K, V]
}

func newNode[K cmp.Ordered, V any](key K) *Node[K, V] {
	return &Node[K, V]{key: key}
}

// Key returns the code unit that leads from the parent to this node.
// The root returns the zero value.
func (n *Node[K, V]) Key() K {
	return n.key
}

// Child returns the child reached by key.
func (n *Node[K, V]) Child(key K) (*Node[K, V], bool) {
	child, ok := n.children[key]
	return child, ok
}

// Parent returns the node above n, or nil for the root and for nodes of a
// trie that has not been maintained.
func (n *Node[K, V]) Parent() *Node[K, V] {
	return n.parent
}

// Values returns the values attached at n. The slice is shared with the tree
// and must not be modified.
func (n *Node[K, V]) Values() []V {
	return n.values
}

// Keys returns the child keys in ascending order.
func (n *Node[K, V]) Keys() []K {
	keys := make([]K, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of children.
func (n *Node[K, V]) Len() int {
	return len(n.children)
}

// clone returns a shallow copy with its own children map. The parent link is
// not carried over: a copy belongs to a new version and gets its parent from
// the next Maintain.
func (n *Node[K, V]) clone() *Node[K, V] {
	c := &Node[K, V]{
		key:      n.key,
		children: make(map[K]*Node[K, V], len(n.children)+1),
		values:   n.values,
	}
	for k, child := range n.children {
		c.children[k] = child
	}
	return c
}

// push returns a copy of n with v appended to its values.
func (n *Node[K, V]) push(v V) *Node[K, V] {
	c := n.clone()
	c.values = append(slices.Clip(n.values), v)
	return c
}

// update returns the copy of n that has v stored under pattern.
func (n *Node[K, V]) update(pattern []K, v V) *Node[K, V] {
	if len(pattern) == 0 {
		return n.push(v)
	}
	k := pattern[0]
	child, ok := n.children[k]
	if !ok {
		child = newNode[K, V](k)
	}
	c := n.clone()
	c.children[k] = child.update(pattern[1:], v)
	return c
}

// markLinked records n and every node below it that cannot take a parent link
// in place: one already linked to a node other than the one holding it, or
// one above such a node. holder is the node whose children map holds n.
func (n *Node[K, V]) markLinked(holder *Node[K, V], linked map[*Node[K, V]]bool) bool {
	conflict := n.parent != nil && n.parent != holder
	for _, child := range n.children {
		if child.markLinked(n, linked) {
			conflict = true
		}
	}
	if conflict {
		linked[n] = true
	}
	return conflict
}

// link sets parent as the parent of n and returns the node that now sits at
// n's position. Marked nodes, and nodes whose old parent was replaced by a
// copy, are copied first. Children of a node kept in place are never marked,
// so its children map is left untouched.
func (n *Node[K, V]) link(parent *Node[K, V], linked map[*Node[K, V]]bool) *Node[K, V] {
	next := n
	if linked[n] || (n.parent != nil && n.parent != parent) {
		next = n.clone()
	}
	next.parent = parent
	for k, child := range n.children {
		if c := child.link(next, linked); c != child {
			next.children[k] = c
		}
	}
	return next
}

// Walk visits n and every node below it breadth first. Children of one node
// are visited in ascending key order. path holds the keys from n to the
// visited node and is owned by the callback. Returning false stops the walk.
func (n *Node[K, V]) Walk(fn func(path []K, node *Node[K, V]) bool) {
	type item struct {
		node *Node[K, V]
		path []K
	}
	queue := []item{{node: n}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if !fn(cur.path, cur.node) {
			return
		}
		for _, k := range cur.node.Keys() {
			queue = append(queue, item{
				node: cur.node.children[k],
				path: append(slices.Clip(cur.path), k),
			})
		}
	}
}
