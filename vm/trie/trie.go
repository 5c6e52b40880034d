// Package trie implements the copy-on-write addressable store that backs
// the forkvm heap and statics tables.
//
// A Trie is a reference-counted bit trie keyed by dense 32-bit addresses.
// Each address is a packed sequence of per-level offsets, so the location of
// a value is a direct function of its address. Cloning a Trie copies one root
// pointer and bumps one reference count; writes copy shared nodes on the way
// down to the leaf and leave every other node shared.
//
// The scheme follows Rodeh, "B-trees, shadowing, and clones" (ACM TOS 3.4,
// 2008), with a fixed-geometry bit trie in place of the b-tree.
package trie

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync/atomic"
)

// Address identifies one slot in a Trie. Address 0 is reserved for null.
type Address uint32

// Null is the reserved null address.
const Null Address = 0

// Value is anything stored in a slot. The trie never inspects values.
type Value = any

// ---------------------------------------------------------------------------
// Level geometry
// ---------------------------------------------------------------------------

//	 8    7    6    5    4    3    2    1
//	000-0000-0000-0000-0000-0000-0000-00000

const levels = 8

// capacity is one past the largest address.
const capacity = uint64(1) << 32

var (
	widths = [levels + 1]uint32{0, 32, 16, 16, 16, 16, 16, 16, 8}
	shifts = [levels + 1]uint32{0, 0, 5, 9, 13, 17, 21, 25, 29}
)

// offset returns the child index addressed by a at the given level.
func offset(a Address, level int) int {
	return int((uint32(a) >> shifts[level]) & (widths[level] - 1))
}

// depthFor returns the number of levels needed to reach address a.
func depthFor(a Address) int {
	for d := 1; d < levels; d++ {
		if uint64(a) < uint64(1)<<shifts[d+1] {
			return d
		}
	}
	return levels
}

// ---------------------------------------------------------------------------
// Nodes
// ---------------------------------------------------------------------------

// node is one level of the trie. Leaf nodes (level 1) carry vals, interior
// nodes carry kids. refs counts incoming edges, including a store root.
type node struct {
	refs atomic.Int32
	kids []*node
	vals []Value
}

func newNode(level int) *node {
	n := &node{}
	n.refs.Store(1)
	if level == 1 {
		n.vals = make([]Value, widths[1])
	} else {
		n.kids = make([]*node, widths[level])
	}
	return n
}

// release drops one incoming edge. A node nobody points at gives up its
// own edges to its children.
func (n *node) release() {
	if n.refs.Add(-1) > 0 {
		return
	}
	for _, k := range n.kids {
		if k != nil {
			k.release()
		}
	}
}

// ---------------------------------------------------------------------------
// Trie
// ---------------------------------------------------------------------------

// Trie is a fast-clone associative array that hands out addresses in
// sequence. It is optimised for writes clustered in one leaf: such a write
// copies a single root-to-leaf path. A write pattern spanning two adjacent
// leaves may copy up to twice the depth.
//
// A Trie value is not safe for concurrent use. Distinct clones may be
// written from different goroutines once every clone involved exists.
type Trie struct {
	root     *node
	depth    int
	free     uint64
	copies   int
	released bool
}

// New returns an empty trie. The first allocation returns address 1.
func New() *Trie {
	return &Trie{depth: 1, free: 1}
}

// Allocate reserves count consecutive addresses and returns the first.
// Every reserved address reads as nil until written.
func (t *Trie) Allocate(count int) (Address, error) {
	if t.released {
		return Null, ErrReleased
	}
	if count <= 0 {
		return Null, fmt.Errorf("%w: cannot allocate %d slots", ErrInvalidArgument, count)
	}
	if t.free+uint64(count) > capacity {
		return Null, fmt.Errorf("%w: %d slots requested, %d left", ErrCapacityExceeded, count, capacity-t.free)
	}
	first := Address(t.free)
	t.free += uint64(count)
	t.grow(depthFor(Address(t.free - 1)))
	return first, nil
}

// grow raises the trie to depth levels. The old root becomes child 0 of the
// new root, taking the store's edge with it, so its count is unchanged.
func (t *Trie) grow(depth int) {
	for t.depth < depth {
		t.depth++
		if t.root == nil {
			continue
		}
		r := newNode(t.depth)
		r.kids[0] = t.root
		t.root = r
	}
}

// Insert writes v at addr and returns the value previously there. addr must
// already be allocated.
func (t *Trie) Insert(addr Address, v Value) (Value, error) {
	if t.released {
		return nil, ErrReleased
	}
	if addr == Null || uint64(addr) >= t.free {
		return nil, fmt.Errorf("%w: insert at %d, next free %d", ErrInvalidAddress, addr, t.free)
	}

	slot := &t.root
	for level := t.depth; ; level-- {
		if *slot == nil {
			*slot = newNode(level)
		}
		n := t.own(slot)
		if level == 1 {
			i := offset(addr, 1)
			old := n.vals[i]
			n.vals[i] = v
			return old, nil
		}
		slot = &n.kids[offset(addr, level)]
	}
}

// own makes the node in slot exclusively owned by this trie, copying it if
// it is shared. The copy adds an edge to every child, so children are
// counted before the original gives up this trie's edge.
func (t *Trie) own(slot **node) *node {
	n := *slot
	if n.refs.Load() == 1 {
		return n
	}

	cp := &node{}
	cp.refs.Store(1)
	if n.kids != nil {
		cp.kids = slices.Clone(n.kids)
		for _, k := range cp.kids {
			if k != nil {
				k.refs.Add(1)
			}
		}
	} else {
		cp.vals = slices.Clone(n.vals)
	}

	*slot = cp
	n.release()
	t.copies++
	return cp
}

// Get returns the value at addr. Address 0 always reads as nil. Reads never
// copy and never touch reference counts.
func (t *Trie) Get(addr Address) (Value, error) {
	if t.released {
		return nil, ErrReleased
	}
	if addr == Null {
		return nil, nil
	}
	if uint64(addr) >= t.free {
		return nil, fmt.Errorf("%w: read at %d, next free %d", ErrInvalidAddress, addr, t.free)
	}
	return t.get(addr), nil
}

func (t *Trie) get(addr Address) Value {
	n := t.root
	for level := t.depth; level > 1 && n != nil; level-- {
		n = n.kids[offset(addr, level)]
	}
	if n == nil {
		return nil
	}
	return n.vals[offset(addr, 1)]
}

// Clone returns a new trie sharing every node with t. It copies the root
// pointer and increments that one node's count.
func (t *Trie) Clone() *Trie {
	c := &Trie{
		root:     t.root,
		depth:    t.depth,
		free:     t.free,
		released: t.released,
	}
	if t.root != nil {
		t.root.refs.Add(1)
	}
	return c
}

// Release gives up this trie's reference to its nodes. Nodes no longer
// referenced by any trie release their children in turn. A released trie
// rejects every further read and write.
func (t *Trie) Release() {
	if t.released {
		return
	}
	t.released = true
	if t.root != nil {
		t.root.release()
		t.root = nil
	}
}

// SharesRoot reports whether t and o currently point at the same root node,
// as they do right after Clone and before either writes.
func (t *Trie) SharesRoot(o *Trie) bool {
	return t.root != nil && t.root == o.root
}

// Released reports whether Release has been called.
func (t *Trie) Released() bool { return t.released }

// Free returns the next address Allocate will hand out.
func (t *Trie) Free() uint64 { return t.free }

// Depth returns the number of levels currently in use.
func (t *Trie) Depth() int { return t.depth }

// Copies returns how many nodes this trie has copied on write since it was
// created or cloned.
func (t *Trie) Copies() int { return t.copies }

// Len returns the number of addresses handed out, counting the null address.
func (t *Trie) Len() int { return int(t.free) }

// All yields every address below Free with its value, starting at Null.
func (t *Trie) All() iter.Seq2[Address, Value] {
	return func(yield func(Address, Value) bool) {
		if t.released {
			return
		}
		for a := uint64(0); a < t.free; a++ {
			if !yield(Address(a), t.get(Address(a))) {
				return
			}
		}
	}
}

// Equal reports whether t and o hold the same values at the same addresses,
// comparing values with eq. Shared structure is a shortcut, not a
// requirement.
func (t *Trie) Equal(o *Trie, eq func(a, b Value) bool) bool {
	if t.free != o.free || t.released != o.released {
		return false
	}
	if t.root == o.root && t.depth == o.depth {
		return true
	}
	for a := uint64(1); a < t.free; a++ {
		if !eq(t.get(Address(a)), o.get(Address(a))) {
			return false
		}
	}
	return true
}

func (t *Trie) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for a, v := range t.All() {
		if a > 0 {
			b.WriteString(", ")
		}
		if v == nil {
			b.WriteString("<nil>")
		} else {
			fmt.Fprint(&b, v)
		}
	}
	b.WriteByte(']')
	return b.String()
}
