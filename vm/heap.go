package vm

import (
	"fmt"
	"math"

	"github.com/chazu/forkvm/vm/trie"
)

// ---------------------------------------------------------------------------
// Heap: object storage over a copy-on-write trie
// ---------------------------------------------------------------------------

// Heap allocates fixed-size objects as runs of consecutive trie addresses.
// Field access is flat: the caller is responsible for object layout, and
// the only bounds check is the trie's own.
type Heap struct {
	store *trie.Trie
}

// NewHeap returns an empty heap.
func NewHeap() *Heap {
	return &Heap{store: trie.New()}
}

// NewObject reserves fieldCount fields, all nil, and returns a reference to
// the first.
func (h *Heap) NewObject(fieldCount int) (ObjectRef, error) {
	a, err := h.store.Allocate(fieldCount)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("new object: %w", err)
	}
	return ObjectRef{Address: a}, nil
}

// Get reads field offset of ref.
func (h *Heap) Get(ref ObjectRef, offset int) (Value, error) {
	a, err := fieldAddress(ref, offset)
	if err != nil {
		return nil, err
	}
	return h.store.Get(a)
}

// Put writes field offset of ref.
func (h *Heap) Put(ref ObjectRef, offset int, v Value) error {
	a, err := fieldAddress(ref, offset)
	if err != nil {
		return err
	}
	_, err = h.store.Insert(a, v)
	return err
}

func fieldAddress(ref ObjectRef, offset int) (trie.Address, error) {
	a := int64(ref.Address) + int64(offset)
	if a < 0 || a > math.MaxUint32 {
		return trie.Null, fmt.Errorf("%w: %v+%d", trie.ErrInvalidAddress, ref, offset)
	}
	return trie.Address(a), nil
}

// NullPointer returns the null reference.
func (h *Heap) NullPointer() ObjectRef {
	return ObjectRef{Address: trie.Null}
}

// Hash returns a hash code for ref.
func (h *Heap) Hash(ref ObjectRef) uint32 {
	return uint32(ref.Address)
}

// Snapshot returns an independent heap sharing all storage with h. It costs
// one reference-count increment.
func (h *Heap) Snapshot() *Heap {
	return &Heap{store: h.store.Clone()}
}

// Copies returns how many trie nodes this heap copied on write since it was
// created or snapshotted.
func (h *Heap) Copies() int {
	return h.store.Copies()
}

// Size returns the number of addresses in use, counting null.
func (h *Heap) Size() int {
	return h.store.Len()
}

// Equal compares two heaps field by field.
func (h *Heap) Equal(o *Heap) bool {
	return h.store.Equal(o.store, Equal)
}

func (h *Heap) release() {
	h.store.Release()
}

// SharesStorage reports whether h and o still share their whole store, as
// a fresh snapshot does.
func (h *Heap) SharesStorage(o *Heap) bool {
	return h.store.SharesRoot(o.store)
}

func (h *Heap) String() string {
	return h.store.String()
}
