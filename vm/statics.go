package vm

import (
	"fmt"
	"maps"
	"slices"

	"github.com/chazu/forkvm/vm/trie"
)

// staticBlock locates one class's static fields in the statics store.
type staticBlock struct {
	base trie.Address
	size int
}

// Statics holds static fields per class. Field values live in a
// copy-on-write trie like the heap. The class index is shared between
// snapshots and replaced, never mutated, when a class is defined.
type Statics struct {
	store   *trie.Trie
	classes map[string]staticBlock
}

// NewStatics returns an empty statics table.
func NewStatics() *Statics {
	return &Statics{
		store:   trie.New(),
		classes: map[string]staticBlock{},
	}
}

// Define reserves fieldCount static fields for class.
func (s *Statics) Define(class string, fieldCount int) error {
	if _, ok := s.classes[class]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateClass, class)
	}
	if fieldCount < 0 {
		return fmt.Errorf("%w: %d static fields for %s", ErrInvalidArgument, fieldCount, class)
	}

	block := staticBlock{size: fieldCount}
	if fieldCount > 0 {
		a, err := s.store.Allocate(fieldCount)
		if err != nil {
			return fmt.Errorf("define %s: %w", class, err)
		}
		block.base = a
	}

	classes := maps.Clone(s.classes)
	classes[class] = block
	s.classes = classes
	return nil
}

// Defined reports whether class has been defined.
func (s *Statics) Defined(class string) bool {
	_, ok := s.classes[class]
	return ok
}

// Classes returns the defined class names in sorted order.
func (s *Statics) Classes() []string {
	return slices.Sorted(maps.Keys(s.classes))
}

func (s *Statics) address(class string, offset int) (trie.Address, error) {
	block, ok := s.classes[class]
	if !ok {
		return trie.Null, fmt.Errorf("%w: %s", ErrUndefinedClass, class)
	}
	if offset < 0 || offset >= block.size {
		return trie.Null, fmt.Errorf("%w: %s static %d of %d", trie.ErrInvalidAddress, class, offset, block.size)
	}
	return block.base + trie.Address(offset), nil
}

// Get reads static field offset of class.
func (s *Statics) Get(class string, offset int) (Value, error) {
	a, err := s.address(class, offset)
	if err != nil {
		return nil, err
	}
	return s.store.Get(a)
}

// Put writes static field offset of class.
func (s *Statics) Put(class string, offset int, v Value) error {
	a, err := s.address(class, offset)
	if err != nil {
		return err
	}
	_, err = s.store.Insert(a, v)
	return err
}

// Snapshot returns an independent statics table sharing storage with s.
func (s *Statics) Snapshot() *Statics {
	return &Statics{
		store:   s.store.Clone(),
		classes: s.classes,
	}
}

// Fields returns the static field values of class.
func (s *Statics) Fields(class string) ([]Value, error) {
	block, ok := s.classes[class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUndefinedClass, class)
	}
	out := make([]Value, block.size)
	for i := range out {
		v, err := s.store.Get(block.base + trie.Address(i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Equal compares class definitions and field values.
func (s *Statics) Equal(o *Statics) bool {
	if len(s.classes) != len(o.classes) {
		return false
	}
	for name, block := range s.classes {
		ob, ok := o.classes[name]
		if !ok || ob.size != block.size {
			return false
		}
		a, _ := s.Fields(name)
		b, _ := o.Fields(name)
		if !valuesEqual(a, b) {
			return false
		}
	}
	return true
}

func (s *Statics) release() {
	s.store.Release()
}
