package vm

import (
	"fmt"
	"reflect"

	"github.com/chazu/forkvm/vm/trie"
)

// Value is anything held in a local, an operand slot, a heap field or a
// static field: a concrete machine word, an object reference or a symbolic
// token. The core only compares and renders values.
type Value = any

// Equaler is implemented by values with their own notion of equality, such
// as symbolic expression trees.
type Equaler interface {
	Equal(other Value) bool
}

// Equal reports whether two values are equal. Values implementing Equaler
// decide for themselves; comparable values use ==; anything else falls back
// to a deep comparison.
func Equal(a, b Value) bool {
	if e, ok := a.(Equaler); ok {
		return e.Equal(b)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func valuesEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// ObjectRef
// ---------------------------------------------------------------------------

// ObjectRef is a reference to a heap object: the address of its first field.
type ObjectRef struct {
	Address trie.Address
}

// IsNull reports whether r is the null reference.
func (r ObjectRef) IsNull() bool {
	return r.Address == trie.Null
}

func (r ObjectRef) String() string {
	if r.IsNull() {
		return "null"
	}
	return fmt.Sprintf("@%d", r.Address)
}

// AsRef converts an operand to an object reference.
func AsRef(v Value) (ObjectRef, error) {
	r, ok := v.(ObjectRef)
	if !ok {
		return ObjectRef{}, fmt.Errorf("%w: %v (%T)", ErrNotReference, v, v)
	}
	return r, nil
}
