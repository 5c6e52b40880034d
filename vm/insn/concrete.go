package insn

import (
	"fmt"

	"github.com/chazu/forkvm/vm"
)

// Concrete is machine arithmetic on int64 values with wrap-around overflow.
// Any other operand fails with vm.ErrNotConcrete.
type Concrete struct{}

var _ vm.Arith = Concrete{}

func ints(a, b vm.Value) (int64, int64, error) {
	x, ok := a.(int64)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %v (%T)", vm.ErrNotConcrete, a, a)
	}
	y, ok := b.(int64)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %v (%T)", vm.ErrNotConcrete, b, b)
	}
	return x, y, nil
}

func (Concrete) Add(a, b vm.Value) (vm.Value, error) {
	x, y, err := ints(a, b)
	if err != nil {
		return nil, err
	}
	return x + y, nil
}

func (Concrete) Sub(a, b vm.Value) (vm.Value, error) {
	x, y, err := ints(a, b)
	if err != nil {
		return nil, err
	}
	return x - y, nil
}

func (Concrete) Mul(a, b vm.Value) (vm.Value, error) {
	x, y, err := ints(a, b)
	if err != nil {
		return nil, err
	}
	return x * y, nil
}

func (Concrete) Neg(a vm.Value) (vm.Value, error) {
	x, _, err := ints(a, int64(0))
	if err != nil {
		return nil, err
	}
	return -x, nil
}

func (Concrete) Compare(op vm.Cmp, a, b vm.Value) (vm.Value, error) {
	x, y, err := ints(a, b)
	if err != nil {
		return nil, err
	}
	switch op {
	case vm.CmpEq:
		return x == y, nil
	case vm.CmpNe:
		return x != y, nil
	case vm.CmpLt:
		return x < y, nil
	case vm.CmpLe:
		return x <= y, nil
	case vm.CmpGt:
		return x > y, nil
	case vm.CmpGe:
		return x >= y, nil
	default:
		return nil, fmt.Errorf("%w: comparison %v", vm.ErrInvalidArgument, op)
	}
}

func (Concrete) Not(a vm.Value) (vm.Value, error) {
	b, ok := a.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: %v (%T)", vm.ErrNotBoolean, a, a)
	}
	return !b, nil
}
