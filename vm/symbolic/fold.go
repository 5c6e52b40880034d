package symbolic

import (
	"fmt"

	"github.com/chazu/forkvm/vm"
)

// Simplify folds constants in v. The result is a concrete int64 or bool when
// v has no free symbols, and an expression otherwise.
func Simplify(v vm.Value) (vm.Value, error) {
	switch v := v.(type) {
	case int64, bool:
		return v, nil
	case Sym:
		return v, nil
	case Const:
		return v.V, nil
	case Add:
		return foldBinary(v.L, v.R, func(x, y int64) int64 { return x + y }, addExpr)
	case Sub:
		return foldBinary(v.L, v.R, func(x, y int64) int64 { return x - y }, subExpr)
	case Mul:
		return foldBinary(v.L, v.R, func(x, y int64) int64 { return x * y }, mulExpr)
	case Neg:
		x, err := Simplify(v.X)
		if err != nil {
			return nil, err
		}
		return negExpr(x)
	case Compare:
		l, err := Simplify(v.L)
		if err != nil {
			return nil, err
		}
		r, err := Simplify(v.R)
		if err != nil {
			return nil, err
		}
		return compareExpr(v.Op, l, r)
	case Not:
		x, err := Simplify(v.X)
		if err != nil {
			return nil, err
		}
		return notExpr(x)
	default:
		return nil, fmt.Errorf("%w: cannot simplify %v (%T)", vm.ErrInvalidArgument, v, v)
	}
}

func foldBinary(l, r Expr, op func(x, y int64) int64, build func(l, r vm.Value) (vm.Value, error)) (vm.Value, error) {
	a, err := Simplify(l)
	if err != nil {
		return nil, err
	}
	b, err := Simplify(r)
	if err != nil {
		return nil, err
	}
	x, ok1 := a.(int64)
	y, ok2 := b.(int64)
	if ok1 && ok2 {
		return op(x, y), nil
	}
	return build(a, b)
}

func isInt(v vm.Value, want int64) bool {
	x, ok := v.(int64)
	return ok && x == want
}

func lift2(a, b vm.Value) (Expr, Expr, error) {
	l, err := Lift(a)
	if err != nil {
		return nil, nil, err
	}
	r, err := Lift(b)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

// The builders below take already simplified operands.

func addExpr(a, b vm.Value) (vm.Value, error) {
	switch {
	case isInt(a, 0):
		return b, nil
	case isInt(b, 0):
		return a, nil
	}
	l, r, err := lift2(a, b)
	if err != nil {
		return nil, err
	}
	return Add{L: l, R: r}, nil
}

func subExpr(a, b vm.Value) (vm.Value, error) {
	if isInt(b, 0) {
		return a, nil
	}
	l, r, err := lift2(a, b)
	if err != nil {
		return nil, err
	}
	if l.Equal(r) {
		return int64(0), nil
	}
	if isInt(a, 0) {
		return negExpr(b)
	}
	return Sub{L: l, R: r}, nil
}

func mulExpr(a, b vm.Value) (vm.Value, error) {
	switch {
	case isInt(a, 0), isInt(b, 0):
		return int64(0), nil
	case isInt(a, 1):
		return b, nil
	case isInt(b, 1):
		return a, nil
	}
	l, r, err := lift2(a, b)
	if err != nil {
		return nil, err
	}
	return Mul{L: l, R: r}, nil
}

func negExpr(a vm.Value) (vm.Value, error) {
	switch a := a.(type) {
	case int64:
		return -a, nil
	case Neg:
		return a.X, nil
	}
	x, err := Lift(a)
	if err != nil {
		return nil, err
	}
	return Neg{X: x}, nil
}

func compareExpr(op vm.Cmp, a, b vm.Value) (vm.Value, error) {
	x, ok1 := a.(int64)
	y, ok2 := b.(int64)
	if ok1 && ok2 {
		return compareInts(op, x, y), nil
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok && (op == vm.CmpEq || op == vm.CmpNe) {
			return (ba == bb) == (op == vm.CmpEq), nil
		}
	}
	l, r, err := lift2(a, b)
	if err != nil {
		return nil, err
	}
	if l.Equal(r) {
		switch op {
		case vm.CmpEq, vm.CmpLe, vm.CmpGe:
			return true, nil
		default:
			return false, nil
		}
	}
	return Compare{Op: op, L: l, R: r}, nil
}

func compareInts(op vm.Cmp, x, y int64) bool {
	switch op {
	case vm.CmpEq:
		return x == y
	case vm.CmpNe:
		return x != y
	case vm.CmpLt:
		return x < y
	case vm.CmpLe:
		return x <= y
	case vm.CmpGt:
		return x > y
	default:
		return x >= y
	}
}

func notExpr(a vm.Value) (vm.Value, error) {
	switch a := a.(type) {
	case bool:
		return !a, nil
	case Compare:
		return Compare{Op: a.Op.Negate(), L: a.L, R: a.R}, nil
	case Not:
		return a.X, nil
	case Expr:
		return Not{X: a}, nil
	default:
		return nil, fmt.Errorf("%w: cannot negate %v (%T)", vm.ErrNotBoolean, a, a)
	}
}

// Negate returns the simplified negation of a condition.
func Negate(cond vm.Value) (vm.Value, error) {
	c, err := Simplify(cond)
	if err != nil {
		return nil, err
	}
	return notExpr(c)
}
