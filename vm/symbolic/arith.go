package symbolic

import "github.com/chazu/forkvm/vm"

// Arith builds expressions for operations on symbolic operands and folds
// operations on concrete ones, so a run without symbols stays concrete.
type Arith struct{}

var _ vm.Arith = Arith{}

func (Arith) Add(a, b vm.Value) (vm.Value, error) {
	return build(func(l, r Expr) Expr { return Add{L: l, R: r} }, a, b)
}

func (Arith) Sub(a, b vm.Value) (vm.Value, error) {
	return build(func(l, r Expr) Expr { return Sub{L: l, R: r} }, a, b)
}

func (Arith) Mul(a, b vm.Value) (vm.Value, error) {
	return build(func(l, r Expr) Expr { return Mul{L: l, R: r} }, a, b)
}

func (Arith) Neg(a vm.Value) (vm.Value, error) {
	x, err := Lift(a)
	if err != nil {
		return nil, err
	}
	return Simplify(Neg{X: x})
}

func (Arith) Compare(op vm.Cmp, a, b vm.Value) (vm.Value, error) {
	return build(func(l, r Expr) Expr { return Compare{Op: op, L: l, R: r} }, a, b)
}

func (Arith) Not(a vm.Value) (vm.Value, error) {
	return Negate(a)
}

func build(mk func(l, r Expr) Expr, a, b vm.Value) (vm.Value, error) {
	l, r, err := lift2(a, b)
	if err != nil {
		return nil, err
	}
	return Simplify(mk(l, r))
}
