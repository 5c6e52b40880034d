// Package symbolic provides symbolic values for forkvm: immutable
// expression tokens, the path constraint carried as state meta, and a
// constant-folding feasibility checker.
package symbolic

import (
	"fmt"

	"github.com/chazu/forkvm/vm"
)

// Expr is a symbolic expression. Expressions are immutable, comparable and
// usable as map keys. Concrete operands stay plain int64 and bool values
// outside expressions and become Const inside them.
type Expr interface {
	vm.Equaler
	fmt.Stringer
	isExpr()
}

// Sym is a free input.
type Sym struct {
	Name string
}

// Const is a concrete integer inside an expression.
type Const struct {
	V int64
}

type Add struct{ L, R Expr }
type Sub struct{ L, R Expr }
type Mul struct{ L, R Expr }
type Neg struct{ X Expr }

// Compare is a comparison; it evaluates to a bool.
type Compare struct {
	Op   vm.Cmp
	L, R Expr
}

// Not negates a boolean expression.
type Not struct{ X Expr }

func (Sym) isExpr()     {}
func (Const) isExpr()   {}
func (Add) isExpr()     {}
func (Sub) isExpr()     {}
func (Mul) isExpr()     {}
func (Neg) isExpr()     {}
func (Compare) isExpr() {}
func (Not) isExpr()     {}

func (e Sym) Equal(o vm.Value) bool     { return vm.Value(e) == o }
func (e Const) Equal(o vm.Value) bool   { return vm.Value(e) == o }
func (e Add) Equal(o vm.Value) bool     { return vm.Value(e) == o }
func (e Sub) Equal(o vm.Value) bool     { return vm.Value(e) == o }
func (e Mul) Equal(o vm.Value) bool     { return vm.Value(e) == o }
func (e Neg) Equal(o vm.Value) bool     { return vm.Value(e) == o }
func (e Compare) Equal(o vm.Value) bool { return vm.Value(e) == o }
func (e Not) Equal(o vm.Value) bool     { return vm.Value(e) == o }

func (e Sym) String() string     { return e.Name }
func (e Const) String() string   { return fmt.Sprint(e.V) }
func (e Add) String() string     { return fmt.Sprintf("(%v + %v)", e.L, e.R) }
func (e Sub) String() string     { return fmt.Sprintf("(%v - %v)", e.L, e.R) }
func (e Mul) String() string     { return fmt.Sprintf("(%v * %v)", e.L, e.R) }
func (e Neg) String() string     { return fmt.Sprintf("-%v", e.X) }
func (e Compare) String() string { return fmt.Sprintf("(%v %v %v)", e.L, e.Op, e.R) }
func (e Not) String() string     { return fmt.Sprintf("!%v", e.X) }

// Lift turns an operand into an expression. int64 becomes Const; bools have
// no expression form and are rejected along with every other type.
func Lift(v vm.Value) (Expr, error) {
	switch v := v.(type) {
	case Expr:
		return v, nil
	case int64:
		return Const{V: v}, nil
	default:
		return nil, fmt.Errorf("%w: cannot lift %v (%T)", vm.ErrInvalidArgument, v, v)
	}
}

// IsSymbolic reports whether v contains a free symbol.
func IsSymbolic(v vm.Value) bool {
	switch v := v.(type) {
	case Sym:
		return true
	case Const:
		return false
	case Add:
		return IsSymbolic(v.L) || IsSymbolic(v.R)
	case Sub:
		return IsSymbolic(v.L) || IsSymbolic(v.R)
	case Mul:
		return IsSymbolic(v.L) || IsSymbolic(v.R)
	case Neg:
		return IsSymbolic(v.X)
	case Compare:
		return IsSymbolic(v.L) || IsSymbolic(v.R)
	case Not:
		return IsSymbolic(v.X)
	default:
		return false
	}
}
