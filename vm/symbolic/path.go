package symbolic

import (
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/forkvm/vm"
)

// Path is a path constraint: the conjunction of branch conditions taken so
// far. A Path is immutable, so snapshots share it.
type Path struct {
	conds []vm.Value
}

var _ vm.Assumer = (*Path)(nil)

// NewPath returns the empty constraint, which always holds.
func NewPath(conds ...vm.Value) *Path {
	return &Path{conds: slices.Clone(conds)}
}

// And returns p extended with c.
func (p *Path) And(c vm.Value) *Path {
	conds := make([]vm.Value, len(p.conds), len(p.conds)+1)
	copy(conds, p.conds)
	return &Path{conds: append(conds, c)}
}

// Conditions returns the conjuncts in the order they were added.
func (p *Path) Conditions() []vm.Value {
	return slices.Clone(p.conds)
}

// Len returns the number of conjuncts.
func (p *Path) Len() int {
	return len(p.conds)
}

func (p *Path) Snapshot() vm.Meta {
	return p
}

func (p *Path) Equal(o vm.Meta) bool {
	op, ok := o.(*Path)
	if !ok {
		return false
	}
	return slices.EqualFunc(p.conds, op.conds, vm.Equal)
}

// Assume extends p with cond or, if holds is false, its negation.
func (p *Path) Assume(cond vm.Value, holds bool) vm.Meta {
	if !holds {
		if n, err := Negate(cond); err == nil {
			cond = n
		} else if e, ok := cond.(Expr); ok {
			cond = Not{X: e}
		}
	}
	return p.And(cond)
}

func (p *Path) Constraint() vm.Value {
	return p
}

func (p *Path) String() string {
	if len(p.conds) == 0 {
		return "true"
	}
	parts := make([]string, len(p.conds))
	for i, c := range p.conds {
		parts[i] = fmt.Sprint(c)
	}
	return strings.Join(parts, " && ")
}
