package symbolic

import (
	"fmt"
	"math"
	"slices"
	"sync/atomic"

	"github.com/chazu/forkvm/vm"
)

// Folder is a feasibility checker that needs no external solver. It folds
// constants and then looks for two kinds of contradiction: a condition and
// its negation on the same path, and empty integer ranges for comparisons
// between a symbol and a constant. It is sound for what it rejects but not
// complete: a path it accepts may still be infeasible.
//
// A Folder is safe for concurrent use.
type Folder struct {
	checks atomic.Int64
}

var _ vm.Solver = (*Folder)(nil)

// NewFolder returns a Folder.
func NewFolder() *Folder {
	return &Folder{}
}

// Checks returns how many feasibility checks the folder has run.
func (f *Folder) Checks() int64 {
	return f.checks.Load()
}

// SimplifyToConcrete folds v and fails with vm.ErrNotConcrete if a free
// symbol remains.
func (f *Folder) SimplifyToConcrete(v vm.Value) (vm.Value, error) {
	s, err := Simplify(v)
	if err != nil {
		return nil, err
	}
	if IsSymbolic(s) {
		return nil, fmt.Errorf("%w: %v", vm.ErrNotConcrete, s)
	}
	return s, nil
}

// CheckFeasible reports whether pc may hold. pc is a *Path, a single
// condition, or nil for the empty constraint.
func (f *Folder) CheckFeasible(pc vm.Value) (bool, error) {
	f.checks.Add(1)

	var conds []vm.Value
	switch pc := pc.(type) {
	case nil:
		return true, nil
	case *Path:
		conds = pc.conds
	default:
		conds = []vm.Value{pc}
	}

	seen := map[string]bool{}
	ranges := map[string]*interval{}
	for _, c := range conds {
		s, err := Simplify(c)
		if err != nil {
			return false, err
		}
		switch s := s.(type) {
		case bool:
			if !s {
				return false, nil
			}
			continue
		case Compare:
			if !narrow(ranges, s) {
				return false, nil
			}
		}

		n, err := notExpr(s)
		if err != nil {
			return false, err
		}
		if seen[fmt.Sprint(n)] {
			return false, nil
		}
		seen[fmt.Sprint(s)] = true
	}
	return true, nil
}

// interval is the set of values a symbol may take: [lo, hi] minus excluded.
type interval struct {
	lo, hi   int64
	excluded []int64
}

func (iv *interval) empty() bool {
	return iv.lo > iv.hi || (iv.lo == iv.hi && slices.Contains(iv.excluded, iv.lo))
}

var flipped = map[vm.Cmp]vm.Cmp{
	vm.CmpEq: vm.CmpEq,
	vm.CmpNe: vm.CmpNe,
	vm.CmpLt: vm.CmpGt,
	vm.CmpLe: vm.CmpGe,
	vm.CmpGt: vm.CmpLt,
	vm.CmpGe: vm.CmpLe,
}

// narrow applies a symbol-versus-constant comparison to the symbol's range
// and reports whether the range is still non-empty. Other comparisons are
// accepted unchanged.
func narrow(ranges map[string]*interval, c Compare) bool {
	op := c.Op
	sym, ok1 := c.L.(Sym)
	k, ok2 := c.R.(Const)
	if !ok1 || !ok2 {
		sym, ok1 = c.R.(Sym)
		k, ok2 = c.L.(Const)
		op = flipped[op]
	}
	if !ok1 || !ok2 {
		return true
	}

	iv := ranges[sym.Name]
	if iv == nil {
		iv = &interval{lo: math.MinInt64, hi: math.MaxInt64}
		ranges[sym.Name] = iv
	}
	v := k.V
	switch op {
	case vm.CmpEq:
		iv.lo, iv.hi = max(iv.lo, v), min(iv.hi, v)
	case vm.CmpNe:
		iv.excluded = append(iv.excluded, v)
	case vm.CmpLt:
		if v == math.MinInt64 {
			return false
		}
		iv.hi = min(iv.hi, v-1)
	case vm.CmpLe:
		iv.hi = min(iv.hi, v)
	case vm.CmpGt:
		if v == math.MaxInt64 {
			return false
		}
		iv.lo = max(iv.lo, v+1)
	case vm.CmpGe:
		iv.lo = max(iv.lo, v)
	}
	return !iv.empty()
}
