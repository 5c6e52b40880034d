package symbolic

import (
	"errors"
	"testing"

	"github.com/chazu/forkvm/vm"
)

var (
	x = Sym{Name: "x"}
	y = Sym{Name: "y"}
)

func TestSimplify(t *testing.T) {
	tests := []struct {
		in   vm.Value
		want string
	}{
		{Add{L: Const{V: 2}, R: Const{V: 3}}, "5"},
		{Add{L: x, R: Const{V: 0}}, "x"},
		{Sub{L: x, R: x}, "0"},
		{Sub{L: Const{V: 0}, R: x}, "-x"},
		{Mul{L: x, R: Const{V: 1}}, "x"},
		{Mul{L: Const{V: 0}, R: y}, "0"},
		{Neg{X: Neg{X: x}}, "x"},
		{Neg{X: Const{V: 4}}, "-4"},
		{Compare{Op: vm.CmpLt, L: Const{V: 1}, R: Const{V: 2}}, "true"},
		{Compare{Op: vm.CmpGe, L: x, R: Const{V: 0}}, "(x >= 0)"},
		{Compare{Op: vm.CmpLe, L: x, R: x}, "true"},
		{Not{X: Compare{Op: vm.CmpGe, L: x, R: Const{V: 0}}}, "(x < 0)"},
		{Not{X: Not{X: y}}, "y"},
		{Add{L: Mul{L: x, R: Const{V: 2}}, R: Add{L: Const{V: 1}, R: Const{V: 1}}}, "((x * 2) + 2)"},
	}
	for _, tt := range tests {
		got, err := Simplify(tt.in)
		if err != nil {
			t.Errorf("Simplify(%v): %v", tt.in, err)
			continue
		}
		if s := vmString(got); s != tt.want {
			t.Errorf("Simplify(%v): got %s, want %s", tt.in, s, tt.want)
		}
	}
}

func vmString(v vm.Value) string {
	switch v := v.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int64:
		return Const{V: v}.String()
	case Expr:
		return v.String()
	}
	return "?"
}

func TestArith_ConcreteStaysConcrete(t *testing.T) {
	var a Arith
	v, err := a.Add(int64(2), int64(40))
	if err != nil || v != int64(42) {
		t.Errorf("Add: got %v, %v; want 42", v, err)
	}
	v, err = a.Compare(vm.CmpGt, int64(2), int64(1))
	if err != nil || v != true {
		t.Errorf("Compare: got %v, %v; want true", v, err)
	}
	v, err = a.Not(v)
	if err != nil || v != false {
		t.Errorf("Not: got %v, %v; want false", v, err)
	}
}

func TestArith_SymbolicBuildsExpressions(t *testing.T) {
	var a Arith
	v, err := a.Sub(x, int64(1))
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	want := Sub{L: x, R: Const{V: 1}}
	if !vm.Equal(v, want) {
		t.Errorf("Sub: got %v, want %v", v, want)
	}

	c, _ := a.Compare(vm.CmpEq, v, int64(3))
	n, _ := a.Not(c)
	if got := vmString(n); got != "((x - 1) != 3)" {
		t.Errorf("Not: got %s", got)
	}

	if _, err := a.Add(true, x); !errors.Is(err, vm.ErrInvalidArgument) {
		t.Errorf("Add(bool, x): got %v, want ErrInvalidArgument", err)
	}
}

func TestExpr_EqualityIsStructural(t *testing.T) {
	a := Add{L: x, R: Const{V: 1}}
	b := Add{L: Sym{Name: "x"}, R: Const{V: 1}}
	if !vm.Equal(a, b) {
		t.Error("structurally equal expressions should be equal")
	}
	if vm.Equal(a, Add{L: y, R: Const{V: 1}}) {
		t.Error("different symbols should not be equal")
	}
	if vm.Equal(Const{V: 1}, int64(1)) {
		t.Error("Const and int64 are different values")
	}

	seen := map[vm.Value]bool{a: true}
	if !seen[b] {
		t.Error("expressions should hash structurally")
	}
}

func TestFolder_SimplifyToConcrete(t *testing.T) {
	f := NewFolder()
	v, err := f.SimplifyToConcrete(Compare{Op: vm.CmpEq, L: Sub{L: x, R: x}, R: Const{V: 0}})
	if err != nil || v != true {
		t.Errorf("x-x == 0: got %v, %v; want true", v, err)
	}
	if _, err := f.SimplifyToConcrete(Compare{Op: vm.CmpGe, L: x, R: Const{V: 0}}); !errors.Is(err, vm.ErrNotConcrete) {
		t.Errorf("x >= 0: got %v, want ErrNotConcrete", err)
	}
}

func TestFolder_CheckFeasible(t *testing.T) {
	ge0 := Compare{Op: vm.CmpGe, L: x, R: Const{V: 0}}
	lt0 := Compare{Op: vm.CmpLt, L: x, R: Const{V: 0}}
	tests := []struct {
		name string
		pc   vm.Value
		want bool
	}{
		{"empty", nil, true},
		{"empty path", NewPath(), true},
		{"single", NewPath(ge0), true},
		{"false conjunct", NewPath(ge0, false), false},
		{"condition and negation", NewPath(ge0).Assume(ge0, false), false},
		{"disjoint ranges", NewPath(ge0, lt0), false},
		{"constant on the left", NewPath(Compare{Op: vm.CmpGt, L: Const{V: 5}, R: x}, Compare{Op: vm.CmpGe, L: x, R: Const{V: 5}}), false},
		{"range", NewPath(Compare{Op: vm.CmpGt, L: x, R: Const{V: 1}}, Compare{Op: vm.CmpLe, L: x, R: Const{V: 2}}), true},
		{"excluded point", NewPath(Compare{Op: vm.CmpEq, L: x, R: Const{V: 3}}, Compare{Op: vm.CmpNe, L: x, R: Const{V: 3}}), false},
		{"two symbols", NewPath(Compare{Op: vm.CmpGe, L: x, R: y}, Compare{Op: vm.CmpLt, L: y, R: x}), true},
		{"bare condition", Compare{Op: vm.CmpLt, L: Const{V: 1}, R: Const{V: 0}}, false},
	}
	f := NewFolder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.CheckFeasible(tt.pc)
			if err != nil {
				t.Fatalf("CheckFeasible: %v", err)
			}
			if got != tt.want {
				t.Errorf("CheckFeasible(%v): got %v, want %v", tt.pc, got, tt.want)
			}
		})
	}
	if f.Checks() != int64(len(tests)) {
		t.Errorf("Checks: got %d, want %d", f.Checks(), len(tests))
	}
}

func TestPath_Immutable(t *testing.T) {
	p := NewPath()
	q := p.And(x)
	r := q.Assume(Compare{Op: vm.CmpLt, L: x, R: Const{V: 2}}, false).(*Path)

	if p.Len() != 0 || q.Len() != 1 || r.Len() != 2 {
		t.Fatalf("lengths: got %d %d %d, want 0 1 2", p.Len(), q.Len(), r.Len())
	}
	if r.String() != "x && (x >= 2)" {
		t.Errorf("String: got %q", r.String())
	}
	if q.Snapshot() != vm.Meta(q) {
		t.Error("Snapshot should share the immutable path")
	}
	if !q.Equal(NewPath(Sym{Name: "x"})) || q.Equal(r) {
		t.Error("Equal should compare conjuncts")
	}
	if p.String() != "true" {
		t.Errorf("empty path String: got %q, want true", p.String())
	}
}
