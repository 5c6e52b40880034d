// Package programs holds the sample methods forkvm can run, assembled with
// the insn package.
package programs

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/chazu/forkvm/vm"
	"github.com/chazu/forkvm/vm/insn"
	"github.com/chazu/forkvm/vm/symbolic"
)

// ErrUnknownProgram is returned by Build for names not in the catalogue.
var ErrUnknownProgram = errors.New("programs: unknown program")

// Program is an entry method plus what a state needs to run it.
type Program struct {
	Name        string
	Description string
	Entry       *vm.Method
	Params      []string       // argument names, used as symbol names
	Classes     map[string]int // static classes and their field counts
}

// Statics returns a fresh statics table with the program's classes defined
// and every static field set to 0.
func (p *Program) Statics() (*vm.Statics, error) {
	s := vm.NewStatics()
	for _, class := range slices.Sorted(maps.Keys(p.Classes)) {
		n := p.Classes[class]
		if err := s.Define(class, n); err != nil {
			return nil, err
		}
		for i := range n {
			if err := s.Put(class, i, int64(0)); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// Symbols returns one fresh symbol per parameter.
func (p *Program) Symbols() []vm.Value {
	out := make([]vm.Value, len(p.Params))
	for i, name := range p.Params {
		out[i] = symbolic.Sym{Name: name}
	}
	return out
}

// Boot creates the initial state for running p on args.
func (p *Program) Boot(meta vm.Meta, args ...vm.Value) (*vm.State, error) {
	statics, err := p.Statics()
	if err != nil {
		return nil, err
	}
	return vm.Boot(p.Entry, statics, meta, args...)
}

type builder struct {
	description string
	build       func() (*Program, error)
}

var catalogue = map[string]builder{
	"abs":     {"absolute value of x", buildAbs},
	"max":     {"larger of a and b", buildMax},
	"sum":     {"sum of 1..n with a loop", buildSum},
	"point":   {"distance between the fields of a point object", buildPoint},
	"counter": {"add k to a static counter, clamped at 10", buildCounter},
	"call":    {"max(abs(a), abs(b)) through nested calls", buildCall},
}

// Names returns the catalogue in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(catalogue))
}

// Build assembles the named program. Every call returns a fresh graph.
func Build(name string) (*Program, error) {
	b, ok := catalogue[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProgram, name)
	}
	p, err := b.build()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}
	p.Name = name
	p.Description = b.description
	return p, nil
}

func assembleAbs() (*vm.Method, error) {
	a := insn.NewAssembler("abs")
	pos := a.NewLabel("pos")
	a.Load(0)
	a.Const(int64(0))
	a.IfGe(pos)
	a.Load(0)
	a.Neg()
	a.Return(1)
	a.Mark(pos)
	a.Load(0)
	a.Return(1)
	return a.Method(1, 1, 2)
}

func assembleMax() (*vm.Method, error) {
	a := insn.NewAssembler("max")
	first := a.NewLabel("first")
	a.Load(0)
	a.Load(1)
	a.IfGe(first)
	a.Load(1)
	a.Return(1)
	a.Mark(first)
	a.Load(0)
	a.Return(1)
	return a.Method(2, 2, 2)
}

func buildAbs() (*Program, error) {
	m, err := assembleAbs()
	if err != nil {
		return nil, err
	}
	return &Program{Entry: m, Params: []string{"x"}}, nil
}

func buildMax() (*Program, error) {
	m, err := assembleMax()
	if err != nil {
		return nil, err
	}
	return &Program{Entry: m, Params: []string{"a", "b"}}, nil
}

// sum(n): s = 0; for i = 1; i <= n; i++ { s += i }; return s
func buildSum() (*Program, error) {
	const n, i, s = 0, 1, 2
	a := insn.NewAssembler("sum")
	loop := a.NewLabel("loop")
	done := a.NewLabel("done")
	a.Const(int64(0))
	a.Store(s)
	a.Const(int64(1))
	a.Store(i)
	a.Mark(loop)
	a.Load(i)
	a.Load(n)
	a.IfGt(done)
	a.Load(s)
	a.Load(i)
	a.Add()
	a.Store(s)
	a.Load(i)
	a.Const(int64(1))
	a.Add()
	a.Store(i)
	a.Goto(loop)
	a.Mark(done)
	a.Load(s)
	a.Return(1)
	m, err := a.Method(1, 3, 2)
	if err != nil {
		return nil, err
	}
	return &Program{Entry: m, Params: []string{"n"}}, nil
}

// point(x, y): p = {x, y}; if p.x < p.y swap the fields; return p.x - p.y
func buildPoint() (*Program, error) {
	const x, y, p = 0, 1, 2
	a := insn.NewAssembler("point")
	ordered := a.NewLabel("ordered")
	a.New(2)
	a.Store(p)
	a.Load(p)
	a.Load(x)
	a.PutField(0)
	a.Load(p)
	a.Load(y)
	a.PutField(1)

	a.Load(p)
	a.GetField(0)
	a.Load(p)
	a.GetField(1)
	a.IfGe(ordered)
	a.Load(p)
	a.Load(y)
	a.PutField(0)
	a.Load(p)
	a.Load(x)
	a.PutField(1)

	a.Mark(ordered)
	a.Load(p)
	a.GetField(0)
	a.Load(p)
	a.GetField(1)
	a.Sub()
	a.Return(1)
	m, err := a.Method(2, 3, 3)
	if err != nil {
		return nil, err
	}
	return &Program{Entry: m, Params: []string{"x", "y"}}, nil
}

// counter(k): Counter.count += k; if Counter.count > 10 { Counter.count = 10 }
// return Counter.count
func buildCounter() (*Program, error) {
	a := insn.NewAssembler("counter")
	ok := a.NewLabel("ok")
	a.GetStatic("Counter", 0)
	a.Load(0)
	a.Add()
	a.PutStatic("Counter", 0)
	a.GetStatic("Counter", 0)
	a.Const(int64(10))
	a.IfLe(ok)
	a.Const(int64(10))
	a.PutStatic("Counter", 0)
	a.Mark(ok)
	a.GetStatic("Counter", 0)
	a.Return(1)
	m, err := a.Method(1, 1, 2)
	if err != nil {
		return nil, err
	}
	return &Program{Entry: m, Params: []string{"k"}, Classes: map[string]int{"Counter": 1}}, nil
}

// call(a, b) = max(abs(a), abs(b))
func buildCall() (*Program, error) {
	absM, err := assembleAbs()
	if err != nil {
		return nil, err
	}
	maxM, err := assembleMax()
	if err != nil {
		return nil, err
	}
	a := insn.NewAssembler("call")
	a.Load(0)
	a.Invoke(absM)
	a.Load(1)
	a.Invoke(absM)
	a.Invoke(maxM)
	a.Return(1)
	m, err := a.Method(2, 2, 2)
	if err != nil {
		return nil, err
	}
	return &Program{Entry: m, Params: []string{"a", "b"}}, nil
}
