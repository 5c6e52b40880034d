package insn

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/chazu/forkvm/vm"
)

// ---------------------------------------------------------------------------
// Labels
// ---------------------------------------------------------------------------

// Label is a jump target, possibly referenced before it is marked.
type Label struct {
	name     string
	resolved bool
	index    int // node the label marks
}

// ---------------------------------------------------------------------------
// Assembler
// ---------------------------------------------------------------------------

// Assembler builds the instruction graph of one method. Emit calls append
// nodes in order; Method links fall-through and jump edges and returns the
// finished method. Emit errors are sticky and reported by Method.
type Assembler struct {
	name   string
	nodes  []*Node
	labels []*Label
	self   *vm.Method
	err    error
	done   bool
}

// NewAssembler starts a method called name.
func NewAssembler(name string) *Assembler {
	return &Assembler{name: name, self: &vm.Method{Name: name}}
}

// Self returns the method being assembled, for recursive calls. It is
// complete once Method succeeds.
func (a *Assembler) Self() *vm.Method {
	return a.self
}

// Len returns the number of nodes emitted so far.
func (a *Assembler) Len() int {
	return len(a.nodes)
}

// NewLabel creates an unmarked label.
func (a *Assembler) NewLabel(name string) *Label {
	l := &Label{name: name}
	a.labels = append(a.labels, l)
	return l
}

// Mark binds l to the next node emitted.
func (a *Assembler) Mark(l *Label) {
	if l.resolved {
		a.fail(fmt.Errorf("%w: %s", ErrLabelRebound, l.name))
		return
	}
	l.resolved = true
	l.index = len(a.nodes)
}

func (a *Assembler) fail(err error) {
	if a.err == nil {
		a.err = fmt.Errorf("assemble %s: %w", a.name, err)
	}
}

func (a *Assembler) emit(n *Node) *Node {
	n.method = a.name
	n.index = len(a.nodes)
	a.nodes = append(a.nodes, n)
	return n
}

func (a *Assembler) Const(v vm.Value)   { a.emit(&Node{op: OpConst, value: v}) }
func (a *Assembler) Load(i int)         { a.emit(&Node{op: OpLoad, n: i}) }
func (a *Assembler) Store(i int)        { a.emit(&Node{op: OpStore, n: i}) }
func (a *Assembler) Dup()               { a.emit(&Node{op: OpDup}) }
func (a *Assembler) Pop()               { a.emit(&Node{op: OpPop}) }
func (a *Assembler) Add()               { a.emit(&Node{op: OpAdd}) }
func (a *Assembler) Sub()               { a.emit(&Node{op: OpSub}) }
func (a *Assembler) Mul()               { a.emit(&Node{op: OpMul}) }
func (a *Assembler) Neg()               { a.emit(&Node{op: OpNeg}) }
func (a *Assembler) New(fieldCount int) { a.emit(&Node{op: OpNew, n: fieldCount}) }
func (a *Assembler) GetField(offset int) {
	a.emit(&Node{op: OpGetField, n: offset})
}
func (a *Assembler) PutField(offset int) {
	a.emit(&Node{op: OpPutField, n: offset})
}
func (a *Assembler) GetStatic(class string, offset int) {
	a.emit(&Node{op: OpGetStatic, class: class, n: offset})
}
func (a *Assembler) PutStatic(class string, offset int) {
	a.emit(&Node{op: OpPutStatic, class: class, n: offset})
}

// If jumps to l when "second op top" holds, popping both operands.
func (a *Assembler) If(op vm.Cmp, l *Label) {
	a.emit(&Node{op: OpIf, cmp: op, label: l})
}

func (a *Assembler) IfEq(l *Label) { a.If(vm.CmpEq, l) }
func (a *Assembler) IfNe(l *Label) { a.If(vm.CmpNe, l) }
func (a *Assembler) IfLt(l *Label) { a.If(vm.CmpLt, l) }
func (a *Assembler) IfLe(l *Label) { a.If(vm.CmpLe, l) }
func (a *Assembler) IfGt(l *Label) { a.If(vm.CmpGt, l) }
func (a *Assembler) IfGe(l *Label) { a.If(vm.CmpGe, l) }

// IfACmpEq jumps to l when the top two operands are the same value.
func (a *Assembler) IfACmpEq(l *Label) {
	a.emit(&Node{op: OpIfACmpEq, label: l})
}

func (a *Assembler) Goto(l *Label) {
	a.emit(&Node{op: OpGoto, label: l})
}

// Invoke calls m with m.Args operands; the call resumes at the next node.
func (a *Assembler) Invoke(m *vm.Method) {
	a.emit(&Node{op: OpInvoke, callee: m})
}

// Return leaves the method, handing count operands to the caller.
func (a *Assembler) Return(count int) {
	a.emit(&Node{op: OpReturn, n: count})
}

// Method links the emitted nodes and returns the method. The method takes
// args operands from its caller and has maxLocals locals and room for
// maxStack operands.
func (a *Assembler) Method(args, maxLocals, maxStack int) (*vm.Method, error) {
	if a.done {
		return nil, fmt.Errorf("assemble %s: %w", a.name, ErrAssembled)
	}
	if a.err != nil {
		return nil, a.err
	}
	if len(a.nodes) == 0 {
		return nil, fmt.Errorf("assemble %s: %w", a.name, ErrEmptyMethod)
	}
	if args < 0 || args > maxLocals {
		return nil, fmt.Errorf("assemble %s: %w: %d arguments, %d locals", a.name, vm.ErrInvalidArgument, args, maxLocals)
	}

	var errs []error
	for _, l := range a.labels {
		if l.resolved && l.index >= len(a.nodes) {
			errs = append(errs, fmt.Errorf("%w: %s marks the end of the method", ErrUnresolvedLabel, l.name))
		}
	}
	for i, n := range a.nodes {
		info := n.op.Info()
		if info.Falls {
			if i+1 == len(a.nodes) {
				errs = append(errs, fmt.Errorf("%w: %v", ErrFallsOffEnd, n))
			} else {
				n.next = a.nodes[i+1]
			}
		}
		if info.Branch {
			switch {
			case !n.label.resolved:
				errs = append(errs, fmt.Errorf("%w: %s", ErrUnresolvedLabel, n.label.name))
			case n.label.index < len(a.nodes):
				n.target = a.nodes[n.label.index]
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("assemble %s: %w", a.name, err)
	}

	a.done = true
	*a.self = vm.Method{
		Name:      a.name,
		Entry:     a.nodes[0],
		Args:      args,
		MaxLocals: maxLocals,
		MaxStack:  maxStack,
	}
	return a.self, nil
}

// Listing renders the method's reachable nodes in emission order.
func Listing(m *vm.Method) []string {
	entry, ok := m.Entry.(*Node)
	if !ok {
		return []string{m.Entry.String()}
	}
	seen := map[*Node]bool{}
	work := []*Node{entry}
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		if n == nil || seen[n] {
			continue
		}
		seen[n] = true
		work = append(work, n.next, n.target)
	}

	nodes := slices.SortedFunc(maps.Keys(seen), func(a, b *Node) int {
		return a.index - b.index
	})
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.String()
	}
	return out
}
