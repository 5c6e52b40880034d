package insn

import (
	"errors"
	"fmt"

	"github.com/chazu/forkvm/vm"
)

// Node is one instruction of an assembled method. Nodes are linked once by
// the assembler and never change afterwards, so any number of states may
// point at the same node.
type Node struct {
	method string
	index  int
	op     Opcode

	value  vm.Value   // OpConst
	n      int        // local index, field offset, object size or return count
	class  string     // statics
	cmp    vm.Cmp     // OpIf
	callee *vm.Method // OpInvoke

	next   *Node
	target *Node
	label  *Label
}

var _ vm.Instruction = (*Node)(nil)

// Op returns the node's opcode.
func (n *Node) Op() Opcode { return n.op }

// String renders the node as "method#index MNEMONIC operands". The prefix
// keeps renderings unique across a program.
func (n *Node) String() string {
	prefix := fmt.Sprintf("%s#%d ", n.method, n.index)
	switch n.op {
	case OpConst:
		return prefix + fmt.Sprintf("CONST %v", n.value)
	case OpLoad, OpStore, OpNew, OpGetField, OpPutField, OpReturn:
		return prefix + fmt.Sprintf("%v %d", n.op, n.n)
	case OpGetStatic, OpPutStatic:
		return prefix + fmt.Sprintf("%v %s.%d", n.op, n.class, n.n)
	case OpIf:
		return prefix + fmt.Sprintf("%s %s", ifName(n.cmp), n.targetName())
	case OpIfACmpEq, OpGoto:
		return prefix + fmt.Sprintf("%v %s", n.op, n.targetName())
	case OpInvoke:
		return prefix + fmt.Sprintf("INVOKE %s/%d", n.callee.Name, n.callee.Args)
	default:
		return prefix + n.op.String()
	}
}

func (n *Node) targetName() string {
	if n.target != nil {
		return fmt.Sprintf("#%d", n.target.index)
	}
	return n.label.name
}

func (n *Node) Next() (vm.Instruction, error) {
	if n.next == nil {
		return nil, fmt.Errorf("%v: %w", n, vm.ErrNoSuccessor)
	}
	return n.next, nil
}

func (n *Node) BranchTarget() (vm.Instruction, error) {
	if n.target == nil {
		return nil, fmt.Errorf("%v: %w", n, vm.ErrNoBranchTarget)
	}
	return n.target, nil
}

// Apply runs the node against s. Straight-line nodes mutate s in place and
// advance it; conditional jumps may fork it.
func (n *Node) Apply(d vm.Driver, s *vm.State) (vm.Status, error) {
	var m vm.Mutation
	switch n.op {
	case OpConst:
		m = vm.Push(n.value)
	case OpLoad:
		m = vm.LoadLocal(n.n)
	case OpStore:
		m = vm.StoreLocal(n.n)
	case OpDup:
		m = vm.Dup()
	case OpPop:
		m = vm.Discard(1)
	case OpAdd:
		m = vm.Binary("add", d.Arith().Add)
	case OpSub:
		m = vm.Binary("sub", d.Arith().Sub)
	case OpMul:
		m = vm.Binary("mul", d.Arith().Mul)
	case OpNeg:
		m = vm.Unary("neg", d.Arith().Neg)
	case OpNew:
		m = vm.NewObject(n.n)
	case OpGetField:
		m = vm.GetField(n.n)
	case OpPutField:
		m = vm.PutField(n.n)
	case OpGetStatic:
		m = vm.GetStatic(n.class, n.n)
	case OpPutStatic:
		m = vm.PutStatic(n.class, n.n)
	case OpGoto:
		return vm.StatusRunning, s.ApplyMutation(vm.Advance(n.target))
	case OpInvoke:
		return vm.StatusRunning, s.ApplyMutation(vm.Call(n.next, n.callee))
	case OpReturn:
		return vm.StatusRunning, s.ApplyMutation(vm.Return(n.n))
	case OpIf, OpIfACmpEq:
		return n.branch(d, s)
	default:
		return vm.StatusRunning, fmt.Errorf("%w: opcode %v", vm.ErrInvalidArgument, n.op)
	}
	return vm.StatusRunning, s.ApplyMutation(vm.Seq(m, vm.Advance(n.next)))
}

// condition reads the branch condition from the top two operands without
// popping them.
func (n *Node) condition(d vm.Driver) vm.Query[vm.Value] {
	return vm.Query[vm.Value]{Label: "condition", Eval: func(e vm.Env) (vm.Value, error) {
		f := e.Frame()
		b, err := f.PeekAt(0)
		if err != nil {
			return nil, err
		}
		a, err := f.PeekAt(1)
		if err != nil {
			return nil, err
		}
		if n.op == OpIfACmpEq {
			return vm.Equal(a, b), nil
		}
		return d.Arith().Compare(n.cmp, a, b)
	}}
}

// branch evaluates the condition. A condition the solver reduces to a
// constant moves s to one side in place. Otherwise s is forked: the first
// child takes the jump assuming the condition, the second falls through
// assuming its negation, and feasible children go to the driver.
func (n *Node) branch(d vm.Driver, s *vm.State) (vm.Status, error) {
	cond, err := vm.Ask(s, n.condition(d))
	if err != nil {
		return vm.StatusRunning, err
	}
	if err := s.ApplyMutation(vm.Discard(2)); err != nil {
		return vm.StatusRunning, err
	}

	c, err := d.Solver().SimplifyToConcrete(cond)
	switch {
	case err == nil:
		taken, ok := c.(bool)
		if !ok {
			return vm.StatusRunning, fmt.Errorf("%w: %v", vm.ErrNotBoolean, c)
		}
		to := n.next
		if taken {
			to = n.target
		}
		return vm.StatusRunning, s.ApplyMutation(vm.Advance(to))
	case !errors.Is(err, vm.ErrNotConcrete):
		return vm.StatusRunning, err
	}

	taken, fallthru, err := s.Fork()
	if err != nil {
		return vm.StatusRunning, err
	}
	arms := []struct {
		s     *vm.State
		to    *Node
		holds bool
	}{
		{taken, n.target, true},
		{fallthru, n.next, false},
	}
	for _, arm := range arms {
		if err := arm.s.ApplyMutation(vm.Advance(arm.to)); err != nil {
			return vm.StatusForked, err
		}
		if err := arm.s.Assume(cond, arm.holds); err != nil {
			return vm.StatusForked, err
		}
		ok, err := d.Solver().CheckFeasible(arm.s.Constraint())
		if err != nil {
			return vm.StatusForked, err
		}
		if !ok {
			arm.s.Release()
			continue
		}
		if err := d.Schedule(arm.s); err != nil {
			return vm.StatusForked, err
		}
	}
	return vm.StatusForked, nil
}
