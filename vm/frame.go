package vm

import (
	"fmt"
	"slices"
	"strings"
)

// ---------------------------------------------------------------------------
// Frame: one method activation
// ---------------------------------------------------------------------------

// Frame holds the instruction pointer, locals and operand stack of one
// method activation. Frames are mutated on nearly every instruction, so
// snapshots copy them outright instead of sharing structure.
type Frame struct {
	ip       Instruction
	locals   []Value
	operands []Value
}

// NewFrame creates a frame positioned at ip with maxLocals local slots and
// room for maxStack operands.
func NewFrame(ip Instruction, maxLocals, maxStack int) *Frame {
	return &Frame{
		ip:       ip,
		locals:   make([]Value, max(maxLocals, 0)),
		operands: make([]Value, 0, max(maxStack, 0)),
	}
}

// Instruction returns the instruction this frame executes next.
func (f *Frame) Instruction() Instruction {
	return f.ip
}

// Advance sets the instruction pointer.
func (f *Frame) Advance(next Instruction) *Frame {
	f.ip = next
	return f
}

// Push pushes v onto the operand stack.
func (f *Frame) Push(v Value) {
	f.operands = append(f.operands, v)
}

// PushAll pushes vs in order, so the last element ends up on top.
func (f *Frame) PushAll(vs []Value) {
	f.operands = append(f.operands, vs...)
}

// Pop removes and returns the top operand.
func (f *Frame) Pop() (Value, error) {
	n := len(f.operands)
	if n == 0 {
		return nil, ErrStackUnderflow
	}
	v := f.operands[n-1]
	f.operands[n-1] = nil
	f.operands = f.operands[:n-1]
	return v, nil
}

// PopN removes the top n operands and returns them in push order. Nothing
// is removed if fewer than n operands are present.
func (f *Frame) PopN(n int) ([]Value, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: pop %d operands", ErrInvalidArgument, n)
	}
	size := len(f.operands)
	if n > size {
		return nil, fmt.Errorf("%w: pop %d of %d operands", ErrStackUnderflow, n, size)
	}
	out := slices.Clone(f.operands[size-n:])
	clear(f.operands[size-n:])
	f.operands = f.operands[:size-n]
	return out, nil
}

// Peek returns the top operand without removing it.
func (f *Frame) Peek() (Value, error) {
	return f.PeekAt(0)
}

// PeekAt returns the operand depth slots below the top.
func (f *Frame) PeekAt(depth int) (Value, error) {
	i := len(f.operands) - 1 - depth
	if depth < 0 || i < 0 {
		return nil, ErrStackUnderflow
	}
	return f.operands[i], nil
}

// Depth returns the number of operands on the stack.
func (f *Frame) Depth() int {
	return len(f.operands)
}

// Operands returns a copy of the operand stack, bottom first.
func (f *Frame) Operands() []Value {
	return slices.Clone(f.operands)
}

// Local returns local slot i.
func (f *Frame) Local(i int) (Value, error) {
	if i < 0 || i >= len(f.locals) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidLocalIndex, i, len(f.locals))
	}
	return f.locals[i], nil
}

// SetLocal writes local slot i.
func (f *Frame) SetLocal(i int, v Value) error {
	if i < 0 || i >= len(f.locals) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidLocalIndex, i, len(f.locals))
	}
	f.locals[i] = v
	return nil
}

// Locals returns a copy of the local slots.
func (f *Frame) Locals() []Value {
	return slices.Clone(f.locals)
}

// Snapshot returns a deep copy of the frame.
func (f *Frame) Snapshot() *Frame {
	operands := make([]Value, len(f.operands), cap(f.operands))
	copy(operands, f.operands)
	return &Frame{
		ip:       f.ip,
		locals:   slices.Clone(f.locals),
		operands: operands,
	}
}

// Equal compares instruction pointer, locals and operands.
func (f *Frame) Equal(o *Frame) bool {
	return f.ip == o.ip &&
		valuesEqual(f.locals, o.locals) &&
		valuesEqual(f.operands, o.operands)
}

func (f *Frame) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v locals:%v stack:%v", f.ip, f.locals, f.operands)
	return b.String()
}
