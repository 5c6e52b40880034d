package vm

import (
	"fmt"
	"strings"
)

// Method describes a callee: where it starts and how large its frame is.
type Method struct {
	Name      string
	Entry     Instruction
	Args      int // operands consumed from the caller
	MaxLocals int
	MaxStack  int
}

func (m *Method) String() string {
	return m.Name
}

// ---------------------------------------------------------------------------
// CallStack
// ---------------------------------------------------------------------------

// CallStack is the ordered sequence of frames, last element on top.
type CallStack struct {
	frames []*Frame
}

// NewCallStack creates a stack holding a single frame positioned at ip.
func NewCallStack(ip Instruction, maxLocals, maxStack int) *CallStack {
	return &CallStack{frames: []*Frame{NewFrame(ip, maxLocals, maxStack)}}
}

// Top returns the executing frame, or nil for an empty stack.
func (c *CallStack) Top() *Frame {
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

// Size returns the number of frames.
func (c *CallStack) Size() int {
	return len(c.frames)
}

// Frame returns frame i counted from the bottom.
func (c *CallStack) Frame(i int) *Frame {
	return c.frames[i]
}

// Instruction returns the top frame's instruction pointer.
func (c *CallStack) Instruction() Instruction {
	if top := c.Top(); top != nil {
		return top.ip
	}
	return nil
}

// PushFrame models a call. The caller resumes at returnTo; argCount operands
// move from the caller's stack into the callee's leading locals. Nothing
// changes if the caller lacks the operands or the callee has too few locals.
func (c *CallStack) PushFrame(returnTo Instruction, m *Method, argCount int) error {
	caller := c.Top()
	if caller == nil {
		return fmt.Errorf("call %s: %w: no caller frame", m, ErrStackUnderflow)
	}
	if argCount < 0 {
		return fmt.Errorf("call %s: %w: %d arguments", m, ErrInvalidArgument, argCount)
	}
	if argCount > caller.Depth() {
		return fmt.Errorf("call %s: %w: %d arguments, %d operands", m, ErrStackUnderflow, argCount, caller.Depth())
	}
	if argCount > m.MaxLocals {
		return fmt.Errorf("call %s: %w: %d arguments, %d locals", m, ErrInvalidLocalIndex, argCount, m.MaxLocals)
	}

	args, err := caller.Advance(returnTo).PopN(argCount)
	if err != nil {
		return err
	}
	callee := NewFrame(m.Entry, m.MaxLocals, m.MaxStack)
	copy(callee.locals, args)
	c.frames = append(c.frames, callee)
	return nil
}

// PopFrame models a return. returnCount operands move from the returning
// frame onto its caller's stack. Popping the last frame is an underflow:
// normal termination goes through the terminal instruction instead.
func (c *CallStack) PopFrame(returnCount int) error {
	if len(c.frames) <= 1 {
		return fmt.Errorf("return: %w: no caller frame", ErrStackUnderflow)
	}
	top := c.frames[len(c.frames)-1]
	results, err := top.PopN(returnCount)
	if err != nil {
		return fmt.Errorf("return: %w", err)
	}
	c.frames[len(c.frames)-1] = nil
	c.frames = c.frames[:len(c.frames)-1]
	c.Top().PushAll(results)
	return nil
}

// Snapshot copies every frame, preserving order. It costs O(frames), not
// O(1): frames change on almost every instruction, so sharing them would
// rarely pay off.
func (c *CallStack) Snapshot() *CallStack {
	frames := make([]*Frame, len(c.frames))
	for i, f := range c.frames {
		frames[i] = f.Snapshot()
	}
	return &CallStack{frames: frames}
}

// Equal compares frames pairwise.
func (c *CallStack) Equal(o *CallStack) bool {
	if len(c.frames) != len(o.frames) {
		return false
	}
	for i := range c.frames {
		if !c.frames[i].Equal(o.frames[i]) {
			return false
		}
	}
	return true
}

func (c *CallStack) String() string {
	parts := make([]string, len(c.frames))
	for i, f := range c.frames {
		parts[len(c.frames)-1-i] = f.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
