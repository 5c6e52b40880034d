package vm

import (
	"errors"
	"fmt"
)

// Status is the outcome of one step.
type Status int

const (
	// StatusRunning means the state advanced and can be stepped again.
	StatusRunning Status = iota
	// StatusForked means the state was retired and its successors were
	// handed to the driver.
	StatusForked
	// StatusTerminated means the program reached the terminal instruction.
	// It is a normal completion, not a failure.
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusForked:
		return "forked"
	case StatusTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Meta is auxiliary per-path data carried by a state, such as a path
// constraint. The core only snapshots and compares it.
type Meta interface {
	Snapshot() Meta
	Equal(o Meta) bool
}

// Assumer is a Meta that records branch decisions.
type Assumer interface {
	Meta

	// Assume returns the meta extended with cond (holds) or its negation.
	Assume(cond Value, holds bool) Meta

	// Constraint returns the accumulated condition to check for
	// feasibility.
	Constraint() Value
}

// ---------------------------------------------------------------------------
// State
// ---------------------------------------------------------------------------

// State is one execution path: statics, call stack, heap and meta. A State
// is driven by one goroutine at a time; Snapshot and Fork produce states
// that may be handed to other goroutines.
type State struct {
	statics *Statics
	stack   *CallStack
	heap    *Heap
	meta    Meta
	retired bool
}

// NewState assembles a state from its parts. A nil statics or heap is
// replaced by an empty one.
func NewState(statics *Statics, stack *CallStack, heap *Heap, meta Meta) *State {
	if statics == nil {
		statics = NewStatics()
	}
	if heap == nil {
		heap = NewHeap()
	}
	return &State{statics: statics, stack: stack, heap: heap, meta: meta}
}

// Boot creates the initial state for calling entry with args. The bottom
// frame sits on Terminal, so entry's return lands there and the next step
// terminates with the result as the bottom frame's top operand.
func Boot(entry *Method, statics *Statics, meta Meta, args ...Value) (*State, error) {
	if len(args) != entry.Args {
		return nil, fmt.Errorf("boot %s: %w: %d arguments, want %d", entry, ErrInvalidArgument, len(args), entry.Args)
	}
	stack := NewCallStack(Terminal, 0, max(len(args), 1))
	stack.Top().PushAll(args)
	if err := stack.PushFrame(Terminal, entry, len(args)); err != nil {
		return nil, fmt.Errorf("boot %s: %w", entry, err)
	}
	return NewState(statics, stack, nil, meta), nil
}

func (s *State) Statics() *Statics { return s.statics }
func (s *State) Stack() *CallStack { return s.stack }
func (s *State) Heap() *Heap       { return s.heap }
func (s *State) Meta() Meta        { return s.meta }
func (s *State) SetMeta(m Meta)    { s.meta = m }

// Retired reports whether s was forked or released.
func (s *State) Retired() bool { return s.retired }

// Instruction returns the instruction the next step applies.
func (s *State) Instruction() Instruction {
	return s.stack.Instruction()
}

func (s *State) env() Env {
	return Env{Stack: s.stack, Heap: s.heap, Statics: s.statics, Meta: s.meta}
}

func (s *State) live() error {
	if s.retired {
		return ErrRetired
	}
	return nil
}

// Snapshot returns an independent copy of s. Heap and statics are shared
// copy-on-write; frames are copied.
func (s *State) Snapshot() (*State, error) {
	if err := s.live(); err != nil {
		return nil, err
	}
	var meta Meta
	if s.meta != nil {
		meta = s.meta.Snapshot()
	}
	return &State{
		statics: s.statics.Snapshot(),
		stack:   s.stack.Snapshot(),
		heap:    s.heap.Snapshot(),
		meta:    meta,
	}, nil
}

// Fork returns two independent successors of s and retires s: it gives up
// its storage and rejects further use with ErrRetired.
func (s *State) Fork() (a, b *State, err error) {
	if a, err = s.Snapshot(); err != nil {
		return nil, nil, err
	}
	if b, err = s.Snapshot(); err != nil {
		a.Release()
		return nil, nil, err
	}
	s.Release()
	return a, b, nil
}

// Release retires s and gives up its share of the heap and statics.
// Releasing twice is a no-op.
func (s *State) Release() {
	if s.retired {
		return
	}
	s.retired = true
	s.heap.release()
	s.statics.release()
}

// Step applies the current instruction.
func (s *State) Step(d Driver) (Status, error) {
	if err := s.live(); err != nil {
		return StatusRunning, err
	}
	ip := s.stack.Instruction()
	if ip == nil {
		return StatusRunning, fmt.Errorf("step: %w: empty call stack", ErrStackUnderflow)
	}
	st, err := ip.Apply(d, s)
	if err != nil {
		return st, fmt.Errorf("%v: %w", ip, err)
	}
	return st, nil
}

// Assume extends the state's meta with a branch decision. States whose meta
// does not record decisions are left unchanged.
func (s *State) Assume(cond Value, holds bool) error {
	if err := s.live(); err != nil {
		return err
	}
	if a, ok := s.meta.(Assumer); ok {
		s.meta = a.Assume(cond, holds)
	}
	return nil
}

// Constraint returns the path constraint recorded in the meta, or nil.
func (s *State) Constraint() Value {
	if a, ok := s.meta.(Assumer); ok {
		return a.Constraint()
	}
	return nil
}

// Result returns the value a terminated program left on the bottom frame,
// or nil if it returned nothing.
func (s *State) Result() (Value, error) {
	if err := s.live(); err != nil {
		return nil, err
	}
	if s.stack.Size() != 1 {
		return nil, fmt.Errorf("result: %d frames still active", s.stack.Size()-1)
	}
	v, err := s.stack.Top().Peek()
	if errors.Is(err, ErrStackUnderflow) {
		return nil, nil
	}
	return v, err
}

// Equal reports whether two states are observationally equal: same call
// stack, heap contents and meta. Shared structure plays no part.
func (s *State) Equal(o *State) bool {
	if !s.stack.Equal(o.stack) || !s.heap.Equal(o.heap) {
		return false
	}
	switch {
	case s.meta == nil || o.meta == nil:
		return s.meta == nil && o.meta == nil
	default:
		return s.meta.Equal(o.meta)
	}
}

func (s *State) String() string {
	return fmt.Sprintf("stack:%v heap:%v meta:%v", s.stack, s.heap, s.meta)
}
