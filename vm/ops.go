package vm

import "fmt"

// ---------------------------------------------------------------------------
// Operation protocol
// ---------------------------------------------------------------------------

// Env is the part of a state an operation acts on.
type Env struct {
	Stack   *CallStack
	Heap    *Heap
	Statics *Statics
	Meta    Meta
}

// Frame returns the executing frame.
func (e Env) Frame() *Frame {
	return e.Stack.Top()
}

// Op is either a Query or a Mutation. The set is closed.
type Op interface {
	fmt.Stringer
	isOp()
}

// Query reads a value of type T from a state. Eval must not change the
// state it is given.
type Query[T any] struct {
	Label string
	Eval  func(Env) (T, error)
}

func (q Query[T]) String() string { return q.Label }
func (Query[T]) isOp()            {}

func (q Query[T]) evalAny(e Env) (Value, error) {
	return q.Eval(e)
}

type anyQuery interface {
	Op
	evalAny(Env) (Value, error)
}

// Mutation changes a state and produces nothing.
type Mutation struct {
	Label string
	Apply func(Env) error
}

func (m Mutation) String() string { return m.Label }
func (Mutation) isOp()            {}

// Ask evaluates q against s.
func Ask[T any](s *State, q Query[T]) (T, error) {
	var zero T
	if err := s.live(); err != nil {
		return zero, err
	}
	v, err := q.Eval(s.env())
	if err != nil {
		return zero, &OpError{Op: q.Label, Err: err}
	}
	return v, nil
}

// ApplyMutation applies m to s.
func (s *State) ApplyMutation(m Mutation) error {
	if err := s.live(); err != nil {
		return err
	}
	if err := m.Apply(s.env()); err != nil {
		return &OpError{Op: m.Label, Err: err}
	}
	return nil
}

// Perform runs either kind of operation. Mutations yield nil.
func (s *State) Perform(op Op) (Value, error) {
	switch op := op.(type) {
	case Mutation:
		return nil, s.ApplyMutation(op)
	case anyQuery:
		if err := s.live(); err != nil {
			return nil, err
		}
		v, err := op.evalAny(s.env())
		if err != nil {
			return nil, &OpError{Op: op.String(), Err: err}
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: operation %T", ErrInvalidArgument, op)
	}
}
