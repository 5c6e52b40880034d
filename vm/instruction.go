package vm

import "fmt"

// ---------------------------------------------------------------------------
// Instruction graph contract
// ---------------------------------------------------------------------------

// Instruction is a node of an already-linked instruction graph. Apply
// performs the node's effect on s through Queries and Mutations and reports
// whether s keeps running, was forked into successors handed to d, or
// reached the end of the program.
type Instruction interface {
	fmt.Stringer

	// Next returns the fall-through successor.
	Next() (Instruction, error)

	// BranchTarget returns the jump target. Nodes without one fail with
	// ErrNoBranchTarget.
	BranchTarget() (Instruction, error)

	Apply(d Driver, s *State) (Status, error)
}

// Driver is what an instruction sees of the code running it.
type Driver interface {
	Solver() Solver
	Arith() Arith

	// Schedule hands a feasible successor state to the search.
	Schedule(s *State) error
}

// Solver decides path feasibility. Path constraints and symbolic values are
// opaque to the core.
type Solver interface {
	CheckFeasible(pathConstraint Value) (bool, error)

	// SimplifyToConcrete reduces v to a concrete value under the current
	// constraints, failing with ErrNotConcrete when that is not possible.
	SimplifyToConcrete(v Value) (Value, error)
}

// Cmp is a comparison operator.
type Cmp int

const (
	CmpEq Cmp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

var cmpNames = [...]string{"==", "!=", "<", "<=", ">", ">="}

func (c Cmp) String() string {
	if c < 0 || int(c) >= len(cmpNames) {
		return fmt.Sprintf("Cmp(%d)", int(c))
	}
	return cmpNames[c]
}

// Negate returns the operator that holds exactly when c does not.
func (c Cmp) Negate() Cmp {
	switch c {
	case CmpEq:
		return CmpNe
	case CmpNe:
		return CmpEq
	case CmpLt:
		return CmpGe
	case CmpLe:
		return CmpGt
	case CmpGt:
		return CmpLe
	default:
		return CmpLt
	}
}

// Arith gives meaning to arithmetic on values. Concrete and symbolic runs of
// the same graph differ only in the Arith they are driven with.
type Arith interface {
	Add(a, b Value) (Value, error)
	Sub(a, b Value) (Value, error)
	Mul(a, b Value) (Value, error)
	Neg(a Value) (Value, error)
	Compare(op Cmp, a, b Value) (Value, error)
	Not(a Value) (Value, error)
}

// ---------------------------------------------------------------------------
// Terminal instruction
// ---------------------------------------------------------------------------

type terminal struct {
	name string
}

// Terminal is the node every program returns to when it finishes. Applying
// it reports StatusTerminated; it has no successors.
var Terminal Instruction = &terminal{name: "TERMINATE"}

func (t *terminal) String() string { return t.name }

func (t *terminal) Next() (Instruction, error) {
	return nil, fmt.Errorf("%s: %w", t.name, ErrNoSuccessor)
}

func (t *terminal) BranchTarget() (Instruction, error) {
	return nil, fmt.Errorf("%s: %w", t.name, ErrNoBranchTarget)
}

func (t *terminal) Apply(Driver, *State) (Status, error) {
	return StatusTerminated, nil
}
