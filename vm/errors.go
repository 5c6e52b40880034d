package vm

import (
	"errors"
	"fmt"
)

var (
	ErrStackUnderflow    = errors.New("vm: stack underflow")
	ErrInvalidLocalIndex = errors.New("vm: invalid local index")
	ErrInvalidArgument   = errors.New("vm: invalid argument")
	ErrNoBranchTarget    = errors.New("vm: instruction has no branch target")
	ErrNoSuccessor       = errors.New("vm: instruction has no successor")
	ErrRetired           = errors.New("vm: state was forked and retired")
	ErrDuplicateClass    = errors.New("vm: duplicate class definition")
	ErrUndefinedClass    = errors.New("vm: undefined class")
	ErrNotConcrete       = errors.New("vm: value is not a concrete constant")
	ErrNotReference      = errors.New("vm: value is not an object reference")
	ErrNotBoolean        = errors.New("vm: branch condition is not a boolean")
)

// OpError records which named Query or Mutation failed.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
