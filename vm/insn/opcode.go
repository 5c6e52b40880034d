// Package insn builds instruction graphs for forkvm: linked nodes that act
// on a vm.State through queries and mutations, an assembler that produces
// them with forward labels, and concrete integer arithmetic.
package insn

import (
	"fmt"

	"github.com/chazu/forkvm/vm"
)

// Opcode identifies what a node does.
type Opcode uint8

const (
	OpConst Opcode = iota
	OpLoad
	OpStore
	OpDup
	OpPop
	OpAdd
	OpSub
	OpMul
	OpNeg
	OpNew
	OpGetField
	OpPutField
	OpGetStatic
	OpPutStatic
	OpIf
	OpIfACmpEq
	OpGoto
	OpInvoke
	OpReturn
)

// OpcodeInfo describes an opcode.
type OpcodeInfo struct {
	Name   string
	Branch bool // has a branch target
	Falls  bool // continues with the next node
	Pops   int
	Pushes int
}

var opcodeTable = [...]OpcodeInfo{
	OpConst:     {Name: "CONST", Falls: true, Pushes: 1},
	OpLoad:      {Name: "LOAD", Falls: true, Pushes: 1},
	OpStore:     {Name: "STORE", Falls: true, Pops: 1},
	OpDup:       {Name: "DUP", Falls: true, Pops: 1, Pushes: 2},
	OpPop:       {Name: "POP", Falls: true, Pops: 1},
	OpAdd:       {Name: "ADD", Falls: true, Pops: 2, Pushes: 1},
	OpSub:       {Name: "SUB", Falls: true, Pops: 2, Pushes: 1},
	OpMul:       {Name: "MUL", Falls: true, Pops: 2, Pushes: 1},
	OpNeg:       {Name: "NEG", Falls: true, Pops: 1, Pushes: 1},
	OpNew:       {Name: "NEW", Falls: true, Pushes: 1},
	OpGetField:  {Name: "GETFIELD", Falls: true, Pops: 1, Pushes: 1},
	OpPutField:  {Name: "PUTFIELD", Falls: true, Pops: 2},
	OpGetStatic: {Name: "GETSTATIC", Falls: true, Pushes: 1},
	OpPutStatic: {Name: "PUTSTATIC", Falls: true, Pops: 1},
	OpIf:        {Name: "IF", Branch: true, Falls: true, Pops: 2},
	OpIfACmpEq:  {Name: "IF_ACMPEQ", Branch: true, Falls: true, Pops: 2},
	OpGoto:      {Name: "GOTO", Branch: true},
	OpInvoke:    {Name: "INVOKE", Falls: true},
	OpReturn:    {Name: "RETURN"},
}

// Info returns the table entry for op.
func (op Opcode) Info() OpcodeInfo {
	if int(op) < len(opcodeTable) {
		return opcodeTable[op]
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(%d)", op)}
}

func (op Opcode) String() string {
	return op.Info().Name
}

// ifName renders a conditional jump mnemonic.
func ifName(c vm.Cmp) string {
	switch c {
	case vm.CmpEq:
		return "IF_EQ"
	case vm.CmpNe:
		return "IF_NE"
	case vm.CmpLt:
		return "IF_LT"
	case vm.CmpLe:
		return "IF_LE"
	case vm.CmpGt:
		return "IF_GT"
	default:
		return "IF_GE"
	}
}
