package insn

import "errors"

var (
	ErrEmptyMethod     = errors.New("insn: method has no instructions")
	ErrUnresolvedLabel = errors.New("insn: label never marked")
	ErrLabelRebound    = errors.New("insn: label marked twice")
	ErrFallsOffEnd     = errors.New("insn: last instruction falls through")
	ErrAssembled       = errors.New("insn: method already assembled")
)
