package trie

import "errors"

var (
	// ErrInvalidAddress is returned for reads or writes outside the
	// allocated range.
	ErrInvalidAddress = errors.New("trie: invalid address")

	// ErrInvalidArgument is returned for non-positive allocation sizes.
	ErrInvalidArgument = errors.New("trie: invalid argument")

	// ErrCapacityExceeded is returned once the 32-bit address space is used up.
	ErrCapacityExceeded = errors.New("trie: address space exhausted")

	// ErrReleased is returned by any operation on a released trie.
	ErrReleased = errors.New("trie: released")
)
