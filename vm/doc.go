// Package vm implements the forkvm execution-state core.
//
// This package contains:
//   - ObjectHeap and Statics tables backed by copy-on-write tries
//   - Frames and the call stack (call/return protocol)
//   - ExecutionState with O(1) heap snapshots and two-way fork
//   - The Query/Mutation protocol instructions use to act on state
//   - The instruction, driver and solver interfaces the core runs against
//
// Values are opaque. The core compares them for equality and renders them
// for fingerprints, and never distinguishes concrete from symbolic values.
package vm
