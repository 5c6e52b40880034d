package vm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Fingerprint identifies a state by content. Equal fingerprints mean equal
// call stacks, heaps, statics and meta.
type Fingerprint [sha256.Size]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

var fingerprintEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	fingerprintEncMode = em
}

type frameView struct {
	IP       string  `cbor:"1,keyasint"`
	Locals   [][]any `cbor:"2,keyasint"`
	Operands [][]any `cbor:"3,keyasint"`
}

type stateView struct {
	Frames  []frameView        `cbor:"1,keyasint"`
	Heap    [][]any            `cbor:"2,keyasint"`
	Statics map[string][][]any `cbor:"3,keyasint"`
	Meta    []any              `cbor:"4,keyasint"`
}

// valueKey renders v as its dynamic type and printed form, which is what
// Equal distinguishes for the value domains the machine runs on.
func valueKey(v Value) []any {
	return []any{fmt.Sprintf("%T", v), fmt.Sprint(v)}
}

func valueKeys(vs []Value) [][]any {
	out := make([][]any, len(vs))
	for i, v := range vs {
		out[i] = valueKey(v)
	}
	return out
}

// EncodeValue serializes a single value the way fingerprints see it.
func EncodeValue(v Value) ([]byte, error) {
	return fingerprintEncMode.Marshal(valueKey(v))
}

// Fingerprint hashes the canonical CBOR encoding of the state's contents.
// Instructions are identified by their String form, so graph nodes must
// render uniquely.
func (s *State) Fingerprint() (Fingerprint, error) {
	if err := s.live(); err != nil {
		return Fingerprint{}, err
	}
	view := stateView{
		Frames:  make([]frameView, s.stack.Size()),
		Statics: map[string][][]any{},
	}
	for i := range view.Frames {
		f := s.stack.Frame(i)
		view.Frames[i] = frameView{
			IP:       fmt.Sprint(f.ip),
			Locals:   valueKeys(f.locals),
			Operands: valueKeys(f.operands),
		}
	}
	for _, v := range s.heap.store.All() {
		view.Heap = append(view.Heap, valueKey(v))
	}
	for _, class := range s.statics.Classes() {
		fields, err := s.statics.Fields(class)
		if err != nil {
			return Fingerprint{}, err
		}
		view.Statics[class] = valueKeys(fields)
	}
	if s.meta != nil {
		view.Meta = valueKey(s.meta)
	}

	data, err := fingerprintEncMode.Marshal(view)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint: %w", err)
	}
	return sha256.Sum256(data), nil
}
