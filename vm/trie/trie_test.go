package trie

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func mustAllocate(t *testing.T, tr *Trie, n int) Address {
	t.Helper()
	a, err := tr.Allocate(n)
	if err != nil {
		t.Fatalf("Allocate(%d): %v", n, err)
	}
	return a
}

func mustInsert(t *testing.T, tr *Trie, a Address, v Value) Value {
	t.Helper()
	old, err := tr.Insert(a, v)
	if err != nil {
		t.Fatalf("Insert(%d): %v", a, err)
	}
	return old
}

func mustGet(t *testing.T, tr *Trie, a Address) Value {
	t.Helper()
	v, err := tr.Get(a)
	if err != nil {
		t.Fatalf("Get(%d): %v", a, err)
	}
	return v
}

func TestTrie_AllocateFromEmpty(t *testing.T) {
	tr := New()

	a := mustAllocate(t, tr, 3)
	if a != 1 {
		t.Fatalf("Allocate(3): got %d, want 1", a)
	}
	for addr := Address(1); addr <= 3; addr++ {
		if v := mustGet(t, tr, addr); v != nil {
			t.Errorf("Get(%d): got %v, want nil", addr, v)
		}
	}
	if tr.Free() != 4 {
		t.Errorf("Free: got %d, want 4", tr.Free())
	}
}

func TestTrie_AllocateIsMonotonic(t *testing.T) {
	tr := New()
	prev := uint64(1)
	for _, n := range []int{1, 5, 31, 100, 1000} {
		a := mustAllocate(t, tr, n)
		if uint64(a) != prev {
			t.Fatalf("Allocate(%d): got %d, want %d", n, a, prev)
		}
		if tr.Free() != prev+uint64(n) {
			t.Fatalf("Free after Allocate(%d): got %d, want %d", n, tr.Free(), prev+uint64(n))
		}
		for addr := a; uint64(addr) < tr.Free(); addr++ {
			if v := mustGet(t, tr, addr); v != nil {
				t.Fatalf("fresh address %d: got %v, want nil", addr, v)
			}
		}
		prev = tr.Free()
	}
}

func TestTrie_InsertReturnsPrevious(t *testing.T) {
	tr := New()
	a := mustAllocate(t, tr, 2)

	if old := mustInsert(t, tr, a, "x"); old != nil {
		t.Errorf("first Insert: got previous %v, want nil", old)
	}
	if old := mustInsert(t, tr, a, "y"); old != "x" {
		t.Errorf("second Insert: got previous %v, want x", old)
	}
	if v := mustGet(t, tr, a); v != "y" {
		t.Errorf("Get: got %v, want y", v)
	}
}

func TestTrie_RoundTrip(t *testing.T) {
	tr := New()
	mustAllocate(t, tr, 5000)
	for a := Address(1); a < 5001; a++ {
		mustInsert(t, tr, a, int(a)*7)
	}
	for a := Address(1); a < 5001; a++ {
		if v := mustGet(t, tr, a); v != int(a)*7 {
			t.Fatalf("Get(%d): got %v, want %d", a, v, int(a)*7)
		}
	}
}

func TestTrie_NullAddressReadsNil(t *testing.T) {
	tr := New()
	if v, err := tr.Get(Null); err != nil || v != nil {
		t.Errorf("Get(Null): got (%v, %v), want (nil, nil)", v, err)
	}
}

func TestTrie_Errors(t *testing.T) {
	tr := New()
	mustAllocate(t, tr, 2)

	for _, n := range []int{0, -1} {
		if _, err := tr.Allocate(n); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Allocate(%d): got %v, want ErrInvalidArgument", n, err)
		}
	}
	if _, err := tr.Insert(3, "past"); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Insert past free: got %v, want ErrInvalidAddress", err)
	}
	if _, err := tr.Insert(Null, "null"); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Insert at Null: got %v, want ErrInvalidAddress", err)
	}
	if _, err := tr.Get(3); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Get past free: got %v, want ErrInvalidAddress", err)
	}
	if tr.Free() != 3 {
		t.Errorf("failed calls changed Free: got %d, want 3", tr.Free())
	}
}

func TestTrie_CapacityExceeded(t *testing.T) {
	tr := New()
	last := mustAllocate(t, tr, math.MaxUint32)
	if last != 1 {
		t.Fatalf("Allocate(MaxUint32): got %d, want 1", last)
	}
	if tr.Depth() != levels {
		t.Errorf("Depth: got %d, want %d", tr.Depth(), levels)
	}
	if _, err := tr.Allocate(1); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("Allocate on full trie: got %v, want ErrCapacityExceeded", err)
	}

	mustInsert(t, tr, math.MaxUint32, "top")
	mustInsert(t, tr, 1, "bottom")
	if v := mustGet(t, tr, math.MaxUint32); v != "top" {
		t.Errorf("Get(MaxUint32): got %v, want top", v)
	}
	if v := mustGet(t, tr, 1); v != "bottom" {
		t.Errorf("Get(1): got %v, want bottom", v)
	}
}

func TestTrie_DepthFor(t *testing.T) {
	tests := []struct {
		addr Address
		want int
	}{
		{0, 1},
		{31, 1},
		{32, 2},
		{511, 2},
		{512, 3},
		{1<<13 - 1, 3},
		{1 << 13, 4},
		{1<<29 - 1, 7},
		{1 << 29, 8},
		{math.MaxUint32, 8},
	}
	for _, tt := range tests {
		if got := depthFor(tt.addr); got != tt.want {
			t.Errorf("depthFor(%d): got %d, want %d", tt.addr, got, tt.want)
		}
	}
}

func TestTrie_DepthGrowthKeepsLowAddresses(t *testing.T) {
	tr := New()
	written := map[Address]int{}

	for k := 0; k < 32; k++ {
		target := Address(uint64(1) << k)
		if uint64(target) >= tr.Free() {
			mustAllocate(t, tr, int(uint64(target)-tr.Free()+1))
		}
		mustInsert(t, tr, target, k)
		written[target] = k

		for a, want := range written {
			if got := mustGet(t, tr, a); got != want {
				t.Fatalf("after writing 2^%d: Get(%d) = %v, want %d", k, a, got, want)
			}
		}
		if want := depthFor(Address(tr.Free() - 1)); tr.Depth() != want {
			t.Fatalf("after writing 2^%d: depth %d, want %d", k, tr.Depth(), want)
		}
	}
}

func TestTrie_CloneIsolation(t *testing.T) {
	s := New()
	a := mustAllocate(t, s, 1)
	mustInsert(t, s, a, "x")

	s2 := s.Clone()
	mustInsert(t, s2, a, "y")

	if v := mustGet(t, s, a); v != "x" {
		t.Errorf("original: got %v, want x", v)
	}
	if v := mustGet(t, s2, a); v != "y" {
		t.Errorf("clone: got %v, want y", v)
	}
}

func TestTrie_CloneIsolationBothWays(t *testing.T) {
	s := New()
	mustAllocate(t, s, 700)
	for a := Address(1); a <= 700; a++ {
		mustInsert(t, s, a, int(a))
	}

	c := s.Clone()
	for a := Address(1); a <= 700; a += 3 {
		mustInsert(t, c, a, -int(a))
	}
	for a := Address(2); a <= 700; a += 5 {
		mustInsert(t, s, a, 0)
	}

	for a := Address(1); a <= 700; a++ {
		want := int(a)
		if (a-2)%5 == 0 && a >= 2 {
			want = 0
		}
		if got := mustGet(t, s, a); got != want {
			t.Fatalf("original Get(%d): got %v, want %d", a, got, want)
		}

		want = int(a)
		if (a-1)%3 == 0 {
			want = -int(a)
		}
		if got := mustGet(t, c, a); got != want {
			t.Fatalf("clone Get(%d): got %v, want %d", a, got, want)
		}
	}
}

func TestTrie_CloneSharesRoot(t *testing.T) {
	s := New()
	mustAllocate(t, s, 600)
	mustInsert(t, s, 1, "a")
	mustInsert(t, s, 599, "b")

	c := s.Clone()
	if c.root != s.root || !c.SharesRoot(s) {
		t.Fatal("clone should share the root node")
	}
	if got := s.root.refs.Load(); got != 2 {
		t.Errorf("root refs after clone: got %d, want 2", got)
	}
	if c.Copies() != 0 || s.Copies() != 0 {
		t.Errorf("clone copied nodes: got %d/%d, want 0/0", s.Copies(), c.Copies())
	}

	mustInsert(t, c, 1, "x")
	if c.SharesRoot(s) {
		t.Error("a write should give the clone its own root")
	}
	if New().SharesRoot(New()) {
		t.Error("empty tries have no root to share")
	}
}

func TestTrie_WriteCopiesOnePath(t *testing.T) {
	s := New()
	mustAllocate(t, s, 600)
	for a := Address(1); a < 600; a++ {
		mustInsert(t, s, a, a)
	}
	if s.Depth() != 3 {
		t.Fatalf("Depth: got %d, want 3", s.Depth())
	}

	c := s.Clone()
	mustInsert(t, c, 40, "changed")
	if c.Copies() != 3 {
		t.Errorf("first write after clone: got %d copies, want 3", c.Copies())
	}

	mustInsert(t, c, 41, "changed")
	if c.Copies() != 3 {
		t.Errorf("second write in same leaf: got %d copies, want 3", c.Copies())
	}

	mustInsert(t, c, 100, "changed")
	if c.Copies() != 4 {
		t.Errorf("write in sibling leaf: got %d copies, want 4", c.Copies())
	}

	mustInsert(t, s, 40, "original")
	if s.Copies() != 0 {
		t.Errorf("original owns its leaf again: got %d copies, want 0", s.Copies())
	}
}

func TestTrie_ReleaseRestoresOwnership(t *testing.T) {
	s := New()
	mustAllocate(t, s, 100)
	mustInsert(t, s, 50, "x")

	c := s.Clone()
	c.Release()

	if !c.Released() {
		t.Fatal("Released: got false")
	}
	if _, err := c.Get(50); !errors.Is(err, ErrReleased) {
		t.Errorf("Get on released: got %v, want ErrReleased", err)
	}
	if _, err := c.Insert(50, "y"); !errors.Is(err, ErrReleased) {
		t.Errorf("Insert on released: got %v, want ErrReleased", err)
	}

	mustInsert(t, s, 50, "z")
	if s.Copies() != 0 {
		t.Errorf("write after sibling release: got %d copies, want 0", s.Copies())
	}
}

func TestTrie_GrowWhileShared(t *testing.T) {
	s := New()
	mustAllocate(t, s, 10)
	mustInsert(t, s, 5, "low")

	c := s.Clone()
	// Addresses up to 410 need a second level but not a third.
	mustAllocate(t, c, 400)
	mustInsert(t, c, 300, "high")

	if s.Depth() != 1 || c.Depth() != 2 {
		t.Fatalf("depths: got %d/%d, want 1/2", s.Depth(), c.Depth())
	}
	if v := mustGet(t, c, 5); v != "low" {
		t.Errorf("clone low address: got %v, want low", v)
	}
	mustInsert(t, c, 5, "clone")
	if v := mustGet(t, s, 5); v != "low" {
		t.Errorf("original after clone write: got %v, want low", v)
	}
	if _, err := s.Get(300); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("original past its free: got %v, want ErrInvalidAddress", err)
	}
}

func TestTrie_String(t *testing.T) {
	tr := New()
	mustAllocate(t, tr, 3)
	mustInsert(t, tr, 2, "b")

	if got, want := tr.String(), "[<nil>, <nil>, b, <nil>]"; got != want {
		t.Errorf("String: got %q, want %q", got, want)
	}
}

func TestTrie_Equal(t *testing.T) {
	eq := func(a, b Value) bool { return a == b }

	s := New()
	mustAllocate(t, s, 40)
	mustInsert(t, s, 33, 1)

	c := s.Clone()
	if !s.Equal(c, eq) {
		t.Error("fresh clone should be equal")
	}
	mustInsert(t, c, 33, 2)
	if s.Equal(c, eq) {
		t.Error("diverged clone should not be equal")
	}
	mustInsert(t, c, 33, 1)
	if !s.Equal(c, eq) {
		t.Error("re-converged clone should be equal by value")
	}
	mustAllocate(t, c, 1)
	if s.Equal(c, eq) {
		t.Error("different free should not be equal")
	}
}

// ---------------------------------------------------------------------------
// Reference-count conservation
// ---------------------------------------------------------------------------

// checkRefs verifies that every node reachable from the live tries has a
// count equal to its number of incoming edges from reachable nodes and roots.
func checkRefs(t *testing.T, live []*Trie) {
	t.Helper()

	edges := map[*node]int32{}
	seen := map[*node]bool{}
	var visit func(n *node)
	visit = func(n *node) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, k := range n.kids {
			if k != nil {
				edges[k]++
				visit(k)
			}
		}
	}
	for _, tr := range live {
		if tr.root != nil {
			edges[tr.root]++
			visit(tr.root)
		}
	}
	for n, want := range edges {
		if got := n.refs.Load(); got != want {
			t.Fatalf("node refs: got %d, want %d incoming edges", got, want)
		}
	}
}

func TestTrie_RefCountConservation(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	type model map[Address]Value
	live := []*Trie{New()}
	models := []model{{}}

	for step := 0; step < 3000; step++ {
		i := rng.IntN(len(live))
		tr, m := live[i], models[i]

		switch op := rng.IntN(10); {
		case op < 2:
			mustAllocate(t, tr, 1+rng.IntN(200))
		case op < 7:
			if tr.Free() > 1 {
				a := Address(1 + rng.Uint64N(tr.Free()-1))
				mustInsert(t, tr, a, step)
				m[a] = step
			}
		case op < 9:
			c := tr.Clone()
			cm := model{}
			for k, v := range m {
				cm[k] = v
			}
			live = append(live, c)
			models = append(models, cm)
		default:
			if len(live) > 1 {
				tr.Release()
				live = append(live[:i], live[i+1:]...)
				models = append(models[:i], models[i+1:]...)
			}
		}

		checkRefs(t, live)
	}

	for i, tr := range live {
		for a, want := range models[i] {
			if got := mustGet(t, tr, a); got != want {
				t.Fatalf("trie %d Get(%d): got %v, want %v", i, a, got, want)
			}
		}
	}
}
