package explore

import (
	"context"
	"fmt"
	"sync"

	"github.com/chazu/forkvm/vm"
)

// Strategy selects which pending path runs next.
type Strategy string

const (
	// DFS runs the most recently forked path first.
	DFS Strategy = "dfs"
	// BFS runs paths in the order they were forked.
	BFS Strategy = "bfs"
)

// ParseStrategy accepts "dfs" or "bfs"; the empty string means DFS.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", DFS:
		return DFS, nil
	case BFS:
		return BFS, nil
	default:
		return "", fmt.Errorf("%w: strategy %q", ErrInvalidConfig, s)
	}
}

// path is a pending or running execution path.
type path struct {
	id      uint64
	parent  uint64
	lineage string
	state   *vm.State
	steps   int
}

// worklist hands paths to workers. It tracks paths still running so that
// an empty list with work in flight means "wait", not "done".
type worklist struct {
	mu       sync.Mutex
	cond     *sync.Cond
	strategy Strategy
	items    []*path
	inflight int
	closed   bool
}

func newWorklist(strategy Strategy) *worklist {
	w := &worklist{strategy: strategy}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *worklist) push(p *path) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.items = append(w.items, p)
	w.cond.Signal()
	return true
}

// take blocks until a path is available, returning false once the list is
// drained and nothing is running, or it was closed.
func (w *worklist) take(ctx context.Context) (*path, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.items) == 0 && w.inflight > 0 && !w.closed && ctx.Err() == nil {
		w.cond.Wait()
	}
	if w.closed || len(w.items) == 0 || ctx.Err() != nil {
		return nil, false
	}

	var p *path
	switch w.strategy {
	case BFS:
		p = w.items[0]
		w.items[0] = nil
		w.items = w.items[1:]
	default:
		last := len(w.items) - 1
		p = w.items[last]
		w.items[last] = nil
		w.items = w.items[:last]
	}
	w.inflight++
	return p, true
}

// done marks a path taken earlier as finished.
func (w *worklist) done() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inflight--
	if w.inflight == 0 && len(w.items) == 0 {
		w.cond.Broadcast()
	}
}

// close stops the list and returns the paths that never ran.
func (w *worklist) close() []*path {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	rest := w.items
	w.items = nil
	w.cond.Broadcast()
	return rest
}

// wake releases waiters so they notice cancellation.
func (w *worklist) wake() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cond.Broadcast()
}
