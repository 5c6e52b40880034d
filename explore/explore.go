// Package explore drives forkvm states to completion. It steps each path
// until it terminates, fails or forks, and feeds the successors of every
// fork back into a worklist that one or more workers drain.
package explore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/forkvm/vm"
)

var log = commonlog.GetLogger("forkvm.explore")

var (
	ErrInvalidConfig = errors.New("explore: invalid configuration")
	ErrPathFailed    = errors.New("explore: path failed")
)

// Config bounds an exploration.
type Config struct {
	Strategy Strategy
	MaxSteps int  // per path, counted from the root; 0 means unlimited
	MaxPaths int  // finished paths before the search stops; 0 means unlimited
	Workers  int  // goroutines stepping paths; values below 1 mean 1
	Dedupe   bool // skip paths whose state was already seen
	FailFast bool // abort the run on the first failed path
}

// DefaultConfig returns a single-worker depth-first search with a budget of
// 10000 steps per path.
func DefaultConfig() Config {
	return Config{Strategy: DFS, MaxSteps: 10000, Workers: 1}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	if c.MaxSteps < 0 || c.MaxPaths < 0 || c.Workers < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidConfig)
	}
	return nil
}

// Kind classifies how a path ended.
type Kind string

const (
	Terminated Kind = "terminated"
	Failed     Kind = "failed"
	Exhausted  Kind = "exhausted" // step budget used up
	Duplicate  Kind = "duplicate" // state already explored
)

// Outcome is one finished path.
type Outcome struct {
	ID         uint64
	Parent     uint64
	Lineage    string // "0" for the root, then one T/F per fork taken
	Kind       Kind
	Result     vm.Value
	Constraint string
	Steps      int
	Error      string
}

// Report summarizes a run.
type Report struct {
	RunID     uuid.UUID
	Outcomes  []Outcome // sorted by lineage
	Forks     int
	Steps     int
	Truncated bool // MaxPaths stopped the search with work left
}

// Count returns how many outcomes are of kind k.
func (r *Report) Count(k Kind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == k {
			n++
		}
	}
	return n
}

// Sink receives outcomes as they are produced. Implementations must be safe
// for concurrent use when Workers > 1.
type Sink interface {
	Record(ctx context.Context, runID uuid.UUID, o Outcome) error
}

// Explorer runs states with a fixed solver and arithmetic.
type Explorer struct {
	cfg    Config
	solver vm.Solver
	arith  vm.Arith
	sink   Sink
	runID  uuid.UUID
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithSink records every outcome to s.
func WithSink(s Sink) Option {
	return func(e *Explorer) { e.sink = s }
}

// WithRunID makes runs use id instead of a fresh random identifier, so
// outcomes line up with a run registered elsewhere.
func WithRunID(id uuid.UUID) Option {
	return func(e *Explorer) { e.runID = id }
}

// New creates an explorer.
func New(cfg Config, solver vm.Solver, arith vm.Arith, opts ...Option) (*Explorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Strategy, _ = ParseStrategy(string(cfg.Strategy))
	cfg.Workers = max(cfg.Workers, 1)
	e := &Explorer{cfg: cfg, solver: solver, arith: arith}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// run is the mutable side of one Run call.
type run struct {
	*Explorer
	id       uuid.UUID
	work     *worklist
	nextID   atomic.Uint64
	steps    atomic.Int64
	forks    atomic.Int64
	mu       sync.Mutex
	outcomes []Outcome
	seen     map[vm.Fingerprint]bool
	full     bool
}

// Run explores every path reachable from root and reports how each ended.
// root belongs to the explorer from here on. Run returns early with the
// context's error if ctx is cancelled, and with the first failure when
// FailFast is set.
func (e *Explorer) Run(ctx context.Context, root *vm.State) (*Report, error) {
	id := e.runID
	if id == uuid.Nil {
		id = uuid.New()
	}
	r := &run{
		Explorer: e,
		id:       id,
		work:     newWorklist(e.cfg.Strategy),
		seen:     map[vm.Fingerprint]bool{},
	}
	log.Infof("run %s: %s search with %d worker(s)", r.id, e.cfg.Strategy, e.cfg.Workers)

	r.work.push(&path{id: r.nextID.Add(1) - 1, lineage: "0", state: root})

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, r.work.wake)
	defer stop()
	for range e.cfg.Workers {
		g.Go(func() error {
			for {
				p, ok := r.work.take(gctx)
				if !ok {
					return gctx.Err()
				}
				err := r.explore(gctx, p)
				r.work.done()
				if err != nil {
					return err
				}
			}
		})
	}
	err := g.Wait()

	for _, p := range r.work.close() {
		p.state.Release()
	}

	report := &Report{
		RunID:     r.id,
		Outcomes:  r.outcomes,
		Forks:     int(r.forks.Load()),
		Steps:     int(r.steps.Load()),
		Truncated: r.full,
	}
	slices.SortFunc(report.Outcomes, func(a, b Outcome) int {
		return strings.Compare(a.Lineage, b.Lineage)
	})
	log.Infof("run %s: %d path(s), %d fork(s), %d step(s)", r.id, len(report.Outcomes), report.Forks, report.Steps)
	if err == nil {
		err = ctx.Err()
	}
	return report, err
}

// explore steps p until it leaves the running state.
func (r *run) explore(ctx context.Context, p *path) error {
	if r.cfg.Dedupe {
		fp, err := p.state.Fingerprint()
		if err != nil {
			return r.fail(ctx, p, err)
		}
		r.mu.Lock()
		dup := r.seen[fp]
		r.seen[fp] = true
		r.mu.Unlock()
		if dup {
			log.Debugf("path %s: duplicate state %s", p.lineage, fp)
			return r.finish(ctx, p, Duplicate, nil, nil)
		}
	}

	d := &driver{run: r, parent: p}
	for {
		if err := ctx.Err(); err != nil {
			p.state.Release()
			return err
		}
		if r.cfg.MaxSteps > 0 && p.steps >= r.cfg.MaxSteps {
			log.Debugf("path %s: step budget of %d used up", p.lineage, r.cfg.MaxSteps)
			return r.finish(ctx, p, Exhausted, nil, nil)
		}

		d.begin()
		st, err := p.state.Step(d)
		p.steps++
		r.steps.Add(1)
		switch {
		case err != nil:
			return r.fail(ctx, p, err)
		case st == vm.StatusForked:
			r.forks.Add(1)
			log.Debugf("path %s: forked into %d feasible path(s)", p.lineage, d.children)
			return nil
		case st == vm.StatusTerminated:
			v, err := p.state.Result()
			if err != nil {
				return r.fail(ctx, p, err)
			}
			return r.finish(ctx, p, Terminated, v, nil)
		}
	}
}

func (r *run) fail(ctx context.Context, p *path, err error) error {
	log.Errorf("path %s: %s", p.lineage, err)
	if ferr := r.finish(ctx, p, Failed, nil, err); ferr != nil {
		return ferr
	}
	if r.cfg.FailFast {
		return fmt.Errorf("%w: %s: %w", ErrPathFailed, p.lineage, err)
	}
	return nil
}

// finish records p's outcome and releases its state.
func (r *run) finish(ctx context.Context, p *path, kind Kind, result vm.Value, err error) error {
	o := Outcome{
		ID:      p.id,
		Parent:  p.parent,
		Lineage: p.lineage,
		Kind:    kind,
		Result:  result,
		Steps:   p.steps,
	}
	if !p.state.Retired() {
		if c := p.state.Constraint(); c != nil {
			o.Constraint = fmt.Sprint(c)
		}
	}
	if err != nil {
		o.Error = err.Error()
	}
	p.state.Release()

	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	full := r.cfg.MaxPaths > 0 && len(r.outcomes) >= r.cfg.MaxPaths
	r.mu.Unlock()

	if r.sink != nil {
		if err := r.sink.Record(ctx, r.id, o); err != nil {
			return fmt.Errorf("record %s: %w", p.lineage, err)
		}
	}
	if full {
		for _, rest := range r.work.close() {
			rest.state.Release()
			r.mu.Lock()
			r.full = true
			r.mu.Unlock()
		}
	}
	return nil
}

// driver is what instructions of one path see. It names successors after
// the edge they took: T for the branch target, F otherwise.
type driver struct {
	run      *run
	parent   *path
	target   vm.Instruction
	children int
	taken    bool
}

// begin remembers the branch target of the instruction about to run.
func (d *driver) begin() {
	d.target = nil
	d.children = 0
	d.taken = false
	if ip := d.parent.state.Instruction(); ip != nil {
		d.target, _ = ip.BranchTarget()
	}
}

func (d *driver) Solver() vm.Solver { return d.run.solver }
func (d *driver) Arith() vm.Arith   { return d.run.arith }

func (d *driver) Schedule(s *vm.State) error {
	edge := "F"
	if !d.taken && d.target != nil && s.Instruction() == d.target {
		edge = "T"
		d.taken = true
	}
	d.children++
	child := &path{
		id:      d.run.nextID.Add(1) - 1,
		parent:  d.parent.id,
		lineage: d.parent.lineage + "." + edge,
		state:   s,
		steps:   d.parent.steps + 1,
	}
	if !d.run.work.push(child) {
		s.Release()
	}
	return nil
}
