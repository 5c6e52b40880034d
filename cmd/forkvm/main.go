// forkvm runs the sample programs on the forking machine, either on concrete
// arguments or on symbols, and prints how every explored path ended.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/forkvm/explore"
	"github.com/chazu/forkvm/manifest"
	"github.com/chazu/forkvm/programs"
	"github.com/chazu/forkvm/results"
	"github.com/chazu/forkvm/vm"
	"github.com/chazu/forkvm/vm/insn"
	"github.com/chazu/forkvm/vm/symbolic"
)

// argList collects repeated -arg flags.
type argList []int64

func (a *argList) String() string {
	parts := make([]string, len(*a))
	for i, v := range *a {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

func (a *argList) Set(s string) error {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("argument %q is not an integer", s)
	}
	*a = append(*a, v)
	return nil
}

// options are the parsed command line.
type options struct {
	program  string
	mode     string
	args     argList
	config   string
	db       string
	strategy string
	workers  int
	verbose  int
	list     bool
	dump     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.program, "program", "abs", "Sample program to run (see -list)")
	flag.StringVar(&opts.mode, "mode", "symbolic", "Execution mode: concrete or symbolic")
	flag.Var(&opts.args, "arg", "Integer argument for concrete mode (repeatable)")
	flag.StringVar(&opts.config, "config", ".", "Directory to search upwards for forkvm.toml or forkvm.yaml")
	flag.StringVar(&opts.db, "db", "", "Results database (overrides [results] database)")
	flag.StringVar(&opts.strategy, "strategy", "", "Search strategy: dfs or bfs (overrides [explore] strategy)")
	flag.IntVar(&opts.workers, "workers", 0, "Worker goroutines (overrides [explore] workers)")
	flag.IntVar(&opts.verbose, "v", 0, "Log verbosity: 1 info, 2 debug (overrides [log] verbosity)")
	flag.BoolVar(&opts.list, "list", false, "List the sample programs and exit")
	flag.BoolVar(&opts.dump, "dump", false, "Print the program's instruction listing and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: forkvm [options]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a sample program and prints one line per explored path.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  forkvm -list                                   # Show the programs\n")
		fmt.Fprintf(os.Stderr, "  forkvm -program abs                            # Fork on the sign of x\n")
		fmt.Fprintf(os.Stderr, "  forkvm -program max -mode concrete -arg 3 -arg 9\n")
		fmt.Fprintf(os.Stderr, "  forkvm -program call -workers 4 -db runs.db    # Store outcomes in SQLite\n")
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, opts, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if opts.list {
		for _, name := range programs.Names() {
			p, err := programs.Build(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-8s %-20s %s\n", name, "("+strings.Join(p.Params, ", ")+")", p.Description)
		}
		return nil
	}

	prog, err := programs.Build(opts.program)
	if err != nil {
		return err
	}
	if opts.dump {
		for _, line := range insn.Listing(prog.Entry) {
			fmt.Fprintln(out, line)
		}
		return nil
	}

	m, err := loadManifest(opts)
	if err != nil {
		return err
	}
	commonlog.Configure(m.Log.Verbosity, m.LogFile())

	root, arith, err := boot(prog, opts)
	if err != nil {
		return err
	}

	var exploreOpts []explore.Option
	if path := m.DatabasePath(); path != "" {
		store, err := results.Open(path)
		if err != nil {
			root.Release()
			return err
		}
		defer store.Close()
		id, err := store.BeginRun(ctx, prog.Name, opts.mode)
		if err != nil {
			root.Release()
			return err
		}
		exploreOpts = append(exploreOpts, explore.WithSink(store), explore.WithRunID(id))
	}

	e, err := explore.New(m.ExploreConfig(), symbolic.NewFolder(), arith, exploreOpts...)
	if err != nil {
		root.Release()
		return err
	}
	report, runErr := e.Run(ctx, root)
	if report != nil {
		printReport(out, prog, report, colorEnabled(out))
	}
	return runErr
}

// loadManifest finds the configuration and applies command line overrides.
func loadManifest(opts options) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(opts.config)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	if opts.db != "" {
		m.Results.Database = opts.db
	}
	if opts.strategy != "" {
		m.Explore.Strategy = opts.strategy
	}
	if opts.workers != 0 {
		m.Explore.Workers = opts.workers
	}
	if opts.verbose != 0 {
		m.Log.Verbosity = opts.verbose
	}
	return m, m.Validate()
}

// boot creates the root state for the chosen mode and returns the arithmetic
// it runs with.
func boot(prog *programs.Program, opts options) (*vm.State, vm.Arith, error) {
	switch opts.mode {
	case "concrete":
		if len(opts.args) != len(prog.Params) {
			return nil, nil, fmt.Errorf("%s takes %d argument(s) (%s), got %d",
				prog.Name, len(prog.Params), strings.Join(prog.Params, ", "), len(opts.args))
		}
		args := make([]vm.Value, len(opts.args))
		for i, v := range opts.args {
			args[i] = v
		}
		s, err := prog.Boot(nil, args...)
		return s, insn.Concrete{}, err
	case "symbolic":
		if len(opts.args) > 0 {
			return nil, nil, errors.New("-arg is only used in concrete mode")
		}
		s, err := prog.Boot(symbolic.NewPath(), prog.Symbols()...)
		return s, symbolic.Arith{}, err
	default:
		return nil, nil, fmt.Errorf("unknown mode %q (want concrete or symbolic)", opts.mode)
	}
}

func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printReport(out io.Writer, prog *programs.Program, r *explore.Report, color bool) {
	fmt.Fprintf(out, "%s(%s): %s\n\n", prog.Name, strings.Join(prog.Params, ", "), prog.Description)
	newTable(color, r.Outcomes).WriteTo(out)

	summary := fmt.Sprintf("\n%d path(s), %d fork(s), %d step(s)", len(r.Outcomes), r.Forks, r.Steps)
	if r.Truncated {
		summary += ", truncated"
	}
	fmt.Fprintf(out, "%s  run %s\n", summary, r.RunID)
}
