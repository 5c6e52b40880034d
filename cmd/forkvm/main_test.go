package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/forkvm/explore"
	"github.com/chazu/forkvm/results"
	"github.com/chazu/forkvm/vm/symbolic"
)

func runCLI(t *testing.T, opts options) string {
	t.Helper()
	if opts.config == "" {
		opts.config = t.TempDir()
	}
	var out bytes.Buffer
	if err := run(context.Background(), opts, &out); err != nil {
		t.Fatalf("run(%+v): %v", opts, err)
	}
	return out.String()
}

func TestCLI_List(t *testing.T) {
	out := runCLI(t, options{list: true})
	for _, name := range []string{"abs", "call", "counter", "max", "point", "sum"} {
		if !strings.Contains(out, name+" ") {
			t.Errorf("-list output is missing %s:\n%s", name, out)
		}
	}
}

func TestCLI_Dump(t *testing.T) {
	out := runCLI(t, options{program: "abs", dump: true})
	if !strings.HasPrefix(out, "abs#0 LOAD 0\n") || !strings.Contains(out, "IF_GE #6") {
		t.Errorf("-dump output:\n%s", out)
	}
}

func TestCLI_Concrete(t *testing.T) {
	out := runCLI(t, options{program: "max", mode: "concrete", args: argList{3, 9}})
	if !strings.Contains(out, "0     terminated  9") {
		t.Errorf("output:\n%s", out)
	}
	if !strings.Contains(out, "1 path(s), 0 fork(s)") {
		t.Errorf("summary missing:\n%s", out)
	}
}

func TestCLI_SymbolicWithDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	out := runCLI(t, options{program: "abs", mode: "symbolic", db: db, workers: 2})
	if !strings.Contains(out, "(x < 0)") || !strings.Contains(out, "(x >= 0)") {
		t.Errorf("output:\n%s", out)
	}

	store, err := results.Open(db)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	runs, err := store.Runs(context.Background())
	if err != nil || len(runs) != 1 {
		t.Fatalf("Runs: got %v, %v; want one run", runs, err)
	}
	if runs[0].Program != "abs" || runs[0].Mode != "symbolic" || runs[0].Paths != 2 {
		t.Errorf("stored run: %+v", runs[0])
	}
	if !strings.Contains(out, runs[0].ID.String()) {
		t.Errorf("output should name run %s:\n%s", runs[0].ID, out)
	}
}

func TestCLI_Errors(t *testing.T) {
	tests := map[string]options{
		"unknown program": {program: "nope", mode: "symbolic"},
		"unknown mode":    {program: "abs", mode: "fuzzy"},
		"arity":           {program: "max", mode: "concrete", args: argList{1}},
		"symbolic args":   {program: "abs", mode: "symbolic", args: argList{1}},
		"strategy":        {program: "abs", mode: "symbolic", strategy: "random"},
	}
	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			opts.config = t.TempDir()
			if err := run(context.Background(), opts, &bytes.Buffer{}); err == nil {
				t.Error("run should fail")
			}
		})
	}
}

func TestArgList(t *testing.T) {
	var a argList
	for _, s := range []string{"4", "-2"} {
		if err := a.Set(s); err != nil {
			t.Fatalf("Set(%s): %v", s, err)
		}
	}
	if err := a.Set("x"); err == nil {
		t.Error("Set(x) should fail")
	}
	if a.String() != "4,-2" {
		t.Errorf("String: got %q", a.String())
	}
}

func TestTable(t *testing.T) {
	outcomes := []explore.Outcome{
		{Lineage: "0.F", Kind: explore.Terminated, Result: symbolic.Neg{X: symbolic.Sym{Name: "x"}}, Constraint: "(x < 0)", Steps: 6},
		{Lineage: "0.T.F", Kind: explore.Failed, Error: "boom", Steps: 2},
	}
	var b bytes.Buffer
	if _, err := newTable(false, outcomes).WriteTo(&b); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	want := []string{
		"PATH   KIND        RESULT  CONSTRAINT  STEPS",
		"0.F    terminated  -x      (x < 0)     6",
		"0.T.F  failed      boom    -           2",
		"",
	}
	if diff := cmp.Diff(want, strings.Split(b.String(), "\n")); diff != "" {
		t.Errorf("table (-want +got):\n%s", diff)
	}

	b.Reset()
	newTable(true, outcomes).WriteTo(&b)
	if !strings.Contains(b.String(), ansiRed+"failed    "+ansiReset) {
		t.Errorf("colored table should paint the failed kind:\n%q", b.String())
	}
}
