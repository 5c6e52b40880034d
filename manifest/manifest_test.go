package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/forkvm/explore"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, TOMLFile, `
[explore]
strategy = "bfs"
max-steps = 500
max-paths = 20
workers = 4
dedupe = true
fail-fast = true

[results]
database = "out/runs.db"

[log]
verbosity = 2
file = "forkvm.log"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.File != TOMLFile {
		t.Errorf("file = %q, want %s", m.File, TOMLFile)
	}

	want := explore.Config{Strategy: explore.BFS, MaxSteps: 500, MaxPaths: 20, Workers: 4, Dedupe: true, FailFast: true}
	if diff := cmp.Diff(want, m.ExploreConfig()); diff != "" {
		t.Errorf("ExploreConfig (-want +got):\n%s", diff)
	}
	if got := m.DatabasePath(); got != filepath.Join(m.Dir, "out", "runs.db") {
		t.Errorf("database path = %q", got)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if f := m.LogFile(); f == nil || *f != filepath.Join(m.Dir, "forkvm.log") {
		t.Errorf("log file = %v", f)
	}
}

func TestLoadManifestYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, YAMLFile, `
explore:
  strategy: dfs
  max-steps: 0
  workers: 2
results:
  database: /tmp/forkvm.db
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.File != YAMLFile {
		t.Errorf("file = %q, want %s", m.File, YAMLFile)
	}
	want := explore.Config{Strategy: explore.DFS, MaxSteps: 0, Workers: 2}
	if diff := cmp.Diff(want, m.ExploreConfig()); diff != "" {
		t.Errorf("ExploreConfig (-want +got):\n%s", diff)
	}
	if got := m.DatabasePath(); got != "/tmp/forkvm.db" {
		t.Errorf("database path = %q, want /tmp/forkvm.db", got)
	}
	if m.LogFile() != nil {
		t.Error("log file should be unset")
	}
}

func TestLoadPrefersTOML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, TOMLFile, "[explore]\nworkers = 3\n")
	writeFile(t, dir, YAMLFile, "explore:\n  workers: 7\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Explore.Workers != 3 {
		t.Errorf("workers = %d, want 3 from %s", m.Explore.Workers, TOMLFile)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, TOMLFile, "[results]\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(explore.DefaultConfig(), m.ExploreConfig()); diff != "" {
		t.Errorf("defaults (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(explore.DefaultConfig(), Default().ExploreConfig()); diff != "" {
		t.Errorf("Default (-want +got):\n%s", diff)
	}
	if m.DatabasePath() != "" {
		t.Errorf("database path = %q, want storage disabled", m.DatabasePath())
	}
}

func TestLoadManifestInvalid(t *testing.T) {
	tests := map[string]string{
		"strategy":  "[explore]\nstrategy = \"random\"\n",
		"negative":  "[explore]\nmax-paths = -1\n",
		"malformed": "[explore\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, TOMLFile, content)
			if _, err := Load(dir); err == nil {
				t.Error("Load should fail")
			}
		})
	}

	dir := t.TempDir()
	writeFile(t, dir, TOMLFile, "[explore]\nworkers = -2\n")
	if _, err := Load(dir); !errors.Is(err, explore.ErrInvalidConfig) {
		t.Errorf("negative workers: got %v, want ErrInvalidConfig", err)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load: got %v, want ErrNotFound", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, YAMLFile, "explore:\n  max-paths: 9\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Explore.MaxPaths != 9 {
		t.Errorf("max-paths = %d, want 9", m.Explore.MaxPaths)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no forkvm.toml exists")
	}
}
