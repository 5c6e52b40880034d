// Package manifest handles forkvm.toml project configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/chazu/forkvm/explore"
)

// File names searched for, in order of preference.
const (
	TOMLFile = "forkvm.toml"
	YAMLFile = "forkvm.yaml"
)

// ErrNotFound is returned by Load when neither file exists in the directory.
var ErrNotFound = errors.New("manifest: no forkvm.toml or forkvm.yaml")

// Manifest represents a forkvm.toml project configuration.
type Manifest struct {
	Explore Explore `toml:"explore" yaml:"explore"`
	Results Results `toml:"results" yaml:"results"`
	Log     Log     `toml:"log" yaml:"log"`

	// Dir is the directory containing the manifest file (set at load time).
	Dir string `toml:"-" yaml:"-"`
	// File is the base name of the file that was read.
	File string `toml:"-" yaml:"-"`
}

// Explore configures the search.
type Explore struct {
	Strategy string `toml:"strategy" yaml:"strategy"`
	MaxSteps *int   `toml:"max-steps" yaml:"max-steps"`
	MaxPaths int    `toml:"max-paths" yaml:"max-paths"`
	Workers  int    `toml:"workers" yaml:"workers"`
	Dedupe   bool   `toml:"dedupe" yaml:"dedupe"`
	FailFast bool   `toml:"fail-fast" yaml:"fail-fast"`
}

// Results configures where outcomes are stored. An empty database path
// disables storage.
type Results struct {
	Database string `toml:"database" yaml:"database"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity" yaml:"verbosity"`
	File      string `toml:"file" yaml:"file"`
}

// Default returns the configuration used when no manifest is present.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	d := explore.DefaultConfig()
	if m.Explore.Strategy == "" {
		m.Explore.Strategy = string(d.Strategy)
	}
	if m.Explore.MaxSteps == nil {
		n := d.MaxSteps
		m.Explore.MaxSteps = &n
	}
	if m.Explore.Workers == 0 {
		m.Explore.Workers = d.Workers
	}
}

// Load parses forkvm.toml from the given directory, falling back to
// forkvm.yaml when there is no TOML file.
func Load(dir string) (*Manifest, error) {
	var m Manifest
	path := filepath.Join(dir, TOMLFile)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		path = filepath.Join(dir, YAMLFile)
		data, err = os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w in %s", ErrNotFound, dir)
		}
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	m.File = filepath.Base(path)

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a forkvm.toml or forkvm.yaml
// file, then loads and returns the manifest. Returns nil if no manifest is
// found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		for _, name := range []string{TOMLFile, YAMLFile} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return Load(dir)
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks the explore settings.
func (m *Manifest) Validate() error {
	return m.ExploreConfig().Validate()
}

// ExploreConfig converts the [explore] table for explore.New.
func (m *Manifest) ExploreConfig() explore.Config {
	cfg := explore.Config{
		Strategy: explore.Strategy(m.Explore.Strategy),
		MaxPaths: m.Explore.MaxPaths,
		Workers:  m.Explore.Workers,
		Dedupe:   m.Explore.Dedupe,
		FailFast: m.Explore.FailFast,
	}
	if m.Explore.MaxSteps != nil {
		cfg.MaxSteps = *m.Explore.MaxSteps
	}
	return cfg
}

// DatabasePath returns the results database as an absolute path, or "" when
// storage is disabled. Relative paths are taken from the manifest directory.
func (m *Manifest) DatabasePath() string {
	db := m.Results.Database
	if db == "" || db == ":memory:" || filepath.IsAbs(db) {
		return db
	}
	return filepath.Join(m.Dir, db)
}

// LogFile returns the log file path, or nil to log to stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.Log.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.Dir, path)
	}
	return &path
}
