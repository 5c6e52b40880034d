// Package results stores exploration outcomes in SQLite so runs can be
// compared after the process exits.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/forkvm/explore"
	"github.com/chazu/forkvm/vm"
)

var log = commonlog.GetLogger("forkvm.results")

// ErrRunNotFound indicates the requested run doesn't exist
var ErrRunNotFound = errors.New("run not found")

var _ explore.Sink = (*Store)(nil)

var schema = []string{`CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	program TEXT NOT NULL,
	mode TEXT NOT NULL,
	started_at TEXT NOT NULL
)`, `CREATE TABLE IF NOT EXISTS outcomes (
	run_id TEXT NOT NULL,
	path_id INTEGER NOT NULL,
	parent_id INTEGER NOT NULL,
	lineage TEXT NOT NULL,
	kind TEXT NOT NULL,
	result BLOB,
	constraint_text TEXT NOT NULL,
	steps INTEGER NOT NULL,
	error TEXT NOT NULL,
	PRIMARY KEY (run_id, lineage)
)`}

// Store is a SQLite database of runs and their outcomes.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path. Parent directories are
// created as needed; ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating tables: %w", err)
		}
	}

	log.Debugf("opened %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Run describes one stored run.
type Run struct {
	ID        uuid.UUID
	Program   string
	Mode      string
	StartedAt time.Time
	Paths     int
}

// BeginRun registers a new run and returns its identifier.
func (s *Store) BeginRun(ctx context.Context, program, mode string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, program, mode, started_at) VALUES (?, ?, ?, ?)",
		id.String(), program, mode, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("saving run: %w", err)
	}
	log.Infof("run %s: %s (%s)", id, program, mode)
	return id, nil
}

// Record stores one outcome of runID. Recording the same lineage twice
// replaces the earlier row.
func (s *Store) Record(ctx context.Context, runID uuid.UUID, o explore.Outcome) error {
	var blob []byte
	if o.Result != nil {
		var err error
		if blob, err = vm.EncodeValue(o.Result); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO outcomes
			(run_id, path_id, parent_id, lineage, kind, result, constraint_text, steps, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID.String(), int64(o.ID), int64(o.Parent), o.Lineage, string(o.Kind),
		blob, o.Constraint, o.Steps, o.Error,
	)
	if err != nil {
		return fmt.Errorf("saving outcome %s: %w", o.Lineage, err)
	}
	return nil
}

// Outcome is a stored outcome. The result comes back as its type name and
// printed form, since symbolic values are not reconstructed.
type Outcome struct {
	ID         uint64
	Parent     uint64
	Lineage    string
	Kind       explore.Kind
	ResultType string
	Result     string
	Constraint string
	Steps      int
	Error      string
}

// Outcomes returns the outcomes of runID ordered by lineage.
func (s *Store) Outcomes(ctx context.Context, runID uuid.UUID) ([]Outcome, error) {
	if _, err := s.Run(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT path_id, parent_id, lineage, kind, result, constraint_text, steps, error
			FROM outcomes WHERE run_id = ? ORDER BY lineage`,
		runID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o          Outcome
			id, parent int64
			kind       string
			blob       []byte
		)
		if err := rows.Scan(&id, &parent, &o.Lineage, &kind, &blob, &o.Constraint, &o.Steps, &o.Error); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		o.ID, o.Parent, o.Kind = uint64(id), uint64(parent), explore.Kind(kind)
		if len(blob) > 0 {
			var key []string
			if err := cbor.Unmarshal(blob, &key); err != nil || len(key) != 2 {
				return nil, fmt.Errorf("decoding result of %s: %w", o.Lineage, errors.Join(err, errMalformedResult))
			}
			o.ResultType, o.Result = key[0], key[1]
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

var errMalformedResult = errors.New("malformed result")

// Run looks up a run and counts its recorded outcomes.
func (s *Store) Run(ctx context.Context, id uuid.UUID) (*Run, error) {
	var (
		r       = Run{ID: id}
		started string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT program, mode, started_at,
			(SELECT COUNT(*) FROM outcomes WHERE run_id = runs.id)
			FROM runs WHERE id = ?`,
		id.String(),
	).Scan(&r.Program, &r.Mode, &started, &r.Paths)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("parsing start time of %s: %w", id, err)
	}
	return &r, nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM runs ORDER BY started_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("parsing run id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Run, 0, len(ids))
	for _, id := range ids {
		r, err := s.Run(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}
