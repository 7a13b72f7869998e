// Package store persists alignment-run history to sqlite: one row per
// run and one row per iteration within that run (geometry snapshot,
// chi2/dof, per-sensor corrections), so a long `align` invocation is
// resumable and its history inspectable after the fact.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/proteusgo/internal/geometry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a sqlite connection holding alignment-run history.
type DB struct {
	*sql.DB
}

// applyPragmas sets the WAL/busy-timeout PRAGMAs appropriate here since
// `align` may checkpoint iterations while a concurrent `inspect` reads
// the same file.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("store: exec %q: %w", p, err)
		}
	}
	return nil
}

// Open opens (creating if necessary) the sqlite database at path and
// runs any pending migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db := &DB{sqlDB}

	if err := applyPragmas(sqlDB); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrationSource() (fs.FS, error) {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("store: sub-filesystem for embedded migrations: %w", err)
	}
	return sub, nil
}

// migrateUp applies every migration newer than the current schema
// version. A database already at the latest version is left untouched.
func (db *DB) migrateUp() error {
	migSrc, err := db.migrationSource()
	if err != nil {
		return err
	}
	sourceDriver, err := iofs.New(migSrc, ".")
	if err != nil {
		return fmt.Errorf("store: iofs source driver: %w", err)
	}
	dbDriver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("store: sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("store: migrate instance: %w", err)
	}
	// Note: m.Close is not called here: the sqlite migration driver's
	// Close would close db.DB too, which this DB still owns.
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("store: migrate up: %w", err)
	}
	return nil
}

// Run is one alignment invocation's identity and configuration.
type Run struct {
	ID string
	Aligner string
	ConfigRaw string
	CreatedAt int64 // unix nanoseconds
}

// CreateRun starts a new alignment run, generating a fresh random run
// ID; a v4 UUID is sufficient since run identity is a convenience the
// engine does not otherwise need.
func (db *DB) CreateRun(aligner, configJSON string, nowUnixNanos int64) (Run, error) {
	run := Run{ID: uuid.NewString(), Aligner: aligner, ConfigRaw: configJSON, CreatedAt: nowUnixNanos}
	_, err := db.Exec(
		`INSERT INTO alignment_runs (id, aligner, config_json, created_unix_nanos) VALUES (?, ?, ?, ?)`,
		run.ID, run.Aligner, nullableString(run.ConfigRaw), run.CreatedAt,
	)
	if err != nil {
		return Run{}, fmt.Errorf("store: create run: %w", err)
	}
	return run, nil
}

// Iteration is one recorded step of an alignment run.
type Iteration struct {
	RunID string
	Seq int
	Chi2 float64
	HasChi2 bool
	Dof int32
	HasDof bool
	Geometry *geometry.Geometry
	Corrections map[int32][6]float64
	CreatedAt int64
}

// AppendIteration records one alignment iteration's resulting geometry,
// goodness-of-fit, and per-sensor corrections. hasChi2/hasDof let
// callers omit chi2/dof for aligners that don't produce one: the
// correlation and residual-histogram aligners don't minimize a chi2,
// unlike the local chi2 aligner.
func (db *DB) AppendIteration(runID string, seq int, geo *geometry.Geometry, chi2 float64, hasChi2 bool, dof int32, hasDof bool, corrections map[int32][6]float64, nowUnixNanos int64) error {
	geomJSON, err := marshalGeometry(geo)
	if err != nil {
		return err
	}
	corrJSON, err := marshalCorrections(corrections)
	if err != nil {
		return err
	}

	var chi2Arg, dofArg interface{}
	if hasChi2 {
		chi2Arg = chi2
	}
	if hasDof {
		dofArg = dof
	}

	_, err = db.Exec(
		`INSERT INTO alignment_iterations (run_id, seq, chi2, dof, geometry_json, corrections_json, created_unix_nanos)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, chi2Arg, dofArg, geomJSON, nullableString(corrJSON), nowUnixNanos,
	)
	if err != nil {
		return fmt.Errorf("store: append iteration run=%s seq=%d: %w", runID, seq, err)
	}
	return nil
}

// LatestGeometry returns the geometry snapshot from the highest-seq
// iteration of runID, for resuming a run or seeding `inspect`.
func (db *DB) LatestGeometry(runID string) (*geometry.Geometry, error) {
	var geomJSON string
	err := db.QueryRow(
		`SELECT geometry_json FROM alignment_iterations WHERE run_id = ? ORDER BY seq DESC LIMIT 1`,
		runID,
	).Scan(&geomJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: run %s has no recorded iterations", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest geometry for run %s: %w", runID, err)
	}
	return unmarshalGeometry(geomJSON)
}

// ListIterations returns every recorded iteration of runID in
// ascending seq order, geometry included, for `inspect`-style history
// dumps.
func (db *DB) ListIterations(runID string) ([]Iteration, error) {
	rows, err := db.Query(
		`SELECT seq, chi2, dof, geometry_json, corrections_json, created_unix_nanos
		 FROM alignment_iterations WHERE run_id = ? ORDER BY seq ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list iterations for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []Iteration
	for rows.Next() {
		var seq int
		var chi2 sql.NullFloat64
		var dof sql.NullInt64
		var geomJSON string
		var corrJSON sql.NullString
		var createdAt int64
		if err := rows.Scan(&seq, &chi2, &dof, &geomJSON, &corrJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan iteration row for run %s: %w", runID, err)
		}
		geo, err := unmarshalGeometry(geomJSON)
		if err != nil {
			return nil, err
		}
		corrections, err := unmarshalCorrections(corrJSON.String)
		if err != nil {
			return nil, err
		}
		out = append(out, Iteration{
			RunID: runID, Seq: seq,
			Chi2: chi2.Float64, HasChi2: chi2.Valid,
			Dof: int32(dof.Int64), HasDof: dof.Valid,
			Geometry: geo,
			Corrections: corrections,
			CreatedAt: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate rows for run %s: %w", runID, err)
	}
	return out, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
