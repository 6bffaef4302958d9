package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
	"github.com/cognicore/resintel/pkg/resintel/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	corpus_id TEXT NOT NULL,
	docs INTEGER NOT NULL,
	range_lo INTEGER NOT NULL,
	range_hi INTEGER NOT NULL,
	found INTEGER NOT NULL,
	min_cluster_size INTEGER,
	coherence REAL,
	curve TEXT,
	viable TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_corpus ON runs(corpus_id);

CREATE TABLE IF NOT EXISTS refinements (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	corpus_id TEXT NOT NULL,
	min_cluster_size INTEGER NOT NULL,
	topics TEXT,
	created_at TEXT NOT NULL,
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS refinements_run ON refinements(run_id);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRun inserts or replaces a run
func (s *sqliteStore) SaveRun(ctx context.Context, r *store.Run) error {
	r.Prepare()
	curveJSON, err := json.Marshal(r.Curve)
	if err != nil {
		return err
	}
	viableJSON, err := json.Marshal(r.Viable)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs (id, corpus_id, docs, range_lo, range_hi, found, min_cluster_size, coherence, curve, viable, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	corpus_id=excluded.corpus_id,
	docs=excluded.docs,
	range_lo=excluded.range_lo,
	range_hi=excluded.range_hi,
	found=excluded.found,
	min_cluster_size=excluded.min_cluster_size,
	coherence=excluded.coherence,
	curve=excluded.curve,
	viable=excluded.viable;
`, r.ID, r.CorpusID, r.Docs, r.RangeLo, r.RangeHi, boolToInt(r.Found), r.MinClusterSize, r.Coherence,
		string(curveJSON), string(viableJSON), r.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

const runColumns = `id, corpus_id, docs, range_lo, range_hi, found, min_cluster_size, coherence, curve, viable, created_at`

// GetRun retrieves a run by id
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, fmt.Errorf("%w: run %q", internalerr.ErrNotFound, id)
	}
	return r, err
}

// ListRuns retrieves runs newest first
func (s *sqliteStore) ListRuns(ctx context.Context, corpusID string, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+runColumns+`
FROM runs
WHERE ? = '' OR corpus_id = ?
ORDER BY id DESC
LIMIT ?;
`, corpusID, corpusID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (store.Run, error) {
	var (
		r                     store.Run
		found                 int
		curveJSON, viableJSON string
		created               string
	)
	if err := sc.Scan(&r.ID, &r.CorpusID, &r.Docs, &r.RangeLo, &r.RangeHi, &found,
		&r.MinClusterSize, &r.Coherence, &curveJSON, &viableJSON, &created); err != nil {
		return store.Run{}, err
	}
	r.Found = found != 0
	if err := json.Unmarshal([]byte(curveJSON), &r.Curve); err != nil {
		return store.Run{}, err
	}
	if err := json.Unmarshal([]byte(viableJSON), &r.Viable); err != nil {
		return store.Run{}, err
	}
	if parsed, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
		r.CreatedAt = parsed
	}
	return r, nil
}

// SaveRefinement inserts a refinement of an existing run
func (s *sqliteStore) SaveRefinement(ctx context.Context, r *store.Refinement) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, r.RunID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: run %q", internalerr.ErrNotFound, r.RunID)
	}

	r.Prepare()
	topicsJSON, err := json.Marshal(r.Topics)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO refinements (id, run_id, corpus_id, min_cluster_size, topics, created_at)
VALUES (?, ?, ?, ?, ?, ?);
`, r.ID, r.RunID, r.CorpusID, r.MinClusterSize, string(topicsJSON), r.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// ListRefinements retrieves the refinements of a run, oldest first
func (s *sqliteStore) ListRefinements(ctx context.Context, runID string) ([]store.Refinement, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, run_id, corpus_id, min_cluster_size, topics, created_at
FROM refinements
WHERE run_id = ?
ORDER BY id ASC;
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := []store.Refinement{}
	for rows.Next() {
		var (
			r                   store.Refinement
			topicsJSON, created string
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.CorpusID, &r.MinClusterSize, &topicsJSON, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(topicsJSON), &r.Topics); err != nil {
			return nil, err
		}
		if parsed, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
			r.CreatedAt = parsed
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// DeleteCorpus removes every run of a corpus and its refinements.
// The foreign key pragma only holds on the connection that set it, so
// refinements are deleted explicitly.
func (s *sqliteStore) DeleteCorpus(ctx context.Context, corpusID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
DELETE FROM refinements WHERE run_id IN (SELECT id FROM runs WHERE corpus_id = ?)`, corpusID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE corpus_id = ?`, corpusID); err != nil {
		return err
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
