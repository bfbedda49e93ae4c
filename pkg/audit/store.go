// Package audit persists run history in SQLite: which documents were
// processed, which abbreviations were resolved and how words were
// normalized.
package audit

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pagenorm/pkg/abbrev"
	"github.com/hazyhaar/pagenorm/pkg/morph"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Run is a row of the runs table.
type Run struct {
	ID         string
	Stages     []string
	StartedAt  int64
	FinishedAt *int64
	Documents  int
	Status     string
	Error      *string
}

// Document is a row of the documents table.
type Document struct {
	Path        string
	Stage       string
	OutputPath  string
	InputHash   string
	OutputHash  string
	Words       int
	Replaced    int
	ProcessedAt int64
}

// Store wraps the audit database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	stages      TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	documents   INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	error       TEXT
);
CREATE TABLE IF NOT EXISTS documents (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	path         TEXT NOT NULL,
	stage        TEXT NOT NULL,
	output_path  TEXT NOT NULL,
	input_hash   TEXT NOT NULL,
	output_hash  TEXT NOT NULL,
	words        INTEGER NOT NULL,
	replaced     INTEGER NOT NULL,
	processed_at INTEGER NOT NULL,
	PRIMARY KEY (run_id, path, stage)
);
CREATE TABLE IF NOT EXISTS abbreviations (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	word      TEXT NOT NULL,
	expansion TEXT NOT NULL,
	source    TEXT NOT NULL,
	PRIMARY KEY (run_id, word)
);
CREATE TABLE IF NOT EXISTS normalizations (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	word            TEXT NOT NULL,
	superlemma      TEXT NOT NULL,
	lemma           TEXT NOT NULL,
	superlemma_root TEXT NOT NULL,
	lemma_root      TEXT NOT NULL,
	class           TEXT NOT NULL,
	normalized      TEXT NOT NULL,
	PRIMARY KEY (run_id, word)
);`

// Open opens (or creates) the SQLite database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Hash returns the hex BLAKE3 digest of data.
func Hash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BeginRun inserts a running run and returns its ID.
func (s *Store) BeginRun(ctx context.Context, stages []string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, stages, started_at, status) VALUES (?, ?, ?, ?)`,
		id, strings.Join(stages, ","), time.Now().Unix(), StatusRunning)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// FinishRun marks a run done, or failed when runErr is non-nil.
func (s *Store) FinishRun(ctx context.Context, runID string, documents int, runErr error) error {
	status := StatusDone
	var errPtr *string
	if runErr != nil {
		status = StatusFailed
		msg := runErr.Error()
		errPtr = &msg
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, documents = ?, status = ?, error = ? WHERE id = ?`,
		time.Now().Unix(), documents, status, errPtr, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// RecordDocument stores one processed document for a stage.
func (s *Store) RecordDocument(ctx context.Context, runID string, d Document) error {
	if d.ProcessedAt == 0 {
		d.ProcessedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents
		(run_id, path, stage, output_path, input_hash, output_hash, words, replaced, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, d.Path, d.Stage, d.OutputPath, d.InputHash, d.OutputHash, d.Words, d.Replaced, d.ProcessedAt)
	if err != nil {
		return fmt.Errorf("record document %s: %w", d.Path, err)
	}
	return nil
}

// RecordAbbreviations stores resolutions for a run. A later resolution of
// the same word replaces the earlier one.
func (s *Store) RecordAbbreviations(ctx context.Context, runID string, res []abbrev.Resolution) error {
	const q = `INSERT OR REPLACE INTO abbreviations (run_id, word, expansion, source) VALUES (?, ?, ?, ?)`
	return s.batch(ctx, q, len(res), func(stmt *sql.Stmt, i int) error {
		r := res[i]
		_, err := stmt.ExecContext(ctx, runID, r.Word, r.Expansion, string(r.Source))
		return err
	})
}

// RecordNormalizations stores normalization records for a run.
func (s *Store) RecordNormalizations(ctx context.Context, runID string, recs []morph.Record) error {
	const q = `INSERT OR REPLACE INTO normalizations
		(run_id, word, superlemma, lemma, superlemma_root, lemma_root, class, normalized)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	return s.batch(ctx, q, len(recs), func(stmt *sql.Stmt, i int) error {
		r := recs[i]
		_, err := stmt.ExecContext(ctx, runID, r.Word, r.Superlemma, r.Lemma,
			r.SuperlemmaRoot, r.LemmaRoot, r.Class.String(), r.Normalized)
		return err
	})
}

func (s *Store) batch(ctx context.Context, q string, n int, exec func(*sql.Stmt, int) error) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Runs returns all runs, most recent first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, stages, started_at, finished_at, documents, status, error
		FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var stages string
		if err := rows.Scan(&r.ID, &stages, &r.StartedAt, &r.FinishedAt, &r.Documents, &r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if stages != "" {
			r.Stages = strings.Split(stages, ",")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Documents returns the documents recorded for a run ordered by path and stage.
func (s *Store) Documents(ctx context.Context, runID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, stage, output_path, input_hash, output_hash,
		words, replaced, processed_at
		FROM documents WHERE run_id = ? ORDER BY path, stage`, runID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.Path, &d.Stage, &d.OutputPath, &d.InputHash, &d.OutputHash,
			&d.Words, &d.Replaced, &d.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Abbreviations returns the resolutions recorded for a run ordered by word.
func (s *Store) Abbreviations(ctx context.Context, runID string) ([]abbrev.Resolution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT word, expansion, source FROM abbreviations WHERE run_id = ? ORDER BY word`, runID)
	if err != nil {
		return nil, fmt.Errorf("list abbreviations: %w", err)
	}
	defer rows.Close()

	var out []abbrev.Resolution
	for rows.Next() {
		var r abbrev.Resolution
		var src string
		if err := rows.Scan(&r.Word, &r.Expansion, &src); err != nil {
			return nil, fmt.Errorf("scan abbreviation: %w", err)
		}
		r.Source = abbrev.Source(src)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Normalizations returns the records stored for a run ordered by word.
func (s *Store) Normalizations(ctx context.Context, runID string) ([]morph.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT word, superlemma, lemma, superlemma_root, lemma_root,
		class, normalized FROM normalizations WHERE run_id = ? ORDER BY word`, runID)
	if err != nil {
		return nil, fmt.Errorf("list normalizations: %w", err)
	}
	defer rows.Close()

	var out []morph.Record
	for rows.Next() {
		var r morph.Record
		if err := rows.Scan(&r.Word, &r.Superlemma, &r.Lemma, &r.SuperlemmaRoot, &r.LemmaRoot,
			&r.ClassName, &r.Normalized); err != nil {
			return nil, fmt.Errorf("scan normalization: %w", err)
		}
		r.Class = morph.ParseClass(r.ClassName)
		out = append(out, r)
	}
	return out, rows.Err()
}
