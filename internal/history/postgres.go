// Package history persists analysis runs in PostgreSQL.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/ppiankov/originality/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS analysis_runs (
	id                TEXT PRIMARY KEY,
	repository        TEXT NOT NULL,
	url               TEXT NOT NULL,
	commit_hash       TEXT NOT NULL DEFAULT '',
	originality_score DOUBLE PRECISION NOT NULL,
	verdict           TEXT NOT NULL,
	report_url        TEXT NOT NULL DEFAULT '',
	result            JSONB NOT NULL,
	analyzed_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS analysis_runs_repository_idx ON analysis_runs (repository, analyzed_at DESC);`

// Run is one stored analysis
type Run struct {
	ID               string       `json:"id"`
	Repository       string       `json:"repository"`
	URL              string       `json:"url"`
	CommitHash       string       `json:"commit_hash,omitempty"`
	OriginalityScore float64      `json:"originality_score"`
	Verdict          string       `json:"verdict"`
	ReportURL        string       `json:"report_url,omitempty"`
	Result           model.Result `json:"result"`
	AnalyzedAt       time.Time    `json:"analyzed_at"`
}

// RunFromReport flattens a report into a stored run
func RunFromReport(report *model.Report) Run {
	return Run{
		ID:               report.ID,
		Repository:       report.Repository.FullName,
		URL:              report.Repository.URL,
		CommitHash:       report.Repository.CommitHash,
		OriginalityScore: report.Score.Originality,
		Verdict:          report.Score.Verdict,
		ReportURL:        report.Result.ReportURL,
		Result:           report.Result,
		AnalyzedAt:       report.AnalyzedAt,
	}
}

// PostgresStore handles analysis run persistence
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, checks it and ensures the schema
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the runs table if it does not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Save records a finished analysis. Saving the same run twice overwrites it.
func (s *PostgresStore) Save(ctx context.Context, report *model.Report) error {
	run := RunFromReport(report)
	result, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `INSERT INTO analysis_runs (id, repository, url, commit_hash, originality_score, verdict, report_url, result, analyzed_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
	          ON CONFLICT (id) DO UPDATE SET
	              originality_score = EXCLUDED.originality_score,
	              verdict = EXCLUDED.verdict,
	              report_url = EXCLUDED.report_url,
	              result = EXCLUDED.result`
	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.Repository, run.URL, run.CommitHash, run.OriginalityScore,
		run.Verdict, run.ReportURL, string(result), run.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// List returns recent runs, newest first. An empty repository lists all.
func (s *PostgresStore) List(ctx context.Context, repository string, limit int) ([]Run, error) {
	query := `SELECT id, repository, url, commit_hash, originality_score, verdict, report_url, result::text, analyzed_at
	          FROM analysis_runs`
	args := []interface{}{}
	argIdx := 1

	if repository != "" {
		query += fmt.Sprintf(" WHERE repository = $%d", argIdx)
		args = append(args, repository)
		argIdx++
	}

	query += " ORDER BY analyzed_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns one run by ID
func (s *PostgresStore) Get(ctx context.Context, id string) (*Run, error) {
	query := `SELECT id, repository, url, commit_hash, originality_score, verdict, report_url, result::text, analyzed_at
	          FROM analysis_runs WHERE id = $1`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return &run, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var result string
	if err := row.Scan(
		&run.ID, &run.Repository, &run.URL, &run.CommitHash, &run.OriginalityScore,
		&run.Verdict, &run.ReportURL, &result, &run.AnalyzedAt,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(result), &run.Result); err != nil {
		return Run{}, fmt.Errorf("decode run result: %w", err)
	}
	return run, nil
}
