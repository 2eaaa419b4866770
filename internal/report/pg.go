package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DBPool abstracts pgxpool.Pool so the sink can be tested against a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// PGSink persists finished runs into the runs and scenarios tables.
type PGSink struct {
	pool DBPool
	log  *zap.Logger
}

// NewPGSink connects to databaseURL, verifies the connection and ensures the
// schema exists.
func NewPGSink(ctx context.Context, databaseURL string, logger *zap.Logger) (*PGSink, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to results database: %w", err)
	}
	sink, err := NewPGSinkWithPool(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return sink, nil
}

// NewPGSinkWithPool builds the sink on an existing pool. Used by tests.
func NewPGSinkWithPool(ctx context.Context, pool DBPool, logger *zap.Logger) (*PGSink, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping results database: %w", err)
	}
	s := &PGSink{pool: pool, log: logger.Named("pgsink")}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PGSink) ensureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    git_commit  TEXT,
    git_branch  TEXT,
    git_dirty   BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS scenarios (
    id          TEXT PRIMARY KEY,
    run_id      TEXT NOT NULL REFERENCES runs(id),
    name        TEXT NOT NULL,
    feature     TEXT,
    status      TEXT NOT NULL,
    error       TEXT,
    started_at  TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL,
    trace_path  TEXT,
    screenshot_path TEXT,
    triage_note TEXT
)`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure results schema: %w", err)
	}
	return nil
}

// Persist writes the run and its scenarios in one transaction.
func (s *PGSink) Persist(ctx context.Context, run *Run) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin results transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback results transaction", zap.Error(rollbackErr))
		}
	}()

	var commit, branch any
	dirty := false
	if run.Git != nil {
		commit, branch, dirty = run.Git.Commit, run.Git.Branch, run.Git.Dirty
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO runs (id, started_at, finished_at, git_commit, git_branch, git_dirty)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), commit, branch, dirty)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	rows := make([][]any, len(run.Scenarios))
	for i, sc := range run.Scenarios {
		rows[i] = []any{
			sc.ID, run.ID, sc.Name, sc.Feature, string(sc.Status), sc.Error,
			sc.StartedAt.UTC(), sc.Duration.Milliseconds(),
			sc.TracePath, sc.ScreenshotPath, sc.TriageNote,
		}
	}
	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"scenarios"},
		[]string{"id", "run_id", "name", "feature", "status", "error",
			"started_at", "duration_ms", "trace_path", "screenshot_path", "triage_note"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy scenarios: %w", err)
	}
	if int(copied) != len(run.Scenarios) {
		return fmt.Errorf("mismatch in copied scenario count: expected %d, got %d", len(run.Scenarios), copied)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit results transaction: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PGSink) Close() {
	s.pool.Close()
}
