package report

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var scenarioColumns = []string{"id", "run_id", "name", "feature", "status", "error",
	"started_at", "duration_ms", "trace_path", "screenshot_path", "triage_note"}

// anyRunArgs matches the six arguments of the runs insert without
// constraining their values; pgxmock requires the argument count to match.
func anyRunArgs() []any {
	args := make([]any, 6)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMockSink(t *testing.T) (*PGSink, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectPing()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	sink, err := NewPGSinkWithPool(context.Background(), mock, zap.NewNop())
	require.NoError(t, err)
	return sink, mock
}

func TestPGSink(t *testing.T) {
	t.Run("should insert the run and copy its scenarios in one transaction", func(t *testing.T) {
		sink, mock := newMockSink(t)
		run := sampleRun()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO runs").
			WithArgs(run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), nil, nil, false).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCopyFrom(pgx.Identifier{"scenarios"}, scenarioColumns).
			WillReturnResult(int64(len(run.Scenarios)))
		mock.ExpectCommit()
		mock.ExpectRollback()

		require.NoError(t, sink.Persist(context.Background(), run))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should record git metadata when present", func(t *testing.T) {
		sink, mock := newMockSink(t)
		run := sampleRun()
		run.Git = &Git{Commit: "abc123", Branch: "main", Dirty: true}

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO runs").
			WithArgs(run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), "abc123", "main", true).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCopyFrom(pgx.Identifier{"scenarios"}, scenarioColumns).
			WillReturnResult(int64(len(run.Scenarios)))
		mock.ExpectCommit()
		mock.ExpectRollback()

		require.NoError(t, sink.Persist(context.Background(), run))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should roll back when the run insert fails", func(t *testing.T) {
		sink, mock := newMockSink(t)
		run := sampleRun()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO runs").
			WithArgs(anyRunArgs()...).
			WillReturnError(errors.New("duplicate key"))
		mock.ExpectRollback()

		err := sink.Persist(context.Background(), run)
		require.ErrorContains(t, err, "insert run")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should fail on a partial scenario copy", func(t *testing.T) {
		sink, mock := newMockSink(t)
		run := sampleRun()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO runs").
			WithArgs(anyRunArgs()...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCopyFrom(pgx.Identifier{"scenarios"}, scenarioColumns).
			WillReturnResult(int64(len(run.Scenarios) - 1))
		mock.ExpectRollback()

		err := sink.Persist(context.Background(), run)
		require.ErrorContains(t, err, "mismatch in copied scenario count")
	})

	t.Run("should refuse a pool that does not ping", func(t *testing.T) {
		mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		_, err = NewPGSinkWithPool(context.Background(), mock, zap.NewNop())
		require.ErrorContains(t, err, "ping results database")
	})
}
