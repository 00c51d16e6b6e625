package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/insight-relay/internal/domain/insights"
)

func strPtr(s string) *string { return &s }

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestRunRepository_Save(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRunRepository(db)

	run := &domain.Run{
		ID:         "run-1",
		KickoffID:  "job-123",
		Product:    strPtr("Widget"),
		Status:     domain.RunSucceeded,
		Result:     json.RawMessage(`{"summary":"ok"}`),
		Polls:      2,
		DurationMS: 2000,
		CreatedAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crew_analysis_runs")).
		WithArgs("run-1", "job-123", "Widget", nil, "SUCCESS", nil, `{"summary":"ok"}`, nil, 2, int64(2000), run.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepository_SaveWrapsInvalidResult(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crew_analysis_runs")).
		WithArgs("run-2", "job-2", nil, nil, "FAILED", "boom", `{"raw":"not json"}`, nil, 1, int64(0), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), &domain.Run{
		ID:        "run-2",
		KickoffID: "job-2",
		Status:    domain.RunFailed,
		Error:     "boom",
		Result:    json.RawMessage(`not json`),
		Polls:     1,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepository_Get(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		db, mock := newMock(t)
		rows := sqlmock.NewRows([]string{"id", "kickoff_id", "product", "company", "status", "error_message", "result_json", "artifact_url", "polls", "duration_ms", "created_at"}).
			AddRow("run-1", "job-123", "Widget", nil, "SUCCESS", nil, `{"summary":"ok"}`, "http://minio/runs/run-1.json", 2, 2000, created)
		mock.ExpectQuery(regexp.QuoteMeta("FROM crew_analysis_runs WHERE id = ?")).
			WithArgs("run-1").
			WillReturnRows(rows)

		run, err := NewRunRepository(db).Get(context.Background(), "run-1")
		require.NoError(t, err)
		assert.Equal(t, domain.RunID("run-1"), run.ID)
		assert.Equal(t, "Widget", *run.Product)
		assert.Nil(t, run.Company)
		assert.Equal(t, domain.RunSucceeded, run.Status)
		assert.JSONEq(t, `{"summary":"ok"}`, string(run.Result))
		assert.Equal(t, "http://minio/runs/run-1.json", run.ArtifactURL)
		assert.Equal(t, 2, run.Polls)
		assert.Equal(t, created, run.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM crew_analysis_runs WHERE id = ?")).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := NewRunRepository(db).Get(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})
}

func TestRunRepository_Paginate(t *testing.T) {
	db, mock := newMock(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "kickoff_id", "product", "company", "status", "error_message", "result_json", "artifact_url", "polls", "duration_ms", "created_at"}).
		AddRow("run-2", "job-2", "B", "Beta", "FAILED", "upstream status: status 500", nil, nil, 1, 10, created).
		AddRow("run-1", "job-1", "A", "Alpha", "SUCCESS", nil, `"ok"`, nil, 3, 6000, created.Add(-time.Hour))

	// page 0 and size 0 fall back to page 1, size 20
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC")).
		WithArgs(20, 0).
		WillReturnRows(rows)

	runs, err := NewRunRepository(db).Paginate(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, domain.RunFailed, runs[0].Status)
	assert.Equal(t, "upstream status: status 500", runs[0].Error)
	assert.Nil(t, runs[0].Result)
	assert.Equal(t, `"ok"`, string(runs[1].Result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS crew_analysis_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureSchema(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithParseTime(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
	}{
		{"missing", "relay:pw@tcp(db:3306)/insights"},
		{"disabled", "relay:pw@tcp(db:3306)/insights?parseTime=false&charset=utf8mb4"},
		{"already set", "relay:pw@tcp(db:3306)/insights?parseTime=true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := withParseTime(tt.dsn)
			require.NoError(t, err)

			cfg, err := mysqldrv.ParseDSN(out)
			require.NoError(t, err)
			assert.True(t, cfg.ParseTime)
			assert.Equal(t, "insights", cfg.DBName)
			assert.Equal(t, "db:3306", cfg.Addr)
		})
	}

	_, err := withParseTime("relay:pw@tcp(db:3306)insights")
	assert.ErrorContains(t, err, "parse mysql dsn")
}
