package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS crew_analysis_runs (
  id            VARCHAR(36)  PRIMARY KEY,
  kickoff_id    VARCHAR(255) NOT NULL,
  product       TEXT,
  company       TEXT,
  status        VARCHAR(16)  NOT NULL,
  error_message TEXT,
  result_json   JSONB,
  artifact_url  TEXT,
  polls         INTEGER      NOT NULL DEFAULT 0,
  duration_ms   BIGINT       NOT NULL DEFAULT 0,
  created_at    TIMESTAMPTZ  NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_crew_analysis_runs_created ON crew_analysis_runs (created_at);`

// EnsureSchema creates the runs table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
