package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	dsn, err := withParseTime(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// withParseTime forces parseTime=true so DATETIME columns scan into time.Time,
// whatever the operator put in DATABASE_DSN.
func withParseTime(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

const schema = `
CREATE TABLE IF NOT EXISTS crew_analysis_runs (
  id            VARCHAR(36)  NOT NULL PRIMARY KEY,
  kickoff_id    VARCHAR(255) NOT NULL,
  product       TEXT         NULL,
  company       TEXT         NULL,
  status        VARCHAR(16)  NOT NULL,
  error_message TEXT         NULL,
  result_json   JSON         NULL,
  artifact_url  TEXT         NULL,
  polls         INT          NOT NULL DEFAULT 0,
  duration_ms   BIGINT       NOT NULL DEFAULT 0,
  created_at    DATETIME(3)  NOT NULL,
  INDEX idx_crew_analysis_runs_created (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`

// EnsureSchema creates the runs table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
