package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	domain "github.com/bryanwahyu/insight-relay/internal/domain/insights"
)

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, kickoff_id, product, company, status, error_message, result_json, artifact_url, polls, duration_ms, created_at`

// Save inserts or updates a run record
func (r *RunRepository) Save(ctx context.Context, run *domain.Run) error {
	const q = `
INSERT INTO crew_analysis_runs
  (` + runColumns + `)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  status=VALUES(status), error_message=VALUES(error_message), result_json=VALUES(result_json),
  artifact_url=VALUES(artifact_url), polls=VALUES(polls), duration_ms=VALUES(duration_ms);
`
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		run.ID,
		run.KickoffID,
		nullString(run.Product),
		nullString(run.Company),
		run.Status,
		nullIfEmpty(run.Error),
		resultJSON(run.Result),
		nullIfEmpty(run.ArtifactURL),
		run.Polls,
		run.DurationMS,
		createdAt.UTC(),
	)
	return err
}

// Get returns one run by id
func (r *RunRepository) Get(ctx context.Context, id domain.RunID) (*domain.Run, error) {
	const q = `SELECT ` + runColumns + ` FROM crew_analysis_runs WHERE id = ?;`
	run, err := scanRun(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	return run, err
}

// Paginate returns a page of runs ordered by created_at desc
func (r *RunRepository) Paginate(ctx context.Context, page, pageSize int) ([]*domain.Run, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT ` + runColumns + `
FROM crew_analysis_runs
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var (
		run                         domain.Run
		product, company            sql.NullString
		errMsg, result, artifactURL sql.NullString
		created                     time.Time
	)
	if err := row.Scan(&run.ID, &run.KickoffID, &product, &company, &run.Status, &errMsg, &result, &artifactURL, &run.Polls, &run.DurationMS, &created); err != nil {
		return nil, err
	}
	run.Product = stringPtr(product)
	run.Company = stringPtr(company)
	run.Error = errMsg.String
	if result.Valid {
		run.Result = json.RawMessage(result.String)
	}
	run.ArtifactURL = artifactURL.String
	run.CreatedAt = created
	return &run, nil
}
