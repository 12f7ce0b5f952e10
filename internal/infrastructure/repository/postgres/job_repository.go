package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/docparse-gateway/internal/core/domain"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS parse_jobs (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	remote_job_id TEXT NOT NULL DEFAULT '',
	pages INTEGER NOT NULL DEFAULT 0,
	markdown_path TEXT NOT NULL DEFAULT '',
	credits_used DOUBLE PRECISION NOT NULL DEFAULT 0,
	job_credits_usage DOUBLE PRECISION NOT NULL DEFAULT 0,
	auto_mode_pages INTEGER NOT NULL DEFAULT 0,
	cache_hit BOOLEAN NOT NULL DEFAULT FALSE,
	credits_max DOUBLE PRECISION NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_parse_jobs_status ON parse_jobs(status);
CREATE INDEX IF NOT EXISTS idx_parse_jobs_created_at ON parse_jobs(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *JobRepository) Create(ctx context.Context, job *domain.ParseJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO parse_jobs (
	id, filename, mime_type, storage_path, remote_job_id, pages, markdown_path,
	credits_used, job_credits_usage, auto_mode_pages, cache_hit, credits_max,
	status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
`,
		job.ID, job.Filename, job.MimeType, job.StoragePath, job.RemoteJobID, job.Pages, job.MarkdownPath,
		job.Usage.CreditsUsed, job.Usage.JobCreditsUsage, job.Usage.JobAutoModePages, job.Usage.JobIsCacheHit, job.Usage.CreditsMax,
		string(job.Status), job.Error, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert parse job: %w", err)
	}
	return nil
}

const jobColumns = `id, filename, mime_type, storage_path, remote_job_id, pages, markdown_path,
credits_used, job_credits_usage, auto_mode_pages, cache_hit, credits_max,
status, error_message, created_at, updated_at`

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.ParseJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM parse_jobs
WHERE id = $1
`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get parse job", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan parse job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]domain.ParseJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+jobColumns+`
FROM parse_jobs
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list parse jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.ParseJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan parse job row: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parse jobs: %w", err)
	}
	return jobs, nil
}

func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status domain.ParseJobStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE parse_jobs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update parse job status: %w", err)
	}
	return checkAffected(res, "update parse job status", id)
}

func (r *JobRepository) SaveResult(ctx context.Context, id string, remoteJobID, markdownPath string, pages int, usage domain.UsageMetadata) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE parse_jobs
SET remote_job_id = $2, markdown_path = $3, pages = $4,
	credits_used = $5, job_credits_usage = $6, auto_mode_pages = $7, cache_hit = $8, credits_max = $9,
	updated_at = $10
WHERE id = $1
`, id, remoteJobID, markdownPath, pages,
		usage.CreditsUsed, usage.JobCreditsUsage, usage.JobAutoModePages, usage.JobIsCacheHit, usage.CreditsMax,
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save parse result: %w", err)
	}
	return checkAffected(res, "save parse result", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.ParseJob, error) {
	var job domain.ParseJob
	var status string

	err := row.Scan(
		&job.ID, &job.Filename, &job.MimeType, &job.StoragePath, &job.RemoteJobID, &job.Pages, &job.MarkdownPath,
		&job.Usage.CreditsUsed, &job.Usage.JobCreditsUsage, &job.Usage.JobAutoModePages, &job.Usage.JobIsCacheHit, &job.Usage.CreditsMax,
		&status, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Usage.JobPages = job.Pages
	job.Status = domain.ParseJobStatus(status)
	return &job, nil
}

func checkAffected(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrJobNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
