package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contacts-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. Satisfied by
// pgxmock in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL DEFAULT 'queued',
	sheet_path    TEXT NOT NULL,
	sheet_name    TEXT,
	total         INTEGER NOT NULL DEFAULT 0,
	processed     INTEGER NOT NULL DEFAULT 0,
	found         INTEGER NOT NULL DEFAULT 0,
	people_found  INTEGER NOT NULL DEFAULT 0,
	errors        INTEGER NOT NULL DEFAULT 0,
	rate          DOUBLE PRECISION NOT NULL DEFAULT 0,
	eta           TEXT,
	error_message TEXT,
	started_at    TIMESTAMPTZ,
	finished_at   TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS results (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id     TEXT NOT NULL REFERENCES jobs(id),
	company    JSONB NOT NULL,
	contacts   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
CREATE INDEX IF NOT EXISTS idx_results_job_id ON results(job_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job model.Job) (*model.Job, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.JobStatusQueued
	}
	job.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, status, sheet_path, sheet_name, total, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, string(job.Status), job.SheetPath, job.SheetName, job.Total, job.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}
	return &job, nil
}

const jobColumns = `id, status, sheet_path, sheet_name, total, processed, found, people_found,
	errors, rate, eta, error_message, started_at, finished_at, created_at`

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`,
		jobID,
	)
	j, err := scanPgJob(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) UpdateJob(ctx context.Context, jobID string, update JobUpdate) error {
	if update.Status != nil {
		current, err := s.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if current.Status != *update.Status && !current.Status.CanTransition(*update.Status) {
			return eris.Errorf("job %s: illegal status transition %s -> %s",
				jobID, current.Status, *update.Status)
		}
	}

	set, args := buildJobSet(update)
	if len(set) == 0 {
		return nil
	}
	for i := range set {
		set[i] = strings.Replace(set[i], "?", fmt.Sprintf("$%d", i+1), 1)
	}
	query := `UPDATE jobs SET ` + strings.Join(set, ", ") +
		fmt.Sprintf(` WHERE id = $%d`, len(set)+1)
	args = append(args, jobID)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) SaveResults(ctx context.Context, jobID string, results []model.CompanyResult) error {
	if len(results) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, r := range results {
		companyJSON, err := json.Marshal(r.Company)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal company")
		}
		contactsJSON, err := json.Marshal(r.Contacts)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal contacts")
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO results (id, job_id, company, contacts, created_at) VALUES ($1, $2, $3, $4, $5)`,
			uuid.New().String(), jobID, companyJSON, contactsJSON, now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert result for job %s", jobID)
		}
	}
	return nil
}

func (s *PostgresStore) GetResults(ctx context.Context, jobID string) ([]model.CompanyResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT company, contacts FROM results WHERE job_id = $1 ORDER BY created_at ASC, id ASC`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get results for job %s", jobID)
	}
	defer rows.Close()

	var results []model.CompanyResult
	for rows.Next() {
		var companyJSON, contactsJSON []byte
		if err := rows.Scan(&companyJSON, &contactsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		var r model.CompanyResult
		if err := json.Unmarshal(companyJSON, &r.Company); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal company")
		}
		if err := json.Unmarshal(contactsJSON, &r.Contacts); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal contacts")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: get results iterate")
}

func scanPgJob(row scannable) (*model.Job, error) {
	var j model.Job
	var sheetName, eta, errorMessage *string
	var startedAt, finishedAt *time.Time

	err := row.Scan(&j.ID, &j.Status, &j.SheetPath, &sheetName, &j.Total, &j.Processed,
		&j.Found, &j.PeopleFound, &j.Errors, &j.Rate, &eta, &errorMessage,
		&startedAt, &finishedAt, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("job not found")
	}
	if err != nil {
		return nil, err
	}

	if sheetName != nil {
		j.SheetName = *sheetName
	}
	if eta != nil {
		j.ETA = *eta
	}
	if errorMessage != nil {
		j.ErrorMessage = *errorMessage
	}
	j.StartedAt = startedAt
	j.FinishedAt = finishedAt
	return &j, nil
}
