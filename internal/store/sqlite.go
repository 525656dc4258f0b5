package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contacts-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	rate          REAL NOT NULL DEFAULT 0,
	eta           TEXT,
	error_message TEXT,
	started_at    DATETIME,
	finished_at   DATETIME,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS results (
	id         TEXT PRIMARY KEY,
	job_id     TEXT NOT NULL REFERENCES jobs(id),
	company    TEXT NOT NULL,
	contacts   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
CREATE INDEX IF NOT EXISTS idx_results_job_id ON results(job_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job model.Job) (*model.Job, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.JobStatusQueued
	}
	job.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, sheet_path, sheet_name, total, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Status), job.SheetPath, job.SheetName, job.Total, job.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}
	return &job, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, sheet_path, sheet_name, total, processed, found, people_found,
		        errors, rate, eta, error_message, started_at, finished_at, created_at
		 FROM jobs WHERE id = ?`,
		jobID,
	)
	return scanJob(row)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, status, sheet_path, sheet_name, total, processed, found, people_found,
	                 errors, rate, eta, error_message, started_at, finished_at, created_at
	          FROM jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, jobID string, update JobUpdate) error {
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
	query := `UPDATE jobs SET ` + set[0]
	for _, clause := range set[1:] {
		query += `, ` + clause
	}
	query += ` WHERE id = ?`
	args = append(args, jobID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) SaveResults(ctx context.Context, jobID string, results []model.CompanyResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save results")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, r := range results {
		companyJSON, err := json.Marshal(r.Company)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal company")
		}
		contactsJSON, err := json.Marshal(r.Contacts)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal contacts")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO results (id, job_id, company, contacts, created_at) VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), jobID, string(companyJSON), string(contactsJSON), now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert result for job %s", jobID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save results")
}

func (s *SQLiteStore) GetResults(ctx context.Context, jobID string) ([]model.CompanyResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT company, contacts FROM results WHERE job_id = ? ORDER BY created_at ASC, id ASC`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get results for job %s", jobID)
	}
	defer rows.Close()

	var results []model.CompanyResult
	for rows.Next() {
		var companyJSON, contactsJSON string
		if err := rows.Scan(&companyJSON, &contactsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		var r model.CompanyResult
		if err := json.Unmarshal([]byte(companyJSON), &r.Company); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal company")
		}
		if err := json.Unmarshal([]byte(contactsJSON), &r.Contacts); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal contacts")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: get results iterate")
}

// helpers

// buildJobSet turns a JobUpdate into SET clauses for the ? placeholder
// dialect. Shared with the Postgres store, which renumbers them.
func buildJobSet(update JobUpdate) ([]string, []any) {
	var set []string
	var args []any
	add := func(clause string, val any) {
		set = append(set, clause)
		args = append(args, val)
	}
	if update.Status != nil {
		add("status = ?", string(*update.Status))
	}
	if update.Total != nil {
		add("total = ?", *update.Total)
	}
	if update.Processed != nil {
		add("processed = ?", *update.Processed)
	}
	if update.Found != nil {
		add("found = ?", *update.Found)
	}
	if update.PeopleFound != nil {
		add("people_found = ?", *update.PeopleFound)
	}
	if update.Errors != nil {
		add("errors = ?", *update.Errors)
	}
	if update.Rate != nil {
		add("rate = ?", *update.Rate)
	}
	if update.ETA != nil {
		add("eta = ?", *update.ETA)
	}
	if update.ErrorMessage != nil {
		add("error_message = ?", *update.ErrorMessage)
	}
	if update.StartedAt != nil {
		add("started_at = ?", update.StartedAt.UTC())
	}
	if update.FinishedAt != nil {
		add("finished_at = ?", update.FinishedAt.UTC())
	}
	return set, args
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.Job, error) {
	var j model.Job
	var sheetName, eta, errorMessage sql.NullString
	var startedAt, finishedAt sql.NullTime

	err := row.Scan(&j.ID, &j.Status, &j.SheetPath, &sheetName, &j.Total, &j.Processed,
		&j.Found, &j.PeopleFound, &j.Errors, &j.Rate, &eta, &errorMessage,
		&startedAt, &finishedAt, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("job not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}

	j.SheetName = sheetName.String
	j.ETA = eta.String
	j.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		j.FinishedAt = &t
	}
	return &j, nil
}
