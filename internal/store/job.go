package store

import (
	"database/sql"
	"errors"
	"time"
)

// JobStatus represents the lifecycle state of an analysis job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job represents one uploaded video and its analysis outcome.
type Job struct {
	ID        string
	Status    JobStatus
	Filename  string
	Athlete   string // JSON
	Result    string // JSON, empty until done
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobRepository provides CRUD operations for analysis jobs.
type JobRepository struct {
	db *sql.DB
}

// Jobs returns the job repository for this store.
func (s *Store) Jobs() *JobRepository {
	return &JobRepository{db: s.db}
}

// Create inserts a new job in the queued state.
func (r *JobRepository) Create(j *Job) error {
	now := time.Now()
	j.Status = JobQueued
	j.CreatedAt = now
	j.UpdatedAt = now
	if j.Athlete == "" {
		j.Athlete = "{}"
	}

	_, err := r.db.Exec(
		`INSERT INTO analysis_jobs (id, status, filename, athlete, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		j.ID, string(j.Status), j.Filename, j.Athlete, j.CreatedAt, j.UpdatedAt,
	)
	return err
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(id string) (*Job, error) {
	j := &Job{}
	var status string
	var result, jobErr sql.NullString

	err := r.db.QueryRow(
		`SELECT id, status, filename, athlete, result, error, created_at, updated_at
		 FROM analysis_jobs WHERE id = ?`,
		id,
	).Scan(&j.ID, &status, &j.Filename, &j.Athlete, &result, &jobErr, &j.CreatedAt, &j.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	j.Status = JobStatus(status)
	j.Result = result.String
	j.Error = jobErr.String
	return j, nil
}

// SetRunning marks the job as picked up by a worker.
func (r *JobRepository) SetRunning(id string) error {
	return r.setStatus(id, JobRunning, "", "")
}

// SetDone stores the result JSON and marks the job done.
func (r *JobRepository) SetDone(id, resultJSON string) error {
	return r.setStatus(id, JobDone, resultJSON, "")
}

// SetFailed stores the failure message and marks the job failed.
func (r *JobRepository) SetFailed(id, message string) error {
	return r.setStatus(id, JobFailed, "", message)
}

func (r *JobRepository) setStatus(id string, status JobStatus, resultJSON, message string) error {
	res, err := r.db.Exec(
		`UPDATE analysis_jobs
		 SET status = ?, result = NULLIF(?, ''), error = NULLIF(?, ''), updated_at = ?
		 WHERE id = ?`,
		string(status), resultJSON, message, time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the most recent jobs, newest first.
func (r *JobRepository) List(limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(
		`SELECT id, status, filename, athlete, result, error, created_at, updated_at
		 FROM analysis_jobs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j := &Job{}
		var status string
		var result, jobErr sql.NullString
		if err := rows.Scan(&j.ID, &status, &j.Filename, &j.Athlete, &result, &jobErr, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		j.Status = JobStatus(status)
		j.Result = result.String
		j.Error = jobErr.String
		out = append(out, j)
	}

	return out, rows.Err()
}
