package job

import (
	"context"
	"database/sql"
	"encoding/json"
)

type Repository interface {
	Save(ctx context.Context, job *Job) error
	// List returns jobs newest first, only those of method when it is set.
	List(ctx context.Context, method string) ([]Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	Delete(ctx context.Context, id string) error
	MarkRetried(ctx context.Context, id, errMsg string) error
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, job *Job) error {
	query := `INSERT INTO failed_jobs (method, arguments, error) VALUES ($1, $2, $3) RETURNING id, created_at, retries`
	return r.db.QueryRowContext(ctx, query, job.Method, string(job.Arguments), job.Error).Scan(&job.ID, &job.CreatedAt, &job.Retries)
}

func (r *PostgresRepo) List(ctx context.Context, method string) ([]Job, error) {
	query := `SELECT id, method, arguments, error, retries, created_at FROM failed_jobs WHERE ($1 = '' OR method = $1) ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, method)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var args []byte
		if err := rows.Scan(&j.ID, &j.Method, &args, &j.Error, &j.Retries, &j.CreatedAt); err != nil {
			return nil, err
		}
		j.Arguments = json.RawMessage(args)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Job, error) {
	j := &Job{}
	var args []byte
	query := `SELECT id, method, arguments, error, retries, created_at FROM failed_jobs WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&j.ID, &j.Method, &args, &j.Error, &j.Retries, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	j.Arguments = json.RawMessage(args)
	return j, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM failed_jobs WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// MarkRetried records a failed retry attempt.
func (r *PostgresRepo) MarkRetried(ctx context.Context, id, errMsg string) error {
	query := `UPDATE failed_jobs SET retries = retries + 1, error = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, errMsg)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM failed_jobs`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
