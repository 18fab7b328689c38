package settings

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Get(ctx context.Context) (*Settings, error) {
	s := &Settings{}
	query := `SELECT neighbors, max_distance, max_experts FROM recommend_settings WHERE id = 1`
	err := r.db.QueryRowContext(ctx, query).Scan(&s.Neighbors, &s.MaxDistance, &s.MaxExperts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepo) Update(ctx context.Context, s *Settings) error {
	query := `
		INSERT INTO recommend_settings (id, neighbors, max_distance, max_experts, updated_at)
		VALUES (1, $1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET neighbors = EXCLUDED.neighbors, max_distance = EXCLUDED.max_distance,
			max_experts = EXCLUDED.max_experts, updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, s.Neighbors, s.MaxDistance, s.MaxExperts)
	return err
}
