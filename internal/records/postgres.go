package records

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresSource reads experts from a table with email and skills columns.
type PostgresSource struct {
	db    *sql.DB
	table string
}

func NewPostgresSource(db *sql.DB, table string) *PostgresSource {
	return &PostgresSource{db: db, table: table}
}

func (s *PostgresSource) Load(ctx context.Context) ([]Expert, error) {
	query := "SELECT email, skills FROM " + pq.QuoteIdentifier(s.table) + " ORDER BY email"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer rows.Close()

	experts := []Expert{}
	for rows.Next() {
		var (
			e      Expert
			skills sql.NullString
		)
		if err := rows.Scan(&e.Email, &skills); err != nil {
			return nil, err
		}
		e.Skills = skills.String
		experts = append(experts, e)
	}
	return experts, rows.Err()
}
