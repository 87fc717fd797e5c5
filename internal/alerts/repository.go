package alerts

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
)

// Repository reads alert rules.
type Repository interface {
	ListRules(ctx context.Context) ([]Rule, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	db pgxscan.Querier
}

// NewRepository constructs a PGRepository.
func NewRepository(db pgxscan.Querier) *PGRepository {
	return &PGRepository{db: db}
}

// ListRules returns every rule ordered by indicator.
func (r *PGRepository) ListRules(ctx context.Context) ([]Rule, error) {
	var rules []Rule
	err := pgxscan.Select(ctx, r.db, &rules, `SELECT id, indicator, condition, threshold::float8 AS threshold, notify_in_app, notify_email
		FROM alert_rules ORDER BY indicator, id`)
	if err != nil {
		return nil, fmt.Errorf("alerts: list rules: %w", err)
	}
	return rules, nil
}
