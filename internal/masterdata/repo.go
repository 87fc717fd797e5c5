package masterdata

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
)

// Repository reads reference data.
type Repository struct {
	db pgxscan.Querier
}

// NewRepository constructs a Repository on a pool or transaction.
func NewRepository(db pgxscan.Querier) *Repository {
	return &Repository{db: db}
}

// ListShops returns all shops ordered by name.
func (r *Repository) ListShops(ctx context.Context) ([]Shop, error) {
	var shops []Shop
	if err := pgxscan.Select(ctx, r.db, &shops, `SELECT id, name FROM shops ORDER BY name, id`); err != nil {
		return nil, fmt.Errorf("masterdata: list shops: %w", err)
	}
	return shops, nil
}

// ListCategories returns all inventory categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := pgxscan.Select(ctx, r.db, &categories,
		`SELECT id, name, COALESCE(description, '') AS description FROM inventory_categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("masterdata: list categories: %w", err)
	}
	return categories, nil
}
