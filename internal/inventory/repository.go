package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repository defines the aggregate queries over inventory_records.
type Repository interface {
	LatestDate(ctx context.Context) (time.Time, bool, error)
	Totals(ctx context.Context, q Query) (Totals, error)
	ByCategory(ctx context.Context, q Query) ([]CategoryTotals, error)
	Trend(ctx context.Context, q Query) ([]TrendPoint, error)
	CountItems(ctx context.Context, q Query) (int, error)
	DeficitPositions(ctx context.Context, q Query) (int, error)
	ItemRows(ctx context.Context, q Query, limit, offset int) ([]ItemTotals, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	db pgxscan.Querier
}

// NewRepository constructs a PGRepository.
func NewRepository(db pgxscan.Querier) *PGRepository {
	return &PGRepository{db: db}
}

var _ Repository = (*PGRepository)(nil)

var sumColumns = []string{
	"COALESCE(SUM(r.quantity), 0)::bigint AS quantity",
	"COALESCE(SUM(r.reserved), 0)::bigint AS reserved",
	"COALESCE(SUM(r.demand), 0)::bigint AS demand",
	"COALESCE(SUM(r.shortage), 0)::bigint AS shortage",
}

func records(columns ...string) squirrel.SelectBuilder {
	return psql.Select(columns...).
		From("inventory_records r").
		Join("inventory_items i ON i.id = r.item_id").
		Join("inventory_categories c ON c.id = i.category_id")
}

func filtered(b squirrel.SelectBuilder, q Query) squirrel.SelectBuilder {
	b = b.Where(squirrel.Expr("r.date BETWEEN ? AND ?", q.From, q.To))
	if q.CategoryID != nil {
		b = b.Where(squirrel.Eq{"i.category_id": *q.CategoryID})
	}
	if len(q.ShopIDs) > 0 {
		b = b.Where(squirrel.Eq{"r.shop_id": q.ShopIDs})
	}
	return b
}

func itemGroup(q Query, columns ...string) squirrel.SelectBuilder {
	return filtered(records(columns...), q).GroupBy("i.id", "i.sku", "i.name", "c.name")
}

func byCategoryQuery(q Query) squirrel.SelectBuilder {
	columns := append([]string{"c.id AS category_id", "c.name AS name"}, sumColumns...)
	return filtered(records(columns...), q).
		GroupBy("c.id", "c.name").
		OrderBy("c.name", "c.id")
}

func deficitQuery(q Query) squirrel.SelectBuilder {
	inner := itemGroup(q, "i.id").Having("COALESCE(SUM(r.shortage), 0) > 0")
	return psql.Select("COUNT(*) AS total").FromSelect(inner, "items")
}

func itemRowsQuery(q Query, limit, offset int) squirrel.SelectBuilder {
	columns := append([]string{
		"i.sku AS sku",
		"i.name AS name",
		"c.name AS category",
		"i.unit AS unit",
		"COALESCE(AVG(r.min_threshold), 0)::float8 AS min_threshold",
	}, sumColumns...)
	b := itemGroup(q, columns...).GroupBy("i.unit").OrderBy("i.name", "i.sku")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	if offset > 0 {
		b = b.Offset(uint64(offset))
	}
	return b
}

// LatestDate returns the most recent record date, if any.
func (r *PGRepository) LatestDate(ctx context.Context) (time.Time, bool, error) {
	var row struct {
		Latest *time.Time `db:"latest"`
	}
	if err := pgxscan.Get(ctx, r.db, &row, `SELECT MAX(date) AS latest FROM inventory_records`); err != nil {
		return time.Time{}, false, fmt.Errorf("inventory: latest date: %w", err)
	}
	if row.Latest == nil {
		return time.Time{}, false, nil
	}
	return *row.Latest, true, nil
}

// Totals sums the whole filtered record set.
func (r *PGRepository) Totals(ctx context.Context, q Query) (Totals, error) {
	sql, args, err := filtered(records(sumColumns...), q).ToSql()
	if err != nil {
		return Totals{}, err
	}
	var t Totals
	if err := pgxscan.Get(ctx, r.db, &t, sql, args...); err != nil {
		return Totals{}, fmt.Errorf("inventory: totals: %w", err)
	}
	return t, nil
}

// ByCategory sums per category ordered by category name.
func (r *PGRepository) ByCategory(ctx context.Context, q Query) ([]CategoryTotals, error) {
	sql, args, err := byCategoryQuery(q).ToSql()
	if err != nil {
		return nil, err
	}
	var rows []CategoryTotals
	if err := pgxscan.Select(ctx, r.db, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("inventory: by category: %w", err)
	}
	return rows, nil
}

// Trend sums quantity and shortage per day in ascending date order.
func (r *PGRepository) Trend(ctx context.Context, q Query) ([]TrendPoint, error) {
	sql, args, err := filtered(records(
		"r.date AS date",
		"COALESCE(SUM(r.quantity), 0)::bigint AS quantity",
		"COALESCE(SUM(r.shortage), 0)::bigint AS shortage",
	), q).GroupBy("r.date").OrderBy("r.date").ToSql()
	if err != nil {
		return nil, err
	}
	var points []TrendPoint
	if err := pgxscan.Select(ctx, r.db, &points, sql, args...); err != nil {
		return nil, fmt.Errorf("inventory: trend: %w", err)
	}
	return points, nil
}

// CountItems returns the number of item rows in the filtered set.
func (r *PGRepository) CountItems(ctx context.Context, q Query) (int, error) {
	inner := itemGroup(q, "i.id")
	sql, args, err := psql.Select("COUNT(*) AS total").FromSelect(inner, "items").ToSql()
	if err != nil {
		return 0, err
	}
	return r.count(ctx, "count items", sql, args)
}

// DeficitPositions counts item rows whose summed shortage is positive.
func (r *PGRepository) DeficitPositions(ctx context.Context, q Query) (int, error) {
	sql, args, err := deficitQuery(q).ToSql()
	if err != nil {
		return 0, err
	}
	return r.count(ctx, "deficit positions", sql, args)
}

func (r *PGRepository) count(ctx context.Context, op, sql string, args []any) (int, error) {
	var row struct {
		Total int `db:"total"`
	}
	if err := pgxscan.Get(ctx, r.db, &row, sql, args...); err != nil {
		return 0, fmt.Errorf("inventory: %s: %w", op, err)
	}
	return row.Total, nil
}

// ItemRows returns per-item sums ordered by item name. A non-positive limit
// returns every row.
func (r *PGRepository) ItemRows(ctx context.Context, q Query, limit, offset int) ([]ItemTotals, error) {
	sql, args, err := itemRowsQuery(q, limit, offset).ToSql()
	if err != nil {
		return nil, err
	}
	var rows []ItemTotals
	if err := pgxscan.Select(ctx, r.db, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("inventory: item rows: %w", err)
	}
	return rows, nil
}
