package production

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repository defines the aggregate queries over kpi_records.
type Repository interface {
	LatestDate(ctx context.Context) (time.Time, bool, error)
	Summary(ctx context.Context, q Query) (Summary, error)
	ShopBreakdown(ctx context.Context, q Query) ([]ShopPoint, error)
	DailyTotals(ctx context.Context, q Query) ([]DatePoint, error)
	CountRecords(ctx context.Context, q Query) (int, error)
	ListRecords(ctx context.Context, q Query, limit, offset int) ([]Record, error)
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

func filtered(b squirrel.SelectBuilder, q Query) squirrel.SelectBuilder {
	b = b.Where(squirrel.Expr("k.date BETWEEN ? AND ?", q.From, q.To))
	if len(q.ShopIDs) > 0 {
		b = b.Where(squirrel.Eq{"k.shop_id": q.ShopIDs})
	}
	return b
}

// Aggregates are wrapped in COALESCE so an empty window yields zeros.
func summaryQuery(q Query) squirrel.SelectBuilder {
	return filtered(psql.Select(
		"COALESCE(SUM(k.output), 0)::bigint AS total_output",
		"COALESCE(SUM(k.inventory_level), 0)::bigint AS total_inventory",
		"COALESCE(SUM(k.cabinets_produced), 0)::bigint AS total_cabinets",
		"COALESCE(AVG(k.downtime_hours), 0)::float8 AS avg_downtime",
		"COALESCE(AVG(k.defect_rate), 0)::float8 AS avg_defect_rate",
		"COALESCE(AVG(k.equipment_load), 0)::float8 AS avg_equipment_load",
		"COALESCE(AVG(k.plan_completion), 0)::float8 AS avg_plan_completion",
		"COALESCE(AVG(k.quality_index), 0)::float8 AS avg_quality_index",
		"COUNT(*) AS records",
	).From("kpi_records k"), q)
}

func shopBreakdownQuery(q Query) squirrel.SelectBuilder {
	return filtered(psql.Select(
		"s.id AS shop_id",
		"s.name AS shop_name",
		"COALESCE(SUM(k.downtime_hours), 0)::float8 AS downtime_hours",
		"COALESCE(AVG(k.plan_completion), 0)::float8 AS avg_plan",
	).From("kpi_records k").Join("shops s ON s.id = k.shop_id"), q).
		GroupBy("s.id", "s.name").
		OrderBy("s.name", "s.id")
}

func dailyTotalsQuery(q Query) squirrel.SelectBuilder {
	return filtered(psql.Select(
		"k.date AS date",
		"COALESCE(SUM(k.output), 0)::bigint AS output",
		"COALESCE(SUM(k.inventory_level), 0)::bigint AS inventory",
	).From("kpi_records k"), q).
		GroupBy("k.date").
		OrderBy("k.date")
}

func countQuery(q Query) squirrel.SelectBuilder {
	return filtered(psql.Select("COUNT(*) AS total").From("kpi_records k"), q)
}

func listRecordsQuery(q Query, limit, offset int) squirrel.SelectBuilder {
	b := filtered(psql.Select(
		"k.id", "k.shop_id", "s.name AS shop_name", "k.date", "k.output",
		"k.downtime_hours", "k.defect_rate", "k.equipment_load", "k.inventory_level",
		"k.dse_volume", "k.cabinets_produced", "k.plan_completion", "k.quality_index",
		"k.productivity_index", "k.energy_consumption", "k.material_utilization",
	).From("kpi_records k").Join("shops s ON s.id = k.shop_id"), q).
		OrderBy("k.date DESC", "s.name ASC", "k.id ASC")
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
	if err := pgxscan.Get(ctx, r.db, &row, `SELECT MAX(date) AS latest FROM kpi_records`); err != nil {
		return time.Time{}, false, fmt.Errorf("production: latest date: %w", err)
	}
	if row.Latest == nil {
		return time.Time{}, false, nil
	}
	return *row.Latest, true, nil
}

// Summary aggregates the whole filtered record set.
func (r *PGRepository) Summary(ctx context.Context, q Query) (Summary, error) {
	sql, args, err := summaryQuery(q).ToSql()
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	if err := pgxscan.Get(ctx, r.db, &s, sql, args...); err != nil {
		return Summary{}, fmt.Errorf("production: summary: %w", err)
	}
	return s, nil
}

// ShopBreakdown groups the record set by shop, ordered by shop name.
func (r *PGRepository) ShopBreakdown(ctx context.Context, q Query) ([]ShopPoint, error) {
	sql, args, err := shopBreakdownQuery(q).ToSql()
	if err != nil {
		return nil, err
	}
	var points []ShopPoint
	if err := pgxscan.Select(ctx, r.db, &points, sql, args...); err != nil {
		return nil, fmt.Errorf("production: shop breakdown: %w", err)
	}
	return points, nil
}

// DailyTotals groups the record set by date in ascending order.
func (r *PGRepository) DailyTotals(ctx context.Context, q Query) ([]DatePoint, error) {
	sql, args, err := dailyTotalsQuery(q).ToSql()
	if err != nil {
		return nil, err
	}
	var points []DatePoint
	if err := pgxscan.Select(ctx, r.db, &points, sql, args...); err != nil {
		return nil, fmt.Errorf("production: daily totals: %w", err)
	}
	return points, nil
}

// CountRecords returns the size of the filtered record set.
func (r *PGRepository) CountRecords(ctx context.Context, q Query) (int, error) {
	sql, args, err := countQuery(q).ToSql()
	if err != nil {
		return 0, err
	}
	var row struct {
		Total int `db:"total"`
	}
	if err := pgxscan.Get(ctx, r.db, &row, sql, args...); err != nil {
		return 0, fmt.Errorf("production: count records: %w", err)
	}
	return row.Total, nil
}

// ListRecords returns detail rows newest first, then by shop name. A
// non-positive limit returns every row.
func (r *PGRepository) ListRecords(ctx context.Context, q Query, limit, offset int) ([]Record, error) {
	sql, args, err := listRecordsQuery(q, limit, offset).ToSql()
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := pgxscan.Select(ctx, r.db, &records, sql, args...); err != nil {
		return nil, fmt.Errorf("production: list records: %w", err)
	}
	return records, nil
}
