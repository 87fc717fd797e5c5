package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQuery(category *int64, shops ...int64) Query {
	return Query{
		From:       time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC),
		CategoryID: category,
		ShopIDs:    shops,
	}
}

func TestItemRowsQueryFiltersAndOrders(t *testing.T) {
	category := int64(7)
	q := testQuery(&category, 2, 4)

	sql, args, err := itemRowsQuery(q, 20, 20).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE r.date BETWEEN $1 AND $2 AND i.category_id = $3 AND r.shop_id IN ($4,$5)")
	assert.Contains(t, sql, "GROUP BY i.id, i.sku, i.name, c.name, i.unit ORDER BY i.name, i.sku")
	assert.Contains(t, sql, "LIMIT 20 OFFSET 20")
	assert.Contains(t, sql, "COALESCE(SUM(r.shortage), 0)::bigint AS shortage")
	assert.Contains(t, sql, "i.unit AS unit")
	assert.Equal(t, []any{q.From, q.To, int64(7), int64(2), int64(4)}, args)
}

func TestItemRowsQueryWithoutOptionalFilters(t *testing.T) {
	sql, args, err := itemRowsQuery(testQuery(nil), 0, 0).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "category_id =")
	assert.NotContains(t, sql, "shop_id IN")
	assert.NotContains(t, sql, "LIMIT")
	assert.Len(t, args, 2)
}

func TestAggregateQueries(t *testing.T) {
	q := testQuery(nil, 1)

	sql, _, err := byCategoryQuery(q).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "JOIN inventory_categories c ON c.id = i.category_id")
	assert.Contains(t, sql, "COALESCE(SUM(r.quantity), 0)::bigint AS quantity")
	assert.Contains(t, sql, "GROUP BY c.id, c.name ORDER BY c.name, c.id")

	sql, args, err := deficitQuery(q).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "SELECT COUNT(*) AS total FROM (SELECT i.id FROM inventory_records r")
	assert.Contains(t, sql, "HAVING COALESCE(SUM(r.shortage), 0) > 0) AS items")
	assert.Len(t, args, 3)
}
