package reporting

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedAnchor struct {
	date time.Time
	ok   bool
	err  error
}

func (f fixedAnchor) LatestDate(context.Context) (time.Time, bool, error) {
	return f.date, f.ok, f.err
}

func date(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParsePeriodFallsBackToMonth(t *testing.T) {
	assert.Equal(t, PeriodWeek, ParsePeriod("week"))
	assert.Equal(t, PeriodMonth, ParsePeriod("decade"))
	assert.Equal(t, PeriodMonth, ParsePeriod(""))
	assert.Equal(t, 0, PeriodDay.Lookback())
	assert.Equal(t, 365, PeriodYear.Lookback())
}

func TestResolveWindowAnchorsToLatestRecord(t *testing.T) {
	src := fixedAnchor{date: date("2025-04-30"), ok: true}

	w, err := ResolveWindow(context.Background(), PeriodWeek, src, nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-04-23", w.FromISO())
	assert.Equal(t, "2025-04-30", w.ToISO())

	w, err = ResolveWindow(context.Background(), ParsePeriod("decade"), src, nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-31", w.FromISO())

	w, err = ResolveWindow(context.Background(), PeriodDay, src, nil)
	require.NoError(t, err)
	assert.Equal(t, w.From, w.To)
}

func TestResolveWindowFallsBackToClock(t *testing.T) {
	now := func() time.Time { return time.Date(2025, 1, 10, 15, 4, 5, 0, time.UTC) }

	w, err := ResolveWindow(context.Background(), PeriodWeek, fixedAnchor{}, now)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-03", w.FromISO())
	assert.Equal(t, "2025-01-10", w.ToISO())
}

func TestResolveWindowPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := ResolveWindow(context.Background(), PeriodWeek, fixedAnchor{err: boom}, nil)
	require.ErrorIs(t, err, boom)
}

func TestParseFiltersNormalises(t *testing.T) {
	q := url.Values{
		"period":    {"quarter"},
		"shop":      {"3", "1", "3", "x", "-2", " 4"},
		"category":  {"0"},
		"indicator": {"plan", "bogus", "output"},
		"page":      {"2"},
	}
	f := ParseFilters(q)

	assert.Equal(t, PeriodQuarter, f.Period)
	assert.Equal(t, []int64{1, 3}, f.ShopIDs)
	assert.Nil(t, f.CategoryID)
	assert.Equal(t, []Indicator{IndicatorOutput, IndicatorPlan}, f.Indicators)
	assert.Equal(t, 2, f.Page)
	assert.True(t, f.HasShop(3))
	assert.False(t, f.HasShop(2))
}

func TestParseFiltersDefaults(t *testing.T) {
	f := ParseFilters(url.Values{"category": {"7"}, "page": {"abc"}})

	assert.Equal(t, PeriodMonth, f.Period)
	assert.Empty(t, f.ShopIDs)
	require.NotNil(t, f.CategoryID)
	assert.Equal(t, int64(7), *f.CategoryID)
	assert.Equal(t, DefaultIndicators(), f.Indicators)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, "month:s=:c=7", f.CacheKey())
}

func TestFiltersQueryRoundTrip(t *testing.T) {
	f := ParseFilters(url.Values{"period": {"week"}, "shop": {"2", "1"}})
	parsed, err := url.ParseQuery(f.Query(3))
	require.NoError(t, err)

	again := ParseFilters(parsed)
	assert.Equal(t, f.ShopIDs, again.ShopIDs)
	assert.Equal(t, 3, again.Page)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 2.35, Round(2.345, 2))
	assert.Equal(t, 12.3, Round(12.34, 1))
	assert.Equal(t, int64(3), RoundInt(2.5))
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, 3}))
}
