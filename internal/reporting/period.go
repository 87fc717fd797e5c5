// Package reporting resolves request filters and the date window shared by
// the production and inventory reports.
package reporting

import (
	"context"
	"fmt"
	"time"
)

// Period is a named lookback window anchored to the latest data date.
type Period string

// Supported periods.
const (
	PeriodDay     Period = "day"
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// DefaultPeriod is used for empty or unrecognised period codes.
const DefaultPeriod = PeriodMonth

// DateLayout is the ISO calendar format used in payloads and query strings.
const DateLayout = "2006-01-02"

var lookbackDays = map[Period]int{
	PeriodDay:     0,
	PeriodWeek:    7,
	PeriodMonth:   30,
	PeriodQuarter: 90,
	PeriodYear:    365,
}

var periodLabels = map[Period]string{
	PeriodDay:     "Day",
	PeriodWeek:    "Week",
	PeriodMonth:   "Month",
	PeriodQuarter: "Quarter",
	PeriodYear:    "Year",
}

// Periods lists the periods in display order.
func Periods() []Period {
	return []Period{PeriodDay, PeriodWeek, PeriodMonth, PeriodQuarter, PeriodYear}
}

// ParsePeriod maps raw to a known period, falling back to DefaultPeriod.
func ParsePeriod(raw string) Period {
	p := Period(raw)
	if _, ok := lookbackDays[p]; ok {
		return p
	}
	return DefaultPeriod
}

// Lookback returns the number of days subtracted from the anchor date.
func (p Period) Lookback() int {
	if days, ok := lookbackDays[p]; ok {
		return days
	}
	return lookbackDays[DefaultPeriod]
}

// Label returns the human readable name.
func (p Period) Label() string {
	if label, ok := periodLabels[p]; ok {
		return label
	}
	return periodLabels[DefaultPeriod]
}

// Window is an inclusive calendar date range.
type Window struct {
	From time.Time
	To   time.Time
}

// FromISO formats the first day of the window.
func (w Window) FromISO() string { return w.From.Format(DateLayout) }

// ToISO formats the last day of the window.
func (w Window) ToISO() string { return w.To.Format(DateLayout) }

// AnchorSource reports the most recent record date of a table.
type AnchorSource interface {
	LatestDate(ctx context.Context) (time.Time, bool, error)
}

// ResolveWindow anchors the period to the latest record date. When the table
// holds no records the anchor is today's date according to now.
func ResolveWindow(ctx context.Context, period Period, src AnchorSource, now func() time.Time) (Window, error) {
	if now == nil {
		now = time.Now
	}
	var anchor time.Time
	if src != nil {
		latest, ok, err := src.LatestDate(ctx)
		if err != nil {
			return Window{}, fmt.Errorf("reporting: latest date: %w", err)
		}
		if ok {
			anchor = latest
		}
	}
	if anchor.IsZero() {
		anchor = now()
	}
	to := TruncateDate(anchor)
	return Window{From: to.AddDate(0, 0, -period.Lookback()), To: to}, nil
}

// TruncateDate drops the clock part of t, keeping its calendar date in UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Observer records how long report payloads take to build.
type Observer interface {
	ObserveReport(name string, elapsed time.Duration, err error)
}
