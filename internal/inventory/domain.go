// Package inventory aggregates stock records into the inventory dashboard
// payload.
package inventory

import (
	"time"

	"github.com/factorykpi/factorykpi/internal/masterdata"
	"github.com/factorykpi/factorykpi/internal/reporting"
)

// Uncategorized labels rows whose category has no name.
const Uncategorized = "Uncategorized"

// Status classifies an item row.
type Status string

// Item statuses.
const (
	StatusDeficit Status = "deficit"
	StatusLow     Status = "low"
	StatusNormal  Status = "normal"
)

// Label returns the display text of the status.
func (s Status) Label() string {
	switch s {
	case StatusDeficit:
		return "Deficit"
	case StatusLow:
		return "Low"
	default:
		return "Normal"
	}
}

// CSSClass returns the alert class used to colour the status.
func (s Status) CSSClass() string {
	switch s {
	case StatusDeficit:
		return "danger"
	case StatusLow:
		return "warning"
	default:
		return "success"
	}
}

// Available is the unreserved stock, never negative.
func Available(quantity, reserved float64) float64 {
	if a := quantity - reserved; a > 0 {
		return a
	}
	return 0
}

// Turnover is demand per unit of available stock, zero when nothing is
// available.
func Turnover(demand, available float64) float64 {
	if available <= 0 {
		return 0
	}
	return demand / available
}

// Classify derives the status of an item row. A shortage always wins.
func Classify(shortage, available, minThreshold float64) Status {
	switch {
	case shortage > 0:
		return StatusDeficit
	case available < minThreshold:
		return StatusLow
	default:
		return StatusNormal
	}
}

// Query restricts aggregation to an inclusive date range, optionally one
// category and a set of shops.
type Query struct {
	From       time.Time
	To         time.Time
	CategoryID *int64
	ShopIDs    []int64
}

// Totals are the raw sums over the filtered record set.
type Totals struct {
	Quantity int64 `db:"quantity"`
	Reserved int64 `db:"reserved"`
	Demand   int64 `db:"demand"`
	Shortage int64 `db:"shortage"`
}

// CategoryTotals are the sums of one category.
type CategoryTotals struct {
	CategoryID int64  `db:"category_id"`
	Name       string `db:"name"`
	Totals
}

// TrendPoint are the sums of one day.
type TrendPoint struct {
	Date     time.Time `db:"date"`
	Quantity int64     `db:"quantity"`
	Shortage int64     `db:"shortage"`
}

// ItemTotals are the sums of one item across shops and dates.
type ItemTotals struct {
	SKU          string          `db:"sku"`
	Name         string          `db:"name"`
	Category     string          `db:"category"`
	Unit         masterdata.Unit `db:"unit"`
	MinThreshold float64         `db:"min_threshold"`
	Totals
}

// FiltersView echoes the applied filters.
type FiltersView struct {
	Period     reporting.Period `json:"period"`
	CategoryID *int64           `json:"category_id"`
	ShopIDs    []int64          `json:"shop_ids"`
	DateFrom   string           `json:"date_from"`
	DateTo     string           `json:"date_to"`
}

// Summary holds the headline numbers.
type Summary struct {
	TotalQuantity    int64   `json:"total_quantity"`
	TotalReserved    int64   `json:"total_reserved"`
	TotalAvailable   int64   `json:"total_available"`
	TotalValue       int64   `json:"total_value"`
	TotalShortage    int64   `json:"total_shortage"`
	DeficitPositions int     `json:"deficit_positions"`
	AverageTurnover  float64 `json:"average_turnover"`
}

// CategoryQuantity is a point of the inventory-by-category chart.
type CategoryQuantity struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// CategoryShortage is a point of the shortage-by-category chart.
type CategoryShortage struct {
	Name     string `json:"name"`
	Shortage int64  `json:"shortage"`
}

// CategoryTurnover is a point of the turnover-by-category chart.
type CategoryTurnover struct {
	Name     string  `json:"name"`
	Turnover float64 `json:"turnover"`
}

// Trend is a point of the daily inventory trend.
type Trend struct {
	Date     string `json:"date"`
	Quantity int64  `json:"quantity"`
	Shortage int64  `json:"shortage"`
}

// Charts groups the chart series.
type Charts struct {
	InventoryByCategory []CategoryQuantity `json:"inventory_by_category"`
	ShortageByCategory  []CategoryShortage `json:"shortage_by_category"`
	InventoryTrend      []Trend            `json:"inventory_trend"`
	TurnoverByCategory  []CategoryTurnover `json:"turnover_by_category"`
}

// Row is one line of the item table.
type Row struct {
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Unit         string `json:"unit"`
	Quantity     int64  `json:"quantity"`
	Reserved     int64  `json:"reserved"`
	Available    int64  `json:"available"`
	MinThreshold int64  `json:"min_threshold"`
	Demand       int64  `json:"demand"`
	Shortage     int64  `json:"shortage"`
	Status       string `json:"status"`
	StatusClass  string `json:"status_class"`
}

// Table is one page of item rows.
type Table struct {
	Rows       []Row `json:"rows"`
	Page       int   `json:"page"`
	TotalPages int   `json:"total_pages"`
	TotalRows  int   `json:"total_rows"`
}

// Payload is the complete inventory response shared by the page and the JSON
// endpoint.
type Payload struct {
	Filters FiltersView `json:"filters"`
	Summary Summary     `json:"summary"`
	Charts  Charts      `json:"charts"`
	Table   Table       `json:"table"`
}
