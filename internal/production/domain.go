// Package production aggregates shop KPI records for the dashboard and the
// report table.
package production

import (
	"time"

	"github.com/factorykpi/factorykpi/internal/shared"
)

// Record is one daily KPI row of a shop.
type Record struct {
	ID                  int64     `db:"id" json:"id"`
	ShopID              int64     `db:"shop_id" json:"shop_id"`
	ShopName            string    `db:"shop_name" json:"shop"`
	Date                time.Time `db:"date" json:"date"`
	Output              int64     `db:"output" json:"output"`
	DowntimeHours       float64   `db:"downtime_hours" json:"downtime_hours"`
	DefectRate          float64   `db:"defect_rate" json:"defect_rate"`
	EquipmentLoad       float64   `db:"equipment_load" json:"equipment_load"`
	InventoryLevel      int64     `db:"inventory_level" json:"inventory_level"`
	DSEVolume           int64     `db:"dse_volume" json:"dse_volume"`
	CabinetsProduced    int64     `db:"cabinets_produced" json:"cabinets_produced"`
	PlanCompletion      float64   `db:"plan_completion" json:"plan_completion"`
	QualityIndex        float64   `db:"quality_index" json:"quality_index"`
	ProductivityIndex   float64   `db:"productivity_index" json:"productivity_index"`
	EnergyConsumption   float64   `db:"energy_consumption" json:"energy_consumption"`
	MaterialUtilization float64   `db:"material_utilization" json:"material_utilization"`
}

// Query restricts aggregation to an inclusive date range and, when ShopIDs is
// non-empty, to those shops.
type Query struct {
	From    time.Time
	To      time.Time
	ShopIDs []int64
}

// Summary holds the raw aggregates over a record set. Averages of an empty
// set are zero.
type Summary struct {
	TotalOutput       int64   `db:"total_output"`
	TotalInventory    int64   `db:"total_inventory"`
	TotalCabinets     int64   `db:"total_cabinets"`
	AvgDowntime       float64 `db:"avg_downtime"`
	AvgDefectRate     float64 `db:"avg_defect_rate"`
	AvgEquipmentLoad  float64 `db:"avg_equipment_load"`
	AvgPlanCompletion float64 `db:"avg_plan_completion"`
	AvgQualityIndex   float64 `db:"avg_quality_index"`
	Records           int64   `db:"records"`
}

// ShopPoint is the per-shop breakdown used by the downtime and plan charts.
type ShopPoint struct {
	ShopID        int64   `db:"shop_id"`
	ShopName      string  `db:"shop_name"`
	DowntimeHours float64 `db:"downtime_hours"`
	AvgPlan       float64 `db:"avg_plan"`
}

// DatePoint is the per-day breakdown used by the output and inventory charts.
type DatePoint struct {
	Date      time.Time `db:"date"`
	Output    int64     `db:"output"`
	Inventory int64     `db:"inventory"`
}

// KPICards is the rounded summary shown on the dashboard cards.
type KPICards struct {
	TotalOutput       int64   `json:"total_output"`
	AvgDowntime       float64 `json:"avg_downtime"`
	AvgDefectRate     float64 `json:"avg_defect_rate"`
	AvgEquipmentLoad  float64 `json:"avg_equipment_load"`
	TotalInventory    int64   `json:"total_inventory"`
	TotalCabinets     int64   `json:"total_cabinets"`
	AvgPlanCompletion float64 `json:"avg_plan_completion"`
	AvgQualityIndex   float64 `json:"avg_quality_index"`
	Records           int64   `json:"records"`
}

// ChartData feeds the four dashboard charts. Shop charts are keyed by shop
// name, date charts by ISO date.
type ChartData struct {
	DowntimeByShop   map[string]float64 `json:"downtime_by_shop"`
	ProductionByDate map[string]int64   `json:"production_by_date"`
	PlanByShop       map[string]float64 `json:"plan_by_shop"`
	InventoryByDate  map[string]int64   `json:"inventory_by_date"`
}

// Overview is the dashboard payload.
type Overview struct {
	Period   string    `json:"period"`
	DateFrom string    `json:"date_from"`
	DateTo   string    `json:"date_to"`
	Cards    KPICards  `json:"kpi"`
	Charts   ChartData `json:"chart_data"`
}

// ReportPage is one page of the detail table.
type ReportPage struct {
	Period     string            `json:"period"`
	DateFrom   string            `json:"date_from"`
	DateTo     string            `json:"date_to"`
	Rows       []Record          `json:"rows"`
	Pagination shared.Pagination `json:"pagination"`
}
