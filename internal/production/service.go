package production

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/factorykpi/factorykpi/internal/platform/cache"
	"github.com/factorykpi/factorykpi/internal/reporting"
	"github.com/factorykpi/factorykpi/internal/shared"
)

// Service builds the dashboard and report payloads.
type Service struct {
	repo     Repository
	cache    *cache.Cache
	observer reporting.Observer
	now      func() time.Time
}

// NewService wires a Repository with the report cache. Either cache or
// observer may be nil.
func NewService(repo Repository, c *cache.Cache, observer reporting.Observer) *Service {
	return &Service{repo: repo, cache: c, observer: observer, now: time.Now}
}

// WithNow overrides the clock used when kpi_records is empty.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Window resolves the date window of a period against kpi_records.
func (s *Service) Window(ctx context.Context, period reporting.Period) (reporting.Window, error) {
	return reporting.ResolveWindow(ctx, period, s.repo, s.now)
}

// Overview returns the KPI cards and chart series for the filters.
func (s *Service) Overview(ctx context.Context, f reporting.Filters) (Overview, error) {
	start := time.Now()
	out, err := s.overview(ctx, f)
	s.observe("overview", start, err)
	return out, err
}

func (s *Service) overview(ctx context.Context, f reporting.Filters) (Overview, error) {
	window, err := s.Window(ctx, f.Period)
	if err != nil {
		return Overview{}, err
	}
	key, err := s.cache.BuildKey(ctx, "production", "overview", f.CacheKey(), window.ToISO())
	if err != nil {
		return Overview{}, fmt.Errorf("production: cache key: %w", err)
	}
	var out Overview
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.buildOverview(ctx, f, window)
	})
	return out, err
}

func (s *Service) buildOverview(ctx context.Context, f reporting.Filters, window reporting.Window) (Overview, error) {
	q := Query{From: window.From, To: window.To, ShopIDs: f.ShopIDs}

	var (
		summary Summary
		shops   []ShopPoint
		days    []DatePoint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary, err = s.repo.Summary(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		shops, err = s.repo.ShopBreakdown(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		days, err = s.repo.DailyTotals(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	return Overview{
		Period:   string(f.Period),
		DateFrom: window.FromISO(),
		DateTo:   window.ToISO(),
		Cards:    BuildCards(summary),
		Charts:   BuildCharts(shops, days),
	}, nil
}

// BuildCards rounds the raw summary for display.
func BuildCards(s Summary) KPICards {
	return KPICards{
		TotalOutput:       s.TotalOutput,
		AvgDowntime:       reporting.Round(s.AvgDowntime, 1),
		AvgDefectRate:     reporting.Round(s.AvgDefectRate, 2),
		AvgEquipmentLoad:  reporting.Round(s.AvgEquipmentLoad, 1),
		TotalInventory:    s.TotalInventory,
		TotalCabinets:     s.TotalCabinets,
		AvgPlanCompletion: reporting.Round(s.AvgPlanCompletion, 1),
		AvgQualityIndex:   reporting.Round(s.AvgQualityIndex, 1),
		Records:           s.Records,
	}
}

// BuildCharts turns the grouped series into chart maps. Shops sharing a name
// are merged.
func BuildCharts(shops []ShopPoint, days []DatePoint) ChartData {
	charts := ChartData{
		DowntimeByShop:   make(map[string]float64, len(shops)),
		ProductionByDate: make(map[string]int64, len(days)),
		PlanByShop:       make(map[string]float64, len(shops)),
		InventoryByDate:  make(map[string]int64, len(days)),
	}
	for _, p := range shops {
		charts.DowntimeByShop[p.ShopName] += p.DowntimeHours
		charts.PlanByShop[p.ShopName] = reporting.Round(p.AvgPlan, 1)
	}
	for _, d := range days {
		key := d.Date.Format(reporting.DateLayout)
		charts.ProductionByDate[key] += d.Output
		charts.InventoryByDate[key] += d.Inventory
	}
	return charts
}

// Report returns one page of detail rows.
func (s *Service) Report(ctx context.Context, f reporting.Filters) (ReportPage, error) {
	start := time.Now()
	out, err := s.report(ctx, f)
	s.observe("report", start, err)
	return out, err
}

func (s *Service) report(ctx context.Context, f reporting.Filters) (ReportPage, error) {
	window, err := s.Window(ctx, f.Period)
	if err != nil {
		return ReportPage{}, err
	}
	q := Query{From: window.From, To: window.To, ShopIDs: f.ShopIDs}
	countKey, err := s.cache.BuildKey(ctx, "production", "count", f.CacheKey(), window.ToISO())
	if err != nil {
		return ReportPage{}, fmt.Errorf("production: cache key: %w", err)
	}
	var total int
	err = s.cache.FetchJSON(ctx, countKey, &total, func(ctx context.Context) (any, error) {
		return s.repo.CountRecords(ctx, q)
	})
	if err != nil {
		return ReportPage{}, err
	}
	// Out of range pages share the entry of the page they clamp to.
	page := shared.NewPagination(f.Page, shared.DefaultPerPage, total)
	key, err := s.cache.BuildKey(ctx, "production", "report", f.CacheKey(), window.ToISO(), "p"+strconv.Itoa(page.Page))
	if err != nil {
		return ReportPage{}, fmt.Errorf("production: cache key: %w", err)
	}
	var out ReportPage
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		rows, err := s.repo.ListRecords(ctx, q, page.PerPage, page.Offset())
		if err != nil {
			return nil, err
		}
		if rows == nil {
			rows = []Record{}
		}
		return ReportPage{
			Period:     string(f.Period),
			DateFrom:   window.FromISO(),
			DateTo:     window.ToISO(),
			Rows:       rows,
			Pagination: page,
		}, nil
	})
	return out, err
}

// Export returns every detail row of the filtered window, bypassing the cache.
func (s *Service) Export(ctx context.Context, f reporting.Filters) (reporting.Window, []Record, error) {
	window, err := s.Window(ctx, f.Period)
	if err != nil {
		return reporting.Window{}, nil, err
	}
	rows, err := s.repo.ListRecords(ctx, Query{From: window.From, To: window.To, ShopIDs: f.ShopIDs}, 0, 0)
	if err != nil {
		return reporting.Window{}, nil, err
	}
	return window, rows, nil
}

func (s *Service) observe(name string, start time.Time, err error) {
	if s.observer != nil {
		s.observer.ObserveReport("production_"+name, time.Since(start), err)
	}
}
