package inventory

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

// Service composes the inventory payload.
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

// WithNow overrides the clock used when inventory_records is empty.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Payload returns the inventory payload for the filters.
func (s *Service) Payload(ctx context.Context, f reporting.Filters) (Payload, error) {
	start := time.Now()
	out, err := s.payload(ctx, f)
	if s.observer != nil {
		s.observer.ObserveReport("inventory_payload", time.Since(start), err)
	}
	return out, err
}

func (s *Service) payload(ctx context.Context, f reporting.Filters) (Payload, error) {
	window, err := reporting.ResolveWindow(ctx, f.Period, s.repo, s.now)
	if err != nil {
		return Payload{}, err
	}
	key, err := s.cache.BuildKey(ctx, "inventory", f.CacheKey(), window.ToISO(), "p"+strconv.Itoa(f.Page))
	if err != nil {
		return Payload{}, fmt.Errorf("inventory: cache key: %w", err)
	}
	var out Payload
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.build(ctx, f, window)
	})
	return out, err
}

func (s *Service) build(ctx context.Context, f reporting.Filters, window reporting.Window) (Payload, error) {
	q := Query{From: window.From, To: window.To, CategoryID: f.CategoryID, ShopIDs: f.ShopIDs}

	var (
		totals     Totals
		categories []CategoryTotals
		trend      []TrendPoint
		itemCount  int
		deficits   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.repo.Totals(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.repo.ByCategory(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		trend, err = s.repo.Trend(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		itemCount, err = s.repo.CountItems(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		deficits, err = s.repo.DeficitPositions(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return Payload{}, err
	}

	page := shared.NewPagination(f.Page, shared.DefaultPerPage, itemCount)
	items, err := s.repo.ItemRows(ctx, q, page.PerPage, page.Offset())
	if err != nil {
		return Payload{}, err
	}

	charts, avgTurnover := BuildCharts(categories, trend)
	shopIDs := f.ShopIDs
	if shopIDs == nil {
		shopIDs = []int64{}
	}
	return Payload{
		Filters: FiltersView{
			Period:     f.Period,
			CategoryID: f.CategoryID,
			ShopIDs:    shopIDs,
			DateFrom:   window.FromISO(),
			DateTo:     window.ToISO(),
		},
		Summary: Summary{
			TotalQuantity:    totals.Quantity,
			TotalReserved:    totals.Reserved,
			TotalAvailable:   reporting.RoundInt(Available(float64(totals.Quantity), float64(totals.Reserved))),
			TotalValue:       totals.Demand,
			TotalShortage:    totals.Shortage,
			DeficitPositions: deficits,
			AverageTurnover:  avgTurnover,
		},
		Charts: charts,
		Table: Table{
			Rows:       BuildRows(items),
			Page:       page.Page,
			TotalPages: page.TotalPages,
			TotalRows:  page.Total,
		},
	}, nil
}

// BuildCharts derives the chart series and the average category turnover.
// The average is taken over unrounded turnovers and rounded once.
func BuildCharts(categories []CategoryTotals, trend []TrendPoint) (Charts, float64) {
	charts := Charts{
		InventoryByCategory: make([]CategoryQuantity, 0, len(categories)),
		ShortageByCategory:  make([]CategoryShortage, 0, len(categories)),
		InventoryTrend:      make([]Trend, 0, len(trend)),
		TurnoverByCategory:  make([]CategoryTurnover, 0, len(categories)),
	}
	turnovers := make([]float64, 0, len(categories))
	for _, c := range categories {
		name := c.Name
		if name == "" {
			name = Uncategorized
		}
		available := Available(float64(c.Quantity), float64(c.Reserved))
		turnover := Turnover(float64(c.Demand), available)
		turnovers = append(turnovers, turnover)

		charts.InventoryByCategory = append(charts.InventoryByCategory, CategoryQuantity{Name: name, Quantity: c.Quantity})
		charts.ShortageByCategory = append(charts.ShortageByCategory, CategoryShortage{Name: name, Shortage: c.Shortage})
		charts.TurnoverByCategory = append(charts.TurnoverByCategory, CategoryTurnover{Name: name, Turnover: reporting.Round(turnover, 2)})
	}
	for _, p := range trend {
		charts.InventoryTrend = append(charts.InventoryTrend, Trend{
			Date:     p.Date.Format(reporting.DateLayout),
			Quantity: p.Quantity,
			Shortage: p.Shortage,
		})
	}
	avg := 0.0
	if len(turnovers) > 0 {
		avg = reporting.Round(reporting.Mean(turnovers), 2)
	}
	return charts, avg
}

// BuildRows classifies item sums into table rows.
func BuildRows(items []ItemTotals) []Row {
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		available := Available(float64(it.Quantity), float64(it.Reserved))
		status := Classify(float64(it.Shortage), available, it.MinThreshold)
		category := it.Category
		if category == "" {
			category = Uncategorized
		}
		rows = append(rows, Row{
			SKU:          it.SKU,
			Name:         it.Name,
			Category:     category,
			Unit:         it.Unit.Label(),
			Quantity:     it.Quantity,
			Reserved:     it.Reserved,
			Available:    reporting.RoundInt(available),
			MinThreshold: reporting.RoundInt(it.MinThreshold),
			Demand:       it.Demand,
			Shortage:     it.Shortage,
			Status:       status.Label(),
			StatusClass:  status.CSSClass(),
		})
	}
	return rows
}
