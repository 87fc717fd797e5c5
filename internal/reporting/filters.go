package reporting

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Indicator selects a production metric shown on the dashboard and reports.
type Indicator string

// Known indicators.
const (
	IndicatorOutput    Indicator = "output"
	IndicatorDowntime  Indicator = "downtime"
	IndicatorDefect    Indicator = "defect"
	IndicatorLoad      Indicator = "load"
	IndicatorInventory Indicator = "inventory"
	IndicatorCabinets  Indicator = "cabinets"
	IndicatorPlan      Indicator = "plan"
	IndicatorQuality   Indicator = "quality"
)

var knownIndicators = []Indicator{
	IndicatorOutput, IndicatorDowntime, IndicatorDefect, IndicatorLoad,
	IndicatorInventory, IndicatorCabinets, IndicatorPlan, IndicatorQuality,
}

// DefaultIndicators is used when a request names none.
func DefaultIndicators() []Indicator {
	return []Indicator{IndicatorOutput, IndicatorDowntime, IndicatorDefect, IndicatorLoad}
}

// AllIndicators lists every selectable indicator.
func AllIndicators() []Indicator {
	out := make([]Indicator, len(knownIndicators))
	copy(out, knownIndicators)
	return out
}

// Filters is the normalised filter set of a report request.
type Filters struct {
	Period     Period
	ShopIDs    []int64
	CategoryID *int64
	Indicators []Indicator
	Page       int
}

// ParseFilters normalises raw query parameters. Invalid values never fail the
// request: unknown periods become DefaultPeriod and malformed identifiers are
// dropped. An empty shop list means all shops.
func ParseFilters(q url.Values) Filters {
	f := Filters{
		Period:     ParsePeriod(strings.TrimSpace(q.Get("period"))),
		ShopIDs:    parseIDs(q["shop"]),
		Indicators: parseIndicators(q["indicator"]),
		Page:       1,
	}
	if id, ok := parseID(q.Get("category")); ok && id > 0 {
		f.CategoryID = &id
	}
	if page, ok := parseID(q.Get("page")); ok && page > 0 {
		f.Page = int(page)
	}
	return f
}

// HasShop reports whether id is part of the explicit shop selection.
func (f Filters) HasShop(id int64) bool {
	for _, s := range f.ShopIDs {
		if s == id {
			return true
		}
	}
	return false
}

// IsCategory reports whether id is the selected category.
func (f Filters) IsCategory(id int64) bool {
	return f.CategoryID != nil && *f.CategoryID == id
}

// HasIndicator reports whether the indicator is selected.
func (f Filters) HasIndicator(ind Indicator) bool {
	for _, i := range f.Indicators {
		if i == ind {
			return true
		}
	}
	return false
}

// CacheKey renders the filter set as a stable cache key fragment. The page is
// excluded.
func (f Filters) CacheKey() string {
	var b strings.Builder
	b.WriteString(string(f.Period))
	b.WriteString(":s=")
	for i, id := range f.ShopIDs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	b.WriteString(":c=")
	if f.CategoryID != nil {
		b.WriteString(strconv.FormatInt(*f.CategoryID, 10))
	}
	return b.String()
}

// Query rebuilds the query string of the filter set, optionally overriding the page.
func (f Filters) Query(page int) string {
	v := url.Values{}
	v.Set("period", string(f.Period))
	for _, id := range f.ShopIDs {
		v.Add("shop", strconv.FormatInt(id, 10))
	}
	if f.CategoryID != nil {
		v.Set("category", strconv.FormatInt(*f.CategoryID, 10))
	}
	for _, ind := range f.Indicators {
		v.Add("indicator", string(ind))
	}
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	return v.Encode()
}

func parseIDs(raw []string) []int64 {
	seen := make(map[int64]struct{}, len(raw))
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		id, ok := parseID(r)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// parseID accepts plain decimal digits only; signs and spaces are rejected.
func parseID(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func parseIndicators(raw []string) []Indicator {
	selected := make(map[Indicator]bool, len(raw))
	for _, r := range raw {
		selected[Indicator(strings.TrimSpace(r))] = true
	}
	out := make([]Indicator, 0, len(selected))
	for _, ind := range knownIndicators {
		if selected[ind] {
			out = append(out, ind)
		}
	}
	if len(out) == 0 {
		return DefaultIndicators()
	}
	return out
}
