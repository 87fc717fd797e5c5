package productionhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factorykpi/factorykpi/internal/masterdata"
	"github.com/factorykpi/factorykpi/internal/production"
	"github.com/factorykpi/factorykpi/internal/reporting"
	"github.com/factorykpi/factorykpi/internal/shared"
	"github.com/factorykpi/factorykpi/internal/view"
	_ "github.com/factorykpi/factorykpi/testing"
)

type stubService struct {
	overview production.Overview
	report   production.ReportPage
	rows     []production.Record
	filters  reporting.Filters
}

func (s *stubService) Overview(_ context.Context, f reporting.Filters) (production.Overview, error) {
	s.filters = f
	return s.overview, nil
}

func (s *stubService) Report(_ context.Context, f reporting.Filters) (production.ReportPage, error) {
	s.filters = f
	return s.report, nil
}

func (s *stubService) Export(_ context.Context, f reporting.Filters) (reporting.Window, []production.Record, error) {
	s.filters = f
	from, _ := time.Parse(reporting.DateLayout, "2025-04-23")
	to, _ := time.Parse(reporting.DateLayout, "2025-04-30")
	return reporting.Window{From: from, To: to}, s.rows, nil
}

type stubShops struct{}

func (stubShops) ListShops(context.Context) ([]masterdata.Shop, error) {
	return []masterdata.Shop{{ID: 1, Name: "Assembly"}, {ID: 2, Name: "Welding"}}, nil
}

func newRouter(t *testing.T, svc *stubService) http.Handler {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	h := NewHandler(nil, svc, stubShops{}, templates, shared.NewCSRFManager("secret"))
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func sampleOverview() production.Overview {
	return production.Overview{
		Period:   "week",
		DateFrom: "2025-04-23",
		DateTo:   "2025-04-30",
		Cards:    production.KPICards{TotalOutput: 1200, AvgDowntime: 2.3, AvgDefectRate: 1.23},
		Charts: production.ChartData{
			DowntimeByShop:   map[string]float64{"Assembly": 3.5},
			ProductionByDate: map[string]int64{"2025-04-30": 700},
			PlanByShop:       map[string]float64{"Assembly": 95.3},
			InventoryByDate:  map[string]int64{"2025-04-30": 200},
		},
	}
}

func TestDashboardAjaxReturnsChartsAndCards(t *testing.T) {
	svc := &stubService{overview: sampleOverview()}
	router := newRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/?period=week&shop=2&shop=1", nil)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body struct {
		ChartData    production.ChartData `json:"chart_data"`
		KPICardsHTML string               `json:"kpi_cards_html"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 3.5, body.ChartData.DowntimeByShop["Assembly"])
	assert.Contains(t, body.KPICardsHTML, "1,200")
	assert.Contains(t, body.KPICardsHTML, "1.23")
	assert.Equal(t, []int64{1, 2}, svc.filters.ShopIDs)
}

func TestDashboardPageMatchesAjaxCards(t *testing.T) {
	svc := &stubService{overview: sampleOverview()}
	router := newRouter(t, svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?shop=1", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Production dashboard")
	assert.Contains(t, body, "1,200")
	assert.Contains(t, body, `value="1" checked`)
	assert.Contains(t, body, `"downtime_by_shop":{"Assembly":3.5}`)
}

func TestReportsPageRendersRowsAndPagination(t *testing.T) {
	date, _ := time.Parse(reporting.DateLayout, "2025-04-30")
	svc := &stubService{report: production.ReportPage{
		DateFrom:   "2025-03-31",
		DateTo:     "2025-04-30",
		Rows:       []production.Record{{ID: 1, ShopName: "Welding", Date: date, Output: 4200}},
		Pagination: shared.NewPagination(2, shared.DefaultPerPage, 45),
	}}
	router := newRouter(t, svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports?page=2", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Welding")
	assert.Contains(t, body, "4,200")
	assert.Contains(t, body, "Page 2 of 3")
	assert.Contains(t, body, "page=3")
	assert.Equal(t, 2, svc.filters.Page)
}

func TestExportWritesCSV(t *testing.T) {
	date, _ := time.Parse(reporting.DateLayout, "2025-04-30")
	svc := &stubService{rows: []production.Record{{ShopName: "Assembly", Date: date, Output: 10, DowntimeHours: 1.5}}}
	router := newRouter(t, svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/export.csv?period=week", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "kpi-report-2025-04-23-2025-04-30.csv")
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "2025-04-30,Assembly,10,1.5"))
}

type stubPDF struct {
	html []byte
	err  error
}

func (s *stubPDF) Enabled() bool { return true }

func (s *stubPDF) RenderHTML(_ context.Context, html []byte) ([]byte, error) {
	s.html = html
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-1.7"), nil
}

func newPDFRouter(t *testing.T, svc *stubService, pdf PDFRenderer) http.Handler {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	h := NewHandler(nil, svc, stubShops{}, templates, shared.NewCSRFManager("secret")).WithPDF(pdf)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestExportPDFRendersPrintView(t *testing.T) {
	date, _ := time.Parse(reporting.DateLayout, "2025-04-30")
	svc := &stubService{rows: []production.Record{{ShopName: "Assembly", Date: date, Output: 4200}}}
	pdf := &stubPDF{}
	router := newPDFRouter(t, svc, pdf)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/export.pdf?period=week", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "kpi-report-2025-04-23-2025-04-30.pdf")
	assert.Equal(t, "%PDF-1.7", rr.Body.String())
	assert.Contains(t, string(pdf.html), "Assembly")
	assert.Contains(t, string(pdf.html), "2025-04-23 to 2025-04-30")
}

func TestExportPDFUpstreamFailure(t *testing.T) {
	router := newPDFRouter(t, &stubService{}, &stubPDF{err: errors.New("gotenberg down")})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/export.pdf", nil))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestExportPDFNotMountedWithoutRenderer(t *testing.T) {
	router := newRouter(t, &stubService{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/export.pdf", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
