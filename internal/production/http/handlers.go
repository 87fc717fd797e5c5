package productionhttp

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/factorykpi/factorykpi/internal/masterdata"
	"github.com/factorykpi/factorykpi/internal/platform/httpx"
	"github.com/factorykpi/factorykpi/internal/production"
	"github.com/factorykpi/factorykpi/internal/reporting"
	"github.com/factorykpi/factorykpi/internal/shared"
	"github.com/factorykpi/factorykpi/internal/view"
)

// Service is the production payload contract used by the handler.
type Service interface {
	Overview(ctx context.Context, f reporting.Filters) (production.Overview, error)
	Report(ctx context.Context, f reporting.Filters) (production.ReportPage, error)
	Export(ctx context.Context, f reporting.Filters) (reporting.Window, []production.Record, error)
}

// ShopLister supplies the shop filter options.
type ShopLister interface {
	ListShops(ctx context.Context) ([]masterdata.Shop, error)
}

// PDFRenderer converts a standalone HTML document into a PDF. *report.Client
// satisfies it.
type PDFRenderer interface {
	Enabled() bool
	RenderHTML(ctx context.Context, html []byte) ([]byte, error)
}

// Handler serves the dashboard and the KPI report table.
type Handler struct {
	logger    *slog.Logger
	service   Service
	shops     ShopLister
	templates *view.Engine
	csrf      *shared.CSRFManager
	pdf       PDFRenderer
}

// NewHandler constructs the production HTTP handler.
func NewHandler(logger *slog.Logger, service Service, shops ShopLister, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, shops: shops, templates: templates, csrf: csrf}
}

// WithPDF enables /reports/export.pdf when renderer is configured.
func (h *Handler) WithPDF(renderer PDFRenderer) *Handler {
	h.pdf = renderer
	return h
}

func (h *Handler) pdfEnabled() bool {
	return h.pdf != nil && h.pdf.Enabled()
}

// FilterOptions carries the selected filters and the choices offered by the
// filter form.
type FilterOptions struct {
	Filters    reporting.Filters
	Shops      []masterdata.Shop
	Periods    []reporting.Period
	Indicators []reporting.Indicator
}

type dashboardPage struct {
	FilterOptions
	Overview production.Overview
}

type reportPage struct {
	FilterOptions
	Report     production.ReportPage
	PDFEnabled bool
}

type printPage struct {
	Window  reporting.Window
	Filters reporting.Filters
	Rows    []production.Record
}

type ajaxDashboard struct {
	ChartData    production.ChartData `json:"chart_data"`
	KPICardsHTML string               `json:"kpi_cards_html"`
}

func (h *Handler) options(ctx context.Context, f reporting.Filters) (FilterOptions, error) {
	shops, err := h.shops.ListShops(ctx)
	if err != nil {
		return FilterOptions{}, err
	}
	return FilterOptions{
		Filters:    f,
		Shops:      shops,
		Periods:    reporting.Periods(),
		Indicators: reporting.AllIndicators(),
	}, nil
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	f := reporting.ParseFilters(r.URL.Query())
	overview, err := h.service.Overview(r.Context(), f)
	if err != nil {
		h.handleServerError(w, r, "load overview", err)
		return
	}

	if httpx.IsAjax(r) {
		cards, err := h.templates.RenderPartial("partials/kpi_cards.html", overview.Cards)
		if err != nil {
			h.handleServerError(w, r, "render kpi cards", err)
			return
		}
		httpx.JSON(w, http.StatusOK, ajaxDashboard{ChartData: overview.Charts, KPICardsHTML: cards})
		return
	}

	opts, err := h.options(r.Context(), f)
	if err != nil {
		h.handleServerError(w, r, "list shops", err)
		return
	}
	data := view.NewTemplateData(r, h.csrf, "Dashboard", dashboardPage{FilterOptions: opts, Overview: overview})
	if err := h.templates.Render(w, "pages/dashboard.html", data); err != nil {
		h.logger.Error("render dashboard", slog.Any("error", err))
	}
}

func (h *Handler) handleReports(w http.ResponseWriter, r *http.Request) {
	f := reporting.ParseFilters(r.URL.Query())
	report, err := h.service.Report(r.Context(), f)
	if err != nil {
		h.handleServerError(w, r, "load report", err)
		return
	}
	opts, err := h.options(r.Context(), f)
	if err != nil {
		h.handleServerError(w, r, "list shops", err)
		return
	}
	data := view.NewTemplateData(r, h.csrf, "Reports", reportPage{FilterOptions: opts, Report: report, PDFEnabled: h.pdfEnabled()})
	if err := h.templates.Render(w, "pages/reports.html", data); err != nil {
		h.logger.Error("render reports", slog.Any("error", err))
	}
}

var csvHeader = []string{
	"Date", "Shop", "Output", "Downtime (h)", "Defect rate (%)", "Equipment load (%)",
	"Inventory level", "DSE volume", "Cabinets produced", "Plan completion (%)", "Quality index (%)",
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	f := reporting.ParseFilters(r.URL.Query())
	window, rows, err := h.service.Export(r.Context(), f)
	if err != nil {
		h.handleServerError(w, r, "load export", err)
		return
	}

	var buf bytes.Buffer
	if err := WriteRecordsCSV(&buf, rows); err != nil {
		h.handleServerError(w, r, "write csv", err)
		return
	}
	filename := fmt.Sprintf("kpi-report-%s-%s.csv", window.FromISO(), window.ToISO())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("stream csv", slog.Any("error", err))
	}
}

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	f := reporting.ParseFilters(r.URL.Query())
	window, rows, err := h.service.Export(r.Context(), f)
	if err != nil {
		h.handleServerError(w, r, "load export", err)
		return
	}
	html, err := h.templates.RenderPartial("partials/report_print.html", printPage{Window: window, Filters: f, Rows: rows})
	if err != nil {
		h.handleServerError(w, r, "render print view", err)
		return
	}
	pdf, err := h.pdf.RenderHTML(r.Context(), []byte(html))
	if err != nil {
		h.logger.Error("render pdf", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	filename := fmt.Sprintf("kpi-report-%s-%s.pdf", window.FromISO(), window.ToISO())
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(pdf); err != nil {
		h.logger.Error("stream pdf", slog.Any("error", err))
	}
}

// WriteRecordsCSV serialises detail rows with a header line.
func WriteRecordsCSV(buf *bytes.Buffer, rows []production.Record) error {
	writer := csv.NewWriter(buf)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range rows {
		if err := writer.Write([]string{
			rec.Date.Format(reporting.DateLayout),
			rec.ShopName,
			strconv.FormatInt(rec.Output, 10),
			strconv.FormatFloat(rec.DowntimeHours, 'f', 1, 64),
			strconv.FormatFloat(rec.DefectRate, 'f', 2, 64),
			strconv.FormatFloat(rec.EquipmentLoad, 'f', 1, 64),
			strconv.FormatInt(rec.InventoryLevel, 10),
			strconv.FormatInt(rec.DSEVolume, 10),
			strconv.FormatInt(rec.CabinetsProduced, 10),
			strconv.FormatFloat(rec.PlanCompletion, 'f', 1, 64),
			strconv.FormatFloat(rec.QualityIndex, 'f', 1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (h *Handler) handleServerError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	if httpx.IsAjax(r) {
		httpx.RespondError(w, err, msg)
		return
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
