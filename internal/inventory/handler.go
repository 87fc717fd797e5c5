package inventory

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/factorykpi/factorykpi/internal/masterdata"
	"github.com/factorykpi/factorykpi/internal/platform/httpx"
	"github.com/factorykpi/factorykpi/internal/reporting"
	"github.com/factorykpi/factorykpi/internal/shared"
	"github.com/factorykpi/factorykpi/internal/view"
)

// PayloadService builds the inventory payload.
type PayloadService interface {
	Payload(ctx context.Context, f reporting.Filters) (Payload, error)
}

// ReferenceData supplies the filter choices.
type ReferenceData interface {
	ListShops(ctx context.Context) ([]masterdata.Shop, error)
	ListCategories(ctx context.Context) ([]masterdata.Category, error)
}

// Handler wires HTTP endpoints for the inventory dashboard.
type Handler struct {
	logger    *slog.Logger
	service   PayloadService
	reference ReferenceData
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service PayloadService, reference ReferenceData, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, reference: reference, templates: templates, csrf: csrf}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handlePage)
	r.Get("/data", h.handleData)
}

type pageData struct {
	Filters    reporting.Filters
	Periods    []reporting.Period
	Shops      []masterdata.Shop
	Categories []masterdata.Category
	Payload    Payload
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	f := reporting.ParseFilters(r.URL.Query())
	payload, err := h.service.Payload(r.Context(), f)
	if err != nil {
		h.logger.Error("inventory payload", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	shops, err := h.reference.ListShops(r.Context())
	if err != nil {
		h.logger.Error("list shops", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	categories, err := h.reference.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("list categories", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	data := view.NewTemplateData(r, h.csrf, "Inventory", pageData{
		Filters:    f,
		Periods:    reporting.Periods(),
		Shops:      shops,
		Categories: categories,
		Payload:    payload,
	})
	if err := h.templates.Render(w, "pages/inventory.html", data); err != nil {
		h.logger.Error("render inventory", slog.Any("error", err))
	}
}

func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	payload, err := h.service.Payload(r.Context(), reporting.ParseFilters(r.URL.Query()))
	if err != nil {
		h.logger.Error("inventory payload", slog.Any("error", err))
		httpx.RespondError(w, err, "inventory payload unavailable")
		return
	}
	httpx.JSON(w, http.StatusOK, payload)
}
