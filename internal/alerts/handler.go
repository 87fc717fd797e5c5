package alerts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/factorykpi/factorykpi/internal/shared"
	"github.com/factorykpi/factorykpi/internal/view"
)

// Handler lists alert rules.
type Handler struct {
	logger    *slog.Logger
	repo      Repository
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, repo Repository, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, repo: repo, templates: templates, csrf: csrf}
}

// MountRoutes registers the alerts page.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rules, err := h.repo.ListRules(r.Context())
	if err != nil {
		h.logger.Error("list alert rules", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	data := map[string]any{"Rules": rules}
	if err := h.templates.Render(w, "pages/alerts.html", view.NewTemplateData(r, h.csrf, "Alerts", data)); err != nil {
		h.logger.Error("render alerts", slog.Any("error", err))
	}
}
