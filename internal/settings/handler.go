package settings

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/factorykpi/factorykpi/internal/rbac"
	"github.com/factorykpi/factorykpi/internal/shared"
	"github.com/factorykpi/factorykpi/internal/view"
)

// PermissionLister lists every permission ordered by app label. *rbac.Service satisfies it.
type PermissionLister interface {
	ListPermissions(ctx context.Context) ([]rbac.Permission, error)
}

// Handler serves the settings page.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	permissions PermissionLister
	templates   *view.Engine
	csrf        *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, permissions PermissionLister, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, permissions: permissions, templates: templates, csrf: csrf}
}

// MountRoutes registers the settings routes. Callers gate them with rbac.RequireAdmin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Post("/", h.submit)
}

type settingsPage struct {
	Page
	PermissionsByApp []rbac.PermissionGroup
	Schedules        []string
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.Load(r.Context())
	if err != nil {
		h.logger.Error("load settings", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	perms, err := h.permissions.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	page.DataSources = DefaultDataSources()
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if _, err := sess.GetJSON(DataSourcesKey, &page.DataSources); err != nil {
			h.logger.Warn("decode data sources", slog.Any("error", err))
			page.DataSources = DefaultDataSources()
		}
	}
	data := settingsPage{Page: page, PermissionsByApp: rbac.GroupByApp(perms), Schedules: Schedules}
	if err := h.templates.Render(w, "pages/settings.html", view.NewTemplateData(r, h.csrf, "Settings", data)); err != nil {
		h.logger.Error("render settings", slog.Any("error", err))
	}
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		h.flash(sess, shared.FlashError, "Action failed: "+err.Error())
		http.Redirect(w, r, "/settings", http.StatusSeeOther)
		return
	}

	var sources DataSourceStore
	if sess != nil {
		sources = sess
	}
	var actorID int64
	if p, ok := shared.PrincipalFromContext(r.Context()); ok {
		actorID = p.ID
	} else if sess != nil {
		actorID, _ = strconv.ParseInt(sess.User(), 10, 64)
	}

	cmd, err := DecodeCommand(r.PostForm)
	if err == nil {
		var msg string
		if msg, err = h.service.Execute(r.Context(), actorID, cmd, sources); err == nil {
			h.logger.Info("settings action", slog.String("action", cmd.Action()), slog.Int64("actor_id", actorID))
			h.flash(sess, shared.FlashSuccess, msg)
		}
	}
	if err != nil {
		kind, msg := flashFor(err)
		if kind == shared.FlashError && msg != err.Error() {
			h.logger.Error("settings action", slog.String("action", r.PostForm.Get("action")), slog.Any("error", err))
		}
		h.flash(sess, kind, msg)
	}
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func flashFor(err error) (string, string) {
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrUnknownAction):
		return shared.FlashWarning, "Unknown action."
	case errors.As(err, &verr):
		return shared.FlashError, verr.Message
	case errors.Is(err, shared.ErrNotFound):
		return shared.FlashError, err.Error()
	default:
		return shared.FlashError, "Action failed: " + err.Error()
	}
}

func (h *Handler) flash(sess *shared.Session, kind, msg string) {
	if sess == nil {
		return
	}
	sess.AddFlash(shared.FlashMessage{Kind: kind, Message: msg})
}
