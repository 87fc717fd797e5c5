// Package account serves the signed-in user's profile page.
package account

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/factorykpi/factorykpi/internal/audit"
	"github.com/factorykpi/factorykpi/internal/shared"
	"github.com/factorykpi/factorykpi/internal/view"
)

// Directory resolves group membership and permissions. *rbac.Service satisfies it.
type Directory interface {
	UserGroups(ctx context.Context, userID int64) ([]string, error)
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// ActivityLog lists recent actions. *audit.Repository satisfies it.
type ActivityLog interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]audit.Entry, error)
}

// Profile is the page model.
type Profile struct {
	User        shared.Principal
	Groups      []string
	Permissions []string
	Activity    []audit.Entry
}

// Handler renders /profile.
type Handler struct {
	logger    *slog.Logger
	directory Directory
	activity  ActivityLog
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, directory Directory, activity ActivityLog, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, directory: directory, activity: activity, templates: templates, csrf: csrf}
}

// MountRoutes registers the profile page.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
}

// Load gathers the profile of p.
func (h *Handler) Load(ctx context.Context, p shared.Principal) (Profile, error) {
	profile := Profile{User: p}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		profile.Groups, err = h.directory.UserGroups(ctx, p.ID)
		return err
	})
	g.Go(func() (err error) {
		profile.Permissions, err = h.directory.EffectivePermissions(ctx, p.ID)
		return err
	})
	g.Go(func() (err error) {
		profile.Activity, err = h.activity.ListByUser(ctx, p.ID, audit.DefaultLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	profile, err := h.Load(r.Context(), p)
	if err != nil {
		h.logger.Error("load profile", slog.Any("error", err), slog.Int64("user_id", p.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := h.templates.Render(w, "pages/profile.html", view.NewTemplateData(r, h.csrf, "Profile", profile)); err != nil {
		h.logger.Error("render profile", slog.Any("error", err))
	}
}
