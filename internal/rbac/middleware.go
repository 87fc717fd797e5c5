package rbac

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/factorykpi/factorykpi/internal/platform/httpx"
	"github.com/factorykpi/factorykpi/internal/shared"
)

// LoginPath is where anonymous visitors are sent.
const LoginPath = "/login"

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireLogin redirects anonymous visitors to the login page and threads the
// principal of signed-in users through the request context.
func (m Middleware) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		userID, ok := m.currentUserID(sess)
		if !ok {
			redirectToLogin(w, r)
			return
		}
		principal, err := m.Service.Principal(r.Context(), userID)
		if errors.Is(err, shared.ErrNotFound) {
			sess.SetUser("")
			redirectToLogin(w, r)
			return
		}
		if err != nil {
			m.logError("rbac load principal", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireAdmin lets administrators through. Everyone else is sent back to the
// dashboard with an error flash; fetch requests get a 403 problem instead.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := shared.PrincipalFromContext(r.Context())
		if ok && p.IsAdmin {
			next.ServeHTTP(w, r)
			return
		}
		if httpx.IsAjax(r) {
			httpx.RespondError(w, fmt.Errorf("%w: administrators only", shared.ErrForbidden), "")
			return
		}
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: shared.FlashError, Message: "You do not have access to this page."})
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
}

func (m Middleware) currentUserID(sess *shared.Session) (int64, bool) {
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}

func (m Middleware) logError(msg string, err error) {
	if m.Logger != nil {
		m.Logger.Error(msg, slog.Any("error", err))
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusSeeOther)
}
