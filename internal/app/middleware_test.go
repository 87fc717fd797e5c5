package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factorykpi/factorykpi/internal/shared"
)

func newStackRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Config:         &Config{AppRequestTimeout: time.Second},
		SessionManager: shared.NewSessionManager(client, "kpi_test", time.Hour, false),
		CSRFManager:    shared.NewCSRFManager("secret"),
	}) {
		r.Use(mw)
	}
	r.Get("/flash", func(w http.ResponseWriter, r *http.Request) {
		shared.SessionFromContext(r.Context()).AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: "saved"})
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
	r.Post("/settings", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func TestStackCommitsSessionBeforeRedirect(t *testing.T) {
	rr := httptest.NewRecorder()
	newStackRouter(t).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/flash", nil))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "kpi_test", cookies[0].Name)
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestStackRejectsUnsafeMethodWithoutToken(t *testing.T) {
	router := newStackRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/settings", strings.NewReader("action=add_group")))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.NotEqual(t, "application/problem+json", rr.Header().Get("Content-Type"))

	req := httptest.NewRequest(http.MethodPost, "/settings", nil)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "csrf token")
}
