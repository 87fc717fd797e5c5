package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/factorykpi/factorykpi/internal/audit"
	"github.com/factorykpi/factorykpi/internal/auth"
	"github.com/factorykpi/factorykpi/internal/shared"
	"github.com/factorykpi/factorykpi/internal/view"
	_ "github.com/factorykpi/factorykpi/testing"
)

type stubRepo struct {
	user     *auth.User
	sessions map[string]int64
	actions  []string
	touched  int
}

func (s *stubRepo) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	if s.user == nil || s.user.Username != username {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	s.touched++
	return nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]int64)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func (s *stubRepo) RecordAction(ctx context.Context, userID int64, action string) error {
	s.actions = append(s.actions, action)
	return nil
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	handler := auth.NewHandler(nil, auth.NewService(repo), templates, sessionManager, csrfManager)
	return handler, sessionManager
}

func operatorRepo(t *testing.T) *stubRepo {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	return &stubRepo{user: &auth.User{ID: 7, Username: "operator", PasswordHash: string(hashed), IsActive: true}}
}

func postLogin(t *testing.T, handler *auth.Handler, sessions *shared.SessionManager, form url.Values) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)
	require.NoError(t, sessions.Commit(ctx, res, req, sess))
	return res, sess
}

func TestLoginPage(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/login?next=/inventory/", nil)
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	handler.ShowLoginForTest(res, req)
	require.NoError(t, sessionManager.Commit(ctx, res, req, sess))

	assert.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "<form")
	assert.Contains(t, body, `name="username"`)
	assert.Contains(t, body, `value="/inventory/"`)
	assert.NotEmpty(t, sess.Get(shared.CSRFSessionKey))
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := operatorRepo(t)
	handler, sessionManager := newAuthHandler(t, repo)

	res, sess := postLogin(t, handler, sessionManager, url.Values{
		"username": {"operator"},
		"password": {"wrongpass"},
	})

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid username or password")
	assert.Empty(t, sess.User())
	assert.Empty(t, repo.actions)
}

func TestLoginMissingFields(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, operatorRepo(t))

	res, _ := postLogin(t, handler, sessionManager, url.Values{"username": {"operator"}})

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Password")
}

func TestLoginSuccessRedirectsToNext(t *testing.T) {
	repo := operatorRepo(t)
	handler, sessionManager := newAuthHandler(t, repo)

	res, sess := postLogin(t, handler, sessionManager, url.Values{
		"username": {"operator"},
		"password": {"correctpass"},
		"next":     {"/reports?period=week"},
	})

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/reports?period=week", res.Header().Get("Location"))
	assert.Equal(t, "7", sess.User())
	assert.Equal(t, []string{audit.ActionLogin}, repo.actions)
	assert.Equal(t, 1, repo.touched)
	assert.Contains(t, repo.sessions, sess.ID)
}

func TestLoginInactiveUserRejected(t *testing.T) {
	repo := operatorRepo(t)
	repo.user.IsActive = false
	handler, sessionManager := newAuthHandler(t, repo)

	res, _ := postLogin(t, handler, sessionManager, url.Values{
		"username": {"operator"},
		"password": {"correctpass"},
	})

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Zero(t, repo.touched)
}

func TestLogoutRecordsActionAndRedirects(t *testing.T) {
	repo := operatorRepo(t)
	handler, sessionManager := newAuthHandler(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("7")
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	handler.HandleLogoutForTest(res, req)
	require.NoError(t, sessionManager.Commit(ctx, res, req, sess))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login", res.Header().Get("Location"))
	assert.Equal(t, []string{audit.ActionLogout}, repo.actions)
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                    "/",
		"/inventory/":         "/inventory/",
		"/reports?page=2":     "/reports?page=2",
		"https://evil.test/x": "/",
		"//evil.test":         "/",
		"/\\evil.test":        "/",
		"relative":            "/",
		"/login":              "/",
	}
	for in, want := range cases {
		assert.Equal(t, want, auth.SafeNext(in), in)
	}
}
