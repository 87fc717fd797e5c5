package settings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factorykpi/factorykpi/internal/rbac"
	"github.com/factorykpi/factorykpi/internal/shared"
	"github.com/factorykpi/factorykpi/internal/view"
)

type staticPermissions []rbac.Permission

func (p staticPermissions) ListPermissions(context.Context) ([]rbac.Permission, error) {
	return p, nil
}

func newTestHandler(t *testing.T, repo Repository) *Handler {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	perms := staticPermissions{
		{ID: 1, AppLabel: "dashboard", Codename: "view_kpirecord", Name: "Can view KPI record"},
		{ID: 2, AppLabel: "dashboard", Codename: "manage_settings", Name: "Can manage settings"},
	}
	return NewHandler(nil, newTestService(repo), perms, templates, shared.NewCSRFManager("secret"))
}

func adminRequest(method, target string, form url.Values) (*http.Request, *shared.Session) {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	sess := &shared.Session{ID: "test"}
	sess.SetUser("1")
	ctx := shared.ContextWithSession(req.Context(), sess)
	ctx = shared.ContextWithPrincipal(ctx, shared.Principal{ID: 1, Username: "admin", IsAdmin: true})
	return req.WithContext(ctx), sess
}

func TestSettingsPageRenders(t *testing.T) {
	h := newTestHandler(t, newMemRepo())
	req, sess := adminRequest(http.MethodGet, "/settings", nil)
	require.NoError(t, sess.SetJSON(DataSourcesKey, DataSources{OneC: OneCSource{Path: "/srv/1c", Schedule: "weekly"}}))

	rr := httptest.NewRecorder()
	h.show(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "operator")
	assert.Contains(t, body, "Manager")
	assert.Contains(t, body, "Can manage settings")
	assert.Contains(t, body, "/srv/1c")
	assert.Contains(t, body, "3.00 MB")
	assert.Equal(t, 1, strings.Count(body, `value="delete_group"`))
}

func TestSettingsSubmitFlashes(t *testing.T) {
	cases := []struct {
		name string
		form url.Values
		kind string
		msg  string
	}{
		{"unknown", url.Values{"action": {"explode"}}, shared.FlashWarning, "Unknown action."},
		{"protected", url.Values{"action": {ActionDeleteGroup}, "group_id": {"10"}}, shared.FlashError, `The system group "Administrator" cannot be deleted.`},
		{"missing", url.Values{"action": {ActionDeleteUser}, "user_id": {"404"}}, shared.FlashError, "user 404: not found"},
		{"created", url.Values{"action": {ActionCreateGroup}, "name": {"Specialist"}}, shared.FlashSuccess, "Group Specialist created."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t, newMemRepo())
			req, sess := adminRequest(http.MethodPost, "/settings", tc.form)
			rr := httptest.NewRecorder()
			h.submit(rr, req)

			assert.Equal(t, http.StatusSeeOther, rr.Code)
			assert.Equal(t, "/settings", rr.Header().Get("Location"))
			flash := sess.PopFlash()
			require.NotNil(t, flash)
			assert.Equal(t, tc.kind, flash.Kind)
			assert.Equal(t, tc.msg, flash.Message)
		})
	}
}

func TestSettingsSubmitGenericFailure(t *testing.T) {
	repo := newMemRepo()
	repo.failOn = "SetUserGroup"
	h := newTestHandler(t, repo)
	req, sess := adminRequest(http.MethodPost, "/settings", url.Values{
		"action": {ActionUpdateUser}, "user_id": {"2"}, "username": {"operator"},
	})
	rr := httptest.NewRecorder()
	h.submit(rr, req)

	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Action failed: SetUserGroup exploded", flash.Message)
}

func TestSettingsSaveDataSourcesUsesSession(t *testing.T) {
	h := newTestHandler(t, newMemRepo())
	req, sess := adminRequest(http.MethodPost, "/settings", url.Values{
		"action": {ActionSaveDataSources}, "source_1c_enabled": {"on"}, "source_1c_path": {"/mnt/1c"},
	})
	rr := httptest.NewRecorder()
	h.submit(rr, req)

	var stored DataSources
	ok, err := sess.GetJSON(DataSourcesKey, &stored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/mnt/1c", stored.OneC.Path)
	assert.True(t, stored.OneC.Enabled)
}
