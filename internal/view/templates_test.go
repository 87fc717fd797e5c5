package view

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factorykpi/factorykpi/internal/shared"
)

func TestNewEngineParsesEmbeddedTemplates(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	for _, name := range []string{"pages/dashboard.html", "pages/inventory.html", "pages/settings.html", "partials/kpi_cards.html"} {
		assert.NotNil(t, engine.templates.Lookup(name), name)
	}
}

func TestFormatNumberGroupsThousands(t *testing.T) {
	assert.Equal(t, "4,321", formatNumber(int64(4321)))
	assert.Equal(t, "1,234.50", formatNumber(1234.5))
	assert.Equal(t, "7", formatNumber(7))
	assert.Equal(t, "n/a", formatNumber("n/a"))
}

func TestNewTemplateDataPopsFlashAndIssuesToken(t *testing.T) {
	sess := &shared.Session{}
	sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: "saved"})
	ctx := shared.ContextWithSession(context.Background(), sess)
	ctx = shared.ContextWithPrincipal(ctx, shared.Principal{ID: 4, Username: "manager"})
	req := httptest.NewRequest(http.MethodGet, "/settings", nil).WithContext(ctx)

	td := NewTemplateData(req, shared.NewCSRFManager("secret"), "Settings", nil)
	require.NotNil(t, td.Flash)
	assert.Equal(t, "saved", td.Flash.Message)
	assert.NotEmpty(t, td.CSRFToken)
	assert.Equal(t, "/settings", td.CurrentPath)
	require.NotNil(t, td.User)
	assert.Equal(t, "manager", td.User.Username)

	again := NewTemplateData(req, shared.NewCSRFManager("secret"), "Settings", nil)
	assert.Nil(t, again.Flash)
	assert.Equal(t, td.CSRFToken, again.CSRFToken)
}

func TestRenderStatusUnknownTemplateWritesNothing(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.RenderStatus(rr, http.StatusTeapot, "pages/missing.html", TemplateData{})
	require.Error(t, err)
	assert.Empty(t, rr.Body.String())
	assert.Equal(t, http.StatusOK, rr.Code)
}
