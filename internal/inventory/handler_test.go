package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factorykpi/factorykpi/internal/masterdata"
	"github.com/factorykpi/factorykpi/internal/reporting"
	"github.com/factorykpi/factorykpi/internal/view"
	_ "github.com/factorykpi/factorykpi/testing"
)

type stubReference struct{}

func (stubReference) ListShops(context.Context) ([]masterdata.Shop, error) {
	return []masterdata.Shop{{ID: 4, Name: "Paint shop"}}, nil
}

func (stubReference) ListCategories(context.Context) ([]masterdata.Category, error) {
	return []masterdata.Category{{ID: 2, Name: "Panels"}}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	h := NewHandler(nil, NewService(sampleRepo(), nil, nil), stubReference{}, templates, nil)
	r := chi.NewRouter()
	r.Route("/inventory", h.MountRoutes)
	return r
}

func TestDataAndPageShareSummary(t *testing.T) {
	router := newTestRouter(t)

	dataRR := httptest.NewRecorder()
	router.ServeHTTP(dataRR, httptest.NewRequest(http.MethodGet, "/inventory/data?period=week&category=2", nil))
	require.Equal(t, http.StatusOK, dataRR.Code)

	var payload Payload
	require.NoError(t, json.Unmarshal(dataRR.Body.Bytes(), &payload))
	assert.Equal(t, int64(75), payload.Summary.TotalValue)

	pageRR := httptest.NewRecorder()
	router.ServeHTTP(pageRR, httptest.NewRequest(http.MethodGet, "/inventory?period=week&category=2", nil))
	require.Equal(t, http.StatusOK, pageRR.Code)

	summary, err := json.Marshal(payload.Summary)
	require.NoError(t, err)
	body := pageRR.Body.String()
	assert.Contains(t, body, `"summary":`+string(summary))
	assert.Contains(t, body, "Paint shop")
	assert.Contains(t, body, `<option value="2" selected>Panels</option>`)
	assert.Contains(t, body, "Bolt")
}

func TestDataDefaultsToMonth(t *testing.T) {
	router := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/inventory/data?period=decade&shop=abc", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var payload Payload
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, "month", string(payload.Filters.Period))
	assert.Equal(t, "2025-03-31", payload.Filters.DateFrom)
	assert.Empty(t, payload.Filters.ShopIDs)
}

type failingPayload struct{}

func (failingPayload) Payload(context.Context, reporting.Filters) (Payload, error) {
	return Payload{}, errors.New("relation inventory_records does not exist")
}

func TestDataFailureIsProblemJSON(t *testing.T) {
	h := NewHandler(nil, failingPayload{}, stubReference{}, nil, nil)
	r := chi.NewRouter()
	r.Route("/inventory", h.MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/inventory/data", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "inventory payload unavailable")
	assert.NotContains(t, rr.Body.String(), "inventory_records")
}
