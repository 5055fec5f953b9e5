package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldledger/internal/app"
	"coldledger/internal/core/id"
	"coldledger/internal/infrastructure/http/v1/middleware"
	"coldledger/internal/infrastructure/numerator"
	"coldledger/internal/infrastructure/storage/memory"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	repos := app.MemoryRepositories(memory.NewStore(), numerator.NewLocal())
	return NewRouter(RouterConfig{
		Services:     app.NewServices(repos, app.DefaultOptions()),
		Driver:       "memory",
		DefaultActor: "clerk",
		Version:      "test",
	})
}

func do(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(t, r, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	checks, ok := decode(t, w)["checks"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "memory", checks["storage"])
}

func TestParties_CreateGetAndDuplicate(t *testing.T) {
	r := newTestRouter(t)

	body := map[string]any{"code": "C-01", "name": "Harbour Foods", "roles": []string{"customer"}}
	w := do(t, r, http.MethodPost, "/api/v1/parties", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	partyID, _ := created["id"].(string)
	require.NotEmpty(t, partyID)
	assert.Equal(t, []any{"Customer"}, created["roleLabels"])

	w = do(t, r, http.MethodGet, "/api/v1/parties/"+partyID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Harbour Foods", decode(t, w)["name"])

	w = do(t, r, http.MethodPost, "/api/v1/parties", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/parties", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["totalCount"])
}

func TestParties_ValidationErrors(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/v1/parties", map[string]any{"name": "No code"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])

	w = do(t, r, http.MethodPost, "/api/v1/parties",
		map[string]any{"code": "X", "name": "X", "roles": []string{"pirate"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/parties/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/parties/"+id.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["code"])
}

func TestStockOpening_RecordsActor(t *testing.T) {
	r := newTestRouter(t)
	warehouseID, productID := id.New(), id.New()

	w := do(t, r, http.MethodPost, "/api/v1/stocks/opening", map[string]any{
		"warehouseId": warehouseID.String(),
		"productId":   productID.String(),
		"quantity":    "12.5",
		"reason":      "initial count",
	}, middleware.HeaderActorID, "alice")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	st := decode(t, w)
	stockID, _ := st["id"].(string)
	require.NotEmpty(t, stockID)
	qty, err := decimal.NewFromString(toString(st["quantity"]))
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.RequireFromString("12.5")))

	w = do(t, r, http.MethodGet, "/api/v1/stocks/flows?stockId="+stockID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	items, ok := decode(t, w)["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	flow := items[0].(map[string]any)
	assert.Equal(t, "alice", flow["actorId"])

	// Without the header the configured default actor is used.
	w = do(t, r, http.MethodPost, "/api/v1/stocks/opening", map[string]any{
		"warehouseId": warehouseID.String(),
		"productId":   id.New().String(),
		"quantity":    "1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	otherID, _ := decode(t, w)["id"].(string)

	w = do(t, r, http.MethodGet, "/api/v1/stocks/flows?stockId="+otherID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	items, _ = decode(t, w)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "clerk", items[0].(map[string]any)["actorId"])
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return decimal.NewFromFloat(x).String()
	default:
		return ""
	}
}
