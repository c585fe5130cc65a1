package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"packvault-autosell-api/internal/handler"
	"packvault-autosell-api/internal/lock"
	"packvault-autosell-api/internal/middleware"
	"packvault-autosell-api/internal/model"
	"packvault-autosell-api/internal/pricing"
	"packvault-autosell-api/internal/repository"
	"packvault-autosell-api/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "svc-key"

func newTestRouter(t *testing.T, limiter *middleware.RateLimiter) http.Handler {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	resolver, err := pricing.NewResolver(nil, nil, zerolog.Nop())
	require.NoError(t, err)
	engine := service.NewAutoSellService(store, store, resolver, lock.NewLocalLocker(time.Second), nil,
		service.AutoSellConfig{Policy: service.SelectionPolicy{MaxRarity: model.RarityMythic}}, zerolog.Nop())

	health := handler.New("packvault-autosell", "test")
	health.AddCheck("database", store)

	return New(Config{
		Handler:          health,
		AutoSellHandler:  handler.NewAutoSellHandler(engine, zerolog.Nop()),
		InventoryHandler: handler.NewInventoryHandler(service.NewInventoryService(store, store)),
		AdminHandler:     handler.NewAdminHandler(store, store.Dialect(), "login-key"),
		AuthMiddleware:   middleware.NewAuthMiddleware(middleware.AuthConfig{APIKeys: []string{testKey}}),
		RateLimiter:      limiter,
		Logger:           zerolog.Nop(),
	})
}

func serve(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicEndpoints(t *testing.T) {
	r := newTestRouter(t, nil)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/status", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/health", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/ready", nil).Code)

	rec := serve(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "packvault_http_requests_total")
}

func TestRouter_AutoSellRequiresAuth(t *testing.T) {
	r := newTestRouter(t, nil)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/api/v1/auto-sell/preview", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/api/v1/auto-sell/preview",
		map[string]string{"X-API-Key": "wrong", "X-User-ID": "u1"}).Code)

	// A valid key without a user is still rejected by the handler.
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/api/v1/auto-sell/preview",
		map[string]string{"X-API-Key": testKey}).Code)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/api/v1/auto-sell/preview",
		map[string]string{"X-API-Key": testKey, "X-User-ID": "u1"}).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/auto-sell/stats?days=30",
		map[string]string{"Authorization": "Bearer " + testKey, "X-User-ID": "u1"}).Code)
}

func TestRouter_RateLimitsPerUser(t *testing.T) {
	limits := middleware.DefaultLimits
	limits[middleware.ActionProcess] = middleware.Limit{Every: time.Hour, Burst: 1}
	r := newTestRouter(t, middleware.NewRateLimiter(limits, time.Minute))

	u1 := map[string]string{"X-API-Key": testKey, "X-User-ID": "u1"}
	u2 := map[string]string{"X-API-Key": testKey, "X-User-ID": "u2"}

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/api/v1/auto-sell/process", u1).Code)

	rec := serve(r, http.MethodPost, "/api/v1/auto-sell/process", u1)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/api/v1/auto-sell/process", u2).Code)
	// Other actions keep their own budget.
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/api/v1/auto-sell/preview", u1).Code)
}

func TestRouter_AdminLoginKey(t *testing.T) {
	r := newTestRouter(t, nil)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/admin/stats",
		map[string]string{"X-Login-Key": "login-key"}).Code)
	assert.NotEqual(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/admin/stats",
		map[string]string{"X-Login-Key": "nope"}).Code)
}
