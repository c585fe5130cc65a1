package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_PerUserAndAction(t *testing.T) {
	limits := DefaultLimits
	limits[ActionProcess] = Limit{Every: time.Hour, Burst: 1}
	rl := NewRateLimiter(limits, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow(ActionProcess, "u1"))
	assert.False(t, rl.Allow(ActionProcess, "u1"))
	assert.True(t, rl.Allow(ActionProcess, "u2"))
	assert.True(t, rl.Allow(ActionPreview, "u1"))

	now = now.Add(time.Hour)
	assert.True(t, rl.Allow(ActionProcess, "u1"))
}

func TestRateLimiter_Middleware(t *testing.T) {
	limits := DefaultLimits
	limits[ActionSellItem] = Limit{Every: time.Hour, Burst: 1}
	rl := NewRateLimiter(limits, time.Minute)
	h := rl.Limit(ActionSellItem)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auto-sell/item/x", nil)
		req = req.WithContext(WithIdentity(req.Context(), &Identity{UserID: "u1"}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send().Code)
	rec := send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(DefaultLimits, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow(ActionStats, "old")
	now = now.Add(30 * time.Second)
	rl.Allow(ActionStats, "fresh")
	require.Equal(t, 2, rl.Len())

	now = now.Add(45 * time.Second)
	assert.Equal(t, 1, rl.Sweep())
	assert.Equal(t, 1, rl.Len())
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "sell_item", ActionSellItem.String())
	assert.Equal(t, "unknown", Action(99).String())
}
