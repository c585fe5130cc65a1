package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"packvault-autosell-api/pkg/uid"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	inbound := uid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", inbound)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, inbound, seen)
	assert.Equal(t, inbound, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "evil\nline")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.True(t, uid.IsValid(seen))
	assert.NotEqual(t, "evil\nline", seen)
}
