package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestInstrumentHandler_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Post("/auto-sell/item/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auto-sell/item/"+id, nil))
		require.Equal(t, http.StatusConflict, rec.Code)
	}

	body := scrape(t)
	assert.Contains(t, body, `packvault_http_requests_total{method="POST",path="/auto-sell/item/{id}",status="409"} 2`)
	assert.NotContains(t, body, `path="/auto-sell/item/a"`)
}

func TestRecordItemOutcome(t *testing.T) {
	RecordItemOutcome("single", "sold", 25)
	RecordItemOutcome("single", "skipped", 0)

	body := scrape(t)
	assert.Contains(t, body, `packvault_autosell_credits_granted_total{mode="single"} 25`)
	assert.Contains(t, body, `packvault_autosell_item_outcomes_total{mode="single",status="skipped"} 1`)
}

func TestHandler_ExposesCollectors(t *testing.T) {
	RecordBatchRun(0)
	RecordJobRun("cache_sweep", true)

	body := scrape(t)
	assert.Contains(t, body, "packvault_autosell_batch_runs_total 1")
	assert.Contains(t, body, `packvault_scheduler_job_runs_total{job="cache_sweep",success="true"} 1`)
}
