package handler

import (
	"crypto/subtle"
	"net/http"
	"runtime"
	"sort"
	"time"

	"packvault-autosell-api/internal/middleware"
	"packvault-autosell-api/internal/repository"
	"packvault-autosell-api/pkg/apierror"
	"packvault-autosell-api/pkg/response"

	"github.com/shirou/gopsutil/v3/mem"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	store     repository.Store
	dbType    string
	loginKey  string
	gauges    map[string]func() int
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(store repository.Store, dbType, loginKey string) *AdminHandler {
	return &AdminHandler{
		store:     store,
		dbType:    dbType,
		loginKey:  loginKey,
		gauges:    make(map[string]func() int),
		startTime: time.Now(),
	}
}

// AddGauge reports an in-process size (cache entries, held locks) in stats.
func (h *AdminHandler) AddGauge(name string, fn func() int) {
	h.gauges[name] = fn
}

// authorized accepts a matching X-Login-Key, or a trusted service caller.
func (h *AdminHandler) authorized(r *http.Request) bool {
	if id := middleware.GetIdentity(r.Context()); id != nil && id.Service {
		return true
	}
	if h.loginKey == "" {
		return false
	}
	key := r.Header.Get("X-Login-Key")
	return subtle.ConstantTimeCompare([]byte(key), []byte(h.loginKey)) == 1
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		response.Error(w, apierror.Forbidden("invalid login key"))
		return
	}

	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats["host_memory"] = map[string]interface{}{
			"total_mb":     float64(vm.Total) / 1024 / 1024,
			"available_mb": float64(vm.Available) / 1024 / 1024,
			"used_percent": vm.UsedPercent,
		}
	}

	// Store stats
	if h.store != nil {
		storeStats, err := h.store.GetStats(ctx)
		if err == nil {
			storeStats["status"] = "connected"
			stats["store"] = storeStats
		} else {
			stats["store"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["store"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	names := make([]string, 0, len(h.gauges))
	for name := range h.gauges {
		names = append(names, name)
	}
	sort.Strings(names)
	gauges := make(map[string]int, len(names))
	for _, name := range names {
		gauges[name] = h.gauges[name]()
	}
	stats["components"] = gauges

	// Runtime info
	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// LoginRequest is the body of POST /api/v1/admin/login.
type LoginRequest struct {
	Key string `json:"key"`
}

// VerifyLogin handles POST /api/v1/admin/login
func (h *AdminHandler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if apiErr := response.DecodeJSON(w, r, &req); apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	if h.loginKey == "" || subtle.ConstantTimeCompare([]byte(req.Key), []byte(h.loginKey)) != 1 {
		response.Error(w, apierror.Unauthorized("invalid login key"))
		return
	}
	response.OK(w, map[string]string{"status": "ok"})
}

// GetHealth handles GET /api/v1/admin/health
func (h *AdminHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
