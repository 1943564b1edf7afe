package handler

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"consign-review-api/internal/repository"
	"consign-review-api/internal/service"
	"consign-review-api/pkg/response"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// SessionCounter reports live review sessions.
type SessionCounter interface {
	CountSessions(ctx context.Context) (int64, error)
}

// AdminConfig wires the admin handler.
type AdminConfig struct {
	Sessions  SessionCounter
	AuditRepo repository.AuditRepository
	Breakers  func() map[string]string
	Cleanup   func() *service.CleanupRun
	DBType    string
	CacheType string
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	cfg       AdminConfig
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	return &AdminHandler{
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.cfg.DBType
	stats["cache_type"] = h.cfg.CacheType

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
		"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
		"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
		"heap_alloc_mb":  float64(memStats.HeapAlloc) / 1024 / 1024,
		"heap_inuse_mb":  float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":         memStats.NumGC,
		"goroutines":     runtime.NumGoroutine(),
	}

	// Review sessions
	if h.cfg.Sessions != nil {
		count, err := h.cfg.Sessions.CountSessions(ctx)
		if err == nil {
			stats["sessions"] = map[string]interface{}{
				"open":   count,
				"status": "connected",
			}
		} else {
			stats["sessions"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	}

	// Audit store
	if h.cfg.AuditRepo != nil {
		auditStats, err := h.cfg.AuditRepo.GetStats(ctx)
		if err == nil {
			auditStats["status"] = "connected"
			stats["audit"] = auditStats
		} else {
			stats["audit"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["audit"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	if h.cfg.Cleanup != nil {
		if run := h.cfg.Cleanup(); run != nil {
			stats["audit_cleanup"] = run
		}
	}

	if h.cfg.Breakers != nil {
		stats["circuit_breakers"] = h.cfg.Breakers()
	}

	// Runtime info
	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// ListAudit handles GET /api/v1/admin/audit
func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.cfg.AuditRepo == nil {
		response.JSONWithMeta(w, http.StatusOK, []interface{}{}, 1, 0, 0)
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	filter := repository.AuditFilter{
		LineItemID: q.Get("line_item_id"),
		ShopID:     q.Get("shop_id"),
		Action:     q.Get("action"),
	}

	records, total, err := h.cfg.AuditRepo.ListDispatches(r.Context(), filter, limit, (page-1)*limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	response.JSONWithMeta(w, http.StatusOK, records, page, limit, total)
}
