package server

import (
	"net/http"
	"time"

	"audioshare/core/media"
)

type healthResponse struct {
	Status    string             `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
	Roots     []media.RootStatus `json:"roots"`
}

// HealthHandler 至少一个根目录可用时返回 200，否则 503
type HealthHandler struct {
	monitor *media.RootMonitor
}

func NewHealthHandler(monitor *media.RootMonitor) *HealthHandler {
	return &HealthHandler{monitor: monitor}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Roots:     h.monitor.Status(),
	}
	status := http.StatusOK
	if !h.monitor.AnyAvailable() {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
