package handler

import (
	"net/http"
	"time"
)

// handleHealth handles GET /healthz.
//
// @design DS-0301
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /readyz. The server is ready once the store
// service is wired, so this reports the attached store count as a
// liveness detail.
//
// @design DS-0301
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	stores := 0
	if h.storeSvc != nil {
		if resp, err := h.storeSvc.ListStores(r.Context()); err == nil {
			stores = resp.Total
		}
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"status": "ready",
		"stores": stores,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
