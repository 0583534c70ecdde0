package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/yndnr/jsonkeep-go/internal/core/domain"
	"github.com/yndnr/jsonkeep-go/internal/core/service"
	"github.com/yndnr/jsonkeep-go/internal/infra/buildinfo"
	"github.com/yndnr/jsonkeep-go/internal/server/config"
)

// handleAdminStatus handles GET /v1/admin/status.
//
// @design DS-0302
func (h *Handler) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	info := buildinfo.Get()

	stores := 0
	if resp, err := h.storeSvc.ListStores(r.Context()); err == nil {
		stores = resp.Total
	}

	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":         "running",
		"version":        info.Version,
		"commit":         info.Commit,
		"go_version":     info.GoVersion,
		"stores":         stores,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"time":           time.Now().UTC().Format(time.RFC3339),
	})
}

// handleAdminConfig handles GET /v1/admin/config. Secrets are masked
// before the config leaves the process.
//
// @design DS-0302
func (h *Handler) handleAdminConfig(w http.ResponseWriter, r *http.Request) {
	if h.cfg == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "JK-SYS-5030", "configuration not loaded", nil)
		return
	}
	h.writeJSON(w, r, http.StatusOK, config.Sanitize(h.cfg))
}

// handleCreateAPIKey handles POST /v1/admin/apikeys. The plaintext
// secret appears in this response and nowhere else.
//
// @design DS-0302
func (h *Handler) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "JK-SYS-4000", "invalid request body", nil)
		return
	}

	switch {
	case req.Name == "":
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1002", "name is required", nil)
		return
	case req.Role == "":
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1002", "role is required", nil)
		return
	case !domain.IsValidRole(req.Role):
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1001", "invalid role, must be one of: reader, writer, admin", nil)
		return
	}

	resp, err := h.authSvc.CreateAPIKey(r.Context(), &service.CreateAPIKeyRequest{
		Name:        req.Name,
		Role:        req.Role,
		Description: req.Description,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, CreateAPIKeyResponse{
		KeyID:     resp.KeyID,
		Secret:    resp.Secret,
		Name:      resp.Name,
		Role:      resp.Role,
		CreatedAt: resp.CreatedAt,
	})
}

// handleListAPIKeys handles GET /v1/admin/apikeys. Secret hashes never
// leave the service layer; the listing carries metadata only.
//
// @design DS-0302
func (h *Handler) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	resp, err := h.authSvc.ListAPIKeys(r.Context(), &service.ListAPIKeysRequest{
		Role: r.URL.Query().Get("role"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	items := make([]APIKeyResponse, len(resp.Keys))
	for i, key := range resp.Keys {
		items[i] = APIKeyResponse{
			KeyID:       key.KeyID,
			Name:        key.Name,
			Role:        key.Role,
			Description: key.Description,
			Enabled:     key.Enabled,
			CreatedAt:   key.CreatedAt,
			LastUsedAt:  key.LastUsedAt,
		}
	}

	h.writeJSON(w, r, http.StatusOK, ListAPIKeysResponse{Keys: items})
}

// handleDisableAPIKey handles POST /v1/admin/apikeys/{id}/disable.
//
// @design DS-0302
func (h *Handler) handleDisableAPIKey(w http.ResponseWriter, r *http.Request) {
	h.setAPIKeyStatus(w, r, false)
}

// handleEnableAPIKey handles POST /v1/admin/apikeys/{id}/enable.
//
// @design DS-0302
func (h *Handler) handleEnableAPIKey(w http.ResponseWriter, r *http.Request) {
	h.setAPIKeyStatus(w, r, true)
}

// setAPIKeyStatus flips an API key between active and disabled.
func (h *Handler) setAPIKeyStatus(w http.ResponseWriter, r *http.Request, enabled bool) {
	keyID := r.PathValue("id")
	if keyID == "" {
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1002", "key id is required", nil)
		return
	}

	if _, err := h.authSvc.UpdateAPIKeyStatus(r.Context(), &service.UpdateAPIKeyStatusRequest{
		KeyID:   keyID,
		Enabled: enabled,
	}); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]any{"success": true, "enabled": enabled})
}

// handleRotateAPIKey handles POST /v1/admin/apikeys/{id}/rotate. The
// old secret stops working the moment the new one is issued.
//
// @design DS-0302
func (h *Handler) handleRotateAPIKey(w http.ResponseWriter, r *http.Request) {
	keyID := r.PathValue("id")
	if keyID == "" {
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1002", "key id is required", nil)
		return
	}

	resp, err := h.authSvc.RotateAPIKey(r.Context(), &service.RotateAPIKeyRequest{KeyID: keyID})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, RotateAPIKeyResponse{
		KeyID:     resp.KeyID,
		NewSecret: resp.NewSecret,
	})
}
