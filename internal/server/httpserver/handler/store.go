package handler

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"time"

	"github.com/yndnr/jsonkeep-go/internal/core/domain"
	"github.com/yndnr/jsonkeep-go/internal/core/service"
)

// handleListStores handles GET /v1/stores.
//
// @design DS-0301
func (h *Handler) handleListStores(w http.ResponseWriter, r *http.Request) {
	resp, err := h.storeSvc.ListStores(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	items := make([]StoreResponse, len(resp.Items))
	for i, info := range resp.Items {
		items[i] = storeToResponse(info)
	}

	h.writeJSON(w, r, http.StatusOK, ListStoresResponse{
		Items: items,
		Total: resp.Total,
	})
}

// handleAttachStore handles POST /v1/stores.
//
// @design DS-0301
func (h *Handler) handleAttachStore(w http.ResponseWriter, r *http.Request) {
	var req AttachStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "JK-SYS-4000", "invalid request body", nil)
		return
	}

	if req.Name == "" {
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1002", "name is required", nil)
		return
	}
	name := domain.NormalizeStoreName(req.Name)
	if name == "" {
		h.writeError(w, r, http.StatusBadRequest, "JK-STOR-4001",
			"store name must match [a-z0-9][a-z0-9_-]* and be at most 64 characters", nil)
		return
	}

	// Default the backing file and snapshot directory from server config
	path := req.Path
	if path == "" {
		path = h.cfg.StorePath(name)
	}
	svcReq := &service.AttachStoreRequest{
		Name:       name,
		Path:       path,
		Indented:   req.Indented,
		AttachedBy: attachedBy(r),
	}
	if req.Snapshots != nil {
		svcReq.Snapshots = *req.Snapshots
		if svcReq.Snapshots.Enabled && svcReq.Snapshots.Dir == "" {
			svcReq.Snapshots.Dir = filepath.Join(h.cfg.SnapshotDir(), name)
		}
	}

	resp, err := h.storeSvc.Attach(r.Context(), svcReq)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, storeToResponse(resp.Store))
}

// handleDescribeStore handles GET /v1/stores/{store}.
//
// The content fingerprint doubles as an ETag so pollers can skip
// unchanged stats with If-None-Match.
//
// @design DS-0301
func (h *Handler) handleDescribeStore(w http.ResponseWriter, r *http.Request) {
	storeName := r.PathValue("store")
	if storeName == "" {
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1002", "store is required", nil)
		return
	}

	resp, err := h.storeSvc.Describe(r.Context(), &service.DescribeStoreRequest{
		Name: storeName,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("ETag", etagFor(resp.Fingerprint))
	if etagMatches(r.Header.Get("If-None-Match"), resp.Fingerprint) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.writeJSON(w, r, http.StatusOK, StoreStatsResponse{
		Store:           storeToResponse(resp.Store),
		Keys:            resp.Stats.Keys,
		Reads:           resp.Stats.Reads,
		Writes:          resp.Stats.Writes,
		Deletes:         resp.Stats.Deletes,
		Snapshots:       resp.Stats.Snapshots,
		Fingerprint:     resp.Fingerprint,
		SchedulerHalted: resp.SchedulerHalted,
		SchedulerError:  resp.SchedulerError,
	})
}

// handleDetachStore handles DELETE /v1/stores/{store}. The backing file
// stays on disk.
//
// @design DS-0301
func (h *Handler) handleDetachStore(w http.ResponseWriter, r *http.Request) {
	storeName := r.PathValue("store")
	if storeName == "" {
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1002", "store is required", nil)
		return
	}

	if err := h.storeSvc.Detach(r.Context(), &service.DetachStoreRequest{
		Name: storeName,
	}); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

// handleFlushStore handles POST /v1/stores/{store}/flush.
//
// @design DS-0301
func (h *Handler) handleFlushStore(w http.ResponseWriter, r *http.Request) {
	storeName := r.PathValue("store")
	if storeName == "" {
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1002", "store is required", nil)
		return
	}

	resp, err := h.storeSvc.Flush(r.Context(), &service.FlushStoreRequest{
		Store: storeName,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, FlushStoreResponse{
		Removed: resp.Removed,
	})
}

// handlePersistStore handles POST /v1/stores/{store}/persist.
//
// @design DS-0301
func (h *Handler) handlePersistStore(w http.ResponseWriter, r *http.Request) {
	storeName := r.PathValue("store")
	if storeName == "" {
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1002", "store is required", nil)
		return
	}

	if err := h.storeSvc.Persist(r.Context(), storeName); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

// handleReloadStore handles POST /v1/stores/{store}/reload. Unpersisted
// in-memory changes are discarded.
//
// @design DS-0301
func (h *Handler) handleReloadStore(w http.ResponseWriter, r *http.Request) {
	storeName := r.PathValue("store")
	if storeName == "" {
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1002", "store is required", nil)
		return
	}

	if err := h.storeSvc.Reload(r.Context(), storeName); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

// attachedBy names the credential that attached a store, for the
// descriptor's audit field.
func attachedBy(r *http.Request) string {
	if keyID := requestKeyID(r); keyID != "" {
		return keyID
	}
	return "anonymous"
}

// storeToResponse converts a domain.StoreInfo to a StoreResponse.
func storeToResponse(info *domain.StoreInfo) StoreResponse {
	return StoreResponse{
		Name:       info.Name,
		Path:       info.Path,
		Indented:   info.Indented,
		Snapshots:  info.Snapshots,
		AttachedAt: time.UnixMilli(info.AttachedAt),
		AttachedBy: info.AttachedBy,
	}
}
