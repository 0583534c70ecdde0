package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/yndnr/jsonkeep-go/internal/core/service"
)

// handleCreateSnapshot handles POST /v1/stores/{store}/snapshots.
//
// The body is optional; an empty body snapshots into the store's policy
// directory.
//
// @design DS-0301
func (h *Handler) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	storeName := r.PathValue("store")
	if storeName == "" {
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1002", "store is required", nil)
		return
	}

	var req CreateSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, r, http.StatusBadRequest, "JK-SYS-4000", "invalid request body", nil)
		return
	}

	resp, err := h.storeSvc.CreateSnapshot(r.Context(), &service.CreateSnapshotRequest{
		Store:    storeName,
		Dir:      req.Dir,
		Indented: req.Indented,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, CreateSnapshotResponse{
		File:     resp.File,
		Dir:      resp.Dir,
		Retained: resp.Retained,
	})
}

// handleListSnapshots handles GET /v1/stores/{store}/snapshots.
//
// @design DS-0301
func (h *Handler) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	storeName := r.PathValue("store")
	if storeName == "" {
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1002", "store is required", nil)
		return
	}

	resp, err := h.storeSvc.ListSnapshots(r.Context(), &service.ListSnapshotsRequest{
		Store: storeName,
		Dir:   r.URL.Query().Get("dir"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	items := make([]SnapshotFileResponse, len(resp.Items))
	for i, s := range resp.Items {
		items[i] = SnapshotFileResponse{
			File:       s.File,
			Size:       s.Size,
			ModifiedAt: time.UnixMilli(s.ModifiedAt),
		}
	}

	h.writeJSON(w, r, http.StatusOK, ListSnapshotsResponse{
		Items: items,
		Total: resp.Total,
	})
}
