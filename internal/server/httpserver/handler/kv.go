package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/yndnr/jsonkeep-go/internal/core/service"
	"github.com/yndnr/jsonkeep-go/pkg/jsonstore"
)

// handleGetValue handles GET /v1/stores/{store}/keys/{key}.
//
// The value's content fingerprint is returned as an ETag; a matching
// If-None-Match answers 304 without a body.
//
// @design DS-0301
func (h *Handler) handleGetValue(w http.ResponseWriter, r *http.Request) {
	storeName := r.PathValue("store")
	key := r.PathValue("key")
	if key == "" {
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1002", "key is required", nil)
		return
	}

	resp, err := h.storeSvc.Get(r.Context(), &service.GetValueRequest{
		Store: storeName,
		Key:   key,
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

	h.writeJSON(w, r, http.StatusOK, KeyValueResponse{
		Store: storeName,
		Key:   key,
		Value: resp.Value,
	})
}

// handleSetValue handles PUT /v1/stores/{store}/keys/{key}.
//
// The request body is the raw JSON value to store. Creation answers
// 201, replacement 200, both with the new fingerprint as ETag.
//
// @design DS-0301
func (h *Handler) handleSetValue(w http.ResponseWriter, r *http.Request) {
	storeName := r.PathValue("store")
	key := r.PathValue("key")
	if key == "" {
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1002", "key is required", nil)
		return
	}

	var value any
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		if errors.Is(err, io.EOF) {
			h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1002", "request body is required", nil)
			return
		}
		h.writeError(w, r, http.StatusBadRequest, "JK-SYS-4000", "request body is not valid json", nil)
		return
	}

	resp, err := h.storeSvc.Set(r.Context(), &service.SetValueRequest{
		Store: storeName,
		Key:   key,
		Value: value,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	w.Header().Set("ETag", etagFor(resp.Fingerprint))
	h.writeJSON(w, r, status, SetValueResponse{
		Store:   storeName,
		Key:     key,
		Created: resp.Created,
	})
}

// handleDeleteValue handles DELETE /v1/stores/{store}/keys/{key}.
// Deleting an absent key is not an error; the response reports whether
// the key existed.
//
// @design DS-0301
func (h *Handler) handleDeleteValue(w http.ResponseWriter, r *http.Request) {
	storeName := r.PathValue("store")
	key := r.PathValue("key")
	if key == "" {
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1002", "key is required", nil)
		return
	}

	resp, err := h.storeSvc.Delete(r.Context(), &service.DeleteValueRequest{
		Store: storeName,
		Key:   key,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, DeleteValueResponse{
		Deleted: resp.Deleted,
	})
}

// handleListEntries handles GET /v1/stores/{store}/entries.
//
// Query parameters: mode (entries|keys|values, default entries),
// prefix, page, page_size.
//
// @design DS-0301
func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	storeName := r.PathValue("store")
	query := r.URL.Query()

	mode := query.Get("mode")
	if mode == "" {
		mode = "entries"
	}
	if mode != "entries" && mode != "keys" && mode != "values" {
		h.writeError(w, r, http.StatusBadRequest, "JK-ARG-1001", "mode must be one of: entries, keys, values", nil)
		return
	}

	svcReq := &service.ListEntriesRequest{
		Store:    storeName,
		Prefix:   query.Get("prefix"),
		KeysOnly: mode == "keys",
	}
	if page := query.Get("page"); page != "" {
		var p int
		if _, err := fmt.Sscanf(page, "%d", &p); err == nil && p > 0 {
			svcReq.Page = p
		}
	}
	if pageSize := query.Get("page_size"); pageSize != "" {
		var ps int
		if _, err := fmt.Sscanf(pageSize, "%d", &ps); err == nil && ps > 0 {
			svcReq.PageSize = ps
		}
	}

	resp, err := h.storeSvc.ListEntries(r.Context(), svcReq)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, EntriesResponse{
		Mode:     mode,
		Items:    entriesForMode(mode, resp.Items),
		Total:    resp.Total,
		Page:     resp.Page,
		PageSize: resp.PageSize,
	})
}

// entriesForMode projects a page of entries into the requested shape.
func entriesForMode(mode string, entries []jsonstore.Entry) any {
	switch mode {
	case "keys":
		keys := make([]string, len(entries))
		for i, e := range entries {
			keys[i] = e.Key
		}
		return keys
	case "values":
		values := make([]any, len(entries))
		for i, e := range entries {
			values[i] = e.Value
		}
		return values
	default:
		return entries
	}
}
