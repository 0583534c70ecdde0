package handler

import (
	"time"

	"github.com/yndnr/jsonkeep-go/internal/core/domain"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
//
// @design DS-0302 Section 2.1
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"` // Additional error details
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// AttachStoreRequest is the request body for POST /v1/stores.
//
// @design DS-0301
type AttachStoreRequest struct {
	Name string `json:"name"`

	// Path is the backing JSON file. Empty means <storage.root>/<name>.json.
	Path string `json:"path,omitempty"`

	Indented bool `json:"indented,omitempty"`

	// Snapshots enables a periodic snapshot policy for this store. When
	// enabled without a dir, snapshots land under the server snapshot
	// directory in a per-store subdirectory.
	Snapshots *domain.SnapshotPolicy `json:"snapshots,omitempty"`
}

// StoreResponse represents an attached store in API responses.
//
// @design DS-0301
type StoreResponse struct {
	Name       string                `json:"name"`
	Path       string                `json:"path"`
	Indented   bool                  `json:"indented"`
	Snapshots  domain.SnapshotPolicy `json:"snapshots"`
	AttachedAt time.Time             `json:"attached_at"`
	AttachedBy string                `json:"attached_by,omitempty"`
}

// ListStoresResponse is the response body for GET /v1/stores.
//
// @design DS-0301
type ListStoresResponse struct {
	Items []StoreResponse `json:"items"`
	Total int             `json:"total"`
}

// StoreStatsResponse is the response body for GET /v1/stores/{store}.
//
// @design DS-0301
type StoreStatsResponse struct {
	Store       StoreResponse `json:"store"`
	Keys        int           `json:"keys"`
	Reads       uint64        `json:"reads"`
	Writes      uint64        `json:"writes"`
	Deletes     uint64        `json:"deletes"`
	Snapshots   uint64        `json:"snapshots"`
	Fingerprint string        `json:"fingerprint"`

	// SchedulerHalted reports a snapshot scheduler that stopped after a
	// tick failure.
	SchedulerHalted bool   `json:"scheduler_halted,omitempty"`
	SchedulerError  string `json:"scheduler_error,omitempty"`
}

// FlushStoreResponse is the response body for POST /v1/stores/{store}/flush.
//
// @design DS-0301
type FlushStoreResponse struct {
	Removed int `json:"removed"`
}

// KeyValueResponse is the response body for GET /v1/stores/{store}/keys/{key}.
//
// @design DS-0301
type KeyValueResponse struct {
	Store string `json:"store"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// SetValueResponse is the response body for PUT /v1/stores/{store}/keys/{key}.
//
// @design DS-0301
type SetValueResponse struct {
	Store   string `json:"store"`
	Key     string `json:"key"`
	Created bool   `json:"created"`
}

// DeleteValueResponse is the response body for DELETE /v1/stores/{store}/keys/{key}.
//
// @design DS-0301
type DeleteValueResponse struct {
	Deleted bool `json:"deleted"`
}

// EntriesResponse is the response body for GET /v1/stores/{store}/entries.
// Items holds key-value pairs, bare keys, or bare values depending on
// the requested mode.
//
// @design DS-0301
type EntriesResponse struct {
	Mode     string `json:"mode"`
	Items    any    `json:"items"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// CreateSnapshotRequest is the request body for POST /v1/stores/{store}/snapshots.
//
// @design DS-0301
type CreateSnapshotRequest struct {
	// Dir overrides the target directory. Empty uses the store's
	// snapshot policy directory.
	Dir      string `json:"dir,omitempty"`
	Indented bool   `json:"indented,omitempty"`
}

// CreateSnapshotResponse is the response body for POST /v1/stores/{store}/snapshots.
//
// @design DS-0301
type CreateSnapshotResponse struct {
	File     string `json:"file"`
	Dir      string `json:"dir"`
	Retained bool   `json:"retained"`
}

// SnapshotFileResponse represents one snapshot file in list responses.
//
// @design DS-0301
type SnapshotFileResponse struct {
	File       string    `json:"file"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ListSnapshotsResponse is the response body for GET /v1/stores/{store}/snapshots.
//
// @design DS-0301
type ListSnapshotsResponse struct {
	Items []SnapshotFileResponse `json:"items"`
	Total int                    `json:"total"`
}

// CreateAPIKeyRequest is the request body for POST /v1/admin/apikeys.
//
// @design DS-0302
type CreateAPIKeyRequest struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description,omitempty"`
}

// CreateAPIKeyResponse is the response body for POST /v1/admin/apikeys.
//
// @design DS-0302
type CreateAPIKeyResponse struct {
	KeyID     string    `json:"key_id"`
	Secret    string    `json:"secret"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKeyResponse represents an API key in list responses (without secret).
//
// @design DS-0302
type APIKeyResponse struct {
	KeyID       string    `json:"key_id"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	Description string    `json:"description,omitempty"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at,omitempty"`
}

// ListAPIKeysResponse is the response body for GET /v1/admin/apikeys.
//
// @design DS-0302
type ListAPIKeysResponse struct {
	Keys []APIKeyResponse `json:"keys"`
}

// RotateAPIKeyResponse is the response body for POST /v1/admin/apikeys/{id}/rotate.
//
// @design DS-0302
type RotateAPIKeyResponse struct {
	KeyID     string `json:"key_id"`
	NewSecret string `json:"new_secret"`
}
