package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/jsonkeep-go/internal/core/domain"
	"github.com/yndnr/jsonkeep-go/internal/core/service"
	"github.com/yndnr/jsonkeep-go/internal/server/config"
	"github.com/yndnr/jsonkeep-go/internal/telemetry/logger"
)

// Handler is the main HTTP handler that routes requests to appropriate handlers.
//
// @design DS-0301
type Handler struct {
	storeSvc *service.StoreService
	authSvc  *service.AuthService
	cfg      *config.ServerConfig
	logger   logger.Logger
	mux      *http.ServeMux
	started  time.Time
}

// New creates a new Handler with the given services.
//
// @design DS-0301
func New(storeSvc *service.StoreService, authSvc *service.AuthService, cfg *config.ServerConfig, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	h := &Handler{
		storeSvc: storeSvc,
		authSvc:  authSvc,
		cfg:      cfg,
		logger:   log,
		mux:      http.NewServeMux(),
		started:  time.Now(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	// Health endpoints (no auth required)
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	h.mux.HandleFunc("GET /readyz", h.handleReady)

	// Store lifecycle endpoints
	h.mux.HandleFunc("GET /v1/stores", h.handleListStores)
	h.mux.HandleFunc("POST /v1/stores", h.handleAttachStore)
	h.mux.HandleFunc("GET /v1/stores/{store}", h.handleDescribeStore)
	h.mux.HandleFunc("DELETE /v1/stores/{store}", h.handleDetachStore)
	h.mux.HandleFunc("POST /v1/stores/{store}/flush", h.handleFlushStore)
	h.mux.HandleFunc("POST /v1/stores/{store}/persist", h.handlePersistStore)
	h.mux.HandleFunc("POST /v1/stores/{store}/reload", h.handleReloadStore)

	// Key-value endpoints
	h.mux.HandleFunc("GET /v1/stores/{store}/entries", h.handleListEntries)
	h.mux.HandleFunc("GET /v1/stores/{store}/keys/{key}", h.handleGetValue)
	h.mux.HandleFunc("PUT /v1/stores/{store}/keys/{key}", h.handleSetValue)
	h.mux.HandleFunc("DELETE /v1/stores/{store}/keys/{key}", h.handleDeleteValue)

	// Snapshot endpoints
	h.mux.HandleFunc("POST /v1/stores/{store}/snapshots", h.handleCreateSnapshot)
	h.mux.HandleFunc("GET /v1/stores/{store}/snapshots", h.handleListSnapshots)

	// Admin endpoints
	h.mux.HandleFunc("GET /v1/admin/status", h.handleAdminStatus)
	h.mux.HandleFunc("GET /v1/admin/config", h.handleAdminConfig)

	// API Key management endpoints
	h.mux.HandleFunc("POST /v1/admin/apikeys", h.handleCreateAPIKey)
	h.mux.HandleFunc("GET /v1/admin/apikeys", h.handleListAPIKeys)
	h.mux.HandleFunc("POST /v1/admin/apikeys/{id}/disable", h.handleDisableAPIKey)
	h.mux.HandleFunc("POST /v1/admin/apikeys/{id}/enable", h.handleEnableAPIKey)
	h.mux.HandleFunc("POST /v1/admin/apikeys/{id}/rotate", h.handleRotateAPIKey)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// getRequestID extracts the request ID header, which the request-ID
// middleware populates for generated as well as client-supplied IDs.
func getRequestID(r *http.Request) string {
	return r.Header.Get("X-Request-ID")
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsDomainError(err, "") {
		// Extract error details
		code := domain.GetErrorCode(err)
		status := errorCodeToHTTPStatus(code)
		h.writeError(w, r, status, code, err.Error(), nil)
		return
	}

	// Generic internal error
	h.logger.Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, "JK-SYS-5000", "internal server error", nil)
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"), strings.HasSuffix(code, "-4041"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"), strings.HasSuffix(code, "-4091"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"),
		strings.HasSuffix(code, "-4002"), strings.HasSuffix(code, "-4003"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4010"), strings.HasSuffix(code, "-4011"), strings.HasSuffix(code, "-4012"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4030"), strings.HasSuffix(code, "-4031"):
		return http.StatusForbidden
	case strings.HasSuffix(code, "-4220"):
		return http.StatusUnprocessableEntity
	case strings.HasSuffix(code, "-5030"):
		return http.StatusServiceUnavailable
	case strings.HasPrefix(code, "JK-ARG-"):
		return http.StatusBadRequest
	case strings.HasPrefix(code, "JK-SYS-5"):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// etagFor quotes a content fingerprint for use in an ETag header.
func etagFor(fingerprint string) string {
	return `"` + fingerprint + `"`
}

// etagMatches reports whether an If-None-Match header value matches the
// fingerprint. Weak validators compare by their opaque tag.
func etagMatches(header, fingerprint string) bool {
	if header == "" || fingerprint == "" {
		return false
	}
	if header == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		candidate = strings.Trim(candidate, `"`)
		if candidate == fingerprint {
			return true
		}
	}
	return false
}

// requestKeyID extracts the API key ID from request credentials. It
// mirrors the header formats the auth middleware accepts.
func requestKeyID(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		parts := strings.SplitN(strings.TrimPrefix(authHeader, "Bearer "), ":", 2)
		if len(parts) == 2 {
			return parts[0]
		}
	}
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		parts := strings.SplitN(apiKey, ":", 2)
		if len(parts) == 2 {
			return parts[0]
		}
	}
	return r.Header.Get("X-API-Key-ID")
}
