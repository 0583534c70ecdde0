package httpserver

import (
	"net/http"
	"strings"

	"github.com/yndnr/jsonkeep-go/internal/core/domain"
	"github.com/yndnr/jsonkeep-go/internal/core/service"
	"github.com/yndnr/jsonkeep-go/internal/server/config"
	"github.com/yndnr/jsonkeep-go/internal/server/httpserver/handler"
	"github.com/yndnr/jsonkeep-go/internal/telemetry/logger"
	"github.com/yndnr/jsonkeep-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// StoreService handles store and key-value operations.
	StoreService *service.StoreService

	// AuthService handles authentication and API key operations.
	AuthService *service.AuthService

	// Config is the loaded server configuration, used for attach path
	// defaults and the sanitized config endpoint.
	Config *config.ServerConfig

	// Metrics is the Prometheus registry backing /metrics and request
	// instrumentation. Nil disables both.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger logger.Logger

	// AuthRequired gates business and admin routes behind API keys.
	// When false every request runs unauthenticated.
	AuthRequired bool

	// MetricsEnabled exposes GET /metrics.
	MetricsEnabled bool

	// MetricsAuthRequired indicates if /metrics requires an API key
	// with the metrics.read permission.
	MetricsAuthRequired bool

	// SkipAuthPaths are paths that don't require authentication.
	SkipAuthPaths []string

	// AdminAllowList is the IP/CIDR allowlist for admin API (empty = no restriction).
	AdminAllowList []string

	// CORSAllowedOrigins is the list of allowed CORS origins (empty = allow all).
	CORSAllowedOrigins []string

	// GlobalRateLimit is the global rate limit per IP (requests/second).
	GlobalRateLimit int

	// EnableAudit enables audit logging for all requests.
	EnableAudit bool
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
//
// @design DS-0301, DS-0302
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	// Create handler with services
	h := handler.New(cfg.StoreService, cfg.AuthService, cfg.Config, log)

	// Create middleware configuration
	middlewareCfg := &MiddlewareConfig{
		AuthService:   cfg.AuthService,
		Logger:        log,
		Metrics:       cfg.Metrics,
		SkipAuthPaths: cfg.SkipAuthPaths,
		EnableAudit:   cfg.EnableAudit,
	}

	// Create the top-level mux for routing
	mux := http.NewServeMux()

	// Health endpoints - no authentication required
	health := func(pattern string) {
		mux.Handle(pattern, Chain(h,
			RequestID(),
			Metrics(cfg.Metrics, routeLabel(pattern)),
			Recover(log),
		))
	}
	health("GET /healthz")
	health("GET /readyz")

	// Metrics endpoint - configurable authentication
	if cfg.MetricsEnabled && cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(
			cfg.Metrics.Handler(),
			RequestID(),
			Recover(log),
			MetricsAuth(cfg.AuthService, cfg.AuthRequired && cfg.MetricsAuthRequired),
		))
	}

	// One rate limiter shared across business routes so the per-IP
	// budget is global, not per route
	var rateLimit Middleware
	if cfg.GlobalRateLimit > 0 {
		rateLimit = RateLimit(cfg.GlobalRateLimit)
	}

	// Business API endpoints - authenticated, one permission per route.
	// Metrics sits outside Recover so panics still count as 500s.
	business := func(pattern string, perm domain.Permission) {
		mws := []Middleware{
			RequestID(),
			Metrics(cfg.Metrics, routeLabel(pattern)),
			Recover(log),
			CORS(cfg.CORSAllowedOrigins),
		}
		if rateLimit != nil {
			mws = append(mws, rateLimit)
		}
		if cfg.EnableAudit {
			mws = append(mws, Audit(log))
		}
		if cfg.AuthRequired {
			mws = append(mws, Auth(middlewareCfg), RequirePermission(cfg.AuthService, perm))
		}
		mux.Handle(pattern, Chain(h, mws...))
	}

	// Store lifecycle
	business("GET /v1/stores", domain.PermStoreList)
	business("POST /v1/stores", domain.PermStoreAttach)
	business("GET /v1/stores/{store}", domain.PermStoreRead)
	business("DELETE /v1/stores/{store}", domain.PermStoreDetach)
	business("POST /v1/stores/{store}/flush", domain.PermStoreFlush)
	business("POST /v1/stores/{store}/persist", domain.PermStoreWrite)
	business("POST /v1/stores/{store}/reload", domain.PermStoreWrite)

	// Key-value access
	business("GET /v1/stores/{store}/entries", domain.PermStoreRead)
	business("GET /v1/stores/{store}/keys/{key}", domain.PermStoreRead)
	business("PUT /v1/stores/{store}/keys/{key}", domain.PermStoreWrite)
	business("DELETE /v1/stores/{store}/keys/{key}", domain.PermStoreWrite)

	// Snapshots
	business("POST /v1/stores/{store}/snapshots", domain.PermSnapshotCreate)
	business("GET /v1/stores/{store}/snapshots", domain.PermSnapshotList)

	// Admin API endpoints - require admin role + optional network ACL
	admin := func(pattern string) {
		mws := []Middleware{
			RequestID(),
			Metrics(cfg.Metrics, routeLabel(pattern)),
			Recover(log),
		}
		if cfg.AuthRequired {
			mws = append(mws, AdminAuth(middlewareCfg))
		}
		if len(cfg.AdminAllowList) > 0 {
			mws = append(mws, NetworkACL(&NetworkACLConfig{
				AllowList: cfg.AdminAllowList,
				Logger:    log,
			}))
		}
		if cfg.EnableAudit {
			mws = append(mws, Audit(log))
		}
		mux.Handle(pattern, Chain(h, mws...))
	}

	admin("GET /v1/admin/status")
	admin("GET /v1/admin/config")

	// API key management
	admin("POST /v1/admin/apikeys")
	admin("GET /v1/admin/apikeys")
	admin("POST /v1/admin/apikeys/{id}/disable")
	admin("POST /v1/admin/apikeys/{id}/enable")
	admin("POST /v1/admin/apikeys/{id}/rotate")

	return mux
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		AuthRequired:        true,
		MetricsEnabled:      true,
		MetricsAuthRequired: false,
		SkipAuthPaths:       []string{"/healthz", "/readyz"},
		GlobalRateLimit:     1000, // 1000 requests/second per IP
		EnableAudit:         true,
	}
}

// routeLabel strips the method from a mux pattern for metric labels.
func routeLabel(pattern string) string {
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		return pattern[i+1:]
	}
	return pattern
}
