package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/jsonkeep-go/internal/core/domain"
	"github.com/yndnr/jsonkeep-go/internal/core/service"
	"github.com/yndnr/jsonkeep-go/internal/telemetry/logger"
	"github.com/yndnr/jsonkeep-go/internal/telemetry/metric"
	"github.com/yndnr/jsonkeep-go/pkg/token"
)

type contextKey string

// Context keys for request-scoped values.
const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyAPIKey    contextKey = "api_key"
	ContextKeyStartTime contextKey = "start_time"
)

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so that the first one listed runs first.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// MiddlewareConfig holds shared state for the auth middlewares.
type MiddlewareConfig struct {
	AuthService *service.AuthService
	Logger      logger.Logger

	// Metrics counts auth outcomes and rate-limit rejections when set.
	Metrics *metric.Registry

	// SkipAuthPaths are path prefixes exempt from authentication.
	SkipAuthPaths []string

	// EnableAudit enables audit logging.
	EnableAudit bool
}

func (cfg *MiddlewareConfig) countAuth(outcome string) {
	if cfg.Metrics != nil {
		cfg.Metrics.AuthValidations.WithLabelValues(outcome).Inc()
	}
}

func (cfg *MiddlewareConfig) countRateLimited() {
	if cfg.Metrics != nil {
		cfg.Metrics.RateLimited.Inc()
	}
}

// authenticate resolves the caller's API key credentials. On failure it
// writes the error response and returns nil; callers must stop the chain.
func (cfg *MiddlewareConfig) authenticate(w http.ResponseWriter, r *http.Request) *domain.APIKey {
	keyID, keySecret := credentialsFromRequest(r)
	if keyID == "" || keySecret == "" {
		cfg.countAuth("rejected")
		denyJSON(w, "JK-AUTH-4010", "authentication required")
		return nil
	}

	resp, err := cfg.AuthService.ValidateAPIKey(r.Context(), &service.ValidateAPIKeyRequest{
		KeyID:     keyID,
		KeySecret: keySecret,
		ClientIP:  clientIP(r),
	})
	if err != nil {
		cfg.countAuth("rejected")
		denyJSON(w, domain.GetErrorCode(err), err.Error())
		return nil
	}
	if !resp.Valid || resp.APIKey == nil {
		cfg.countAuth("rejected")
		denyJSON(w, "JK-AUTH-4011", "invalid API key")
		return nil
	}
	return resp.APIKey
}

// throttle enforces the key's own request budget after auth succeeded.
func (cfg *MiddlewareConfig) throttle(w http.ResponseWriter, r *http.Request, key *domain.APIKey) bool {
	if err := cfg.AuthService.CheckRateLimit(r.Context(), key.KeyID, key.RateLimit); err != nil {
		cfg.countRateLimited()
		w.Header().Set("Retry-After", "60")
		denyJSON(w, "JK-SYS-4290", "rate limit exceeded")
		return false
	}
	return true
}

// RequestID assigns each request a unique ID, honoring one supplied by
// the caller. The ID is echoed on the response and propagated on the
// request header so handlers can quote it in response envelopes.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = "req-unknown"
				if id, err := token.GenerateWithLength(16); err == nil {
					requestID = "req-" + id
				}
			}

			w.Header().Set("X-Request-ID", requestID)
			r.Header.Set("X-Request-ID", requestID)

			ctx := context.WithValue(r.Context(), ContextKeyRequestID, requestID)
			ctx = context.WithValue(ctx, ContextKeyStartTime, time.Now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Auth authenticates business API requests and applies the per-key
// rate limit. Paths listed in SkipAuthPaths pass through untouched.
func Auth(cfg *MiddlewareConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range cfg.SkipAuthPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			key := cfg.authenticate(w, r)
			if key == nil {
				return
			}
			cfg.countAuth("ok")
			if !cfg.throttle(w, r, key) {
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyAPIKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminAuth is Auth restricted to keys holding the admin role. There
// is no skip list: every admin route authenticates.
//
// @design DS-0302
func AdminAuth(cfg *MiddlewareConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.authenticate(w, r)
			if key == nil {
				return
			}
			if key.Role != domain.RoleAdmin {
				cfg.countAuth("rejected")
				denyJSON(w, "JK-ADMIN-4030", "admin role required")
				return
			}
			cfg.countAuth("ok")
			if !cfg.throttle(w, r, key) {
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyAPIKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects requests whose authenticated key lacks perm.
func RequirePermission(authSvc *service.AuthService, perm domain.Permission) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := GetAPIKeyFromContext(r.Context())
			if apiKey == nil {
				denyJSON(w, "JK-AUTH-4010", "authentication required")
				return
			}
			if err := authSvc.CheckPermission(apiKey, perm); err != nil {
				denyJSON(w, "JK-AUTH-4030", "permission denied: "+string(perm))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MetricsAuth guards the metrics endpoint. When authRequired is false
// any caller may scrape; otherwise the key needs metrics.read. The
// responses are bare status codes so Prometheus logs stay readable.
//
// @design DS-0302
func MetricsAuth(authService *service.AuthService, authRequired bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authRequired {
				next.ServeHTTP(w, r)
				return
			}

			keyID, keySecret := credentialsFromRequest(r)
			if keyID == "" || keySecret == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			resp, err := authService.ValidateAPIKey(r.Context(), &service.ValidateAPIKeyRequest{
				KeyID:     keyID,
				KeySecret: keySecret,
				ClientIP:  clientIP(r),
			})
			if err != nil || !resp.Valid || resp.APIKey == nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if err := authService.CheckPermission(resp.APIKey, domain.PermMetricsRead); err != nil {
				w.WriteHeader(http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies a global per-IP limit using token buckets. Each IP
// gets a limiter with burst equal to the per-second rate.
func RateLimit(requestsPerSecond int) Middleware {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	limiterFor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		lim, ok := limiters[ip]
		if !ok {
			lim = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
			limiters[ip] = lim
		}
		return lim
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiterFor(clientIP(r)).Allow() {
				w.Header().Set("Retry-After", "1")
				denyJSON(w, "JK-SYS-4290", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Metrics instruments a route with request count, latency, and
// in-flight gauges. The route label is the registered pattern, not the
// raw path, to keep label cardinality bounded.
func Metrics(reg *metric.Registry, route string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reg == nil {
				next.ServeHTTP(w, r)
				return
			}

			reg.RequestsInFlight.Inc()
			defer reg.RequestsInFlight.Dec()

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			reg.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			reg.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Audit writes one structured log line per completed request. The
// level tracks the response class: 5xx at error, 4xx at warn.
func Audit(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			requestID, _ := r.Context().Value(ContextKeyRequestID).(string)
			startTime, _ := r.Context().Value(ContextKeyStartTime).(time.Time)

			attrs := []any{
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(startTime).Milliseconds(),
				"client_ip", clientIP(r),
			}
			if key := GetAPIKeyFromContext(r.Context()); key != nil {
				attrs = append(attrs, "api_key_id", key.KeyID, "role", string(key.Role))
			}

			switch {
			case rec.status >= 500:
				log.Error("request completed with error", attrs...)
			case rec.status >= 400:
				log.Warn("request completed with client error", attrs...)
			default:
				log.Info("request completed", attrs...)
			}
		})
	}
}

// Recover converts handler panics into 500 responses.
func Recover(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID, _ := r.Context().Value(ContextKeyRequestID).(string)
					log.Error("panic recovered",
						"request_id", requestID,
						"error", err,
						"path", r.URL.Path,
					)
					denyJSON(w, "JK-SYS-5000", "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// NetworkACLConfig holds configuration for network ACL middleware.
type NetworkACLConfig struct {
	// AllowList is the list of allowed IP/CIDR entries.
	// Empty list means no restriction.
	AllowList []string

	// Logger for logging denied requests.
	Logger logger.Logger
}

// NetworkACL rejects requests whose client IP falls outside the
// allowlist. Entries parse once at construction; bare IPs become
// single-address networks so matching is one pass over CIDR blocks.
func NetworkACL(cfg *NetworkACLConfig) Middleware {
	var allowed []*net.IPNet
	for _, entry := range cfg.AllowList {
		ipNet, err := parseAllowEntry(entry)
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Warn("invalid allowlist entry", "entry", entry, "error", err)
			}
			continue
		}
		allowed = append(allowed, ipNet)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			addr := clientIP(r)
			ip := net.ParseIP(addr)
			if ip == nil {
				denyJSON(w, "JK-AUTH-4031", "invalid client IP")
				return
			}

			for _, ipNet := range allowed {
				if ipNet.Contains(ip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			if cfg.Logger != nil {
				cfg.Logger.Warn("request denied by network ACL",
					"client_ip", addr,
					"path", r.URL.Path,
				)
			}
			denyJSON(w, "JK-AUTH-4031", "IP not in allowlist")
		})
	}
}

// parseAllowEntry accepts "10.0.0.0/8" or "10.0.0.5", widening bare
// addresses to a /32 (or /128) network.
func parseAllowEntry(entry string) (*net.IPNet, error) {
	if strings.Contains(entry, "/") {
		_, ipNet, err := net.ParseCIDR(entry)
		return ipNet, err
	}
	ip := net.ParseIP(entry)
	if ip == nil {
		return nil, &net.ParseError{Type: "IP address", Text: entry}
	}
	bits := 8 * net.IPv6len
	if ip.To4() != nil {
		ip = ip.To4()
		bits = 8 * net.IPv4len
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

// CORS adds Cross-Origin Resource Sharing headers and answers
// preflight requests.
func CORS(allowedOrigins []string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, allowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, If-None-Match, X-API-Key-ID, X-API-Key, X-Request-ID, Authorization")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// originAllowed reports whether origin matches the configured list.
// An empty list allows every origin.
func originAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// credentialsFromRequest extracts API key credentials from the request.
// Supported formats, in priority order:
//  1. Authorization: Bearer <key_id>:<key_secret>
//  2. X-API-Key: <key_id>:<key_secret>
//  3. X-API-Key-ID + X-API-Key as separate headers
func credentialsFromRequest(r *http.Request) (keyID, keySecret string) {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if id, secret, ok := strings.Cut(strings.TrimPrefix(auth, "Bearer "), ":"); ok {
			return id, secret
		}
	}
	if combined := r.Header.Get("X-API-Key"); combined != "" {
		if id, secret, ok := strings.Cut(combined, ":"); ok {
			return id, secret
		}
	}
	return r.Header.Get("X-API-Key-ID"), r.Header.Get("X-API-Key")
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// GetAPIKeyFromContext retrieves the authenticated API key from context.
func GetAPIKeyFromContext(ctx context.Context) *domain.APIKey {
	key, _ := ctx.Value(ContextKeyAPIKey).(*domain.APIKey)
	return key
}

// GetRequestIDFromContext retrieves the request ID from context.
func GetRequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}

// denyJSON writes an error response, mapping the JK- code to an HTTP
// status. The code also rides the X-Error-Code header so clients can
// branch without parsing the body.
func denyJSON(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)

	status := http.StatusUnauthorized
	switch {
	case strings.Contains(code, "-403"):
		status = http.StatusForbidden
	case strings.HasSuffix(code, "-4290"):
		status = http.StatusTooManyRequests
	case strings.HasSuffix(code, "-5000"):
		status = http.StatusInternalServerError
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}

// clientIP extracts the originating client address, preferring proxy
// headers over the socket peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// SplitHostPort handles bracketed IPv6 like [::1]:8080. A bare
	// address without a port comes back as-is.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
