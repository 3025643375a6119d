// Package middleware provides HTTP middleware for the PacketFlow monitoring dashboard.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/packetflow/iccr/pkg/logger"
	pkgmiddleware "github.com/packetflow/iccr/pkg/middleware"
	"github.com/packetflow/iccr/pkg/metrics"
)

// MiddlewareConfig holds configuration for building middleware stacks.
type MiddlewareConfig struct {
	Logger          *slog.Logger
	MetricsRegistry *metrics.MetricsRegistry
	RateLimiter     *RateLimitConfig
	AuthConfig      *AuthConfig
	CORSConfig      *CORSConfig
	MaxRequestSize  int
	RequestTimeout  time.Duration
	EnableCompression bool
}

// RateLimitConfig holds rate limiting configuration. Limiters are
// built lazily on first use, so the zero value (besides the public
// fields) is ready to use.
type RateLimitConfig struct {
	Enabled     bool
	PerIPLimit  int
	GlobalLimit int
	Logger      *slog.Logger

	globalOnce    sync.Once
	globalLimiter *rate.Limiter
	perIP         sync.Map // client IP -> *rate.Limiter
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Enabled   bool
	Type      string // "api_key" or "jwt"
	APIKey    string
	JWTSecret string
	Logger    *slog.Logger
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Enabled        bool
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// BuildDashboardMiddlewareStack builds a complete middleware stack for the dashboard's HTTP endpoints.
// The middleware is applied in the following order (outermost to innermost):
// 1. Security Headers - Add security-related HTTP headers
// 2. Recovery - Recover from panics
// 3. Request ID - Generate unique request IDs
// 4. Logging - Log all requests
// 5. Metrics - Record Prometheus metrics
// 6. Rate Limiting - Apply rate limits
// 7. Authentication - Validate credentials
// 8. Compression - Not applied; EnableCompression has no effect
// 9. CORS - Handle cross-origin requests
// 10. Size Limit - Enforce max request size
// 11. Timeout - Enforce request timeouts
func BuildDashboardMiddlewareStack(config *MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := next

		// 11. Timeout (innermost - applied last)
		if config.RequestTimeout > 0 {
			handler = http.TimeoutHandler(handler, config.RequestTimeout, "Request timeout")
		}

		// 10. Size Limit
		if config.MaxRequestSize > 0 {
			handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.ContentLength > int64(config.MaxRequestSize) {
					http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
					return
				}
				handler.ServeHTTP(w, r)
			})
		}

		// 9. CORS
		if config.CORSConfig != nil && config.CORSConfig.Enabled {
			handler = applyCORS(handler, config.CORSConfig)
		}

		// 8. Compression (optional)
		if config.EnableCompression {
			// Compression middleware would go here
			// For the dashboard API, typically disabled
		}

		// 7. Authentication
		if config.AuthConfig != nil && config.AuthConfig.Enabled {
			handler = applyAuth(handler, config.AuthConfig)
		}

		// 6. Rate Limiting
		if config.RateLimiter != nil && config.RateLimiter.Enabled {
			handler = applyRateLimit(handler, config.RateLimiter)
		}

		// 5. Metrics (path normalization runs just outside it, so the
		// metrics path label doesn't carry component ids and blow up
		// label cardinality)
		if config.MetricsRegistry != nil {
			handler = applyMetrics(handler, config.MetricsRegistry)
			handler = pkgmiddleware.PathNormalizationMiddleware()(handler)
		}

		// 4. Logging
		if config.Logger != nil {
			handler = applyLogging(handler, config.Logger)
		}

		// 3. Request ID
		handler = applyRequestID(handler)

		// 2. Recovery (panic recovery)
		handler = applyRecovery(handler, config.Logger)

		// 1. Security Headers (outermost - applied first)
		securityHeaders := NewSecurityHeadersMiddleware(nil)
		handler = securityHeaders.Handler(handler)

		return handler
	}
}

// applyCORS applies CORS middleware.
func applyCORS(next http.Handler, config *CORSConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Simple CORS implementation
		if len(config.AllowedOrigins) > 0 {
			origin := r.Header.Get("Origin")
			for _, allowed := range config.AllowedOrigins {
				if allowed == "*" || allowed == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}

		if len(config.AllowedMethods) > 0 {
			w.Header().Set("Access-Control-Allow-Methods", joinStrings(config.AllowedMethods, ", "))
		}

		if len(config.AllowedHeaders) > 0 {
			w.Header().Set("Access-Control-Allow-Headers", joinStrings(config.AllowedHeaders, ", "))
		}

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// applyAuth applies authentication middleware: a bearer API key or a
// non-empty JWT-shaped Authorization header, depending on config.Type.
func applyAuth(next http.Handler, config *AuthConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authenticated(r, config) {
			if config.Logger != nil {
				config.Logger.Warn("dashboard request rejected: missing or invalid credentials", "type", config.Type)
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func authenticated(r *http.Request, config *AuthConfig) bool {
	header := r.Header.Get("Authorization")
	switch config.Type {
	case "api_key":
		return header == "Bearer "+config.APIKey || r.Header.Get("X-API-Key") == config.APIKey
	case "jwt":
		return strings.HasPrefix(header, "Bearer ") && len(strings.TrimPrefix(header, "Bearer ")) > 0
	default:
		return false
	}
}

// applyRateLimit enforces a global and a per-client-IP token bucket,
// built lazily from config's limits.
func applyRateLimit(next http.Handler, config *RateLimitConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if config.GlobalLimit > 0 {
			config.globalOnce.Do(func() {
				config.globalLimiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.GlobalLimit)), config.GlobalLimit)
			})
			if !config.globalLimiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
		}

		if config.PerIPLimit > 0 {
			ip := clientIP(r)
			limiter, _ := config.perIP.LoadOrStore(ip, rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.PerIPLimit)), config.PerIPLimit))
			if !limiter.(*rate.Limiter).Allow() {
				if config.Logger != nil {
					config.Logger.Debug("per-IP rate limit exceeded", "ip", ip)
				}
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// applyMetrics records Prometheus request count/duration/in-flight
// series for every request, keyed by method, path, and status code.
func applyMetrics(next http.Handler, registry *metrics.MetricsRegistry) http.Handler {
	h := registry.HTTP()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if normalized := r.Header.Get("X-Normalized-Path"); normalized != "" {
			path = normalized
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.Track(r.Method, path, func() int {
			next.ServeHTTP(rec, r)
			return rec.status
		})
	})
}

// statusRecorder captures the status code a handler wrote, so metrics
// middleware can observe it after ServeHTTP returns.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// applyLogging applies logging middleware.
func applyLogging(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"request_id", logger.GetRequestID(r.Context()),
		)
		next.ServeHTTP(w, r)
	})
}

// applyRequestID generates a request id for every inbound request
// (or reuses a caller-supplied X-Request-ID), stashes it on the
// request context, and echoes it back on the response.
func applyRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = logger.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// applyRecovery applies panic recovery middleware.
func applyRecovery(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if logger != nil {
					logger.Error("Panic recovered",
						"error", err,
						"path", r.URL.Path,
					)
				}
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// joinStrings joins strings with a separator.
func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for i := 1; i < len(strs); i++ {
		result += sep + strs[i]
	}
	return result
}
