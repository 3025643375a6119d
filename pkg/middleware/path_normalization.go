// Package middleware provides HTTP middleware for the PacketFlow monitoring dashboard.
package middleware

import (
	"net/http"
	"regexp"
	"strings"
)

// PathNormalizer collapses UUID and numeric-ID path segments down to
// ":id" so per-request HTTP metrics don't get one label series per
// component ID.
type PathNormalizer struct {
	uuidPattern      *regexp.Regexp
	numericIDPattern *regexp.Regexp
}

// NewPathNormalizer builds a normalizer with the default UUID/numeric-ID patterns.
func NewPathNormalizer() *PathNormalizer {
	return &PathNormalizer{
		// UUID pattern: 8-4-4-4-12 hex digits
		uuidPattern: regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`),

		// Numeric ID pattern: 1-20 digits (covers int32, int64)
		numericIDPattern: regexp.MustCompile(`/\d{1,20}(?:/|$)`),
	}
}

// NormalizePath replaces UUID and numeric-ID segments in path with
// ":id", e.g. "/api/components/12345/history/67890" becomes
// "/api/components/:id/history/:id".
func (n *PathNormalizer) NormalizePath(path string) string {
	// Handle empty or root path
	if path == "" || path == "/" {
		return path
	}

	// Replace UUIDs first (more specific pattern)
	normalized := n.uuidPattern.ReplaceAllString(path, "/:id")

	// Then replace numeric IDs
	normalized = n.numericIDPattern.ReplaceAllString(normalized, "/:id/")

	// Clean up trailing slash if added by replacement
	normalized = strings.TrimSuffix(normalized, "/")

	// Ensure root path is preserved
	if normalized == "" {
		return "/"
	}

	return normalized
}

// Middleware normalizes the request path and stashes it in a header
// rather than rewriting r.URL.Path, since mutating that could break
// downstream routing; the metrics middleware reads the header instead.
func (n *PathNormalizer) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			normalizedPath := n.NormalizePath(r.URL.Path)
			r.Header.Set("X-Normalized-Path", normalizedPath)
			next.ServeHTTP(w, r)
		})
	}
}

// PathNormalizationMiddleware is PathNormalizer.Middleware with a
// default normalizer, for dropping straight into a middleware stack.
func PathNormalizationMiddleware() func(http.Handler) http.Handler {
	normalizer := NewPathNormalizer()
	return normalizer.Middleware()
}
