package core

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSMiddleware answers preflight OPTIONS requests and annotates normal
// responses with Access-Control-* headers per config. Origins may be exact
// ("https://example.com"), "*", a wildcard subdomain ("*.example.com"), or a
// wildcard port ("http://localhost:*").
func CORSMiddleware(config *CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			if origin := r.Header.Get("Origin"); originAllowed(origin, config.AllowedOrigins) {
				setCORSHeaders(w.Header(), origin, config)
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setCORSHeaders(h http.Header, origin string, config *CORSConfig) {
	h.Set("Access-Control-Allow-Origin", origin)
	if config.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if len(config.AllowedMethods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
	}
	if len(config.AllowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
	}
	if len(config.ExposedHeaders) > 0 {
		h.Set("Access-Control-Expose-Headers", strings.Join(config.ExposedHeaders, ", "))
	}
	if config.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
	}
}

// originAllowed reports whether origin matches one of allowed. A same-origin
// request (empty Origin header) never needs CORS headers, so it's rejected
// here rather than matched.
func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}

	for _, pattern := range allowed {
		switch {
		case pattern == "*" || pattern == origin:
			return true
		case strings.Contains(pattern, "*."):
			if subdomainMatch(origin, pattern) {
				return true
			}
		case strings.HasSuffix(pattern, ":*"):
			if strings.HasPrefix(origin, strings.TrimSuffix(pattern, "*")) {
				return true
			}
		}
	}
	return false
}

// subdomainMatch checks a "*.example.com"-style pattern: origin must carry a
// non-empty label in place of the wildcard, so the bare root domain doesn't
// also match.
func subdomainMatch(origin, pattern string) bool {
	idx := strings.Index(pattern, "*.")
	prefix, suffix := pattern[:idx], pattern[idx+1:]

	if !strings.HasPrefix(origin, prefix) || !strings.HasSuffix(origin, suffix) {
		return false
	}
	label := strings.TrimSuffix(origin[len(prefix):], suffix)
	return label != ""
}
