package ports

import (
	"fmt"
	"net/http"
	"strings"
)

// AllowedOrigins matches browser origins against a list of domain suffixes
type AllowedOrigins struct {
	suffixes       []string
	allowLocalhost bool
}

func NewAllowedOrigins(allowLocalhost bool, suffixes ...string) (*AllowedOrigins, error) {
	for _, suffix := range suffixes {
		if suffix == "" {
			return nil, fmt.Errorf("domain suffix must not be empty")
		}
		if strings.HasPrefix(suffix, ".") {
			return nil, fmt.Errorf("domain suffix %s should not start with a dot", suffix)
		}
		if strings.Contains(suffix, "://") {
			return nil, fmt.Errorf("domain suffix %s should not contain a scheme", suffix)
		}
	}
	return &AllowedOrigins{
		suffixes:       suffixes,
		allowLocalhost: allowLocalhost,
	}, nil
}

func (o *AllowedOrigins) Allows(origin string) bool {
	if o.allowLocalhost && isLocalhost(origin) {
		return true
	}

	// Only https origins outside of localhost
	host, ok := strings.CutPrefix(origin, "https://")
	if !ok {
		return false
	}

	for _, suffix := range o.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

func isLocalhost(origin string) bool {
	for _, prefix := range []string{"http://localhost", "http://127.0.0.1"} {
		rest, ok := strings.CutPrefix(origin, prefix)
		if ok && (rest == "" || strings.HasPrefix(rest, ":")) {
			return true
		}
	}
	return false
}

func BuildCORSMiddleware(allowedOrigins *AllowedOrigins) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if allowedOrigins.Allows(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")

				if r.Method == http.MethodOptions {
					w.Header().Set("Access-Control-Allow-Methods", "GET,POST")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-Id, Last-Event-ID")
					w.Header().Set("Access-Control-Max-Age", "600")
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}

			next(w, r)
		}
	}
}

func BuildCORSHandler(allowedOrigins *AllowedOrigins) http.HandlerFunc {
	return BuildCORSMiddleware(allowedOrigins)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}
