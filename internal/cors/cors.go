package cors

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// AllowedMethods are the methods offered to cross-origin callers.
const AllowedMethods = "GET, POST, PATCH, OPTIONS"

// Middleware answers CORS for the allowed origins. A "*" entry allows
// every origin. Preflight requests are answered without reaching the
// handler, so it must wrap the router rather than be added with Use:
// mux skips router middleware when no route accepts OPTIONS.
func Middleware(origins []string) mux.MiddlewareFunc {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			w.Header().Set("Access-Control-Allow-Methods", AllowedMethods)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
