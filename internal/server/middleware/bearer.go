package middleware

import (
	"net/http"

	"github.com/ehrgate/ehrgate/internal/dispatch"
	"github.com/ehrgate/ehrgate/internal/mcp"
)

// Bearer copies a token from the "Authorization: Bearer" header into the
// request context. It never rejects a request: operations that need a token
// are refused by the dispatcher when none is found.
func Bearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := mcp.BearerFromHeader(r.Header.Get("Authorization"))
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(dispatch.WithBearerToken(r.Context(), token)))
	})
}
