package auth

import "net/http"

// WithAuthHeaders copies request headers into the context so that
// authenticators running behind non-HTTP call sites (bus consumers,
// background admin tasks) see the same credential material.
func WithAuthHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithHeaders(r.Context(), r.Header)))
	})
}
