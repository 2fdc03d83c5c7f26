package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jonwraymond/toolops-ontology/auth"
	"github.com/jonwraymond/toolops-ontology/health"
)

// router builds the chi mux: a commit ingress endpoint, lock
// facade admin endpoints, and DLQ replay/purge admin endpoints, gated
// by the authenticator/authorizer pair.
func (app *application) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(auth.WithAuthHeaders)

	r.Get("/healthz", health.LivenessHandler())
	r.Get("/readyz", health.ReadinessHandler(app.healthAgg))
	r.Get("/health/details", health.DetailedHandler(app.healthAgg))

	r.Route("/v1", func(r chi.Router) {
		r.Use(app.authenticate)

		r.Post("/commits", app.handleCommit)

		r.Route("/locks", func(r chi.Router) {
			r.Post("/", app.handleAcquireLock)
			r.Get("/", app.handleListLocks)
			r.Delete("/{id}", app.handleReleaseLock)
			r.Post("/{id}/heartbeat", app.handleHeartbeat)
			r.Post("/{id}/extend", app.handleExtendLock)
		})

		r.Route("/dlq/{queue}", func(r chi.Router) {
			r.Post("/replay", app.handleDLQReplay)
			r.Post("/purge", app.handleDLQPurge)
		})
	})

	return r
}

// authenticate runs the configured Authenticator against the request
// and attaches the resulting identity to the context. Anonymous
// requests proceed; write handlers that require an identity reject
// them via the Authorizer.
func (app *application) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := &auth.AuthRequest{Headers: r.Header}
		ctx := r.Context()
		if app.authn.Supports(ctx, req) {
			result, err := app.authn.Authenticate(ctx, req)
			if err == nil && result != nil && result.Authenticated {
				ctx = auth.WithIdentity(ctx, result.Identity)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authorizeWrite denies the request unless the caller presents an
// identity, per buildAuthorizer's minimal write policy.
func (app *application) authorizeWrite(w http.ResponseWriter, r *http.Request, resource string) bool {
	id := auth.IdentityFromContext(r.Context())
	err := app.authorizer.Authorize(r.Context(), &auth.AuthzRequest{
		Subject: id, Resource: resource, Action: "write",
	})
	if err != nil {
		writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
		return false
	}
	return true
}
