// Package health exposes ontologyd's liveness and readiness surface.
//
// Each backing dependency — the Redis replica, the Postgres lock
// store, the NATS bus — registers a Checker on an Aggregator. The
// aggregator runs checks concurrently under one deadline and folds
// individual results into an overall status: any unhealthy check makes
// the service unhealthy, any degraded check (with no unhealthy ones)
// makes it degraded.
//
// HTTP handlers translate the aggregate into probe responses: /healthz
// answers liveness only, /readyz gates traffic on the aggregate, and
// the detailed endpoint returns per-check JSON for operators.
package health
