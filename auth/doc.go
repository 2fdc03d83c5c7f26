// Package auth identifies the principals acting on the ontology
// platform: commit authors, the indexing/backup/migration services
// that hold branch locks, and operators replaying DLQ messages.
//
// Authentication is pluggable behind the Authenticator interface —
// API keys for service principals, JWTs (static key or JWKS) for
// operators — and chains through CompositeAuthenticator. The resulting
// Identity travels on the request context; downstream components read
// only its claims (principal, roles, domain), never the credentials.
//
// Authorization is a separate Authorizer interface with a small
// role-based implementation. Policy content is deliberately thin:
// the platform gates writes, richer policy lives in front of it.
package auth
