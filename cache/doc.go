// Package cache provides the byte-oriented cache used for fast-path
// reads across the platform: branch state snapshots in the lock
// manager and validation results in the enterprise validation service.
//
// The Cache interface is deliberately small — get, set with TTL,
// delete — so that the in-memory implementation here and a Redis
// deployment can back the same call sites. Values are opaque bytes;
// callers own serialization. Keys are built either directly
// (branch_state:{branch}) or through a Keyer when the key must be
// derived deterministically from structured input.
package cache
