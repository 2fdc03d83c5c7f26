package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength bounds cache key size; longer keys indicate a caller
// embedding payload data in the key instead of hashing it.
const MaxKeyLength = 512

var (
	ErrNilCache   = errors.New("cache: cache is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Cache stores opaque byte values with per-entry TTLs.
//
// Implementations must be safe for concurrent use. Get never errors:
// a miss, an expired entry, and a backend failure all read as
// (nil, false) — callers fall through to the durable source.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value under key. A non-positive ttl is never stored
	// forever: MemoryCache replaces it with its Policy's DefaultTTL and
	// stores nothing when that default is zero too.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Idempotent; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// ValidateKey rejects keys that are empty, oversized, or contain
// line breaks (which corrupt text-protocol backends).
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return ErrInvalidKey
	case len(key) > MaxKeyLength:
		return ErrKeyTooLong
	case strings.ContainsAny(key, "\n\r"):
		return ErrInvalidKey
	}
	return nil
}
