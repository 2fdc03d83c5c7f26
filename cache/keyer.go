package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Keyer derives a deterministic cache key from structured input.
// Two calls with equal input must yield equal keys regardless of map
// iteration order.
type Keyer interface {
	Key(namespace string, input any) (string, error)
}

// DigestKeyer hashes a canonical JSON rendering of the input.
// Keys look like <namespace>:<16 hex chars>.
type DigestKeyer struct{}

func NewDigestKeyer() *DigestKeyer { return &DigestKeyer{} }

func (DigestKeyer) Key(namespace string, input any) (string, error) {
	canonical, err := canonicalJSON(input)
	if err != nil {
		return "", fmt.Errorf("cache: canonicalize input: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("%s:%s", namespace, hex.EncodeToString(sum[:8])), nil
}

// canonicalJSON renders v as JSON with map keys sorted at every level.
// encoding/json already sorts map[string]T keys, but nested map[string]any
// values inside slices go through this walk to keep the guarantee
// independent of that implementation detail.
func canonicalJSON(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := canonicalJSON(val[k])
			if err != nil {
				return nil, err
			}
			out = append(append(append(out, kb...), ':'), vb...)
		}
		return append(out, '}'), nil
	case []any:
		out := []byte{'['}
		for i, elem := range val {
			if i > 0 {
				out = append(out, ',')
			}
			eb, err := canonicalJSON(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, eb...)
		}
		return append(out, ']'), nil
	default:
		return json.Marshal(v)
	}
}

var _ Keyer = (*DigestKeyer)(nil)
