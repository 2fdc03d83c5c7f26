package validation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonwraymond/toolops-ontology/cache"
)

// defaultCacheTTL bounds how long a validation result is reused for
// identical (data, level, scope, skip rules) inputs.
const defaultCacheTTL = 5 * time.Minute

// CachingService decorates a Service with a cache.Cache lookup keyed
// by hash(data, level, scope, skip rules), avoiding repeat rule
// evaluation for identical payloads. contextData is not part of the
// key, so a cached result is reused whatever contextData a later call
// passes.
type CachingService struct {
	inner Service
	cache cache.Cache
	keyer cache.Keyer
	ttl   time.Duration
}

// NewCachingService wraps inner with cache. ttl<=0 uses defaultCacheTTL.
func NewCachingService(inner Service, c cache.Cache, ttl time.Duration) *CachingService {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachingService{inner: inner, cache: c, keyer: cache.NewDigestKeyer(), ttl: ttl}
}

func (s *CachingService) Validate(ctx context.Context, data map[string]any, level Level, scope string, skipRules []string, contextData map[string]any) (Result, error) {
	key, err := s.keyer.Key("validation", map[string]any{
		"data":       data,
		"level":      string(level),
		"scope":      scope,
		"skip_rules": skipRules,
	})
	if err != nil {
		return s.inner.Validate(ctx, data, level, scope, skipRules, contextData)
	}

	if raw, ok := s.cache.Get(ctx, key); ok {
		var cached Result
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	result, err := s.inner.Validate(ctx, data, level, scope, skipRules, contextData)
	if err != nil {
		return result, err
	}

	if raw, err := json.Marshal(result); err == nil {
		_ = s.cache.Set(ctx, key, raw, s.ttl)
	}
	return result, nil
}

var _ Service = (*CachingService)(nil)
