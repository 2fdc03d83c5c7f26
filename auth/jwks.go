package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// JWKSConfig configures the JWKS-backed KeyProvider.
type JWKSConfig struct {
	// URL is the IdP's JWKS endpoint.
	URL string

	// CacheTTL bounds how long fetched keys are trusted without a
	// refresh. Default 1 hour.
	CacheTTL time.Duration

	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// JWKSKeyProvider fetches and caches RSA verification keys. On a
// failed refresh it keeps serving the previously fetched keys, so a
// flapping IdP does not take commit ingress down with it.
type JWKSKeyProvider struct {
	config JWKSConfig

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	stale     map[string]*rsa.PublicKey // last successful fetch, kept past TTL
	fetchedAt time.Time

	group singleflight.Group
}

func NewJWKSKeyProvider(config JWKSConfig) *JWKSKeyProvider {
	if config.CacheTTL == 0 {
		config.CacheTTL = time.Hour
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &JWKSKeyProvider{
		config: config,
		keys:   make(map[string]*rsa.PublicKey),
		stale:  make(map[string]*rsa.PublicKey),
	}
}

// GetKey returns the key for keyID; with an empty keyID and a
// single-key set, that key is returned.
func (p *JWKSKeyProvider) GetKey(ctx context.Context, keyID string) (any, error) {
	p.mu.RLock()
	fresh := time.Since(p.fetchedAt) < p.config.CacheTTL
	key := lookup(p.keys, keyID)
	p.mu.RUnlock()

	if fresh && key != nil {
		return key, nil
	}

	// One refresh serves all concurrent cache misses.
	_, err, _ := p.group.Do("refresh", func() (any, error) {
		return nil, p.refresh(ctx)
	})

	p.mu.RLock()
	defer p.mu.RUnlock()
	if key := lookup(p.keys, keyID); key != nil {
		return key, nil
	}
	if err != nil {
		if key := lookup(p.stale, keyID); key != nil {
			return key, nil
		}
		return nil, err
	}
	return nil, ErrKeyNotFound
}

func lookup(keys map[string]*rsa.PublicKey, keyID string) *rsa.PublicKey {
	if keyID == "" {
		if len(keys) == 1 {
			for _, key := range keys {
				return key
			}
		}
		return nil
	}
	return keys[keyID]
}

func (p *JWKSKeyProvider) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch JWKS: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch JWKS: unexpected status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwkKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, jwk := range doc.Keys {
		if jwk.Kty != "RSA" {
			continue
		}
		pub, err := jwk.rsaPublicKey()
		if err != nil {
			continue
		}
		keys[jwk.Kid] = pub
	}

	p.mu.Lock()
	p.keys = keys
	p.fetchedAt = time.Now()
	for kid, key := range keys {
		p.stale[kid] = key
	}
	p.mu.Unlock()
	return nil
}

type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (jwk jwkKey) rsaPublicKey() (*rsa.PublicKey, error) {
	if jwk.N == "" || jwk.E == "" {
		return nil, fmt.Errorf("jwk %q: missing modulus or exponent", jwk.Kid)
	}
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("jwk %q: decode n: %w", jwk.Kid, err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("jwk %q: decode e: %w", jwk.Kid, err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

var _ KeyProvider = (*JWKSKeyProvider)(nil)
