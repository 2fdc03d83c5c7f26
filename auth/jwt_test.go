package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSigningKey = []byte("ontology-test-signing-key")

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func bearerRequest(token string) *AuthRequest {
	return &AuthRequest{Headers: map[string][]string{"Authorization": {"Bearer " + token}}}
}

func TestJWTAuthenticateSuccess(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{RolesClaim: "roles"}, NewStaticKeyProvider(testSigningKey))

	token := signToken(t, jwt.MapClaims{
		"sub":   "alice@co",
		"roles": []any{"admin"},
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	})
	req := bearerRequest(token)

	if !a.Supports(context.Background(), req) {
		t.Fatal("Supports should see the bearer prefix")
	}
	result, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !result.Authenticated {
		t.Fatalf("rejected: %v", result.Error)
	}
	id := result.Identity
	if id.Principal != "alice@co" || id.Method != AuthMethodJWT {
		t.Fatalf("identity = %+v", id)
	}
	if len(id.Roles) != 1 || id.Roles[0] != "admin" {
		t.Fatalf("roles = %v", id.Roles)
	}
	if id.ExpiresAt.IsZero() {
		t.Fatal("exp claim not mapped")
	}
}

func TestJWTAuthenticateExpired(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{}, NewStaticKeyProvider(testSigningKey))
	token := signToken(t, jwt.MapClaims{"sub": "alice@co", "exp": time.Now().Add(-time.Minute).Unix()})

	result, err := a.Authenticate(context.Background(), bearerRequest(token))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.Authenticated || !errors.Is(result.Error, ErrTokenExpired) {
		t.Fatalf("result = %+v", result)
	}
}

func TestJWTAuthenticateWrongIssuer(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{Issuer: "https://idp.internal"}, NewStaticKeyProvider(testSigningKey))
	token := signToken(t, jwt.MapClaims{
		"sub": "alice@co",
		"iss": "https://other.example",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	result, err := a.Authenticate(context.Background(), bearerRequest(token))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.Authenticated || !errors.Is(result.Error, ErrInvalidCredentials) {
		t.Fatalf("result = %+v", result)
	}
}

func TestJWTAuthenticateBadSignature(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{}, NewStaticKeyProvider([]byte("a different key")))
	token := signToken(t, jwt.MapClaims{"sub": "alice@co", "exp": time.Now().Add(time.Hour).Unix()})

	result, err := a.Authenticate(context.Background(), bearerRequest(token))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.Authenticated || !errors.Is(result.Error, ErrInvalidCredentials) {
		t.Fatalf("result = %+v", result)
	}
}

func TestJWTAuthenticateGarbage(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{}, NewStaticKeyProvider(testSigningKey))
	result, err := a.Authenticate(context.Background(), bearerRequest("not.a.jwt"))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.Authenticated || !errors.Is(result.Error, ErrTokenMalformed) {
		t.Fatalf("result = %+v", result)
	}
}

func TestJWTAuthenticateMissingToken(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{}, NewStaticKeyProvider(testSigningKey))
	req := &AuthRequest{Headers: map[string][]string{"Authorization": {"Bearer "}}}
	result, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.Authenticated || !errors.Is(result.Error, ErrMissingCredentials) {
		t.Fatalf("result = %+v", result)
	}
}

func TestJWTAudienceEnforced(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{Audience: "ontologyd"}, NewStaticKeyProvider(testSigningKey))

	good := signToken(t, jwt.MapClaims{"sub": "alice@co", "aud": "ontologyd", "exp": time.Now().Add(time.Hour).Unix()})
	result, _ := a.Authenticate(context.Background(), bearerRequest(good))
	if !result.Authenticated {
		t.Fatalf("matching audience rejected: %v", result.Error)
	}

	bad := signToken(t, jwt.MapClaims{"sub": "alice@co", "aud": "other-service", "exp": time.Now().Add(time.Hour).Unix()})
	result, _ = a.Authenticate(context.Background(), bearerRequest(bad))
	if result.Authenticated {
		t.Fatal("wrong audience accepted")
	}
}
