package cache

import (
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	for _, tc := range []struct {
		name string
		key  string
		want error
	}{
		{"branch state key", "branch_state:dev/payments/schema-v3", nil},
		{"digest key", "validation:9f86d081884c7d65", nil},
		{"empty", "", ErrInvalidKey},
		{"whitespace only", "   ", ErrInvalidKey},
		{"newline", "branch_state:dev\nprod", ErrInvalidKey},
		{"too long", "k:" + strings.Repeat("x", MaxKeyLength), ErrKeyTooLong},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateKey(tc.key); got != tc.want {
				t.Fatalf("ValidateKey(%q) = %v, want %v", tc.key, got, tc.want)
			}
		})
	}
}
