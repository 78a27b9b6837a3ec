package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc123", "abc123", true},
		{"bearer abc123", "abc123", true},
		{"BEARER abc123", "abc123", true},
		{"  Bearer   abc123  ", "abc123", true},
		{"Basic abc123", "", false},
		{"Bearer", "", false},
		{"Bearer a b", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractBearerToken(tc.header)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ExtractBearerToken(%q) = (%q, %v), want (%q, %v)", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}

func TestUserIDFromToken_ClaimPrecedence(t *testing.T) {
	cases := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{"userId", jwt.MapClaims{"userId": "u-1", "sub": "other"}, "u-1"},
		{"user_id fallback", jwt.MapClaims{"user_id": "u-2"}, "u-2"},
		{"sub fallback", jwt.MapClaims{"sub": "u-3"}, "u-3"},
		{"numeric id", jwt.MapClaims{"userId": float64(42)}, "42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := UserIDFromToken(signToken(t, tc.claims), testSecret)
			if err != nil {
				t.Fatalf("UserIDFromToken: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestUserIDFromToken_Rejections(t *testing.T) {
	if _, err := UserIDFromToken("not-a-token", testSecret); err == nil {
		t.Fatalf("expected error for malformed token")
	}

	wrongKey := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": "u-1"})
	s, err := wrongKey.SignedString([]byte("another-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := UserIDFromToken(s, testSecret); err == nil {
		t.Fatalf("expected error for wrong secret")
	}

	expired := signToken(t, jwt.MapClaims{
		"userId": "u-1",
		"exp":    time.Now().Add(-time.Hour).Unix(),
	})
	if _, err := UserIDFromToken(expired, testSecret); err == nil {
		t.Fatalf("expected error for expired token")
	}

	noID := signToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	if _, err := UserIDFromToken(noID, testSecret); err == nil {
		t.Fatalf("expected error when no id claim present")
	}
}
