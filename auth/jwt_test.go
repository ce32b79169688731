package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

var testSecret = []byte("phoenix-test-secret")

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func bearer(token string) *Request {
	return &Request{Headers: http.Header{"Authorization": {"Bearer " + token}}}
}

func TestJWTAuthenticator(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := NewJWTAuthenticator(JWTConfig{
		Secret:   testSecret,
		Issuer:   "phoenix-ci",
		Audience: "phoenix",
		Clock:    clockwork.NewFakeClockAt(now),
	})

	valid := jwt.MapClaims{
		"sub":   "deployer",
		"iss":   "phoenix-ci",
		"aud":   "phoenix",
		"roles": []any{RoleOperator, 7},
		"exp":   now.Add(time.Hour).Unix(),
	}
	with := func(k string, v any) jwt.MapClaims {
		c := jwt.MapClaims{}
		for key, val := range valid {
			c[key] = val
		}
		c[k] = v
		return c
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid", sign(t, jwt.SigningMethodHS256, testSecret, valid), nil},
		{"expired", sign(t, jwt.SigningMethodHS256, testSecret, with("exp", now.Add(-time.Minute).Unix())), ErrTokenExpired},
		{"wrong issuer", sign(t, jwt.SigningMethodHS256, testSecret, with("iss", "other")), ErrInvalidCredentials},
		{"wrong audience", sign(t, jwt.SigningMethodHS256, testSecret, with("aud", "other")), ErrInvalidCredentials},
		{"wrong key", sign(t, jwt.SigningMethodHS256, []byte("nope"), valid), ErrInvalidCredentials},
		{"wrong alg", sign(t, jwt.SigningMethodHS512, testSecret, valid), ErrInvalidCredentials},
		{"garbage", "not.a.jwt", ErrTokenMalformed},
		{"empty", "", ErrMissingCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := a.Authenticate(context.Background(), bearer(tt.token))
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if tt.wantErr != nil {
				if res.Authenticated || !errors.Is(res.Error, tt.wantErr) {
					t.Fatalf("Authenticate() = %+v, want failure %v", res, tt.wantErr)
				}
				return
			}
			if !res.Authenticated {
				t.Fatalf("Authenticate() rejected: %v", res.Error)
			}
			id := res.Identity
			if id.Principal != "deployer" || id.Method != MethodJWT {
				t.Errorf("Identity = %+v", id)
			}
			if len(id.Roles) != 1 || id.Roles[0] != RoleOperator {
				t.Errorf("Roles = %v, want [operator]", id.Roles)
			}
			if !id.ExpiresAt.Equal(now.Add(time.Hour)) {
				t.Errorf("ExpiresAt = %v", id.ExpiresAt)
			}
		})
	}
}

func TestJWTAuthenticator_RolesAsString(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{Secret: testSecret, RolesClaim: "scope"})
	token := sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "x", "scope": "viewer operator"})

	res, err := a.Authenticate(context.Background(), bearer(token))
	if err != nil || !res.Authenticated {
		t.Fatalf("Authenticate() = %+v, %v", res, err)
	}
	if !res.Identity.HasRole(RoleViewer) || !res.Identity.HasRole(RoleOperator) {
		t.Errorf("Roles = %v", res.Identity.Roles)
	}
}

func TestJWTAuthenticator_Supports(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{Secret: testSecret})
	tests := []struct {
		header string
		want   bool
	}{
		{"Bearer abc", true},
		{"Basic abc", false},
		{"", false},
	}
	for _, tt := range tests {
		req := &Request{Headers: http.Header{"Authorization": {tt.header}}}
		if got := a.Supports(context.Background(), req); got != tt.want {
			t.Errorf("Supports(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
