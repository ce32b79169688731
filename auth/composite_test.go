package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestCompositeAuthenticator(t *testing.T) {
	store := NewMemoryAPIKeyStore()
	store.Add("key", &APIKey{Principal: "bot", Roles: []string{RoleViewer}})
	c := NewCompositeAuthenticator(
		NewAPIKeyAuthenticator(APIKeyConfig{}, store),
		NewJWTAuthenticator(JWTConfig{Secret: testSecret}),
	)
	token := sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "human"})

	tests := []struct {
		name      string
		headers   http.Header
		principal string
		wantErr   error
	}{
		{"api key", http.Header{"X-Api-Key": {"key"}}, "bot", nil},
		{"jwt", http.Header{"Authorization": {"Bearer " + token}}, "human", nil},
		{"bad key falls through to jwt", http.Header{"X-Api-Key": {"bad"}, "Authorization": {"Bearer " + token}}, "human", nil},
		{"bad key only", http.Header{"X-Api-Key": {"bad"}}, "", ErrInvalidCredentials},
		{"nothing", http.Header{}, "", ErrMissingCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Authenticate(context.Background(), &Request{Headers: tt.headers})
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if tt.wantErr != nil {
				if res.Authenticated || !errors.Is(res.Error, tt.wantErr) {
					t.Fatalf("Authenticate() = %+v, want %v", res, tt.wantErr)
				}
				return
			}
			if !res.Authenticated || res.Identity.Principal != tt.principal {
				t.Fatalf("Authenticate() = %+v, want principal %q", res, tt.principal)
			}
		})
	}
}
