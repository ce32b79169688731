package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Secret is the HS256 signing key.
	Secret []byte

	// Issuer and Audience are checked when set.
	Issuer   string
	Audience string

	// RolesClaim holds the caller's roles.
	// Default: "roles"
	RolesClaim string

	// Leeway tolerates clock skew on exp, nbf and iat.
	Leeway time.Duration

	Clock clockwork.Clock
}

const bearerPrefix = "Bearer "

// JWTAuthenticator validates HS256 bearer tokens.
type JWTAuthenticator struct {
	config JWTConfig
	parser *jwt.Parser
}

// NewJWTAuthenticator creates a JWT authenticator.
func NewJWTAuthenticator(config JWTConfig) *JWTAuthenticator {
	if config.RolesClaim == "" {
		config.RolesClaim = "roles"
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(config.Clock.Now),
		jwt.WithLeeway(config.Leeway),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	return &JWTAuthenticator{config: config, parser: jwt.NewParser(opts...)}
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string { return string(MethodJWT) }

// Supports reports whether a bearer token is present.
func (a *JWTAuthenticator) Supports(_ context.Context, req *Request) bool {
	return strings.HasPrefix(req.Header("Authorization"), bearerPrefix)
}

// Authenticate validates the token and maps its claims to an Identity.
func (a *JWTAuthenticator) Authenticate(_ context.Context, req *Request) (*Result, error) {
	raw, ok := strings.CutPrefix(req.Header("Authorization"), bearerPrefix)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return Failure(ErrMissingCredentials, a.Name()), nil
	}

	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.config.Secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Failure(ErrTokenExpired, a.Name()), nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Failure(ErrTokenMalformed, a.Name()), nil
	default:
		return Failure(ErrInvalidCredentials, a.Name()), nil
	}

	return Success(a.identity(claims)), nil
}

func (a *JWTAuthenticator) identity(claims jwt.MapClaims) *Identity {
	id := &Identity{Method: MethodJWT, Claims: claims}
	id.Principal, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}

	switch roles := claims[a.config.RolesClaim].(type) {
	case string:
		id.Roles = strings.Fields(roles)
	case []any:
		for _, r := range roles {
			if s, ok := r.(string); ok {
				id.Roles = append(id.Roles, s)
			}
		}
	}
	return id
}

var _ Authenticator = (*JWTAuthenticator)(nil)
