package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultAPIKeyHeader carries API keys.
const DefaultAPIKeyHeader = "X-API-Key"

// APIKeyConfig configures the API key authenticator.
type APIKeyConfig struct {
	// HeaderName is the header containing the key.
	// Default: "X-API-Key"
	HeaderName string

	Clock clockwork.Clock
}

// APIKey describes one issued key. Keys are stored by SHA-256 hash.
type APIKey struct {
	ID        string
	Principal string
	Roles     []string

	// ExpiresAt is zero for keys that never expire.
	ExpiresAt time.Time

	Metadata map[string]any
}

// APIKeyStore looks keys up by hash.
type APIKeyStore interface {
	// Lookup returns nil for an unknown hash.
	Lookup(ctx context.Context, keyHash string) (*APIKey, error)
}

// APIKeyAuthenticator validates API keys.
type APIKeyAuthenticator struct {
	config APIKeyConfig
	store  APIKeyStore
}

// NewAPIKeyAuthenticator creates an API key authenticator.
func NewAPIKeyAuthenticator(config APIKeyConfig, store APIKeyStore) *APIKeyAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = DefaultAPIKeyHeader
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	return &APIKeyAuthenticator{config: config, store: store}
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string { return string(MethodAPIKey) }

// Supports reports whether the key header is present.
func (a *APIKeyAuthenticator) Supports(_ context.Context, req *Request) bool {
	return req.Header(a.config.HeaderName) != ""
}

// Authenticate validates the key.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, req *Request) (*Result, error) {
	key := strings.TrimSpace(req.Header(a.config.HeaderName))
	if key == "" {
		return Failure(ErrMissingCredentials, a.Name()), nil
	}

	info, err := a.store.Lookup(ctx, HashAPIKey(key))
	if err != nil {
		return nil, err
	}
	if info == nil {
		return Failure(ErrInvalidCredentials, a.Name()), nil
	}

	id := &Identity{
		Principal: info.Principal,
		Roles:     info.Roles,
		Method:    MethodAPIKey,
		ExpiresAt: info.ExpiresAt,
		Claims:    map[string]any{"key_id": info.ID},
	}
	maps.Copy(id.Claims, info.Metadata)
	if id.ExpiredAt(a.config.Clock.Now()) {
		return Failure(ErrTokenExpired, a.Name()), nil
	}
	return Success(id), nil
}

// HashAPIKey returns the hex SHA-256 of key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// MemoryAPIKeyStore holds keys loaded from configuration.
type MemoryAPIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*APIKey
}

// NewMemoryAPIKeyStore creates an empty store.
func NewMemoryAPIKeyStore() *MemoryAPIKeyStore {
	return &MemoryAPIKeyStore{keys: make(map[string]*APIKey)}
}

// Lookup returns the key stored under keyHash.
func (s *MemoryAPIKeyStore) Lookup(_ context.Context, keyHash string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[keyHash], nil
}

// Add stores info under the hash of the plaintext key.
func (s *MemoryAPIKeyStore) Add(key string, info *APIKey) {
	s.mu.Lock()
	s.keys[HashAPIKey(key)] = info
	s.mu.Unlock()
}

// Remove deletes the plaintext key.
func (s *MemoryAPIKeyStore) Remove(key string) {
	s.mu.Lock()
	delete(s.keys, HashAPIKey(key))
	s.mu.Unlock()
}

var (
	_ Authenticator = (*APIKeyAuthenticator)(nil)
	_ APIKeyStore   = (*MemoryAPIKeyStore)(nil)
)
