package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

var (
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Cache stores rendered API snapshots.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Get never errors; a backend failure is a miss.
type Cache interface {
	// Get returns (nil, false) on miss or expiry.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value for ttl. A non-positive ttl stores nothing.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
}

// ValidateKey rejects blank, oversized and multi-line keys.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}
