package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore persists health records so a restarted monitor resumes with
// the scores it had.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Save replaces the stored record for h.Name.
// - Load returns every stored record; order is unspecified.
type StateStore interface {
	Save(ctx context.Context, h ServiceHealth) error
	Load(ctx context.Context) ([]ServiceHealth, error)
}

// DefaultStatePrefix prefixes the Redis key of every stored record.
const DefaultStatePrefix = "phoenix:health:"

// RedisStateStore keeps one JSON value per service, each expiring after TTL
// without updates.
type RedisStateStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStateStore creates a store on client. An empty prefix uses
// DefaultStatePrefix; a zero ttl keeps records until overwritten.
func NewRedisStateStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStateStore {
	if prefix == "" {
		prefix = DefaultStatePrefix
	}
	return &RedisStateStore{client: client, prefix: prefix, ttl: ttl}
}

// Save writes h under its service name.
func (s *RedisStateStore) Save(ctx context.Context, h ServiceHealth) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("health: encode %s: %w", h.Name, err)
	}
	if err := s.client.Set(ctx, s.prefix+h.Name, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStateUnavailable, err)
	}
	return nil
}

// Load scans the prefix and decodes every record. Records that expire
// between the scan and the read are skipped.
func (s *RedisStateStore) Load(ctx context.Context) ([]ServiceHealth, error) {
	var out []ServiceHealth
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStateUnavailable, err)
		}
		var h ServiceHealth
		if err := json.Unmarshal(raw, &h); err != nil {
			return nil, fmt.Errorf("health: decode %s: %w", key, err)
		}
		if h.Name == "" {
			h.Name = strings.TrimPrefix(key, s.prefix)
		}
		out = append(out, h)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStateUnavailable, err)
	}
	return out, nil
}
