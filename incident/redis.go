package incident

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultLedgerKey is the Redis list that holds the history.
const DefaultLedgerKey = "phoenix:incidents"

// RedisLedger stores incidents as JSON entries in a Redis list. RPUSH is
// atomic, so the list order is the completion order of Append calls. Entries
// are never trimmed or rewritten.
type RedisLedger struct {
	client redis.UniversalClient
	key    string
}

// RedisLedgerOption configures a RedisLedger.
type RedisLedgerOption func(*RedisLedger)

// WithLedgerKey overrides DefaultLedgerKey.
func WithLedgerKey(key string) RedisLedgerOption {
	return func(l *RedisLedger) {
		if key != "" {
			l.key = key
		}
	}
}

// NewRedisLedger creates a ledger on client.
func NewRedisLedger(client redis.UniversalClient, opts ...RedisLedgerOption) *RedisLedger {
	l := &RedisLedger{client: client, key: DefaultLedgerKey}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key returns the Redis list key.
func (l *RedisLedger) Key() string {
	return l.key
}

// Append pushes inc onto the list.
func (l *RedisLedger) Append(ctx context.Context, inc Incident) error {
	data, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("incident: encode %s: %w", inc.ID, err)
	}

	if err := l.client.RPush(ctx, l.key, data).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	return nil
}

// All reads the whole list.
func (l *RedisLedger) All(ctx context.Context) ([]Incident, error) {
	raw, err := l.client.LRange(ctx, l.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}

	out := make([]Incident, 0, len(raw))
	for i, entry := range raw {
		var inc Incident
		if err := json.Unmarshal([]byte(entry), &inc); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrCorruptRecord, i, err)
		}
		out = append(out, inc)
	}
	return out, nil
}

// Ping checks the connection.
func (l *RedisLedger) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	return nil
}
