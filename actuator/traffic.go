package actuator

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/phoenix/health"
	"github.com/jonwraymond/phoenix/incident"
	"github.com/jonwraymond/phoenix/observe"
	"github.com/jonwraymond/phoenix/recovery"
)

// Traffic flag kinds. Routing layers read phoenix:<kind>:<service>.
const (
	FlagCircuit  = "circuit"
	FlagFallback = "fallback"
)

// Events published when a flag is raised.
const (
	EventCircuitOpened     = "circuit_opened"
	EventFallbackActivated = "fallback_activated"
)

// TrafficConfig configures the Redis traffic actuator.
type TrafficConfig struct {
	// TTL is how long a flag stays raised.
	// Default: 1 hour
	TTL time.Duration

	// KeyPrefix prefixes every flag key.
	// Default: "phoenix"
	KeyPrefix string

	// Publisher, when set, announces raised flags.
	Publisher *incident.RedisPublisher

	Clock  clockwork.Clock
	Logger observe.Logger
}

// Traffic steers traffic away from a failing service by raising expiring
// flags in Redis that gateways and clients consult.
type Traffic struct {
	client redis.UniversalClient
	config TrafficConfig
}

// NewTraffic creates a traffic actuator.
func NewTraffic(client redis.UniversalClient, config TrafficConfig) *Traffic {
	if config.TTL <= 0 {
		config.TTL = time.Hour
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "phoenix"
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	return &Traffic{client: client, config: config}
}

// Actuators returns the actions this actuator serves.
func (t *Traffic) Actuators() recovery.Actuators {
	return recovery.Actuators{
		recovery.ActionCircuitBreak:   recovery.ActuatorFunc(t.CircuitBreak),
		recovery.ActionRerouteTraffic: recovery.ActuatorFunc(t.Reroute),
	}
}

// Key returns the flag key for kind and service.
func (t *Traffic) Key(kind, service string) string {
	return fmt.Sprintf("%s:%s:%s", t.config.KeyPrefix, kind, service)
}

// CircuitBreak opens the circuit for the service.
func (t *Traffic) CircuitBreak(ctx context.Context, h health.ServiceHealth) (bool, error) {
	return t.raise(ctx, FlagCircuit, "open", EventCircuitOpened, h)
}

// Reroute sends the service's traffic to its fallback.
func (t *Traffic) Reroute(ctx context.Context, h health.ServiceHealth) (bool, error) {
	return t.raise(ctx, FlagFallback, "enabled", EventFallbackActivated, h)
}

// Active reports whether a flag is raised.
func (t *Traffic) Active(ctx context.Context, kind, service string) (bool, error) {
	n, err := t.client.Exists(ctx, t.Key(kind, service)).Result()
	if err != nil {
		return false, fmt.Errorf("actuator: read %s flag: %w", kind, err)
	}
	return n > 0, nil
}

func (t *Traffic) raise(ctx context.Context, kind, value, event string, h health.ServiceHealth) (bool, error) {
	key := t.Key(kind, h.Name)
	if err := t.client.Set(ctx, key, value, t.config.TTL).Err(); err != nil {
		return false, fmt.Errorf("%w: set %s: %w", ErrRemote, key, err)
	}

	if t.config.Publisher != nil {
		err := t.config.Publisher.Publish(ctx, incident.Event{
			Type:      event,
			Service:   h.Name,
			Timestamp: t.config.Clock.Now(),
			Data: map[string]any{
				"key":        key,
				"ttlSeconds": int64(t.config.TTL.Seconds()),
			},
		})
		if err != nil {
			// The flag is set; consumers polling the key still see it.
			t.config.Logger.Warn(ctx, "traffic event not published", observe.Field{Key: "service", Value: h.Name}, observe.Err(err))
		}
	}

	t.config.Logger.Info(ctx, "traffic flag raised",
		observe.Field{Key: "service", Value: h.Name},
		observe.Field{Key: "key", Value: key},
		observe.Field{Key: "ttl", Value: t.config.TTL.String()},
	)
	return true, nil
}
