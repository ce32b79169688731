package incident

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/phoenix/health"
)

// Notifier is told about every recorded incident.
type Notifier interface {
	Notify(ctx context.Context, inc Incident) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, inc Incident) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, inc Incident) error {
	return f(ctx, inc)
}

// Notifiers fans one incident out to several notifiers and joins their errors.
type Notifiers []Notifier

// Notify calls every notifier even when an earlier one fails.
func (ns Notifiers) Notify(ctx context.Context, inc Incident) error {
	var errs []error
	for _, n := range ns {
		if err := n.Notify(ctx, inc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Event types published on the events channel.
const (
	EventRecoveryAttempted = "recovery_attempted"
	EventStatusChanged     = "status_changed"
)

// DefaultEventsChannel is the pub/sub channel events are published on.
const DefaultEventsChannel = "phoenix:events"

// Event is the pub/sub payload.
type Event struct {
	Type      string         `json:"type"`
	Service   string         `json:"service"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// RedisPublisher publishes events on a Redis pub/sub channel so other
// services can react to recoveries and status changes.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisPublisher creates a publisher on channel, or DefaultEventsChannel
// when channel is empty.
func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultEventsChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Channel returns the pub/sub channel.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Publish sends ev.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("incident: encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("incident: publish %s: %w", ev.Type, err)
	}
	return nil
}

// Notify publishes a recovery_attempted event for inc.
func (p *RedisPublisher) Notify(ctx context.Context, inc Incident) error {
	return p.Publish(ctx, Event{
		Type:      EventRecoveryAttempted,
		Service:   inc.Service,
		Timestamp: inc.DetectedAt,
		Data: map[string]any{
			"incidentId":     inc.ID,
			"action":         inc.Action,
			"success":        inc.Success,
			"recoveryTimeMs": inc.RecoveryTimeMs,
			"details":        inc.Details,
		},
	})
}

// StatusChanged publishes a status_changed event for a monitor transition.
func (p *RedisPublisher) StatusChanged(ctx context.Context, prev, next health.ServiceHealth) error {
	return p.Publish(ctx, Event{
		Type:      EventStatusChanged,
		Service:   next.Name,
		Timestamp: next.LastCheckedAt,
		Data: map[string]any{
			"from":        prev.Status.String(),
			"to":          next.Status.String(),
			"uptimeScore": next.UptimeScore,
			"errorRate":   next.ErrorRate,
			"lastError":   next.LastError,
		},
	})
}
