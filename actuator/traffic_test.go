package actuator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/phoenix/health"
	"github.com/jonwraymond/phoenix/incident"
	"github.com/jonwraymond/phoenix/recovery"
)

func newTraffic(t *testing.T) (*Traffic, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	tr := NewTraffic(client, TrafficConfig{
		TTL:       30 * time.Minute,
		Publisher: incident.NewRedisPublisher(client, ""),
	})
	return tr, mr, client
}

func TestTraffic_CircuitBreak(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr, mr, client := newTraffic(t)

	sub := client.Subscribe(ctx, incident.DefaultEventsChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	ok, err := tr.CircuitBreak(ctx, health.ServiceHealth{Name: "payments"})
	require.NoError(t, err)
	assert.True(t, ok)

	key := tr.Key(FlagCircuit, "payments")
	assert.Equal(t, "phoenix:circuit:payments", key)
	val, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "open", val)
	assert.Equal(t, 30*time.Minute, mr.TTL(key))

	active, err := tr.Active(ctx, FlagCircuit, "payments")
	require.NoError(t, err)
	assert.True(t, active)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var ev incident.Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
	assert.Equal(t, EventCircuitOpened, ev.Type)
	assert.Equal(t, "payments", ev.Service)
}

func TestTraffic_RerouteExpires(t *testing.T) {
	ctx := context.Background()
	tr, mr, _ := newTraffic(t)

	ok, err := tr.Reroute(ctx, health.ServiceHealth{Name: "search"})
	require.NoError(t, err)
	assert.True(t, ok)

	active, _ := tr.Active(ctx, FlagFallback, "search")
	assert.True(t, active)

	mr.FastForward(31 * time.Minute)

	active, err = tr.Active(ctx, FlagFallback, "search")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestTraffic_RedisDown(t *testing.T) {
	tr, mr, _ := newTraffic(t)
	mr.Close()

	ok, err := tr.CircuitBreak(context.Background(), health.ServiceHealth{Name: "payments"})

	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrRemote)
}

func TestTraffic_Actuators(t *testing.T) {
	tr, _, _ := newTraffic(t)
	set := tr.Actuators()

	assert.Contains(t, set, recovery.ActionCircuitBreak)
	assert.Contains(t, set, recovery.ActionRerouteTraffic)
}
