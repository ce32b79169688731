package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/phoenix/auth"
	"github.com/jonwraymond/phoenix/health"
	"github.com/jonwraymond/phoenix/incident"
	"github.com/jonwraymond/phoenix/recovery"
	"github.com/jonwraymond/phoenix/resilience"
)

type fixture struct {
	server   *Server
	monitor  *health.Monitor
	restarts atomic.Int32
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	f := &fixture{}
	f.monitor = health.NewMonitor(health.MonitorConfig{
		ProbeTimeout: time.Second,
		Clock:        clockwork.NewFakeClock(),
		Prober: health.ProberFunc(func(_ context.Context, endpoint string) health.ProbeResult {
			if strings.Contains(endpoint, "down") {
				return health.Unreachable(time.Millisecond, errors.New("connection refused"))
			}
			return health.Success(time.Millisecond, http.StatusOK)
		}),
	})
	require.NoError(t, f.monitor.Register(health.Registration{Name: "api", Endpoint: "http://api.local"}))
	require.NoError(t, f.monitor.Register(health.Registration{Name: "db", Endpoint: "http://down.local"}))
	// Enough hard failures to push db under the restart threshold.
	for range 30 {
		f.monitor.CheckAll(context.Background())
	}

	engine := recovery.NewEngine(recovery.EngineConfig{
		Catalog: recovery.DefaultCatalog(recovery.Actuators{
			recovery.ActionRestartService: recovery.ActuatorFunc(func(context.Context, health.ServiceHealth) (bool, error) {
				f.restarts.Add(1)
				return true, nil
			}),
		}),
		Ledger:        incident.NewMemoryLedger(),
		ActionTimeout: time.Second,
	})

	cfg := Config{Monitor: f.monitor, Engine: engine, SnapshotTTL: time.Minute}
	for _, m := range mutate {
		m(&cfg)
	}
	f.server = NewServer(cfg)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestServer_Probes(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/metrics", "").Code)
}

func TestServer_Metrics(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("phoenix_probes_total 1\n"))
		})
	})
	rec := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "phoenix_probes_total")
}

func TestServer_Services(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/services", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]health.ServiceHealth](t, rec)
	require.Len(t, all, 2)
	assert.Equal(t, "api", all[0].Name)
	assert.Equal(t, health.StatusDown, all[1].Status)

	rec = f.do(t, http.MethodGet, "/v1/services/unhealthy", "")
	unhealthy := decode[[]health.ServiceHealth](t, rec)
	require.Len(t, unhealthy, 1)
	assert.Equal(t, "db", unhealthy[0].Name)

	rec = f.do(t, http.MethodGet, "/v1/services/api", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/v1/services/db", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "connection refused", decode[health.ServiceHealth](t, rec).LastError)

	rec = f.do(t, http.MethodGet, "/v1/services/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "unknown service")
}

func TestServer_Register(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/services", `{"name":"cache","endpoint":"http://cache.local","attributes":{"namespace":"infra"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/v1/services/cache", rec.Header().Get("Location"))
	h := decode[health.ServiceHealth](t, rec)
	assert.Equal(t, health.StatusHealthy, h.Status)
	assert.Equal(t, 100.0, h.UptimeScore)
	assert.Equal(t, "infra", h.Attributes["namespace"])

	tests := []struct {
		name string
		body string
		want int
	}{
		{"duplicate", `{"name":"cache","endpoint":"http://cache.local"}`, http.StatusConflict},
		{"invalid endpoint", `{"name":"x","endpoint":"nohost"}`, http.StatusBadRequest},
		{"missing name", `{"endpoint":"http://x"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
		{"unknown field", `{"name":"y","endpoint":"http://y","port":1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/v1/services", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestServer_Check(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/services/db/check", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[health.CheckResult](t, rec)
	assert.False(t, res.Healthy)
	assert.Equal(t, health.StatusDown, res.Status)
	assert.Equal(t, "connection refused", res.Error)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/v1/services/ghost/check", "").Code)
}

func TestServer_RecoverAndIncidents(t *testing.T) {
	f := newFixture(t)

	// Prime the snapshots so the recovery has to invalidate them.
	assert.Equal(t, 0, decode[incident.Stats](t, f.do(t, http.MethodGet, "/v1/stats", "")).TotalIncidents)
	assert.Empty(t, decode[[]incident.Incident](t, f.do(t, http.MethodGet, "/v1/incidents", "")))

	rec := f.do(t, http.MethodPost, "/v1/services/db/recover", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	inc := decode[incident.Incident](t, rec)
	assert.Equal(t, "db", inc.Service)
	assert.Equal(t, string(recovery.ActionRestartService), inc.Action)
	assert.True(t, inc.Success)
	assert.EqualValues(t, 1, f.restarts.Load())

	rec = f.do(t, http.MethodPost, "/v1/services/api/recover", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/services/api/recover?force=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	forced := decode[incident.Incident](t, rec)
	assert.Equal(t, string(recovery.ActionAlertTeam), forced.Action)
	assert.False(t, forced.Success)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/v1/services/ghost/recover", "").Code)

	incidents := decode[[]incident.Incident](t, f.do(t, http.MethodGet, "/v1/incidents", ""))
	require.Len(t, incidents, 2)
	assert.Equal(t, "db", incidents[0].Service)

	filtered := decode[[]incident.Incident](t, f.do(t, http.MethodGet, "/v1/incidents?service=api", ""))
	require.Len(t, filtered, 1)
	assert.Equal(t, "api", filtered[0].Service)

	last := decode[[]incident.Incident](t, f.do(t, http.MethodGet, "/v1/incidents?limit=1", ""))
	require.Len(t, last, 1)
	assert.Equal(t, "api", last[0].Service)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/incidents?limit=-1", "").Code)

	stats := decode[incident.Stats](t, f.do(t, http.MethodGet, "/v1/stats", ""))
	assert.Equal(t, 2, stats.TotalIncidents)
	assert.Equal(t, 1, stats.SuccessfulRecoveries)
	assert.InDelta(t, 50.0, stats.SuccessRate, 0.001)
}

func TestServer_RecoverWithStrategy(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/services/db/recover?strategy=alert-team", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	inc := decode[incident.Incident](t, rec)
	assert.Equal(t, string(recovery.ActionAlertTeam), inc.Action)
	assert.False(t, inc.Success)
	assert.Contains(t, inc.Details, "no actuator bound")

	rec = f.do(t, http.MethodPost, "/v1/services/api/recover?strategy=restart_service&force=true", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(recovery.ActionRestartService), decode[incident.Incident](t, rec).Action)
	assert.EqualValues(t, 1, f.restarts.Load())

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/v1/services/api/recover?strategy=restart-service", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/v1/services/db/recover?strategy=reboot", "").Code)

	incidents := decode[[]incident.Incident](t, f.do(t, http.MethodGet, "/v1/incidents", ""))
	assert.Len(t, incidents, 2)
}

func TestServer_Summary(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[health.Summary](t, rec)
	assert.Equal(t, health.FleetDegraded, s.Status)
	assert.Equal(t, 2, s.TotalServices)
	assert.Equal(t, 1, s.HealthyServices)
	assert.Equal(t, 1, s.UnhealthyServices)
}

func TestServer_Trends(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/services/db/trends", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	db := decode[health.Trends](t, rec)
	assert.Equal(t, "24h0m0s", db.Window)
	assert.Empty(t, db.ResponseTimes)
	require.Len(t, db.Errors, 30)
	assert.Equal(t, "connection refused", db.Errors[0].Error)

	api := decode[health.Trends](t, f.do(t, http.MethodGet, "/v1/services/api/trends?window=1h", ""))
	assert.Len(t, api.ResponseTimes, 30)
	assert.Empty(t, api.Errors)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/services/api/trends?window=soon", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/services/ghost/trends", "").Code)
}

func TestServer_Catalog(t *testing.T) {
	f := newFixture(t)

	views := decode[[]StrategyView](t, f.do(t, http.MethodGet, "/v1/catalog", ""))
	require.Len(t, views, 5)
	assert.Equal(t, string(recovery.ActionRestartService), views[0].Action)
	for i := 1; i < len(views); i++ {
		assert.LessOrEqual(t, views[i-1].Priority, views[i].Priority)
	}
}

func TestServer_Auth(t *testing.T) {
	store := auth.NewMemoryAPIKeyStore()
	store.Add("view", &auth.APIKey{Principal: "dash", Roles: []string{auth.RoleViewer}})
	store.Add("op", &auth.APIKey{Principal: "oncall", Roles: []string{auth.RoleOperator}})
	f := newFixture(t, func(c *Config) {
		c.Authenticator = auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, store)
	})

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		want   int
	}{
		{"probe stays open", http.MethodGet, "/healthz", "", http.StatusOK},
		{"no key", http.MethodGet, "/v1/services", "", http.StatusUnauthorized},
		{"bad key", http.MethodGet, "/v1/services", "nope", http.StatusUnauthorized},
		{"viewer reads", http.MethodGet, "/v1/services", "view", http.StatusOK},
		{"viewer cannot write", http.MethodPost, "/v1/services/db/check", "view", http.StatusForbidden},
		{"operator writes", http.MethodPost, "/v1/services/db/check", "op", http.StatusOK},
		{"operator reads", http.MethodGet, "/v1/stats", "op", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.key != "" {
				headers = []string{auth.DefaultAPIKeyHeader, tt.key}
			}
			rec := f.do(t, tt.method, tt.path, "", headers...)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want == http.StatusUnauthorized || tt.want == http.StatusForbidden {
				assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
			}
		})
	}
}

func TestServer_Breakers(t *testing.T) {
	f := newFixture(t)
	assert.Empty(t, decode[[]BreakerView](t, f.do(t, http.MethodGet, "/v1/breakers", "")))

	set := resilience.NewBreakerSet(resilience.CircuitBreakerConfig{MaxFailures: 1, Clock: clockwork.NewFakeClock()})
	boom := errors.New("boom")
	_ = set.Get("SCALE_UP:db").Execute(context.Background(), func(context.Context) error { return boom })
	_ = set.Get("ROLLBACK:api").Execute(context.Background(), func(context.Context) error { return nil })

	f = newFixture(t, func(c *Config) { c.Breakers = set })
	views := decode[[]BreakerView](t, f.do(t, http.MethodGet, "/v1/breakers", ""))
	require.Len(t, views, 2)
	assert.Equal(t, "ROLLBACK:api", views[0].Name)
	assert.Equal(t, "closed", views[0].State)
	assert.Equal(t, "SCALE_UP:db", views[1].Name)
	assert.Equal(t, "open", views[1].State)
	assert.Equal(t, 1, views[1].Failures)
}

type failingLedger struct{}

func (failingLedger) Append(context.Context, incident.Incident) error {
	return incident.ErrLedgerUnavailable
}
func (failingLedger) All(context.Context) ([]incident.Incident, error) {
	return nil, incident.ErrLedgerUnavailable
}

func TestServer_LedgerUnavailable(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Engine = recovery.NewEngine(recovery.EngineConfig{Ledger: failingLedger{}})
	})
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/v1/stats", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/v1/incidents", "").Code)
}

func TestServer_ListenAndServe(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.server.ListenAndServe(ctx, "127.0.0.1:0", time.Second) }()
	cancel()

	select {
	case err := <-done:
		assert.True(t, err == nil || errors.Is(err, http.ErrServerClosed), "err = %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}
}
