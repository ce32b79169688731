package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// scripted returns a prober that answers per endpoint.
func scripted(results map[string]ProbeResult) Prober {
	return ProberFunc(func(ctx context.Context, endpoint string) ProbeResult {
		if r, ok := results[endpoint]; ok {
			return r
		}
		return Success(time.Millisecond, 200)
	})
}

func newTestMonitor(p Prober) *Monitor {
	return NewMonitor(MonitorConfig{
		Prober:       p,
		ProbeTimeout: time.Second,
		Clock:        clockwork.NewFakeClock(),
	})
}

func TestNewMonitor_Defaults(t *testing.T) {
	m := NewMonitor(MonitorConfig{})
	cfg := m.Config()

	if cfg.Interval != 30*time.Second {
		t.Errorf("Interval = %v, want 30s", cfg.Interval)
	}
	if cfg.ProbeTimeout != 5*time.Second {
		t.Errorf("ProbeTimeout = %v, want 5s", cfg.ProbeTimeout)
	}
	if cfg.FailureThreshold != 1 {
		t.Errorf("FailureThreshold = %d, want 1", cfg.FailureThreshold)
	}
}

func TestMonitor_RegisterErrors(t *testing.T) {
	m := newTestMonitor(DefaultProber())

	if err := m.Register(Registration{Name: "checkout", Endpoint: "http://checkout"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := m.Register(Registration{Name: "checkout", Endpoint: "http://other"}); !errors.Is(err, ErrDuplicateService) {
		t.Errorf("duplicate Register() error = %v, want ErrDuplicateService", err)
	}
	if err := m.Register(Registration{Name: "mq", Endpoint: "amqp://broker"}); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("amqp Register() error = %v, want ErrUnsupportedScheme", err)
	}
	if _, err := m.CheckService(context.Background(), "ghost"); !errors.Is(err, ErrUnknownService) {
		t.Errorf("CheckService() error = %v, want ErrUnknownService", err)
	}
	if _, err := m.ServiceHealth("ghost"); !errors.Is(err, ErrUnknownService) {
		t.Errorf("ServiceHealth() error = %v, want ErrUnknownService", err)
	}
}

func TestMonitor_CheckService_HealthyStaysCapped(t *testing.T) {
	m := newTestMonitor(scripted(nil))
	_ = m.Register(Registration{Name: "s1", Endpoint: "http://s1"})

	res, err := m.CheckService(context.Background(), "s1")
	if err != nil {
		t.Fatalf("CheckService() error = %v", err)
	}
	if !res.Healthy || res.Status != StatusHealthy || res.Error != "" {
		t.Errorf("CheckService() = %+v, want healthy", res)
	}

	h, _ := m.ServiceHealth("s1")
	if h.UptimeScore != 100 || h.ErrorRate != 0 || h.Status != StatusHealthy {
		t.Errorf("record = %+v, want healthy/100/0", h)
	}
	if len(m.UnhealthyServices()) != 0 {
		t.Errorf("UnhealthyServices() = %v, want none", m.UnhealthyServices())
	}
}

func TestMonitor_CheckService_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	m := NewMonitor(MonitorConfig{
		ProbeTimeout: 20 * time.Millisecond,
		Clock:        clockwork.NewFakeClock(),
		Prober: ProberFunc(func(ctx context.Context, endpoint string) ProbeResult {
			<-release // ignores ctx
			return Success(0, 200)
		}),
	})
	_ = m.Register(Registration{Name: "s2", Endpoint: "http://s2"})

	start := time.Now()
	res, err := m.CheckService(context.Background(), "s2")
	if err != nil {
		t.Fatalf("CheckService() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("CheckService() took %v, want about 20ms", elapsed)
	}
	if res.Healthy || res.Status != StatusDown || res.Error == "" {
		t.Errorf("CheckService() = %+v, want down with error", res)
	}

	h, _ := m.ServiceHealth("s2")
	if h.UptimeScore != 98 || h.ErrorRate != 5 {
		t.Errorf("scores = (%v, %v), want (98, 5)", h.UptimeScore, h.ErrorRate)
	}
}

func TestMonitor_CheckService_PanickingProber(t *testing.T) {
	m := newTestMonitor(ProberFunc(func(ctx context.Context, endpoint string) ProbeResult {
		panic("nil client")
	}))
	_ = m.Register(Registration{Name: "s", Endpoint: "http://s"})

	res, err := m.CheckService(context.Background(), "s")
	if err != nil {
		t.Fatalf("CheckService() error = %v", err)
	}
	if res.Status != StatusDown {
		t.Errorf("Status = %v, want down", res.Status)
	}
}

func TestMonitor_CheckAll_Concurrent(t *testing.T) {
	const services = 20
	var inFlight, peak atomic.Int32
	m := newTestMonitor(ProberFunc(func(ctx context.Context, endpoint string) ProbeResult {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		return Success(50*time.Millisecond, 200)
	}))
	for i := 0; i < services; i++ {
		_ = m.Register(Registration{Name: fmt.Sprintf("svc-%02d", i), Endpoint: fmt.Sprintf("http://svc-%02d", i)})
	}

	start := time.Now()
	results := m.CheckAll(context.Background())
	elapsed := time.Since(start)

	if len(results) != services {
		t.Fatalf("len(results) = %d, want %d", len(results), services)
	}
	if results[0].Service != "svc-00" || results[services-1].Service != "svc-19" {
		t.Errorf("results not in registration order: first=%s last=%s", results[0].Service, results[services-1].Service)
	}
	if elapsed > time.Second {
		t.Errorf("CheckAll() took %v, want roughly one probe duration", elapsed)
	}
	if peak.Load() < 2 {
		t.Errorf("peak concurrency = %d, want probes to overlap", peak.Load())
	}
}

func TestMonitor_CheckAll_MaxConcurrentProbes(t *testing.T) {
	var inFlight, peak atomic.Int32
	m := NewMonitor(MonitorConfig{
		MaxConcurrentProbes: 2,
		Clock:               clockwork.NewFakeClock(),
		Prober: ProberFunc(func(ctx context.Context, endpoint string) ProbeResult {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			return Success(0, 200)
		}),
	})
	for i := 0; i < 6; i++ {
		_ = m.Register(Registration{Name: fmt.Sprintf("s%d", i), Endpoint: fmt.Sprintf("http://s%d", i)})
	}

	m.CheckAll(context.Background())

	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestMonitor_UnhealthyServices(t *testing.T) {
	m := newTestMonitor(scripted(map[string]ProbeResult{
		"http://a": Unreachable(0, errors.New("refused")),
		"http://c": Failure(0, 500, nil),
	}))
	for _, n := range []string{"a", "b", "c"} {
		_ = m.Register(Registration{Name: n, Endpoint: "http://" + n})
	}

	m.CheckAll(context.Background())

	unhealthy := m.UnhealthyServices()
	if len(unhealthy) != 2 || unhealthy[0].Name != "a" || unhealthy[1].Name != "c" {
		t.Fatalf("UnhealthyServices() = %v, want [a c]", names(unhealthy))
	}
	if unhealthy[0].Status != StatusDown || unhealthy[1].Status != StatusDegraded {
		t.Errorf("statuses = %v/%v, want down/degraded", unhealthy[0].Status, unhealthy[1].Status)
	}
	if len(m.AllHealth()) != 3 {
		t.Errorf("len(AllHealth()) = %d, want 3", len(m.AllHealth()))
	}
}

func TestMonitor_OnTransition(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	outcome := Unreachable(0, errors.New("refused"))
	m := NewMonitor(MonitorConfig{
		Clock: clockwork.NewFakeClock(),
		Prober: ProberFunc(func(ctx context.Context, endpoint string) ProbeResult {
			mu.Lock()
			defer mu.Unlock()
			return outcome
		}),
		OnTransition: func(ctx context.Context, prev, next ServiceHealth) {
			mu.Lock()
			seen = append(seen, prev.Status.String()+"->"+next.Status.String())
			mu.Unlock()
		},
	})
	_ = m.Register(Registration{Name: "s", Endpoint: "http://s"})

	_, _ = m.CheckService(context.Background(), "s")
	_, _ = m.CheckService(context.Background(), "s")
	mu.Lock()
	outcome = Success(0, 200)
	mu.Unlock()
	_, _ = m.CheckService(context.Background(), "s")

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "healthy->down" || seen[1] != "down->healthy" {
		t.Errorf("transitions = %v, want [healthy->down down->healthy]", seen)
	}
}

func TestMonitor_StartStopLoop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var probes atomic.Int32
	cycle := make(chan struct{}, 10)
	m := NewMonitor(MonitorConfig{
		Interval: 30 * time.Second,
		Clock:    clock,
		Prober: ProberFunc(func(ctx context.Context, endpoint string) ProbeResult {
			probes.Add(1)
			cycle <- struct{}{}
			return Success(0, 200)
		}),
	})
	_ = m.Register(Registration{Name: "s", Endpoint: "http://s"})

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if !m.Running() {
		t.Fatal("Running() = false after Start")
	}

	<-cycle // immediate first cycle

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("ticker never armed: %v", err)
	}
	clock.Advance(30 * time.Second)
	<-cycle

	if got := probes.Load(); got != 2 {
		t.Errorf("probes = %d, want 2 (one loop, not two)", got)
	}

	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if m.Running() {
		t.Error("Running() = true after Stop")
	}
	if err := m.Stop(ctx); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}

	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	if got := probes.Load(); got != 2 {
		t.Errorf("probes after Stop = %d, want 2", got)
	}
}

func TestMonitor_StopWaitsForInFlightCycle(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	m := NewMonitor(MonitorConfig{
		ProbeTimeout: 5 * time.Second,
		Clock:        clockwork.NewFakeClock(),
		Prober: ProberFunc(func(ctx context.Context, endpoint string) ProbeResult {
			close(entered)
			<-release
			finished.Store(true)
			return Success(0, 200)
		}),
	})
	_ = m.Register(Registration{Name: "s", Endpoint: "http://s"})
	_ = m.Start(context.Background())
	<-entered

	stopped := make(chan error, 1)
	go func() { stopped <- m.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("Stop() returned while a probe was in flight")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	if err := <-stopped; err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !finished.Load() {
		t.Error("in-flight probe did not finish before Stop returned")
	}
	h, _ := m.ServiceHealth("s")
	if h.LastCheckedAt.IsZero() {
		t.Error("in-flight probe result was not recorded")
	}
}

func TestMonitor_RestartAfterContextCancel(t *testing.T) {
	m := newTestMonitor(scripted(nil))
	ctx, cancel := context.WithCancel(context.Background())
	_ = m.Start(ctx)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for m.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if m.Running() {
		t.Fatal("loop kept running after ctx was cancelled")
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !m.Running() {
		t.Error("Running() = false after restart")
	}
	_ = m.Stop(context.Background())
}
