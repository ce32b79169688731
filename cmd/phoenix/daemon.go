package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"k8s.io/client-go/kubernetes"

	"github.com/jonwraymond/phoenix/actuator"
	"github.com/jonwraymond/phoenix/api"
	"github.com/jonwraymond/phoenix/auth"
	"github.com/jonwraymond/phoenix/cache"
	"github.com/jonwraymond/phoenix/config"
	"github.com/jonwraymond/phoenix/health"
	"github.com/jonwraymond/phoenix/incident"
	"github.com/jonwraymond/phoenix/observe"
	"github.com/jonwraymond/phoenix/recovery"
	"github.com/jonwraymond/phoenix/resilience"
	"github.com/jonwraymond/phoenix/secret"
)

// daemon holds every long-lived component built from one configuration.
type daemon struct {
	cfg       *config.Config
	observer  observe.Observer
	logger    observe.Logger
	redis     redis.UniversalClient
	kube      kubernetes.Interface
	resolver  *secret.Resolver
	publisher *incident.RedisPublisher
	breakers  *resilience.BreakerSet
	monitor   *health.Monitor
	engine    *recovery.Engine
	driver    *recovery.Driver
	server    *api.Server
}

// buildOptions lets tests inject clients that main would dial itself.
type buildOptions struct {
	redis    redis.UniversalClient
	kube     kubernetes.Interface
	registry *prometheus.Registry
}

func build(ctx context.Context, cfg *config.Config, opts buildOptions) (_ *daemon, err error) {
	d := &daemon{cfg: cfg}
	defer func() {
		if err != nil {
			_ = d.close(context.WithoutCancel(ctx))
		}
	}()

	if err := d.buildKube(opts); err != nil {
		return nil, err
	}
	if err := d.resolveSecrets(ctx); err != nil {
		return nil, err
	}
	if err := d.buildObserver(ctx, opts); err != nil {
		return nil, err
	}
	d.buildRedis(opts)

	actuators, err := d.buildActuators()
	if err != nil {
		return nil, err
	}
	if err := d.buildEngine(actuators); err != nil {
		return nil, err
	}
	if err := d.buildMonitor(ctx); err != nil {
		return nil, err
	}
	d.buildDriver()
	d.buildServer(opts)
	return d, nil
}

func (d *daemon) buildKube(opts buildOptions) error {
	d.kube = opts.kube
	if d.kube != nil || !d.cfg.Actuators.Kubernetes.Enabled {
		return nil
	}
	client, err := actuator.NewKubernetesClient(d.cfg.Actuators.Kubernetes.Kubeconfig)
	if err != nil {
		return err
	}
	d.kube = client
	return nil
}

func (d *daemon) resolveSecrets(ctx context.Context) error {
	var extra []secret.Provider
	if d.kube != nil {
		extra = append(extra, secret.NewKubernetesProvider(d.kube, d.cfg.Actuators.Kubernetes.Namespace))
	}
	r, err := d.cfg.Resolver(secret.NewDefaultRegistry(), extra...)
	if err != nil {
		return err
	}
	d.resolver = r
	if err := d.cfg.ResolveSecrets(ctx, r); err != nil {
		return fmt.Errorf("resolve secrets: %w", err)
	}
	return nil
}

func (d *daemon) buildObserver(ctx context.Context, opts buildOptions) error {
	obsCfg := d.cfg.Observe
	if opts.registry != nil {
		obsCfg.Registerer = opts.registry
	}
	obs, err := observe.NewObserver(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	d.observer = obs
	d.logger = obs.Logger()
	return nil
}

func (d *daemon) buildRedis(opts buildOptions) {
	d.redis = opts.redis
	if d.redis == nil && d.cfg.Redis.Enabled() {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     d.cfg.Redis.Addr,
			Username: d.cfg.Redis.Username,
			Password: d.cfg.Redis.Password,
			DB:       d.cfg.Redis.DB,
		})
	}
	if d.redis != nil {
		d.publisher = incident.NewRedisPublisher(d.redis, d.cfg.Ledger.EventsChannel)
	}
}

// buildActuators binds every configured backend and wraps the remote ones in
// one guard. Dry-run replaces them all with logging stand-ins.
func (d *daemon) buildActuators() (recovery.Actuators, error) {
	ac := d.cfg.Actuators
	if d.cfg.Recovery.DryRun {
		d.logger.Warn(context.Background(), "dry run: recovery actions are logged, not executed")
		return actuator.DryRunAll(true, d.logger), nil
	}

	var sets []recovery.Actuators
	if d.kube != nil {
		sets = append(sets, actuator.NewKubernetes(d.kube, actuator.KubernetesConfig{
			Namespace:   ac.Kubernetes.Namespace,
			ScaleStep:   ac.Kubernetes.ScaleStep,
			MaxReplicas: ac.Kubernetes.MaxReplicas,
			Logger:      d.logger,
		}).Actuators())
	}
	if ac.Traffic.Enabled && d.redis != nil {
		sets = append(sets, actuator.NewTraffic(d.redis, actuator.TrafficConfig{
			TTL:       ac.Traffic.TTL,
			KeyPrefix: ac.Traffic.KeyPrefix,
			Publisher: d.publisher,
			Logger:    d.logger,
		}).Actuators())
	}
	if ac.Webhook.URL != "" {
		hooks := make(recovery.Actuators, len(ac.Webhook.Actions))
		for _, name := range ac.Webhook.Actions {
			action, err := recovery.ParseAction(name)
			if err != nil {
				return nil, err
			}
			hooks[action] = actuator.NewWebhook(action, actuator.WebhookConfig{
				URL:        ac.Webhook.URL,
				SigningKey: []byte(ac.Webhook.SigningKey),
				Audience:   ac.Webhook.Audience,
			})
		}
		sets = append(sets, hooks)
	}
	if ac.Alert.URL != "" {
		sets = append(sets, recovery.Actuators{
			recovery.ActionAlertTeam: actuator.NewAlert(actuator.AlertConfig{
				URL:     ac.Alert.URL,
				Channel: ac.Alert.Channel,
			}),
		})
	}

	d.breakers = resilience.NewBreakerSet(resilience.CircuitBreakerConfig{
		MaxFailures:  ac.Guard.MaxFailures,
		ResetTimeout: ac.Guard.ResetTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			d.logger.Warn(context.Background(), "actuator circuit changed",
				observe.Field{Key: "target", Value: name},
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()},
			)
		},
	})
	guard := resilience.NewGuard(
		resilience.WithBreakers(d.breakers),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  ac.Guard.MaxAttempts,
			InitialDelay: ac.Guard.InitialDelay,
			RetryIf:      actuator.RetryIf,
		})),
		resilience.WithTimeout(d.cfg.Recovery.ActionTimeout),
	)
	return actuator.GuardAll(guard, actuator.Merge(sets...)), nil
}

func (d *daemon) buildEngine(actuators recovery.Actuators) error {
	catalog := recovery.DefaultCatalog(actuators)
	if path := d.cfg.Recovery.RulesFile; path != "" {
		c, err := recovery.LoadRulesFile(path, actuators)
		if err != nil {
			return err
		}
		catalog = c
	}

	var ledger incident.Ledger = incident.NewMemoryLedger()
	if d.cfg.Ledger.Backend == "redis" {
		ledger = incident.NewRedisLedger(d.redis, incident.WithLedgerKey(d.cfg.Ledger.Key))
	}

	var notifier incident.Notifier
	if d.publisher != nil {
		notifier = d.publisher
	}

	d.engine = recovery.NewEngine(recovery.EngineConfig{
		Catalog:       catalog,
		ActionTimeout: d.cfg.Recovery.ActionTimeout,
		Ledger:        ledger,
		Notifier:      notifier,
		Logger:        d.logger,
		Metrics:       d.observer.Metrics(),
		Middleware:    observe.MiddlewareFromObserver(d.observer),
	})
	return nil
}

func (d *daemon) buildMonitor(ctx context.Context) error {
	mc := d.cfg.Monitor
	grpcProber := health.NewGRPCProber(mc.GRPCService)
	grpcProber.DialOptions = []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(grpc_prometheus.UnaryClientInterceptor),
	}
	prober := health.DefaultProber().
		Handle("http", health.NewHTTPProber(mc.HTTPPath)).
		Handle("https", health.NewHTTPProber(mc.HTTPPath)).
		Handle("grpc", grpcProber)

	var onTransition func(context.Context, health.ServiceHealth, health.ServiceHealth)
	if d.publisher != nil {
		onTransition = func(ctx context.Context, prev, next health.ServiceHealth) {
			if err := d.publisher.StatusChanged(ctx, prev, next); err != nil {
				d.logger.Warn(ctx, "status event publish failed",
					observe.Field{Key: "service", Value: next.Name}, observe.Err(err))
			}
		}
	}

	var store health.StateStore
	if d.redis != nil && mc.State.Enabled {
		store = health.NewRedisStateStore(d.redis, mc.State.KeyPrefix, mc.State.TTL)
	}

	d.monitor = health.NewMonitor(health.MonitorConfig{
		Interval:            mc.Interval,
		ProbeTimeout:        mc.ProbeTimeout,
		FailureThreshold:    mc.FailureThreshold,
		MaxConcurrentProbes: mc.MaxConcurrentProbes,
		Prober:              prober,
		Logger:              d.logger,
		Metrics:             d.observer.Metrics(),
		Middleware:          observe.MiddlewareFromObserver(d.observer),
		OnTransition:        onTransition,
		Store:               store,
	})
	for _, reg := range d.cfg.Services {
		if !prober.Supports(reg.Endpoint) {
			return fmt.Errorf("service %q: %w: %s", reg.Name, health.ErrUnsupportedScheme, reg.Endpoint)
		}
		if err := d.monitor.Register(reg); err != nil {
			return err
		}
	}

	// A state store that cannot be read leaves the fresh records in place.
	if _, err := d.monitor.Restore(ctx); err != nil {
		d.logger.Warn(ctx, "health state not restored", observe.Err(err))
	}
	return nil
}

func (d *daemon) buildDriver() {
	rc := d.cfg.Recovery
	var limiter *resilience.RateLimiter
	if rc.Rate > 0 {
		limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: rc.Rate, Burst: rc.Burst})
	}
	d.driver = recovery.NewDriver(d.monitor, d.engine, recovery.DriverConfig{
		Interval:      rc.Interval,
		MaxConcurrent: rc.MaxConcurrent,
		Limiter:       limiter,
		Logger:        d.logger,
	})
}

func (d *daemon) buildServer(opts buildOptions) {
	var snapshots cache.Cache
	if d.redis != nil {
		snapshots = cache.NewRedisCache(d.redis, "")
	}

	var metrics http.Handler
	if d.cfg.Observe.Metrics.Enabled && d.cfg.Observe.Metrics.Exporter == "prometheus" {
		var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
		if opts.registry != nil {
			gatherer = opts.registry
		}
		metrics = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}

	d.server = api.NewServer(api.Config{
		Monitor:       d.monitor,
		Engine:        d.engine,
		Authenticator: authenticator(d.cfg.API),
		Cache:         snapshots,
		SnapshotTTL:   d.cfg.API.StatsTTL,
		Breakers:      d.breakers,
		Metrics:       metrics,
		Logger:        d.logger,
	})
}

// authenticator returns nil when no credentials are configured, which leaves
// the API open.
func authenticator(c config.APIConfig) auth.Authenticator {
	if !c.AuthEnabled() {
		return nil
	}
	var auths []auth.Authenticator
	if len(c.APIKeys) > 0 {
		store := auth.NewMemoryAPIKeyStore()
		for _, k := range c.APIKeys {
			store.Add(k.Key, &auth.APIKey{Principal: k.Principal, Roles: k.Roles})
		}
		auths = append(auths, auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, store))
	}
	if c.JWT.Secret != "" {
		auths = append(auths, auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret:   []byte(c.JWT.Secret),
			Issuer:   c.JWT.Issuer,
			Audience: c.JWT.Audience,
		}))
	}
	return auth.NewCompositeAuthenticator(auths...)
}

// serve runs the monitor, the driver and the API until ctx is cancelled.
func (d *daemon) serve(ctx context.Context) error {
	if err := d.monitor.Start(ctx); err != nil {
		return err
	}
	if err := d.driver.Start(ctx); err != nil {
		return err
	}
	d.logger.Info(ctx, "phoenix started",
		observe.Field{Key: "services", Value: len(d.cfg.Services)},
		observe.Field{Key: "strategies", Value: d.engine.Catalog().Len()},
		observe.Field{Key: "api_addr", Value: d.cfg.API.Addr},
	)

	err := d.server.ListenAndServe(ctx, d.cfg.API.Addr, d.cfg.API.ShutdownTimeout)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

// close stops the loops and releases clients. It is safe on a partly built
// daemon.
func (d *daemon) close(ctx context.Context) error {
	var errs []error
	if d.driver != nil {
		errs = append(errs, d.driver.Stop(ctx))
	}
	if d.monitor != nil {
		errs = append(errs, d.monitor.Stop(ctx))
	}
	if d.resolver != nil {
		errs = append(errs, d.resolver.Close())
	}
	if d.redis != nil {
		errs = append(errs, d.redis.Close())
	}
	if d.observer != nil {
		errs = append(errs, d.observer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
