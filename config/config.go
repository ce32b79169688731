// Package config loads the Phoenix daemon configuration.
//
// Values are layered: built-in defaults, then the YAML file (after strict
// ${VAR} expansion), then PHOENIX_* environment overrides. Credentials may
// be secretref: references, resolved by ResolveSecrets after Load.
package config

import (
	"time"

	"github.com/jonwraymond/phoenix/health"
	"github.com/jonwraymond/phoenix/observe"
)

// Config is the complete daemon configuration.
type Config struct {
	Monitor   MonitorConfig         `yaml:"monitor"`
	Recovery  RecoveryConfig        `yaml:"recovery"`
	Services  []health.Registration `yaml:"services"`
	Redis     RedisConfig           `yaml:"redis"`
	Ledger    LedgerConfig          `yaml:"ledger"`
	Actuators ActuatorsConfig       `yaml:"actuators"`
	Secrets   SecretsConfig         `yaml:"secrets"`
	API       APIConfig             `yaml:"api"`
	Observe   observe.Config        `yaml:"observe"`
}

// MonitorConfig tunes the health polling loop.
type MonitorConfig struct {
	Interval            time.Duration `yaml:"interval"`
	ProbeTimeout        time.Duration `yaml:"probe_timeout"`
	FailureThreshold    int           `yaml:"failure_threshold"`
	MaxConcurrentProbes int           `yaml:"max_concurrent_probes"`

	// HTTPPath is appended to http(s) endpoints, e.g. "/health".
	HTTPPath string `yaml:"http_path"`

	// GRPCService is checked for grpc endpoints without a path.
	GRPCService string `yaml:"grpc_service"`

	// State persists health records to Redis when Redis is enabled.
	State StateConfig `yaml:"state"`
}

// StateConfig controls health record persistence.
type StateConfig struct {
	Enabled   bool          `yaml:"enabled"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// RecoveryConfig tunes the recovery loop.
type RecoveryConfig struct {
	Interval      time.Duration `yaml:"interval"`
	ActionTimeout time.Duration `yaml:"action_timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`

	// Rate and Burst limit attempts fleet-wide. Rate 0 disables limiting.
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`

	// RulesFile replaces the built-in strategy catalog.
	RulesFile string `yaml:"rules_file"`

	// DryRun binds every action to a logging no-op.
	DryRun bool `yaml:"dry_run"`
}

// RedisConfig is shared by the ledger, event publisher, traffic actuator
// and API cache. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether an address is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// LedgerConfig selects where incidents are kept.
type LedgerConfig struct {
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend"`
	Key     string `yaml:"key"`

	// EventsChannel receives status changes and recovery attempts when Redis
	// is enabled. Empty disables publishing.
	EventsChannel string `yaml:"events_channel"`
}

// ActuatorsConfig binds recovery actions to infrastructure.
type ActuatorsConfig struct {
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
	Traffic    TrafficConfig    `yaml:"traffic"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Alert      AlertConfig      `yaml:"alert"`
	Guard      GuardConfig      `yaml:"guard"`
}

// KubernetesConfig enables RESTART_SERVICE, SCALE_UP and ROLLBACK.
type KubernetesConfig struct {
	Enabled bool `yaml:"enabled"`

	// Kubeconfig is used outside a cluster. Empty means in-cluster config.
	Kubeconfig  string `yaml:"kubeconfig"`
	Namespace   string `yaml:"namespace"`
	ScaleStep   int32  `yaml:"scale_step"`
	MaxReplicas int32  `yaml:"max_replicas"`
}

// TrafficConfig enables CIRCUIT_BREAK and REROUTE_TRAFFIC through Redis.
type TrafficConfig struct {
	Enabled   bool          `yaml:"enabled"`
	TTL       time.Duration `yaml:"ttl"`
	KeyPrefix string        `yaml:"key_prefix"`
}

// WebhookConfig binds Actions to an orchestration endpoint.
type WebhookConfig struct {
	URL        string   `yaml:"url"`
	SigningKey string   `yaml:"signing_key"`
	Audience   string   `yaml:"audience"`
	Actions    []string `yaml:"actions"`
}

// AlertConfig enables ALERT_TEAM through a chat webhook.
type AlertConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

// GuardConfig protects remote actuators.
type GuardConfig struct {
	// MaxAttempts includes the first call. 1 disables retries.
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// SecretsConfig configures secretref: providers by name. Each entry's map
// is passed to the provider factory. With no entries the file and env
// providers are created with empty settings.
type SecretsConfig struct {
	// Strict rejects references that resolve to an empty value.
	Strict    bool                      `yaml:"strict"`
	Providers map[string]map[string]any `yaml:"providers"`
}

// APIConfig configures the operator API.
type APIConfig struct {
	// Addr is the listen address. Empty disables the API.
	Addr     string        `yaml:"addr"`
	StatsTTL time.Duration `yaml:"stats_ttl"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	APIKeys []APIKeyConfig `yaml:"api_keys"`
	JWT     JWTConfig      `yaml:"jwt"`
}

// AuthEnabled reports whether any credential is configured.
func (a APIConfig) AuthEnabled() bool {
	return len(a.APIKeys) > 0 || a.JWT.Secret != ""
}

// APIKeyConfig is one static API key.
type APIKeyConfig struct {
	Key       string   `yaml:"key"`
	Principal string   `yaml:"principal"`
	Roles     []string `yaml:"roles"`
}

// JWTConfig enables bearer tokens signed with Secret.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Monitor: MonitorConfig{
			Interval:         30 * time.Second,
			ProbeTimeout:     5 * time.Second,
			FailureThreshold: 1,
			State: StateConfig{
				Enabled:   true,
				KeyPrefix: "phoenix:health:",
				TTL:       24 * time.Hour,
			},
		},
		Recovery: RecoveryConfig{
			Interval:      60 * time.Second,
			ActionTimeout: 30 * time.Second,
			MaxConcurrent: 10,
			Rate:          1,
			Burst:         5,
		},
		Ledger: LedgerConfig{
			Backend:       "memory",
			Key:           "phoenix:incidents",
			EventsChannel: "phoenix:events",
		},
		Actuators: ActuatorsConfig{
			Kubernetes: KubernetesConfig{Namespace: "default", ScaleStep: 1, MaxReplicas: 10},
			Traffic:    TrafficConfig{TTL: time.Hour, KeyPrefix: "phoenix"},
			Guard: GuardConfig{
				MaxAttempts:  3,
				InitialDelay: 200 * time.Millisecond,
				MaxFailures:  5,
				ResetTimeout: 30 * time.Second,
			},
		},
		Secrets: SecretsConfig{Strict: true},
		API: APIConfig{
			Addr:            ":8080",
			StatsTTL:        5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Observe: observe.Config{
			ServiceName: "phoenix",
			Tracing:     observe.TracingConfig{Exporter: "none", SamplePct: 1},
			Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info", Format: "json"},
		},
	}
}
