package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/phoenix/secret"
)

// EnvConfigPath names the config file when no path is given.
const EnvConfigPath = "PHOENIX_CONFIG"

// Load reads path, or $PHOENIX_CONFIG when path is empty, over the
// defaults. With neither set the defaults plus environment overrides are
// used. The result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes data over the defaults and validates the result. It does
// not consult environment overrides.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(data []byte, cfg *Config) error {
	expanded, err := secret.ExpandEnvStrict(string(data))
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q: %v", ErrInvalid, key, v, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q: %v", ErrInvalid, key, v, err))
				return
			}
			*dst = b
		}
	}

	dur("PHOENIX_MONITOR_INTERVAL", &cfg.Monitor.Interval)
	dur("PHOENIX_PROBE_TIMEOUT", &cfg.Monitor.ProbeTimeout)
	dur("PHOENIX_RECOVERY_INTERVAL", &cfg.Recovery.Interval)
	dur("PHOENIX_ACTION_TIMEOUT", &cfg.Recovery.ActionTimeout)
	str("PHOENIX_RULES_FILE", &cfg.Recovery.RulesFile)
	boolean("PHOENIX_DRY_RUN", &cfg.Recovery.DryRun)

	str("PHOENIX_REDIS_ADDR", &cfg.Redis.Addr)
	str("PHOENIX_REDIS_PASSWORD", &cfg.Redis.Password)
	str("PHOENIX_LEDGER_BACKEND", &cfg.Ledger.Backend)

	str("PHOENIX_KUBECONFIG", &cfg.Actuators.Kubernetes.Kubeconfig)
	str("PHOENIX_NAMESPACE", &cfg.Actuators.Kubernetes.Namespace)
	str("PHOENIX_WEBHOOK_URL", &cfg.Actuators.Webhook.URL)
	str("PHOENIX_ALERT_URL", &cfg.Actuators.Alert.URL)

	str("PHOENIX_API_ADDR", &cfg.API.Addr)
	str("PHOENIX_JWT_SECRET", &cfg.API.JWT.Secret)

	str("PHOENIX_LOG_LEVEL", &cfg.Observe.Logging.Level)
	str("PHOENIX_LOG_FORMAT", &cfg.Observe.Logging.Format)
	str("PHOENIX_METRICS_EXPORTER", &cfg.Observe.Metrics.Exporter)
	str("PHOENIX_TRACING_EXPORTER", &cfg.Observe.Tracing.Exporter)

	return errors.Join(errs...)
}
