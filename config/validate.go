package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jonwraymond/phoenix/recovery"
)

var knownRoles = []string{"viewer", "operator"}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Monitor.Interval <= 0 {
		fail("monitor.interval must be positive")
	}
	if c.Monitor.ProbeTimeout <= 0 {
		fail("monitor.probe_timeout must be positive")
	}
	if c.Monitor.FailureThreshold < 1 {
		fail("monitor.failure_threshold must be at least 1")
	}
	if c.Monitor.MaxConcurrentProbes < 0 {
		fail("monitor.max_concurrent_probes must not be negative")
	}
	if c.Monitor.State.TTL < 0 {
		fail("monitor.state.ttl must not be negative")
	}

	if c.Recovery.Interval <= 0 {
		fail("recovery.interval must be positive")
	}
	if c.Recovery.ActionTimeout <= 0 {
		fail("recovery.action_timeout must be positive")
	}
	if c.Recovery.MaxConcurrent < 1 {
		fail("recovery.max_concurrent must be at least 1")
	}
	if c.Recovery.Rate < 0 {
		fail("recovery.rate must not be negative")
	}
	if c.Recovery.Rate > 0 && c.Recovery.Burst < 1 {
		fail("recovery.burst must be at least 1 when rate is set")
	}

	seen := make(map[string]bool, len(c.Services))
	for i, s := range c.Services {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: services[%d]: %w", ErrInvalid, i, err))
			continue
		}
		if seen[s.Name] {
			fail("services[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
	}

	switch c.Ledger.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled() {
			fail("ledger.backend redis needs redis.addr")
		}
	default:
		fail("ledger.backend %q, want memory or redis", c.Ledger.Backend)
	}

	if c.Actuators.Traffic.Enabled && !c.Redis.Enabled() {
		fail("actuators.traffic needs redis.addr")
	}
	if c.Actuators.Kubernetes.Enabled && c.Actuators.Kubernetes.MaxReplicas < 1 {
		fail("actuators.kubernetes.max_replicas must be at least 1")
	}
	if w := c.Actuators.Webhook; len(w.Actions) > 0 && w.URL == "" {
		fail("actuators.webhook.actions need a url")
	}
	for _, a := range c.Actuators.Webhook.Actions {
		if _, err := recovery.ParseAction(a); err != nil {
			errs = append(errs, fmt.Errorf("%w: actuators.webhook.actions: %w", ErrInvalid, err))
		}
	}
	if c.Actuators.Guard.MaxAttempts < 1 {
		fail("actuators.guard.max_attempts must be at least 1")
	}

	for i, k := range c.API.APIKeys {
		if k.Key == "" || k.Principal == "" {
			fail("api.api_keys[%d]: key and principal are required", i)
		}
		for _, r := range k.Roles {
			if !slices.Contains(knownRoles, r) {
				fail("api.api_keys[%d]: unknown role %q", i, r)
			}
		}
	}
	if c.API.StatsTTL < 0 {
		fail("api.stats_ttl must not be negative")
	}

	if err := c.Observe.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: observe: %w", ErrInvalid, err))
	}
	return errors.Join(errs...)
}
