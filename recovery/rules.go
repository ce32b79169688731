package recovery

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/phoenix/health"
)

// RulePack is the YAML form of a catalog:
//
//	strategies:
//	  - name: restart-service
//	    action: RESTART_SERVICE
//	    priority: 1
//	    when:
//	      status: [down]
//	      uptime_below: 50
type RulePack struct {
	Strategies []Rule `yaml:"strategies"`
}

// Rule is one strategy in a RulePack. All clauses in When must hold.
type Rule struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Action      string `yaml:"action"`
	Priority    int    `yaml:"priority"`
	When        When   `yaml:"when"`
}

// When holds the clauses of a rule. Unset clauses are ignored.
type When struct {
	Status              []string `yaml:"status"`
	UptimeBelow         *float64 `yaml:"uptime_below"`
	UptimeAbove         *float64 `yaml:"uptime_above"`
	ErrorRateAbove      *float64 `yaml:"error_rate_above"`
	ResponseTimeAboveMs *int64   `yaml:"response_time_above_ms"`
	ConsecutiveFailures *int     `yaml:"consecutive_failures_at_least"`
}

func (w When) empty() bool {
	return len(w.Status) == 0 && w.UptimeBelow == nil && w.UptimeAbove == nil &&
		w.ErrorRateAbove == nil && w.ResponseTimeAboveMs == nil && w.ConsecutiveFailures == nil
}

// Condition compiles the clauses into a predicate.
func (w When) Condition() (Condition, error) {
	if w.empty() {
		return nil, fmt.Errorf("%w: rule has no clauses", ErrInvalidRules)
	}
	statuses := make([]health.Status, 0, len(w.Status))
	for _, s := range w.Status {
		st, err := health.ParseStatus(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRules, err)
		}
		statuses = append(statuses, st)
	}

	return func(h health.ServiceHealth) bool {
		if len(statuses) > 0 && !slices.Contains(statuses, h.Status) {
			return false
		}
		if w.UptimeBelow != nil && !(h.UptimeScore < *w.UptimeBelow) {
			return false
		}
		if w.UptimeAbove != nil && !(h.UptimeScore > *w.UptimeAbove) {
			return false
		}
		if w.ErrorRateAbove != nil && !(h.ErrorRate > *w.ErrorRateAbove) {
			return false
		}
		if w.ResponseTimeAboveMs != nil && !(h.ResponseTimeMs > *w.ResponseTimeAboveMs) {
			return false
		}
		if w.ConsecutiveFailures != nil && h.ConsecutiveFailures < *w.ConsecutiveFailures {
			return false
		}
		return true
	}, nil
}

// Catalog compiles the pack, binding each rule's action to actuators.
// The result replaces the default catalog entirely.
func (p RulePack) Catalog(actuators Actuators) (*Catalog, error) {
	if len(p.Strategies) == 0 {
		return nil, fmt.Errorf("%w: no strategies", ErrInvalidRules)
	}
	strategies := make([]Strategy, 0, len(p.Strategies))
	for i, r := range p.Strategies {
		action, err := ParseAction(r.Action)
		if err != nil {
			return nil, fmt.Errorf("%w: strategy %d: %w", ErrInvalidRules, i, err)
		}
		cond, err := r.When.Condition()
		if err != nil {
			return nil, fmt.Errorf("strategy %d (%s): %w", i, r.Name, err)
		}
		name := r.Name
		if name == "" {
			name = string(action)
		}
		strategies = append(strategies, Strategy{
			Name:        name,
			Description: r.Description,
			Action:      action,
			Priority:    r.Priority,
			Condition:   cond,
			Actuator:    actuators.For(action),
		})
	}
	return NewCatalog(strategies...)
}

// LoadRules decodes a YAML rule pack and compiles it. Unknown fields are
// rejected.
func LoadRules(r io.Reader, actuators Actuators) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var pack RulePack
	if err := dec.Decode(&pack); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRules, err)
	}
	return pack.Catalog(actuators)
}

// LoadRulesFile reads a rule pack from path.
func LoadRulesFile(path string, actuators Actuators) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recovery: read rules: %w", err)
	}
	return LoadRules(bytes.NewReader(data), actuators)
}
