package recovery

import (
	"slices"

	"github.com/jonwraymond/phoenix/health"
)

// Catalog is an immutable, priority-ordered list of strategies. Lower
// priority values are evaluated first; ties keep declaration order.
type Catalog struct {
	strategies []Strategy
}

// NewCatalog validates and orders strategies.
func NewCatalog(strategies ...Strategy) (*Catalog, error) {
	for _, s := range strategies {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	sorted := slices.Clone(strategies)
	slices.SortStableFunc(sorted, func(a, b Strategy) int {
		return a.Priority - b.Priority
	})
	return &Catalog{strategies: sorted}, nil
}

// Strategies returns the ordered entries.
func (c *Catalog) Strategies() []Strategy {
	return slices.Clone(c.strategies)
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.strategies)
}

// Matching returns every strategy whose condition holds for h, in
// evaluation order.
func (c *Catalog) Matching(h health.ServiceHealth) []Strategy {
	var out []Strategy
	for _, s := range c.strategies {
		if s.Condition(h) {
			out = append(out, s)
		}
	}
	return out
}

// Select returns the first strategy whose condition holds for h.
func (c *Catalog) Select(h health.ServiceHealth) (Strategy, bool) {
	for _, s := range c.strategies {
		if s.Condition(h) {
			return s, true
		}
	}
	return Strategy{}, false
}

// Lookup finds a strategy by name, or else the first strategy whose action
// parses from name.
func (c *Catalog) Lookup(name string) (Strategy, bool) {
	for _, s := range c.strategies {
		if s.Name == name {
			return s, true
		}
	}
	action, err := ParseAction(name)
	if err != nil {
		return Strategy{}, false
	}
	for _, s := range c.strategies {
		if s.Action == action {
			return s, true
		}
	}
	return Strategy{}, false
}

// DefaultCatalog returns the built-in strategy set bound to actuators.
// Actions missing from actuators fail with ErrNoActuator when selected.
func DefaultCatalog(actuators Actuators) *Catalog {
	c, err := NewCatalog(
		Strategy{
			Name:        "restart-service",
			Description: "Restart a service that is down with low uptime",
			Action:      ActionRestartService,
			Priority:    1,
			Condition: func(h health.ServiceHealth) bool {
				return h.Status == health.StatusDown && h.UptimeScore < 50
			},
			Actuator: actuators.For(ActionRestartService),
		},
		Strategy{
			Name:        "circuit-break",
			Description: "Open the circuit for a service with a high error rate",
			Action:      ActionCircuitBreak,
			Priority:    2,
			Condition: func(h health.ServiceHealth) bool {
				return h.ErrorRate > 50
			},
			Actuator: actuators.For(ActionCircuitBreak),
		},
		Strategy{
			Name:        "scale-up",
			Description: "Add capacity to a slow, degraded service",
			Action:      ActionScaleUp,
			Priority:    3,
			Condition: func(h health.ServiceHealth) bool {
				return h.ResponseTimeMs > 5000 && h.Status == health.StatusDegraded
			},
			Actuator: actuators.For(ActionScaleUp),
		},
		Strategy{
			Name:        "reroute-traffic",
			Description: "Send traffic to a fallback for a degraded service",
			Action:      ActionRerouteTraffic,
			Priority:    4,
			Condition: func(h health.ServiceHealth) bool {
				return h.Status == health.StatusDegraded && h.UptimeScore < 80
			},
			Actuator: actuators.For(ActionRerouteTraffic),
		},
		Strategy{
			Name:        "alert-team",
			Description: "Page the on-call team for a service that stays down",
			Action:      ActionAlertTeam,
			Priority:    5,
			Condition: func(h health.ServiceHealth) bool {
				return h.Status == health.StatusDown && h.UptimeScore < 20
			},
			Actuator: actuators.For(ActionAlertTeam),
		},
	)
	if err != nil {
		panic(err) // unreachable: the built-in set is valid
	}
	return c
}
