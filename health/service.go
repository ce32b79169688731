package health

import (
	"fmt"
	"maps"
	"math"
	"net/url"
	"time"
)

// Status is the derived health state of a service.
type Status int

const (
	// StatusHealthy means the latest probe succeeded.
	StatusHealthy Status = iota
	// StatusDegraded means the service answered but reported failure.
	StatusDegraded
	// StatusDown means the service could not be reached in time.
	StatusDown
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusDown:
		return "down"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "healthy":
		return StatusHealthy, nil
	case "degraded":
		return StatusDegraded, nil
	case "down":
		return StatusDown, nil
	}
	return 0, fmt.Errorf("health: unknown status %q", s)
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Score bounds and per-probe adjustments.
const (
	MaxScore = 100.0
	MinScore = 0.0

	successUptimeGain = 0.1
	softUptimeLoss    = 1.0
	hardUptimeLoss    = 2.0
	hardErrorRateGain = 5.0
)

// Registration is the input to Monitor.Register.
type Registration struct {
	Name       string            `json:"name" yaml:"name"`
	Endpoint   string            `json:"endpoint" yaml:"endpoint"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes"`
}

// Validate checks the name and that the endpoint parses with a scheme and host.
func (r Registration) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidService)
	}
	u, err := url.Parse(r.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: endpoint %q: %v", ErrInvalidService, r.Endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: endpoint %q needs a scheme and host", ErrInvalidService, r.Endpoint)
	}
	return nil
}

// ServiceHealth is the live health record of one registered service.
// ErrorRate and UptimeScore always lie in [0,100].
type ServiceHealth struct {
	Name                string            `json:"name"`
	Endpoint            string            `json:"endpoint"`
	Status              Status            `json:"status"`
	LastCheckedAt       time.Time         `json:"lastCheckedAt"`
	ResponseTimeMs      int64             `json:"responseTimeMs"`
	ErrorRate           float64           `json:"errorRate"`
	UptimeScore         float64           `json:"uptimeScore"`
	ConsecutiveFailures int               `json:"consecutiveFailures"`
	LastError           string            `json:"lastError,omitempty"`
	Attributes          map[string]string `json:"attributes,omitempty"`
}

// NewServiceHealth returns the initial record for a registration: healthy,
// full uptime, no errors.
func NewServiceHealth(r Registration) ServiceHealth {
	return ServiceHealth{
		Name:        r.Name,
		Endpoint:    r.Endpoint,
		Status:      StatusHealthy,
		UptimeScore: MaxScore,
		Attributes:  maps.Clone(r.Attributes),
	}
}

// Healthy reports whether the status is healthy.
func (h ServiceHealth) Healthy() bool {
	return h.Status == StatusHealthy
}

// Clone returns a copy that shares no mutable state with h.
func (h ServiceHealth) Clone() ServiceHealth {
	h.Attributes = maps.Clone(h.Attributes)
	return h
}

// Apply folds one probe result observed at 'at' into the record and returns
// the new record. Scores move on every probe. The status leaves healthy only
// once failureThreshold consecutive failures have been seen; a threshold of
// 1 makes the status a pure function of the latest probe.
func (h ServiceHealth) Apply(res ProbeResult, at time.Time, failureThreshold int) ServiceHealth {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	h.LastCheckedAt = at

	switch res.Outcome {
	case OutcomeSuccess:
		h.Status = StatusHealthy
		h.UptimeScore = clamp(h.UptimeScore + successUptimeGain)
		h.ResponseTimeMs = res.ResponseTime.Milliseconds()
		h.ConsecutiveFailures = 0
		h.LastError = ""
		return h

	case OutcomeFailure:
		h.UptimeScore = clamp(h.UptimeScore - softUptimeLoss)
		h.ResponseTimeMs = res.ResponseTime.Milliseconds()
		h.ConsecutiveFailures++
		h.LastError = res.errorText()
		if h.ConsecutiveFailures >= failureThreshold {
			h.Status = StatusDegraded
		}
		return h

	default:
		h.UptimeScore = clamp(h.UptimeScore - hardUptimeLoss)
		h.ErrorRate = clamp(h.ErrorRate + hardErrorRateGain)
		h.ConsecutiveFailures++
		h.LastError = res.errorText()
		if h.ConsecutiveFailures >= failureThreshold {
			h.Status = StatusDown
		}
		return h
	}
}

// scorePrecision is the number of score steps per point; ten 0.1 gains
// from zero sum to exactly 1.
const scorePrecision = 1000

func clamp(v float64) float64 {
	v = math.Round(v*scorePrecision) / scorePrecision
	return min(MaxScore, max(MinScore, v))
}
