package health

import "math"

// CriticalAttribute marks a service whose failure makes the whole fleet
// critical when its registration attribute is "true".
const CriticalAttribute = "critical"

// Fleet roll-up states reported by Summary.
const (
	FleetUnknown  = "unknown"
	FleetHealthy  = "healthy"
	FleetDegraded = "degraded"
	FleetCritical = "critical"
)

// Summary rolls every record up into one fleet status.
type Summary struct {
	Status            string  `json:"status"`
	TotalServices     int     `json:"totalServices"`
	HealthyServices   int     `json:"healthyServices"`
	UnhealthyServices int     `json:"unhealthyServices"`
	CriticalUnhealthy int     `json:"criticalUnhealthy"`
	OverallUptime     float64 `json:"overallUptime"`
}

// Critical reports whether the registration marked h as critical.
func (h ServiceHealth) Critical() bool {
	return h.Attributes[CriticalAttribute] == "true"
}

// Summarize computes the fleet summary. An unhealthy critical service makes
// the fleet critical; any other unhealthy service makes it degraded.
func Summarize(records []ServiceHealth) Summary {
	s := Summary{Status: FleetUnknown, TotalServices: len(records)}
	if len(records) == 0 {
		return s
	}

	var uptime float64
	for _, h := range records {
		uptime += h.UptimeScore
		if h.Healthy() {
			s.HealthyServices++
			continue
		}
		s.UnhealthyServices++
		if h.Critical() {
			s.CriticalUnhealthy++
		}
	}
	s.OverallUptime = math.Round(uptime/float64(len(records))*10) / 10

	switch {
	case s.CriticalUnhealthy > 0:
		s.Status = FleetCritical
	case s.UnhealthyServices > 0:
		s.Status = FleetDegraded
	default:
		s.Status = FleetHealthy
	}
	return s
}
