package health

import "testing"

func record(name string, status Status, uptime float64, critical bool) ServiceHealth {
	h := ServiceHealth{Name: name, Status: status, UptimeScore: uptime}
	if critical {
		h.Attributes = map[string]string{CriticalAttribute: "true"}
	}
	return h
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		records []ServiceHealth
		want    Summary
	}{
		{
			name: "empty fleet",
			want: Summary{Status: FleetUnknown},
		},
		{
			name:    "all healthy",
			records: []ServiceHealth{record("a", StatusHealthy, 100, true), record("b", StatusHealthy, 90, false)},
			want:    Summary{Status: FleetHealthy, TotalServices: 2, HealthyServices: 2, OverallUptime: 95},
		},
		{
			name:    "non-critical failure degrades",
			records: []ServiceHealth{record("a", StatusHealthy, 100, true), record("b", StatusDown, 40, false)},
			want:    Summary{Status: FleetDegraded, TotalServices: 2, HealthyServices: 1, UnhealthyServices: 1, OverallUptime: 70},
		},
		{
			name: "critical failure",
			records: []ServiceHealth{
				record("a", StatusDegraded, 99, true),
				record("b", StatusDown, 40, false),
				record("c", StatusHealthy, 100, false),
			},
			want: Summary{Status: FleetCritical, TotalServices: 3, HealthyServices: 1, UnhealthyServices: 2, CriticalUnhealthy: 1, OverallUptime: 79.7},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summarize(tt.records); got != tt.want {
				t.Errorf("Summarize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
