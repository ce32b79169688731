package incident

import "sort"

// Stats summarises recovery effectiveness. SuccessRate is a percentage in
// [0,100] and is 0 when there are no incidents.
type Stats struct {
	TotalIncidents       int                    `json:"totalIncidents"`
	SuccessfulRecoveries int                    `json:"successfulRecoveries"`
	SuccessRate          float64                `json:"successRate"`
	AvgRecoveryTimeMs    float64                `json:"avgRecoveryTimeMs"`
	ByAction             map[string]ActionStats `json:"byAction"`
}

// ActionStats is the per-action slice of Stats.
type ActionStats struct {
	Total             int     `json:"total"`
	Successful        int     `json:"successful"`
	SuccessRate       float64 `json:"successRate"`
	AvgRecoveryTimeMs float64 `json:"avgRecoveryTimeMs"`
}

// ComputeStats derives Stats from a history.
func ComputeStats(incidents []Incident) Stats {
	type acc struct {
		total, ok int
		ms        int64
	}

	var all acc
	byAction := make(map[string]*acc)
	for _, inc := range incidents {
		a := byAction[inc.Action]
		if a == nil {
			a = &acc{}
			byAction[inc.Action] = a
		}
		for _, x := range []*acc{&all, a} {
			x.total++
			x.ms += inc.RecoveryTimeMs
			if inc.Success {
				x.ok++
			}
		}
	}

	s := Stats{
		TotalIncidents:       all.total,
		SuccessfulRecoveries: all.ok,
		SuccessRate:          rate(all.ok, all.total),
		AvgRecoveryTimeMs:    mean(all.ms, all.total),
		ByAction:             make(map[string]ActionStats, len(byAction)),
	}
	for action, a := range byAction {
		s.ByAction[action] = ActionStats{
			Total:             a.total,
			Successful:        a.ok,
			SuccessRate:       rate(a.ok, a.total),
			AvgRecoveryTimeMs: mean(a.ms, a.total),
		}
	}
	return s
}

// Actions returns the actions present in s.ByAction, sorted.
func (s Stats) Actions() []string {
	out := make([]string, 0, len(s.ByAction))
	for a := range s.ByAction {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func rate(ok, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(ok) / float64(total) * 100
}

func mean(sum int64, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}
