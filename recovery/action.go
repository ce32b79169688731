package recovery

import (
	"fmt"
	"strings"
)

// Action names a kind of recovery.
type Action string

const (
	ActionRestartService Action = "RESTART_SERVICE"
	ActionCircuitBreak   Action = "CIRCUIT_BREAK"
	ActionScaleUp        Action = "SCALE_UP"
	ActionRerouteTraffic Action = "REROUTE_TRAFFIC"
	ActionRollback       Action = "ROLLBACK"
	ActionAlertTeam      Action = "ALERT_TEAM"
)

var allActions = []Action{
	ActionRestartService,
	ActionCircuitBreak,
	ActionScaleUp,
	ActionRerouteTraffic,
	ActionRollback,
	ActionAlertTeam,
}

// Actions returns every known action.
func Actions() []Action {
	out := make([]Action, len(allActions))
	copy(out, allActions)
	return out
}

// String returns the action name.
func (a Action) String() string {
	return string(a)
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range allActions {
		if a == known {
			return true
		}
	}
	return false
}

// ParseAction accepts an action name in any case.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}
