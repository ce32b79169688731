// Package recovery chooses and runs recovery actions for unhealthy services.
//
// A Catalog holds strategies ordered by priority. For each attempt the
// Engine takes the first strategy whose condition holds for the service's
// health snapshot, runs its Actuator under a timeout and records the result
// as an incident. When nothing applies the engine records an unsuccessful
// ALERT_TEAM incident saying so.
//
// The default catalog, evaluated top to bottom:
//
//	1 RESTART_SERVICE  down and uptime < 50
//	2 CIRCUIT_BREAK    error rate > 50
//	3 SCALE_UP         degraded and response time > 5000ms
//	4 REROUTE_TRAFFIC  degraded and uptime < 80
//	5 ALERT_TEAM       down and uptime < 20
//
// LoadRules replaces it with a YAML rule pack.
//
// A Driver runs the engine periodically over whatever a Source reports as
// unhealthy, bounded by a bulkhead and an optional rate limiter.
package recovery
