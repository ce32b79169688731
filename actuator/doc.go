// Package actuator implements recovery actions against real infrastructure.
//
//   - Kubernetes: RESTART_SERVICE, SCALE_UP and ROLLBACK on the Deployment
//     named by the service's deployment attribute (or its name)
//   - Traffic: CIRCUIT_BREAK and REROUTE_TRAFFIC as expiring Redis flags,
//     announced on the events channel
//   - Webhook: any action delegated to an orchestrator over HTTP with a signed
//     bearer token
//   - Alert: ALERT_TEAM through a Slack-compatible webhook
//   - DryRun: logs instead of acting
//
// Remote actuators should be wrapped with Guarded so each target gets a
// circuit breaker, retries and a per-attempt timeout.
package actuator
