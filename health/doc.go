// Package health tracks the health of registered network services.
//
// A Monitor probes every registered service on a fixed interval and folds
// each probe into the service's ServiceHealth record:
//
//   - success: status healthy, uptime score +0.1 (capped at 100)
//   - reachable but unsuccessful: status degraded, uptime score -1
//   - unreachable or timed out: status down, uptime score -2, error rate +5
//
// Scores are clamped to [0,100] and rounded to 0.001. FailureThreshold delays the status change
// until several consecutive probes have failed; the default of 1 makes the
// status a pure function of the latest probe.
//
// # State
//
// With a StateStore configured, every record is saved after each probe and
// Monitor.Restore reloads the stored scores at startup. The monitor also
// keeps a short probe history per service for Trends, and Summary rolls
// the fleet up into one status.
//
// # Probers
//
// Probers are chosen by endpoint scheme. http and https endpoints are probed
// with GET (2xx is success), grpc endpoints with the standard gRPC health
// protocol, and tcp endpoints with a plain handshake.
//
//	mon := health.NewMonitor(health.MonitorConfig{Interval: 30 * time.Second})
//	_ = mon.Register(health.Registration{Name: "checkout", Endpoint: "http://checkout:8080/health"})
//	_ = mon.Start(ctx)
//	defer mon.Stop(context.Background())
//
//	for _, h := range mon.UnhealthyServices() {
//	    log.Printf("%s is %s", h.Name, h.Status)
//	}
package health
