// Package api serves the Phoenix operator HTTP surface: service health,
// incidents, statistics and the strategy catalog, plus write routes to
// register services and trigger a probe or a recovery by hand.
//
// Routes under /v1 are authenticated when an Authenticator is configured.
// Reads need the viewer or operator role, writes need operator.
package api
