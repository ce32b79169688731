// Package auth authenticates and authorizes callers of the operator API.
//
// Two credentials are accepted: a static API key in X-API-Key, and an
// HS256 JWT in "Authorization: Bearer". CompositeAuthenticator tries them
// in order. RoleAuthorizer maps API actions to roles: viewers may read,
// operators may also register services and trigger probes or recoveries.
//
// Authenticate and Authorize are chi-compatible HTTP middleware.
package auth
