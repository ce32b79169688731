package auth

import (
	"context"
	"net/http"
)

// Authenticator validates credentials and returns an identity.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: Authenticate returns (nil, err) for internal failures and
//     (Result, nil) for rejected credentials.
type Authenticator interface {
	Name() string

	// Supports reports whether the request carries this authenticator's
	// kind of credential.
	Supports(ctx context.Context, req *Request) bool

	Authenticate(ctx context.Context, req *Request) (*Result, error)
}

// Request carries the credential-bearing parts of an HTTP request.
type Request struct {
	Headers http.Header
}

// Header returns the first value of key.
func (r *Request) Header(key string) string {
	return r.Headers.Get(key)
}

// Result is the outcome of one authentication attempt.
type Result struct {
	Authenticated bool
	Identity      *Identity

	// Error is set when Authenticated is false.
	Error  error
	Method string
}

// Success wraps an accepted identity.
func Success(id *Identity) *Result {
	return &Result{Authenticated: true, Identity: id, Method: string(id.Method)}
}

// Failure wraps a rejection.
func Failure(err error, method string) *Result {
	return &Result{Error: err, Method: method}
}
