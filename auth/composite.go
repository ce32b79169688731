package auth

import "context"

// CompositeAuthenticator tries authenticators in order and returns the
// first success.
type CompositeAuthenticator struct {
	authenticators []Authenticator
}

// NewCompositeAuthenticator creates a composite authenticator.
func NewCompositeAuthenticator(auths ...Authenticator) *CompositeAuthenticator {
	return &CompositeAuthenticator{authenticators: auths}
}

// Name returns "composite".
func (c *CompositeAuthenticator) Name() string { return "composite" }

// Supports reports whether any member supports the request.
func (c *CompositeAuthenticator) Supports(ctx context.Context, req *Request) bool {
	for _, a := range c.authenticators {
		if a.Supports(ctx, req) {
			return true
		}
	}
	return false
}

// Authenticate returns the first success, else the last rejection. With no
// supporting member the request has no credentials.
func (c *CompositeAuthenticator) Authenticate(ctx context.Context, req *Request) (*Result, error) {
	var last *Result
	for _, a := range c.authenticators {
		if !a.Supports(ctx, req) {
			continue
		}
		res, err := a.Authenticate(ctx, req)
		if err != nil {
			return nil, err
		}
		if res.Authenticated {
			return res, nil
		}
		last = res
	}
	if last != nil {
		return last, nil
	}
	return Failure(ErrMissingCredentials, c.Name()), nil
}

var _ Authenticator = (*CompositeAuthenticator)(nil)
