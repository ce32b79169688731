package auth

import (
	"errors"
	"net/http"
)

// ErrorHandler writes an authentication or authorization failure.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, status int, err error)

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, status int, err error) {
	http.Error(w, err.Error(), status)
}

// Authenticate rejects requests without valid credentials with 401 and
// attaches the identity to the request context. onError may be nil.
func Authenticate(a Authenticator, onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = defaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := a.Authenticate(r.Context(), &Request{Headers: r.Header})
			if err != nil {
				onError(w, r, http.StatusInternalServerError, err)
				return
			}
			if !res.Authenticated {
				w.Header().Set("WWW-Authenticate", `Bearer realm="phoenix"`)
				onError(w, r, http.StatusUnauthorized, res.Error)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), res.Identity)))
		})
	}
}

// Authorize rejects requests whose identity may not perform action with
// 403. It must run after Authenticate.
func Authorize(z Authorizer, action string, onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = defaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := z.Authorize(r.Context(), IdentityFromContext(r.Context()), action)
			if errors.Is(err, ErrForbidden) {
				onError(w, r, http.StatusForbidden, err)
				return
			}
			if err != nil {
				onError(w, r, http.StatusInternalServerError, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
