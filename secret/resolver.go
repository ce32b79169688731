package secret

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const refPrefix = "secretref:"

var inlineRefPattern = regexp.MustCompile(`secretref:([^:\s]+):([^\s]+)`)

// Resolver expands configuration values: strict environment expansion
// first, then secret references through the registered providers.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a resolver. A strict resolver rejects empty secrets.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider), strict: strict}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider under its Name.
func (r *Resolver) Register(p Provider) {
	if p == nil {
		return
	}
	r.providers[p.Name()] = p
}

// Close closes every provider.
func (r *Resolver) Close() error {
	var errs []error
	for _, p := range r.providers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// ResolveValue resolves one value. A nil Resolver only expands the
// environment.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil || r == nil {
		return expanded, err
	}
	return r.ResolveRefs(ctx, expanded)
}

// ResolveRefs resolves secret references in value without environment
// expansion, for values that were already expanded as part of a file.
func (r *Resolver) ResolveRefs(ctx context.Context, value string) (string, error) {
	if provider, ref, ok := ParseSecretRef(value); ok {
		return r.resolve(ctx, provider, ref)
	}
	return r.resolveInline(ctx, value)
}

// ResolveInPlace resolves secret references in every pointed-to string.
// Empty strings are left alone. The environment is not expanded.
func (r *Resolver) ResolveInPlace(ctx context.Context, fields ...*string) error {
	for _, f := range fields {
		if f == nil || *f == "" {
			continue
		}
		v, err := r.ResolveRefs(ctx, *f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}

// ResolveSlice resolves each value.
func (r *Resolver) ResolveSlice(ctx context.Context, values []string) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve [%d]: %w", i, err)
		}
		out[i] = resolved
	}
	return out, nil
}

// ResolveMap resolves each map value.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

// ParseSecretRef splits a whole-value reference:
//
//	secretref:<provider>:<ref>
func ParseSecretRef(value string) (provider, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, refPrefix)
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

func (r *Resolver) resolve(ctx context.Context, name, ref string) (string, error) {
	p, ok := r.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	v, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && v == "" {
		return "", fmt.Errorf("%w: %s:%s", ErrEmptySecret, name, ref)
	}
	return v, nil
}

func (r *Resolver) resolveInline(ctx context.Context, value string) (string, error) {
	matches := inlineRefPattern.FindAllStringSubmatchIndex(value, -1)
	out := value
	// Back to front so earlier indexes stay valid.
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		v, err := r.resolve(ctx, out[m[2]:m[3]], out[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		out = out[:m[0]] + v + out[m[1]:]
	}
	return out, nil
}
