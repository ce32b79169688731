package config

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jonwraymond/phoenix/secret"
)

// Resolver builds a secret resolver from the secrets section using
// factories in reg. extra providers, such as a Kubernetes-backed one, are
// registered after the configured ones.
func (c *Config) Resolver(reg *secret.Registry, extra ...secret.Provider) (*secret.Resolver, error) {
	providers := c.Secrets.Providers
	if len(providers) == 0 {
		providers = map[string]map[string]any{"file": nil, "env": nil}
	}

	r := secret.NewResolver(c.Secrets.Strict)
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		p, err := reg.Create(name, providers[name])
		if err != nil {
			return nil, errors.Join(fmt.Errorf("config: secrets.providers.%s: %w", name, err), r.Close())
		}
		r.Register(p)
	}
	for _, p := range extra {
		r.Register(p)
	}
	return r, nil
}

// ResolveSecrets replaces secretref: values in credential fields.
func (c *Config) ResolveSecrets(ctx context.Context, r *secret.Resolver) error {
	fields := []*string{
		&c.Redis.Password,
		&c.Actuators.Webhook.SigningKey,
		&c.Actuators.Alert.URL,
		&c.API.JWT.Secret,
	}
	for i := range c.API.APIKeys {
		fields = append(fields, &c.API.APIKeys[i].Key)
	}
	if err := r.ResolveInPlace(ctx, fields...); err != nil {
		return fmt.Errorf("config: resolve secrets: %w", err)
	}
	return nil
}
