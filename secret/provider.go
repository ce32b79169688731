package secret

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Provider resolves secrets by reference.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Logging: implementations must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// FileProvider reads secrets from files, such as mounted Kubernetes
// secret volumes. Relative references resolve against Dir.
//
//	secretref:file:/var/run/secrets/phoenix/redis-password
type FileProvider struct {
	Dir string
}

// Name returns "file".
func (p FileProvider) Name() string { return "file" }

// Resolve returns the file content without its trailing newline.
func (p FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	path := ref
	if !filepath.IsAbs(path) && p.Dir != "" {
		path = filepath.Join(p.Dir, path)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: file %s", ErrNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("secret: read %s: %w", path, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// Close is a no-op.
func (p FileProvider) Close() error { return nil }

// EnvProvider reads secrets from environment variables, optionally
// prefixed.
//
//	secretref:env:SLACK_WEBHOOK
type EnvProvider struct {
	Prefix string
}

// Name returns "env".
func (p EnvProvider) Name() string { return "env" }

// Resolve returns the variable's value.
func (p EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(p.Prefix + ref)
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrNotFound, p.Prefix+ref)
	}
	return v, nil
}

// Close is a no-op.
func (p EnvProvider) Close() error { return nil }
