package secret

import (
	"context"
	"fmt"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// KubernetesProvider reads keys of Kubernetes Secrets.
//
//	secretref:k8s:<namespace>/<secret>/<key>
//	secretref:k8s:<secret>/<key>            (DefaultNamespace)
type KubernetesProvider struct {
	client           kubernetes.Interface
	defaultNamespace string
}

// NewKubernetesProvider creates a provider on client.
func NewKubernetesProvider(client kubernetes.Interface, defaultNamespace string) *KubernetesProvider {
	if defaultNamespace == "" {
		defaultNamespace = "default"
	}
	return &KubernetesProvider{client: client, defaultNamespace: defaultNamespace}
}

// Name returns "k8s".
func (p *KubernetesProvider) Name() string { return "k8s" }

// Resolve fetches the referenced key.
func (p *KubernetesProvider) Resolve(ctx context.Context, ref string) (string, error) {
	parts := strings.Split(ref, "/")
	var ns, name, key string
	switch len(parts) {
	case 2:
		ns, name, key = p.defaultNamespace, parts[0], parts[1]
	case 3:
		ns, name, key = parts[0], parts[1], parts[2]
	default:
		return "", fmt.Errorf("%w: %q, want [namespace/]secret/key", ErrInvalidRef, ref)
	}

	s, err := p.client.CoreV1().Secrets(ns).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return "", fmt.Errorf("%w: secret %s/%s", ErrNotFound, ns, name)
	}
	if err != nil {
		return "", fmt.Errorf("secret: get %s/%s: %w", ns, name, err)
	}

	if v, ok := s.Data[key]; ok {
		return string(v), nil
	}
	if v, ok := s.StringData[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: key %q in secret %s/%s", ErrNotFound, key, ns, name)
}

// Close is a no-op.
func (p *KubernetesProvider) Close() error { return nil }
