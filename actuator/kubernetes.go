package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/jonwraymond/phoenix/health"
	"github.com/jonwraymond/phoenix/observe"
	"github.com/jonwraymond/phoenix/recovery"
)

const (
	restartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"
	revisionAnnotation    = "deployment.kubernetes.io/revision"
	rolledBackAnnotation  = "phoenix.io/rolled-back-to"
	podTemplateHashLabel  = "pod-template-hash"
)

// KubernetesConfig configures the Kubernetes actuator.
type KubernetesConfig struct {
	// Namespace is used when a service has no namespace attribute.
	// Default: "default"
	Namespace string

	// ScaleStep is the number of replicas added per scale-up.
	// Default: 1
	ScaleStep int32

	// MaxReplicas caps scale-ups.
	// Default: 10
	MaxReplicas int32

	// Clock stamps restart annotations.
	// Default: the real clock
	Clock clockwork.Clock

	Logger observe.Logger
}

// Kubernetes restarts, scales and rolls back the Deployment behind a
// service. The deployment is named by the service's deployment attribute,
// or the service name when unset.
type Kubernetes struct {
	client kubernetes.Interface
	config KubernetesConfig
}

// NewKubernetes creates an actuator on client.
func NewKubernetes(client kubernetes.Interface, config KubernetesConfig) *Kubernetes {
	if config.Namespace == "" {
		config.Namespace = "default"
	}
	if config.ScaleStep <= 0 {
		config.ScaleStep = 1
	}
	if config.MaxReplicas <= 0 {
		config.MaxReplicas = 10
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	return &Kubernetes{client: client, config: config}
}

// NewKubernetesClient builds a clientset from kubeconfig, or from the
// in-cluster service account when kubeconfig is empty.
func NewKubernetesClient(kubeconfig string) (kubernetes.Interface, error) {
	var (
		cfg *rest.Config
		err error
	)
	if kubeconfig == "" {
		cfg, err = rest.InClusterConfig()
	} else {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("actuator: kubernetes config: %w", err)
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("actuator: kubernetes clientset: %w", err)
	}
	return client, nil
}

// Actuators returns the actions this actuator serves.
func (k *Kubernetes) Actuators() recovery.Actuators {
	return recovery.Actuators{
		recovery.ActionRestartService: recovery.ActuatorFunc(k.Restart),
		recovery.ActionScaleUp:        recovery.ActuatorFunc(k.ScaleUp),
		recovery.ActionRollback:       recovery.ActuatorFunc(k.Rollback),
	}
}

func (k *Kubernetes) target(h health.ServiceHealth) (namespace, name string) {
	return attr(h, AttrNamespace, k.config.Namespace), attr(h, AttrDeployment, h.Name)
}

// Restart triggers a rolling restart by stamping the pod template, the same
// change `kubectl rollout restart` makes.
func (k *Kubernetes) Restart(ctx context.Context, h health.ServiceHealth) (bool, error) {
	ns, name := k.target(h)

	patch, err := json.Marshal(map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"metadata": map[string]any{
					"annotations": map[string]string{
						restartedAtAnnotation: k.config.Clock.Now().UTC().Format(time.RFC3339),
					},
				},
			},
		},
	})
	if err != nil {
		return false, err
	}

	_, err = k.client.AppsV1().Deployments(ns).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		return false, k.wrap(err, ns, name)
	}
	k.config.Logger.Info(ctx, "deployment restarted",
		observe.Field{Key: "namespace", Value: ns},
		observe.Field{Key: "deployment", Value: name},
	)
	return true, nil
}

// ScaleUp adds ScaleStep replicas, capped at MaxReplicas.
func (k *Kubernetes) ScaleUp(ctx context.Context, h health.ServiceHealth) (bool, error) {
	ns, name := k.target(h)
	deployments := k.client.AppsV1().Deployments(ns)

	d, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return false, k.wrap(err, ns, name)
	}

	current := int32(1)
	if d.Spec.Replicas != nil {
		current = *d.Spec.Replicas
	}
	if current >= k.config.MaxReplicas {
		return false, fmt.Errorf("%w: %s/%s has %d", ErrAtCapacity, ns, name, current)
	}
	desired := min(current+k.config.ScaleStep, k.config.MaxReplicas)
	d.Spec.Replicas = &desired

	if _, err := deployments.Update(ctx, d, metav1.UpdateOptions{}); err != nil {
		return false, k.wrap(err, ns, name)
	}
	k.config.Logger.Info(ctx, "deployment scaled",
		observe.Field{Key: "namespace", Value: ns},
		observe.Field{Key: "deployment", Value: name},
		observe.Field{Key: "from", Value: current},
		observe.Field{Key: "to", Value: desired},
	)
	return true, nil
}

// Rollback restores the pod template of the newest ReplicaSet older than
// the deployment's current revision.
func (k *Kubernetes) Rollback(ctx context.Context, h health.ServiceHealth) (bool, error) {
	ns, name := k.target(h)
	deployments := k.client.AppsV1().Deployments(ns)

	d, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return false, k.wrap(err, ns, name)
	}

	sets, err := k.client.AppsV1().ReplicaSets(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return false, k.wrap(err, ns, name)
	}

	current := revision(d.Annotations)
	var (
		prev    *appsv1.ReplicaSet
		prevRev int64
	)
	owned := ownedBy(sets.Items, name)
	if current == 0 {
		for _, rs := range owned {
			current = max(current, revision(rs.Annotations))
		}
	}
	for _, rs := range owned {
		rev := revision(rs.Annotations)
		if rev < current && rev > prevRev {
			prev, prevRev = rs, rev
		}
	}
	if prev == nil {
		return false, fmt.Errorf("%w: %s/%s at revision %d", ErrNoPreviousRevision, ns, name, current)
	}

	tmpl := prev.Spec.Template.DeepCopy()
	delete(tmpl.Labels, podTemplateHashLabel)
	d.Spec.Template = *tmpl
	if d.Annotations == nil {
		d.Annotations = map[string]string{}
	}
	d.Annotations[rolledBackAnnotation] = strconv.FormatInt(prevRev, 10)

	if _, err := deployments.Update(ctx, d, metav1.UpdateOptions{}); err != nil {
		return false, k.wrap(err, ns, name)
	}
	k.config.Logger.Info(ctx, "deployment rolled back",
		observe.Field{Key: "namespace", Value: ns},
		observe.Field{Key: "deployment", Value: name},
		observe.Field{Key: "from_revision", Value: current},
		observe.Field{Key: "to_revision", Value: prevRev},
	)
	return true, nil
}

func (k *Kubernetes) wrap(err error, ns, name string) error {
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("%w: deployment %s/%s", ErrTargetNotFound, ns, name)
	}
	return fmt.Errorf("actuator: deployment %s/%s: %w", ns, name, err)
}

func ownedBy(sets []appsv1.ReplicaSet, deployment string) []*appsv1.ReplicaSet {
	var out []*appsv1.ReplicaSet
	for i := range sets {
		for _, ref := range sets[i].OwnerReferences {
			if ref.Kind == "Deployment" && ref.Name == deployment {
				out = append(out, &sets[i])
				break
			}
		}
	}
	return out
}

func revision(annotations map[string]string) int64 {
	rev, _ := strconv.ParseInt(annotations[revisionAnnotation], 10, 64)
	return rev
}
