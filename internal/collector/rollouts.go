package collector

import (
	"context"
	"fmt"
	"log/slog"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/ppiankov/pdbwatch/internal/store"
)

var rolloutGVR = schema.GroupVersionResource{
	Group:    "argoproj.io",
	Version:  "v1alpha1",
	Resource: "rollouts",
}

// defaultRolloutReplicas matches the Rollout CRD default when spec.replicas
// is unset.
const defaultRolloutReplicas = int32(1)

// collectRollouts lists Argo Rollout CRs via the dynamic client. The caller
// treats an error here as a warning: clusters without the CRD are common.
func (c *Collector) collectRollouts(ctx context.Context) ([]store.Workload, error) {
	slog.Debug("listing argo rollouts", "namespace", c.namespace)
	list, err := c.dynamicClient.Resource(rolloutGVR).Namespace(c.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing rollouts: %w", err)
	}

	var workloads []store.Workload
	for i := range list.Items {
		w, ok := rolloutWorkload(&list.Items[i])
		if !ok {
			continue
		}
		workloads = append(workloads, w)
	}
	return workloads, nil
}

// rolloutWorkload extracts a workload record from one Rollout object.
// Rollouts without spec.selector.matchLabels are skipped with a warning.
func rolloutWorkload(obj *unstructured.Unstructured) (store.Workload, bool) {
	labels, found, err := unstructured.NestedStringMap(obj.Object, "spec", "selector", "matchLabels")
	if err != nil || !found || len(labels) == 0 {
		slog.Warn("workload has no matchLabels selector, skipping",
			"kind", store.KindRollout, "namespace", obj.GetNamespace(), "name", obj.GetName())
		return store.Workload{}, false
	}

	replicas := defaultRolloutReplicas
	if n, found, err := unstructured.NestedInt64(obj.Object, "spec", "replicas"); err == nil && found {
		replicas = int32(n) //nolint:gosec // replica counts fit in int32
	}

	return store.Workload{
		Namespace: obj.GetNamespace(),
		Name:      obj.GetName(),
		Kind:      store.KindRollout,
		Selector:  labels,
		Replicas:  &replicas,
	}, true
}
