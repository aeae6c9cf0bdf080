// Package collector inventories pod-owning workloads across the cluster:
// Deployments, StatefulSets, DaemonSets, and Argo Rollouts.
package collector

import (
	"context"
	"fmt"
	"log/slog"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/ppiankov/pdbwatch/internal/store"
)

// Collector lists workloads through the typed apps/v1 API and Argo Rollouts
// through the dynamic client, so the Rollout CRD module is never imported.
type Collector struct {
	client        kubernetes.Interface
	dynamicClient dynamic.Interface
	namespace     string
}

// New creates a collector. The default scope is all namespaces.
func New(client kubernetes.Interface, dynClient dynamic.Interface, opts ...func(*Collector)) *Collector {
	c := &Collector{
		client:        client,
		dynamicClient: dynClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithNamespace restricts collection to a single namespace.
func WithNamespace(ns string) func(*Collector) {
	return func(c *Collector) {
		c.namespace = ns
	}
}

// Collect lists all workload kinds in order: deployments, statefulsets,
// daemonsets, rollouts. A failure on the apps/v1 listings aborts the whole
// collection; the Rollout CRD may not be installed, so its failure only
// lands in the warnings map. Workloads whose selector has no matchLabels
// cannot be matched against a PDB and are skipped with a warning.
func (c *Collector) Collect(ctx context.Context) ([]store.Workload, map[string]string, error) {
	var workloads []store.Workload
	warnings := make(map[string]string)

	deployments, err := c.collectDeployments(ctx)
	if err != nil {
		return nil, nil, err
	}
	workloads = append(workloads, deployments...)

	statefulsets, err := c.collectStatefulSets(ctx)
	if err != nil {
		return nil, nil, err
	}
	workloads = append(workloads, statefulsets...)

	daemonsets, err := c.collectDaemonSets(ctx)
	if err != nil {
		return nil, nil, err
	}
	workloads = append(workloads, daemonsets...)

	rollouts, err := c.collectRollouts(ctx)
	if err != nil {
		slog.Warn("fetching argo rollouts", "err", err)
		warnings[store.SourceRollouts] = err.Error()
	}
	workloads = append(workloads, rollouts...)

	return workloads, warnings, nil
}

func (c *Collector) collectDeployments(ctx context.Context) ([]store.Workload, error) {
	slog.Debug("listing deployments", "namespace", c.namespace)
	list, err := c.client.AppsV1().Deployments(c.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing deployments: %w", err)
	}

	var workloads []store.Workload
	for i := range list.Items {
		d := &list.Items[i]
		labels := matchLabels(d.Spec.Selector)
		if len(labels) == 0 {
			slog.Warn("workload has no matchLabels selector, skipping",
				"kind", store.KindDeployment, "namespace", d.Namespace, "name", d.Name)
			continue
		}
		workloads = append(workloads, store.Workload{
			Namespace: d.Namespace,
			Name:      d.Name,
			Kind:      store.KindDeployment,
			Selector:  labels,
		})
	}
	return workloads, nil
}

func (c *Collector) collectStatefulSets(ctx context.Context) ([]store.Workload, error) {
	slog.Debug("listing statefulsets", "namespace", c.namespace)
	list, err := c.client.AppsV1().StatefulSets(c.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing statefulsets: %w", err)
	}

	var workloads []store.Workload
	for i := range list.Items {
		s := &list.Items[i]
		labels := matchLabels(s.Spec.Selector)
		if len(labels) == 0 {
			slog.Warn("workload has no matchLabels selector, skipping",
				"kind", store.KindStatefulSet, "namespace", s.Namespace, "name", s.Name)
			continue
		}
		workloads = append(workloads, store.Workload{
			Namespace: s.Namespace,
			Name:      s.Name,
			Kind:      store.KindStatefulSet,
			Selector:  labels,
		})
	}
	return workloads, nil
}

func (c *Collector) collectDaemonSets(ctx context.Context) ([]store.Workload, error) {
	slog.Debug("listing daemonsets", "namespace", c.namespace)
	list, err := c.client.AppsV1().DaemonSets(c.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing daemonsets: %w", err)
	}

	var workloads []store.Workload
	for i := range list.Items {
		d := &list.Items[i]
		labels := matchLabels(d.Spec.Selector)
		if len(labels) == 0 {
			slog.Warn("workload has no matchLabels selector, skipping",
				"kind", store.KindDaemonSet, "namespace", d.Namespace, "name", d.Name)
			continue
		}
		workloads = append(workloads, store.Workload{
			Namespace: d.Namespace,
			Name:      d.Name,
			Kind:      store.KindDaemonSet,
			Selector:  labels,
		})
	}
	return workloads, nil
}

// matchLabels unwraps a LabelSelector to its matchLabels map. Selectors
// built purely from matchExpressions come back empty.
func matchLabels(sel *metav1.LabelSelector) map[string]string {
	if sel == nil {
		return nil
	}
	return sel.MatchLabels
}
