package budget

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/ppiankov/pdbwatch/internal/store"
)

// ListPolicies lists PodDisruptionBudgets across all namespaces and reduces
// them to selector records. Selectors that use only matchExpressions come
// back with an empty Selector map; BuildIndex skips those. Callers treat a
// returned error as a degraded audit, not a fatal one: coverage can still be
// reported as zero-protected.
func ListPolicies(ctx context.Context, client kubernetes.Interface) ([]store.Policy, error) {
	pdbs, err := client.PolicyV1().PodDisruptionBudgets("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing poddisruptionbudgets: %w", err)
	}

	policies := make([]store.Policy, 0, len(pdbs.Items))
	for i := range pdbs.Items {
		pdb := &pdbs.Items[i]
		p := store.Policy{
			Namespace: pdb.Namespace,
			Name:      pdb.Name,
		}
		if pdb.Spec.Selector != nil {
			p.Selector = pdb.Spec.Selector.MatchLabels
		}
		policies = append(policies, p)
	}
	return policies, nil
}
