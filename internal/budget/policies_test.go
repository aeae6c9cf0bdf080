package budget

import (
	"context"
	"testing"

	policyv1 "k8s.io/api/policy/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
)

func TestListPolicies_Empty(t *testing.T) {
	policies, err := ListPolicies(context.Background(), fake.NewSimpleClientset())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(policies) != 0 {
		t.Errorf("expected 0 policies, got %d", len(policies))
	}
}

func TestListPolicies_ReducesSelectors(t *testing.T) {
	objs := []runtime.Object{
		&policyv1.PodDisruptionBudget{
			ObjectMeta: metav1.ObjectMeta{Name: "api-pdb", Namespace: "payments"},
			Spec: policyv1.PodDisruptionBudgetSpec{
				Selector: &metav1.LabelSelector{
					MatchLabels: map[string]string{"app": "api", "tier": "backend"},
				},
			},
		},
		&policyv1.PodDisruptionBudget{
			ObjectMeta: metav1.ObjectMeta{Name: "no-selector", Namespace: "payments"},
		},
	}

	policies, err := ListPolicies(context.Background(), fake.NewSimpleClientset(objs...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(policies))
	}

	byName := map[string]int{}
	for i, p := range policies {
		byName[p.Name] = i
	}

	api := policies[byName["api-pdb"]]
	if api.Namespace != "payments" {
		t.Errorf("expected namespace payments, got %q", api.Namespace)
	}
	if Key(api.Selector) != "app=api,tier=backend" {
		t.Errorf("expected canonical key app=api,tier=backend, got %q", Key(api.Selector))
	}

	bare := policies[byName["no-selector"]]
	if len(bare.Selector) != 0 {
		t.Errorf("expected empty selector for PDB without one, got %v", bare.Selector)
	}
}

func TestListPolicies_MatchExpressionsOnly(t *testing.T) {
	objs := []runtime.Object{
		&policyv1.PodDisruptionBudget{
			ObjectMeta: metav1.ObjectMeta{Name: "expr-pdb", Namespace: "default"},
			Spec: policyv1.PodDisruptionBudgetSpec{
				Selector: &metav1.LabelSelector{
					MatchExpressions: []metav1.LabelSelectorRequirement{
						{Key: "app", Operator: metav1.LabelSelectorOpIn, Values: []string{"foo"}},
					},
				},
			},
		},
	}

	policies, err := ListPolicies(context.Background(), fake.NewSimpleClientset(objs...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("expected 1 policy, got %d", len(policies))
	}

	// Expression-only selectors reduce to no matchLabels and fall out of
	// the index rather than failing the listing.
	idx := BuildIndex(policies)
	if idx.Size() != 0 {
		t.Errorf("expected expression-only policy to be skipped, indexed %d", idx.Size())
	}
}
