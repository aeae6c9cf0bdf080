package store

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEntryJSON(t *testing.T) {
	replicas := int32(3)
	e := Entry{
		Workload: Workload{
			Namespace: "payments",
			Name:      "api",
			Kind:      KindDeployment,
			Selector:  map[string]string{"app": "api"},
			Replicas:  &replicas,
		},
		Status:        StatusProtected,
		MatchedPolicy: "api-pdb",
		SelectorKey:   "app=api",
	}

	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Entry
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded.Status != StatusProtected {
		t.Errorf("expected status %s, got %s", StatusProtected, decoded.Status)
	}
	if decoded.MatchedPolicy != "api-pdb" {
		t.Errorf("expected matched policy api-pdb, got %s", decoded.MatchedPolicy)
	}
	if decoded.Workload.Kind != KindDeployment {
		t.Errorf("expected kind %s, got %s", KindDeployment, decoded.Workload.Kind)
	}
	if decoded.Workload.Replicas == nil || *decoded.Workload.Replicas != 3 {
		t.Errorf("expected replicas 3, got %v", decoded.Workload.Replicas)
	}
}

func TestEntryJSONOmitsEmptyPolicy(t *testing.T) {
	e := Entry{
		Workload:    Workload{Namespace: "default", Name: "web", Kind: KindStatefulSet},
		Status:      StatusUnprotected,
		SelectorKey: "app=web",
	}

	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["matchedPolicyName"]; ok {
		t.Error("matchedPolicyName should be omitted for unprotected entries")
	}
}

func TestSnapshotJSON(t *testing.T) {
	s := Snapshot{
		At: time.Now(),
		Unprotected: []Entry{
			{Workload: Workload{Namespace: "default", Name: "web", Kind: KindDaemonSet}, Status: StatusUnprotected, SelectorKey: "app=web"},
		},
		Summary:  Summary{Protected: 0, Unprotected: 1, Total: 1},
		Warnings: map[string]string{"rollouts": "the server could not find the requested resource"},
	}

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Snapshot
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}

	if len(decoded.Unprotected) != 1 {
		t.Fatalf("expected 1 unprotected entry, got %d", len(decoded.Unprotected))
	}
	if decoded.Summary.Total != 1 {
		t.Errorf("expected total 1, got %d", decoded.Summary.Total)
	}
	if decoded.Warnings["rollouts"] == "" {
		t.Error("expected rollouts warning to survive round trip")
	}
}

func TestGapsAndDegraded(t *testing.T) {
	s := Snapshot{Summary: Summary{Protected: 2, Unprotected: 3, Total: 5}}
	if s.Gaps() != 3 {
		t.Errorf("expected 3 gaps, got %d", s.Gaps())
	}
	if s.Degraded() {
		t.Error("snapshot without warnings should not be degraded")
	}

	s.Warnings = map[string]string{"poddisruptionbudgets": "forbidden"}
	if !s.Degraded() {
		t.Error("snapshot with warnings should be degraded")
	}
}

func TestPolicyListingFailed(t *testing.T) {
	s := Snapshot{Warnings: map[string]string{SourceRollouts: "no CRD"}}
	if s.PolicyListingFailed() {
		t.Error("rollouts warning alone should not mean the PDB listing failed")
	}
	if !s.Degraded() {
		t.Error("rollouts warning should still count as degraded")
	}

	s.Warnings[SourcePolicies] = "forbidden"
	if !s.PolicyListingFailed() {
		t.Error("expected PolicyListingFailed with a poddisruptionbudgets warning")
	}
}

func TestKindConstants(t *testing.T) {
	tests := []struct {
		kind WorkloadKind
		want string
	}{
		{KindDeployment, "deployment"},
		{KindStatefulSet, "statefulset"},
		{KindDaemonSet, "daemonset"},
		{KindRollout, "rollout"},
	}
	for _, tt := range tests {
		if string(tt.kind) != tt.want {
			t.Errorf("expected %s, got %s", tt.want, tt.kind)
		}
	}
}
