package report

import (
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/pdbwatch/internal/store"
)

func TestGenerate_WithEntries(t *testing.T) {
	html, err := Generate(testSnapshot(), "prod-cluster")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	body := string(html)

	// Check HTML structure
	for _, want := range []string{
		"<!DOCTYPE html>",
		"PodDisruptionBudget coverage report",
		"prod-cluster",
		"UNPROTECTED",
		"PROTECTED",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected HTML to contain %q", want)
		}
	}

	// Check entry data appears
	for _, want := range []string{
		"payments/api",
		"default/web",
		"default/canary",
		"api-pdb",
		"app=canary",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected HTML to contain %q", want)
		}
	}
}

func TestGenerate_EmptySnapshot(t *testing.T) {
	snap := store.Snapshot{At: time.Now().UTC()}

	html, err := Generate(snap, "")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if !strings.Contains(string(html), "No workloads audited.") {
		t.Error("expected empty report to contain 'No workloads audited.'")
	}
}

func TestGenerate_SortOrder(t *testing.T) {
	html, err := Generate(testSnapshot(), "")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	body := string(html)
	canaryIdx := strings.Index(body, "default/canary")
	webIdx := strings.Index(body, "default/web")
	apiIdx := strings.Index(body, "payments/api")

	// Unprotected first, then namespace/name order within each group
	if canaryIdx > webIdx {
		t.Error("expected canary before web (name order)")
	}
	if webIdx > apiIdx {
		t.Error("expected unprotected entries before protected ones")
	}
}

func TestGenerate_DegradedBanner(t *testing.T) {
	snap := testSnapshot()
	snap.Warnings = map[string]string{"poddisruptionbudgets": "timeout"}

	html, err := Generate(snap, "")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	body := string(html)
	if !strings.Contains(body, "coverage results are incomplete") {
		t.Error("expected degraded banner in report")
	}
	if !strings.Contains(body, "poddisruptionbudgets: timeout") {
		t.Error("expected warning line in report")
	}
}

func TestGenerate_RolloutWarningShown(t *testing.T) {
	snap := testSnapshot()
	snap.Warnings = map[string]string{"rollouts": "forbidden"}

	html, err := Generate(snap, "")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	body := string(html)
	if !strings.Contains(body, "rollouts: forbidden") {
		t.Error("expected rollout warning in report")
	}
	if strings.Contains(body, "coverage results are incomplete") {
		t.Error("rollout warning alone should not mark the report degraded")
	}
}
