package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/pdbwatch/internal/store"
)

func int32p(n int32) *int32 { return &n }

func fixedSnapshot() SnapshotFunc {
	snap := store.Snapshot{
		At: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Protected: []store.Entry{
			{
				Workload:      store.Workload{Namespace: "payments", Name: "api", Kind: store.KindDeployment},
				Status:        store.StatusProtected,
				MatchedPolicy: "api-pdb",
				SelectorKey:   "app=api",
			},
		},
		Unprotected: []store.Entry{
			{
				Workload:    store.Workload{Namespace: "default", Name: "web", Kind: store.KindStatefulSet},
				Status:      store.StatusUnprotected,
				SelectorKey: "app=web",
			},
			{
				Workload:    store.Workload{Namespace: "default", Name: "canary", Kind: store.KindRollout, Replicas: int32p(3)},
				Status:      store.StatusUnprotected,
				SelectorKey: "app=canary",
			},
		},
		Summary: store.Summary{Protected: 1, Unprotected: 2, Total: 3},
	}
	return func() store.Snapshot { return snap }
}

func TestHealthzHandler_Healthy(t *testing.T) {
	snap := store.Snapshot{At: time.Now()}
	getSnap := func() store.Snapshot { return snap }

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	w := httptest.NewRecorder()

	HealthzHandler(getSnap, 5*time.Minute)(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != "ok" {
		t.Errorf("body = %q, want %q", got, "ok")
	}
}

func TestHealthzHandler_NoAudit(t *testing.T) {
	getSnap := func() store.Snapshot { return store.Snapshot{} } // zero At

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	w := httptest.NewRecorder()

	HealthzHandler(getSnap, 5*time.Minute)(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestHealthzHandler_Stale(t *testing.T) {
	snap := store.Snapshot{At: time.Now().Add(-10 * time.Minute)}
	getSnap := func() store.Snapshot { return snap }

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	w := httptest.NewRecorder()

	HealthzHandler(getSnap, 5*time.Minute)(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestHealthzHandler_ZeroMaxAge(t *testing.T) {
	snap := store.Snapshot{At: time.Now().Add(-1 * time.Hour)}
	getSnap := func() store.Snapshot { return snap }

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	w := httptest.NewRecorder()

	// Zero maxAge disables staleness check
	HealthzHandler(getSnap, 0)(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestSnapshotHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", http.NoBody)
	w := httptest.NewRecorder()

	SnapshotHandler(fixedSnapshot())(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q, want application/json", ct)
	}

	var snap store.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(snap.Protected) != 1 || len(snap.Unprotected) != 2 {
		t.Errorf("got %d protected / %d unprotected, want 1/2", len(snap.Protected), len(snap.Unprotected))
	}
	if snap.Summary.Total != 3 {
		t.Errorf("summary total = %d, want 3", snap.Summary.Total)
	}
}

func TestSnapshotHandler_FilterByStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot?status=unprotected", http.NoBody)
	w := httptest.NewRecorder()
	SnapshotHandler(fixedSnapshot())(w, req)

	var snap store.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Protected) != 0 {
		t.Errorf("protected = %d, want 0", len(snap.Protected))
	}
	if len(snap.Unprotected) != 2 {
		t.Errorf("unprotected = %d, want 2", len(snap.Unprotected))
	}
	if snap.Summary.Total != 2 {
		t.Errorf("filtered summary total = %d, want 2", snap.Summary.Total)
	}
}

func TestSnapshotHandler_FilterByKind(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot?kind=statefulset,rollout", http.NoBody)
	w := httptest.NewRecorder()
	SnapshotHandler(fixedSnapshot())(w, req)

	var snap store.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Summary.Total != 2 {
		t.Errorf("filtered summary total = %d, want 2", snap.Summary.Total)
	}
	if len(snap.Protected) != 0 {
		t.Errorf("protected = %d, want 0 (the deployment is filtered out)", len(snap.Protected))
	}
}

func TestSnapshotHandler_FilterByNamespace(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot?namespace=payments", http.NoBody)
	w := httptest.NewRecorder()
	SnapshotHandler(fixedSnapshot())(w, req)

	var snap store.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Protected) != 1 || len(snap.Unprotected) != 0 {
		t.Errorf("got %d protected / %d unprotected, want 1/0", len(snap.Protected), len(snap.Unprotected))
	}
}

func TestSnapshotHandler_MultipleFiltersAND(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot?status=unprotected&namespace=default&kind=rollout", http.NoBody)
	w := httptest.NewRecorder()
	SnapshotHandler(fixedSnapshot())(w, req)

	var snap store.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Unprotected) != 1 {
		t.Fatalf("unprotected = %d, want 1", len(snap.Unprotected))
	}
	if snap.Unprotected[0].Workload.Name != "canary" {
		t.Errorf("entry name = %q, want canary", snap.Unprotected[0].Workload.Name)
	}
}

func TestSnapshotHandler_UnknownValueReturnsEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot?kind=nonexistent", http.NoBody)
	w := httptest.NewRecorder()
	SnapshotHandler(fixedSnapshot())(w, req)

	var snap store.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Summary.Total != 0 {
		t.Errorf("total = %d, want 0", snap.Summary.Total)
	}
}

func TestUIHandler_ShowsGaps(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	w := httptest.NewRecorder()

	UIHandler(fixedSnapshot())(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()

	if !strings.Contains(body, "web") {
		t.Error("expected unprotected statefulset in HTML")
	}
	if !strings.Contains(body, "canary") {
		t.Error("expected unprotected rollout in HTML")
	}
	if !strings.Contains(body, "app=canary") {
		t.Error("expected selector key in HTML")
	}
	if strings.Contains(body, "api-pdb") {
		t.Error("protected workloads should not appear in the gaps table")
	}
}

func TestUIHandler_NoGaps(t *testing.T) {
	snap := store.Snapshot{
		At: time.Now(),
		Protected: []store.Entry{
			{Workload: store.Workload{Namespace: "default", Name: "web", Kind: store.KindDeployment}, Status: store.StatusProtected, MatchedPolicy: "web-pdb"},
		},
		Summary: store.Summary{Protected: 1, Total: 1},
	}

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	w := httptest.NewRecorder()

	UIHandler(func() store.Snapshot { return snap })(w, req)

	if !strings.Contains(w.Body.String(), "All workloads are covered") {
		t.Error("expected all-covered message when no gaps exist")
	}
}

func TestUIHandler_EmptySnapshot(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	w := httptest.NewRecorder()

	UIHandler(func() store.Snapshot { return store.Snapshot{} })(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "All workloads are covered") {
		t.Error("expected all-covered message for empty snapshot")
	}
}

func TestUIHandler_DegradedBadge(t *testing.T) {
	snap := store.Snapshot{
		At:       time.Now(),
		Warnings: map[string]string{"poddisruptionbudgets": "timeout"},
	}

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	w := httptest.NewRecorder()

	UIHandler(func() store.Snapshot { return snap })(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "DEGRADED") {
		t.Error("expected DEGRADED badge")
	}
	if !strings.Contains(body, "poddisruptionbudgets: timeout") {
		t.Error("expected warning line in HTML")
	}
}

func TestUIHandler_HistoryLink(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	w := httptest.NewRecorder()

	UIHandler(fixedSnapshot(), WithHistoryEnabled())(w, req)

	if !strings.Contains(w.Body.String(), "/api/v1/history") {
		t.Error("expected history link when history is enabled")
	}

	w2 := httptest.NewRecorder()
	UIHandler(fixedSnapshot())(w2, req)
	if strings.Contains(w2.Body.String(), "/api/v1/history") {
		t.Error("history link should be absent when history is disabled")
	}
}

func TestReadyzHandler_Ready(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody)
	w := httptest.NewRecorder()
	getSnap := func() store.Snapshot {
		return store.Snapshot{At: time.Now(), Summary: store.Summary{Protected: 1, Unprotected: 2, Total: 3}}
	}
	ReadyzHandler(getSnap, 5*time.Minute)(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q, want application/json", ct)
	}

	var resp readyzResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Ready {
		t.Error("expected ready=true")
	}
	if resp.Total != 3 || resp.Unprotected != 2 {
		t.Errorf("counts = %d/%d, want 3/2", resp.Total, resp.Unprotected)
	}
	if resp.LastAudit == "" {
		t.Error("expected lastAudit to be set")
	}
}

func TestReadyzHandler_NoAudit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody)
	w := httptest.NewRecorder()
	ReadyzHandler(func() store.Snapshot { return store.Snapshot{} }, 5*time.Minute)(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var resp readyzResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ready {
		t.Error("expected ready=false when no audit completed")
	}
}

func TestReadyzHandler_WithWarnings(t *testing.T) {
	getSnap := func() store.Snapshot {
		return store.Snapshot{
			At:       time.Now(),
			Warnings: map[string]string{"rollouts": "forbidden"},
			Summary:  store.Summary{Total: 1, Protected: 1},
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody)
	w := httptest.NewRecorder()
	ReadyzHandler(getSnap, 5*time.Minute)(w, req)

	var resp readyzResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Ready {
		t.Error("expected ready=true (warnings don't block readiness)")
	}
	if len(resp.CollectionWarnings) != 1 {
		t.Fatalf("collectionWarnings = %d, want 1", len(resp.CollectionWarnings))
	}
	if !strings.Contains(resp.CollectionWarnings[0], "rollouts") {
		t.Errorf("expected 'rollouts' in warning, got %q", resp.CollectionWarnings[0])
	}
}

func TestExportCSVHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/export.csv", http.NoBody)
	w := httptest.NewRecorder()

	ExportCSVHandler(fixedSnapshot())(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content-type = %q, want text/csv", ct)
	}

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	// 1 header + 3 entries
	if len(lines) != 4 {
		t.Errorf("expected 4 CSV lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "namespace,name,kind,status") {
		t.Errorf("unexpected CSV header: %q", lines[0])
	}
}
