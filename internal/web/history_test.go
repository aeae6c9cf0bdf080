package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ppiankov/pdbwatch/internal/history"
	"github.com/ppiankov/pdbwatch/internal/store"
)

func openTestHistory(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory history: %v", err)
	}
	t.Cleanup(func() { s.Close() }) //nolint:errcheck // test cleanup
	return s
}

func savedSnapshot(at time.Time) store.Snapshot {
	return store.Snapshot{
		At: at,
		Unprotected: []store.Entry{
			{
				Workload:    store.Workload{Namespace: "default", Name: "web", Kind: store.KindDeployment},
				Status:      store.StatusUnprotected,
				SelectorKey: "app=web",
			},
		},
		Summary: store.Summary{Unprotected: 1, Total: 1},
	}
}

func TestHistoryHandler_Empty(t *testing.T) {
	hs := openTestHistory(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history", http.NoBody)
	w := httptest.NewRecorder()

	HistoryHandler(hs)(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q, want application/json", ct)
	}

	var summaries []history.SnapshotSummary
	if err := json.NewDecoder(w.Body).Decode(&summaries); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("expected 0 summaries, got %d", len(summaries))
	}
}

func TestHistoryHandler_WithData(t *testing.T) {
	hs := openTestHistory(t)

	if err := hs.Save(savedSnapshot(time.Now().UTC().Truncate(time.Second))); err != nil {
		t.Fatalf("save: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=10", http.NoBody)
	w := httptest.NewRecorder()

	HistoryHandler(hs)(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var summaries []history.SnapshotSummary
	if err := json.NewDecoder(w.Body).Decode(&summaries); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if summaries[0].UnprotectedCount != 1 {
		t.Errorf("unprotectedCount = %d, want 1", summaries[0].UnprotectedCount)
	}
}

func TestTrendHandler_MissingParams(t *testing.T) {
	hs := openTestHistory(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trend", http.NoBody)
	w := httptest.NewRecorder()

	TrendHandler(hs)(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestTrendHandler_WithData(t *testing.T) {
	hs := openTestHistory(t)

	now := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		if err := hs.Save(savedSnapshot(now.Add(time.Duration(i) * time.Minute))); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trend?name=web&namespace=default&kind=deployment", http.NoBody)
	w := httptest.NewRecorder()

	TrendHandler(hs)(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var points []history.TrendPoint
	if err := json.NewDecoder(w.Body).Decode(&points); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(points) != 3 {
		t.Errorf("expected 3 trend points, got %d", len(points))
	}
}

func TestTrendHandler_NoData(t *testing.T) {
	hs := openTestHistory(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trend?name=nonexistent&namespace=ns&kind=deployment", http.NoBody)
	w := httptest.NewRecorder()

	TrendHandler(hs)(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var points []history.TrendPoint
	if err := json.NewDecoder(w.Body).Decode(&points); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("expected 0 points, got %d", len(points))
	}
}
