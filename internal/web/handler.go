// Package web provides HTTP handlers for the pdbwatch web UI and API.
package web

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/pdbwatch/internal/report"
	"github.com/ppiankov/pdbwatch/internal/store"
)

//go:embed templates/gaps.html
var templateFS embed.FS

var gapsTmpl = template.Must(template.ParseFS(templateFS, "templates/gaps.html"))

// SnapshotFunc returns the current snapshot.
type SnapshotFunc func() store.Snapshot

// UIConfig adjusts optional elements of the web UI.
type UIConfig struct {
	HistoryEnabled bool
}

// WithHistoryEnabled shows history links in the UI.
func WithHistoryEnabled() func(*UIConfig) {
	return func(c *UIConfig) { c.HistoryEnabled = true }
}

// UIHandler serves the coverage gaps web UI, listing unprotected workloads.
func UIHandler(getSnapshot SnapshotFunc, opts ...func(*UIConfig)) http.HandlerFunc {
	var uiCfg UIConfig
	for _, opt := range opts {
		opt(&uiCfg)
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		snap := getSnapshot()

		gaps := make([]store.Entry, len(snap.Unprotected))
		copy(gaps, snap.Unprotected)
		sort.Slice(gaps, func(i, j int) bool {
			if gaps[i].Workload.Namespace != gaps[j].Workload.Namespace {
				return gaps[i].Workload.Namespace < gaps[j].Workload.Namespace
			}
			return gaps[i].Workload.Name < gaps[j].Workload.Name
		})

		rows := make([]gapRow, 0, len(gaps))
		for i := range gaps {
			e := &gaps[i]
			replicas := "-"
			if e.Workload.Replicas != nil {
				replicas = fmt.Sprintf("%d", *e.Workload.Replicas)
			}
			rows = append(rows, gapRow{
				Namespace: e.Workload.Namespace,
				Name:      e.Workload.Name,
				Kind:      string(e.Workload.Kind),
				Replicas:  replicas,
				Selector:  e.SelectorKey,
			})
		}

		warnings := make([]warningRow, 0, len(snap.Warnings))
		for source, msg := range snap.Warnings {
			warnings = append(warnings, warningRow{Source: source, Message: msg})
		}
		sort.Slice(warnings, func(i, j int) bool { return warnings[i].Source < warnings[j].Source })

		data := pageData{
			AuditTime:        snap.At.Format(time.RFC3339),
			ProtectedCount:   snap.Summary.Protected,
			UnprotectedCount: snap.Summary.Unprotected,
			TotalCount:       snap.Summary.Total,
			Degraded:         snap.Degraded(),
			HistoryEnabled:   uiCfg.HistoryEnabled,
			Warnings:         warnings,
			Gaps:             rows,
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := gapsTmpl.Execute(w, data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// SnapshotHandler returns the snapshot as JSON. Query parameters status, kind
// (comma-separated) and namespace filter the returned entries; filters combine
// with AND and the summary is recomputed over the filtered view.
func SnapshotHandler(getSnapshot SnapshotFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := filterSnapshot(getSnapshot(), r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// HealthzHandler reports liveness. A zero maxAge disables the staleness check.
func HealthzHandler(getSnapshot SnapshotFunc, maxAge time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := getSnapshot()
		if maxAge > 0 {
			if snap.At.IsZero() {
				http.Error(w, "no audit completed yet", http.StatusServiceUnavailable)
				return
			}
			if age := time.Since(snap.At); age > maxAge {
				http.Error(w, fmt.Sprintf("last audit %s ago", age.Truncate(time.Second)), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok")) //nolint:errcheck // best-effort response
	}
}

type readyzResponse struct {
	Ready              bool     `json:"ready"`
	LastAudit          string   `json:"lastAudit,omitempty"`
	Total              int      `json:"total"`
	Unprotected        int      `json:"unprotected"`
	CollectionWarnings []string `json:"collectionWarnings,omitempty"`
}

// ReadyzHandler reports readiness as JSON, including audit age and counts.
// Collection warnings are reported but do not block readiness.
func ReadyzHandler(getSnapshot SnapshotFunc, maxAge time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := getSnapshot()

		resp := readyzResponse{
			Total:       snap.Summary.Total,
			Unprotected: snap.Summary.Unprotected,
		}
		if !snap.At.IsZero() {
			resp.LastAudit = snap.At.Format(time.RFC3339)
		}
		for source, msg := range snap.Warnings {
			resp.CollectionWarnings = append(resp.CollectionWarnings, source+": "+msg)
		}
		sort.Strings(resp.CollectionWarnings)

		resp.Ready = !snap.At.IsZero()
		if maxAge > 0 && resp.Ready && time.Since(snap.At) > maxAge {
			resp.Ready = false
		}

		w.Header().Set("Content-Type", "application/json")
		if !resp.Ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Warn("writing readyz response", "err", err)
		}
	}
}

// ExportCSVHandler streams the current snapshot's entries as CSV.
func ExportCSVHandler(getSnapshot SnapshotFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := getSnapshot()
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="pdbwatch.csv"`)
		if err := report.WriteCSV(w, snap); err != nil {
			slog.Warn("csv export failed", "err", err)
		}
	}
}

type pageData struct {
	AuditTime        string
	Warnings         []warningRow
	Gaps             []gapRow
	ProtectedCount   int
	UnprotectedCount int
	TotalCount       int
	Degraded         bool
	HistoryEnabled   bool
}

type gapRow struct {
	Namespace string
	Name      string
	Kind      string
	Replicas  string
	Selector  string
}

type warningRow struct {
	Source  string
	Message string
}

func filterSnapshot(snap store.Snapshot, q url.Values) store.Snapshot {
	statuses := splitQuery(q.Get("status"))
	kinds := splitQuery(q.Get("kind"))
	ns := q.Get("namespace")
	if statuses == nil && kinds == nil && ns == "" {
		return snap
	}

	keep := func(e *store.Entry) bool {
		if statuses != nil && !statuses[string(e.Status)] {
			return false
		}
		if kinds != nil && !kinds[string(e.Workload.Kind)] {
			return false
		}
		if ns != "" && e.Workload.Namespace != ns {
			return false
		}
		return true
	}

	filtered := store.Snapshot{At: snap.At, Warnings: snap.Warnings}
	for i := range snap.Protected {
		if keep(&snap.Protected[i]) {
			filtered.Protected = append(filtered.Protected, snap.Protected[i])
		}
	}
	for i := range snap.Unprotected {
		if keep(&snap.Unprotected[i]) {
			filtered.Unprotected = append(filtered.Unprotected, snap.Unprotected[i])
		}
	}
	filtered.Summary = store.Summary{
		Protected:   len(filtered.Protected),
		Unprotected: len(filtered.Unprotected),
		Total:       len(filtered.Protected) + len(filtered.Unprotected),
	}
	return filtered
}

func splitQuery(s string) map[string]bool {
	if s == "" {
		return nil
	}
	m := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		m[strings.TrimSpace(part)] = true
	}
	return m
}
