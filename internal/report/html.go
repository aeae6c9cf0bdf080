// Package report generates self-contained HTML coverage reports from audit snapshots.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"

	"github.com/ppiankov/pdbwatch/internal/store"
)

//go:embed templates/report.html
var templateFS embed.FS

var reportTmpl = template.Must(template.ParseFS(templateFS, "templates/report.html"))

// Generate renders an audit snapshot as a self-contained HTML report.
func Generate(snap store.Snapshot, clusterName string) ([]byte, error) {
	entries := sortEntries(snap)

	rows := make([]reportRow, 0, len(entries))
	for i := range entries {
		rows = append(rows, buildRow(&entries[i]))
	}

	warnings := make([]string, 0, len(snap.Warnings))
	for source, msg := range snap.Warnings {
		warnings = append(warnings, source+": "+msg)
	}
	sort.Strings(warnings)

	data := reportData{
		AuditTime:        snap.At.UTC().Format("2006-01-02 15:04 UTC"),
		ClusterName:      clusterName,
		ProtectedCount:   snap.Summary.Protected,
		UnprotectedCount: snap.Summary.Unprotected,
		TotalCount:       snap.Summary.Total,
		Degraded:         snap.PolicyListingFailed(),
		Warnings:         warnings,
		Entries:          rows,
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type reportData struct {
	AuditTime        string
	ClusterName      string
	Warnings         []string
	Entries          []reportRow
	ProtectedCount   int
	UnprotectedCount int
	TotalCount       int
	Degraded         bool
}

type reportRow struct {
	Status      string
	StatusLabel string
	Where       string
	Kind        string
	Replicas    string
	Selector    string
	Policy      string
}

func buildRow(e *store.Entry) reportRow {
	replicas := "-"
	if e.Workload.Replicas != nil {
		replicas = fmt.Sprintf("%d", *e.Workload.Replicas)
	}

	statusLabel := "PROTECTED"
	if e.Status == store.StatusUnprotected {
		statusLabel = "UNPROTECTED"
	}

	return reportRow{
		Status:      string(e.Status),
		StatusLabel: statusLabel,
		Where:       e.Workload.Namespace + "/" + e.Workload.Name,
		Kind:        string(e.Workload.Kind),
		Replicas:    replicas,
		Selector:    e.SelectorKey,
		Policy:      e.MatchedPolicy,
	}
}

// sortEntries returns all entries, unprotected first, then by namespace and name.
func sortEntries(snap store.Snapshot) []store.Entry {
	sorted := make([]store.Entry, 0, len(snap.Protected)+len(snap.Unprotected))
	sorted = append(sorted, snap.Unprotected...)
	sorted = append(sorted, snap.Protected...)

	statusOrder := map[store.CoverageStatus]int{
		store.StatusUnprotected: 0,
		store.StatusProtected:   1,
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := statusOrder[sorted[i].Status], statusOrder[sorted[j].Status]
		if si != sj {
			return si < sj
		}
		if sorted[i].Workload.Namespace != sorted[j].Workload.Namespace {
			return sorted[i].Workload.Namespace < sorted[j].Workload.Namespace
		}
		return sorted[i].Workload.Name < sorted[j].Workload.Name
	})

	return sorted
}
