// Package drift detects coverage changes between consecutive snapshots.
package drift

import (
	"fmt"

	"github.com/ppiankov/pdbwatch/internal/store"
)

// Drift event types.
const (
	EventCoverageLost   = "COVERAGE_LOST"
	EventCoverageGained = "COVERAGE_GAINED"
	EventWorkloadNew    = "WORKLOAD_NEW"
	EventWorkloadGone   = "WORKLOAD_GONE"
	EventPolicyChanged  = "POLICY_CHANGED"
)

// Event describes a coverage change for a single workload.
type Event struct {
	Type     string
	Severity store.Severity
	Workload store.Workload
	Note     string
}

// Detect compares previous and current snapshots and returns coverage events.
// Workloads are matched by (kind, namespace, name) composite key.
func Detect(prev, curr store.Snapshot) []Event {
	// A failed PDB listing flips every workload to unprotected; comparing
	// against such a snapshot would fire spurious events.
	if prev.PolicyListingFailed() || curr.PolicyListingFailed() {
		return nil
	}

	prevMap := indexEntries(prev)
	currMap := indexEntries(curr)

	var events []Event

	// Check for new workloads and coverage changes
	for key, ce := range currMap {
		pe, existed := prevMap[key]
		if !existed {
			ev := Event{
				Type:     EventWorkloadNew,
				Severity: store.SeverityInfo,
				Workload: ce.workload,
				Note:     fmt.Sprintf("workload appeared, covered by %s", ce.policy),
			}
			if ce.status == store.StatusUnprotected {
				ev.Severity = store.SeverityWarn
				ev.Note = "workload appeared without a PodDisruptionBudget"
			}
			events = append(events, ev)
			continue
		}

		switch {
		case pe.status == store.StatusProtected && ce.status == store.StatusUnprotected:
			events = append(events, Event{
				Type:     EventCoverageLost,
				Severity: store.SeverityWarn,
				Workload: ce.workload,
				Note:     fmt.Sprintf("no longer covered by %s", pe.policy),
			})
		case pe.status == store.StatusUnprotected && ce.status == store.StatusProtected:
			events = append(events, Event{
				Type:     EventCoverageGained,
				Severity: store.SeverityInfo,
				Workload: ce.workload,
				Note:     fmt.Sprintf("now covered by %s", ce.policy),
			})
		case pe.status == store.StatusProtected && pe.policy != ce.policy:
			events = append(events, Event{
				Type:     EventPolicyChanged,
				Severity: store.SeverityInfo,
				Workload: ce.workload,
				Note:     fmt.Sprintf("matched policy changed from %s to %s", pe.policy, ce.policy),
			})
		}
	}

	// Check for disappeared workloads
	for key, pe := range prevMap {
		if _, exists := currMap[key]; !exists {
			if pe.workload.Kind == store.KindRollout && curr.Warnings[store.SourceRollouts] != "" {
				// Rollout collection failed this cycle; absence is not disappearance.
				continue
			}
			events = append(events, Event{
				Type:     EventWorkloadGone,
				Severity: store.SeverityInfo,
				Workload: pe.workload,
				Note:     "workload disappeared",
			})
		}
	}

	return events
}

type indexedEntry struct {
	workload store.Workload
	status   store.CoverageStatus
	policy   string
}

func entryKey(e *store.Entry) string {
	return fmt.Sprintf("%s/%s/%s", e.Workload.Kind, e.Workload.Namespace, e.Workload.Name)
}

func indexEntries(snap store.Snapshot) map[string]indexedEntry {
	m := make(map[string]indexedEntry, len(snap.Protected)+len(snap.Unprotected))
	add := func(entries []store.Entry) {
		for i := range entries {
			e := &entries[i]
			m[entryKey(e)] = indexedEntry{workload: e.Workload, status: e.Status, policy: e.MatchedPolicy}
		}
	}
	add(snap.Protected)
	add(snap.Unprotected)
	return m
}
