// Package audit classifies workloads against the disruption-budget index
// and assembles coverage snapshots.
package audit

import (
	"github.com/ppiankov/pdbwatch/internal/budget"
	"github.com/ppiankov/pdbwatch/internal/store"
)

// Options control how a reconciliation pass filters its output.
type Options struct {
	// HidePDB drops the protected list from the result. The summary still
	// counts every classified workload, so totals stay comparable across
	// runs with and without the flag.
	HidePDB bool
	// HideZeroReplicas excludes workloads scaled to zero from classification
	// entirely. Workloads whose kind carries no replica count are unaffected.
	HideZeroReplicas bool
}

// Result is one reconciliation pass over the cluster inventory.
type Result struct {
	Protected   []store.Entry
	Unprotected []store.Entry
	Summary     store.Summary
}

// Reconcile matches each workload's canonical selector key against the index
// of its own namespace. A hit means some PDB covers exactly that selector.
func Reconcile(workloads []store.Workload, idx budget.Index, opts Options) Result {
	var res Result
	for _, w := range workloads {
		if opts.HideZeroReplicas && w.Replicas != nil && *w.Replicas == 0 {
			continue
		}

		key := budget.Key(w.Selector)
		if name, ok := idx.Lookup(w.Namespace, key); ok {
			res.Protected = append(res.Protected, store.Entry{
				Workload:      w,
				Status:        store.StatusProtected,
				MatchedPolicy: name,
				SelectorKey:   key,
			})
			res.Summary.Protected++
		} else {
			res.Unprotected = append(res.Unprotected, store.Entry{
				Workload:    w,
				Status:      store.StatusUnprotected,
				SelectorKey: key,
			})
			res.Summary.Unprotected++
		}
		res.Summary.Total++
	}

	if opts.HidePDB {
		res.Protected = nil
	}
	return res
}
