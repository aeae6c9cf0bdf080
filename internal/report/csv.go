package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ppiankov/pdbwatch/internal/store"
)

var csvHeader = []string{
	"namespace", "name", "kind", "status", "matchedPolicy", "selectorKey", "replicas",
}

// WriteCSV writes all snapshot entries as CSV rows, unprotected first.
func WriteCSV(w io.Writer, snap store.Snapshot) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	write := func(entries []store.Entry) error {
		for i := range entries {
			e := &entries[i]
			replicas := ""
			if e.Workload.Replicas != nil {
				replicas = strconv.Itoa(int(*e.Workload.Replicas))
			}
			row := []string{
				e.Workload.Namespace,
				e.Workload.Name,
				string(e.Workload.Kind),
				string(e.Status),
				e.MatchedPolicy,
				e.SelectorKey,
				replicas,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	}

	if err := write(snap.Unprotected); err != nil {
		return err
	}
	if err := write(snap.Protected); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}
