// Package monitor provides TUI rendering and exit-code logic for pdbwatch.
package monitor

import "github.com/ppiankov/pdbwatch/internal/store"

// ExitCode returns a process exit code for a coverage snapshot.
//
//	0 = every audited workload is covered by a PDB
//	1 = coverage gaps exist
//	3 = collection was degraded (a source failed)
func ExitCode(snap store.Snapshot) int {
	if snap.Degraded() {
		return 3
	}
	if snap.Summary.Unprotected > 0 {
		return 1
	}
	return 0
}
