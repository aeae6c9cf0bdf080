package monitor

import (
	"encoding/json"
	"io"

	"github.com/ppiankov/pdbwatch/internal/store"
)

// AuditOutput is the JSON envelope for `pdbwatch check --output json`.
// Wraps the snapshot with exit-code metadata without polluting the
// Snapshot type used by the serve-mode /api/v1/snapshot endpoint.
type AuditOutput struct {
	Snapshot store.Snapshot `json:"snapshot"`
	ExitCode int            `json:"exitCode"`
}

// WriteJSON serializes an AuditOutput envelope to w.
func WriteJSON(w io.Writer, snap store.Snapshot, exitCode int) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(AuditOutput{
		ExitCode: exitCode,
		Snapshot: snap,
	})
}
