package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pdbwatch/internal/drift"
	"github.com/ppiankov/pdbwatch/internal/monitor"
	"github.com/ppiankov/pdbwatch/internal/store"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Manage coverage baselines for drift detection",
	Long: `Save or check a coverage baseline.

A baseline captures a known-good coverage snapshot as JSON. Compare
future audits against it to detect workloads that lost their PDB,
new unprotected workloads, or changed policy matches.`,
}

var baselineSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a snapshot as a baseline file",
	Long: `Read a JSON snapshot from stdin and write it as a baseline file.

Usage:
  pdbwatch audit -o json | pdbwatch baseline save -o baseline.json
  curl -s http://localhost:8080/api/v1/snapshot | pdbwatch baseline save -o baseline.json`,
	RunE: runBaselineSave,
}

var baselineCheckCmd = &cobra.Command{
	Use:   "check <baseline.json>",
	Short: "Compare a current audit against a baseline",
	Long: `Read a current JSON snapshot from stdin and compare against a baseline file.

Exits 0 if coverage is unchanged, 1 if drift is found.

Usage:
  pdbwatch audit -o json | pdbwatch baseline check baseline.json`,
	Args: cobra.ExactArgs(1),
	RunE: runBaselineCheck,
}

func init() {
	rootCmd.AddCommand(baselineCmd)
	baselineCmd.AddCommand(baselineSaveCmd)
	baselineCmd.AddCommand(baselineCheckCmd)
	baselineSaveCmd.Flags().StringP("output", "o", "baseline.json", "Output file path")
}

func runBaselineSave(cmd *cobra.Command, _ []string) error {
	outPath, _ := cmd.Flags().GetString("output") //nolint:errcheck // flag registered above

	snap, err := readSnapshotFromStdin(cmd.InOrStdin())
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling baseline: %w", err)
	}

	if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil { //nolint:gosec // baseline is not sensitive
		return fmt.Errorf("writing baseline: %w", err)
	}

	cmd.Printf("baseline saved to %s (%d workloads)\n", outPath, snap.Summary.Total)
	return nil
}

func runBaselineCheck(cmd *cobra.Command, args []string) error {
	// Load baseline
	baselineData, err := os.ReadFile(args[0]) //nolint:gosec // user-provided baseline path
	if err != nil {
		return fmt.Errorf("reading baseline: %w", err)
	}
	var baseline store.Snapshot
	if unmarshalErr := json.Unmarshal(baselineData, &baseline); unmarshalErr != nil {
		return fmt.Errorf("parsing baseline: %w", unmarshalErr)
	}

	// Read current snapshot from stdin
	current, err := readSnapshotFromStdin(cmd.InOrStdin())
	if err != nil {
		return err
	}

	// A snapshot whose PDB listing failed reads as all-unprotected;
	// comparing it would report drift that never happened.
	if baseline.PolicyListingFailed() || current.PolicyListingFailed() {
		return fmt.Errorf("refusing to compare: a snapshot has a failed PDB listing")
	}

	events := drift.Detect(baseline, *current)

	if len(events) == 0 {
		cmd.Println("no coverage drift detected")
		return nil
	}

	cmd.Printf("%d drift event(s) detected:\n", len(events))
	for i := range events {
		ev := &events[i]
		cmd.Printf("  [%s] %s %s %s/%s: %s\n", ev.Severity, ev.Type,
			ev.Workload.Kind, ev.Workload.Namespace, ev.Workload.Name, ev.Note)
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	os.Exit(1) //nolint:gocritic // exitAfterDefer: intentional exit on drift
	return nil
}

// readSnapshotFromStdin reads a store.Snapshot from stdin. Accepts both raw
// Snapshot JSON and the AuditOutput envelope ({"snapshot": ...}).
func readSnapshotFromStdin(r io.Reader) (*store.Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no input on stdin, pipe a snapshot via: pdbwatch audit -o json | pdbwatch baseline save")
	}

	// Try the envelope first
	var envelope monitor.AuditOutput
	if err := json.Unmarshal(data, &envelope); err == nil && !envelope.Snapshot.At.IsZero() {
		return &envelope.Snapshot, nil
	}

	// Fall back to raw Snapshot
	var snap store.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot JSON: %w", err)
	}
	return &snap, nil
}
