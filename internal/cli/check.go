package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pdbwatch/internal/audit"
	"github.com/ppiankov/pdbwatch/internal/monitor"
	"github.com/ppiankov/pdbwatch/internal/store"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "CI/CD gate: audit and exit non-zero on coverage gaps",
	Long: `Run a coverage audit and exit with a code based on the result.
Designed for CI/CD pipelines: no TUI, just audit and exit.

Exit codes:
  0  Every audited workload has a matching PDB (or gaps within --max-gaps)
  1  Unprotected workloads exceed the allowance
  3  Collection was degraded and --strict is set`,
	Example: `  # Fail the pipeline on any coverage gap
  pdbwatch check

  # Tolerate up to 3 gaps
  pdbwatch check --max-gaps 3

  # Treat rollout/PDB listing failures as errors
  pdbwatch check --strict

  # JSON output for pipeline parsing
  pdbwatch check -o json

  # Quiet mode: exit code only
  pdbwatch check -q

  # GitHub Actions example
  # - name: PDB coverage check
  #   run: pdbwatch check --exemptions exemptions.yaml --strict -o json`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	addScanFlags(checkCmd)
	checkCmd.Flags().Int("max-gaps", 0, "Tolerated number of unprotected workloads")
	checkCmd.Flags().Bool("strict", false, "Exit 3 when collection was degraded")
	checkCmd.Flags().StringP("output", "o", "", "Output format: json, table (default: table)")
	checkCmd.Flags().BoolP("quiet", "q", false, "Suppress output, exit code only")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	outputFlag, _ := cmd.Flags().GetString("output") //nolint:errcheck // flag registered above
	if outputFlag != "" && outputFlag != "json" && outputFlag != "table" {
		return fmt.Errorf("invalid --output value %q: must be json or table", outputFlag)
	}

	cfg, err := loadScanConfig(cmd)
	if err != nil {
		return err
	}

	auditor, flushTracer, err := newAuditor(cmd, cfg, audit.Options{})
	if err != nil {
		return err
	}
	defer flushTracer()

	snap, err := auditor.Run(cmd.Context())
	if err != nil {
		return err
	}

	maxGaps, _ := cmd.Flags().GetInt("max-gaps") //nolint:errcheck // flag registered above
	strict, _ := cmd.Flags().GetBool("strict")   //nolint:errcheck // flag registered above
	exitCode := gateExitCode(snap, maxGaps, strict)

	quiet, _ := cmd.Flags().GetBool("quiet") //nolint:errcheck // flag registered above
	if !quiet {
		switch outputFlag {
		case "json":
			if err := monitor.WriteJSON(os.Stdout, snap, exitCode); err != nil {
				return fmt.Errorf("writing JSON output: %w", err)
			}
		default:
			fmt.Print(monitor.PlainText(snap))
		}
	}

	if exitCode != 0 {
		flushTracer()     // explicit flush because os.Exit bypasses defers
		os.Exit(exitCode) //nolint:gocritic // exitAfterDefer: defer covers the normal-return path only
	}
	return nil
}

// gateExitCode maps a snapshot to a CI exit code. Degraded collection only
// fails the gate under strict; a partial audit otherwise still gates on the
// gaps it did find.
func gateExitCode(snap store.Snapshot, maxGaps int, strict bool) int {
	if strict && snap.Degraded() {
		return 3
	}
	if snap.Gaps() > maxGaps {
		return 1
	}
	return 0
}
