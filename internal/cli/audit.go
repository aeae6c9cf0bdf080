package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pdbwatch/internal/audit"
	"github.com/ppiankov/pdbwatch/internal/monitor"
	"github.com/ppiankov/pdbwatch/internal/report"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit workloads for PodDisruptionBudget coverage",
	Long: `List deployments, statefulsets, daemonsets, and Argo Rollouts, then
match each workload's label selector against the PodDisruptionBudgets
in its namespace. Workloads with no matching PDB are reported as gaps.

The Rollout listing and the PDB listing are best-effort: if either
fails, the audit still completes and the report carries a warning.
Failure to list the core workload kinds aborts the run.`,
	Example: `  # Audit the whole cluster
  pdbwatch audit

  # Only show workloads without a PDB
  pdbwatch audit --hide-pdb

  # Ignore workloads scaled to zero
  pdbwatch audit --hide-zero-replicas

  # Audit one namespace, machine-readable
  pdbwatch audit --namespace payments -o json

  # Skip intentionally unprotected workloads
  pdbwatch audit --exemptions exemptions.yaml`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	addScanFlags(auditCmd)
	auditCmd.Flags().Bool("hide-pdb", false, "Hide workloads that have a matching PDB")
	auditCmd.Flags().StringP("output", "o", "", "Output format: json, csv, table (default: table)")
}

func runAudit(cmd *cobra.Command, _ []string) error {
	outputFlag, _ := cmd.Flags().GetString("output") //nolint:errcheck // flag registered above
	if outputFlag != "" && outputFlag != "json" && outputFlag != "csv" && outputFlag != "table" {
		return fmt.Errorf("invalid --output value %q: must be json, csv, or table", outputFlag)
	}

	cfg, err := loadScanConfig(cmd)
	if err != nil {
		return err
	}

	hidePDB, _ := cmd.Flags().GetBool("hide-pdb") //nolint:errcheck // flag registered above
	auditor, flushTracer, err := newAuditor(cmd, cfg, audit.Options{HidePDB: hidePDB})
	if err != nil {
		return err
	}
	defer flushTracer()

	snap, err := auditor.Run(cmd.Context())
	if err != nil {
		return err
	}

	switch outputFlag {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("writing JSON output: %w", err)
		}
	case "csv":
		if err := report.WriteCSV(os.Stdout, snap); err != nil {
			return fmt.Errorf("writing CSV output: %w", err)
		}
	default:
		fmt.Print(monitor.PlainText(snap))
	}
	return nil
}
