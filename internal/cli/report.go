package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pdbwatch/internal/audit"
	"github.com/ppiankov/pdbwatch/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a self-contained HTML coverage report",
	Long: `Run a coverage audit and render it as a standalone HTML report
suitable for review meetings, email distribution, or archival.

All CSS is inlined and the output is print-friendly.`,
	Example: `  # Generate report to stdout
  pdbwatch report > report.html

  # Save to a file
  pdbwatch report --output-file report.html

  # Audit a specific cluster
  pdbwatch report --context prod --output-file prod-report.html

  # Include cluster name in the report header
  pdbwatch report --cluster-name production --output-file report.html`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	addScanFlags(reportCmd)
	reportCmd.Flags().String("cluster-name", "", "Name for this cluster in the report header")
	reportCmd.Flags().StringP("output-file", "o", "", "Write report to file (default: stdout)")
}

func runReport(cmd *cobra.Command, _ []string) error {
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

	clusterName, _ := cmd.Flags().GetString("cluster-name") //nolint:errcheck // flag registered above
	if clusterName == "" {
		clusterName = cfg.ClusterName
	}

	html, err := report.Generate(snap, clusterName)
	if err != nil {
		return fmt.Errorf("generating report: %w", err)
	}

	outputFile, _ := cmd.Flags().GetString("output-file") //nolint:errcheck // flag registered above
	if outputFile != "" {
		if writeErr := os.WriteFile(outputFile, html, 0o644); writeErr != nil { //nolint:gosec // report is not sensitive
			return fmt.Errorf("writing report: %w", writeErr)
		}
		slog.Info("report written", "path", outputFile)
	} else {
		os.Stdout.Write(html) //nolint:errcheck // best-effort stdout write
	}

	return nil
}
