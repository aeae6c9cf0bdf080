package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ppiankov/pdbwatch/internal/audit"
	"github.com/ppiankov/pdbwatch/internal/monitor"
)

var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Browse PDB coverage gaps right now",
	Long: `Run a coverage audit and browse the result in an interactive table:
gaps first, with the selector key and matched PDB for each workload.

Falls back to plain text when stdout is not a terminal.

Exit codes:
  0  Every audited workload has a matching PDB
  1  Coverage gaps exist
  3  Collection was degraded (rollouts or PDB listing failed)`,
	RunE: runNow,
}

func init() {
	rootCmd.AddCommand(nowCmd)
	addScanFlags(nowCmd)
	nowCmd.Flags().Bool("no-tui", false, "Print plain text instead of the interactive table")
}

func runNow(cmd *cobra.Command, _ []string) error {
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

	noTUI, _ := cmd.Flags().GetBool("no-tui") //nolint:errcheck // flag registered above
	if noTUI || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Print(monitor.PlainText(snap))
	} else {
		kubeconfig, _ := cmd.Flags().GetString("kubeconfig") //nolint:errcheck // registered via addScanFlags
		kubeCtx, _ := cmd.Flags().GetString("context")       //nolint:errcheck // registered via addScanFlags
		model := monitor.NewModel(snap, currentContextName(kubeconfig, kubeCtx))
		if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
			return fmt.Errorf("running TUI: %w", err)
		}
	}

	if code := monitor.ExitCode(snap); code != 0 {
		flushTracer() // explicit flush because os.Exit bypasses defers
		os.Exit(code) //nolint:gocritic // exitAfterDefer: defer covers the normal-return path only
	}
	return nil
}
