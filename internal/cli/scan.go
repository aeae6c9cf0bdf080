package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/ppiankov/pdbwatch/internal/audit"
	"github.com/ppiankov/pdbwatch/internal/budget"
	"github.com/ppiankov/pdbwatch/internal/collector"
	"github.com/ppiankov/pdbwatch/internal/config"
	"github.com/ppiankov/pdbwatch/internal/exempt"
	"github.com/ppiankov/pdbwatch/internal/store"
	"github.com/ppiankov/pdbwatch/internal/telemetry"
)

// addScanFlags registers the flags shared by every one-shot audit command.
func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to config file")
	cmd.Flags().String("kubeconfig", "", "Path to kubeconfig")
	cmd.Flags().String("context", "", "Kubernetes context to use")
	cmd.Flags().String("namespace", "", "Namespace to audit (empty = all)")
	cmd.Flags().String("exemptions", "", "Path to YAML exemptions file")
	cmd.Flags().Bool("hide-zero-replicas", false, "Exclude workloads scaled to zero replicas")
}

// loadScanConfig loads the config file named by --config, or defaults.
func loadScanConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if cfgPath == "" {
		return config.Defaults(), nil
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newAuditor builds the full one-shot audit pipeline from command flags:
// cluster clients, workload collector, PDB lister, exemptions, and tracing.
// The returned flush sends any buffered spans and must also run before a
// non-nil os.Exit, since that path bypasses defers.
func newAuditor(cmd *cobra.Command, cfg *config.Config, filters audit.Options) (*audit.Auditor, func(), error) {
	flush := func() {}

	kubeconfig, err := cmd.Flags().GetString("kubeconfig")
	if err != nil {
		return nil, flush, err
	}
	kubeCtx, err := cmd.Flags().GetString("context")
	if err != nil {
		return nil, flush, err
	}

	restCfg, err := buildRESTConfig(kubeconfig, kubeCtx)
	if err != nil {
		return nil, flush, fmt.Errorf("building kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, flush, fmt.Errorf("creating kubernetes client: %w", err)
	}

	dynClient, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return nil, flush, fmt.Errorf("creating dynamic client: %w", err)
	}

	logClusterInfo(restCfg, currentContextName(kubeconfig, kubeCtx))

	namespace, _ := cmd.Flags().GetString("namespace") //nolint:errcheck // registered via addScanFlags
	if namespace == "" {
		namespace = cfg.Namespace
	}
	var collectorOpts []func(*collector.Collector)
	if namespace != "" {
		collectorOpts = append(collectorOpts, collector.WithNamespace(namespace))
	}
	src := collector.New(clientset, dynClient, collectorOpts...)

	policies := func(ctx context.Context) ([]store.Policy, error) {
		return budget.ListPolicies(ctx, clientset)
	}

	hideZero, _ := cmd.Flags().GetBool("hide-zero-replicas") //nolint:errcheck // registered via addScanFlags
	filters.HideZeroReplicas = filters.HideZeroReplicas || hideZero || cfg.HideZeroReplicas
	auditOpts := []func(*audit.Auditor){audit.WithFilters(filters)}

	exemptionsPath, _ := cmd.Flags().GetString("exemptions") //nolint:errcheck // registered via addScanFlags
	if exemptionsPath == "" {
		exemptionsPath = cfg.Exemptions
	}
	if exemptionsPath != "" {
		matcher, loadErr := exempt.LoadFromFile(exemptionsPath)
		if loadErr != nil {
			return nil, flush, fmt.Errorf("loading exemptions: %w", loadErr)
		}
		slog.Info("exemptions loaded", "path", exemptionsPath, "rules", matcher.Len())
		auditOpts = append(auditOpts, audit.WithExemptions(matcher))
	}

	otelEndpoint, _ := cmd.Flags().GetString("otel-endpoint") //nolint:errcheck // registered on root
	tracer, tracerShutdown, tracerErr := telemetry.InitTracer(context.Background(), otelEndpoint, "pdbwatch", version)
	if tracerErr != nil {
		slog.Warn("initializing tracer", "err", tracerErr)
	} else {
		auditOpts = append(auditOpts, audit.WithTracer(tracer))
		flush = func() {
			tracerShutdown(context.Background()) //nolint:errcheck // best-effort flush
		}
	}

	return audit.New(src, policies, auditOpts...), flush, nil
}
