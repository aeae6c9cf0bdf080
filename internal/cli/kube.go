package cli

import (
	"log/slog"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// buildRESTConfig tries in-cluster config first, falls back to kubeconfig.
func buildRESTConfig(kubeconfig, kubeCtx string) (*rest.Config, error) {
	// Try in-cluster first when no explicit flags are given
	if kubeconfig == "" && kubeCtx == "" {
		cfg, err := rest.InClusterConfig()
		if err == nil {
			return cfg, nil
		}
	}

	// Fall back to kubeconfig (respects KUBECONFIG env var)
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		loadingRules.ExplicitPath = kubeconfig
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules,
		&clientcmd.ConfigOverrides{CurrentContext: kubeCtx},
	).ClientConfig()
}

// currentContextName resolves the kubeconfig context an audit will talk to.
// In-cluster runs and resolution failures come back empty.
func currentContextName(kubeconfig, kubeCtx string) string {
	if kubeCtx != "" {
		return kubeCtx
	}
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		loadingRules.ExplicitPath = kubeconfig
	}
	raw, err := loadingRules.Load()
	if err != nil {
		return ""
	}
	return raw.CurrentContext
}

// logClusterInfo reports which cluster the audit targets. Best-effort: any
// unresolvable field logs as "unknown" rather than aborting the run.
func logClusterInfo(restCfg *rest.Config, contextName string) {
	if contextName == "" {
		contextName = "unknown"
	}
	host := restCfg.Host
	if host == "" {
		host = "unknown"
	}
	slog.Info("cluster", "context", contextName, "host", host)
}
