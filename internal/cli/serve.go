package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/ppiankov/pdbwatch/internal/audit"
	"github.com/ppiankov/pdbwatch/internal/budget"
	"github.com/ppiankov/pdbwatch/internal/collector"
	"github.com/ppiankov/pdbwatch/internal/config"
	"github.com/ppiankov/pdbwatch/internal/exempt"
	"github.com/ppiankov/pdbwatch/internal/history"
	"github.com/ppiankov/pdbwatch/internal/metrics"
	"github.com/ppiankov/pdbwatch/internal/notify"
	"github.com/ppiankov/pdbwatch/internal/store"
	"github.com/ppiankov/pdbwatch/internal/telemetry"
	"github.com/ppiankov/pdbwatch/internal/web"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
	defaultConfigPath = "/etc/pdbwatch/config.yaml"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as in-cluster service with web UI and /metrics",
	Long: `Start pdbwatch as a long-running service inside a Kubernetes cluster.

Runs a background audit loop and serves results over HTTP.

Endpoints:
  /                   Coverage gaps web UI
  /metrics            Prometheus scrape endpoint
  /healthz            Liveness probe (503 when the last audit is stale)
  /readyz             Readiness probe with audit summary
  /api/v1/snapshot    JSON snapshot of the latest audit
  /api/v1/export.csv  CSV export of the latest audit
  /api/v1/history     Audit history (requires --history-db)
  /api/v1/trend       Per-workload coverage trend (requires --history-db)`,
	Example: `  # Run with default config
  pdbwatch serve

  # Run with custom config file
  pdbwatch serve --config /etc/pdbwatch/config.yaml

  # Override listen address
  pdbwatch serve --listen :9090

  # Keep audit history for trend queries
  pdbwatch serve --history-db /var/lib/pdbwatch/history.db

  # Run with JSON logging for log aggregation
  pdbwatch serve --log-format json --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("config", defaultConfigPath, "Path to config file")
	serveCmd.Flags().String("listen", "", "Listen address (overrides config)")
	serveCmd.Flags().String("kubeconfig", "", "Path to kubeconfig")
	serveCmd.Flags().String("context", "", "Kubernetes context to use")
	serveCmd.Flags().String("history-db", "", "Path to SQLite history database (enables /api/v1/history and /api/v1/trend)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Load config
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	cfg := config.Defaults()
	if cfgPath != "" {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		} else if cfgPath != defaultConfigPath {
			// Non-default path that doesn't exist is an error
			return fmt.Errorf("config file not found: %s", cfgPath)
		}
	}

	// Override listen addr from flag
	listenFlag, _ := cmd.Flags().GetString("listen") //nolint:errcheck // flag registered above
	if listenFlag != "" {
		cfg.ListenAddr = listenFlag
	}

	// Override history DB from flag
	historyDB, _ := cmd.Flags().GetString("history-db") //nolint:errcheck // flag registered above
	if historyDB != "" {
		cfg.HistoryDB = historyDB
	}

	// Open history store if configured
	var histStore *history.Store
	if cfg.HistoryDB != "" {
		var histErr error
		histStore, histErr = history.Open(cfg.HistoryDB)
		if histErr != nil {
			return fmt.Errorf("opening history database: %w", histErr)
		}
		defer histStore.Close() //nolint:errcheck // best-effort cleanup on shutdown
		slog.Info("history storage enabled", "path", cfg.HistoryDB)
	}

	// Build Kubernetes clients
	kubeconfig, err := cmd.Flags().GetString("kubeconfig")
	if err != nil {
		return err
	}
	kubeCtx, err := cmd.Flags().GetString("context")
	if err != nil {
		return err
	}

	restCfg, err := buildRESTConfig(kubeconfig, kubeCtx)
	if err != nil {
		return fmt.Errorf("building kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("creating kubernetes client: %w", err)
	}

	dynClient, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("creating dynamic client: %w", err)
	}

	logClusterInfo(restCfg, currentContextName(kubeconfig, kubeCtx))

	// Build the audit pipeline
	var collectorOpts []func(*collector.Collector)
	if cfg.Namespace != "" {
		collectorOpts = append(collectorOpts, collector.WithNamespace(cfg.Namespace))
	}
	src := collector.New(clientset, dynClient, collectorOpts...)

	policies := func(ctx context.Context) ([]store.Policy, error) {
		return budget.ListPolicies(ctx, clientset)
	}

	auditOpts := []func(*audit.Auditor){
		audit.WithFilters(audit.Options{HideZeroReplicas: cfg.HideZeroReplicas}),
	}

	if cfg.Exemptions != "" {
		matcher, loadErr := exempt.LoadFromFile(cfg.Exemptions)
		if loadErr != nil {
			return fmt.Errorf("loading exemptions: %w", loadErr)
		}
		slog.Info("exemptions loaded", "path", cfg.Exemptions, "rules", matcher.Len())
		auditOpts = append(auditOpts, audit.WithExemptions(matcher))
	}

	// Initialize tracing
	otelEndpoint, _ := cmd.Flags().GetString("otel-endpoint") //nolint:errcheck // flag registered on root
	tracer, tracerShutdown, tracerErr := telemetry.InitTracer(context.Background(), otelEndpoint, "pdbwatch", version)
	if tracerErr != nil {
		slog.Warn("initializing tracer", "err", tracerErr)
	} else {
		auditOpts = append(auditOpts, audit.WithTracer(tracer))
		defer tracerShutdown(context.Background()) //nolint:errcheck // best-effort flush
	}

	auditor := audit.New(src, policies, auditOpts...)

	// Notifications (nil if not configured)
	notifier := notify.New(cfg.Notifications)

	// Shared state: mutex-protected snapshots
	var mu sync.RWMutex
	var currentSnap store.Snapshot
	var previousSnap store.Snapshot

	getSnapshot := func() store.Snapshot {
		mu.RLock()
		defer mu.RUnlock()
		return currentSnap
	}

	// Prometheus metrics
	registry := prometheus.NewRegistry()
	metricsCollector := metrics.NewCollector(registry)

	// HTTP server
	mux := http.NewServeMux()
	var uiOpts []func(*web.UIConfig)
	if histStore != nil {
		uiOpts = append(uiOpts, web.WithHistoryEnabled())
	}
	mux.HandleFunc("/", web.UIHandler(getSnapshot, uiOpts...))
	mux.HandleFunc("/healthz", web.HealthzHandler(getSnapshot, 2*cfg.RefreshEvery))
	mux.HandleFunc("/readyz", web.ReadyzHandler(getSnapshot, 2*cfg.RefreshEvery))
	mux.HandleFunc("/api/v1/snapshot", web.SnapshotHandler(getSnapshot))
	mux.HandleFunc("/api/v1/export.csv", web.ExportCSVHandler(getSnapshot))
	if histStore != nil {
		mux.HandleFunc("/api/v1/history", web.HistoryHandler(histStore))
		mux.HandleFunc("/api/v1/trend", web.TrendHandler(histStore))
	}
	mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background audit loop
	scan := func() {
		start := time.Now()
		snap, runErr := auditor.Run(ctx)
		if runErr != nil {
			slog.Error("audit failed", "err", runErr)
			return
		}
		duration := time.Since(start)

		mu.Lock()
		previousSnap = currentSnap
		currentSnap = snap
		prev := previousSnap
		mu.Unlock()

		metricsCollector.Update(snap, duration)

		if histStore != nil {
			if saveErr := histStore.Save(snap); saveErr != nil {
				slog.Error("saving history snapshot", "err", saveErr)
			}
		}

		if notifier != nil {
			notifier.Notify(prev, snap)
		}

		slog.Info("audit complete", "workloads", snap.Summary.Total,
			"protected", snap.Summary.Protected, "unprotected", snap.Summary.Unprotected,
			"warnings", len(snap.Warnings), "duration", duration.Round(time.Millisecond))
	}

	// Run initial audit
	scan()

	// Start periodic audit loop
	go func() {
		ticker := time.NewTicker(cfg.RefreshEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				func() {
					defer func() {
						if r := recover(); r != nil {
							slog.Error("audit panic recovered", "panic", r)
						}
					}()
					scan()
				}()
			}
		}
	}()

	// Start HTTP server
	srvErr := make(chan error, 1)
	go func() {
		slog.Info("pdbwatch serve listening", "version", version, "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
	case err := <-srvErr:
		return err
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("shutdown complete")
	return nil
}
