// Package metrics provides Prometheus instrumentation for pdbwatch.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/pdbwatch/internal/store"
)

// Collector translates a coverage snapshot into Prometheus gauge values.
type Collector struct {
	workloadProtected  *prometheus.GaugeVec
	workloadsTotal     *prometheus.GaugeVec
	unprotectedTotal   *prometheus.GaugeVec
	collectionWarnings *prometheus.GaugeVec
	auditDuration      prometheus.Gauge
	mu                 sync.Mutex
}

// NewCollector creates and registers metrics on the given registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		workloadProtected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pdbwatch",
			Name:      "workload_protected",
			Help:      "Whether a workload is covered by a PodDisruptionBudget (1=protected, 0=unprotected).",
		}, []string{"namespace", "name", "kind"}),

		workloadsTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pdbwatch",
			Name:      "workloads_total",
			Help:      "Number of audited workloads by kind.",
		}, []string{"kind"}),

		unprotectedTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pdbwatch",
			Name:      "unprotected_total",
			Help:      "Number of workloads without a matching PodDisruptionBudget, by kind.",
		}, []string{"kind"}),

		collectionWarnings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pdbwatch",
			Name:      "collection_warnings",
			Help:      "Best-effort sources that failed during the last audit (1 per source).",
		}, []string{"source"}),

		auditDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pdbwatch",
			Name:      "audit_duration_seconds",
			Help:      "Duration of the last coverage audit in seconds.",
		}),
	}

	reg.MustRegister(c.workloadProtected)
	reg.MustRegister(c.workloadsTotal)
	reg.MustRegister(c.unprotectedTotal)
	reg.MustRegister(c.collectionWarnings)
	reg.MustRegister(c.auditDuration)

	return c
}

// Update replaces all metric values from the given snapshot.
func (c *Collector) Update(snap store.Snapshot, auditDuration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.workloadProtected.Reset()
	c.workloadsTotal.Reset()
	c.unprotectedTotal.Reset()
	c.collectionWarnings.Reset()

	c.auditDuration.Set(auditDuration.Seconds())

	totalByKind := make(map[store.WorkloadKind]int)
	gapsByKind := make(map[store.WorkloadKind]int)

	for i := range snap.Protected {
		e := &snap.Protected[i]
		totalByKind[e.Workload.Kind]++
		c.workloadProtected.With(workloadLabels(e)).Set(1)
	}
	for i := range snap.Unprotected {
		e := &snap.Unprotected[i]
		totalByKind[e.Workload.Kind]++
		gapsByKind[e.Workload.Kind]++
		c.workloadProtected.With(workloadLabels(e)).Set(0)
	}

	// Emit every kind the auditor knows, so absent kinds read as zero
	// instead of disappearing between scrapes.
	for _, kind := range []store.WorkloadKind{
		store.KindDeployment, store.KindStatefulSet, store.KindDaemonSet, store.KindRollout,
	} {
		c.workloadsTotal.With(prometheus.Labels{"kind": string(kind)}).Set(float64(totalByKind[kind]))
		c.unprotectedTotal.With(prometheus.Labels{"kind": string(kind)}).Set(float64(gapsByKind[kind]))
	}

	for source := range snap.Warnings {
		c.collectionWarnings.With(prometheus.Labels{"source": source}).Set(1)
	}
}

func workloadLabels(e *store.Entry) prometheus.Labels {
	return prometheus.Labels{
		"namespace": e.Workload.Namespace,
		"name":      e.Workload.Name,
		"kind":      string(e.Workload.Kind),
	}
}
