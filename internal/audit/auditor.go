package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/pdbwatch/internal/budget"
	"github.com/ppiankov/pdbwatch/internal/exempt"
	"github.com/ppiankov/pdbwatch/internal/store"
)

// Source produces the workload inventory for one audit pass. Warnings carry
// best-effort source failures that degraded but did not abort collection.
type Source interface {
	Collect(ctx context.Context) ([]store.Workload, map[string]string, error)
}

// PolicyLister produces the PDB records for one audit pass.
type PolicyLister func(ctx context.Context) ([]store.Policy, error)

// Auditor runs the full pipeline: collect workloads, index policies,
// reconcile coverage.
type Auditor struct {
	source     Source
	policies   PolicyLister
	opts       Options
	exemptions *exempt.Matcher
	nowFn      func() time.Time
	tracer     trace.Tracer
}

// New creates an auditor over the given sources.
func New(source Source, policies PolicyLister, opts ...func(*Auditor)) *Auditor {
	a := &Auditor{
		source:   source,
		policies: policies,
		nowFn:    time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// WithFilters applies classification filters to every run.
func WithFilters(f Options) func(*Auditor) {
	return func(a *Auditor) {
		a.opts = f
	}
}

// WithTracer enables span emission around each run.
func WithTracer(tr trace.Tracer) func(*Auditor) {
	return func(a *Auditor) {
		a.tracer = tr
	}
}

// WithExemptions drops matching workloads before classification.
func WithExemptions(m *exempt.Matcher) func(*Auditor) {
	return func(a *Auditor) {
		a.exemptions = m
	}
}

// Run performs one coverage audit. A workload-collection failure is fatal;
// a PDB-listing failure degrades the run to an all-unprotected snapshot with
// a warning, since "no budgets visible" is itself a reportable posture.
func (a *Auditor) Run(ctx context.Context) (store.Snapshot, error) {
	if a.tracer != nil {
		var span trace.Span
		ctx, span = a.tracer.Start(ctx, "audit.run")
		defer span.End()
	}

	workloads, warnings, err := a.source.Collect(ctx)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("collecting workloads: %w", err)
	}
	if warnings == nil {
		warnings = make(map[string]string)
	}

	if a.exemptions != nil {
		before := len(workloads)
		workloads = a.exemptions.Filter(workloads)
		if dropped := before - len(workloads); dropped > 0 {
			slog.Debug("exempt workloads filtered", "count", dropped)
		}
	}

	policies, err := a.policies(ctx)
	if err != nil {
		slog.Error("fetching poddisruptionbudgets", "err", err)
		warnings[store.SourcePolicies] = err.Error()
		policies = nil
	}

	idx := budget.BuildIndex(policies)
	res := Reconcile(workloads, idx, a.opts)

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.Int("pdbwatch.workloads", res.Summary.Total),
			attribute.Int("pdbwatch.gaps", res.Summary.Unprotected),
			attribute.Int("pdbwatch.policies", idx.Size()),
		)
	}

	snap := store.Snapshot{
		At:          a.nowFn(),
		Protected:   res.Protected,
		Unprotected: res.Unprotected,
		Summary:     res.Summary,
	}
	if len(warnings) > 0 {
		snap.Warnings = warnings
	}
	return snap, nil
}
