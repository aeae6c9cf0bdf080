package store

import "time"

// Severity classifies how urgent a drift event or notification is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityCritical Severity = "critical"
)

// WorkloadKind identifies the controller type that owns a set of pods.
type WorkloadKind string

const (
	KindDeployment  WorkloadKind = "deployment"
	KindStatefulSet WorkloadKind = "statefulset"
	KindDaemonSet   WorkloadKind = "daemonset"
	KindRollout     WorkloadKind = "rollout"
)

// CoverageStatus says whether a workload is matched by a PodDisruptionBudget.
type CoverageStatus string

const (
	StatusProtected   CoverageStatus = "protected"
	StatusUnprotected CoverageStatus = "unprotected"
)

// Warning sources recorded in Snapshot.Warnings.
const (
	SourceRollouts = "rollouts"
	SourcePolicies = "poddisruptionbudgets"
)

// Workload is a single pod-owning controller observed in the cluster.
// Replicas is only populated for kinds where the collector reads it;
// nil means the count is unknown and replica-based filters skip it.
type Workload struct {
	Namespace string            `json:"namespace"`
	Name      string            `json:"name"`
	Kind      WorkloadKind      `json:"kind"`
	Selector  map[string]string `json:"selector,omitempty"`
	Replicas  *int32            `json:"replicas,omitempty"`
}

// Policy is a PodDisruptionBudget reduced to what coverage matching needs.
type Policy struct {
	Namespace string            `json:"namespace"`
	Name      string            `json:"name"`
	Selector  map[string]string `json:"selector,omitempty"`
}

// Entry is the audit verdict for one workload.
type Entry struct {
	Workload      Workload       `json:"workload"`
	Status        CoverageStatus `json:"status"`
	MatchedPolicy string         `json:"matchedPolicyName,omitempty"`
	SelectorKey   string         `json:"selectorKey"`
}

// Summary counts the full classification, before any display filters.
type Summary struct {
	Protected   int `json:"protectedCount"`
	Unprotected int `json:"unprotectedCount"`
	Total       int `json:"total"`
}

// Snapshot is a point-in-time coverage audit of the cluster.
type Snapshot struct {
	At          time.Time         `json:"at"`
	Protected   []Entry           `json:"protected"`
	Unprotected []Entry           `json:"unprotected"`
	Summary     Summary           `json:"summary"`
	Warnings    map[string]string `json:"warnings,omitempty"` // source name -> warning message
}

// Gaps returns how many workloads lack disruption-budget coverage.
func (s Snapshot) Gaps() int {
	return s.Summary.Unprotected
}

// Degraded reports whether any best-effort source failed during collection.
func (s Snapshot) Degraded() bool {
	return len(s.Warnings) > 0
}

// PolicyListingFailed reports whether the PDB listing itself failed. Unlike a
// missing rollout source, this voids every protection verdict in the snapshot.
func (s Snapshot) PolicyListingFailed() bool {
	return s.Warnings[SourcePolicies] != ""
}
