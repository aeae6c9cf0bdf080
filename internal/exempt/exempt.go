// Package exempt filters workloads that are deliberately allowed to run
// without a PodDisruptionBudget, so known-acceptable gaps stop showing up
// in every audit.
package exempt

import (
	"fmt"
	"os"
	"path"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/ppiankov/pdbwatch/internal/store"
)

// Rule matches workloads by namespace, name, and kind. Empty fields match
// anything; namespace and name accept glob patterns ("*", "?", "[a-z]").
type Rule struct {
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// exemptionFile is the YAML structure of an exemptions file.
type exemptionFile struct {
	Exemptions []Rule `json:"exemptions"`
}

// Matcher holds a parsed exemption list.
type Matcher struct {
	rules []Rule
}

// LoadFromFile reads a YAML exemptions file.
func LoadFromFile(filePath string) (*Matcher, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // user-provided exemptions file path
	if err != nil {
		return nil, fmt.Errorf("reading exemptions file: %w", err)
	}

	var ef exemptionFile
	if err := yaml.Unmarshal(data, &ef); err != nil {
		return nil, fmt.Errorf("parsing exemptions file: %w", err)
	}

	for i, r := range ef.Exemptions {
		if r.Namespace == "" && r.Name == "" && r.Kind == "" {
			return nil, fmt.Errorf("exemptions[%d]: rule matches everything, refusing", i)
		}
		for _, pattern := range []string{r.Namespace, r.Name} {
			if pattern == "" {
				continue
			}
			if _, err := path.Match(pattern, ""); err != nil {
				return nil, fmt.Errorf("exemptions[%d]: bad pattern %q: %w", i, pattern, err)
			}
		}
	}

	return &Matcher{rules: ef.Exemptions}, nil
}

// NewMatcher builds a matcher from in-memory rules.
func NewMatcher(rules []Rule) *Matcher {
	return &Matcher{rules: rules}
}

// Len returns the number of loaded rules.
func (m *Matcher) Len() int {
	return len(m.rules)
}

// Exempt reports whether a workload matches any rule, and the rule's reason.
func (m *Matcher) Exempt(w store.Workload) (string, bool) {
	for _, r := range m.rules {
		if !globMatch(r.Namespace, w.Namespace) {
			continue
		}
		if !globMatch(r.Name, w.Name) {
			continue
		}
		if r.Kind != "" && !strings.EqualFold(r.Kind, string(w.Kind)) {
			continue
		}
		return r.Reason, true
	}
	return "", false
}

// Filter returns the workloads not covered by any exemption rule.
func (m *Matcher) Filter(workloads []store.Workload) []store.Workload {
	if m == nil || len(m.rules) == 0 {
		return workloads
	}
	kept := make([]store.Workload, 0, len(workloads))
	for _, w := range workloads {
		if _, ok := m.Exempt(w); ok {
			continue
		}
		kept = append(kept, w)
	}
	return kept
}

// globMatch matches a pattern against a value, treating an empty pattern as
// a wildcard. Patterns validated at load time cannot fail here.
func globMatch(pattern, value string) bool {
	if pattern == "" {
		return true
	}
	ok, err := path.Match(pattern, value)
	return err == nil && ok
}
