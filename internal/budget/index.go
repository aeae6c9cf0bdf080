package budget

import (
	"log/slog"

	"github.com/ppiankov/pdbwatch/internal/store"
)

// Index maps namespace -> canonical selector key -> policy name. PDB
// selectors are namespace-scoped, so identical selectors in different
// namespaces never collide.
type Index map[string]map[string]string

// BuildIndex folds policies into a lookup index. Policies without
// matchLabels cannot be matched by selector identity and are skipped
// with a warning. When two policies in one namespace share a selector,
// the later one wins.
func BuildIndex(policies []store.Policy) Index {
	idx := make(Index)
	for _, p := range policies {
		key := Key(p.Selector)
		if key == "" {
			slog.Warn("PDB has no matchLabels selector, skipping",
				"namespace", p.Namespace, "name", p.Name)
			continue
		}
		if idx[p.Namespace] == nil {
			idx[p.Namespace] = make(map[string]string)
		}
		idx[p.Namespace][key] = p.Name
	}
	return idx
}

// Lookup returns the policy name covering the given selector key in a
// namespace, if any.
func (i Index) Lookup(namespace, key string) (string, bool) {
	name, ok := i[namespace][key]
	return name, ok
}

// Size returns the number of indexed selectors across all namespaces.
func (i Index) Size() int {
	n := 0
	for _, keys := range i {
		n += len(keys)
	}
	return n
}
