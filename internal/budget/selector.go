// Package budget indexes PodDisruptionBudgets by the label selector they
// cover, so workloads can be matched against them by selector identity.
package budget

import (
	"sort"
	"strings"
)

// Key canonicalizes a matchLabels selector into a stable string form:
// pairs sorted by label key and joined as "k=v" with commas. Two selectors
// with the same pairs always produce the same key regardless of map order.
// An empty or nil selector yields "".
func Key(selector map[string]string) string {
	if len(selector) == 0 {
		return ""
	}

	keys := make([]string, 0, len(selector))
	for k := range selector {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+selector[k])
	}
	return strings.Join(pairs, ",")
}
