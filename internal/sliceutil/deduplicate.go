// Package sliceutil provides generic slice helpers.
package sliceutil

// Deduplicate returns items with later repeats of the same key removed.
// Order of first occurrences is preserved.
//
// Example:
//
//	models := []string{"gpt-4o", "gpt-4o-mini", "gpt-4o"}
//	unique := sliceutil.Deduplicate(models, func(m string) string { return m })
//	// Result: ["gpt-4o", "gpt-4o-mini"]
func Deduplicate[T any, K comparable](items []T, key func(T) K) []T {
	if len(items) == 0 {
		return items
	}

	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}
