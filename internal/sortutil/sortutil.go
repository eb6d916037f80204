package sortutil

import (
	"cmp"
	"slices"
)

// Keys returns the keys of m sorted in ascending order.
func Keys[K cmp.Ordered, V any](m map[K]V) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// StablePathSort returns a new slice containing the input paths sorted
// lexicographically. The original slice is not modified.
func StablePathSort(paths []string) []string {
	out := slices.Clone(paths)
	slices.Sort(out)
	return out
}
