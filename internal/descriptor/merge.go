package descriptor

import "strings"

// MergeResult is the outcome of merging one implementation into a list.
type MergeResult struct {
	AlreadyPresent bool
	List           []string
}

// Merge appends impl to existing unless an entry equal to it (after trimming
// the entry) is already there. Matching is exact: no case folding and no
// generic-parameter stripping. Existing order is never changed.
func Merge(existing []string, impl string) MergeResult {
	for _, e := range existing {
		if strings.TrimSpace(e) == impl {
			return MergeResult{AlreadyPresent: true, List: existing}
		}
	}
	list := make([]string, 0, len(existing)+1)
	list = append(list, existing...)
	list = append(list, impl)
	return MergeResult{List: list}
}
