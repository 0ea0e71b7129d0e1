package lineitems

import "strings"

// MergeIDs returns the union of both id lists: every non-empty id exactly
// once, in order of first appearance (primary first, then secondary).
func MergeIDs(primary, secondary []string) []string {
	out := make([]string, 0, len(primary)+len(secondary))
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	for _, list := range [][]string{primary, secondary} {
		for _, id := range list {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// DistinctProductIDs lists the product ids referenced by records, skipping
// line items without one.
func DistinctProductIDs(records []LineItemRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ProductID)
	}
	return MergeIDs(ids, nil)
}
