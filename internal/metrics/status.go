package metrics

import "sort"

// ErrorBucket is one row of the error breakdown.
type ErrorBucket struct {
	Kind  string
	Count int
}

// SortErrors flattens an error breakdown into rows sorted by descending
// count, then by kind for stability.
func SortErrors(errs map[string]int) []ErrorBucket {
	if len(errs) == 0 {
		return nil
	}
	rows := make([]ErrorBucket, 0, len(errs))
	for kind, count := range errs {
		rows = append(rows, ErrorBucket{Kind: kind, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Kind < rows[j].Kind
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
