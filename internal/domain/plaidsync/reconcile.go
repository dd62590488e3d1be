package plaidsync

import (
	"context"
	"fmt"
)

type keyed interface {
	Key() string
}

// dedupe collapses rows sharing a key, keeping the position of the first
// occurrence and the content of the last. Postgres rejects an upsert batch
// that touches the same conflict key twice.
func dedupe[T keyed](rows []T) []T {
	index := make(map[string]int, len(rows))
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if i, ok := index[r.Key()]; ok {
			out[i] = r
			continue
		}
		index[r.Key()] = len(out)
		out = append(out, r)
	}
	return out
}

// reconcile upserts rows in batches and classifies each one against the keys
// already stored. The classification only feeds the counts; every row is
// written regardless. The first failing batch stops the resource.
func reconcile[T keyed](ctx context.Context, rows []T, existing map[string]struct{}, batchSize int, upsert func(context.Context, []T) error) (*ResourceResult, error) {
	rows = dedupe(rows)
	result := &ResourceResult{Success: true, Count: len(rows)}

	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		batch := rows[start:end]

		if err := upsert(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to upsert rows %d-%d: %w", start, end-1, err)
		}

		for _, r := range batch {
			if _, ok := existing[r.Key()]; ok {
				result.Updated++
			} else {
				result.Inserted++
			}
		}
	}

	return result, nil
}

func keys[T keyed](rows []T) []string {
	out := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		k := r.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
