package retrieval

import (
	"context"
	"sync"

	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// Merge combines several search handlers into one that fans the query out
// concurrently, concatenates the results, and reranks the union. Handler
// errors are collected: the merge fails only when every handler fails, so
// one degraded source does not blank the whole search.
func Merge(rr Reranker, fns ...SearchFunc) SearchFunc {
	return func(ctx context.Context, query string) ([]models.Retrieval, error) {
		if len(fns) == 0 {
			return nil, nil
		}

		type result struct {
			rs  []models.Retrieval
			err error
		}
		results := make([]result, len(fns))

		var wg sync.WaitGroup
		for i, fn := range fns {
			wg.Add(1)
			go func(i int, fn SearchFunc) {
				defer wg.Done()
				rs, err := fn(ctx, query)
				results[i] = result{rs: rs, err: err}
			}(i, fn)
		}
		wg.Wait()

		var merged []models.Retrieval
		var firstErr error
		failures := 0
		for _, res := range results {
			if res.err != nil {
				failures++
				if firstErr == nil {
					firstErr = res.err
				}
				continue
			}
			merged = append(merged, res.rs...)
		}
		if failures == len(fns) {
			return nil, firstErr
		}

		return rr.Rerank(ctx, query, merged)
	}
}
