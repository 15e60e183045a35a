package parallel

import "context"

// RunChunked is the chunked parallel work driver: items are split into
// batches of size workers, and each batch is fully drained by a WorkerPool
// before the next batch starts. Draining in lockstep chunks (rather than one
// pool over the whole slice) keeps progress reporting deterministic and lets
// the caller fail fast on the first error a chunk surfaces, instead of
// discovering every item's fate only after the entire input has run.
//
// onProgress, if non-nil, is called once per chunk with the number of items
// completed so far and the total item count.
func RunChunked[T any](
	ctx context.Context,
	items []T,
	workers int,
	fn func(ctx context.Context, item T) error,
	onProgress func(completed, total int),
) error {
	if len(items) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = DefaultPoolConfig().MaxWorkers
	}

	pool := NewWorkerPool[T, struct{}](DefaultPoolConfig().WithWorkers(workers))
	total := len(items)
	completed := 0

	for start := 0; start < total; start += workers {
		end := start + workers
		if end > total {
			end = total
		}
		chunk := items[start:end]

		results := pool.ExecuteFunc(ctx, chunk, func(ctx context.Context, item T) (struct{}, error) {
			return struct{}{}, fn(ctx, item)
		})

		for _, r := range results {
			if r.Error != nil {
				return r.Error
			}
		}

		completed += len(chunk)
		if onProgress != nil {
			onProgress(completed, total)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return nil
}
