package core

import (
	"context"
	"runtime/debug"
	"sync"
)

// ParallelFor partitions the index range [0, n) into contiguous chunks of
// roughly n/workers indices, submits one task per chunk to the pool, and
// blocks the calling goroutine until every chunk has completed.
//
// body runs once per index with no ordering guarantee between indices; it
// must be safe to run concurrently on disjoint indices (the usual pattern is
// writing disjoint slots of a pre-sized buffer). No race detection is
// provided.
//
// A panic in body is recovered per chunk and reported to the pool's panic
// handler; the remaining indices of that chunk are skipped, other chunks are
// unaffected, and ParallelFor still returns once all chunks finish.
//
// Chunks rejected because the pool is stopping are reported through the
// pool's rejection handler and skipped; ParallelFor returns rather than
// blocking on work that will never run.
func ParallelFor(pool ThreadPool, n int, body func(i int)) {
	if n <= 0 {
		return
	}

	workers := pool.WorkerCount()
	if workers < 1 {
		workers = 1
	}

	chunks := workers
	if chunks > n {
		chunks = n
	}
	chunkSize := (n + chunks - 1) / chunks

	var wg sync.WaitGroup
	traits := DefaultTaskTraits()

	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}

		wg.Add(1)
		lo, hi := start, end
		accepted := pool.PostInternal(func(ctx context.Context) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					reportChunkPanic(pool, ctx, rec)
				}
			}()
			for i := lo; i < hi; i++ {
				body(i)
			}
		}, traits)
		if !accepted {
			// Pool is shutting down; the rejection was already reported
			// through the scheduler's handler. Release the join so the
			// caller is not blocked forever.
			wg.Done()
		}
	}

	wg.Wait()
}

func reportChunkPanic(pool ThreadPool, ctx context.Context, panicInfo any) {
	if sp, ok := pool.(schedulerProvider); ok {
		scheduler := sp.GetScheduler()
		if handler := scheduler.GetPanicHandler(); handler != nil {
			handler.HandlePanic(ctx, "parallel-for", -1, panicInfo, debug.Stack())
		}
		if metrics := scheduler.GetMetrics(); metrics != nil {
			metrics.RecordTaskPanic("parallel-for", panicInfo)
		}
	}
}
