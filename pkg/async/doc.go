// Package async provides safe concurrent execution primitives for
// background work.
//
// SafeGo runs a function in a goroutine with panic recovery, a timeout,
// and context cancellation. It is used for fire-and-forget reconciliation
// triggers that must not block or crash the owning request:
//
//	async.SafeGo(r.Context(), 30*time.Second, "post-login role sync", func(ctx context.Context) error {
//		return reconciler.Reconcile(ctx, subjectID)
//	})
//
// WorkerPool runs submitted tasks on a bounded set of workers; the
// reconciliation sweeper uses it to fan out over all bound subjects without
// unbounded goroutine growth.
package async
