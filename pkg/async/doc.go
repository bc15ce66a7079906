// Package async provides small concurrency primitives used by the session
// layer.
//
// Future holds the eventual result of a goroutine. Inflight memoizes a
// computation while it is running so that concurrent callers share one run
// and one result instead of starting their own:
//
//	var init async.Inflight[session.Result]
//
//	res, err := init.Do(ctx, func(ctx context.Context) (session.Result, error) {
//		return store.bootstrap(ctx)
//	})
//
// Once the shared run completes the slot is cleared, so a later call starts
// a fresh computation.
package async
