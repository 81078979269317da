// Package refbase provides intrusive strong/weak reference counting for objects
// shared between goroutines.
//
// The core idea is:
//   - Make a type manageable by embedding [Base] and optionally overriding
//     lifecycle hooks like OnFirstStrongRef, OnLastStrongRef, OnLastWeakRef,
//     OnAttemptPromoted and OnDestroy.
//   - Own it through [Strong] handles created with [New] or [Strong.Clone].
//   - Observe it through [Weak] handles and turn them back into strong ones
//     with [Weak.Promote], which only succeeds while the object is alive.
//
// Counting model (high level):
//   - Each object is bound to one shared [Counter] holding a strong, a weak and
//     a self count. Every strong handle is also a weak claim; every handle of
//     either kind holds a self claim.
//   - The strong count starts at the [InitialStrong] bias so an object that
//     was never strongly owned can still be promoted once.
//   - All bookkeeping is lock-free; promotion uses a compare-and-swap loop and
//     never revives an object whose strong count has reached zero.
//
// Lifetime model (high level):
//   - Under [StrongGoverns] (the default) the object is destroyed when its last
//     strong handle is released.
//   - Under [WeakGoverns] it is destroyed when its last weak claim is released.
//   - The policy must be chosen before the first handle is created.
//
// Build with -tags debug to turn contract violations (empty handle access,
// late policy changes, over-release) into panics and to trace every counter
// mutation through the package logger.
package refbase
