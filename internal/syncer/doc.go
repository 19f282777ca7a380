// Package syncer drives convergence between local pending records and the
// remote document store.
//
// # Overview
//
// A Reconciler run has two phases. The push phase walks each entity kind's
// pending records: a record whose remote counterpart carries a strictly newer
// timestamp is abandoned and marked synced (a concurrent writer elsewhere
// already advanced state past this stale edit); otherwise the record's full
// field set is merge-written remotely and then marked synced locally. The
// pull phase lists each remote collection and folds it into the local cache
// with the pending-wins-if-newer rule.
//
// # Concurrency
//
// Runs are single-flight per user: a trigger while a run for the same user
// is in flight returns common.ErrSyncInProgress instead of interleaving.
// Within one run, kinds push concurrently with each other, but records of
// the same kind strictly sequentially, bounding concurrent writes into one
// user's remote namespace.
//
// # Failure
//
// One record's failure never blocks the rest of the run. Failures are
// collected into the run Report and recorded in the per-user sync record;
// nothing here panics or aborts the caller.
package syncer
