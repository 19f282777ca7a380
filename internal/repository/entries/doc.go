// Package entries provides the local persistence layer for journal entries.
//
// # Overview
//
// The package defines a Repository interface for CRUD and sync operations on
// Entry models (see internal/models). The implementation persists the whole
// collection as one JSON document in the local cache (internal/localstore),
// mirroring how each screen of the app owns a single cache key.
//
// # Sync state
//
// Every mutation tags the affected entry pending; the reconciler later
// confirms the push and calls MarkSynced, or folds a remote snapshot back in
// through MergeFromRemote using the pending-wins-if-newer rule.
//
// Key Types
//
//   - type Repository: interface used by the reconciler and callers
//   - type CacheRepository: implementation over a localstore.Store
//
// Typical Usage
//
//	repo := entries.New(store)
//	e, _ := repo.Add(uid, &models.Entry{Title: "gym", Date: "2024-01-01"})
//	_, _ = repo.Update(uid, e.ID, models.Doc{"text": "leg day"})
//	list, _ := repo.List(uid)
//	pend, _ := repo.Pending(uid)
package entries
