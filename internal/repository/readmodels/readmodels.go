// Package readmodels caches the remote-owned collections (transactions,
// subscriptions, advisory notes) for offline reads.
//
// The remote copy is authoritative. The local cache exists to avoid offline
// gaps; merges follow the same pending-wins-if-newer rule as the user-owned
// entities so an optimistic local edit of a transaction is not clobbered by
// a stale snapshot before it is pushed.
package readmodels

import (
	"fmt"
	"time"

	"github.com/sapatrack/sapatrack/internal/common"
	"github.com/sapatrack/sapatrack/internal/localstore"
	"github.com/sapatrack/sapatrack/internal/models"
	"github.com/sapatrack/sapatrack/internal/repository"
)

const (
	txCacheName   = "transactions"
	subsCacheName = "subscriptions"
	noteCacheName = "notes"
)

// Repository describes the read-model caches.
type Repository interface {
	Transactions(uid string) ([]*models.Transaction, error)

	// UpdateTransaction applies an optimistic local edit (e.g. recategorize),
	// tagging the record pending until the next push confirms it.
	UpdateTransaction(uid, id string, patch models.Doc) (*models.Transaction, error)

	MarkTransactionSynced(uid, id string) error
	PendingTransactions(uid string) ([]repository.Pending, error)
	MergeTransactions(uid string, remote []models.Doc) error

	Subscriptions(uid string) ([]*models.Subscription, error)
	MergeSubscriptions(uid string, remote []models.Doc) error

	Notes(uid string) ([]*models.Note, error)
	MergeNotes(uid string, remote []models.Doc) error
}

// CacheRepository implements Repository over the local cache.
type CacheRepository struct {
	store localstore.Store
	now   func() time.Time
}

func New(store localstore.Store) *CacheRepository {
	return &CacheRepository{store: store, now: time.Now}
}

func (r *CacheRepository) Transactions(uid string) ([]*models.Transaction, error) {
	docs, err := repository.LoadList(r.store, uid, txCacheName)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Transaction, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.TransactionFromDoc(d))
	}
	return out, nil
}

func (r *CacheRepository) UpdateTransaction(uid, id string, patch models.Doc) (*models.Transaction, error) {
	docs, err := repository.LoadList(r.store, uid, txCacheName)
	if err != nil {
		return nil, err
	}
	i := repository.Find(docs, id)
	if i < 0 {
		return nil, fmt.Errorf("transaction %q: %w", id, common.ErrorNotFound)
	}

	d := docs[i]
	for k, v := range patch {
		d[k] = v
	}
	d["updatedAtISO"] = r.now().UTC().Format(time.RFC3339)
	if _, ok := patch["syncStatus"]; !ok {
		d["syncStatus"] = string(models.StatusPending)
	}

	if err := repository.SaveList(r.store, uid, txCacheName, docs); err != nil {
		return nil, err
	}
	return models.TransactionFromDoc(d), nil
}

func (r *CacheRepository) MarkTransactionSynced(uid, id string) error {
	docs, err := repository.LoadList(r.store, uid, txCacheName)
	if err != nil {
		return err
	}
	i := repository.Find(docs, id)
	if i < 0 {
		return fmt.Errorf("transaction %q: %w", id, common.ErrorNotFound)
	}
	docs[i]["syncStatus"] = string(models.StatusSynced)
	return repository.SaveList(r.store, uid, txCacheName, docs)
}

func (r *CacheRepository) PendingTransactions(uid string) ([]repository.Pending, error) {
	docs, err := repository.LoadList(r.store, uid, txCacheName)
	if err != nil {
		return nil, err
	}
	var out []repository.Pending
	for _, d := range docs {
		if !repository.IsPending(d) {
			continue
		}
		tx := models.TransactionFromDoc(d)
		doc := tx.LocalDoc()
		delete(doc, "id")
		delete(doc, "syncStatus")
		doc["updatedAt"] = models.ServerTimestamp
		out = append(out, repository.Pending{ID: tx.ID, UpdatedAt: tx.UpdatedAt, Doc: doc})
	}
	return out, nil
}

func (r *CacheRepository) MergeTransactions(uid string, remote []models.Doc) error {
	docs, err := repository.LoadList(r.store, uid, txCacheName)
	if err != nil {
		return err
	}
	merged := repository.Merge(docs, remote, func(d models.Doc) models.Doc {
		tx := models.TransactionFromDoc(d)
		tx.SyncStatus = models.StatusSynced
		return tx.LocalDoc()
	})
	return repository.SaveList(r.store, uid, txCacheName, merged)
}

func (r *CacheRepository) Subscriptions(uid string) ([]*models.Subscription, error) {
	docs, err := repository.LoadList(r.store, uid, subsCacheName)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Subscription, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.SubscriptionFromDoc(d))
	}
	return out, nil
}

func (r *CacheRepository) MergeSubscriptions(uid string, remote []models.Doc) error {
	docs, err := repository.LoadList(r.store, uid, subsCacheName)
	if err != nil {
		return err
	}
	merged := repository.Merge(docs, remote, func(d models.Doc) models.Doc {
		s := models.SubscriptionFromDoc(d)
		s.SyncStatus = models.StatusSynced
		return s.LocalDoc()
	})
	return repository.SaveList(r.store, uid, subsCacheName, merged)
}

func (r *CacheRepository) Notes(uid string) ([]*models.Note, error) {
	docs, err := repository.LoadList(r.store, uid, noteCacheName)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Note, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.NoteFromDoc(d))
	}
	return out, nil
}

func (r *CacheRepository) MergeNotes(uid string, remote []models.Doc) error {
	docs, err := repository.LoadList(r.store, uid, noteCacheName)
	if err != nil {
		return err
	}
	merged := repository.Merge(docs, remote, func(d models.Doc) models.Doc {
		n := models.NoteFromDoc(d)
		n.SyncStatus = models.StatusSynced
		return n.LocalDoc()
	})
	return repository.SaveList(r.store, uid, noteCacheName, merged)
}
