// Package budgets provides the local persistence layer for monthly budgets.
// A budget's identity is its "2006-01" month, which doubles as the remote
// document id.
package budgets

import (
	"fmt"
	"time"

	"github.com/sapatrack/sapatrack/internal/common"
	"github.com/sapatrack/sapatrack/internal/localstore"
	"github.com/sapatrack/sapatrack/internal/models"
	"github.com/sapatrack/sapatrack/internal/repository"
)

const cacheName = "budgets"

// Repository describes CRUD and sync operations for monthly budgets.
type Repository interface {
	List(uid string) ([]*models.Budget, error)
	Get(uid, month string) (*models.Budget, error)

	// Put creates or replaces the budget for its month and tags it pending.
	// The createdAt of an existing budget is preserved.
	Put(uid string, b *models.Budget) (*models.Budget, error)

	MarkSynced(uid, month string) error
	UpsertFromRemote(uid string, d models.Doc) error
	Pending(uid string) ([]repository.Pending, error)
	MergeFromRemote(uid string, remote []models.Doc) error
}

// CacheRepository implements Repository over the local cache.
type CacheRepository struct {
	store localstore.Store
	now   func() time.Time
}

func New(store localstore.Store) *CacheRepository {
	return &CacheRepository{store: store, now: time.Now}
}

func (r *CacheRepository) load(uid string) ([]models.Doc, error) {
	return repository.LoadList(r.store, uid, cacheName)
}

func (r *CacheRepository) save(uid string, docs []models.Doc) error {
	return repository.SaveList(r.store, uid, cacheName, docs)
}

// localDoc is Budget.LocalDoc with the month doubled as the document id, so
// budgets fit the id-keyed collection machinery.
func localDoc(b *models.Budget) models.Doc {
	d := b.LocalDoc()
	d["id"] = b.Month
	return d
}

func (r *CacheRepository) List(uid string) ([]*models.Budget, error) {
	docs, err := r.load(uid)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Budget, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.BudgetFromDoc(docID(d), d))
	}
	return out, nil
}

func (r *CacheRepository) Get(uid, month string) (*models.Budget, error) {
	docs, err := r.load(uid)
	if err != nil {
		return nil, err
	}
	i := repository.Find(docs, month)
	if i < 0 {
		return nil, fmt.Errorf("budget %q: %w", month, common.ErrorNotFound)
	}
	return models.BudgetFromDoc(month, docs[i]), nil
}

func (r *CacheRepository) Put(uid string, b *models.Budget) (*models.Budget, error) {
	if b.Month == "" {
		return nil, fmt.Errorf("budget month must be set")
	}
	docs, err := r.load(uid)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	b.UpdatedAt = now
	b.SyncStatus = models.StatusPending

	if i := repository.Find(docs, b.Month); i >= 0 {
		if created := models.DocTime(docs[i], "createdAtISO", "createdAt"); !created.IsZero() {
			b.CreatedAt = created
		}
		docs[i] = localDoc(b)
	} else {
		b.CreatedAt = now
		docs = append(docs, localDoc(b))
	}

	if err := r.save(uid, docs); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *CacheRepository) MarkSynced(uid, month string) error {
	docs, err := r.load(uid)
	if err != nil {
		return err
	}
	i := repository.Find(docs, month)
	if i < 0 {
		return fmt.Errorf("budget %q: %w", month, common.ErrorNotFound)
	}
	docs[i]["syncStatus"] = string(models.StatusSynced)
	return r.save(uid, docs)
}

func (r *CacheRepository) UpsertFromRemote(uid string, d models.Doc) error {
	docs, err := r.load(uid)
	if err != nil {
		return err
	}
	nd := normalize(d)
	if i := repository.Find(docs, docID(nd)); i >= 0 {
		docs[i] = nd
	} else {
		docs = append(docs, nd)
	}
	return r.save(uid, docs)
}

func (r *CacheRepository) Pending(uid string) ([]repository.Pending, error) {
	docs, err := r.load(uid)
	if err != nil {
		return nil, err
	}
	var out []repository.Pending
	for _, d := range docs {
		if !repository.IsPending(d) {
			continue
		}
		b := models.BudgetFromDoc(docID(d), d)
		out = append(out, repository.Pending{
			ID:        b.Month,
			UpdatedAt: b.UpdatedAt,
			Doc:       b.RemoteDoc(),
		})
	}
	return out, nil
}

func (r *CacheRepository) MergeFromRemote(uid string, remote []models.Doc) error {
	docs, err := r.load(uid)
	if err != nil {
		return err
	}
	return r.save(uid, repository.Merge(docs, remote, normalize))
}

func docID(d models.Doc) string {
	s, _ := d["id"].(string)
	return s
}

func normalize(d models.Doc) models.Doc {
	b := models.BudgetFromDoc(docID(d), d)
	b.SyncStatus = models.StatusSynced
	return localDoc(b)
}
