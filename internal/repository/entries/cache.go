package entries

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sapatrack/sapatrack/internal/common"
	"github.com/sapatrack/sapatrack/internal/localstore"
	"github.com/sapatrack/sapatrack/internal/models"
	"github.com/sapatrack/sapatrack/internal/repository"
)

const cacheName = "entries"

// CacheRepository implements Repository over the local cache.
type CacheRepository struct {
	store localstore.Store
	now   func() time.Time
	newID func() string
}

// New returns a CacheRepository bound to the given store.
func New(store localstore.Store) *CacheRepository {
	return &CacheRepository{store: store, now: time.Now, newID: uuid.NewString}
}

func (r *CacheRepository) load(uid string) ([]models.Doc, error) {
	return repository.LoadList(r.store, uid, cacheName)
}

func (r *CacheRepository) save(uid string, docs []models.Doc) error {
	return repository.SaveList(r.store, uid, cacheName, docs)
}

func (r *CacheRepository) List(uid string) ([]*models.Entry, error) {
	docs, err := r.load(uid)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Entry, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.EntryFromDoc(d))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *CacheRepository) Recent(uid string, n int) ([]*models.Entry, error) {
	all, err := r.List(uid)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (r *CacheRepository) Add(uid string, e *models.Entry) (*models.Entry, error) {
	docs, err := r.load(uid)
	if err != nil {
		return nil, err
	}

	if e.ID == "" {
		e.ID = r.newID()
	}
	if repository.Find(docs, e.ID) >= 0 {
		return nil, fmt.Errorf("entry %q: %w", e.ID, common.ErrAlreadyExists)
	}
	now := r.now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.SyncStatus = models.StatusPending

	if err := r.save(uid, append(docs, e.LocalDoc())); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *CacheRepository) Update(uid, id string, patch models.Doc) (*models.Entry, error) {
	docs, err := r.load(uid)
	if err != nil {
		return nil, err
	}
	i := repository.Find(docs, id)
	if i < 0 {
		return nil, fmt.Errorf("entry %q: %w", id, common.ErrorNotFound)
	}

	d := docs[i]
	for k, v := range patch {
		d[k] = v
	}
	d["updatedAtISO"] = r.now().UTC().Format(time.RFC3339)
	if _, ok := patch["syncStatus"]; !ok {
		d["syncStatus"] = string(models.StatusPending)
	}

	if err := r.save(uid, docs); err != nil {
		return nil, err
	}
	return models.EntryFromDoc(d), nil
}

func (r *CacheRepository) MarkSynced(uid, id string) error {
	docs, err := r.load(uid)
	if err != nil {
		return err
	}
	i := repository.Find(docs, id)
	if i < 0 {
		return fmt.Errorf("entry %q: %w", id, common.ErrorNotFound)
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
	id, _ := nd["id"].(string)
	if i := repository.Find(docs, id); i >= 0 {
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
		e := models.EntryFromDoc(d)
		out = append(out, repository.Pending{
			ID:        e.ID,
			UpdatedAt: e.UpdatedAt,
			Doc:       e.RemoteDoc(),
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

// normalize converts a remote entry document into the synced local shape.
func normalize(d models.Doc) models.Doc {
	e := models.EntryFromDoc(d)
	e.SyncStatus = models.StatusSynced
	return e.LocalDoc()
}
