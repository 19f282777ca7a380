// Package loans provides the local persistence layer for loans and their
// repayments. Same cache-collection design as the entries package; the extra
// operation is RecordPayment, which appends a repayment, reduces the balance,
// and closes the loan once it reaches zero.
package loans

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sapatrack/sapatrack/internal/common"
	"github.com/sapatrack/sapatrack/internal/localstore"
	"github.com/sapatrack/sapatrack/internal/models"
	"github.com/sapatrack/sapatrack/internal/repository"
)

const cacheName = "loans"

// Loan lifecycle states.
const (
	StatusActive = "active"
	StatusClosed = "closed"
)

// Repository describes CRUD and sync operations for loans.
type Repository interface {
	List(uid string) ([]*models.Loan, error)
	Get(uid, id string) (*models.Loan, error)
	Add(uid string, l *models.Loan) (*models.Loan, error)
	Update(uid, id string, patch models.Doc) (*models.Loan, error)

	// RecordPayment appends a repayment and reduces the balance. The loan is
	// closed when the balance reaches zero. Tags the loan pending.
	RecordPayment(uid, id string, amount decimal.Decimal, date string) (*models.Loan, error)

	MarkSynced(uid, id string) error
	UpsertFromRemote(uid string, d models.Doc) error
	Pending(uid string) ([]repository.Pending, error)
	MergeFromRemote(uid string, remote []models.Doc) error
}

// CacheRepository implements Repository over the local cache.
type CacheRepository struct {
	store localstore.Store
	now   func() time.Time
	newID func() string
}

func New(store localstore.Store) *CacheRepository {
	return &CacheRepository{store: store, now: time.Now, newID: uuid.NewString}
}

func (r *CacheRepository) load(uid string) ([]models.Doc, error) {
	return repository.LoadList(r.store, uid, cacheName)
}

func (r *CacheRepository) save(uid string, docs []models.Doc) error {
	return repository.SaveList(r.store, uid, cacheName, docs)
}

func (r *CacheRepository) List(uid string) ([]*models.Loan, error) {
	docs, err := r.load(uid)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Loan, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.LoanFromDoc(d))
	}
	return out, nil
}

func (r *CacheRepository) Get(uid, id string) (*models.Loan, error) {
	docs, err := r.load(uid)
	if err != nil {
		return nil, err
	}
	i := repository.Find(docs, id)
	if i < 0 {
		return nil, fmt.Errorf("loan %q: %w", id, common.ErrorNotFound)
	}
	return models.LoanFromDoc(docs[i]), nil
}

func (r *CacheRepository) Add(uid string, l *models.Loan) (*models.Loan, error) {
	docs, err := r.load(uid)
	if err != nil {
		return nil, err
	}

	if l.ID == "" {
		l.ID = r.newID()
	}
	if repository.Find(docs, l.ID) >= 0 {
		return nil, fmt.Errorf("loan %q: %w", l.ID, common.ErrAlreadyExists)
	}
	now := r.now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	l.SyncStatus = models.StatusPending
	if l.Status == "" {
		l.Status = StatusActive
	}
	if l.Balance.IsZero() && !l.Principal.IsZero() {
		l.Balance = l.Principal
	}

	if err := r.save(uid, append(docs, l.LocalDoc())); err != nil {
		return nil, err
	}
	return l, nil
}

func (r *CacheRepository) Update(uid, id string, patch models.Doc) (*models.Loan, error) {
	docs, err := r.load(uid)
	if err != nil {
		return nil, err
	}
	i := repository.Find(docs, id)
	if i < 0 {
		return nil, fmt.Errorf("loan %q: %w", id, common.ErrorNotFound)
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
	return models.LoanFromDoc(d), nil
}

func (r *CacheRepository) RecordPayment(uid, id string, amount decimal.Decimal, date string) (*models.Loan, error) {
	docs, err := r.load(uid)
	if err != nil {
		return nil, err
	}
	i := repository.Find(docs, id)
	if i < 0 {
		return nil, fmt.Errorf("loan %q: %w", id, common.ErrorNotFound)
	}

	l := models.LoanFromDoc(docs[i])
	now := r.now().UTC()
	l.Payments = append(l.Payments, models.LoanPayment{
		ID:        r.newID(),
		Amount:    amount,
		Date:      date,
		CreatedAt: now,
	})
	l.Balance = l.Balance.Sub(amount)
	if l.Balance.LessThanOrEqual(decimal.Zero) {
		l.Balance = decimal.Zero
		l.Status = StatusClosed
	}
	l.UpdatedAt = now
	l.SyncStatus = models.StatusPending

	docs[i] = l.LocalDoc()
	if err := r.save(uid, docs); err != nil {
		return nil, err
	}
	return l, nil
}

func (r *CacheRepository) MarkSynced(uid, id string) error {
	docs, err := r.load(uid)
	if err != nil {
		return err
	}
	i := repository.Find(docs, id)
	if i < 0 {
		return fmt.Errorf("loan %q: %w", id, common.ErrorNotFound)
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
		l := models.LoanFromDoc(d)
		out = append(out, repository.Pending{
			ID:        l.ID,
			UpdatedAt: l.UpdatedAt,
			Doc:       l.RemoteDoc(),
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

func normalize(d models.Doc) models.Doc {
	l := models.LoanFromDoc(d)
	l.SyncStatus = models.StatusSynced
	return l.LocalDoc()
}
