// Package syncmeta stores the per-user reconciliation record: last
// successful sync and last error, surfaced in the sync status panel.
package syncmeta

import (
	"time"

	"github.com/sapatrack/sapatrack/internal/localstore"
)

const cacheName = "sync_meta"

// Meta is the persisted reconciliation record.
type Meta struct {
	LastSyncAt  time.Time `json:"lastSyncAt,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
	LastErrorAt time.Time `json:"lastErrorAt,omitempty"`
}

// Repository reads and writes the per-user sync record.
type Repository struct {
	store localstore.Store
}

func New(store localstore.Store) *Repository {
	return &Repository{store: store}
}

// Get returns the stored record, or a zero record when none exists.
func (r *Repository) Get(uid string) (Meta, error) {
	var m Meta
	if _, err := localstore.ReadJSON(r.store, uid, cacheName, &m); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// RecordSuccess stores a successful run, clearing any previous error.
func (r *Repository) RecordSuccess(uid string, at time.Time) error {
	return localstore.WriteJSON(r.store, uid, cacheName, Meta{LastSyncAt: at})
}

// RecordError stores the failure of the latest run, keeping the last
// successful sync time.
func (r *Repository) RecordError(uid, msg string, at time.Time) error {
	m, err := r.Get(uid)
	if err != nil {
		return err
	}
	m.LastError = msg
	m.LastErrorAt = at
	return localstore.WriteJSON(r.store, uid, cacheName, m)
}
