// Package repository holds the pieces shared by the typed entity stores
// layered on the local cache: collection load/save helpers and the merge rule
// applied when remote snapshots are folded into local state.
//
// Collections are persisted as JSON arrays of documents under one cache key
// per kind. Persistence is advisory: a quota overflow is swallowed here so
// the current operation still completes against in-memory state, matching
// the availability-over-durability stance of the cache layer.
package repository

import (
	"errors"
	"time"

	"github.com/sapatrack/sapatrack/internal/common"
	"github.com/sapatrack/sapatrack/internal/localstore"
	"github.com/sapatrack/sapatrack/internal/models"
)

// Pending describes one locally modified record awaiting push: its identity,
// the conflict-resolution timestamp, and the merge-write payload.
type Pending struct {
	ID        string
	UpdatedAt time.Time
	Doc       models.Doc
}

// LoadList reads the document collection stored under (uid, name). A missing
// key yields an empty collection.
func LoadList(s localstore.Store, uid, name string) ([]models.Doc, error) {
	var docs []models.Doc
	if _, err := localstore.ReadJSON(s, uid, name, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// SaveList writes the collection back. Quota overflow is absorbed: the
// caller's in-memory result stays valid for the session even when the cache
// could not keep it.
func SaveList(s localstore.Store, uid, name string, docs []models.Doc) error {
	err := localstore.WriteJSON(s, uid, name, docs)
	if errors.Is(err, common.ErrQuotaExceeded) {
		return nil
	}
	return err
}

// Find returns the index of the document whose "id" equals id, or -1.
func Find(docs []models.Doc, id string) int {
	for i, d := range docs {
		if s, _ := d["id"].(string); s == id {
			return i
		}
	}
	return -1
}

// IsPending reports whether a stored document is tagged pending.
func IsPending(d models.Doc) bool {
	s, _ := d["syncStatus"].(string)
	return s == string(models.StatusPending)
}

// Merge folds a remote snapshot into the local collection.
//
// For each remote document: absent locally, it is inserted as synced; present
// locally with a pending edit whose updatedAt is strictly after the remote
// one, the local copy is kept (an unpushed local edit beats a stale remote
// value); otherwise the remote copy wins and lands as synced. normalize
// converts a remote document into the local cache shape.
//
// Applying the same snapshot twice is a no-op the second time.
func Merge(local, remote []models.Doc, normalize func(models.Doc) models.Doc) []models.Doc {
	byID := make(map[string]int, len(local))
	for i, d := range local {
		if id, _ := d["id"].(string); id != "" {
			byID[id] = i
		}
	}

	out := local
	for _, rd := range remote {
		id, _ := rd["id"].(string)
		if id == "" {
			continue
		}
		i, ok := byID[id]
		if !ok {
			out = append(out, normalize(rd))
			byID[id] = len(out) - 1
			continue
		}
		if IsPending(out[i]) && models.UpdatedAtOf(out[i]).After(models.UpdatedAtOf(rd)) {
			continue
		}
		out[i] = normalize(rd)
	}
	return out
}
