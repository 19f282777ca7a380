// Package maintenance implements the destructive data operations: chunked
// purge of a user's remote collections, local cache clearing, and full
// profile reset. A JSON snapshot of the remote data is exported to object
// storage before anything is deleted.
package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sapatrack/sapatrack/internal/localstore"
	"github.com/sapatrack/sapatrack/internal/logging"
	"github.com/sapatrack/sapatrack/internal/models"
	"github.com/sapatrack/sapatrack/internal/remote"
)

// chunkSize bounds how many documents one purge pass deletes per
// collection, keeping each round trip small.
const chunkSize = 400

// purgeCollections are the per-user collections removed by a purge, in
// deletion order.
var purgeCollections = []string{
	"transactions",
	"entries",
	"budgets",
	"loans",
	"subscriptions",
	"notes",
	"sms_import_keys",
	"pushQueue",
}

// SnapshotStore receives the pre-purge export. Implemented by S3Snapshots;
// tests use a fake.
type SnapshotStore interface {
	Put(ctx context.Context, key string, body []byte) error
}

// Result reports what a maintenance operation removed.
type Result struct {
	RemovedRemote    int
	ClearedLocalKeys int
	SnapshotKey      string
}

// Service runs maintenance operations for one remote store and local cache.
type Service struct {
	remote remote.Store
	local  localstore.Store
	snaps  SnapshotStore // nil disables the pre-purge export
	log    logging.Logger
	now    func() time.Time
}

func New(rs remote.Store, local localstore.Store, snaps SnapshotStore, log logging.Logger) *Service {
	return &Service{remote: rs, local: local, snaps: snaps, log: log, now: time.Now}
}

// Snapshot exports every purgeable collection of uid as one JSON object and
// returns the storage key it was written under.
func (s *Service) Snapshot(ctx context.Context, uid string) (string, error) {
	if s.snaps == nil {
		return "", nil
	}

	export := make(map[string][]models.Doc, len(purgeCollections))
	for _, name := range purgeCollections {
		docs, err := s.remote.List(ctx, "users/"+uid+"/"+name, remote.Query{})
		if err != nil {
			return "", fmt.Errorf("snapshotting %s: %w", name, err)
		}
		export[name] = docs
	}

	body, err := json.Marshal(export)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}

	key := fmt.Sprintf("snapshots/%s/%s.json", uid, s.now().UTC().Format("20060102T150405Z"))
	if err := s.snaps.Put(ctx, key, body); err != nil {
		return "", fmt.Errorf("uploading snapshot: %w", err)
	}
	s.log.Info(ctx, "snapshot exported", "uid", uid, "key", key)
	return key, nil
}

// PurgeRemote snapshots and then deletes all of uid's remote data, chunk by
// chunk. Loan payment subcollections are removed before their parent loans.
func (s *Service) PurgeRemote(ctx context.Context, uid string) (Result, error) {
	key, err := s.Snapshot(ctx, uid)
	if err != nil {
		return Result{}, err
	}
	res := Result{SnapshotKey: key}

	for _, name := range purgeCollections {
		collection := "users/" + uid + "/" + name
		for {
			docs, err := s.remote.List(ctx, collection, remote.Query{Limit: chunkSize})
			if err != nil {
				return res, fmt.Errorf("purging %s: %w", name, err)
			}
			if len(docs) == 0 {
				break
			}
			for _, d := range docs {
				id, _ := d["id"].(string)
				if name == "loans" {
					n, err := s.purgeSubcollection(ctx, collection+"/"+id+"/payments")
					if err != nil {
						return res, err
					}
					res.RemovedRemote += n
				}
				if err := s.remote.Delete(ctx, collection+"/"+id); err != nil {
					return res, fmt.Errorf("deleting %s/%s: %w", name, id, err)
				}
				res.RemovedRemote++
			}
			if len(docs) < chunkSize {
				break
			}
		}
	}

	s.log.Info(ctx, "remote purge finished", "uid", uid, "removed", res.RemovedRemote)
	return res, nil
}

func (s *Service) purgeSubcollection(ctx context.Context, collection string) (int, error) {
	removed := 0
	for {
		docs, err := s.remote.List(ctx, collection, remote.Query{Limit: chunkSize})
		if err != nil {
			return removed, fmt.Errorf("purging %s: %w", collection, err)
		}
		if len(docs) == 0 {
			return removed, nil
		}
		for _, d := range docs {
			id, _ := d["id"].(string)
			if err := s.remote.Delete(ctx, collection+"/"+id); err != nil {
				return removed, fmt.Errorf("deleting %s/%s: %w", collection, id, err)
			}
			removed++
		}
		if len(docs) < chunkSize {
			return removed, nil
		}
	}
}

// ClearLocal removes every local cache key owned by uid, including dedup
// slots and legacy-variant keys, and reports the count.
func (s *Service) ClearLocal(ctx context.Context, uid string) (int, error) {
	n, err := s.local.ClearUser(uid)
	if err != nil {
		return 0, fmt.Errorf("clearing local cache: %w", err)
	}
	s.log.Info(ctx, "local cache cleared", "uid", uid, "keys", n)
	return n, nil
}

// ResetProfile wipes uid everywhere: remote collections, the profile
// document, and the local cache.
func (s *Service) ResetProfile(ctx context.Context, uid string) (Result, error) {
	res, err := s.PurgeRemote(ctx, uid)
	if err != nil {
		return res, err
	}
	if err := s.remote.Delete(ctx, "users/"+uid); err != nil {
		return res, fmt.Errorf("deleting profile: %w", err)
	}
	res.RemovedRemote++

	cleared, err := s.ClearLocal(ctx, uid)
	if err != nil {
		return res, err
	}
	res.ClearedLocalKeys = cleared
	return res, nil
}
