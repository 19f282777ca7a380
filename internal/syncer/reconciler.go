package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sapatrack/sapatrack/internal/common"
	"github.com/sapatrack/sapatrack/internal/logging"
	"github.com/sapatrack/sapatrack/internal/models"
	"github.com/sapatrack/sapatrack/internal/remote"
	"github.com/sapatrack/sapatrack/internal/repository/syncmeta"
)

// Report summarizes one reconciliation run.
type Report struct {
	Synced  int      // records pushed and confirmed
	Skipped int      // records abandoned to a newer remote copy
	Errors  []string // per-record failures, run continued past each
}

// Status is the sync state surfaced to the UI panel.
type Status struct {
	Running      bool
	PendingCount int
	LastSyncAt   time.Time
	LastError    string
	LastErrorAt  time.Time
}

// Reconciler pushes pending local records and pulls remote snapshots.
type Reconciler struct {
	remote remote.Store
	meta   *syncmeta.Repository
	kinds  []Kind
	log    logging.Logger
	now    func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

// New returns a Reconciler over the given kinds.
func New(store remote.Store, meta *syncmeta.Repository, kinds []Kind, log logging.Logger) *Reconciler {
	return &Reconciler{
		remote:  store,
		meta:    meta,
		kinds:   kinds,
		log:     log,
		now:     time.Now,
		running: make(map[string]bool),
	}
}

func docPath(uid, kind, id string) string {
	return "users/" + uid + "/" + kind + "/" + id
}

func collectionPath(uid, kind string) string {
	return "users/" + uid + "/" + kind
}

// Run executes one reconciliation for uid. A run already in flight for the
// same uid makes this call return common.ErrSyncInProgress immediately.
func (r *Reconciler) Run(ctx context.Context, uid string) (*Report, error) {
	r.mu.Lock()
	if r.running[uid] {
		r.mu.Unlock()
		return nil, common.ErrSyncInProgress
	}
	r.running[uid] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.running, uid)
		r.mu.Unlock()
	}()

	report := &Report{}
	var reportMu sync.Mutex

	var wg sync.WaitGroup
	for _, kind := range r.kinds {
		wg.Add(1)
		go func(kind Kind) {
			defer wg.Done()
			synced, skipped, errs := r.pushKind(ctx, uid, kind)
			reportMu.Lock()
			report.Synced += synced
			report.Skipped += skipped
			report.Errors = append(report.Errors, errs...)
			reportMu.Unlock()
		}(kind)
	}
	wg.Wait()

	for _, kind := range r.kinds {
		if err := r.pullKind(ctx, uid, kind); err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
	}

	now := r.now().UTC()
	if len(report.Errors) == 0 {
		if err := r.meta.RecordSuccess(uid, now); err != nil {
			r.log.Warn(ctx, "recording sync success", "uid", uid, "error", err)
		}
	} else {
		if err := r.meta.RecordError(uid, report.Errors[0], now); err != nil {
			r.log.Warn(ctx, "recording sync error", "uid", uid, "error", err)
		}
	}

	r.log.Info(ctx, "reconciliation finished",
		"uid", uid, "synced", report.Synced, "skipped", report.Skipped, "errors", len(report.Errors))
	return report, nil
}

// pushKind pushes one kind's pending records, strictly in order.
func (r *Reconciler) pushKind(ctx context.Context, uid string, kind Kind) (synced, skipped int, errs []string) {
	items, err := kind.Pending(uid)
	if err != nil {
		return 0, 0, []string{fmt.Sprintf("listing pending %s: %v", kind.Name(), err)}
	}

	for _, item := range items {
		path := docPath(uid, kind.Name(), item.ID)

		remoteDoc, err := r.remote.Get(ctx, path)
		switch {
		case err == nil && models.UpdatedAtOf(remoteDoc).After(item.UpdatedAt):
			// A concurrent writer already advanced this record past the local
			// edit. The push is abandoned, the local content kept as-is.
			if err := kind.MarkSynced(uid, item.ID); err != nil {
				errs = append(errs, fmt.Sprintf("%s %s: %v", kind.Name(), item.ID, err))
				continue
			}
			r.log.Debug(ctx, "push abandoned, remote is newer", "kind", kind.Name(), "id", item.ID)
			skipped++
			continue
		case err != nil && !errors.Is(err, common.ErrorNotFound):
			errs = append(errs, fmt.Sprintf("%s %s: %v", kind.Name(), item.ID, err))
			continue
		}

		if err := r.remote.Set(ctx, path, item.Doc); err != nil {
			errs = append(errs, fmt.Sprintf("%s %s: %v", kind.Name(), item.ID, err))
			continue
		}
		if err := kind.MarkSynced(uid, item.ID); err != nil {
			errs = append(errs, fmt.Sprintf("%s %s: %v", kind.Name(), item.ID, err))
			continue
		}
		synced++
	}
	return synced, skipped, errs
}

func (r *Reconciler) pullKind(ctx context.Context, uid string, kind Kind) error {
	docs, err := r.remote.List(ctx, collectionPath(uid, kind.Name()), remote.Query{})
	if err != nil {
		return fmt.Errorf("pulling %s: %w", kind.Name(), err)
	}
	if err := kind.Merge(uid, docs); err != nil {
		return fmt.Errorf("merging %s: %w", kind.Name(), err)
	}
	return nil
}

// Status reports the current sync state for uid.
func (r *Reconciler) Status(uid string) (Status, error) {
	r.mu.Lock()
	running := r.running[uid]
	r.mu.Unlock()

	m, err := r.meta.Get(uid)
	if err != nil {
		return Status{}, err
	}

	pending := 0
	for _, kind := range r.kinds {
		items, err := kind.Pending(uid)
		if err != nil {
			return Status{}, err
		}
		pending += len(items)
	}

	return Status{
		Running:      running,
		PendingCount: pending,
		LastSyncAt:   m.LastSyncAt,
		LastError:    m.LastError,
		LastErrorAt:  m.LastErrorAt,
	}, nil
}
