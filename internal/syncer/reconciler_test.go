package syncer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sapatrack/sapatrack/internal/common"
	"github.com/sapatrack/sapatrack/internal/localstore"
	"github.com/sapatrack/sapatrack/internal/logging"
	"github.com/sapatrack/sapatrack/internal/models"
	"github.com/sapatrack/sapatrack/internal/remote"
	"github.com/sapatrack/sapatrack/internal/repository/budgets"
	"github.com/sapatrack/sapatrack/internal/repository/entries"
	"github.com/sapatrack/sapatrack/internal/repository/loans"
	"github.com/sapatrack/sapatrack/internal/repository/readmodels"
	"github.com/sapatrack/sapatrack/internal/repository/syncmeta"
)

type fixture struct {
	store   localstore.Store
	remote  *remote.MemoryStore
	entries *entries.CacheRepository
	rec     *Reconciler
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := localstore.NewMemoryStore(0)
	rs := remote.NewMemoryStore()
	e := entries.New(store)
	kinds := Kinds(e, loans.New(store), budgets.New(store), readmodels.New(store))
	rec := New(rs, syncmeta.New(store), kinds, testLogger())
	return &fixture{store: store, remote: rs, entries: e, rec: rec}
}

func TestRun_PushesPendingEntry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	e, err := f.entries.Add("u1", &models.Entry{ID: "e1", Text: "gym"})
	require.NoError(t, err)

	report, err := f.rec.Run(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	assert.Empty(t, report.Errors)

	doc, err := f.remote.Get(ctx, "users/u1/entries/e1")
	require.NoError(t, err)
	assert.Equal(t, "gym", doc["text"])
	// The server assigned the authoritative timestamp.
	_, isTime := doc["updatedAt"].(time.Time)
	assert.True(t, isTime)

	list, err := f.entries.List("u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, e.ID, list[0].ID)
	assert.Equal(t, models.StatusSynced, list[0].SyncStatus)
}

func TestRun_RemoteWinsOnProvableStaleness(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	e, err := f.entries.Add("u1", &models.Entry{ID: "e1", Text: "local edit"})
	require.NoError(t, err)

	// A concurrent writer advanced the remote copy past the local edit.
	require.NoError(t, f.remote.Set(ctx, "users/u1/entries/e1", models.Doc{
		"text":         "remote edit",
		"updatedAtISO": e.UpdatedAt.Add(time.Hour).Format(time.RFC3339),
	}))

	report, err := f.rec.Run(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Synced)

	// The push was abandoned: the remote copy is untouched.
	doc, err := f.remote.Get(ctx, "users/u1/entries/e1")
	require.NoError(t, err)
	assert.Equal(t, "remote edit", doc["text"])

	// Pull then folds the newer remote copy in, so local converges to it.
	list, err := f.entries.List("u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusSynced, list[0].SyncStatus)
}

func TestRun_SkipKeepsLocalContentBeforePull(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	e, err := f.entries.Add("u1", &models.Entry{ID: "e1", Text: "local edit"})
	require.NoError(t, err)
	require.NoError(t, f.remote.Set(ctx, "users/u1/entries/e1", models.Doc{
		"text":         "remote edit",
		"updatedAtISO": e.UpdatedAt.Add(time.Hour).Format(time.RFC3339),
	}))

	// Exercise the push phase alone: only the sync intent is dropped, the
	// local fields stay.
	var kind Kind
	for _, k := range f.rec.kinds {
		if k.Name() == "entries" {
			kind = k
		}
	}
	synced, skipped, errs := f.rec.pushKind(ctx, "u1", kind)
	assert.Equal(t, 0, synced)
	assert.Equal(t, 1, skipped)
	assert.Empty(t, errs)

	list, err := f.entries.List("u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "local edit", list[0].Text)
	assert.Equal(t, models.StatusSynced, list[0].SyncStatus)
}

func TestRun_PullMergesRemoteCollections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.remote.Set(ctx, "users/u1/entries/r1", models.Doc{
		"title": "from another device", "updatedAtISO": "2024-02-01T00:00:00Z",
	}))
	require.NoError(t, f.remote.Set(ctx, "users/u1/transactions/t1", models.Doc{
		"type": "expense", "amount": 40.0, "updatedAtISO": "2024-02-01T00:00:00Z",
	}))

	_, err := f.rec.Run(ctx, "u1")
	require.NoError(t, err)

	list, err := f.entries.List("u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "from another device", list[0].Title)

	rm := readmodels.New(f.store)
	txs, err := rm.Transactions("u1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
}

type gatedStore struct {
	*remote.MemoryStore
	enter chan struct{}
	exit  chan struct{}
	once  sync.Once
}

func (g *gatedStore) List(ctx context.Context, collection string, q remote.Query) ([]models.Doc, error) {
	g.once.Do(func() {
		close(g.enter)
		<-g.exit
	})
	return g.MemoryStore.List(ctx, collection, q)
}

func TestRun_SecondTriggerNoOpsWhileInFlight(t *testing.T) {
	store := localstore.NewMemoryStore(0)
	gs := &gatedStore{
		MemoryStore: remote.NewMemoryStore(),
		enter:       make(chan struct{}),
		exit:        make(chan struct{}),
	}
	e := entries.New(store)
	kinds := Kinds(e, loans.New(store), budgets.New(store), readmodels.New(store))
	rec := New(gs, syncmeta.New(store), kinds, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := rec.Run(context.Background(), "u1")
		done <- err
	}()

	<-gs.enter
	_, err := rec.Run(context.Background(), "u1")
	assert.ErrorIs(t, err, common.ErrSyncInProgress)

	// A different user is not blocked.
	_, err = rec.Run(context.Background(), "u2")
	require.NoError(t, err)

	close(gs.exit)
	require.NoError(t, <-done)
}

type failingStore struct {
	*remote.MemoryStore
	failPath string
}

func (f *failingStore) Set(ctx context.Context, path string, doc models.Doc) error {
	if path == f.failPath {
		return fmt.Errorf("network down")
	}
	return f.MemoryStore.Set(ctx, path, doc)
}

func TestRun_OneFailureDoesNotBlockOthers(t *testing.T) {
	store := localstore.NewMemoryStore(0)
	fs := &failingStore{MemoryStore: remote.NewMemoryStore(), failPath: "users/u1/entries/bad"}
	e := entries.New(store)
	meta := syncmeta.New(store)
	kinds := Kinds(e, loans.New(store), budgets.New(store), readmodels.New(store))
	rec := New(fs, meta, kinds, testLogger())
	ctx := context.Background()

	_, err := e.Add("u1", &models.Entry{ID: "bad", Text: "x"})
	require.NoError(t, err)
	_, err = e.Add("u1", &models.Entry{ID: "good", Text: "y"})
	require.NoError(t, err)

	report, err := rec.Run(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "network down")

	// The failure lands in the sync record, the success is still confirmed.
	m, err := meta.Get("u1")
	require.NoError(t, err)
	assert.Contains(t, m.LastError, "network down")

	list, err := e.List("u1")
	require.NoError(t, err)
	statuses := map[string]models.SyncStatus{}
	for _, it := range list {
		statuses[it.ID] = it.SyncStatus
	}
	assert.Equal(t, models.StatusSynced, statuses["good"])
	assert.Equal(t, models.StatusPending, statuses["bad"])
}

func TestStatus_CountsPendingAndReportsMeta(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.entries.Add("u1", &models.Entry{Text: "a"})
	require.NoError(t, err)
	_, err = f.entries.Add("u1", &models.Entry{Text: "b"})
	require.NoError(t, err)

	st, err := f.rec.Status("u1")
	require.NoError(t, err)
	assert.Equal(t, 2, st.PendingCount)
	assert.False(t, st.Running)
	assert.True(t, st.LastSyncAt.IsZero())

	_, err = f.rec.Run(ctx, "u1")
	require.NoError(t, err)

	st, err = f.rec.Status("u1")
	require.NoError(t, err)
	assert.Equal(t, 0, st.PendingCount)
	assert.False(t, st.LastSyncAt.IsZero())
	assert.Empty(t, st.LastError)
}

func TestRun_ErrorsSliceEmptyOnCleanRun(t *testing.T) {
	f := setup(t)

	report, err := f.rec.Run(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 0, report.Synced)
}
