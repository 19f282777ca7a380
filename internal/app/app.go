// Package app initializes and runs the sync daemon. It wires the local
// cache, the chosen remote backend, the reconciler, the ingestion pipeline,
// and the reminder evaluator, and handles graceful shutdown.
package app

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/sapatrack/sapatrack/internal/common"
	"github.com/sapatrack/sapatrack/internal/config"
	"github.com/sapatrack/sapatrack/internal/ingest"
	"github.com/sapatrack/sapatrack/internal/localstore"
	"github.com/sapatrack/sapatrack/internal/logging"
	"github.com/sapatrack/sapatrack/internal/maintenance"
	"github.com/sapatrack/sapatrack/internal/notify"
	"github.com/sapatrack/sapatrack/internal/remote"
	"github.com/sapatrack/sapatrack/internal/remote/firestore"
	"github.com/sapatrack/sapatrack/internal/remote/postgres"
	"github.com/sapatrack/sapatrack/internal/repository/budgets"
	"github.com/sapatrack/sapatrack/internal/repository/entries"
	"github.com/sapatrack/sapatrack/internal/repository/loans"
	"github.com/sapatrack/sapatrack/internal/repository/readmodels"
	"github.com/sapatrack/sapatrack/internal/repository/syncmeta"
	"github.com/sapatrack/sapatrack/internal/syncer"
)

type App struct {
	cfg *config.Config
	log logging.Logger

	db        *sql.DB
	store     localstore.Store
	rec       *syncer.Reconciler
	pipeline  *ingest.Pipeline
	reminders *notify.Reminders
	maint     *maintenance.Service

	events  io.Reader
	closers []func() error
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := newLogger(cfg.LogBackend)
	if err != nil {
		return nil, err
	}

	if cfg.UserID == "" {
		return nil, fmt.Errorf("a user id is required")
	}

	db, err := sql.Open("sqlite", cfg.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("opening local cache db: %w", err)
	}
	if err := localstore.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating local cache db: %w", err)
	}
	store := localstore.NewSQLiteStore(db, cfg.CacheQuotaBytes)

	app := &App{
		cfg:    cfg,
		log:    logger,
		db:     db,
		store:  store,
		events: os.Stdin,
	}
	app.closers = append(app.closers, db.Close)

	rs, err := app.openRemote(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	e := entries.New(store)
	l := loans.New(store)
	b := budgets.New(store)
	rm := readmodels.New(store)

	app.rec = syncer.New(rs, syncmeta.New(store), syncer.Kinds(e, l, b, rm), logger)
	app.pipeline = ingest.New(rs, logger, cfg.SuppressionTTL)
	app.closers = append(app.closers, func() error { app.pipeline.Close(); return nil })

	sched := notify.NewScheduler(store, notify.NewRemoteQueue(rs), logger)
	app.reminders = notify.NewReminders(rm, l, sched, notify.NewInbox(store))

	snaps, err := app.openSnapshots(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.maint = maintenance.New(rs, store, snaps, logger)

	return app, nil
}

func newLogger(backend string) (logging.Logger, error) {
	switch backend {
	case config.LogSlog:
		return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil))), nil
	case config.LogZerolog, "":
		return logging.NewZerologLogger(
			zerolog.New(os.Stdout).With().Timestamp().Logger()), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}

func (app *App) openRemote(ctx context.Context) (remote.Store, error) {
	switch app.cfg.RemoteBackend {
	case config.BackendMemory:
		return remote.NewMemoryStore(), nil
	case config.BackendFirestore:
		fs, err := firestore.New(ctx, app.cfg.FirestoreProjectID)
		if err != nil {
			return nil, fmt.Errorf("firestore backend: %w", err)
		}
		app.closers = append(app.closers, fs.Close)
		return fs, nil
	case config.BackendPostgres:
		pg, err := postgres.New(app.cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres backend: %w", err)
		}
		app.closers = append(app.closers, pg.Close)
		db, err := sql.Open("pgx", app.cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres backend: %w", err)
		}
		defer db.Close()
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return nil, fmt.Errorf("postgres backend: %w", err)
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown remote backend %q", app.cfg.RemoteBackend)
	}
}

func (app *App) openSnapshots(ctx context.Context) (maintenance.SnapshotStore, error) {
	if app.cfg.S3Bucket == "" || app.cfg.S3AccessKey == "" {
		return nil, nil
	}
	return maintenance.NewS3Snapshots(ctx, maintenance.S3Options{
		Bucket:       app.cfg.S3Bucket,
		Region:       app.cfg.S3Region,
		BaseEndpoint: app.cfg.S3BaseEndpoint,
		AccessKey:    app.cfg.S3AccessKey,
		SecretKey:    app.cfg.S3SecretKey,
	})
}

// Run drives the daemon until the context is cancelled or a termination
// signal arrives. SIGHUP triggers an immediate reconciliation. Events
// arriving on stdin, one JSON object per line, are fed to the ingestion
// pipeline.
func (app *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	uid := app.cfg.UserID
	app.log.Info(ctx, "starting sync daemon",
		"uid", uid, "backend", app.cfg.RemoteBackend, "interval", app.cfg.SyncInterval)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	manual := make(chan os.Signal, 1)
	signal.Notify(manual, syscall.SIGHUP)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.readEvents(ctx, uid)
	}()

	app.tick(ctx, uid)

	ticker := time.NewTicker(app.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			app.closeEvents()
			wg.Wait()
			return
		case <-sigs:
			app.log.Info(ctx, "shutting down")
			cancel()
		case <-manual:
			app.log.Info(ctx, "manual sync requested")
			app.tick(ctx, uid)
		case <-ticker.C:
			app.tick(ctx, uid)
		}
	}
}

// tick runs one reconciliation followed by a reminder evaluation.
func (app *App) tick(ctx context.Context, uid string) {
	report, err := app.rec.Run(ctx, uid)
	switch {
	case errors.Is(err, common.ErrSyncInProgress):
		app.log.Debug(ctx, "sync already in flight")
		return
	case err != nil:
		app.log.Error(ctx, "sync run failed", "error", err)
		return
	}
	if len(report.Errors) > 0 {
		app.log.Warn(ctx, "sync finished with errors",
			"synced", report.Synced, "errors", report.Errors)
	}

	if sent, err := app.reminders.Evaluate(ctx, uid); err != nil {
		app.log.Error(ctx, "reminder evaluation failed", "error", err)
	} else if sent > 0 {
		app.log.Info(ctx, "reminders enqueued", "count", sent)
	}
}

// readEvents feeds NDJSON events into the ingestion pipeline until EOF or
// cancellation.
func (app *App) readEvents(ctx context.Context, uid string) {
	scanner := bufio.NewScanner(app.events)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev ingest.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			app.log.Debug(ctx, "dropping undecodable event", "error", err)
			continue
		}
		// Pipeline failures are terminal per event; it logs them itself.
		_, _ = app.pipeline.Process(ctx, uid, ev)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		app.log.Warn(ctx, "event feed closed", "error", err)
	}
}

// closeEvents unblocks a reader stuck in Scan, which has no cancellation
// path of its own. Without it shutdown would wait on stdin forever.
func (app *App) closeEvents() {
	if c, ok := app.events.(io.Closer); ok {
		_ = c.Close()
	}
}

// Maintenance exposes the destructive-operations service (used by the purge
// and reset subcommands).
func (app *App) Maintenance() *maintenance.Service {
	return app.maint
}

// Status reports the current sync state for the configured user.
func (app *App) Status() (syncer.Status, error) {
	return app.rec.Status(app.cfg.UserID)
}

// Close releases every resource in reverse construction order.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		_ = app.closers[i]()
	}
	app.closers = nil
}
