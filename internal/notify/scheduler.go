// Package notify gates recurring reminders so each fires at most once per
// recurrence bucket, and hands the survivors to the remote delivery queue.
//
// The gate reads the last recorded period key for (uid, dedupeKey) from the
// local cache. Recording happens after the enqueue, so a crash between the
// two can cause at most one duplicate per crash; duplicates here are a UX
// nuisance, not double-counted money, and the asymmetry keeps the gate a
// plain read-then-write.
package notify

import (
	"context"
	"errors"

	"github.com/sapatrack/sapatrack/internal/common"
	"github.com/sapatrack/sapatrack/internal/localstore"
	"github.com/sapatrack/sapatrack/internal/logging"
	"github.com/sapatrack/sapatrack/internal/models"
	"github.com/sapatrack/sapatrack/internal/remote"
)

// Notification is a reminder handed to the delivery queue.
type Notification struct {
	Area      string `json:"area"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Route     string `json:"route,omitempty"`
	DedupeKey string `json:"dedupeKey"`
	PeriodKey string `json:"periodKey"`
}

// Queue is the asynchronous delivery collaborator. Delivery outcome is not
// observed here.
type Queue interface {
	Enqueue(ctx context.Context, uid string, n Notification) error
}

// RemoteQueue queues notifications as documents under users/{uid}/pushQueue.
type RemoteQueue struct {
	store remote.Store
}

func NewRemoteQueue(store remote.Store) *RemoteQueue {
	return &RemoteQueue{store: store}
}

func (q *RemoteQueue) Enqueue(ctx context.Context, uid string, n Notification) error {
	_, err := q.store.Add(ctx, "users/"+uid+"/pushQueue", models.Doc{
		"area":      n.Area,
		"title":     n.Title,
		"body":      n.Body,
		"route":     n.Route,
		"dedupeKey": n.DedupeKey,
		"periodKey": n.PeriodKey,
		"status":    "pending",
		"createdAt": models.ServerTimestamp,
	})
	return err
}

// Scheduler is the at-most-once-per-period gate.
type Scheduler struct {
	store localstore.Store
	queue Queue
	log   logging.Logger
}

func NewScheduler(store localstore.Store, queue Queue, log logging.Logger) *Scheduler {
	return &Scheduler{store: store, queue: queue, log: log}
}

func slotName(dedupeKey string) string {
	return "push_sent_" + dedupeKey
}

// TryEnqueue enqueues n unless a notification with the same dedupe key was
// already sent for the same period. It reports whether the enqueue happened.
func (s *Scheduler) TryEnqueue(ctx context.Context, uid string, n Notification) bool {
	last, err := s.store.Read(uid, slotName(n.DedupeKey))
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.log.Warn(ctx, "reading dedup slot", "uid", uid, "dedupeKey", n.DedupeKey, "error", err)
	}
	if err == nil && last == n.PeriodKey {
		return false
	}

	if err := s.queue.Enqueue(ctx, uid, n); err != nil {
		// The slot stays untouched, so the next tick retries.
		s.log.Error(ctx, "enqueueing notification", "uid", uid, "dedupeKey", n.DedupeKey, "error", err)
		return false
	}

	// Recorded after the enqueue; a write failure merely risks one duplicate.
	if err := s.store.Write(uid, slotName(n.DedupeKey), n.PeriodKey); err != nil {
		s.log.Warn(ctx, "recording dedup slot", "uid", uid, "dedupeKey", n.DedupeKey, "error", err)
	}
	return true
}
