package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sapatrack/sapatrack/internal/localstore"
	"github.com/sapatrack/sapatrack/internal/logging"
	"github.com/sapatrack/sapatrack/internal/remote"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type recordingQueue struct {
	sent []Notification
	fail bool
}

func (q *recordingQueue) Enqueue(_ context.Context, _ string, n Notification) error {
	if q.fail {
		return fmt.Errorf("queue unavailable")
	}
	q.sent = append(q.sent, n)
	return nil
}

func TestTryEnqueue_AtMostOncePerPeriod(t *testing.T) {
	q := &recordingQueue{}
	s := NewScheduler(localstore.NewMemoryStore(0), q, testLogger())
	ctx := context.Background()

	n := Notification{Area: "bills", DedupeKey: "bill_s1", PeriodKey: "2024-03-d05"}
	assert.True(t, s.TryEnqueue(ctx, "u1", n))
	assert.False(t, s.TryEnqueue(ctx, "u1", n))
	assert.Len(t, q.sent, 1)
}

func TestTryEnqueue_NewPeriodFiresAgain(t *testing.T) {
	q := &recordingQueue{}
	s := NewScheduler(localstore.NewMemoryStore(0), q, testLogger())
	ctx := context.Background()

	n := Notification{Area: "bills", DedupeKey: "bill_s1", PeriodKey: "2024-03-d05"}
	require.True(t, s.TryEnqueue(ctx, "u1", n))

	n.PeriodKey = "2024-04-d05"
	assert.True(t, s.TryEnqueue(ctx, "u1", n))
	assert.Len(t, q.sent, 2)
}

func TestTryEnqueue_PerUserSlots(t *testing.T) {
	q := &recordingQueue{}
	s := NewScheduler(localstore.NewMemoryStore(0), q, testLogger())
	ctx := context.Background()

	n := Notification{DedupeKey: "weekly_digest", PeriodKey: "2024-W09"}
	assert.True(t, s.TryEnqueue(ctx, "u1", n))
	assert.True(t, s.TryEnqueue(ctx, "u2", n))
}

func TestTryEnqueue_QueueFailureLeavesSlotOpen(t *testing.T) {
	q := &recordingQueue{fail: true}
	s := NewScheduler(localstore.NewMemoryStore(0), q, testLogger())
	ctx := context.Background()

	n := Notification{DedupeKey: "weekly_digest", PeriodKey: "2024-W09"}
	assert.False(t, s.TryEnqueue(ctx, "u1", n))

	// The next tick may retry the same period.
	q.fail = false
	assert.True(t, s.TryEnqueue(ctx, "u1", n))
}

func TestRemoteQueue_DocumentShape(t *testing.T) {
	rs := remote.NewMemoryStore()
	q := NewRemoteQueue(rs)
	ctx := context.Background()

	err := q.Enqueue(ctx, "u1", Notification{
		Area: "bills", Title: "Bill due today", DedupeKey: "bill_s1", PeriodKey: "2024-03-d05",
	})
	require.NoError(t, err)

	docs, err := rs.List(ctx, "users/u1/pushQueue", remote.Query{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "pending", docs[0]["status"])
	assert.Equal(t, "bill_s1", docs[0]["dedupeKey"])
	_, isTime := docs[0]["createdAt"].(time.Time)
	assert.True(t, isTime)
}

func TestPeriodKeys(t *testing.T) {
	assert.Equal(t, "2024-03-01", Day(time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-W09", Week(time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)))
	// ISO week-year rolls back across January 1st.
	assert.Equal(t, "2020-W53", Week(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-d05", MonthDay(time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), 5))
}

func TestInbox_CapsAtTwoHundred(t *testing.T) {
	inbox := NewInbox(localstore.NewMemoryStore(0))

	for i := 0; i < inboxCap+10; i++ {
		require.NoError(t, inbox.Append("u1", Notification{
			DedupeKey: fmt.Sprintf("k%d", i), PeriodKey: "p",
		}))
	}

	items, err := inbox.List("u1")
	require.NoError(t, err)
	assert.Len(t, items, inboxCap)
	// Newest first.
	assert.Equal(t, fmt.Sprintf("k%d", inboxCap+9), items[0].DedupeKey)
}
