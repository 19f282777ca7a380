package notify

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sapatrack/sapatrack/internal/localstore"
	"github.com/sapatrack/sapatrack/internal/models"
	"github.com/sapatrack/sapatrack/internal/repository/loans"
	"github.com/sapatrack/sapatrack/internal/repository/readmodels"
)

func setupReminders(t *testing.T, now time.Time) (*Reminders, *recordingQueue, localstore.Store) {
	t.Helper()
	store := localstore.NewMemoryStore(0)
	q := &recordingQueue{}
	sched := NewScheduler(store, q, testLogger())
	r := NewReminders(readmodels.New(store), loans.New(store), sched, NewInbox(store))
	r.now = func() time.Time { return now }
	return r, q, store
}

func TestEvaluate_BillDueToday(t *testing.T) {
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	r, q, store := setupReminders(t, now)
	ctx := context.Background()

	rm := readmodels.New(store)
	require.NoError(t, rm.MergeSubscriptions("u1", []models.Doc{
		{"id": "s1", "name": "Netflix", "amount": 15.0, "dueDay": 5.0, "status": "active"},
		{"id": "s2", "name": "Gym", "amount": 30.0, "dueDay": 12.0, "status": "active"},
		{"id": "s3", "name": "Old mag", "amount": 5.0, "dueDay": 5.0, "status": "cancelled"},
	}))

	sent, err := r.Evaluate(ctx, "u1")
	require.NoError(t, err)
	// The due bill plus the weekly digest.
	assert.Equal(t, 2, sent)

	areas := map[string]Notification{}
	for _, n := range q.sent {
		areas[n.Area] = n
	}
	require.Contains(t, areas, "bills")
	assert.Equal(t, "bill_s1", areas["bills"].DedupeKey)
	assert.Equal(t, "2024-03-d05", areas["bills"].PeriodKey)
	require.Contains(t, areas, "digest")
}

func TestEvaluate_SecondTickSameDayIsSilent(t *testing.T) {
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	r, q, store := setupReminders(t, now)
	ctx := context.Background()

	lr := loans.New(store)
	_, err := lr.Add("u1", &models.Loan{
		Lender:    "coop bank",
		Principal: decimal.NewFromInt(1000),
		DueDay:    5,
	})
	require.NoError(t, err)

	sent, err := r.Evaluate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, sent) // loan reminder + digest

	sent, err = r.Evaluate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Len(t, q.sent, 2)
}

func TestEvaluate_ClosedLoanStaysQuiet(t *testing.T) {
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	r, q, store := setupReminders(t, now)
	ctx := context.Background()

	lr := loans.New(store)
	l, err := lr.Add("u1", &models.Loan{Principal: decimal.NewFromInt(100), DueDay: 5})
	require.NoError(t, err)
	_, err = lr.RecordPayment("u1", l.ID, decimal.NewFromInt(100), "2024-02-05")
	require.NoError(t, err)

	sent, err := r.Evaluate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, sent) // digest only
	require.Len(t, q.sent, 1)
	assert.Equal(t, "digest", q.sent[0].Area)
}

func TestEvaluate_DigestFiresOncePerWeek(t *testing.T) {
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	r, q, _ := setupReminders(t, now)
	ctx := context.Background()

	sent, err := r.Evaluate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	// Next day, same ISO week: quiet.
	r.now = func() time.Time { return now.AddDate(0, 0, 1) }
	sent, err = r.Evaluate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	// Next week: fires again.
	r.now = func() time.Time { return now.AddDate(0, 0, 7) }
	sent, err = r.Evaluate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Len(t, q.sent, 2)
}

func TestEvaluate_WritesInbox(t *testing.T) {
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	r, _, store := setupReminders(t, now)

	_, err := r.Evaluate(context.Background(), "u1")
	require.NoError(t, err)

	items, err := NewInbox(store).List("u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "weekly_digest", items[0].DedupeKey)
}
