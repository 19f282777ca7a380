package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sapatrack/sapatrack/internal/repository/loans"
	"github.com/sapatrack/sapatrack/internal/repository/readmodels"
)

// Reminders runs the mechanical reminder checks on each evaluation tick:
// bills and loan repayments due today, and the weekly digest. The scheduler
// gate makes repeated ticks within a period harmless.
type Reminders struct {
	subs  readmodels.Repository
	loans loans.Repository
	sched *Scheduler
	inbox *Inbox
	now   func() time.Time
}

func NewReminders(subs readmodels.Repository, lr loans.Repository, sched *Scheduler, inbox *Inbox) *Reminders {
	return &Reminders{subs: subs, loans: lr, sched: sched, inbox: inbox, now: time.Now}
}

// Evaluate checks every reminder area for uid and returns how many
// notifications were actually enqueued this tick.
func (r *Reminders) Evaluate(ctx context.Context, uid string) (int, error) {
	now := r.now().UTC()
	sent := 0

	subs, err := r.subs.Subscriptions(uid)
	if err != nil {
		return sent, fmt.Errorf("listing subscriptions: %w", err)
	}
	for _, s := range subs {
		if s.Status != "active" || s.DueDay != now.Day() {
			continue
		}
		sent += r.send(ctx, uid, Notification{
			Area:      "bills",
			Title:     "Bill due today",
			Body:      fmt.Sprintf("%s is due today.", s.Name),
			Route:     "/subscriptions",
			DedupeKey: "bill_" + s.ID,
			PeriodKey: MonthDay(now, s.DueDay),
		})
	}

	ls, err := r.loans.List(uid)
	if err != nil {
		return sent, fmt.Errorf("listing loans: %w", err)
	}
	for _, l := range ls {
		if l.Status != loans.StatusActive || l.DueDay != now.Day() {
			continue
		}
		sent += r.send(ctx, uid, Notification{
			Area:      "loans",
			Title:     "Loan repayment due",
			Body:      fmt.Sprintf("A repayment to %s is due today.", l.Lender),
			Route:     "/loans",
			DedupeKey: "loan_" + l.ID,
			PeriodKey: MonthDay(now, l.DueDay),
		})
	}

	sent += r.send(ctx, uid, Notification{
		Area:      "digest",
		Title:     "Your weekly summary",
		Body:      "Your spending summary for the week is ready.",
		Route:     "/dashboard",
		DedupeKey: "weekly_digest",
		PeriodKey: Week(now),
	})

	return sent, nil
}

func (r *Reminders) send(ctx context.Context, uid string, n Notification) int {
	if !r.sched.TryEnqueue(ctx, uid, n) {
		return 0
	}
	// Inbox persistence is advisory, like the rest of the local cache.
	_ = r.inbox.Append(uid, n)
	return 1
}
