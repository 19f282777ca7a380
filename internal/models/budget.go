package models

import "time"

// Budget is a monthly budget keyed by its "2006-01" month. Budget line items
// are opaque to the sync layer and live entirely in Extra; only identity,
// timestamps and sync state are interpreted here.
type Budget struct {
	Month      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	SyncStatus SyncStatus
	Extra      map[string]any
}

var budgetKeys = map[string]struct{}{
	"id": {}, "month": {},
	"createdAt": {}, "createdAtISO": {}, "updatedAt": {}, "updatedAtISO": {},
	"syncStatus": {},
}

func (b *Budget) LocalDoc() Doc {
	d := mergeExtra(Doc{}, b.Extra)
	d["month"] = b.Month
	d["createdAtISO"] = isoOrEmpty(b.CreatedAt)
	d["updatedAtISO"] = isoOrEmpty(b.UpdatedAt)
	d["syncStatus"] = string(b.SyncStatus)
	return d
}

func (b *Budget) RemoteDoc() Doc {
	d := mergeExtra(Doc{}, b.Extra)
	d["month"] = b.Month
	d["createdAt"] = b.CreatedAt.UTC()
	d["createdAtISO"] = isoOrEmpty(b.CreatedAt)
	d["updatedAt"] = ServerTimestamp
	d["updatedAtISO"] = isoOrEmpty(b.UpdatedAt)
	return d
}

func BudgetFromDoc(month string, d Doc) *Budget {
	if m := docString(d, "month"); m != "" {
		month = m
	}
	return &Budget{
		Month:      month,
		CreatedAt:  DocTime(d, "createdAtISO", "createdAt"),
		UpdatedAt:  UpdatedAtOf(d),
		SyncStatus: docStatus(d),
		Extra:      extraOf(d, budgetKeys),
	}
}

// MonthKey formats t as a budget month identifier.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
