package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanPayment is one repayment recorded against a loan.
type LoanPayment struct {
	ID        string
	Amount    decimal.Decimal
	Date      string
	CreatedAt time.Time
}

// Loan is a borrowed sum with a repayment schedule.
type Loan struct {
	ID         string
	Lender     string
	Principal  decimal.Decimal
	Balance    decimal.Decimal
	StartDate  string
	DueDay     int // day of month the repayment is due
	TermMonths int
	Status     string // "active" or "closed"
	Payments   []LoanPayment
	CreatedAt  time.Time
	UpdatedAt  time.Time
	SyncStatus SyncStatus
	Extra      map[string]any
}

var loanKeys = map[string]struct{}{
	"id": {}, "lender": {}, "principal": {}, "balance": {}, "startDate": {},
	"dueDay": {}, "termMonths": {}, "status": {}, "payments": {},
	"createdAt": {}, "createdAtISO": {}, "updatedAt": {}, "updatedAtISO": {},
	"syncStatus": {},
}

func (p LoanPayment) doc() Doc {
	return Doc{
		"id":           p.ID,
		"amount":       p.Amount.InexactFloat64(),
		"date":         p.Date,
		"createdAtISO": isoOrEmpty(p.CreatedAt),
	}
}

func paymentsDoc(payments []LoanPayment) []any {
	out := make([]any, 0, len(payments))
	for _, p := range payments {
		out = append(out, map[string]any(p.doc()))
	}
	return out
}

func paymentsFromDoc(d Doc) []LoanPayment {
	raw, ok := d["payments"].([]any)
	if !ok {
		return nil
	}
	out := make([]LoanPayment, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		pd := Doc(m)
		out = append(out, LoanPayment{
			ID:        docString(pd, "id"),
			Amount:    decimal.NewFromFloat(docFloat(pd, "amount")),
			Date:      docString(pd, "date"),
			CreatedAt: DocTime(pd, "createdAtISO", "createdAt"),
		})
	}
	return out
}

func (l *Loan) LocalDoc() Doc {
	d := l.RemoteDoc()
	d["id"] = l.ID
	d["syncStatus"] = string(l.SyncStatus)
	delete(d, "createdAt")
	delete(d, "updatedAt")
	return d
}

func (l *Loan) RemoteDoc() Doc {
	d := mergeExtra(Doc{}, l.Extra)
	d["lender"] = l.Lender
	d["principal"] = l.Principal.InexactFloat64()
	d["balance"] = l.Balance.InexactFloat64()
	d["startDate"] = l.StartDate
	d["dueDay"] = l.DueDay
	d["termMonths"] = l.TermMonths
	d["status"] = l.Status
	d["payments"] = paymentsDoc(l.Payments)
	d["createdAt"] = l.CreatedAt.UTC()
	d["createdAtISO"] = isoOrEmpty(l.CreatedAt)
	d["updatedAt"] = ServerTimestamp
	d["updatedAtISO"] = isoOrEmpty(l.UpdatedAt)
	return d
}

func LoanFromDoc(d Doc) *Loan {
	return &Loan{
		ID:         docString(d, "id"),
		Lender:     docString(d, "lender"),
		Principal:  decimal.NewFromFloat(docFloat(d, "principal")),
		Balance:    decimal.NewFromFloat(docFloat(d, "balance")),
		StartDate:  docString(d, "startDate"),
		DueDay:     docInt(d, "dueDay"),
		TermMonths: docInt(d, "termMonths"),
		Status:     docString(d, "status"),
		Payments:   paymentsFromDoc(d),
		CreatedAt:  DocTime(d, "createdAtISO", "createdAt"),
		UpdatedAt:  UpdatedAtOf(d),
		SyncStatus: docStatus(d),
		Extra:      extraOf(d, loanKeys),
	}
}
