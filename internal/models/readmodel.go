package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction direction values.
const (
	TxIncome  = "income"
	TxExpense = "expense"
)

// Transaction is a money movement. Remote-owned: the local copy is a cached
// read model, except for optimistic edits that carry StatusPending until the
// next merge.
type Transaction struct {
	ID           string
	Type         string // TxIncome or TxExpense
	Amount       decimal.Decimal
	CategoryID   string
	CategoryName string
	Note         string
	Date         string
	Provider     string
	Reference    string
	Sender       string
	Source       string
	RawSMS       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	SyncStatus   SyncStatus
	Extra        map[string]any
}

var transactionKeys = map[string]struct{}{
	"id": {}, "type": {}, "amount": {}, "categoryId": {}, "categoryName": {},
	"note": {}, "date": {}, "provider": {}, "reference": {}, "sender": {},
	"source": {}, "rawSms": {},
	"createdAt": {}, "createdAtISO": {}, "updatedAt": {}, "updatedAtISO": {},
	"syncStatus": {},
}

func (t *Transaction) LocalDoc() Doc {
	d := mergeExtra(Doc{}, t.Extra)
	d["id"] = t.ID
	d["type"] = t.Type
	d["amount"] = t.Amount.InexactFloat64()
	d["categoryId"] = t.CategoryID
	d["categoryName"] = t.CategoryName
	d["note"] = t.Note
	d["date"] = t.Date
	if t.Provider != "" {
		d["provider"] = t.Provider
	}
	if t.Reference != "" {
		d["reference"] = t.Reference
	}
	if t.Sender != "" {
		d["sender"] = t.Sender
	}
	if t.Source != "" {
		d["source"] = t.Source
	}
	if t.RawSMS != "" {
		d["rawSms"] = t.RawSMS
	}
	d["createdAtISO"] = isoOrEmpty(t.CreatedAt)
	d["updatedAtISO"] = isoOrEmpty(t.UpdatedAt)
	d["syncStatus"] = string(t.SyncStatus)
	return d
}

func TransactionFromDoc(d Doc) *Transaction {
	return &Transaction{
		ID:           docString(d, "id"),
		Type:         docString(d, "type"),
		Amount:       decimal.NewFromFloat(docFloat(d, "amount")),
		CategoryID:   docString(d, "categoryId"),
		CategoryName: docString(d, "categoryName"),
		Note:         docString(d, "note"),
		Date:         docString(d, "date"),
		Provider:     docString(d, "provider"),
		Reference:    docString(d, "reference"),
		Sender:       docString(d, "sender"),
		Source:       docString(d, "source"),
		RawSMS:       docString(d, "rawSms"),
		CreatedAt:    DocTime(d, "createdAtISO", "createdAt"),
		UpdatedAt:    UpdatedAtOf(d),
		SyncStatus:   docStatus(d),
		Extra:        extraOf(d, transactionKeys),
	}
}

// Subscription is a recurring bill (remote-owned read model).
type Subscription struct {
	ID          string
	Name        string
	Amount      decimal.Decimal
	DueDay      int
	NextDueDate string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	SyncStatus  SyncStatus
	Extra       map[string]any
}

var subscriptionKeys = map[string]struct{}{
	"id": {}, "name": {}, "amount": {}, "dueDay": {}, "nextDueDate": {},
	"status":    {},
	"createdAt": {}, "createdAtISO": {}, "updatedAt": {}, "updatedAtISO": {},
	"syncStatus": {},
}

func (s *Subscription) LocalDoc() Doc {
	d := mergeExtra(Doc{}, s.Extra)
	d["id"] = s.ID
	d["name"] = s.Name
	d["amount"] = s.Amount.InexactFloat64()
	d["dueDay"] = s.DueDay
	d["nextDueDate"] = s.NextDueDate
	d["status"] = s.Status
	d["createdAtISO"] = isoOrEmpty(s.CreatedAt)
	d["updatedAtISO"] = isoOrEmpty(s.UpdatedAt)
	d["syncStatus"] = string(s.SyncStatus)
	return d
}

func SubscriptionFromDoc(d Doc) *Subscription {
	return &Subscription{
		ID:          docString(d, "id"),
		Name:        docString(d, "name"),
		Amount:      decimal.NewFromFloat(docFloat(d, "amount")),
		DueDay:      docInt(d, "dueDay"),
		NextDueDate: docString(d, "nextDueDate"),
		Status:      docString(d, "status"),
		CreatedAt:   DocTime(d, "createdAtISO", "createdAt"),
		UpdatedAt:   UpdatedAtOf(d),
		SyncStatus:  docStatus(d),
		Extra:       extraOf(d, subscriptionKeys),
	}
}

// Note is an advisory note produced elsewhere; cached locally for offline
// reads.
type Note struct {
	ID         string
	Text       string
	Tone       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	SyncStatus SyncStatus
	Extra      map[string]any
}

var noteKeys = map[string]struct{}{
	"id": {}, "text": {}, "tone": {},
	"createdAt": {}, "createdAtISO": {}, "updatedAt": {}, "updatedAtISO": {},
	"syncStatus": {},
}

func (n *Note) LocalDoc() Doc {
	d := mergeExtra(Doc{}, n.Extra)
	d["id"] = n.ID
	d["text"] = n.Text
	d["tone"] = n.Tone
	d["createdAtISO"] = isoOrEmpty(n.CreatedAt)
	d["updatedAtISO"] = isoOrEmpty(n.UpdatedAt)
	d["syncStatus"] = string(n.SyncStatus)
	return d
}

func NoteFromDoc(d Doc) *Note {
	return &Note{
		ID:         docString(d, "id"),
		Text:       docString(d, "text"),
		Tone:       docString(d, "tone"),
		CreatedAt:  DocTime(d, "createdAtISO", "createdAt"),
		UpdatedAt:  UpdatedAtOf(d),
		SyncStatus: docStatus(d),
		Extra:      extraOf(d, noteKeys),
	}
}
