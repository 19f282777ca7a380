// Package ingest turns externally captured transaction events (parsed SMS
// notifications) into remote transaction documents, exactly once per event.
//
// Two dedup layers: a short-lived in-memory suppression set absorbs
// rapid-fire redeliveries without a round trip, and a durable per-user
// fingerprint ledger, written atomically with the transaction document,
// guarantees idempotence across restarts and racing workers.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sapatrack/sapatrack/internal/common"
	"github.com/sapatrack/sapatrack/internal/logging"
	"github.com/sapatrack/sapatrack/internal/models"
	"github.com/sapatrack/sapatrack/internal/remote"
)

// Recognized event directions.
const (
	DirectionCredit = "credit"
	DirectionDebit  = "debit"
)

// Event is one raw captured notification.
type Event struct {
	Provider        string  `json:"provider"`
	Sender          string  `json:"sender"`
	Amount          float64 `json:"amount"`
	TransactionType string  `json:"transactionType"` // DirectionCredit or DirectionDebit
	Reference       string  `json:"reference"`
	Fingerprint     string  `json:"fingerprint,omitempty"` // upstream-supplied, optional
	DateMs          int64   `json:"dateMs"`
	RawSMS          string  `json:"rawSms,omitempty"`
}

// Pipeline ingests events for any user against one remote store. Each
// instance owns its suppression state; Close stops the sweep.
type Pipeline struct {
	remote remote.Store
	log    logging.Logger
	ttl    time.Duration
	now    func() time.Time
	newID  func() string

	mu   sync.Mutex
	seen map[string]time.Time // fingerprint -> suppression expiry

	done chan struct{}
	wg   sync.WaitGroup
}

// defaultTTL is used when the caller passes a non-positive ttl. The sweep
// ticker cannot run with a zero period.
const defaultTTL = 45 * time.Second

// New returns a running Pipeline whose suppression entries live for ttl.
// A non-positive ttl falls back to defaultTTL.
func New(store remote.Store, log logging.Logger, ttl time.Duration) *Pipeline {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	p := &Pipeline{
		remote: store,
		log:    log,
		ttl:    ttl,
		now:    time.Now,
		newID:  uuid.NewString,
		seen:   make(map[string]time.Time),
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.sweepLoop()
	return p
}

// Close stops the suppression sweep. The pipeline must not be used after.
func (p *Pipeline) Close() {
	close(p.done)
	p.wg.Wait()
}

func (p *Pipeline) sweepLoop() {
	defer p.wg.Done()
	t := time.NewTicker(p.ttl)
	defer t.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-t.C:
			p.sweep()
		}
	}
}

func (p *Pipeline) sweep() {
	now := p.now()
	p.mu.Lock()
	for fp, expiry := range p.seen {
		if now.After(expiry) {
			delete(p.seen, fp)
		}
	}
	p.mu.Unlock()
}

// normalize validates the event's required fields.
func normalize(ev Event) bool {
	if ev.Amount <= 0 {
		return false
	}
	if ev.TransactionType != DirectionCredit && ev.TransactionType != DirectionDebit {
		return false
	}
	return true
}

// fingerprint prefers the upstream key; otherwise it derives one from the
// normalized tuple, so redelivery of an identical event collides. The hash
// keeps the ledger document id free of path-hostile characters.
func fingerprint(ev Event) string {
	if ev.Fingerprint != "" {
		return ev.Fingerprint
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s|%s|%s|%d",
		ev.Provider, ev.Sender,
		decimal.NewFromFloat(ev.Amount).String(),
		ev.TransactionType, ev.Reference, ev.DateMs))
	return hex.EncodeToString(sum[:])
}

// suppressed checks and, when unseen, claims the fingerprint for the TTL.
func (p *Pipeline) suppressed(fp string) bool {
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	if expiry, ok := p.seen[fp]; ok && now.Before(expiry) {
		return true
	}
	p.seen[fp] = now.Add(p.ttl)
	return false
}

// transactionDoc builds the remote document for a valid event.
func (p *Pipeline) transactionDoc(ev Event) models.Doc {
	txType := models.TxExpense
	if ev.TransactionType == DirectionCredit {
		txType = models.TxIncome
	}
	nowISO := p.now().UTC().Format(time.RFC3339)
	d := models.Doc{
		"type":         txType,
		"amount":       ev.Amount,
		"provider":     ev.Provider,
		"sender":       ev.Sender,
		"source":       "sms",
		"createdAt":    models.ServerTimestamp,
		"createdAtISO": nowISO,
		"updatedAt":    models.ServerTimestamp,
		"updatedAtISO": nowISO,
	}
	if ev.Reference != "" {
		d["reference"] = ev.Reference
	}
	if ev.RawSMS != "" {
		d["rawSms"] = ev.RawSMS
	}
	if ev.DateMs > 0 {
		d["date"] = time.UnixMilli(ev.DateMs).UTC().Format(models.DateOnly)
	}
	return d
}

// Process ingests one event for uid. It reports whether a transaction was
// created. Malformed events and duplicates are absorbed without error;
// a non-nil error means the durable transaction failed for another reason
// and the event was dropped (redelivery, if any, is the source's job).
func (p *Pipeline) Process(ctx context.Context, uid string, ev Event) (bool, error) {
	if !normalize(ev) {
		p.log.Debug(ctx, "dropping malformed event", "uid", uid, "provider", ev.Provider)
		return false, nil
	}

	fp := fingerprint(ev)
	if p.suppressed(fp) {
		p.log.Debug(ctx, "suppressed duplicate event", "uid", uid, "fingerprint", fp)
		return false, nil
	}

	txID := p.newID()
	ledgerPath := "users/" + uid + "/sms_import_keys/" + fp
	txPath := "users/" + uid + "/transactions/" + txID

	err := p.remote.RunTransaction(ctx, func(tx remote.Tx) error {
		_, err := tx.Get(ledgerPath)
		if err == nil {
			return common.ErrDuplicateEvent
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		tx.Create(txPath, p.transactionDoc(ev))
		tx.Create(ledgerPath, models.Doc{
			"txId":      txID,
			"createdAt": models.ServerTimestamp,
		})
		return nil
	})
	switch {
	case errors.Is(err, common.ErrDuplicateEvent), errors.Is(err, common.ErrAlreadyExists):
		// Another worker won the race; a benign outcome, not an error.
		p.log.Debug(ctx, "duplicate event absorbed by ledger", "uid", uid, "fingerprint", fp)
		return false, nil
	case err != nil:
		p.log.Error(ctx, "ingestion transaction failed", "uid", uid, "fingerprint", fp, "error", err)
		return false, fmt.Errorf("ingesting event %s: %w", fp, err)
	}

	p.log.Info(ctx, "transaction ingested", "uid", uid, "id", txID)
	return true, nil
}
