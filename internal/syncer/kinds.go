package syncer

import (
	"github.com/sapatrack/sapatrack/internal/models"
	"github.com/sapatrack/sapatrack/internal/repository"
	"github.com/sapatrack/sapatrack/internal/repository/budgets"
	"github.com/sapatrack/sapatrack/internal/repository/entries"
	"github.com/sapatrack/sapatrack/internal/repository/loans"
	"github.com/sapatrack/sapatrack/internal/repository/readmodels"
)

// Kind is one syncable entity collection. Name is the remote collection
// segment under users/{uid}/.
type Kind interface {
	Name() string

	// Pending lists the unpushed records with their merge-write payloads.
	// Pull-only kinds return nothing.
	Pending(uid string) ([]repository.Pending, error)

	// MarkSynced confirms a record's push (or its abandonment to a newer
	// remote copy).
	MarkSynced(uid, id string) error

	// Merge folds a remote snapshot into the local cache.
	Merge(uid string, remote []models.Doc) error
}

type entriesKind struct{ repo entries.Repository }

func (k entriesKind) Name() string                                     { return "entries" }
func (k entriesKind) Pending(uid string) ([]repository.Pending, error) { return k.repo.Pending(uid) }
func (k entriesKind) MarkSynced(uid, id string) error                  { return k.repo.MarkSynced(uid, id) }
func (k entriesKind) Merge(uid string, remote []models.Doc) error {
	return k.repo.MergeFromRemote(uid, remote)
}

type loansKind struct{ repo loans.Repository }

func (k loansKind) Name() string                                     { return "loans" }
func (k loansKind) Pending(uid string) ([]repository.Pending, error) { return k.repo.Pending(uid) }
func (k loansKind) MarkSynced(uid, id string) error                  { return k.repo.MarkSynced(uid, id) }
func (k loansKind) Merge(uid string, remote []models.Doc) error {
	return k.repo.MergeFromRemote(uid, remote)
}

type budgetsKind struct{ repo budgets.Repository }

func (k budgetsKind) Name() string                                     { return "budgets" }
func (k budgetsKind) Pending(uid string) ([]repository.Pending, error) { return k.repo.Pending(uid) }
func (k budgetsKind) MarkSynced(uid, id string) error                  { return k.repo.MarkSynced(uid, id) }
func (k budgetsKind) Merge(uid string, remote []models.Doc) error {
	return k.repo.MergeFromRemote(uid, remote)
}

type transactionsKind struct{ repo readmodels.Repository }

func (k transactionsKind) Name() string { return "transactions" }
func (k transactionsKind) Pending(uid string) ([]repository.Pending, error) {
	return k.repo.PendingTransactions(uid)
}
func (k transactionsKind) MarkSynced(uid, id string) error {
	return k.repo.MarkTransactionSynced(uid, id)
}
func (k transactionsKind) Merge(uid string, remote []models.Doc) error {
	return k.repo.MergeTransactions(uid, remote)
}

type subscriptionsKind struct{ repo readmodels.Repository }

func (k subscriptionsKind) Name() string                                 { return "subscriptions" }
func (k subscriptionsKind) Pending(string) ([]repository.Pending, error) { return nil, nil }
func (k subscriptionsKind) MarkSynced(string, string) error              { return nil }
func (k subscriptionsKind) Merge(uid string, remote []models.Doc) error {
	return k.repo.MergeSubscriptions(uid, remote)
}

type notesKind struct{ repo readmodels.Repository }

func (k notesKind) Name() string                                 { return "notes" }
func (k notesKind) Pending(string) ([]repository.Pending, error) { return nil, nil }
func (k notesKind) MarkSynced(string, string) error              { return nil }
func (k notesKind) Merge(uid string, remote []models.Doc) error {
	return k.repo.MergeNotes(uid, remote)
}

// Kinds assembles the standard kind set over the concrete repositories.
func Kinds(e entries.Repository, l loans.Repository, b budgets.Repository, rm readmodels.Repository) []Kind {
	return []Kind{
		entriesKind{e},
		loansKind{l},
		budgetsKind{b},
		transactionsKind{rm},
		subscriptionsKind{rm},
		notesKind{rm},
	}
}
