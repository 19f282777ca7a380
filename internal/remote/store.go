// Package remote defines the document-store collaborator the sync core
// converges against, plus an in-memory implementation for tests and offline
// development. Hosted backends live in the firestore and postgres
// subpackages.
//
// Documents are addressed by slash-separated paths alternating collection
// and document id, e.g. "users/u1/entries/e1". A path with an odd number of
// segments names a collection.
package remote

import (
	"context"
	"fmt"
	"sort"

	"github.com/sapatrack/sapatrack/internal/models"
)

// Query narrows a List call. Ordering compares the named field's values;
// a zero Limit means no limit.
type Query struct {
	OrderBy string
	Desc    bool
	Limit   int
}

// Tx is the handle passed to a transaction function. Reads must precede
// staged writes; writes are applied atomically when the function returns
// nil, and discarded otherwise.
type Tx interface {
	// Get reads a document inside the transaction. Returns
	// common.ErrorNotFound when absent.
	Get(path string) (models.Doc, error)

	// Set stages a merge write.
	Set(path string, doc models.Doc)

	// Create stages a write that fails the whole transaction with
	// common.ErrAlreadyExists if the document already exists.
	Create(path string, doc models.Doc)
}

// Store is the remote document store. Implementations resolve the
// models.ServerTimestamp sentinel to their own authoritative write time.
type Store interface {
	// Get fetches one document. Returns common.ErrorNotFound when absent.
	Get(ctx context.Context, path string) (models.Doc, error)

	// Set performs a merge write: fields absent from doc are left untouched
	// on the remote document.
	Set(ctx context.Context, path string, doc models.Doc) error

	// Delete removes a document. Deleting an absent document is not an
	// error.
	Delete(ctx context.Context, path string) error

	// Add creates a document with a generated id in the given collection
	// and returns the id.
	Add(ctx context.Context, collection string, doc models.Doc) (string, error)

	// List returns the documents of a collection, each with its id injected
	// under the "id" key.
	List(ctx context.Context, collection string, q Query) ([]models.Doc, error)

	// RunTransaction runs fn atomically with optimistic conflict detection.
	// The error returned by fn (or the commit failure) is returned as-is,
	// so callers can match sentinel errors with errors.Is.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// SortDocs orders docs in place per q and truncates to its limit. Backends
// without native ordered queries share this.
func SortDocs(docs []models.Doc, q Query) []models.Doc {
	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			if q.Desc {
				i, j = j, i
			}
			return docLess(docs[i][q.OrderBy], docs[j][q.OrderBy])
		})
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

// docLess orders field values the way the hosted stores do: timestamps
// chronologically, numbers numerically, everything else lexically.
func docLess(a, b any) bool {
	if ta, tb := models.TimeFromAny(a), models.TimeFromAny(b); !ta.IsZero() || !tb.IsZero() {
		return ta.Before(tb)
	}
	switch av := a.(type) {
	case float64:
		bv, _ := b.(float64)
		return av < bv
	case int:
		bv, _ := b.(int)
		return av < bv
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
