// Package firestore adapts a Cloud Firestore database to the remote.Store
// interface.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sapatrack/sapatrack/internal/common"
	"github.com/sapatrack/sapatrack/internal/models"
	"github.com/sapatrack/sapatrack/internal/remote"
)

// Store implements remote.Store on a Firestore client.
type Store struct {
	client *firestore.Client
}

// New connects to the Firestore database of the given project.
func New(ctx context.Context, projectID string) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("connecting to firestore: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// translate swaps the package-neutral server-timestamp sentinel for the
// Firestore one.
func translate(doc models.Doc) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if v == models.ServerTimestamp {
			out[k] = firestore.ServerTimestamp
			continue
		}
		out[k] = v
	}
	return out
}

// mapErr rewrites Firestore status codes into the sentinel errors callers
// match on. Other errors pass through untouched.
func mapErr(path string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%q: %w", path, common.ErrorNotFound)
	case codes.AlreadyExists:
		return fmt.Errorf("%q: %w", path, common.ErrAlreadyExists)
	}
	return err
}

func (s *Store) Get(ctx context.Context, path string) (models.Doc, error) {
	snap, err := s.client.Doc(path).Get(ctx)
	if err != nil {
		return nil, mapErr(path, err)
	}
	return models.Doc(snap.Data()), nil
}

func (s *Store) Set(ctx context.Context, path string, doc models.Doc) error {
	_, err := s.client.Doc(path).Set(ctx, translate(doc), firestore.MergeAll)
	return mapErr(path, err)
}

func (s *Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.Doc(path).Delete(ctx)
	return mapErr(path, err)
}

func (s *Store) Add(ctx context.Context, collection string, doc models.Doc) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, translate(doc))
	if err != nil {
		return "", mapErr(collection, err)
	}
	return ref.ID, nil
}

func (s *Store) List(ctx context.Context, collection string, q remote.Query) ([]models.Doc, error) {
	query := s.client.Collection(collection).Query
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []models.Doc
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing %q: %w", collection, err)
		}
		doc := models.Doc(snap.Data())
		doc["id"] = snap.Ref.ID
		out = append(out, doc)
	}
	return out, nil
}

type fsTx struct {
	client *firestore.Client
	tx     *firestore.Transaction
	err    error
}

func (t *fsTx) Get(path string) (models.Doc, error) {
	snap, err := t.tx.Get(t.client.Doc(path))
	if err != nil {
		return nil, mapErr(path, err)
	}
	return models.Doc(snap.Data()), nil
}

func (t *fsTx) Set(path string, doc models.Doc) {
	if err := t.tx.Set(t.client.Doc(path), translate(doc), firestore.MergeAll); err != nil && t.err == nil {
		t.err = err
	}
}

func (t *fsTx) Create(path string, doc models.Doc) {
	if err := t.tx.Create(t.client.Doc(path), translate(doc)); err != nil && t.err == nil {
		t.err = err
	}
}

func (s *Store) RunTransaction(ctx context.Context, fn func(tx remote.Tx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		w := &fsTx{client: s.client, tx: tx}
		if err := fn(w); err != nil {
			return err
		}
		return w.err
	})
	// An AlreadyExists from a staged Create only surfaces at commit.
	return mapErr("transaction", err)
}
