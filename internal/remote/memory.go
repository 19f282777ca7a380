package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sapatrack/sapatrack/internal/common"
	"github.com/sapatrack/sapatrack/internal/models"
)

// MemoryStore is an in-process Store. Transactions hold the store lock for
// their whole duration, so they are serializable by construction.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]models.Doc
	now  func() time.Time
}

// NewMemoryStore returns an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]models.Doc),
		now:  time.Now,
	}
}

// SetClock replaces the write-time source. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.now = now
}

// resolve copies doc, replacing ServerTimestamp sentinels with now.
func resolve(doc models.Doc, now time.Time) models.Doc {
	out := make(models.Doc, len(doc))
	for k, v := range doc {
		if v == models.ServerTimestamp {
			out[k] = now.UTC()
			continue
		}
		out[k] = v
	}
	return out
}

func (s *MemoryStore) Get(ctx context.Context, path string) (models.Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(path)
}

func (s *MemoryStore) get(path string) (models.Doc, error) {
	doc, ok := s.docs[path]
	if !ok {
		return nil, fmt.Errorf("%q: %w", path, common.ErrorNotFound)
	}
	out := make(models.Doc, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, doc models.Doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(path, resolve(doc, s.now()))
	return nil
}

func (s *MemoryStore) set(path string, doc models.Doc) {
	existing, ok := s.docs[path]
	if !ok {
		existing = make(models.Doc, len(doc))
		s.docs[path] = existing
	}
	for k, v := range doc {
		existing[k] = v
	}
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
	return nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, doc models.Doc) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.docs[collection+"/"+id] = resolve(doc, s.now())
	return id, nil
}

func (s *MemoryStore) List(ctx context.Context, collection string, q Query) ([]models.Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := collection + "/"
	var out []models.Doc
	for path, doc := range s.docs {
		id, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(id, "/") {
			continue
		}
		copied := make(models.Doc, len(doc)+1)
		for k, v := range doc {
			copied[k] = v
		}
		copied["id"] = id
		out = append(out, copied)
	}

	return SortDocs(out, q), nil
}

type stagedWrite struct {
	path   string
	doc    models.Doc
	create bool
}

type memoryTx struct {
	store  *MemoryStore
	writes []stagedWrite
}

func (tx *memoryTx) Get(path string) (models.Doc, error) {
	return tx.store.get(path)
}

func (tx *memoryTx) Set(path string, doc models.Doc) {
	tx.writes = append(tx.writes, stagedWrite{path: path, doc: doc})
}

func (tx *memoryTx) Create(path string, doc models.Doc) {
	tx.writes = append(tx.writes, stagedWrite{path: path, doc: doc, create: true})
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}

	for _, w := range tx.writes {
		if !w.create {
			continue
		}
		if _, ok := s.docs[w.path]; ok {
			return fmt.Errorf("%q: %w", w.path, common.ErrAlreadyExists)
		}
	}

	now := s.now()
	for _, w := range tx.writes {
		s.set(w.path, resolve(w.doc, now))
	}
	return nil
}
