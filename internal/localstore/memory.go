package localstore

import (
	"strings"
	"sync"

	"github.com/sapatrack/sapatrack/internal/common"
)

// MemoryStore is an in-memory Store used in tests and as a last-resort
// fallback when the local database cannot be opened. Same keying and quota
// behavior as the SQLite store, no durability.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string]string
	quota int64
}

func NewMemoryStore(quota int64) *MemoryStore {
	return &MemoryStore{data: make(map[string]string), quota: quota}
}

func (s *MemoryStore) set(key, value string) error {
	if s.quota > 0 && int64(len(value)) > s.quota {
		return common.ErrQuotaExceeded
	}
	s.data[key] = value
	return nil
}

func (s *MemoryStore) Read(uid, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value, ok := s.data[primaryKey(uid, name)]; ok {
		return value, nil
	}
	for _, legacy := range legacyKeys(uid, name) {
		if value, ok := s.data[legacy]; ok {
			_ = s.set(primaryKey(uid, name), value)
			return value, nil
		}
	}
	return "", common.ErrorNotFound
}

func (s *MemoryStore) Write(uid, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(primaryKey(uid, name), value)
}

func (s *MemoryStore) Delete(uid, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, primaryKey(uid, name))
	return nil
}

func (s *MemoryStore) ClearUser(uid string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.data {
		for _, prefix := range userPrefixes(uid) {
			if strings.HasPrefix(key, prefix) {
				delete(s.data, key)
				removed++
				break
			}
		}
	}
	return removed, nil
}
