// Package localstore provides the namespaced key/value cache backing all
// local state.
//
// # Keying
//
// Every value belongs to one user: the physical key is the name prefixed
// with the owning user id ("sapa_{uid}_{name}"), so switching accounts can
// neither leak nor collide data. Earlier app versions used different
// separators; Read probes those legacy variants and lazily copies a hit
// under the primary key.
//
// # Durability
//
// Persistence is best-effort. A write that exceeds the capacity ceiling
// returns common.ErrQuotaExceeded; callers are expected to ignore write
// errors and keep serving the in-memory state for the session. There is no
// cross-key transaction: the idempotent merge design upstream tolerates a
// crash between two related writes.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sapatrack/sapatrack/internal/common"
)

// Store is the local durable key/value cache.
type Store interface {
	// Read returns the value stored under (uid, name), probing legacy key
	// variants on a primary miss. Returns common.ErrorNotFound when absent.
	Read(uid, name string) (string, error)

	// Write stores value under (uid, name). May return
	// common.ErrQuotaExceeded; persistence is advisory, not guaranteed.
	Write(uid, name, value string) error

	// Delete removes (uid, name). Deleting an absent key is not an error.
	Delete(uid, name string) error

	// ClearUser removes every key owned by uid, including legacy-variant
	// keys, and reports how many were removed.
	ClearUser(uid string) (int, error)
}

func primaryKey(uid, name string) string {
	return "sapa_" + uid + "_" + name
}

// legacyKeys lists older physical key spellings, probed in order on a
// primary-key miss.
func legacyKeys(uid, name string) []string {
	return []string{
		"sapa-" + uid + "-" + name,
		"sapa:" + uid + ":" + name,
	}
}

// userPrefixes returns every physical key prefix that may hold data for uid.
func userPrefixes(uid string) []string {
	return []string{
		"sapa_" + uid + "_",
		"sapa-" + uid + "-",
		"sapa:" + uid + ":",
	}
}

// ReadJSON reads and unmarshals the value under (uid, name) into out. The
// boolean reports whether a value was present; absence is not an error.
func ReadJSON(s Store, uid, name string, out any) (bool, error) {
	raw, err := s.Read(uid, name)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decoding %q: %w", name, err)
	}
	return true, nil
}

// WriteJSON marshals v and stores it under (uid, name).
func WriteJSON(s Store, uid, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", name, err)
	}
	return s.Write(uid, name, string(raw))
}
