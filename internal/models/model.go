// Package models defines the user-owned entities handled by the sync core
// (journal entries, loans, monthly budgets) and the remote-owned read models
// cached locally (transactions, subscriptions, notes).
//
// Every entity carries logical timestamps, a SyncStatus flag, and an Extra
// map holding document fields this version of the app does not know about.
// Unknown fields survive the local round trip and are written back on merge
// writes, so collaborators (e.g. server-side computed fields) are never
// clobbered.
package models

import "time"

// SyncStatus tags a local record with its relation to the remote store.
type SyncStatus string

const (
	// StatusPending means local state has not been confirmed mirrored
	// remotely since the last mutation.
	StatusPending SyncStatus = "pending"
	// StatusSynced means the last confirmed remote state matches this record.
	StatusSynced SyncStatus = "synced"
)

// Doc is the schemaless document shape exchanged with the remote store and
// persisted in the local cache.
type Doc map[string]any

type serverTimestamp struct{}

// ServerTimestamp is a sentinel value; document-store backends replace it
// with their own authoritative write time.
var ServerTimestamp = serverTimestamp{}

// DateOnly is the calendar-date layout used in entity date fields.
const DateOnly = "2006-01-02"

// TimeFromAny decodes a timestamp from the shapes seen in stored documents:
// time.Time, RFC3339(-Nano) strings, or epoch milliseconds. The zero time is
// returned for anything else, which sorts before every real timestamp.
func TimeFromAny(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
		if parsed, err := time.Parse(DateOnly, t); err == nil {
			return parsed
		}
	case float64:
		if t > 0 {
			return time.UnixMilli(int64(t)).UTC()
		}
	case int64:
		if t > 0 {
			return time.UnixMilli(t).UTC()
		}
	}
	return time.Time{}
}

// DocTime returns the first decodable timestamp among the given keys.
func DocTime(d Doc, keys ...string) time.Time {
	for _, k := range keys {
		if ts := TimeFromAny(d[k]); !ts.IsZero() {
			return ts
		}
	}
	return time.Time{}
}

// UpdatedAtOf applies the standard precedence for a document's logical
// modification time: updatedAtISO, then updatedAt, then createdAt.
func UpdatedAtOf(d Doc) time.Time {
	return DocTime(d, "updatedAtISO", "updatedAt", "createdAtISO", "createdAt")
}

func docString(d Doc, key string) string {
	s, _ := d[key].(string)
	return s
}

func docFloat(d Doc, key string) float64 {
	switch v := d[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func docInt(d Doc, key string) int {
	return int(docFloat(d, key))
}

func docStrings(d Doc, key string) []string {
	raw, ok := d[key].([]any)
	if !ok {
		if typed, ok := d[key].([]string); ok {
			return typed
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func docStatus(d Doc) SyncStatus {
	if docString(d, "syncStatus") == string(StatusPending) {
		return StatusPending
	}
	return StatusSynced
}

// extraOf collects every key of d not present in known, preserving unknown
// document fields across the local round trip.
func extraOf(d Doc, known map[string]struct{}) map[string]any {
	var extra map[string]any
	for k, v := range d {
		if _, ok := known[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}
	return extra
}

// mergeExtra copies extra fields into dst first so that known fields always
// win on key collision.
func mergeExtra(dst Doc, extra map[string]any) Doc {
	for k, v := range extra {
		dst[k] = v
	}
	return dst
}

func isoOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
