package models

import "time"

// Entry is a journal entry: a dated free-text note with tags.
type Entry struct {
	ID         string
	Date       string // calendar date, "2006-01-02"
	Title      string
	Text       string
	Tags       []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	SyncStatus SyncStatus
	Extra      map[string]any
}

var entryKeys = map[string]struct{}{
	"id": {}, "date": {}, "title": {}, "text": {}, "tags": {},
	"createdAt": {}, "createdAtISO": {}, "updatedAt": {}, "updatedAtISO": {},
	"syncStatus": {},
}

// LocalDoc is the shape persisted in the local cache.
func (e *Entry) LocalDoc() Doc {
	d := mergeExtra(Doc{}, e.Extra)
	d["id"] = e.ID
	d["date"] = e.Date
	d["title"] = e.Title
	d["text"] = e.Text
	d["tags"] = e.Tags
	d["createdAtISO"] = isoOrEmpty(e.CreatedAt)
	d["updatedAtISO"] = isoOrEmpty(e.UpdatedAt)
	d["syncStatus"] = string(e.SyncStatus)
	return d
}

// RemoteDoc is the merge-write payload pushed to the remote store. The
// authoritative updatedAt is assigned server-side; updatedAtISO carries the
// client's logical timestamp used for conflict comparison.
func (e *Entry) RemoteDoc() Doc {
	d := mergeExtra(Doc{}, e.Extra)
	d["date"] = e.Date
	d["title"] = e.Title
	d["text"] = e.Text
	d["tags"] = e.Tags
	d["createdAt"] = e.CreatedAt.UTC()
	d["createdAtISO"] = isoOrEmpty(e.CreatedAt)
	d["updatedAt"] = ServerTimestamp
	d["updatedAtISO"] = isoOrEmpty(e.UpdatedAt)
	return d
}

// EntryFromDoc decodes an entry document, keeping unknown fields in Extra.
func EntryFromDoc(d Doc) *Entry {
	return &Entry{
		ID:         docString(d, "id"),
		Date:       docString(d, "date"),
		Title:      docString(d, "title"),
		Text:       docString(d, "text"),
		Tags:       docStrings(d, "tags"),
		CreatedAt:  DocTime(d, "createdAtISO", "createdAt"),
		UpdatedAt:  UpdatedAtOf(d),
		SyncStatus: docStatus(d),
		Extra:      extraOf(d, entryKeys),
	}
}
