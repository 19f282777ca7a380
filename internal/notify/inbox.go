package notify

import (
	"time"

	"github.com/sapatrack/sapatrack/internal/localstore"
)

const (
	inboxCacheName = "notifications"
	inboxCap       = 200
)

// InboxItem is a notification kept locally for the in-app list.
type InboxItem struct {
	Notification
	ReceivedAt time.Time `json:"receivedAt"`
	Read       bool      `json:"read"`
}

// Inbox stores the per-user notification list in the local cache, newest
// first, capped so the cache key cannot grow without bound.
type Inbox struct {
	store localstore.Store
	now   func() time.Time
}

func NewInbox(store localstore.Store) *Inbox {
	return &Inbox{store: store, now: time.Now}
}

func (i *Inbox) List(uid string) ([]InboxItem, error) {
	var items []InboxItem
	if _, err := localstore.ReadJSON(i.store, uid, inboxCacheName, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Append prepends n and trims the list to the cap.
func (i *Inbox) Append(uid string, n Notification) error {
	items, err := i.List(uid)
	if err != nil {
		return err
	}
	items = append([]InboxItem{{Notification: n, ReceivedAt: i.now().UTC()}}, items...)
	if len(items) > inboxCap {
		items = items[:inboxCap]
	}
	return localstore.WriteJSON(i.store, uid, inboxCacheName, items)
}
