package entries

import (
	"github.com/sapatrack/sapatrack/internal/models"
	"github.com/sapatrack/sapatrack/internal/repository"
)

// Repository describes CRUD and sync operations for journal entries.
type Repository interface {
	// List returns all entries for uid, most recently updated first.
	List(uid string) ([]*models.Entry, error)

	// Recent returns at most n entries, most recently updated first.
	Recent(uid string, n int) ([]*models.Entry, error)

	// Add assigns an id and timestamps, tags the entry pending, and stores it.
	Add(uid string, e *models.Entry) (*models.Entry, error)

	// Update applies patch fields onto the stored document, bumps updatedAt,
	// and tags the entry pending unless the patch supplies a syncStatus.
	// Returns common.ErrorNotFound for an unknown id.
	Update(uid, id string, patch models.Doc) (*models.Entry, error)

	// MarkSynced records that the entry's last push was confirmed.
	MarkSynced(uid, id string) error

	// UpsertFromRemote stores a remote document as the synced local copy.
	UpsertFromRemote(uid string, d models.Doc) error

	// Pending returns the unpushed entries with their merge-write payloads.
	Pending(uid string) ([]repository.Pending, error)

	// MergeFromRemote folds a remote snapshot in, pending-wins-if-newer.
	MergeFromRemote(uid string, remote []models.Doc) error
}
