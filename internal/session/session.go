// Package session describes an authenticated handle to one account of the
// note service and provides the backends the migrator can talk to.
package session

import (
	"context"

	"github.com/xaenox/keep-migrate/internal/models"
)

// Authenticator opens sessions for accounts of one note service.
type Authenticator interface {
	Authenticate(ctx context.Context, account, token string) (Session, error)
}

// Session is the per-item create/update interface of one account.
//
// Mutations may be buffered by the backend until Sync returns; anything not
// synced before Close is lost.
type Session interface {
	Account() string

	Notes(ctx context.Context) ([]*models.Note, error)
	Labels(ctx context.Context) ([]*models.Label, error)

	CreateNote(ctx context.Context, title, text string) (*models.Note, error)
	UpdateNote(ctx context.Context, noteID string, attrs models.NoteAttributes) error
	CreateLabel(ctx context.Context, name string) (*models.Label, error)
	AddLabel(ctx context.Context, noteID, labelID string) error

	Blob(ctx context.Context, noteID, attachmentID string) ([]byte, error)
	AddImage(ctx context.Context, noteID string, blob []byte) (*models.Attachment, error)

	// Get fetches a fresh copy of the note that accepts further mutation.
	Get(ctx context.Context, noteID string) (*models.Note, error)
	// SetReminders replaces the reminder set of the note.
	SetReminders(ctx context.Context, noteID string, reminders []models.Reminder) error

	Sync(ctx context.Context) error
	Close() error
}
