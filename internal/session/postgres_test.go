package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/keep-migrate/internal/models"
	"go.uber.org/zap"
)

// openPostgres connects to KEEP_MIGRATE_TEST_DSN and registers a fresh
// account, or skips the test when no database is configured.
func openPostgres(t *testing.T) (*PostgresService, Session) {
	t.Helper()
	dsn := os.Getenv("KEEP_MIGRATE_TEST_DSN")
	if dsn == "" {
		t.Skip("KEEP_MIGRATE_TEST_DSN not set")
	}
	ctx := context.Background()
	svc, err := NewPostgresService(ctx, DatabaseConfig{DSN: dsn}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	account := "test-" + uuid.New().String()
	require.NoError(t, svc.AddAccount(ctx, account, "token"))
	t.Cleanup(func() {
		svc.db.Exec(`DELETE FROM accounts WHERE id = $1`, account)
	})

	s, err := svc.Authenticate(ctx, account, "token")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return svc, s
}

func TestPostgresService_Authenticate(t *testing.T) {
	svc, s := openPostgres(t)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, s.Account(), "wrong")
	assert.True(t, IsAuth(err))
	_, err = svc.Authenticate(ctx, "no-such-account", "token")
	assert.True(t, IsAuth(err))
}

func TestPostgresSession_RoundTrip(t *testing.T) {
	svc, s := openPostgres(t)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, "Groceries", "milk, eggs")
	require.NoError(t, err)
	require.NoError(t, s.UpdateNote(ctx, n.ID, models.NoteAttributes{Pinned: true, Color: models.ColorYellow}))
	l, err := s.CreateLabel(ctx, "Personal")
	require.NoError(t, err)
	require.NoError(t, s.AddLabel(ctx, n.ID, l.ID))
	require.NoError(t, s.AddLabel(ctx, n.ID, l.ID))
	att, err := s.AddImage(ctx, n.ID, []byte("png"))
	require.NoError(t, err)

	// Not yet committed: visible to this session, not to a fresh fetch.
	notes, err := s.Notes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	_, err = s.Get(ctx, n.ID)
	assert.True(t, IsNotFound(err))

	require.NoError(t, s.Sync(ctx))

	due := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetReminders(ctx, n.ID, []models.Reminder{{DueAt: due, Recurrence: models.RecurrenceMonthly}}))
	require.NoError(t, s.SetReminders(ctx, n.ID, []models.Reminder{{DueAt: due, Recurrence: models.RecurrenceMonthly}}))
	require.NoError(t, s.Sync(ctx))

	other, err := svc.Authenticate(ctx, s.Account(), "token")
	require.NoError(t, err)
	got, err := other.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, got.Pinned)
	assert.Equal(t, models.ColorYellow, got.Color)
	assert.Equal(t, []string{"Personal"}, got.Labels)
	require.Len(t, got.Attachments, 1)
	require.Len(t, got.Reminders, 1)
	assert.True(t, due.Equal(got.Reminders[0].DueAt))

	blob, err := other.Blob(ctx, n.ID, att.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), blob)
}

func TestPostgresSession_CloseDiscardsUnsynced(t *testing.T) {
	svc, s := openPostgres(t)
	ctx := context.Background()

	_, err := s.CreateNote(ctx, "lost", "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	fresh, err := svc.Authenticate(ctx, s.Account(), "token")
	require.NoError(t, err)
	notes, err := fresh.Notes(ctx)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestPostgresSession_UnknownNote(t *testing.T) {
	_, s := openPostgres(t)
	ctx := context.Background()

	err := s.UpdateNote(ctx, uuid.New().String(), models.NoteAttributes{})
	assert.True(t, IsNotFound(err))
	_, err = s.Get(ctx, uuid.New().String())
	assert.True(t, IsNotFound(err))
}
