package session

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/xaenox/keep-migrate/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c DatabaseConfig) connString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// PostgresService keeps every account of the note service in one database.
type PostgresService struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresService(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*PostgresService, error) {
	db, err := sql.Open("postgres", config.connString())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	svc := &PostgresService{db: db, logger: logger}
	if err := svc.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}
	return svc, nil
}

func (s *PostgresService) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

// AddAccount creates the account or rotates its token.
func (s *PostgresService) AddAccount(ctx context.Context, account, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, token) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET token = EXCLUDED.token`, account, token)
	if err != nil {
		return fmt.Errorf("error saving account: %w", err)
	}
	return nil
}

func (s *PostgresService) Authenticate(ctx context.Context, account, token string) (Session, error) {
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT token FROM accounts WHERE id = $1`, account).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(KindAuth, OpAuthenticate, ErrInvalidToken)
	}
	if err != nil {
		return nil, classify(OpAuthenticate, err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		return nil, newError(KindAuth, OpAuthenticate, ErrInvalidToken)
	}
	return &PostgresSession{
		db:      s.db,
		account: account,
		logger:  s.logger.With(zap.String("account", account)),
	}, nil
}

func (s *PostgresService) Close() error {
	return s.db.Close()
}

// classify maps driver errors to a Kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return newError(KindNotFound, op, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "28":
			return newError(KindAuth, op, err)
		case "23":
			if pqErr.Code.Name() == "foreign_key_violation" {
				return newError(KindNotFound, op, err)
			}
		}
	}
	return newError(KindTransient, op, err)
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresSession buffers every mutation in one transaction that Sync
// commits. Reads go through the same transaction so they see pending work.
type PostgresSession struct {
	db      *sql.DB
	tx      *sql.Tx
	lost    error
	account string
	logger  *zap.Logger
}

func (p *PostgresSession) Account() string {
	return p.account
}

func (p *PostgresSession) reader() queryer {
	if p.tx != nil {
		return p.tx
	}
	return p.db
}

func (p *PostgresSession) writer(ctx context.Context) (queryer, error) {
	if p.tx != nil {
		return p.tx, nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	p.tx = tx
	p.lost = nil
	return tx, nil
}

// mutate runs fn inside a savepoint of the session transaction, so a failed
// statement does not poison the writes that came before it.
func (p *PostgresSession) mutate(ctx context.Context, op string, fn func(q queryer) error) error {
	q, err := p.writer(ctx)
	if err != nil {
		return classify(op, err)
	}
	if _, err := q.ExecContext(ctx, `SAVEPOINT mutation`); err != nil {
		return classify(op, err)
	}
	if err := fn(q); err != nil {
		if _, rbErr := q.ExecContext(ctx, `ROLLBACK TO SAVEPOINT mutation`); rbErr != nil {
			p.logger.Error("Failed to roll back savepoint", zap.String("op", op), zap.Error(rbErr))
		}
		var e *Error
		if errors.As(err, &e) {
			return err
		}
		return classify(op, err)
	}
	if _, err := q.ExecContext(ctx, `RELEASE SAVEPOINT mutation`); err != nil {
		return classify(op, err)
	}
	return nil
}

func (p *PostgresSession) Notes(ctx context.Context) ([]*models.Note, error) {
	rows, err := p.reader().QueryContext(ctx, `
		SELECT id, title, body, pinned, archived, trashed, color, created_at, updated_at
		FROM notes
		WHERE account_id = $1
		ORDER BY created_at, id`, p.account)
	if err != nil {
		return nil, classify(OpNotes, err)
	}
	defer rows.Close()

	var notes []*models.Note
	byID := make(map[string]*models.Note)
	for rows.Next() {
		note := &models.Note{Labels: []string{}}
		if err := rows.Scan(
			&note.ID,
			&note.Title,
			&note.Text,
			&note.Pinned,
			&note.Archived,
			&note.Trashed,
			&note.Color,
			&note.CreatedAt,
			&note.UpdatedAt,
		); err != nil {
			return nil, classify(OpNotes, fmt.Errorf("error scanning note: %w", err))
		}
		notes = append(notes, note)
		byID[note.ID] = note
	}
	if err := rows.Err(); err != nil {
		return nil, classify(OpNotes, err)
	}
	if len(notes) == 0 {
		return notes, nil
	}

	ids := make([]string, 0, len(notes))
	for _, n := range notes {
		ids = append(ids, n.ID)
	}
	if err := loadDetails(ctx, p.reader(), ids, byID); err != nil {
		return nil, classify(OpNotes, err)
	}
	return notes, nil
}

func loadDetails(ctx context.Context, q queryer, ids []string, byID map[string]*models.Note) error {
	rows, err := q.QueryContext(ctx, `
		SELECT nl.note_id, l.name
		FROM note_labels nl JOIN labels l ON l.id = nl.label_id
		WHERE nl.note_id = ANY($1::uuid[])
		ORDER BY l.name`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error querying note labels: %w", err)
	}
	for rows.Next() {
		var noteID, name string
		if err := rows.Scan(&noteID, &name); err != nil {
			rows.Close()
			return fmt.Errorf("error scanning note label: %w", err)
		}
		byID[noteID].Labels = append(byID[noteID].Labels, name)
	}
	rows.Close()

	rows, err = q.QueryContext(ctx, `
		SELECT id, note_id, mime_type
		FROM attachments
		WHERE note_id = ANY($1::uuid[])
		ORDER BY created_at, id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error querying attachments: %w", err)
	}
	for rows.Next() {
		var att models.Attachment
		var noteID string
		if err := rows.Scan(&att.ID, &noteID, &att.MimeType); err != nil {
			rows.Close()
			return fmt.Errorf("error scanning attachment: %w", err)
		}
		byID[noteID].Attachments = append(byID[noteID].Attachments, att)
	}
	rows.Close()

	rows, err = q.QueryContext(ctx, `
		SELECT note_id, due_at, recurrence
		FROM reminders
		WHERE note_id = ANY($1::uuid[])
		ORDER BY due_at`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error querying reminders: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r models.Reminder
		var noteID string
		if err := rows.Scan(&noteID, &r.DueAt, &r.Recurrence); err != nil {
			return fmt.Errorf("error scanning reminder: %w", err)
		}
		byID[noteID].Reminders = append(byID[noteID].Reminders, r)
	}
	return rows.Err()
}

func (p *PostgresSession) Labels(ctx context.Context) ([]*models.Label, error) {
	rows, err := p.reader().QueryContext(ctx, `
		SELECT id, name FROM labels WHERE account_id = $1 ORDER BY created_at, name`, p.account)
	if err != nil {
		return nil, classify(OpLabels, err)
	}
	defer rows.Close()

	var labels []*models.Label
	for rows.Next() {
		l := &models.Label{}
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, classify(OpLabels, fmt.Errorf("error scanning label: %w", err))
		}
		labels = append(labels, l)
	}
	return labels, classify(OpLabels, rows.Err())
}

func (p *PostgresSession) CreateNote(ctx context.Context, title, text string) (*models.Note, error) {
	note := &models.Note{
		ID:     uuid.New().String(),
		Title:  title,
		Text:   text,
		Color:  models.ColorDefault,
		Labels: []string{},
	}
	err := p.mutate(ctx, OpCreateNote, func(q queryer) error {
		err := q.QueryRowContext(ctx, `
			INSERT INTO notes (id, account_id, title, body, color)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at, updated_at`,
			note.ID, p.account, title, text, note.Color,
		).Scan(&note.CreatedAt, &note.UpdatedAt)
		if err != nil {
			return fmt.Errorf("error creating note: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (p *PostgresSession) UpdateNote(ctx context.Context, noteID string, attrs models.NoteAttributes) error {
	return p.mutate(ctx, OpUpdateNote, func(q queryer) error {
		result, err := q.ExecContext(ctx, `
			UPDATE notes
			SET pinned = $1, archived = $2, color = $3, updated_at = NOW()
			WHERE id = $4 AND account_id = $5`,
			attrs.Pinned, attrs.Archived, attrs.Color, noteID, p.account)
		if err != nil {
			return fmt.Errorf("error updating note: %w", err)
		}
		return expectRow(OpUpdateNote, result, noteID)
	})
}

func expectRow(op string, result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classify(op, fmt.Errorf("error getting rows affected: %w", err))
	}
	if rowsAffected == 0 {
		return newError(KindNotFound, op, fmt.Errorf("%w: %s", ErrUnknownNote, id))
	}
	return nil
}

func (p *PostgresSession) CreateLabel(ctx context.Context, name string) (*models.Label, error) {
	l := &models.Label{ID: uuid.New().String(), Name: name}
	err := p.mutate(ctx, OpCreateLabel, func(q queryer) error {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO labels (id, account_id, name) VALUES ($1, $2, $3)`,
			l.ID, p.account, name); err != nil {
			return fmt.Errorf("error creating label: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (p *PostgresSession) AddLabel(ctx context.Context, noteID, labelID string) error {
	return p.mutate(ctx, OpAddLabel, func(q queryer) error {
		var exists bool
		err := q.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM notes n, labels l
				WHERE n.id = $1 AND l.id = $2 AND n.account_id = $3 AND l.account_id = $3
			)`, noteID, labelID, p.account).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return newError(KindNotFound, OpAddLabel, fmt.Errorf("note %s or label %s not found", noteID, labelID))
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO note_labels (note_id, label_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, noteID, labelID); err != nil {
			return fmt.Errorf("error adding label: %w", err)
		}
		return nil
	})
}

func (p *PostgresSession) Blob(ctx context.Context, noteID, attachmentID string) ([]byte, error) {
	var blob []byte
	err := p.reader().QueryRowContext(ctx, `
		SELECT a.blob FROM attachments a JOIN notes n ON n.id = a.note_id
		WHERE a.id = $1 AND a.note_id = $2 AND n.account_id = $3`,
		attachmentID, noteID, p.account).Scan(&blob)
	if err != nil {
		return nil, classify(OpBlob, err)
	}
	return blob, nil
}

func (p *PostgresSession) AddImage(ctx context.Context, noteID string, blob []byte) (*models.Attachment, error) {
	att := &models.Attachment{ID: uuid.New().String(), MimeType: "image/png"}
	err := p.mutate(ctx, OpAddImage, func(q queryer) error {
		result, err := q.ExecContext(ctx, `
			INSERT INTO attachments (id, note_id, mime_type, blob)
			SELECT $1, n.id, $3, $4 FROM notes n WHERE n.id = $2 AND n.account_id = $5`,
			att.ID, noteID, att.MimeType, blob, p.account)
		if err != nil {
			return fmt.Errorf("error adding image: %w", err)
		}
		return expectRow(OpAddImage, result, noteID)
	})
	if err != nil {
		return nil, err
	}
	return att, nil
}

// Get reads from the database outside the session transaction, so a note is
// only found once the session that created it has synced.
func (p *PostgresSession) Get(ctx context.Context, noteID string) (*models.Note, error) {
	note := &models.Note{Labels: []string{}}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, title, body, pinned, archived, trashed, color, created_at, updated_at
		FROM notes WHERE id = $1 AND account_id = $2`, noteID, p.account).Scan(
		&note.ID,
		&note.Title,
		&note.Text,
		&note.Pinned,
		&note.Archived,
		&note.Trashed,
		&note.Color,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		return nil, classify(OpGet, err)
	}
	if err := loadDetails(ctx, p.db, []string{note.ID}, map[string]*models.Note{note.ID: note}); err != nil {
		return nil, classify(OpGet, err)
	}
	return note, nil
}

func (p *PostgresSession) SetReminders(ctx context.Context, noteID string, reminders []models.Reminder) error {
	return p.mutate(ctx, OpSetReminders, func(q queryer) error {
		result, err := q.ExecContext(ctx, `
			UPDATE notes SET updated_at = NOW() WHERE id = $1 AND account_id = $2`, noteID, p.account)
		if err != nil {
			return err
		}
		if err := expectRow(OpSetReminders, result, noteID); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM reminders WHERE note_id = $1`, noteID); err != nil {
			return fmt.Errorf("error clearing reminders: %w", err)
		}
		for _, r := range reminders {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO reminders (id, note_id, due_at, recurrence) VALUES ($1, $2, $3, $4)`,
				uuid.New().String(), noteID, r.DueAt, r.Recurrence); err != nil {
				return fmt.Errorf("error inserting reminder: %w", err)
			}
		}
		return nil
	})
}

// Sync commits the open transaction. A failed commit discards the batch, so
// Sync keeps failing until new mutations start another one.
func (p *PostgresSession) Sync(ctx context.Context) error {
	if p.lost != nil {
		return newError(KindSync, OpSync, p.lost)
	}
	if p.tx == nil {
		return nil
	}
	tx := p.tx
	p.tx = nil
	if err := tx.Commit(); err != nil {
		p.lost = fmt.Errorf("pending mutations lost: %w", err)
		return newError(KindSync, OpSync, p.lost)
	}
	p.logger.Debug("Committed pending mutations")
	return nil
}

// Close discards mutations that were never synced.
func (p *PostgresSession) Close() error {
	if p.tx == nil {
		return nil
	}
	err := p.tx.Rollback()
	p.tx = nil
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("error rolling back: %w", err)
	}
	p.logger.Warn("Discarded unsynced mutations")
	return nil
}
