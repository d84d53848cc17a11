package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/keep-migrate/internal/models"
)

// Operation names used in errors and for fault injection.
const (
	OpAuthenticate = "authenticate"
	OpNotes        = "notes"
	OpLabels       = "labels"
	OpCreateNote   = "create_note"
	OpUpdateNote   = "update_note"
	OpCreateLabel  = "create_label"
	OpAddLabel     = "add_label"
	OpBlob         = "blob"
	OpAddImage     = "add_image"
	OpGet          = "get"
	OpSetReminders = "set_reminders"
	OpSync         = "sync"
)

var ErrInjected = errors.New("injected failure")

type memoryAccount struct {
	token      string
	notes      map[string]*models.Note
	noteOrder  []string
	labels     map[string]*models.Label
	labelOrder []string
	blobs      map[string][]byte
	synced     map[string]bool
	pending    int
	syncs      int
}

type fault struct {
	remaining int
	err       error
}

// MemoryService is an in-process note service. Notes created through a
// session become visible to Get only after the session syncs, like a remote
// service that has not yet received the write.
type MemoryService struct {
	mu       sync.RWMutex
	accounts map[string]*memoryAccount
	faults   map[string]map[string]*fault
	now      func() time.Time
}

func NewMemoryService() *MemoryService {
	return &MemoryService{
		accounts: make(map[string]*memoryAccount),
		faults:   make(map[string]map[string]*fault),
		now:      time.Now,
	}
}

// AddAccount registers an account that accepts token.
func (s *MemoryService) AddAccount(account, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account]; exists {
		s.accounts[account].token = token
		return
	}
	s.accounts[account] = &memoryAccount{
		token:  token,
		notes:  make(map[string]*models.Note),
		labels: make(map[string]*models.Label),
		blobs:  make(map[string][]byte),
		synced: make(map[string]bool),
	}
}

// Seed stores a note as already synced. Labels referenced by name are created
// when missing. A zero ID is replaced by a fresh one.
func (s *MemoryService) Seed(account string, note *models.Note, blobs ...[]byte) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[account]
	if !ok {
		return nil, fmt.Errorf("unknown account %q", account)
	}
	n := note.Clone()
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
		n.UpdatedAt = n.CreatedAt
	}
	for _, name := range n.Labels {
		if labelByName(acc, name) == nil {
			acc.addLabel(name)
		}
	}
	n.Attachments = nil
	for i, blob := range blobs {
		att := models.Attachment{ID: uuid.New().String(), MimeType: "image/png"}
		if i < len(note.Attachments) && note.Attachments[i].MimeType != "" {
			att.MimeType = note.Attachments[i].MimeType
		}
		acc.blobs[att.ID] = append([]byte(nil), blob...)
		n.Attachments = append(n.Attachments, att)
	}
	acc.notes[n.ID] = n
	acc.noteOrder = append(acc.noteOrder, n.ID)
	acc.synced[n.ID] = true
	return n.Clone(), nil
}

// SeedLabel creates a label in the account if it does not exist.
func (s *MemoryService) SeedLabel(account, name string) (*models.Label, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[account]
	if !ok {
		return nil, fmt.Errorf("unknown account %q", account)
	}
	if l := labelByName(acc, name); l != nil {
		return l, nil
	}
	l := acc.addLabel(name)
	return &models.Label{ID: l.ID, Name: l.Name}, nil
}

// FailNext makes the next times calls of op on account fail with err, or with
// a transient ErrInjected when err is nil.
func (s *MemoryService) FailNext(account, op string, times int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.faults[account] == nil {
		s.faults[account] = make(map[string]*fault)
	}
	if err == nil {
		kind := KindTransient
		if op == OpSync {
			kind = KindSync
		}
		err = newError(kind, op, ErrInjected)
	}
	s.faults[account][op] = &fault{remaining: times, err: err}
}

// Snapshot returns copies of every note in account in creation order.
func (s *MemoryService) Snapshot(account string) []*models.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[account]
	if !ok {
		return nil
	}
	out := make([]*models.Note, 0, len(acc.noteOrder))
	for _, id := range acc.noteOrder {
		out = append(out, acc.notes[id].Clone())
	}
	return out
}

// Syncs returns how many times the account was synced.
func (s *MemoryService) Syncs(account string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if acc, ok := s.accounts[account]; ok {
		return acc.syncs
	}
	return 0
}

// Pending returns the number of mutations not yet synced.
func (s *MemoryService) Pending(account string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if acc, ok := s.accounts[account]; ok {
		return acc.pending
	}
	return 0
}

func (s *MemoryService) Authenticate(ctx context.Context, account, token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(account, OpAuthenticate); err != nil {
		return nil, err
	}
	acc, ok := s.accounts[account]
	if !ok || acc.token != token {
		return nil, newError(KindAuth, OpAuthenticate, ErrInvalidToken)
	}
	return &MemorySession{service: s, account: account}, nil
}

// injected must be called with s.mu held.
func (s *MemoryService) injected(account, op string) error {
	f := s.faults[account][op]
	if f == nil || f.remaining <= 0 {
		return nil
	}
	f.remaining--
	return f.err
}

func (acc *memoryAccount) addLabel(name string) *models.Label {
	l := &models.Label{ID: uuid.New().String(), Name: name}
	acc.labels[l.ID] = l
	acc.labelOrder = append(acc.labelOrder, l.ID)
	return l
}

func labelByName(acc *memoryAccount, name string) *models.Label {
	for _, id := range acc.labelOrder {
		if acc.labels[id].Name == name {
			return acc.labels[id]
		}
	}
	return nil
}

// MemorySession is a Session on a MemoryService account.
type MemorySession struct {
	service *MemoryService
	account string
}

func (m *MemorySession) Account() string {
	return m.account
}

// begin locks the service and returns the account, or the injected failure
// for op.
func (m *MemorySession) begin(ctx context.Context, op string) (*memoryAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.service.mu.Lock()
	if err := m.service.injected(m.account, op); err != nil {
		m.service.mu.Unlock()
		return nil, err
	}
	acc, ok := m.service.accounts[m.account]
	if !ok {
		m.service.mu.Unlock()
		return nil, newError(KindAuth, op, fmt.Errorf("account %q removed", m.account))
	}
	return acc, nil
}

func (m *MemorySession) end() {
	m.service.mu.Unlock()
}

func (m *MemorySession) note(acc *memoryAccount, op, id string) (*models.Note, error) {
	n, ok := acc.notes[id]
	if !ok {
		return nil, newError(KindNotFound, op, fmt.Errorf("%w: %s", ErrUnknownNote, id))
	}
	return n, nil
}

func (m *MemorySession) Notes(ctx context.Context) ([]*models.Note, error) {
	acc, err := m.begin(ctx, OpNotes)
	if err != nil {
		return nil, err
	}
	defer m.end()

	notes := make([]*models.Note, 0, len(acc.noteOrder))
	for _, id := range acc.noteOrder {
		notes = append(notes, acc.notes[id].Clone())
	}
	return notes, nil
}

func (m *MemorySession) Labels(ctx context.Context) ([]*models.Label, error) {
	acc, err := m.begin(ctx, OpLabels)
	if err != nil {
		return nil, err
	}
	defer m.end()

	labels := make([]*models.Label, 0, len(acc.labelOrder))
	for _, id := range acc.labelOrder {
		l := *acc.labels[id]
		labels = append(labels, &l)
	}
	return labels, nil
}

func (m *MemorySession) CreateNote(ctx context.Context, title, text string) (*models.Note, error) {
	acc, err := m.begin(ctx, OpCreateNote)
	if err != nil {
		return nil, err
	}
	defer m.end()

	now := m.service.now()
	n := &models.Note{
		ID:        uuid.New().String(),
		Title:     title,
		Text:      text,
		Color:     models.ColorDefault,
		Labels:    []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	acc.notes[n.ID] = n
	acc.noteOrder = append(acc.noteOrder, n.ID)
	acc.pending++
	return n.Clone(), nil
}

func (m *MemorySession) UpdateNote(ctx context.Context, noteID string, attrs models.NoteAttributes) error {
	acc, err := m.begin(ctx, OpUpdateNote)
	if err != nil {
		return err
	}
	defer m.end()

	n, err := m.note(acc, OpUpdateNote, noteID)
	if err != nil {
		return err
	}
	n.Pinned = attrs.Pinned
	n.Archived = attrs.Archived
	n.Color = attrs.Color
	n.UpdatedAt = m.service.now()
	acc.pending++
	return nil
}

func (m *MemorySession) CreateLabel(ctx context.Context, name string) (*models.Label, error) {
	acc, err := m.begin(ctx, OpCreateLabel)
	if err != nil {
		return nil, err
	}
	defer m.end()

	if l := labelByName(acc, name); l != nil {
		return nil, newError(KindTransient, OpCreateLabel, fmt.Errorf("label %q already exists", name))
	}
	l := acc.addLabel(name)
	acc.pending++
	return &models.Label{ID: l.ID, Name: l.Name}, nil
}

func (m *MemorySession) AddLabel(ctx context.Context, noteID, labelID string) error {
	acc, err := m.begin(ctx, OpAddLabel)
	if err != nil {
		return err
	}
	defer m.end()

	n, err := m.note(acc, OpAddLabel, noteID)
	if err != nil {
		return err
	}
	l, ok := acc.labels[labelID]
	if !ok {
		return newError(KindNotFound, OpAddLabel, fmt.Errorf("label %s not found", labelID))
	}
	for _, name := range n.Labels {
		if name == l.Name {
			return nil
		}
	}
	n.Labels = append(n.Labels, l.Name)
	acc.pending++
	return nil
}

func (m *MemorySession) Blob(ctx context.Context, noteID, attachmentID string) ([]byte, error) {
	acc, err := m.begin(ctx, OpBlob)
	if err != nil {
		return nil, err
	}
	defer m.end()

	if _, err := m.note(acc, OpBlob, noteID); err != nil {
		return nil, err
	}
	blob, ok := acc.blobs[attachmentID]
	if !ok {
		return nil, newError(KindNotFound, OpBlob, fmt.Errorf("attachment %s not found", attachmentID))
	}
	return append([]byte(nil), blob...), nil
}

func (m *MemorySession) AddImage(ctx context.Context, noteID string, blob []byte) (*models.Attachment, error) {
	acc, err := m.begin(ctx, OpAddImage)
	if err != nil {
		return nil, err
	}
	defer m.end()

	n, err := m.note(acc, OpAddImage, noteID)
	if err != nil {
		return nil, err
	}
	att := models.Attachment{ID: uuid.New().String(), MimeType: "image/png"}
	acc.blobs[att.ID] = append([]byte(nil), blob...)
	n.Attachments = append(n.Attachments, att)
	acc.pending++
	return &att, nil
}

func (m *MemorySession) Get(ctx context.Context, noteID string) (*models.Note, error) {
	acc, err := m.begin(ctx, OpGet)
	if err != nil {
		return nil, err
	}
	defer m.end()

	n, err := m.note(acc, OpGet, noteID)
	if err != nil {
		return nil, err
	}
	if !acc.synced[noteID] {
		return nil, newError(KindNotFound, OpGet, fmt.Errorf("%w: %s not synced", ErrUnknownNote, noteID))
	}
	return n.Clone(), nil
}

func (m *MemorySession) SetReminders(ctx context.Context, noteID string, reminders []models.Reminder) error {
	acc, err := m.begin(ctx, OpSetReminders)
	if err != nil {
		return err
	}
	defer m.end()

	n, err := m.note(acc, OpSetReminders, noteID)
	if err != nil {
		return err
	}
	n.Reminders = append([]models.Reminder(nil), reminders...)
	n.UpdatedAt = m.service.now()
	acc.pending++
	return nil
}

func (m *MemorySession) Sync(ctx context.Context) error {
	acc, err := m.begin(ctx, OpSync)
	if err != nil {
		return err
	}
	defer m.end()

	for id := range acc.notes {
		acc.synced[id] = true
	}
	acc.pending = 0
	acc.syncs++
	return nil
}

func (m *MemorySession) Close() error {
	// Nothing to release for in-memory sessions
	return nil
}
