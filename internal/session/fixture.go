package session

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xaenox/keep-migrate/internal/models"
	"gopkg.in/yaml.v3"
)

// Fixture describes accounts to preload into a MemoryService.
//
//	accounts:
//	  - id: me@example.com
//	    token: secret
//	    labels: [Personal]
//	    notes:
//	      - title: Groceries
//	        text: milk, eggs
//	        labels: [Personal]
//	        reminders:
//	          - due_at: 2026-01-02T09:00:00Z
//	            recurrence: weekly
type Fixture struct {
	Accounts []FixtureAccount `yaml:"accounts"`
}

type FixtureAccount struct {
	ID     string        `yaml:"id"`
	Token  string        `yaml:"token"`
	Labels []string      `yaml:"labels"`
	Notes  []FixtureNote `yaml:"notes"`
}

type FixtureNote struct {
	Title       string              `yaml:"title"`
	Text        string              `yaml:"text"`
	Pinned      bool                `yaml:"pinned"`
	Archived    bool                `yaml:"archived"`
	Trashed     bool                `yaml:"trashed"`
	Color       string              `yaml:"color"`
	Labels      []string            `yaml:"labels"`
	Reminders   []FixtureReminder   `yaml:"reminders"`
	Attachments []FixtureAttachment `yaml:"attachments"`
}

type FixtureReminder struct {
	DueAt      time.Time `yaml:"due_at"`
	Recurrence string    `yaml:"recurrence"`
}

// FixtureAttachment carries the blob either inline as base64 or as a path.
type FixtureAttachment struct {
	MimeType string `yaml:"mime_type"`
	Data     string `yaml:"data"`
	Path     string `yaml:"path"`
}

func ParseFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("error decoding fixture: %w", err)
	}
	return &f, nil
}

// LoadFixtureFile reads a fixture from disk and applies it to a new service.
func LoadFixtureFile(path string) (*MemoryService, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening fixture: %w", err)
	}
	defer file.Close()

	f, err := ParseFixture(file)
	if err != nil {
		return nil, err
	}
	svc := NewMemoryService()
	if err := f.Apply(svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// Apply registers every account of the fixture with svc.
func (f *Fixture) Apply(svc *MemoryService) error {
	for _, acc := range f.Accounts {
		if acc.ID == "" {
			return fmt.Errorf("fixture account without id")
		}
		svc.AddAccount(acc.ID, acc.Token)
		for _, name := range acc.Labels {
			if _, err := svc.SeedLabel(acc.ID, name); err != nil {
				return err
			}
		}
		for i, fn := range acc.Notes {
			note, blobs, err := fn.toNote()
			if err != nil {
				return fmt.Errorf("account %s note %d: %w", acc.ID, i, err)
			}
			if _, err := svc.Seed(acc.ID, note, blobs...); err != nil {
				return err
			}
		}
	}
	return nil
}

func (fn FixtureNote) toNote() (*models.Note, [][]byte, error) {
	color := models.Color(fn.Color)
	if color == "" {
		color = models.ColorDefault
	}
	if !color.Valid() {
		return nil, nil, fmt.Errorf("unknown color %q", fn.Color)
	}
	note := &models.Note{
		Title:    fn.Title,
		Text:     fn.Text,
		Pinned:   fn.Pinned,
		Archived: fn.Archived,
		Trashed:  fn.Trashed,
		Color:    color,
		Labels:   append([]string{}, fn.Labels...),
	}
	for _, r := range fn.Reminders {
		rec, err := models.ParseRecurrence(r.Recurrence)
		if err != nil {
			return nil, nil, err
		}
		note.Reminders = append(note.Reminders, models.Reminder{DueAt: r.DueAt, Recurrence: rec})
	}
	var blobs [][]byte
	for _, a := range fn.Attachments {
		var blob []byte
		var err error
		switch {
		case a.Path != "":
			blob, err = os.ReadFile(a.Path)
		default:
			blob, err = base64.StdEncoding.DecodeString(a.Data)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("attachment: %w", err)
		}
		note.Attachments = append(note.Attachments, models.Attachment{MimeType: a.MimeType})
		blobs = append(blobs, blob)
	}
	return note, blobs, nil
}
