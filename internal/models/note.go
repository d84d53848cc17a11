package models

import (
	"time"
)

type Color string

const (
	ColorDefault  Color = "DEFAULT"
	ColorRed      Color = "RED"
	ColorOrange   Color = "ORANGE"
	ColorYellow   Color = "YELLOW"
	ColorGreen    Color = "GREEN"
	ColorTeal     Color = "TEAL"
	ColorBlue     Color = "BLUE"
	ColorCerulean Color = "CERULEAN"
	ColorPurple   Color = "PURPLE"
	ColorPink     Color = "PINK"
	ColorBrown    Color = "BROWN"
	ColorGray     Color = "GRAY"
)

// Valid reports whether c is part of the service palette. The empty color
// counts as DEFAULT.
func (c Color) Valid() bool {
	switch c {
	case "", ColorDefault, ColorRed, ColorOrange, ColorYellow, ColorGreen, ColorTeal,
		ColorBlue, ColorCerulean, ColorPurple, ColorPink, ColorBrown, ColorGray:
		return true
	}
	return false
}

// Note is a single item of an account. ID is assigned by the service and is
// meaningless in any other account.
type Note struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Text        string       `json:"text"`
	Pinned      bool         `json:"pinned"`
	Archived    bool         `json:"archived"`
	Trashed     bool         `json:"trashed"`
	Color       Color        `json:"color"`
	Labels      []string     `json:"labels"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Reminders   []Reminder   `json:"reminders,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Key is the only identity a note has across accounts.
type Key struct {
	Title string
	Text  string
}

func (n *Note) Key() Key {
	return Key{Title: n.Title, Text: n.Text}
}

func (n *Note) HasReminders() bool {
	return len(n.Reminders) > 0
}

// Attributes returns the mutable flags of the note.
func (n *Note) Attributes() NoteAttributes {
	return NoteAttributes{Pinned: n.Pinned, Archived: n.Archived, Color: n.Color}
}

// NoteAttributes are the fields that cannot be set when a note is created and
// are applied afterwards.
type NoteAttributes struct {
	Pinned   bool  `json:"pinned"`
	Archived bool  `json:"archived"`
	Color    Color `json:"color"`
}

type Attachment struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
}

// Clone returns a deep copy so callers can hand out notes without sharing
// slices with the owner.
func (n *Note) Clone() *Note {
	c := *n
	c.Labels = append([]string(nil), n.Labels...)
	c.Attachments = append([]Attachment(nil), n.Attachments...)
	c.Reminders = append([]Reminder(nil), n.Reminders...)
	return &c
}
