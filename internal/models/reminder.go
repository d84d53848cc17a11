package models

import (
	"fmt"
	"time"
)

type Recurrence string

const (
	RecurrenceNone    Recurrence = ""
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceYearly  Recurrence = "yearly"
)

func ParseRecurrence(s string) (Recurrence, error) {
	switch r := Recurrence(s); r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return r, nil
	}
	return "", fmt.Errorf("unknown recurrence %q", s)
}

// Reminder schedules a note for a point in time, optionally repeating.
type Reminder struct {
	DueAt      time.Time  `json:"due_at"`
	Recurrence Recurrence `json:"recurrence,omitempty"`
}
