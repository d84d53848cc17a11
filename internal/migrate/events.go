package migrate

import (
	"sync"
	"time"
)

type Phase string

const (
	PhaseInventory Phase = "inventory"
	PhaseLabels    Phase = "labels"
	PhaseNotes     Phase = "notes"
	PhaseReminders Phase = "reminders"
)

type EventKind string

const (
	EventNoteCopied        EventKind = "note_copied"
	EventNoteSkipped       EventKind = "note_skipped"
	EventNoteFailed        EventKind = "note_failed"
	EventRetry             EventKind = "retry"
	EventLabelCreated      EventKind = "label_created"
	EventLabelFailed       EventKind = "label_failed"
	EventLabelMissing      EventKind = "label_missing"
	EventAttachmentFailed  EventKind = "attachment_failed"
	EventRemindersCopied   EventKind = "reminders_copied"
	EventReminderUnmatched EventKind = "reminder_unmatched"
	EventReminderFailed    EventKind = "reminder_failed"
	EventDuplicateKey      EventKind = "duplicate_key"
	EventFlush             EventKind = "flush"
	EventFlushFailed       EventKind = "flush_failed"
)

// Skip reasons carried in Event.Reason.
const (
	ReasonTrashed  = "trashed"
	ReasonExisting = "already_in_destination"
)

// Event is one outcome the migrator wants the caller to know about. Title
// names the note or label involved.
type Event struct {
	Phase   Phase
	Kind    EventKind
	Title   string
	Account string
	Reason  string
	Attempt int
	Delay   time.Duration
	Count   int
	Err     error
}

// Reporter receives events in the order they happen.
type Reporter interface {
	Report(Event)
}

type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

// Discard drops every event.
var Discard Reporter = ReporterFunc(func(Event) {})

// Multi forwards each event to every reporter.
type Multi []Reporter

func (m Multi) Report(e Event) {
	for _, r := range m {
		r.Report(e)
	}
}

// Recorder keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kind returns the recorded events of kind k.
func (r *Recorder) Kind(k EventKind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}
