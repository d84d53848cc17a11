package migrate

import (
	"context"
	"fmt"

	"github.com/xaenox/keep-migrate/internal/models"
	"go.uber.org/zap"
)

type ReminderResult struct {
	// WithReminders counts non-trashed source notes that carry reminders.
	WithReminders int
	Copied        int
	Unmatched     int
	Ambiguous     int
	Failed        int
}

// CopyReminders attaches the reminder set of each source note to its
// destination copy. It runs after CopyNotes because a created note only
// accepts reminders once it has been synced and fetched again.
//
// SetReminders replaces the whole set, so running this pass again resends
// every reminder without duplicating any.
func (m *Migrator) CopyReminders(ctx context.Context) (ReminderResult, error) {
	var res ReminderResult

	dstNotes, err := m.dst.Notes(ctx)
	if err != nil {
		return res, fmt.Errorf("listing destination notes: %w", err)
	}
	lookup := newKeyIndex(m, PhaseReminders, m.dst.Account(), dstNotes)

	srcNotes, err := m.src.Notes(ctx)
	if err != nil {
		return res, fmt.Errorf("listing source notes: %w", err)
	}

	seen := make(map[models.Key]bool, len(srcNotes))
	for _, note := range srcNotes {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if note.Trashed {
			continue
		}
		key := note.Key()
		first := !seen[key]
		seen[key] = true

		if !note.HasReminders() {
			continue
		}
		res.WithReminders++

		if !first {
			// The destination copy belongs to the first source note with
			// this key.
			res.Ambiguous++
			m.report(Event{Phase: PhaseReminders, Kind: EventDuplicateKey, Title: note.Title, Account: m.src.Account()})
			continue
		}

		target, ok := lookup.get(key)
		if !ok {
			res.Unmatched++
			m.logger.Warn("Could not find destination note", zap.String("title", note.Title))
			m.report(Event{Phase: PhaseReminders, Kind: EventReminderUnmatched, Title: note.Title})
			continue
		}

		var fresh *models.Note
		err := m.retry(ctx, PhaseReminders, note.Title, func() error {
			if fresh == nil {
				n, err := m.dst.Get(ctx, target.ID)
				if err != nil {
					return err
				}
				fresh = n
			}
			return m.dst.SetReminders(ctx, fresh.ID, note.Reminders)
		})
		if isCanceled(err) {
			return res, err
		}
		if err != nil {
			res.Failed++
			m.logger.Error("Failed to copy reminders",
				zap.String("title", note.Title),
				zap.String("note_id", target.ID),
				zap.Error(err))
			m.report(Event{Phase: PhaseReminders, Kind: EventReminderFailed, Title: note.Title, Err: err})
		} else {
			res.Copied++
			m.report(Event{Phase: PhaseReminders, Kind: EventRemindersCopied, Title: note.Title, Count: len(note.Reminders)})
		}

		if err := m.cooldown(ctx); err != nil {
			return res, err
		}
	}

	m.flush(ctx, PhaseReminders)
	return res, nil
}
