package migrate

import (
	"context"
	"fmt"

	"github.com/xaenox/keep-migrate/internal/models"
	"go.uber.org/zap"
)

type NoteResult struct {
	// Source is the number of notes enumerated in the source account.
	Source            int
	Copied            int
	SkippedTrashed    int
	SkippedExisting   int
	Failed            int
	SkippedLabels     int
	FailedAttachments int
	Flushes           int
}

// noteCopy remembers what already reached the destination so a retry
// resumes instead of creating the note twice.
type noteCopy struct {
	src         *models.Note
	created     *models.Note
	attrsSet    bool
	labelled    map[string]bool
	missing     map[string]bool
	attachments map[string]bool

	skippedLabels     int
	failedAttachments int
}

func newNoteCopy(src *models.Note) *noteCopy {
	return &noteCopy{
		src:         src,
		labelled:    make(map[string]bool),
		missing:     make(map[string]bool),
		attachments: make(map[string]bool),
	}
}

// CopyNotes creates every non-trashed source note that has no destination
// note with the same title and text. Existing copies are left untouched.
func (m *Migrator) CopyNotes(ctx context.Context, labels LabelMap) (NoteResult, error) {
	var res NoteResult

	srcNotes, err := m.src.Notes(ctx)
	if err != nil {
		return res, fmt.Errorf("listing source notes: %w", err)
	}
	dstNotes, err := m.dst.Notes(ctx)
	if err != nil {
		return res, fmt.Errorf("listing destination notes: %w", err)
	}
	res.Source = len(srcNotes)

	existing := newKeyIndex(m, PhaseNotes, m.dst.Account(), dstNotes)
	seen := make(map[models.Key]bool, len(srcNotes))
	sinceFlush := 0

	for _, note := range srcNotes {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if note.Trashed {
			res.SkippedTrashed++
			m.report(Event{Phase: PhaseNotes, Kind: EventNoteSkipped, Title: note.Title, Reason: ReasonTrashed})
			continue
		}

		key := note.Key()
		if seen[key] {
			m.report(Event{Phase: PhaseNotes, Kind: EventDuplicateKey, Title: note.Title, Account: m.src.Account()})
		}
		seen[key] = true
		if _, ok := existing.get(key); ok {
			res.SkippedExisting++
			m.report(Event{Phase: PhaseNotes, Kind: EventNoteSkipped, Title: note.Title, Reason: ReasonExisting})
			continue
		}

		c := newNoteCopy(note)
		err := m.retry(ctx, PhaseNotes, note.Title, func() error {
			return m.copyNote(ctx, c, labels)
		})
		if c.created != nil {
			existing.add(c.created)
		}
		res.SkippedLabels += c.skippedLabels
		res.FailedAttachments += c.failedAttachments
		if isCanceled(err) {
			return res, err
		}

		if err != nil {
			res.Failed++
			m.logger.Error("Failed to copy note",
				zap.String("title", note.Title),
				zap.Int("attempts", m.opts.MaxRetries),
				zap.Error(err))
			m.report(Event{Phase: PhaseNotes, Kind: EventNoteFailed, Title: note.Title, Attempt: m.opts.MaxRetries, Err: err})
			// Persist whatever reached the destination before moving on.
			if m.flush(ctx, PhaseNotes) {
				res.Flushes++
				sinceFlush = 0
			}
		} else {
			res.Copied++
			sinceFlush++
			m.report(Event{Phase: PhaseNotes, Kind: EventNoteCopied, Title: note.Title, Count: res.Copied})
			if sinceFlush >= m.opts.FlushEvery && m.flush(ctx, PhaseNotes) {
				res.Flushes++
				sinceFlush = 0
			}
		}

		if err := m.cooldown(ctx); err != nil {
			return res, err
		}
	}

	if sinceFlush > 0 && m.flush(ctx, PhaseNotes) {
		res.Flushes++
	}
	return res, nil
}

// copyNote performs the steps of one attempt that have not succeeded yet.
func (m *Migrator) copyNote(ctx context.Context, c *noteCopy, labels LabelMap) error {
	src := c.src

	if c.created == nil {
		created, err := m.dst.CreateNote(ctx, src.Title, src.Text)
		if err != nil {
			return err
		}
		c.created = created
	}
	noteID := c.created.ID

	if !c.attrsSet {
		if err := m.dst.UpdateNote(ctx, noteID, src.Attributes()); err != nil {
			return err
		}
		c.attrsSet = true
	}

	for _, name := range src.Labels {
		if c.labelled[name] || c.missing[name] {
			continue
		}
		label, ok := labels[name]
		if !ok {
			c.missing[name] = true
			c.skippedLabels++
			m.report(Event{Phase: PhaseNotes, Kind: EventLabelMissing, Title: src.Title, Reason: name})
			continue
		}
		if err := m.dst.AddLabel(ctx, noteID, label.ID); err != nil {
			return err
		}
		c.labelled[name] = true
	}

	for _, att := range src.Attachments {
		if c.attachments[att.ID] {
			continue
		}
		blob, err := m.src.Blob(ctx, src.ID, att.ID)
		if err == nil {
			_, err = m.dst.AddImage(ctx, noteID, blob)
		}
		if isCanceled(err) {
			return err
		}
		// Attachments are attempted once; a failure never fails the note.
		c.attachments[att.ID] = true
		if err != nil {
			c.failedAttachments++
			m.logger.Warn("Failed to copy attachment",
				zap.String("title", src.Title),
				zap.String("attachment_id", att.ID),
				zap.Error(err))
			m.report(Event{Phase: PhaseNotes, Kind: EventAttachmentFailed, Title: src.Title, Err: err})
		}
	}

	return nil
}
