package migrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/keep-migrate/internal/models"
	"github.com/xaenox/keep-migrate/internal/session"
)

func TestCopyNotes_CopiesContentAndAttributes(t *testing.T) {
	h := newHarness(t)
	h.seed(srcAccount, &models.Note{
		Title:    "Recipe",
		Text:     "flour, water",
		Pinned:   true,
		Archived: true,
		Color:    models.ColorTeal,
	})

	res, err := h.migrator().CopyNotes(h.ctx, LabelMap{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Copied)

	notes := h.svc.Snapshot(dstAccount)
	require.Len(t, notes, 1)
	assert.Equal(t, "Recipe", notes[0].Title)
	assert.Equal(t, "flour, water", notes[0].Text)
	assert.True(t, notes[0].Pinned)
	assert.True(t, notes[0].Archived)
	assert.Equal(t, models.ColorTeal, notes[0].Color)
}

func TestCopyNotes_LabelPresentInDestination(t *testing.T) {
	h := newHarness(t)
	h.seed(srcAccount, &models.Note{Title: "Groceries", Text: "milk, eggs", Labels: []string{"Personal"}})
	h.label(dstAccount, "Personal")

	m := h.migrator()
	labels, _, err := m.ReconcileLabels(h.ctx)
	require.NoError(t, err)
	res, err := m.CopyNotes(h.ctx, labels)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, 0, res.SkippedLabels)
	notes := h.svc.Snapshot(dstAccount)
	require.Len(t, notes, 1)
	assert.Equal(t, []string{"Personal"}, notes[0].Labels)
}

func TestCopyNotes_LabelMissingFromMapping(t *testing.T) {
	h := newHarness(t)
	h.seed(srcAccount, &models.Note{Title: "Groceries", Text: "milk, eggs", Labels: []string{"Personal"}})

	res, err := h.migrator().CopyNotes(h.ctx, LabelMap{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, 1, res.SkippedLabels)
	notes := h.svc.Snapshot(dstAccount)
	require.Len(t, notes, 1)
	assert.Empty(t, notes[0].Labels)

	missing := h.rec.Kind(EventLabelMissing)
	require.Len(t, missing, 1)
	assert.Equal(t, "Groceries", missing[0].Title)
	assert.Equal(t, "Personal", missing[0].Reason)
}

func TestCopyNotes_SkipsTrashed(t *testing.T) {
	h := newHarness(t)
	h.seed(srcAccount, &models.Note{Title: "keep", Text: "me"})
	h.seed(srcAccount, &models.Note{Title: "bin", Text: "me", Trashed: true})

	res, err := h.migrator().CopyNotes(h.ctx, LabelMap{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, 1, res.SkippedTrashed)
	assert.Equal(t, []string{"keep"}, titles(h.svc.Snapshot(dstAccount)))
}

func TestCopyNotes_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.seed(srcAccount, &models.Note{Title: "one", Text: "1"})
	h.seed(srcAccount, &models.Note{Title: "two", Text: "2"})
	h.seed(srcAccount, &models.Note{Title: "", Text: ""})

	first, err := h.migrator().CopyNotes(h.ctx, LabelMap{})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Copied)

	second, err := h.migrator().CopyNotes(h.ctx, LabelMap{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Copied)
	assert.Equal(t, 3, second.SkippedExisting)
	assert.Len(t, h.svc.Snapshot(dstAccount), 3)
}

func TestCopyNotes_ExistingCopyLeftUntouched(t *testing.T) {
	h := newHarness(t)
	h.seed(srcAccount, &models.Note{Title: "Groceries", Text: "milk", Pinned: true})
	h.seed(dstAccount, &models.Note{Title: "Groceries", Text: "milk"})

	res, err := h.migrator().CopyNotes(h.ctx, LabelMap{})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Copied)
	assert.Equal(t, 1, res.SkippedExisting)
	notes := h.svc.Snapshot(dstAccount)
	require.Len(t, notes, 1)
	assert.False(t, notes[0].Pinned)
	assert.Zero(t, h.cooldowns())
}

func TestCopyNotes_DuplicateSourceKeysCopiedOnce(t *testing.T) {
	h := newHarness(t)
	h.seed(srcAccount, &models.Note{Title: "", Text: ""})
	h.seed(srcAccount, &models.Note{Title: "", Text: ""})

	res, err := h.migrator().CopyNotes(h.ctx, LabelMap{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, 1, res.SkippedExisting)
	assert.Len(t, h.svc.Snapshot(dstAccount), 1)
	assert.Len(t, h.rec.Kind(EventDuplicateKey), 1)
}

func TestCopyNotes_RetrySucceedsAfterTransientFailures(t *testing.T) {
	h := newHarness(t)
	h.seed(srcAccount, &models.Note{Title: "flaky", Text: "x"})
	h.svc.FailNext(dstAccount, session.OpCreateNote, 2, nil)

	res, err := h.migrator().CopyNotes(h.ctx, LabelMap{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, []time.Duration{testBase, 2 * testBase}, h.backoffs())

	retries := h.rec.Kind(EventRetry)
	require.Len(t, retries, 2)
	assert.Equal(t, 1, retries[0].Attempt)
	assert.Equal(t, 2, retries[1].Attempt)
	assert.Equal(t, retries[0].Delay*2, retries[1].Delay)
}

func TestCopyNotes_ExhaustedRetriesSkipAndFlush(t *testing.T) {
	h := newHarness(t)
	h.seed(srcAccount, &models.Note{Title: "doomed", Text: "x"})
	h.seed(srcAccount, &models.Note{Title: "fine", Text: "y"})
	h.svc.FailNext(dstAccount, session.OpCreateNote, 3, nil)

	res, err := h.migrator().CopyNotes(h.ctx, LabelMap{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, []string{"fine"}, titles(h.svc.Snapshot(dstAccount)))
	// Two backoffs for three attempts, none after the last one.
	assert.Equal(t, []time.Duration{testBase, 2 * testBase}, h.backoffs())

	failed := h.rec.Kind(EventNoteFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "doomed", failed[0].Title)
	assert.ErrorIs(t, failed[0].Err, session.ErrInjected)

	// One flush right after the failure, one at the end of the pass.
	assert.Equal(t, 2, h.svc.Syncs(dstAccount))
	assert.Equal(t, 2, res.Flushes)
}

func TestCopyNotes_RetryDoesNotDuplicate(t *testing.T) {
	h := newHarness(t)
	h.seed(srcAccount, &models.Note{Title: "partial", Text: "x", Color: models.ColorRed})
	h.svc.FailNext(dstAccount, session.OpUpdateNote, 1, nil)

	res, err := h.migrator().CopyNotes(h.ctx, LabelMap{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Copied)
	notes := h.svc.Snapshot(dstAccount)
	require.Len(t, notes, 1)
	assert.Equal(t, models.ColorRed, notes[0].Color)
}

func TestCopyNotes_NotFoundIsNotRetried(t *testing.T) {
	h := newHarness(t)
	h.seed(srcAccount, &models.Note{Title: "gone", Text: "x"})
	h.svc.FailNext(dstAccount, session.OpCreateNote, 1, notFound(session.OpCreateNote))

	res, err := h.migrator().CopyNotes(h.ctx, LabelMap{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, h.backoffs())
	assert.Empty(t, h.rec.Kind(EventRetry))
}

func TestCopyNotes_AttachmentFailureDoesNotAbort(t *testing.T) {
	h := newHarness(t)
	h.seed(srcAccount, &models.Note{Title: "pics", Text: "x"}, []byte("one"), []byte("two"))
	h.svc.FailNext(dstAccount, session.OpAddImage, 1, nil)

	res, err := h.migrator().CopyNotes(h.ctx, LabelMap{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, 1, res.FailedAttachments)
	notes := h.svc.Snapshot(dstAccount)
	require.Len(t, notes, 1)
	require.Len(t, notes[0].Attachments, 1)

	blob, err := h.dst.Blob(h.ctx, notes[0].ID, notes[0].Attachments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), blob)
	assert.Len(t, h.rec.Kind(EventAttachmentFailed), 1)
}

func TestCopyNotes_FlushCadence(t *testing.T) {
	h := newHarness(t)
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		h.seed(srcAccount, &models.Note{Title: title})
	}

	res, err := h.migrator(func(o *Options) { o.FlushEvery = 2 }).CopyNotes(h.ctx, LabelMap{})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Copied)
	// After b, after d, and the remainder at the end.
	assert.Equal(t, 3, res.Flushes)
	assert.Equal(t, 3, h.svc.Syncs(dstAccount))
	assert.Zero(t, h.svc.Pending(dstAccount))
}

func TestCopyNotes_FewerThanThresholdStillFlushed(t *testing.T) {
	h := newHarness(t)
	h.seed(srcAccount, &models.Note{Title: "only"})

	res, err := h.migrator().CopyNotes(h.ctx, LabelMap{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Flushes)
	assert.Zero(t, h.svc.Pending(dstAccount))
}

func TestCopyNotes_CooldownBetweenNotes(t *testing.T) {
	h := newHarness(t)
	h.seed(srcAccount, &models.Note{Title: "a"})
	h.seed(srcAccount, &models.Note{Title: "b"})
	h.seed(srcAccount, &models.Note{Title: "c", Trashed: true})

	_, err := h.migrator().CopyNotes(h.ctx, LabelMap{})
	require.NoError(t, err)
	assert.Equal(t, 2, h.cooldowns())
}

func TestCopyNotes_FlushFailureIsReported(t *testing.T) {
	h := newHarness(t)
	h.seed(srcAccount, &models.Note{Title: "a"})
	h.svc.FailNext(dstAccount, session.OpSync, 3, nil)

	res, err := h.migrator().CopyNotes(h.ctx, LabelMap{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Copied)
	assert.Zero(t, res.Flushes)
	assert.Len(t, h.rec.Kind(EventFlushFailed), 1)
}
