package migrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/keep-migrate/internal/session"
)

func TestReconcileLabels_CreatesMissing(t *testing.T) {
	h := newHarness(t)
	srcPersonal := h.label(srcAccount, "Personal")
	h.label(srcAccount, "Work")
	dstPersonal := h.label(dstAccount, "Personal")
	h.label(dstAccount, "Travel")

	labels, res, err := h.migrator().ReconcileLabels(h.ctx)
	require.NoError(t, err)

	assert.Equal(t, LabelResult{Existing: 2, Created: 1}, res)
	require.Len(t, labels, 3)
	assert.Equal(t, dstPersonal.ID, labels["Personal"].ID)
	assert.NotEqual(t, srcPersonal.ID, labels["Personal"].ID)
	assert.Contains(t, labels, "Travel")

	dstLabels, err := h.dst.Labels(h.ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(dstLabels))
	for _, l := range dstLabels {
		names = append(names, l.Name)
	}
	assert.ElementsMatch(t, []string{"Personal", "Travel", "Work"}, names)
	assert.Len(t, h.rec.Kind(EventLabelCreated), 1)
}

func TestReconcileLabels_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.label(srcAccount, "Personal")
	h.label(srcAccount, "Work")

	_, first, err := h.migrator().ReconcileLabels(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	_, second, err := h.migrator().ReconcileLabels(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, LabelResult{Existing: 2}, second)
}

func TestReconcileLabels_FailureDoesNotStopOthers(t *testing.T) {
	h := newHarness(t)
	h.label(srcAccount, "Broken")
	h.label(srcAccount, "Fine")
	h.svc.FailNext(dstAccount, session.OpCreateLabel, 3, nil)

	labels, res, err := h.migrator().ReconcileLabels(h.ctx)
	require.NoError(t, err)

	assert.Equal(t, LabelResult{Created: 1, Failed: 1}, res)
	assert.NotContains(t, labels, "Broken")
	assert.Contains(t, labels, "Fine")

	failed := h.rec.Kind(EventLabelFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "Broken", failed[0].Title)
	assert.Error(t, failed[0].Err)
}

func TestReconcileLabels_RetriesTransientFailure(t *testing.T) {
	h := newHarness(t)
	h.label(srcAccount, "Personal")
	h.svc.FailNext(dstAccount, session.OpCreateLabel, 1, nil)

	labels, res, err := h.migrator().ReconcileLabels(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Contains(t, labels, "Personal")
	assert.Equal(t, []time.Duration{testBase}, h.backoffs())
}

func TestReconcileLabels_EnumerationError(t *testing.T) {
	h := newHarness(t)
	h.svc.FailNext(dstAccount, session.OpLabels, 1, nil)

	_, _, err := h.migrator().ReconcileLabels(h.ctx)
	assert.ErrorIs(t, err, session.ErrInjected)
}
