// Package migrate copies labels, notes and reminders from one account to
// another using only per-item create and update calls.
//
// A run is strictly sequential. Notes are matched across accounts by their
// (title, text) pair, so running the migrator again only adds what is still
// missing.
package migrate

import (
	"context"

	"github.com/xaenox/keep-migrate/internal/session"
	"go.uber.org/zap"
)

// Migrator reconciles dst with src. Only dst is ever mutated.
type Migrator struct {
	src      session.Session
	dst      session.Session
	opts     Options
	reporter Reporter
	logger   *zap.Logger
}

func New(src, dst session.Session, opts Options, reporter Reporter, logger *zap.Logger) *Migrator {
	if reporter == nil {
		reporter = Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{
		src:      src,
		dst:      dst,
		opts:     opts.normalized(),
		reporter: reporter,
		logger:   logger,
	}
}

// Summary aggregates the outcome of a full run.
type Summary struct {
	Source      Inventory
	Destination Inventory
	Labels      LabelResult
	Notes       NoteResult
	Reminders   ReminderResult
}

// Run reconciles labels, then notes, then reminders. Item-level failures
// are reported and counted; only enumeration failures and cancellation end
// the run early.
func (m *Migrator) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	var err error

	if sum.Source, err = CountInventory(ctx, m.src); err != nil {
		return sum, err
	}
	m.logger.Info("Counted source notes",
		zap.Int("total", sum.Source.Total),
		zap.Int("archived", sum.Source.Archived),
		zap.Int("active", sum.Source.Active))

	labels, labelResult, err := m.ReconcileLabels(ctx)
	sum.Labels = labelResult
	if err != nil {
		return sum, err
	}

	if sum.Notes, err = m.CopyNotes(ctx, labels); err != nil {
		return sum, err
	}

	if sum.Reminders, err = m.CopyReminders(ctx); err != nil {
		return sum, err
	}

	if sum.Destination, err = CountInventory(ctx, m.dst); err != nil {
		return sum, err
	}
	return sum, nil
}

func (m *Migrator) report(e Event) {
	m.reporter.Report(e)
}
