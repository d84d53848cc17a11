package migrate

import (
	"context"
	"fmt"

	"github.com/xaenox/keep-migrate/internal/models"
	"go.uber.org/zap"
)

// LabelMap maps a label name to the destination label carrying it.
type LabelMap map[string]*models.Label

type LabelResult struct {
	Existing int
	Created  int
	Failed   int
}

// ReconcileLabels creates every source label name missing from the
// destination. Each creation is retried on its own; a label that still fails
// is reported and left out of the map.
func (m *Migrator) ReconcileLabels(ctx context.Context) (LabelMap, LabelResult, error) {
	var res LabelResult

	dstLabels, err := m.dst.Labels(ctx)
	if err != nil {
		return nil, res, fmt.Errorf("listing destination labels: %w", err)
	}
	srcLabels, err := m.src.Labels(ctx)
	if err != nil {
		return nil, res, fmt.Errorf("listing source labels: %w", err)
	}

	labels := make(LabelMap, len(dstLabels)+len(srcLabels))
	for _, l := range dstLabels {
		if _, ok := labels[l.Name]; !ok {
			labels[l.Name] = l
		}
	}
	res.Existing = len(labels)

	for _, l := range srcLabels {
		if _, ok := labels[l.Name]; ok {
			continue
		}

		name := l.Name
		var created *models.Label
		err := m.retry(ctx, PhaseLabels, name, func() error {
			var err error
			created, err = m.dst.CreateLabel(ctx, name)
			return err
		})
		if isCanceled(err) {
			return labels, res, err
		}
		if err != nil {
			res.Failed++
			m.logger.Warn("Failed to create label", zap.String("label", name), zap.Error(err))
			m.report(Event{Phase: PhaseLabels, Kind: EventLabelFailed, Title: name, Err: err})
			continue
		}

		labels[name] = created
		res.Created++
		m.report(Event{Phase: PhaseLabels, Kind: EventLabelCreated, Title: name})
	}

	return labels, res, nil
}
