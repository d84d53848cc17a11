package migrate

import (
	"context"
	"errors"
	"time"

	"github.com/xaenox/keep-migrate/internal/session"
	"go.uber.org/zap"
)

// backoff returns the wait after the failed attempt (zero based).
func (m *Migrator) backoff(attempt int) time.Duration {
	return m.opts.RetryBase * time.Duration(1<<uint(attempt))
}

// retry runs fn up to MaxRetries times, sleeping RetryBase * 2^attempt
// between attempts. Errors whose kind is not retryable end the loop at once.
func (m *Migrator) retry(ctx context.Context, phase Phase, title string, fn func() error) error {
	var err error
	for attempt := 0; attempt < m.opts.MaxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if isCanceled(err) || !session.KindOf(err).Retryable() {
			return err
		}
		if attempt == m.opts.MaxRetries-1 {
			break
		}

		wait := m.backoff(attempt)
		m.logger.Debug("Retrying",
			zap.String("phase", string(phase)),
			zap.String("title", title),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))
		m.report(Event{
			Phase:   phase,
			Kind:    EventRetry,
			Title:   title,
			Attempt: attempt + 1,
			Delay:   wait,
			Err:     err,
		})
		if serr := m.opts.Sleep(ctx, wait); serr != nil {
			return serr
		}
	}
	return err
}

// flush syncs the destination with the same bounded retry as item writes.
// A failed flush is reported, never fatal.
func (m *Migrator) flush(ctx context.Context, phase Phase) bool {
	err := m.retry(ctx, phase, "", func() error {
		return m.dst.Sync(ctx)
	})
	if err != nil {
		m.report(Event{Phase: phase, Kind: EventFlushFailed, Account: m.dst.Account(), Err: err})
		return false
	}
	m.report(Event{Phase: phase, Kind: EventFlush, Account: m.dst.Account()})
	return true
}

// cooldown observes the inter-item delay.
func (m *Migrator) cooldown(ctx context.Context) error {
	return m.opts.Sleep(ctx, m.opts.Delay)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
