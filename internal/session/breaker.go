package session

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xaenox/keep-migrate/internal/models"
	"go.uber.org/zap"
)

// BreakerConfig controls when a guarded session stops sending writes.
type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures: 5,
		OpenTimeout: 60 * time.Second,
	}
}

// GuardedSession passes mutations through a circuit breaker. While the
// breaker is open they fail fast with a transient error.
type GuardedSession struct {
	Session
	cb *gobreaker.CircuitBreaker
}

// WithBreaker wraps s. Reads are not guarded.
func WithBreaker(s Session, config BreakerConfig, logger *zap.Logger) *GuardedSession {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Account(),
		MaxRequests: 1,
		Timeout:     config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("account", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// Missing items say nothing about the health of the service.
			return err == nil || IsNotFound(err)
		},
	})
	return &GuardedSession{Session: s, cb: cb}
}

func (g *GuardedSession) guard(op string, fn func() (any, error)) (any, error) {
	v, err := g.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, newError(KindTransient, op, err)
	}
	return v, err
}

func (g *GuardedSession) CreateNote(ctx context.Context, title, text string) (*models.Note, error) {
	v, err := g.guard(OpCreateNote, func() (any, error) {
		return g.Session.CreateNote(ctx, title, text)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Note), nil
}

func (g *GuardedSession) UpdateNote(ctx context.Context, noteID string, attrs models.NoteAttributes) error {
	_, err := g.guard(OpUpdateNote, func() (any, error) {
		return nil, g.Session.UpdateNote(ctx, noteID, attrs)
	})
	return err
}

func (g *GuardedSession) CreateLabel(ctx context.Context, name string) (*models.Label, error) {
	v, err := g.guard(OpCreateLabel, func() (any, error) {
		return g.Session.CreateLabel(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Label), nil
}

func (g *GuardedSession) AddLabel(ctx context.Context, noteID, labelID string) error {
	_, err := g.guard(OpAddLabel, func() (any, error) {
		return nil, g.Session.AddLabel(ctx, noteID, labelID)
	})
	return err
}

func (g *GuardedSession) AddImage(ctx context.Context, noteID string, blob []byte) (*models.Attachment, error) {
	v, err := g.guard(OpAddImage, func() (any, error) {
		return g.Session.AddImage(ctx, noteID, blob)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Attachment), nil
}

func (g *GuardedSession) SetReminders(ctx context.Context, noteID string, reminders []models.Reminder) error {
	_, err := g.guard(OpSetReminders, func() (any, error) {
		return nil, g.Session.SetReminders(ctx, noteID, reminders)
	})
	return err
}

func (g *GuardedSession) Sync(ctx context.Context) error {
	_, err := g.guard(OpSync, func() (any, error) {
		return nil, g.Session.Sync(ctx)
	})
	return err
}

// State reports the breaker state, mainly for logs and tests.
func (g *GuardedSession) State() gobreaker.State {
	return g.cb.State()
}
