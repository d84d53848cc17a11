package main

import (
	"context"
	"fmt"

	"github.com/xaenox/keep-migrate/internal/secrets"
	"github.com/xaenox/keep-migrate/internal/session"
	"github.com/xaenox/keep-migrate/pkg/config"
	"go.uber.org/zap"
)

// accounts holds the two authenticated sessions of a run.
type accounts struct {
	src     session.Session
	dst     session.Session
	closers []func() error
}

func (a *accounts) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.Authenticator, func() error, error) {
	switch cfg.Backend.Type {
	case config.BackendPostgres:
		db, err := cfg.Database()
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using PostgreSQL backend", zap.String("host", db.Host), zap.String("dbname", db.DBName))
		svc, err := session.NewPostgresService(ctx, db, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize backend: %w", err)
		}
		return svc, svc.Close, nil
	default:
		if cfg.Backend.Fixture == "" {
			logger.Warn("Using in-memory backend without a fixture")
			return session.NewMemoryService(), func() error { return nil }, nil
		}
		logger.Info("Using in-memory backend", zap.String("fixture", cfg.Backend.Fixture))
		svc, err := session.LoadFixtureFile(cfg.Backend.Fixture)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load fixture: %w", err)
		}
		return svc, func() error { return nil }, nil
	}
}

func login(ctx context.Context, auth session.Authenticator, store secrets.Store, service, account string) (session.Session, error) {
	token, err := store.Token(service, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get token for %s: %w", account, err)
	}
	s, err := auth.Authenticate(ctx, account, token)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate %s: %w", account, err)
	}
	return s, nil
}

// openAccounts authenticates both accounts. Any failure here aborts the
// run before anything is written.
func openAccounts(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*accounts, error) {
	auth, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &accounts{closers: []func() error{closeBackend}}

	store := secrets.Chain{secrets.EnvStore{}, secrets.KeyringStore{}}

	a.src, err = login(ctx, auth, store, cfg.Secrets.Service, cfg.Source.Account)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.src.Close)

	dst, err := login(ctx, auth, store, cfg.Secrets.Service, cfg.Destination.Account)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, dst.Close)

	a.dst = dst
	if cfg.Breaker.Enabled {
		a.dst = session.WithBreaker(dst, cfg.BreakerConfig(), logger)
	}

	logger.Info("Authenticated",
		zap.String("source", cfg.Source.Account),
		zap.String("destination", cfg.Destination.Account))
	return a, nil
}
