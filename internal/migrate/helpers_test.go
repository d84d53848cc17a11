package migrate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaenox/keep-migrate/internal/models"
	"github.com/xaenox/keep-migrate/internal/session"
	"go.uber.org/zap"
)

const (
	srcAccount = "src@example.com"
	dstAccount = "dst@example.com"

	testDelay = time.Second
	testBase  = 100 * time.Millisecond
)

type harness struct {
	t   *testing.T
	ctx context.Context
	svc *session.MemoryService
	src session.Session
	dst session.Session
	rec *Recorder

	mu     sync.Mutex
	sleeps []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	svc := session.NewMemoryService()
	svc.AddAccount(srcAccount, "src-token")
	svc.AddAccount(dstAccount, "dst-token")

	src, err := svc.Authenticate(ctx, srcAccount, "src-token")
	require.NoError(t, err)
	dst, err := svc.Authenticate(ctx, dstAccount, "dst-token")
	require.NoError(t, err)

	return &harness{t: t, ctx: ctx, svc: svc, src: src, dst: dst, rec: &Recorder{}}
}

func (h *harness) options() Options {
	return Options{
		Delay:      testDelay,
		RetryBase:  testBase,
		MaxRetries: 3,
		FlushEvery: 20,
		Sleep: func(ctx context.Context, d time.Duration) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.sleeps = append(h.sleeps, d)
			return ctx.Err()
		},
	}
}

func (h *harness) migrator(tune ...func(*Options)) *Migrator {
	opts := h.options()
	for _, f := range tune {
		f(&opts)
	}
	return New(h.src, h.dst, opts, h.rec, zap.NewNop())
}

func (h *harness) seed(account string, n *models.Note, blobs ...[]byte) *models.Note {
	h.t.Helper()
	out, err := h.svc.Seed(account, n, blobs...)
	require.NoError(h.t, err)
	return out
}

func (h *harness) label(account, name string) *models.Label {
	h.t.Helper()
	l, err := h.svc.SeedLabel(account, name)
	require.NoError(h.t, err)
	return l
}

// backoffs returns the recorded sleeps that were not cooldowns.
func (h *harness) backoffs() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []time.Duration
	for _, d := range h.sleeps {
		if d != testDelay {
			out = append(out, d)
		}
	}
	return out
}

func (h *harness) cooldowns() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, d := range h.sleeps {
		if d == testDelay {
			n++
		}
	}
	return n
}

func notFound(op string) error {
	return &session.Error{Kind: session.KindNotFound, Op: op, Err: session.ErrUnknownNote}
}

func titles(notes []*models.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Title)
	}
	return out
}
