package migrate

import (
	"context"
	"time"
)

// Sleeper blocks for d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

// Options tune the pacing of a run. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	// Delay is the cooldown between items that wrote to the destination.
	Delay time.Duration
	// RetryBase is the first backoff; attempt n waits RetryBase * 2^n.
	RetryBase time.Duration
	// MaxRetries is the number of attempts per item, including the first.
	MaxRetries int
	// FlushEvery forces a sync once this many notes were copied since the
	// last one.
	FlushEvery int
	// Sleep defaults to a context-aware time.Sleep.
	Sleep Sleeper
}

func DefaultOptions() Options {
	return Options{
		Delay:      2 * time.Second,
		RetryBase:  2 * time.Second,
		MaxRetries: 3,
		FlushEvery: 20,
	}
}

func (o Options) normalized() Options {
	if o.MaxRetries < 1 {
		o.MaxRetries = 1
	}
	if o.FlushEvery < 1 {
		o.FlushEvery = 1
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
