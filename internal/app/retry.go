package app

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a failing read is retried and how long to wait
// between attempts. Delays grow geometrically from BaseDelay without jitter.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64

	// timer is swapped in tests to avoid real sleeps.
	timer backoff.Timer
}

// DefaultRetryPolicy waits 1s, 2s and 4s before giving up.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Multiplier: 2,
	}
}

// WithTimer returns a copy of p that waits on t instead of a wall-clock timer.
func (p RetryPolicy) WithTimer(t backoff.Timer) RetryPolicy {
	p.timer = t
	return p
}

// Delays lists the waits the policy performs when every attempt fails.
func (p RetryPolicy) Delays() []time.Duration {
	b := p.backOff()
	b.Reset()
	delays := make([]time.Duration, 0, p.MaxRetries)
	for {
		next := b.NextBackOff()
		if next == backoff.Stop {
			return delays
		}
		delays = append(delays, next)
	}
}

// Do runs op until it succeeds, the retries are exhausted or ctx is done.
// notify is called before each wait with the error that triggered it.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error, notify func(err error, wait time.Duration)) error {
	b := backoff.WithContext(p.backOff(), ctx)
	err := backoff.RetryNotifyWithTimer(func() error {
		return op(ctx)
	}, b, notify, p.timer)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p RetryPolicy) backOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.Multiplier = p.Multiplier
	if exp.Multiplier < 1 {
		exp.Multiplier = 1
	}
	exp.RandomizationFactor = 0
	exp.MaxInterval = time.Hour
	exp.MaxElapsedTime = 0
	if p.MaxRetries <= 0 {
		return &backoff.StopBackOff{}
	}
	return backoff.WithMaxRetries(exp, uint64(p.MaxRetries))
}
