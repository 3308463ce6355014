package app_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"morse-quiz-service/internal/app"
)

func TestDefaultRetryPolicyDelays(t *testing.T) {
	got := app.DefaultRetryPolicy().Delays()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRetryPolicyWithoutRetries(t *testing.T) {
	p := app.RetryPolicy{MaxRetries: 0, BaseDelay: time.Second, Multiplier: 2}
	if d := p.Delays(); len(d) != 0 {
		t.Fatalf("expected no delays, got %v", d)
	}

	attempts := 0
	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		return errBackend
	}, nil)
	if !errors.Is(err, errBackend) || attempts != 1 {
		t.Fatalf("expected a single failed attempt, got %d (%v)", attempts, err)
	}
}

func TestRetryPolicyDoStopsOnSuccess(t *testing.T) {
	timer := newInstantTimer()
	p := app.DefaultRetryPolicy().WithTimer(timer)

	attempts := 0
	var notified []time.Duration
	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errBackend
		}
		return nil
	}, func(_ error, wait time.Duration) {
		notified = append(notified, wait)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if want := []time.Duration{time.Second}; !reflect.DeepEqual(notified, want) || !reflect.DeepEqual(timer.Waits(), want) {
		t.Fatalf("expected one 1s wait, notified %v timer %v", notified, timer.Waits())
	}
}
