package app_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"morse-quiz-service/internal/domain"
	"morse-quiz-service/internal/infra/memory"
)

var errBackend = errors.New("backend unavailable")

func morseQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Ordinal: 1, Prompt: "A", CorrectAnswer: ".-"},
		{ID: "q2", Ordinal: 2, Prompt: "B", CorrectAnswer: "-..."},
		{ID: "q3", Ordinal: 3, Prompt: "C", CorrectAnswer: "-.-."},
	}
}

type staticQuestions struct {
	questions []domain.Question
	err       error
}

func (s staticQuestions) ListQuestions(context.Context) ([]domain.Question, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.questions, nil
}

// flakyAnswers wraps the in-memory store with injectable failures.
type flakyAnswers struct {
	*memory.AnswerStore

	mu          sync.Mutex
	upsertErr   error
	listUserErr error
	// correctErr is consulted on every page read; call counts from 1.
	correctErr func(call, offset int) error
	calls      int
}

func newFlakyAnswers() *flakyAnswers {
	return &flakyAnswers{AnswerStore: memory.NewAnswerStore()}
}

func (f *flakyAnswers) UpsertAnswer(ctx context.Context, record domain.AnswerRecord) error {
	f.mu.Lock()
	err := f.upsertErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.AnswerStore.UpsertAnswer(ctx, record)
}

func (f *flakyAnswers) ListUserAnswers(ctx context.Context, userID string) ([]domain.AnswerRecord, error) {
	if f.listUserErr != nil {
		return nil, f.listUserErr
	}
	return f.AnswerStore.ListUserAnswers(ctx, userID)
}

func (f *flakyAnswers) ListCorrectAnswers(ctx context.Context, offset, limit int) ([]domain.ScoredAnswer, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	check := f.correctErr
	f.mu.Unlock()
	if check != nil {
		if err := check(call, offset); err != nil {
			return nil, err
		}
	}
	return f.AnswerStore.ListCorrectAnswers(ctx, offset, limit)
}

func (f *flakyAnswers) setUpsertErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertErr = err
}

func (f *flakyAnswers) pageCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// instantTimer satisfies backoff.Timer. It records every requested wait and
// fires immediately.
type instantTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

func newInstantTimer() *instantTimer {
	return &instantTimer{c: make(chan time.Time, 1)}
}

func (t *instantTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.waits = append(t.waits, d)
	t.mu.Unlock()
	t.c <- time.Time{}
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time {
	return t.c
}

func (t *instantTimer) Waits() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.waits...)
}

// stuckTimer never fires; only cancellation ends the wait.
type stuckTimer struct {
	started chan time.Duration
}

func (t *stuckTimer) Start(d time.Duration) {
	select {
	case t.started <- d:
	default:
	}
}

func (t *stuckTimer) Stop() {}

func (t *stuckTimer) C() <-chan time.Time {
	return nil
}
