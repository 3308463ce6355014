package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"morse-quiz-service/internal/app"
	"morse-quiz-service/internal/domain"
	"morse-quiz-service/internal/infra/memory"
)

func newTestService(answers *flakyAnswers, clock *fakeClock) *app.QuizService {
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(morseQuestions()), time.Minute)
	leaderboard := app.NewLeaderboardService(questions, answers, zap.NewNop(),
		app.WithRetryPolicy(app.DefaultRetryPolicy().WithTimer(newInstantTimer())),
	)
	return app.NewQuizService(
		memory.NewSessionStore(),
		questions,
		answers,
		answers,
		leaderboard,
		zap.NewNop(),
		app.WithClock(clock.Now),
	)
}

func answerAll(t *testing.T, service *app.QuizService, userID string, clock *fakeClock, perQuestion time.Duration) {
	t.Helper()
	ctx := context.Background()
	for _, q := range morseQuestions() {
		clock.Advance(perQuestion)
		for _, r := range q.CorrectAnswer {
			if _, err := service.Append(ctx, userID, domain.Symbol(string(r))); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
		if _, err := service.Submit(ctx, userID); err != nil {
			t.Fatalf("submit %s: %v", q.ID, err)
		}
	}
}

func TestQuizServiceFlowAndLeaderboard(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service := newTestService(newFlakyAnswers(), clock)

	if _, err := service.Start(ctx, domain.Identity{UserID: "u1", DisplayName: "Alice"}); err != nil {
		t.Fatalf("start u1: %v", err)
	}
	if _, err := service.Start(ctx, domain.Identity{UserID: "u2", Email: "bob@example.com"}); err != nil {
		t.Fatalf("start u2: %v", err)
	}

	answerAll(t, service, "u1", clock, 5*time.Second)

	// u2 gets only the first question right.
	clock.Advance(2 * time.Second)
	_, _ = service.Append(ctx, "u2", domain.Dot)
	_, _ = service.Append(ctx, "u2", domain.Dash)
	res, err := service.Submit(ctx, "u2")
	if err != nil || !res.Correct {
		t.Fatalf("u2 submit: %+v (%v)", res, err)
	}

	snap, err := service.Snapshot("u1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.State != app.StateCompleted {
		t.Fatalf("expected u1 to be done, got %s", snap.State)
	}

	lb, err := service.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", lb.Entries)
	}
	first, second := lb.Entries[0], lb.Entries[1]
	if first.DisplayName != "Alice" || first.ScorePercent != 100 || first.TotalTimeSeconds != 15 {
		t.Fatalf("unexpected leader %+v", first)
	}
	if second.DisplayName != "bob@example.com" || second.CorrectCount != 1 {
		t.Fatalf("unexpected runner-up %+v", second)
	}
}

func TestQuizServiceRestartResumesProgress(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	answers := newFlakyAnswers()
	service := newTestService(answers, clock)

	if _, err := service.Start(ctx, domain.Identity{UserID: "u1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _ = service.Append(ctx, "u1", domain.Dot)
	_, _ = service.Append(ctx, "u1", domain.Dash)
	if _, err := service.Submit(ctx, "u1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	service.Leave(ctx, "u1")

	if _, err := service.Snapshot("u1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after leaving, got %v", err)
	}

	snap, err := service.Start(ctx, domain.Identity{UserID: "u1"})
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if snap.Index != 1 || snap.State != app.StateActive {
		t.Fatalf("expected to resume at index 1, got %+v", snap)
	}
}

func TestQuizServiceUnknownSession(t *testing.T) {
	ctx := context.Background()
	service := newTestService(newFlakyAnswers(), newFakeClock())

	if _, err := service.Append(ctx, "ghost", domain.Dot); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("append: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := service.Submit(ctx, "ghost"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("submit: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := service.Navigate(ctx, "ghost", 0); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("navigate: expected ErrSessionNotFound, got %v", err)
	}
}

func TestQuizServiceSharesSessionBetweenConnections(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service := newTestService(newFlakyAnswers(), clock)

	first, err := service.Start(ctx, domain.Identity{UserID: "u1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.Append(ctx, "u1", domain.Dot); err != nil {
		t.Fatalf("append: %v", err)
	}

	clock.Advance(3 * time.Second)
	second, err := service.Start(ctx, domain.Identity{UserID: "u1"})
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if second.Input != "." || !second.StartedAt.Equal(first.StartedAt) {
		t.Fatalf("joining must not reset the live session, got %+v", second)
	}

	service.Leave(ctx, "u1")
	snap, err := service.Append(ctx, "u1", domain.Dash)
	if err != nil {
		t.Fatalf("append after one leave: %v", err)
	}
	if snap.Input != ".-" {
		t.Fatalf("expected input .-, got %q", snap.Input)
	}

	service.Leave(ctx, "u1")
	if _, err := service.Snapshot("u1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected the session gone after the last leave, got %v", err)
	}
}

func TestQuizServiceFailedStartReleasesSession(t *testing.T) {
	ctx := context.Background()
	answers := newFlakyAnswers()
	answers.listUserErr = errBackend
	service := newTestService(answers, newFakeClock())

	if _, err := service.Start(ctx, domain.Identity{UserID: "u1"}); !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if _, err := service.Snapshot("u1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("a failed start must not keep the session, got %v", err)
	}

	answers.listUserErr = nil
	snap, err := service.Start(ctx, domain.Identity{UserID: "u1"})
	if err != nil || snap.State != app.StateActive {
		t.Fatalf("expected a clean start once the store is back, got %+v (%v)", snap, err)
	}
}

// restoringSessions hands back a fixed checkpoint for a fresh session.
type restoringSessions struct {
	*memory.SessionStore
	resume app.Resume
}

func (r restoringSessions) Restore(context.Context, string) (app.Resume, bool) {
	return r.resume, true
}

func TestQuizServiceStartRestoresCheckpoint(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	answers := newFlakyAnswers()
	_ = answers.UpsertAnswer(ctx, domain.AnswerRecord{UserID: "u1", QuestionID: "q1", IsCorrect: true})

	startedAt := clock.Now().Add(-20 * time.Second)
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(morseQuestions()), time.Minute)
	service := app.NewQuizService(
		restoringSessions{SessionStore: memory.NewSessionStore(), resume: app.Resume{Index: 1, Input: "-..", StartedAt: startedAt}},
		questions,
		answers,
		answers,
		app.NewLeaderboardService(questions, answers, zap.NewNop()),
		zap.NewNop(),
		app.WithClock(clock.Now),
	)

	snap, err := service.Start(ctx, domain.Identity{UserID: "u1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap.Index != 1 || snap.Input != "-.." || !snap.StartedAt.Equal(startedAt) {
		t.Fatalf("expected the checkpoint to be restored, got %+v", snap)
	}

	_, _ = service.Append(ctx, "u1", domain.Dot)
	res, err := service.Submit(ctx, "u1")
	if err != nil || !res.Correct || res.Record.TimeTakenSeconds != 20 {
		t.Fatalf("expected time counted from the restored start, got %+v (%v)", res.Record, err)
	}
}
