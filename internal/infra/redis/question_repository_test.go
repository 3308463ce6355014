package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"morse-quiz-service/internal/domain"
	"morse-quiz-service/internal/infra/memory"
)

func TestQuestionRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuestionLoader: memory.NewStaticQuestionLoader(sampleQuestions()),
	}
	repo := NewQuestionRepository(client, loader, time.Minute)

	if _, err := repo.ListQuestions(context.Background()); err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists(questionsKey) {
		t.Fatalf("expected questions hash in redis")
	}

	// Second call should hit cache, loader not incremented.
	qs, err := repo.ListQuestions(context.Background())
	if err != nil {
		t.Fatalf("list questions 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(qs) != 3 || qs[0].ID != "q1" || qs[2].ID != "q3" {
		t.Fatalf("expected cached questions in ordinal order, got %+v", qs)
	}
	if qs[1].CorrectAnswer != "-..." {
		t.Fatalf("expected answers to survive the cache, got %+v", qs[1])
	}
}

type countingLoader struct {
	memory.QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q3", Ordinal: 3, Prompt: "C", CorrectAnswer: "-.-."},
		{ID: "q1", Ordinal: 1, Prompt: "A", CorrectAnswer: ".-"},
		{ID: "q2", Ordinal: 2, Prompt: "B", CorrectAnswer: "-..."},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
