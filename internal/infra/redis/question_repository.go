package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"morse-quiz-service/internal/app"
	"morse-quiz-service/internal/domain"
)

// QuestionLoader fetches the question list from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionRepository caches questions in Redis (one hash field per ordinal) and
// falls back to a loader on cache miss.
// Questions are stored as: HSET morse:questions {ordinal} {question JSON}
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

const questionsKey = "morse:questions"

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	if qs, ok := r.fromCache(ctx); ok {
		return qs, nil
	}

	result, err, _ := r.sf.Do(questionsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if qs, ok := r.fromCache(ctx); ok {
			return qs, nil
		}

		qs, err := r.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, questionsKey)
		for _, q := range qs {
			data, err := json.Marshal(q)
			if err != nil {
				return nil, err
			}
			pipe.HSet(ctx, questionsKey, strconv.Itoa(q.Ordinal), data)
		}
		if ttl > 0 {
			pipe.Expire(ctx, questionsKey, ttl)
		}
		// A failed cache fill only costs the next caller another load.
		_, _ = pipe.Exec(ctx)

		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) fromCache(ctx context.Context) ([]domain.Question, bool) {
	fields, err := r.client.HGetAll(ctx, questionsKey).Result()
	if err != nil || len(fields) == 0 {
		return nil, false
	}
	qs := make([]domain.Question, 0, len(fields))
	for _, raw := range fields {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, false
		}
		qs = append(qs, q)
	}
	return app.SortQuestions(qs), true
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
