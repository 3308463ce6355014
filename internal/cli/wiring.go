package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"morse-quiz-service/internal/app"
	"morse-quiz-service/internal/config"
	"morse-quiz-service/internal/domain"
	"morse-quiz-service/internal/infra/memory"
	"morse-quiz-service/internal/infra/postgres"
	redisinfra "morse-quiz-service/internal/infra/redis"
	"morse-quiz-service/internal/infra/sqlite"
)

// answerBackend is a store that keeps both answers and profiles.
type answerBackend interface {
	app.AnswerStore
	app.ProfileStore
}

type questionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// backend holds the wired service and everything that must be closed with it.
type backend struct {
	service *app.QuizService
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func buildBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (*backend, error) {
	b := &backend{}

	var (
		answers answerBackend
		loader  questionLoader
	)
	switch cfg.Driver() {
	case config.DriverPostgres:
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		answers = postgres.NewAnswerStore(pool)
		loader = postgres.NewQuestionLoader(pool)

	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, sqliteDSN(cfg.SQLite.Path))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		b.closers = append(b.closers, func() { _ = store.Close() })
		if err := store.SeedQuestions(ctx, morseAlphabet()); err != nil {
			b.Close()
			return nil, err
		}
		answers = store
		loader = store

	default:
		store := memory.NewAnswerStore()
		answers = store
		loader = memory.NewStaticQuestionLoader(morseAlphabet())
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionRepository
	if redisClient != nil {
		questions = redisinfra.NewQuestionRepository(redisClient, loader, questionTTL)
	} else {
		questions = memory.NewQuestionRepository(loader, questionTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisinfra.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute), log)
	} else {
		sessions = memory.NewSessionStore()
	}

	leaderboard := app.NewLeaderboardService(questions, answers, log,
		app.WithRetryPolicy(retryPolicy(cfg)),
		app.WithPageSize(cfg.Leaderboard.PageSize),
	)
	b.service = app.NewQuizService(sessions, questions, answers, answers, leaderboard, log)

	log.Info("backend ready",
		zap.String("driver", cfg.Driver()),
		zap.Bool("redis", redisClient != nil),
	)
	return b, nil
}

func retryPolicy(cfg config.Config) app.RetryPolicy {
	policy := app.DefaultRetryPolicy()
	if cfg.Leaderboard.MaxRetries != nil {
		policy.MaxRetries = *cfg.Leaderboard.MaxRetries
	}
	policy.BaseDelay = config.TTLDuration(cfg.Leaderboard.BaseDelay, policy.BaseDelay)
	return policy
}

func sqliteDSN(path string) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)", path)
}
