package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"morse-quiz-service/internal/domain"
	"morse-quiz-service/internal/metrics"
)

const (
	// LeaderboardSize is how many entries the standings keep.
	LeaderboardSize = 10
	// DefaultPageSize is the number of answer records read per page.
	DefaultPageSize = 100
)

// ComputeLeaderboard ranks users by the share of questions they answered
// correctly, breaking ties by total time. Each question counts once per user
// no matter how many correct records exist for it.
func ComputeLeaderboard(records []domain.ScoredAnswer, totalQuestions int) []domain.LeaderboardEntry {
	type standing struct {
		userID      string
		displayName string
		counted     map[string]domain.ScoredAnswer
	}

	byUser := make(map[string]*standing)
	for _, r := range records {
		if !r.IsCorrect {
			continue
		}
		s, ok := byUser[r.UserID]
		if !ok {
			s = &standing{userID: r.UserID, counted: make(map[string]domain.ScoredAnswer)}
			byUser[r.UserID] = s
		}
		if s.displayName == "" {
			s.displayName = domain.Identity{UserID: r.UserID, DisplayName: r.DisplayName, Email: r.Email}.Label()
		}
		// The first correct record for a question is the one that counts.
		if prev, seen := s.counted[r.QuestionID]; seen && !r.AnsweredAt.Before(prev.AnsweredAt) {
			continue
		}
		s.counted[r.QuestionID] = r
	}

	type ranked struct {
		entry      domain.LeaderboardEntry
		finishedAt time.Time
	}
	rows := make([]ranked, 0, len(byUser))
	for _, s := range byUser {
		var total int
		var finishedAt time.Time
		for _, r := range s.counted {
			total += r.TimeTakenSeconds
			if r.AnsweredAt.After(finishedAt) {
				finishedAt = r.AnsweredAt
			}
		}
		rows = append(rows, ranked{
			entry: domain.LeaderboardEntry{
				UserID:           s.userID,
				DisplayName:      s.displayName,
				ScorePercent:     scorePercent(len(s.counted), totalQuestions),
				CorrectCount:     len(s.counted),
				TotalTimeSeconds: total,
			},
			finishedAt: finishedAt,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.entry.ScorePercent != b.entry.ScorePercent {
			return a.entry.ScorePercent > b.entry.ScorePercent
		}
		if a.entry.TotalTimeSeconds != b.entry.TotalTimeSeconds {
			return a.entry.TotalTimeSeconds < b.entry.TotalTimeSeconds
		}
		// Equal score and time: whoever got there first, then by id.
		if !a.finishedAt.Equal(b.finishedAt) {
			return a.finishedAt.Before(b.finishedAt)
		}
		return a.entry.UserID < b.entry.UserID
	})

	if len(rows) > LeaderboardSize {
		rows = rows[:LeaderboardSize]
	}
	entries := make([]domain.LeaderboardEntry, len(rows))
	for i, r := range rows {
		r.entry.Rank = i + 1
		entries[i] = r.entry
	}
	return entries
}

func scorePercent(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct*100) / float64(total)
}

// LeaderboardService reads the whole correct-answer log and aggregates it.
type LeaderboardService struct {
	questions QuestionRepository
	answers   AnswerStore
	policy    RetryPolicy
	pageSize  int
	now       func() time.Time
	log       *zap.Logger
}

// LeaderboardOption customizes a LeaderboardService.
type LeaderboardOption func(*LeaderboardService)

// WithRetryPolicy replaces the default 1s/2s/4s policy.
func WithRetryPolicy(p RetryPolicy) LeaderboardOption {
	return func(s *LeaderboardService) { s.policy = p }
}

// WithPageSize sets how many records are read per page.
func WithPageSize(n int) LeaderboardOption {
	return func(s *LeaderboardService) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithLeaderboardClock is used by tests for deterministic timestamps.
func WithLeaderboardClock(now func() time.Time) LeaderboardOption {
	return func(s *LeaderboardService) { s.now = now }
}

func NewLeaderboardService(questions QuestionRepository, answers AnswerStore, log *zap.Logger, opts ...LeaderboardOption) *LeaderboardService {
	s := &LeaderboardService{
		questions: questions,
		answers:   answers,
		policy:    DefaultRetryPolicy(),
		pageSize:  DefaultPageSize,
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Leaderboard returns the current top standings. Failed reads are retried per
// the service's policy; cancelling ctx stops any pending retry.
func (s *LeaderboardService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	start := time.Now()
	defer func() {
		metrics.LeaderboardDuration.Observe(time.Since(start).Seconds())
	}()

	var (
		records []domain.ScoredAnswer
		total   int
		partial bool
	)
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		records, total, partial, err = s.fetch(ctx)
		return err
	}, func(err error, wait time.Duration) {
		metrics.LeaderboardRetries.Inc()
		s.log.Warn("leaderboard read failed, retrying",
			zap.Error(err),
			zap.Duration("wait", wait),
		)
	})
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("%w: %w", domain.ErrLeaderboardFetch, err)
	}

	return domain.Leaderboard{
		Entries:        ComputeLeaderboard(records, total),
		TotalQuestions: total,
		Partial:        partial,
		GeneratedAt:    s.now(),
	}, nil
}

// fetch is a single attempt: count the questions and read every page of correct
// answers. A failure after the first page keeps what was already read.
func (s *LeaderboardService) fetch(ctx context.Context) ([]domain.ScoredAnswer, int, bool, error) {
	questions, err := s.questions.ListQuestions(ctx)
	if err != nil {
		return nil, 0, false, fmt.Errorf("list questions: %w", err)
	}

	var records []domain.ScoredAnswer
	for offset := 0; ; offset += s.pageSize {
		page, err := s.answers.ListCorrectAnswers(ctx, offset, s.pageSize)
		if err != nil {
			if offset == 0 {
				return nil, 0, false, fmt.Errorf("list correct answers: %w", err)
			}
			s.log.Warn("leaderboard page read failed, using partial data",
				zap.Int("offset", offset),
				zap.Int("records", len(records)),
				zap.Error(err),
			)
			return records, len(questions), true, nil
		}
		records = append(records, page...)
		if len(page) < s.pageSize {
			return records, len(questions), false, nil
		}
	}
}
