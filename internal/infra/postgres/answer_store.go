package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"morse-quiz-service/internal/domain"
)

// AnswerStore keeps the answer log and profiles in Postgres. It implements
// app.AnswerStore and app.ProfileStore.
type AnswerStore struct {
	pool *pgxpool.Pool
}

func NewAnswerStore(pool *pgxpool.Pool) *AnswerStore {
	return &AnswerStore{pool: pool}
}

// UpsertAnswer creates or overwrites the record for (user, question).
func (s *AnswerStore) UpsertAnswer(ctx context.Context, record domain.AnswerRecord) error {
	query := `
		INSERT INTO answers (
			user_id, question_id, user_answer, is_correct, time_taken_seconds, answered_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, question_id) DO UPDATE SET
			user_answer = EXCLUDED.user_answer,
			is_correct = EXCLUDED.is_correct,
			time_taken_seconds = EXCLUDED.time_taken_seconds,
			answered_at = EXCLUDED.answered_at
	`
	_, err := s.pool.Exec(ctx, query,
		record.UserID,
		record.QuestionID,
		record.SubmittedAnswer,
		record.IsCorrect,
		record.TimeTakenSeconds,
		record.AnsweredAt,
	)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

func (s *AnswerStore) ListUserAnswers(ctx context.Context, userID string) ([]domain.AnswerRecord, error) {
	query := `
		SELECT user_id, question_id, user_answer, is_correct, time_taken_seconds, answered_at
		FROM answers
		WHERE user_id = $1
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list user answers: %w", err)
	}
	defer rows.Close()

	records := make([]domain.AnswerRecord, 0)
	for rows.Next() {
		var r domain.AnswerRecord
		if err := rows.Scan(&r.UserID, &r.QuestionID, &r.SubmittedAnswer, &r.IsCorrect, &r.TimeTakenSeconds, &r.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *AnswerStore) ListCorrectAnswers(ctx context.Context, offset, limit int) ([]domain.ScoredAnswer, error) {
	query := `
		SELECT a.user_id, a.question_id, a.user_answer, a.is_correct, a.time_taken_seconds, a.answered_at,
		       COALESCE(p.display_name, ''), COALESCE(p.email, '')
		FROM answers a
		LEFT JOIN profiles p ON p.user_id = a.user_id
		WHERE a.is_correct = TRUE
		ORDER BY a.user_id, a.question_id
		OFFSET $1 LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list correct answers: %w", err)
	}
	defer rows.Close()

	page := make([]domain.ScoredAnswer, 0, limit)
	for rows.Next() {
		var r domain.ScoredAnswer
		if err := rows.Scan(
			&r.UserID, &r.QuestionID, &r.SubmittedAnswer, &r.IsCorrect, &r.TimeTakenSeconds, &r.AnsweredAt,
			&r.DisplayName, &r.Email,
		); err != nil {
			return nil, fmt.Errorf("scan correct answer: %w", err)
		}
		page = append(page, r)
	}
	return page, rows.Err()
}

func (s *AnswerStore) UpsertProfile(ctx context.Context, identity domain.Identity) error {
	query := `
		INSERT INTO profiles (user_id, display_name, email, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, identity.UserID, identity.DisplayName, identity.Email); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
