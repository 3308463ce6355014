package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // driver: sqlite

	"morse-quiz-service/internal/domain"
)

const defaultDSN = "file:morse-quiz.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"

// Store is a single-file SQLite backend. It loads questions and implements
// app.AnswerStore and app.ProfileStore.
type Store struct {
	db *sql.DB
}

// Open opens the database and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  ordinal INTEGER NOT NULL UNIQUE,
  prompt TEXT NOT NULL,
  correct_answer TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
  user_id TEXT PRIMARY KEY,
  display_name TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS answers (
  user_id TEXT NOT NULL,
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  user_answer TEXT NOT NULL,
  is_correct INTEGER NOT NULL,
  time_taken_seconds INTEGER NOT NULL DEFAULT 0,
  answered_at INTEGER NOT NULL,
  PRIMARY KEY (user_id, question_id)
);

CREATE INDEX IF NOT EXISTS answers_correct_idx ON answers (is_correct, user_id, question_id);
`

// SeedQuestions inserts questions that are not present yet.
func (s *Store) SeedQuestions(ctx context.Context, questions []domain.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range questions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO questions (id, ordinal, prompt, correct_answer) VALUES (?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
			q.ID, q.Ordinal, q.Prompt, q.CorrectAnswer,
		); err != nil {
			return fmt.Errorf("seed question %s: %w", q.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, ordinal, prompt, correct_answer FROM questions ORDER BY ordinal ASC`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	questions := make([]domain.Question, 0)
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Ordinal, &q.Prompt, &q.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *Store) UpsertAnswer(ctx context.Context, record domain.AnswerRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO answers (user_id, question_id, user_answer, is_correct, time_taken_seconds, answered_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, question_id) DO UPDATE SET
			user_answer = excluded.user_answer,
			is_correct = excluded.is_correct,
			time_taken_seconds = excluded.time_taken_seconds,
			answered_at = excluded.answered_at`,
		record.UserID, record.QuestionID, record.SubmittedAnswer,
		boolToInt(record.IsCorrect), record.TimeTakenSeconds, record.AnsweredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

func (s *Store) ListUserAnswers(ctx context.Context, userID string) ([]domain.AnswerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, question_id, user_answer, is_correct, time_taken_seconds, answered_at
		FROM answers WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user answers: %w", err)
	}
	defer rows.Close()

	records := make([]domain.AnswerRecord, 0)
	for rows.Next() {
		var (
			r          domain.AnswerRecord
			correct    int
			answeredAt int64
		)
		if err := rows.Scan(&r.UserID, &r.QuestionID, &r.SubmittedAnswer, &correct, &r.TimeTakenSeconds, &answeredAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		r.IsCorrect = correct != 0
		r.AnsweredAt = time.Unix(0, answeredAt).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) ListCorrectAnswers(ctx context.Context, offset, limit int) ([]domain.ScoredAnswer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.user_id, a.question_id, a.user_answer, a.time_taken_seconds, a.answered_at,
		       COALESCE(p.display_name, ''), COALESCE(p.email, '')
		FROM answers a
		LEFT JOIN profiles p ON p.user_id = a.user_id
		WHERE a.is_correct = 1
		ORDER BY a.user_id, a.question_id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list correct answers: %w", err)
	}
	defer rows.Close()

	page := make([]domain.ScoredAnswer, 0)
	for rows.Next() {
		var (
			r          domain.ScoredAnswer
			answeredAt int64
		)
		if err := rows.Scan(&r.UserID, &r.QuestionID, &r.SubmittedAnswer, &r.TimeTakenSeconds, &answeredAt, &r.DisplayName, &r.Email); err != nil {
			return nil, fmt.Errorf("scan correct answer: %w", err)
		}
		r.IsCorrect = true
		r.AnsweredAt = time.Unix(0, answeredAt).UTC()
		page = append(page, r)
	}
	return page, rows.Err()
}

func (s *Store) UpsertProfile(ctx context.Context, identity domain.Identity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, display_name, email) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET display_name = excluded.display_name, email = excluded.email`,
		identity.UserID, identity.DisplayName, identity.Email,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
