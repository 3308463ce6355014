package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"morse-quiz-service/internal/domain"
)

// QuestionRepository loads the ordered question list (from cache/backing store).
type QuestionRepository interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

// AnswerStore is the answer log. UpsertAnswer overwrites any earlier record for
// the same (user, question) pair.
type AnswerStore interface {
	UpsertAnswer(ctx context.Context, record domain.AnswerRecord) error
	ListUserAnswers(ctx context.Context, userID string) ([]domain.AnswerRecord, error)
	// ListCorrectAnswers pages through correct records of all users, joined with
	// their profiles. A page shorter than limit is the last one.
	ListCorrectAnswers(ctx context.Context, offset, limit int) ([]domain.ScoredAnswer, error)
}

// ProfileStore keeps the names shown on the leaderboard.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, identity domain.Identity) error
}

// SessionRepository abstracts where live sessions are kept (in-memory, Redis, etc).
// Sessions are reference counted: every connection of a user shares one session.
type SessionRepository interface {
	// GetOrCreate returns the user's session and takes a reference on it.
	GetOrCreate(userID string, create func() *Session) *Session
	Get(userID string) (*Session, bool)
	Checkpoint(ctx context.Context, snap Snapshot)
	// Restore returns the last checkpoint of a session that is no longer live.
	Restore(ctx context.Context, userID string) (Resume, bool)
	// Release drops a reference; the last one removes the session.
	Release(userID string)
}

// QuizService contains the quiz use cases.
type QuizService struct {
	sessions    SessionRepository
	questions   QuestionRepository
	answers     AnswerStore
	profiles    ProfileStore
	leaderboard *LeaderboardService
	sessionOpts []SessionOption
	log         *zap.Logger
}

func NewQuizService(
	sessions SessionRepository,
	questions QuestionRepository,
	answers AnswerStore,
	profiles ProfileStore,
	leaderboard *LeaderboardService,
	log *zap.Logger,
	sessionOpts ...SessionOption,
) *QuizService {
	return &QuizService{
		sessions:    sessions,
		questions:   questions,
		answers:     answers,
		profiles:    profiles,
		leaderboard: leaderboard,
		sessionOpts: sessionOpts,
		log:         log,
	}
}

// Start registers the user's profile and joins their session. A session that
// is already live for another connection is shared as is. Every successful
// Start must be paired with a Leave.
func (s *QuizService) Start(ctx context.Context, identity domain.Identity) (Snapshot, error) {
	if err := s.profiles.UpsertProfile(ctx, identity); err != nil {
		return Snapshot{}, fmt.Errorf("%w: save profile: %w", domain.ErrFetch, err)
	}

	session := s.sessions.GetOrCreate(identity.UserID, func() *Session {
		return NewSession(identity.UserID, s.questions, s.answers, s.log, s.sessionOpts...)
	})
	snap, loaded, err := session.EnsureLoaded(ctx)
	if err != nil {
		s.sessions.Release(identity.UserID)
		return snap, err
	}
	if loaded {
		if r, ok := s.sessions.Restore(ctx, identity.UserID); ok {
			snap = session.Resume(r)
		}
	}
	s.sessions.Checkpoint(ctx, snap)
	return snap, nil
}

// Append adds a symbol to the user's input buffer.
func (s *QuizService) Append(ctx context.Context, userID string, symbol domain.Symbol) (Snapshot, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	return s.checkpoint(ctx)(session.Append(symbol))
}

// Backspace removes the last symbol from the user's input buffer.
func (s *QuizService) Backspace(ctx context.Context, userID string) (Snapshot, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	return s.checkpoint(ctx)(session.Backspace())
}

// Submit stores the user's current input as an answer to the active question.
func (s *QuizService) Submit(ctx context.Context, userID string) (SubmitResult, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return SubmitResult{}, domain.ErrSessionNotFound
	}
	res, err := session.Submit(ctx)
	if err == nil {
		s.sessions.Checkpoint(ctx, res.Snapshot)
	}
	return res, err
}

// Navigate moves the user's session to index.
func (s *QuizService) Navigate(ctx context.Context, userID string, index int) (Snapshot, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	return s.checkpoint(ctx)(session.Navigate(index))
}

// Recover moves a locked session back to an accessible question.
func (s *QuizService) Recover(ctx context.Context, userID string) (Snapshot, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	return s.checkpoint(ctx)(session.Recover())
}

// Snapshot returns the user's current session state.
func (s *QuizService) Snapshot(userID string) (Snapshot, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// Leaderboard aggregates the current standings.
func (s *QuizService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	return s.leaderboard.Leaderboard(ctx)
}

// Leave ends one connection's use of the session. The session goes away with
// the last connection; stored answers are kept.
func (s *QuizService) Leave(_ context.Context, userID string) {
	s.sessions.Release(userID)
}

func (s *QuizService) checkpoint(ctx context.Context) func(Snapshot, error) (Snapshot, error) {
	return func(snap Snapshot, err error) (Snapshot, error) {
		if err == nil {
			s.sessions.Checkpoint(ctx, snap)
		}
		return snap, err
	}
}
