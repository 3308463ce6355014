package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"morse-quiz-service/internal/domain"
	"morse-quiz-service/internal/metrics"
)

// State is the phase a user's session is in.
type State string

const (
	StateLoading   State = "loading"
	StateActive    State = "active"
	StateLocked    State = "locked"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Snapshot is the immutable state of a session after one transition.
// Questions and Progress are shared between snapshots and must not be modified.
type Snapshot struct {
	UserID    string              `json:"userId"`
	State     State               `json:"state"`
	Index     int                 `json:"index"`
	Input     string              `json:"input"`
	Questions []domain.Question   `json:"-"`
	Progress  domain.ProgressView `json:"progress"`
	StartedAt time.Time           `json:"startedAt"`
	// Empty is set when there are no questions to show.
	Empty bool   `json:"empty"`
	Err   string `json:"error,omitempty"`
}

// Current returns the question at the materialized index.
func (s Snapshot) Current() (domain.Question, bool) {
	if s.Index < 0 || s.Index >= len(s.Questions) {
		return domain.Question{}, false
	}
	return s.Questions[s.Index], true
}

func (s Snapshot) last() int {
	return len(s.Questions) - 1
}

// Resume is the part of a session that survives a restart: where the user was
// and what they had typed.
type Resume struct {
	Index     int
	Input     string
	StartedAt time.Time
}

// SubmitResult describes a persisted submission.
type SubmitResult struct {
	Record   domain.AnswerRecord `json:"record"`
	Correct  bool                `json:"correct"`
	Snapshot Snapshot            `json:"-"`
}

type eventKind int

const (
	evLoaded eventKind = iota
	evLoadFailed
	evAppend
	evBackspace
	evAnswered
	evNavigate
	evRecover
	evResume
)

type event struct {
	kind      eventKind
	at        time.Time
	questions []domain.Question
	progress  domain.ProgressView
	symbol    domain.Symbol
	index     int
	correct   bool
	input     string
	err       error
}

// transition is the only place a snapshot changes. It has no side effects.
func transition(s Snapshot, ev event) Snapshot {
	switch ev.kind {
	case evLoaded:
		s.Questions = ev.questions
		s.Progress = ev.progress
		s.Input = ""
		s.Err = ""
		s.StartedAt = ev.at
		switch {
		case len(ev.questions) == 0:
			s.State, s.Index, s.Empty = StateCompleted, 0, true
		case ev.progress.Finished:
			s.State, s.Index = StateCompleted, s.last()
		default:
			s.State, s.Index = StateActive, ev.progress.ActiveIndex
		}

	case evLoadFailed:
		s.State = StateFailed
		s.Err = ev.err.Error()

	case evAppend:
		s.Input += string(ev.symbol)

	case evBackspace:
		if s.Input != "" {
			s.Input = s.Input[:len(s.Input)-1]
		}

	case evAnswered:
		s.Progress = ev.progress
		if !ev.correct {
			// Input and start time are kept; time counts to the first correct answer.
			break
		}
		if s.Index < s.last() {
			s.State = StateActive
			s.Index++
			s.Input = ""
			s.StartedAt = ev.at
		} else {
			s.State = StateCompleted
		}

	case evNavigate:
		s.Index = ev.index
		s.Input = ""
		s.StartedAt = ev.at
		if CanAccess(ev.index, s.Questions, s.Progress.Outcomes) {
			s.State = StateActive
		} else {
			s.State = StateLocked
		}

	case evResume:
		s.Input = ev.input
		s.StartedAt = ev.at

	case evRecover:
		for i := s.Index - 1; i >= 0; i-- {
			if CanAccess(i, s.Questions, s.Progress.Outcomes) {
				s.State = StateActive
				s.Index = i
				s.Input = ""
				s.StartedAt = ev.at
				break
			}
		}
	}
	return s
}

// Session drives one user through the questions in order.
type Session struct {
	userID    string
	questions QuestionRepository
	answers   AnswerStore
	now       func() time.Time
	log       *zap.Logger

	// op serializes operations so only one submit is in flight.
	op   sync.Mutex
	mu   sync.RWMutex
	snap Snapshot
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithClock is used by tests for deterministic timing.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

func NewSession(userID string, questions QuestionRepository, answers AnswerStore, log *zap.Logger, opts ...SessionOption) *Session {
	s := &Session{
		userID:    userID,
		questions: questions,
		answers:   answers,
		now:       time.Now,
		log:       log.With(zap.String("user_id", userID)),
		snap:      Snapshot{UserID: userID, State: StateLoading},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserID returns the owner of the session.
func (s *Session) UserID() string {
	return s.userID
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Session) apply(ev event) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = transition(s.snap, ev)
	return s.snap
}

// Load fetches the questions and the user's answers and positions the session
// on the first question not yet answered correctly.
func (s *Session) Load(ctx context.Context) (Snapshot, error) {
	s.op.Lock()
	defer s.op.Unlock()
	return s.load(ctx)
}

// EnsureLoaded loads a session that is new or whose last load failed. A session
// already in play is returned as is; loaded reports whether a load happened.
func (s *Session) EnsureLoaded(ctx context.Context) (snap Snapshot, loaded bool, err error) {
	s.op.Lock()
	defer s.op.Unlock()

	switch current := s.Snapshot(); current.State {
	case StateLoading, StateFailed:
		snap, err = s.load(ctx)
		return snap, true, err
	default:
		return current, false, nil
	}
}

// Resume puts back the input buffer and question start time of an earlier
// run. It only applies when the session is active on the same question.
func (s *Session) Resume(r Resume) Snapshot {
	s.op.Lock()
	defer s.op.Unlock()

	snap := s.Snapshot()
	if snap.State != StateActive || r.Index != snap.Index {
		return snap
	}
	for _, c := range r.Input {
		if !domain.Symbol(string(c)).Valid() {
			return snap
		}
	}
	if r.StartedAt.IsZero() || r.StartedAt.After(s.now()) {
		return snap
	}
	return s.apply(event{kind: evResume, input: r.Input, at: r.StartedAt})
}

func (s *Session) load(ctx context.Context) (Snapshot, error) {
	var (
		questions []domain.Question
		records   []domain.AnswerRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		qs, err := s.questions.ListQuestions(gctx)
		if err != nil {
			return fmt.Errorf("list questions: %w", err)
		}
		questions = SortQuestions(qs)
		return nil
	})
	g.Go(func() error {
		rs, err := s.answers.ListUserAnswers(gctx, s.userID)
		if err != nil {
			return fmt.Errorf("list answers: %w", err)
		}
		records = rs
		return nil
	})
	if err := g.Wait(); err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrFetch, err)
		s.log.Error("session load failed", zap.Error(err))
		return s.apply(event{kind: evLoadFailed, err: err}), err
	}

	snap := s.apply(event{
		kind:      evLoaded,
		at:        s.now(),
		questions: questions,
		progress:  DeriveProgress(questions, records),
	})
	s.log.Debug("session loaded",
		zap.String("state", string(snap.State)),
		zap.Int("index", snap.Index),
		zap.Int("questions", len(questions)),
	)
	return snap, nil
}

// Append adds a dot or dash to the input buffer.
func (s *Session) Append(symbol domain.Symbol) (Snapshot, error) {
	s.op.Lock()
	defer s.op.Unlock()

	if !symbol.Valid() {
		return s.Snapshot(), domain.ErrInvalidSymbol
	}
	if s.Snapshot().State != StateActive {
		return s.Snapshot(), domain.ErrNotActive
	}
	return s.apply(event{kind: evAppend, symbol: symbol}), nil
}

// Backspace drops the last symbol; it does nothing on an empty buffer.
func (s *Session) Backspace() (Snapshot, error) {
	s.op.Lock()
	defer s.op.Unlock()

	if s.Snapshot().State != StateActive {
		return s.Snapshot(), domain.ErrNotActive
	}
	return s.apply(event{kind: evBackspace}), nil
}

// Submit checks the input buffer against the active question, stores the
// answer and advances on a correct answer. The session only changes once the
// answer has been stored.
func (s *Session) Submit(ctx context.Context) (SubmitResult, error) {
	s.op.Lock()
	defer s.op.Unlock()

	snap := s.Snapshot()
	if snap.State != StateActive {
		return SubmitResult{Snapshot: snap}, domain.ErrNotActive
	}
	if !CanAccess(snap.Index, snap.Questions, snap.Progress.Outcomes) {
		locked := s.apply(event{kind: evNavigate, index: snap.Index, at: s.now()})
		return SubmitResult{Snapshot: locked}, domain.ErrNotActive
	}
	if snap.Input == "" {
		metrics.Submissions.WithLabelValues("rejected").Inc()
		return SubmitResult{Snapshot: snap}, domain.ErrEmptyAnswer
	}
	question, ok := snap.Current()
	if !ok {
		return SubmitResult{Snapshot: snap}, domain.ErrQuestionNotFound
	}

	now := s.now()
	taken := int(now.Sub(snap.StartedAt) / time.Second)
	if taken < 0 {
		taken = 0
	}
	record := domain.AnswerRecord{
		UserID:           s.userID,
		QuestionID:       question.ID,
		SubmittedAnswer:  snap.Input,
		IsCorrect:        question.Check(snap.Input),
		TimeTakenSeconds: taken,
		AnsweredAt:       now,
	}
	if err := s.answers.UpsertAnswer(ctx, record); err != nil {
		metrics.Submissions.WithLabelValues("failed").Inc()
		s.log.Error("persist answer failed",
			zap.String("question_id", question.ID),
			zap.Error(err),
		)
		return SubmitResult{Snapshot: snap}, fmt.Errorf("%w: %w", domain.ErrSubmitPersist, err)
	}

	progress := DeriveProgress(snap.Questions, withRecord(snap, record))
	next := s.apply(event{
		kind:     evAnswered,
		at:       now,
		progress: progress,
		correct:  record.IsCorrect,
	})

	if record.IsCorrect {
		metrics.Submissions.WithLabelValues("correct").Inc()
	} else {
		metrics.Submissions.WithLabelValues("incorrect").Inc()
	}
	s.log.Info("answer submitted",
		zap.String("question_id", question.ID),
		zap.Bool("correct", record.IsCorrect),
		zap.Int("time_taken_seconds", taken),
		zap.String("state", string(next.State)),
	)
	return SubmitResult{Record: record, Correct: record.IsCorrect, Snapshot: next}, nil
}

// Navigate moves to index. An index whose predecessor is not answered
// correctly puts the session in the locked state.
func (s *Session) Navigate(index int) (Snapshot, error) {
	s.op.Lock()
	defer s.op.Unlock()

	snap := s.Snapshot()
	if snap.State == StateLoading || snap.State == StateFailed || snap.Empty {
		return snap, domain.ErrNotActive
	}
	if index < 0 || index >= len(snap.Questions) {
		return snap, domain.ErrIndexOutOfRange
	}
	return s.apply(event{kind: evNavigate, index: index, at: s.now()}), nil
}

// Recover leaves the locked state for the nearest accessible question before it.
func (s *Session) Recover() (Snapshot, error) {
	s.op.Lock()
	defer s.op.Unlock()

	if s.Snapshot().State != StateLocked {
		return s.Snapshot(), nil
	}
	return s.apply(event{kind: evRecover, at: s.now()}), nil
}

// withRecord rebuilds the known record set with rec replacing any earlier
// answer to the same question.
func withRecord(snap Snapshot, rec domain.AnswerRecord) []domain.AnswerRecord {
	records := make([]domain.AnswerRecord, 0, len(snap.Progress.Outcomes)+1)
	for questionID, o := range snap.Progress.Outcomes {
		if questionID == rec.QuestionID {
			continue
		}
		records = append(records, domain.AnswerRecord{
			UserID:          snap.UserID,
			QuestionID:      questionID,
			SubmittedAnswer: o.Answer,
			IsCorrect:       o.IsCorrect,
			AnsweredAt:      o.AnsweredAt,
		})
	}
	return append(records, rec)
}
