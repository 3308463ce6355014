package memory

import (
	"context"
	"sort"
	"sync"

	"morse-quiz-service/internal/domain"
)

type answerKey struct {
	userID     string
	questionID string
}

// AnswerStore is an in-memory answer log and profile directory. It implements
// app.AnswerStore and app.ProfileStore.
type AnswerStore struct {
	mu       sync.RWMutex
	answers  map[answerKey]domain.AnswerRecord
	profiles map[string]domain.Identity
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		answers:  make(map[answerKey]domain.AnswerRecord),
		profiles: make(map[string]domain.Identity),
	}
}

func (s *AnswerStore) UpsertAnswer(_ context.Context, record domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[answerKey{userID: record.UserID, questionID: record.QuestionID}] = record
	return nil
}

func (s *AnswerStore) ListUserAnswers(_ context.Context, userID string) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AnswerRecord, 0)
	for key, record := range s.answers {
		if key.userID == userID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *AnswerStore) ListCorrectAnswers(_ context.Context, offset, limit int) ([]domain.ScoredAnswer, error) {
	s.mu.RLock()
	correct := make([]domain.ScoredAnswer, 0, len(s.answers))
	for _, record := range s.answers {
		if !record.IsCorrect {
			continue
		}
		profile := s.profiles[record.UserID]
		correct = append(correct, domain.ScoredAnswer{
			AnswerRecord: record,
			DisplayName:  profile.DisplayName,
			Email:        profile.Email,
		})
	}
	s.mu.RUnlock()

	// Stable order so offsets mean the same thing between pages.
	sort.Slice(correct, func(i, j int) bool {
		if correct[i].UserID != correct[j].UserID {
			return correct[i].UserID < correct[j].UserID
		}
		return correct[i].QuestionID < correct[j].QuestionID
	})

	if offset >= len(correct) {
		return []domain.ScoredAnswer{}, nil
	}
	end := len(correct)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return correct[offset:end], nil
}

func (s *AnswerStore) UpsertProfile(_ context.Context, identity domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[identity.UserID] = identity
	return nil
}
