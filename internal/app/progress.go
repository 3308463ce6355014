package app

import (
	"sort"

	"morse-quiz-service/internal/domain"
)

// ActiveIndex returns the index of the first question without a correct outcome,
// or the last index when every question is answered correctly.
// ok is false when there are no questions at all.
func ActiveIndex(questions []domain.Question, outcomes map[string]domain.Outcome) (int, bool) {
	if len(questions) == 0 {
		return 0, false
	}
	for i, q := range questions {
		if o, ok := outcomes[q.ID]; !ok || !o.IsCorrect {
			return i, true
		}
	}
	return len(questions) - 1, true
}

// CanAccess reports whether the question at index may be attempted: the first
// question always, any other only once its predecessor was answered correctly.
func CanAccess(index int, questions []domain.Question, outcomes map[string]domain.Outcome) bool {
	if index == 0 {
		return true
	}
	if index < 0 || index >= len(questions) {
		return false
	}
	o, ok := outcomes[questions[index-1].ID]
	return ok && o.IsCorrect
}

// DeriveProgress projects a user's answer records onto questions. ActiveIndex
// refers to the questions in ordinal order.
func DeriveProgress(questions []domain.Question, records []domain.AnswerRecord) domain.ProgressView {
	questions = SortQuestions(questions)
	outcomes := make(map[string]domain.Outcome, len(records))
	for _, r := range records {
		// Stores upsert per question; if one hands back duplicates anyway, keep the latest.
		if prev, ok := outcomes[r.QuestionID]; ok && prev.AnsweredAt.After(r.AnsweredAt) {
			continue
		}
		outcomes[r.QuestionID] = domain.Outcome{
			Answer:     r.SubmittedAnswer,
			IsCorrect:  r.IsCorrect,
			AnsweredAt: r.AnsweredAt,
		}
	}

	completed := make(map[string]struct{})
	finished := len(questions) > 0
	for _, q := range questions {
		if o, ok := outcomes[q.ID]; ok && o.IsCorrect {
			completed[q.ID] = struct{}{}
		} else {
			finished = false
		}
	}

	active, _ := ActiveIndex(questions, outcomes)
	return domain.ProgressView{
		ActiveIndex: active,
		Outcomes:    outcomes,
		Completed:   completed,
		Finished:    finished,
	}
}

// SortQuestions returns a copy of questions ordered by ordinal.
func SortQuestions(questions []domain.Question) []domain.Question {
	sorted := make([]domain.Question, len(questions))
	copy(sorted, questions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Ordinal < sorted[j].Ordinal
	})
	return sorted
}
