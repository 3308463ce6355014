package http

import (
	"morse-quiz-service/internal/app"
)

// SessionView is what a client sees of its session. Expected answers stay on
// the server.
type SessionView struct {
	UserID    string          `json:"userId"`
	State     app.State       `json:"state"`
	Index     int             `json:"index"`
	Total     int             `json:"total"`
	Question  *QuestionView   `json:"question,omitempty"`
	Input     string          `json:"input"`
	Completed int             `json:"completed"`
	Finished  bool            `json:"finished"`
	Answers   []AnsweredState `json:"answers"`
	Empty     bool            `json:"empty,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type QuestionView struct {
	ID      string `json:"id"`
	Ordinal int    `json:"ordinal"`
	Prompt  string `json:"prompt"`
}

// AnsweredState is the per-question status used to draw the progress bar.
type AnsweredState struct {
	QuestionID string `json:"questionId"`
	Answered   bool   `json:"answered"`
	Correct    bool   `json:"correct"`
	Accessible bool   `json:"accessible"`
}

func NewSessionView(snap app.Snapshot) SessionView {
	view := SessionView{
		UserID:    snap.UserID,
		State:     snap.State,
		Index:     snap.Index,
		Total:     len(snap.Questions),
		Input:     snap.Input,
		Completed: len(snap.Progress.Completed),
		Finished:  snap.Progress.Finished,
		Answers:   make([]AnsweredState, 0, len(snap.Questions)),
		Empty:     snap.Empty,
		Error:     snap.Err,
	}
	if q, ok := snap.Current(); ok {
		view.Question = &QuestionView{ID: q.ID, Ordinal: q.Ordinal, Prompt: q.Prompt}
	}
	for i, q := range snap.Questions {
		o, answered := snap.Progress.Outcomes[q.ID]
		view.Answers = append(view.Answers, AnsweredState{
			QuestionID: q.ID,
			Answered:   answered,
			Correct:    answered && o.IsCorrect,
			Accessible: app.CanAccess(i, snap.Questions, snap.Progress.Outcomes),
		})
	}
	return view
}
