package domain

import "time"

// Symbol is one Morse input unit.
type Symbol string

const (
	Dot  Symbol = "."
	Dash Symbol = "-"
)

// Valid reports whether s is a dot or a dash.
func (s Symbol) Valid() bool {
	return s == Dot || s == Dash
}

// Question is one step of the quiz. Ordinal is 1-based and defines play order.
type Question struct {
	ID            string `json:"id"`
	Ordinal       int    `json:"ordinal"`
	Prompt        string `json:"prompt"`
	CorrectAnswer string `json:"correctAnswer"`
}

// Check reports whether answer matches the expected Morse string exactly.
func (q Question) Check(answer string) bool {
	return answer == q.CorrectAnswer
}

// AnswerRecord is the stored result of a user's latest submission for a question.
// There is at most one record per (UserID, QuestionID).
type AnswerRecord struct {
	UserID           string    `json:"userId"`
	QuestionID       string    `json:"questionId"`
	SubmittedAnswer  string    `json:"submittedAnswer"`
	IsCorrect        bool      `json:"isCorrect"`
	TimeTakenSeconds int       `json:"timeTakenSeconds"`
	AnsweredAt       time.Time `json:"answeredAt"`
}

// ScoredAnswer is an answer record joined with its owner's profile.
type ScoredAnswer struct {
	AnswerRecord
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Identity is what the identity provider knows about a user.
type Identity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Label picks the name shown on the leaderboard.
func (i Identity) Label() string {
	switch {
	case i.DisplayName != "":
		return i.DisplayName
	case i.Email != "":
		return i.Email
	default:
		return i.UserID
	}
}

// Outcome is the result of a user's most recent submission for one question.
type Outcome struct {
	Answer     string    `json:"answer"`
	IsCorrect  bool      `json:"isCorrect"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// ProgressView is derived from a user's answer records; it is never persisted.
type ProgressView struct {
	ActiveIndex int                 `json:"activeIndex"`
	Outcomes    map[string]Outcome  `json:"outcomes"`
	Completed   map[string]struct{} `json:"-"`
	// Finished is set when every question has a correct outcome.
	Finished bool `json:"finished"`
}

// LeaderboardEntry is one ranked row of the standings.
type LeaderboardEntry struct {
	Rank             int     `json:"rank"`
	UserID           string  `json:"userId"`
	DisplayName      string  `json:"displayName"`
	ScorePercent     float64 `json:"scorePercent"`
	CorrectCount     int     `json:"correctCount"`
	TotalTimeSeconds int     `json:"totalTimeSeconds"`
}

// Leaderboard is a point-in-time snapshot of the standings.
type Leaderboard struct {
	Entries        []LeaderboardEntry `json:"entries"`
	TotalQuestions int                `json:"totalQuestions"`
	Partial        bool               `json:"partial"`
	GeneratedAt    time.Time          `json:"generatedAt"`
}
